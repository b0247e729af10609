package sandbox

import (
	"fmt"
	"strings"
)

// Language name constants
const (
	LanguagePython     = "python"
	LanguageJavaScript = "javascript"
	LanguageBash       = "bash"
	LanguageJava       = "java"
	LanguageR          = "r"
)

// Language describes a runtime supported by the code interpreter
type Language struct {
	// Name is the canonical identifier used in action and tool names.
	Name string
	// DisplayName is used in user-facing messages.
	DisplayName string
	// Runtime is the identifier the remote interpreter expects.
	Runtime string
}

var languages = []Language{
	{Name: LanguagePython, DisplayName: "Python", Runtime: "python"},
	{Name: LanguageJavaScript, DisplayName: "JavaScript", Runtime: "js"},
	{Name: LanguageBash, DisplayName: "Bash", Runtime: "bash"},
	{Name: LanguageJava, DisplayName: "Java", Runtime: "java"},
	{Name: LanguageR, DisplayName: "R", Runtime: "r"},
}

var languageAliases = map[string]string{
	"py":      LanguagePython,
	"python3": LanguagePython,
	"js":      LanguageJavaScript,
	"node":    LanguageJavaScript,
	"nodejs":  LanguageJavaScript,
	"sh":      LanguageBash,
	"shell":   LanguageBash,
	"rlang":   LanguageR,
	"rscript": LanguageR,
}

// Languages returns the supported languages in a stable order
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// LookupLanguage resolves a language by name or common alias
func LookupLanguage(name string) (Language, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := languageAliases[key]; ok {
		key = alias
	}
	for _, l := range languages {
		if l.Name == key {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("unsupported language: %s", name)
}
