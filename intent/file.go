package intent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/isdmx/e2bbox/sandbox"
)

// ReadRequest asks for the contents of one file
type ReadRequest struct {
	Path string `json:"path"`
}

// WriteRequest writes either a single file or, when Files is set, a batch
type WriteRequest struct {
	Path    string
	Content string
	Files   []sandbox.File
}

// IsBatch reports whether the request writes several files
func (r WriteRequest) IsBatch() bool {
	return len(r.Files) > 0
}

// Paths lists every path the request writes
func (r WriteRequest) Paths() []string {
	if !r.IsBatch() {
		return []string{r.Path}
	}
	paths := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

type readPayload struct {
	Path *string `json:"path"`
}

type writePayload struct {
	Path       *string       `json:"path"`
	Content    *string       `json:"content"`
	IsMultiple bool          `json:"isMultiple"`
	Files      []filePayload `json:"files"`
}

type filePayload struct {
	Path *string `json:"path"`
	Data *string `json:"data"`
}

const pathToken = `['"]?([^'"<>\s]+)['"]?`

var (
	readPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bread\s+(?:(?:the\s+)?(?:file|contents?)\s+)?(?:(?:at|from|of|in|path|located at)\s+)?` + pathToken),
		regexp.MustCompile(`(?i)\b(?:get|fetch|retrieve|show|open|cat)\s+(?:(?:the\s+)?(?:file|contents?)\s+)?(?:(?:at|from|of|in|path|located at)\s+)?` + pathToken),
		regexp.MustCompile(`(?i)\b(?:file|path)\s+` + pathToken),
	}

	writePathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:to|into|at|in)\s+(?:(?:the\s+)?(?:file|path)\s+)?` + pathToken),
		regexp.MustCompile(`(?i)\b(?:file|path)\s+` + pathToken),
		regexp.MustCompile(`(?i)\b(?:write|save|create|put)\s+(?:(?:a\s+)?file\s+)?` + pathToken),
	}

	doubleQuoted = regexp.MustCompile(`"([^"]*)"`)
	singleQuoted = regexp.MustCompile(`'([^']*)'`)

	contentPhrase = regexp.MustCompile(`(?is)\b(?:with\s+(?:the\s+)?(?:content|contents|data|text)|containing)\s*:?\s+(.+)$`)
	writeXToY     = regexp.MustCompile(`(?is)^\s*(?:write|save|put|store)\s+(.+?)\s+(?:to|into|in|at)\s+\S+\s*$`)
)

// ParseReadRequest reads {"path": ...} or, when text is not JSON, a path
// mentioned in prose such as "read file at /tmp/a.txt".
func ParseReadRequest(text string) (ReadRequest, error) {
	if raw, ok := jsonObject(text); ok {
		var p readPayload
		if err := json.Unmarshal(raw, &p); err == nil {
			if p.Path == nil || strings.TrimSpace(*p.Path) == "" {
				return ReadRequest{}, ErrNoPath
			}
			return ReadRequest{Path: *p.Path}, nil
		}
	}

	path := findPath(text, readPathPatterns)
	if path == "" {
		return ReadRequest{}, ErrNoPath
	}
	return ReadRequest{Path: path}, nil
}

// ParseWriteRequest reads {"path","content"}, a batch
// {"isMultiple":true,"files":[{"path","data"}]}, or a prose request such as
// `Write "hi" to /a.txt`. JSON content may be empty but must be present.
func ParseWriteRequest(text string) (WriteRequest, error) {
	if raw, ok := jsonObject(text); ok {
		var p writePayload
		if err := json.Unmarshal(raw, &p); err == nil {
			return p.request()
		}
	}

	path := findPath(text, writePathPatterns)
	if path == "" {
		return WriteRequest{}, ErrNoPath
	}
	content, ok := findContent(text, path)
	if !ok {
		return WriteRequest{}, ErrNoContent
	}
	return WriteRequest{Path: path, Content: content}, nil
}

func (p writePayload) request() (WriteRequest, error) {
	if p.IsMultiple {
		if len(p.Files) == 0 {
			return WriteRequest{}, ErrNoFiles
		}
		files := make([]sandbox.File, 0, len(p.Files))
		for i, f := range p.Files {
			if f.Path == nil || strings.TrimSpace(*f.Path) == "" {
				return WriteRequest{}, fmt.Errorf("files[%d]: %w", i, ErrNoPath)
			}
			if f.Data == nil {
				return WriteRequest{}, fmt.Errorf("files[%d]: %w", i, ErrNoContent)
			}
			files = append(files, sandbox.File{Path: *f.Path, Data: []byte(*f.Data)})
		}
		return WriteRequest{Files: files}, nil
	}

	if p.Path == nil || strings.TrimSpace(*p.Path) == "" {
		return WriteRequest{}, ErrNoPath
	}
	if p.Content == nil {
		return WriteRequest{}, ErrNoContent
	}
	return WriteRequest{Path: *p.Path, Content: *p.Content}, nil
}

// jsonObject returns the JSON object held by text, also when it is wrapped in
// a fenced block
func jsonObject(text string) ([]byte, bool) {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "{") {
		s = ExtractCode(text)
	}
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	return []byte(s), true
}

// findPath tries each pattern in order and prefers a candidate that looks
// like a path over a bare word
func findPath(text string, patterns []*regexp.Regexp) string {
	var fallback string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := cleanPath(m[1])
			if candidate == "" {
				continue
			}
			if looksLikePath(candidate) {
				return candidate
			}
			if fallback == "" {
				fallback = candidate
			}
		}
	}
	return fallback
}

func cleanPath(p string) string {
	return strings.TrimRight(p, ".,;:!?)")
}

func looksLikePath(s string) bool {
	return strings.ContainsAny(s, "/.\\") || strings.HasPrefix(s, "~")
}

func findContent(text, path string) (string, bool) {
	if fencePattern.MatchString(text) {
		if code := ExtractCode(text); code != "" {
			return code, true
		}
	}

	for _, re := range []*regexp.Regexp{doubleQuoted, singleQuoted} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if m[1] != "" && m[1] != path {
				return m[1], true
			}
		}
	}

	if m := contentPhrase.FindStringSubmatch(text); m != nil {
		content := strings.TrimSpace(m[1])
		for _, suffix := range []string{" to " + path, " into " + path, " in " + path, " at " + path} {
			content = strings.TrimSuffix(content, suffix)
		}
		if content != "" && content != path {
			return content, true
		}
	}

	if m := writeXToY.FindStringSubmatch(text); m != nil {
		content := strings.TrimSpace(m[1])
		if content != "" && content != path {
			return content, true
		}
	}

	return "", false
}
