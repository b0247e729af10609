package intent

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultOwner is used when a message carries no source id
const DefaultOwner = "default-user"

// Sentinel errors returned by the parsers
var (
	ErrNoCode    = errors.New("no code found in message")
	ErrNoPath    = errors.New("no file path found in message")
	ErrNoContent = errors.New("no file content found in message")
	ErrNoFiles   = errors.New("no files given for batch write")
)

// fencePattern matches a triple-backtick block with an optional language tag
var fencePattern = regexp.MustCompile("(?s)```(?:([a-zA-Z0-9_+-]+)[ \t]*[\r\n]+)?(.+?)```")

// ExtractCode returns the first fenced block in text, or the whole text when
// there is none. The result is trimmed.
func ExtractCode(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[2])
	}
	return strings.TrimSpace(text)
}

// FenceLanguage returns the language tag of the first fenced block, if any
func FenceLanguage(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

// Code resolves the code to run. An explicit value wins over the text.
func Code(text, explicit string) (string, error) {
	code := strings.TrimSpace(explicit)
	if code == "" {
		code = ExtractCode(text)
	}
	if code == "" {
		return "", ErrNoCode
	}
	return code, nil
}

// OwnerID returns sourceID, or DefaultOwner when it is blank
func OwnerID(sourceID string) string {
	if id := strings.TrimSpace(sourceID); id != "" {
		return id
	}
	return DefaultOwner
}
