package ai

import "strings"

// Placeholders substituted for code that could not be produced.
const (
	NoCodePlaceholder     = "// Error: No code generated."
	FailedCodePlaceholder = "// Error generating code."
)

const fence = "```"

// fenceLangs is the fixed set of language tags recognised after an opening fence.
var fenceLangs = map[string]struct{}{
	"typescript": {}, "javascript": {}, "ts": {}, "js": {}, "tsx": {}, "jsx": {},
	"json": {}, "html": {}, "css": {}, "go": {}, "python": {}, "py": {},
	"rust": {}, "ruby": {}, "java": {}, "c": {}, "cpp": {}, "yaml": {}, "yml": {},
	"toml": {}, "bash": {}, "sh": {}, "sql": {}, "md": {}, "markdown": {},
}

// StripFences removes a leading fence (with an optional recognised language tag) and a
// trailing fence from a code completion, then trims surrounding whitespace.
// Fences in the middle of the text are left alone.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(s, fence); ok {
		s = dropLangTag(rest)
	}
	if rest, ok := strings.CutSuffix(s, fence); ok {
		s = rest
	}
	return strings.TrimSpace(s)
}

// NormalizeCode strips fences and substitutes the placeholder for empty output.
func NormalizeCode(text string) (string, bool) {
	code := StripFences(text)
	if code == "" {
		return NoCodePlaceholder, false
	}
	return code, true
}

func dropLangTag(s string) string {
	end := strings.IndexAny(s, " \t\r\n")
	word := s
	if end >= 0 {
		word = s[:end]
	}
	if _, ok := fenceLangs[strings.ToLower(word)]; ok {
		return s[len(word):]
	}
	return s
}
