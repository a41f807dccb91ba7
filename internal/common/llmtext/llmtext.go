// Package llmtext converts loosely structured model output into validated
// JSON records. Providers wrap payloads in prose or code fences and routinely
// emit bare control characters inside string literals; the functions here are
// the two named stages of the recovery pipeline: extraction and
// sanitize-and-retry decoding.
package llmtext

import (
	"encoding/json"
	"strings"

	"prepmate/internal/common"
)

// StripFences removes enclosing markdown code fence markers if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractObject returns the first balanced-looking {...} span of raw,
// tolerating prose or fences around the payload. The scan is positional
// (first '{' to last '}'), which is enough for single-object replies.
// ok is false when no such span exists.
func ExtractObject(raw string) (string, bool) {
	s := StripFences(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// EscapeControlChars rewrites bare control characters that appear inside
// JSON string literals: newlines, carriage returns and tabs become their
// escaped forms, other control characters are dropped. Characters outside
// string literals are left alone so structural whitespace survives.
func EscapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch {
		case inString && r == '\\':
			b.WriteRune(r)
			escaped = true
		case r == '"':
			inString = !inString
			b.WriteRune(r)
		case inString && r == '\n':
			b.WriteString(`\n`)
		case inString && r == '\r':
			b.WriteString(`\r`)
		case inString && r == '\t':
			b.WriteString(`\t`)
		case inString && r < 0x20:
			// Other control characters carry no meaning here.
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapeStrayBackslashes doubles backslashes that do not begin a recognized
// JSON escape sequence, so Windows paths or regex fragments inside string
// values do not break decoding.
func EscapeStrayBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\\' {
			b.WriteRune(r)
			continue
		}
		if i+1 < len(runes) {
			switch runes[i+1] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				b.WriteRune(r)
				continue
			}
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

// Decode parses raw into v: strict parse first, then exactly one
// sanitization pass and retry. A second failure yields ErrUnparsable;
// the caller decides the fallback policy.
func Decode(raw string, v interface{}) error {
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	cleaned := EscapeControlChars(EscapeStrayBackslashes(raw))
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return common.Errorf("decode after sanitization: %v: %w", err, common.ErrUnparsable)
	}
	return nil
}
