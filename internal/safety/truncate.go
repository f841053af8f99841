package safety

import "fmt"

// DefaultMaxOutputChars is the cap applied when a tool does not declare its
// own maxOutputChars.
const DefaultMaxOutputChars = 20_000

// MaxOutputCharsCeiling is the largest maxOutputChars a tool may declare.
const MaxOutputCharsCeiling = 200_000

// TruncateOutput caps s at maxChars runes (falling back to
// DefaultMaxOutputChars when maxChars is non-positive, clamped to
// MaxOutputCharsCeiling), returning the possibly-truncated string and
// whether truncation occurred. Truncated output gets a trailing
// "…(truncated to N chars)" marker matching the message callers should
// surface to the user.
func TruncateOutput(s string, maxChars int) (string, bool) {
	limit := maxChars
	if limit <= 0 {
		limit = DefaultMaxOutputChars
	}
	if limit > MaxOutputCharsCeiling {
		limit = MaxOutputCharsCeiling
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	truncated := string(runes[:limit])
	return fmt.Sprintf("%s…(truncated to %d chars)", truncated, limit), true
}
