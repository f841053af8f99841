package safety

import "strings"

// QuoteShellArg single-quotes s for safe interpolation into a shell or
// docker-exec command, escaping embedded single quotes as '\''. Numeric
// fields must be range-validated by the caller before interpolation;
// quoting alone does not make an out-of-range value safe.
func QuoteShellArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
