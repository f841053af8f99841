package safety

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMetaCommand is returned by CheckNoMetaCommand when the statement
// contains a psql backslash meta-command, which is never allowed regardless
// of classification.
var ErrMetaCommand = errors.New("safety: psql meta-commands are disallowed")

var readOnlyVerbs = map[string]struct{}{
	"SELECT": {}, "WITH": {}, "EXPLAIN": {}, "SHOW": {},
}

var dmlVerbs = []string{"INSERT", "UPDATE", "DELETE"}

// firstToken returns the first whitespace-delimited token of sql, upper
// cased, ignoring leading blank lines/comments is intentionally not
// attempted here: callers pass a single trimmed statement.
func firstToken(sql string) string {
	trimmed := strings.TrimSpace(sql)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// IsReadOnly reports whether sql's first token is one of SELECT, WITH,
// EXPLAIN, SHOW. This is driver-agnostic: the same classifier backs
// postgres, mysql, and mariadb tools.
func IsReadOnly(sql string) bool {
	_, ok := readOnlyVerbs[firstToken(sql)]
	return ok
}

// IsDML reports whether sql is a data-mutating statement: its first token
// is INSERT/UPDATE/DELETE, or (for a WITH-prefixed CTE) the full text
// contains one of those keywords.
func IsDML(sql string) bool {
	token := firstToken(sql)
	if token == "WITH" {
		upper := strings.ToUpper(sql)
		for _, verb := range dmlVerbs {
			if strings.Contains(upper, verb) {
				return true
			}
		}
		return false
	}
	for _, verb := range dmlVerbs {
		if token == verb {
			return true
		}
	}
	return false
}

// ContainsMetaCommand reports whether any line of sql starts with a
// backslash psql meta-command (e.g. "\d", "\copy"), which is always
// rejected regardless of the statement's read/write classification.
func ContainsMetaCommand(sql string) bool {
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), `\`) {
			return true
		}
	}
	return false
}

// CheckNoMetaCommand returns ErrMetaCommand if sql contains a psql
// backslash meta-command.
func CheckNoMetaCommand(sql string) error {
	if ContainsMetaCommand(sql) {
		return ErrMetaCommand
	}
	return nil
}

// EnsureLimit appends a "LIMIT n" clause to a single-statement read-only
// query that lacks one, so ad-hoc exploratory queries cannot return
// unbounded result sets. Multi-statement input (containing a semicolon
// before the end) is left untouched; callers should reject it upstream.
func EnsureLimit(sql string, defaultLimit int) string {
	trimmed := strings.TrimRight(strings.TrimSpace(sql), ";")
	if strings.Contains(trimmed, ";") {
		return sql
	}
	if strings.Contains(strings.ToUpper(trimmed), "LIMIT") {
		return trimmed
	}
	return trimmed + " LIMIT " + strconv.Itoa(defaultLimit)
}
