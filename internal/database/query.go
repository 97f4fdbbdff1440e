package database

import (
	"strings"
)

// QuoteIdent wraps a SQL identifier in double-quotes (ANSI standard).
// MySQL connections are opened with ANSI_QUOTES so the same quoting works
// on every supported engine.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholders returns n comma separated ? placeholders.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// statementKind returns the leading keyword of sql in lower case, used as
// the statement label of query metrics.
func statementKind(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \t\n("); i > 0 {
		sql = sql[:i]
	}
	return strings.ToLower(sql)
}
