// Package sqlutil provides SQL utility functions and the dialect table for
// the supported backends.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteDoubleIdentifier quotes an identifier with ANSI double quotes.
func QuoteDoubleIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// QuoteString quotes a SQL string literal with single quotes and escapes
// any single quotes within the string by doubling them.
func QuoteString(s string) string {
	escaped := strings.ReplaceAll(s, "'", "''")
	return "'" + escaped + "'"
}
