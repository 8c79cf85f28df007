package schema

import (
	"fmt"
	"slices"
	"strings"

	"aerodb/internal/sqlutil"
)

// DDL returns CREATE TABLE statements for every registered entity. It is used
// to bootstrap development databases and test fixtures; it is not a migration tool.
func (r *Registry) DDL(d sqlutil.Dialect) []string {
	stmts := make([]string, 0, len(r.order))
	for _, e := range r.order {
		stmts = append(stmts, createTable(d, r.tables[e]))
	}
	return stmts
}

func createTable(d sqlutil.Dialect, t *Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", d.Quote(string(t.Entity)))
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", d.Quote(c.Name), sqlType(d, c.Type))
		if slices.Contains(t.Key, c.Name) {
			b.WriteString(" NOT NULL")
		}
	}
	quoted := make([]string, len(t.Key))
	for i, k := range t.Key {
		quoted[i] = d.Quote(k)
	}
	fmt.Fprintf(&b, ", PRIMARY KEY (%s))", strings.Join(quoted, ", "))
	return b.String()
}

func sqlType(d sqlutil.Dialect, t ColumnType) string {
	switch t {
	case Integer:
		if d == sqlutil.SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case Real:
		if d == sqlutil.Postgres {
			return "DOUBLE PRECISION"
		}
		if d == sqlutil.SQLite {
			return "REAL"
		}
		return "DOUBLE"
	case Date:
		if d == sqlutil.SQLite {
			return "TEXT"
		}
		return "DATE"
	default:
		return "TEXT"
	}
}
