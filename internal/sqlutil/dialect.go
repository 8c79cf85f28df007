package sqlutil

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect identifies a supported storage backend.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect maps a configured driver name onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "tidb", "":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "pgx"
	default:
		return "mysql"
	}
}

// Quote quotes an identifier using the dialect's quoting style.
func (d Dialect) Quote(name string) string {
	if d == MySQL {
		return QuoteIdentifier(name)
	}
	return QuoteDoubleIdentifier(name)
}

// Placeholder returns the squirrel placeholder format for the dialect.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

// SnapshotTxOptions returns the options used for read-consistent multi-statement
// reads. SQLite transactions are already serializable and reject explicit levels.
func (d Dialect) SnapshotTxOptions() *sql.TxOptions {
	if d == SQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

// WriteTxOptions returns the options used for key allocation.
func (d Dialect) WriteTxOptions() *sql.TxOptions {
	if d == SQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

// AggregateList returns an expression that folds col into a comma-delimited
// string per group.
func (d Dialect) AggregateList(col string) string {
	switch d {
	case Postgres:
		return fmt.Sprintf("string_agg(CAST(%s AS TEXT), %s)", col, QuoteString(","))
	case SQLite:
		return fmt.Sprintf("group_concat(%s, %s)", col, QuoteString(","))
	default:
		return fmt.Sprintf("GROUP_CONCAT(%s SEPARATOR %s)", col, QuoteString(","))
	}
}

// IsUniqueViolation reports whether err is a primary key or unique constraint
// violation from any supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// IsSerializationFailure reports whether err means the transaction lost a
// conflict with a concurrent one and may succeed if run again.
func IsSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_BUSY
	}
	return false
}
