// Package filter builds parameterized SQL from the clause DSL used by every
// read in the system. Identifiers come only from the schema registry; values
// are always bound as parameters.
package filter

import (
	"fmt"
	"reflect"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"aerodb/internal/dataerr"
	"aerodb/internal/setutil"
)

// Kind is a predicate kind.
type Kind string

const (
	Equal   Kind = "EQUAL"
	In      Kind = "IN"
	Like    Kind = "LIKE"
	Between Kind = "BETWEEN"
)

// ParseKind validates a caller-supplied predicate kind, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case Equal, In, Like, Between:
		return k, nil
	default:
		return "", &dataerr.InvalidClauseKindError{Kind: s}
	}
}

// Logic joins a clause to the one before it.
type Logic string

const (
	And Logic = "AND"
	Or  Logic = "OR"
)

// ParseLogic validates a caller-supplied logical connective.
func ParseLogic(s string) (Logic, error) {
	switch l := Logic(strings.ToUpper(strings.TrimSpace(s))); l {
	case And, Or:
		return l, nil
	default:
		return "", fmt.Errorf("invalid clause logic %q", s)
	}
}

// Predicate is one compiled condition with its bound parameters. SQL always
// uses ? placeholders; the statement builder rewrites them per dialect.
type Predicate struct {
	SQL  string
	Args []any
}

// buildPredicate renders a single condition on an already quoted column.
func buildPredicate(quotedColumn string, kind Kind, value any) (Predicate, error) {
	var cond sq.Sqlizer
	switch kind {
	case Equal:
		if isList(value) {
			return Predicate{}, badValue(quotedColumn, "EQUAL needs a scalar value")
		}
		cond = sq.Eq{quotedColumn: value}
	case In:
		values := toList(value)
		if len(values) == 0 {
			return Predicate{}, badValue(quotedColumn, "IN needs at least one value")
		}
		cond = sq.Expr(fmt.Sprintf("%s IN (%s)", quotedColumn, sq.Placeholders(len(values))), values...)
	case Like:
		if value == nil || isList(value) {
			return Predicate{}, badValue(quotedColumn, "LIKE needs a non-null scalar value")
		}
		cond = sq.Like{quotedColumn: "%" + setutil.Token(value) + "%"}
	case Between:
		bounds := toList(value)
		if len(bounds) != 2 {
			return Predicate{}, badValue(quotedColumn, fmt.Sprintf("BETWEEN needs a two-element range, got %d", len(bounds)))
		}
		cond = sq.Expr(fmt.Sprintf("%s BETWEEN ? AND ?", quotedColumn), bounds[0], bounds[1])
	default:
		return Predicate{}, &dataerr.InvalidClauseKindError{Kind: string(kind)}
	}

	sqlText, args, err := cond.ToSql()
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{SQL: sqlText, Args: args}, nil
}

// badValue reports a clause value whose shape does not fit its kind. Where
// rewrites Argument to the clause position.
func badValue(quotedColumn, reason string) error {
	return &dataerr.InvalidArgumentError{
		Operation: "filter",
		Argument:  "value",
		Reason:    fmt.Sprintf("%s on %s", reason, quotedColumn),
	}
}

// toList coerces value into a parameter list. Scalars become a singleton.
func toList(value any) []any {
	if value == nil {
		return []any{nil}
	}
	if vs, ok := value.([]any); ok {
		return vs
	}
	if !isList(value) {
		return []any{value}
	}
	rv := reflect.ValueOf(value)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func isList(value any) bool {
	if value == nil {
		return false
	}
	if _, ok := value.([]byte); ok {
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}
