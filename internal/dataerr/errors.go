// Package dataerr defines the error taxonomy shared by the data-access layer
// and the operation registry. Every concrete error matches one sentinel via
// errors.Is so callers can branch on category without type switches.
package dataerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSchema            = errors.New("schema error")
	ErrInvalidClauseKind = errors.New("invalid clause kind")
	ErrNotFound          = errors.New("not found")
	ErrAmbiguousJoin     = errors.New("ambiguous join")
	ErrWriteConflict     = errors.New("write conflict")
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// SchemaError reports an entity or column the registry does not know.
type SchemaError struct {
	Entity string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema error")
	if e.Entity != "" {
		fmt.Fprintf(&b, ": entity %q", e.Entity)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// InvalidClauseKindError is returned for a predicate kind outside EQUAL, IN, LIKE, BETWEEN.
type InvalidClauseKindError struct {
	Kind string
}

func (e *InvalidClauseKindError) Error() string {
	return fmt.Sprintf("invalid clause kind %q", e.Kind)
}

func (e *InvalidClauseKindError) Is(target error) bool { return target == ErrInvalidClauseKind }

// NotFoundError is returned by single-row lookups that match nothing.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousJoinError is returned when a hop that must resolve to one row
// resolves to several.
type AmbiguousJoinError struct {
	From       string
	To         string
	ID         any
	Candidates []any
}

func (e *AmbiguousJoinError) Error() string {
	return fmt.Sprintf("ambiguous join %s %v -> %s: %d candidates %v", e.From, e.ID, e.To, len(e.Candidates), e.Candidates)
}

func (e *AmbiguousJoinError) Is(target error) bool { return target == ErrAmbiguousJoin }

// WriteConflictError is returned when key allocation keeps colliding.
type WriteConflictError struct {
	Entity   string
	Attempts int
	Err      error
}

func (e *WriteConflictError) Error() string {
	return fmt.Sprintf("write conflict on %s after %d attempts: %v", e.Entity, e.Attempts, e.Err)
}

func (e *WriteConflictError) Is(target error) bool { return target == ErrWriteConflict }

func (e *WriteConflictError) Unwrap() error { return e.Err }

// UnknownOperationError is returned by the operation registry for unregistered names.
type UnknownOperationError struct {
	Name string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.Name)
}

func (e *UnknownOperationError) Is(target error) bool { return target == ErrUnknownOperation }

// InvalidArgumentError reports an unknown, missing, or mistyped operation argument.
type InvalidArgumentError struct {
	Operation string
	Argument  string
	Reason    string
}

func (e *InvalidArgumentError) Error() string {
	if e.Argument == "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s: argument %q: %s", e.Operation, e.Argument, e.Reason)
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// Error kinds reported by Kind.
const (
	KindSchema            = "schema"
	KindInvalidClauseKind = "invalid_clause_kind"
	KindInvalidArgument   = "invalid_argument"
	KindNotFound          = "not_found"
	KindUnknownOperation  = "unknown_operation"
	KindAmbiguousJoin     = "ambiguous_join"
	KindWriteConflict     = "write_conflict"
	KindInternal          = "internal"
)

var kinds = []struct {
	sentinel error
	name     string
}{
	{ErrSchema, KindSchema},
	{ErrInvalidClauseKind, KindInvalidClauseKind},
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrNotFound, KindNotFound},
	{ErrUnknownOperation, KindUnknownOperation},
	{ErrAmbiguousJoin, KindAmbiguousJoin},
	{ErrWriteConflict, KindWriteConflict},
}

// Kind names the category of err for metrics and response bodies. Errors
// outside the taxonomy are "internal"; nil is "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.name
		}
	}
	return KindInternal
}
