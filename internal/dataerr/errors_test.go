package dataerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"schema", &SchemaError{Entity: "planes"}, ErrSchema},
		{"clause kind", &InvalidClauseKindError{Kind: "GREATER"}, ErrInvalidClauseKind},
		{"not found", &NotFoundError{Entity: "clients", ID: 7}, ErrNotFound},
		{"ambiguous", &AmbiguousJoinError{From: "stands", To: "projects", ID: 1, Candidates: []any{1, 2}}, ErrAmbiguousJoin},
		{"conflict", &WriteConflictError{Entity: "clients", Attempts: 3}, ErrWriteConflict},
		{"operation", &UnknownOperationError{Name: "drop_all"}, ErrUnknownOperation},
		{"argument", &InvalidArgumentError{Operation: "list_table", Argument: "x", Reason: "unknown argument"}, ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			for _, other := range []error{ErrSchema, ErrInvalidClauseKind, ErrNotFound, ErrAmbiguousJoin, ErrWriteConflict, ErrUnknownOperation, ErrInvalidArgument} {
				if other == tt.sentinel {
					continue
				}
				assert.False(t, errors.Is(wrapped, other), "unexpected match with %v", other)
			}
		})
	}
}

func TestSchemaErrorMessage(t *testing.T) {
	err := &SchemaError{Entity: "stands", Column: "COLOR", Reason: "unknown column"}
	assert.Equal(t, `schema error: entity "stands" column "COLOR": unknown column`, err.Error())
}

func TestWriteConflictUnwrap(t *testing.T) {
	cause := errors.New("duplicate key")
	err := &WriteConflictError{Entity: "clients", Attempts: 2, Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "not_found", Kind(fmt.Errorf("get: %w", &NotFoundError{Entity: "clients", ID: 1})))
	assert.Equal(t, "write_conflict", Kind(&WriteConflictError{Entity: "clients", Attempts: 3}))
	assert.Equal(t, "invalid_argument", Kind(&InvalidArgumentError{Operation: "get", Reason: "x"}))
	assert.Equal(t, "internal", Kind(errors.New("connection reset")))
}
