package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aerodb/internal/dataerr"
	"aerodb/internal/dbexec"
	"aerodb/internal/gateway"
	"aerodb/internal/schema"
	"aerodb/internal/testutil/sqlitedb"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantAll bool
		want    []any
	}{
		{"nil selects all", nil, true, nil},
		{"scalar", int64(3), false, []any{int64(3)}},
		{"string scalar", "3", false, []any{"3"}},
		{"any list", []any{int64(1), int64(1)}, false, []any{int64(1), int64(1)}},
		{"typed list", []int64{4, 5}, false, []any{int64(4), int64(5)}},
		{"empty list", []int64{}, false, []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := FromAny(tt.input)
			assert.Equal(t, tt.wantAll, ids.IsAll())
			assert.Equal(t, tt.want, ids.Values())
		})
	}
}

func TestResolve(t *testing.T) {
	tdb := sqlitedb.NewTestDB(t)
	tdb.SeedHierarchy(t)
	gw := gateway.New(dbexec.NewStandardExecutor(tdb.DB), tdb.Compiler, nil, nil)
	ctx := context.Background()

	ids, err := Resolve(ctx, gw, schema.Stands, All())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(11), int64(12)}, ids)

	ids, err = Resolve(ctx, gw, schema.Stands, One(int64(11)))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(11)}, ids)

	// explicit lists are not checked for existence
	ids, err = Resolve(ctx, gw, schema.Stands, List(int64(99), int64(10)))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(99), int64(10)}, ids)

	ids, err = Resolve(ctx, gw, schema.Stands, List())
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = Resolve(ctx, gw, "planes", All())
	assert.ErrorIs(t, err, dataerr.ErrSchema)
}
