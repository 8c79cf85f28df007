// Package resolve normalizes identifier arguments into explicit key lists.
package resolve

import (
	"context"
	"reflect"

	"aerodb/internal/gateway"
	"aerodb/internal/schema"
)

// IDs selects rows by key: every row of the entity, or an explicit list.
// The zero value selects every row.
type IDs struct {
	explicit bool
	values   []any
}

// All selects every row.
func All() IDs { return IDs{} }

// One selects a single key.
func One(v any) IDs { return IDs{explicit: true, values: []any{v}} }

// List selects exactly the given keys, in order, duplicates included. An empty
// list selects nothing.
func List(vs ...any) IDs {
	return IDs{explicit: true, values: append([]any{}, vs...)}
}

// FromAny interprets an untyped argument: nil selects every row, a slice is
// passed through, anything else is a single key.
func FromAny(v any) IDs {
	if v == nil {
		return All()
	}
	if vs, ok := v.([]any); ok {
		return List(vs...)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return List(out...)
	}
	return One(v)
}

// IsAll reports whether every row is selected.
func (ids IDs) IsAll() bool { return !ids.explicit }

// Values returns the explicit keys. It is nil when every row is selected.
func (ids IDs) Values() []any {
	if !ids.explicit {
		return nil
	}
	return append([]any{}, ids.values...)
}

// Resolve turns ids into a concrete key list for entity. Selecting every row
// costs one SELECT DISTINCT round trip; explicit keys are returned unchanged
// without checking that they exist.
func Resolve(ctx context.Context, gw *gateway.Gateway, entity schema.Entity, ids IDs) ([]any, error) {
	if ids.explicit {
		return ids.Values(), nil
	}
	q, err := gw.Compiler().SelectIDs(entity)
	if err != nil {
		return nil, err
	}
	rows, err := gw.Rows(ctx, q)
	if err != nil {
		return nil, err
	}
	idCol, err := gw.Compiler().Registry().IDColumn(entity)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Value(idCol))
	}
	return out, nil
}
