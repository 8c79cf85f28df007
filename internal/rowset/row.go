// Package rowset holds query results: ordered rows keyed by column name and
// their columnar counterpart.
package rowset

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Row is an ordered column -> value mapping. Setting an existing column
// replaces its value in place; new columns are appended.
type Row struct {
	keys []string
	vals map[string]any
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{vals: make(map[string]any)}
}

// FromColumns builds a row from parallel column and value slices.
func FromColumns(cols []string, vals []any) *Row {
	r := &Row{keys: make([]string, 0, len(cols)), vals: make(map[string]any, len(cols))}
	for i, c := range cols {
		var v any
		if i < len(vals) {
			v = vals[i]
		}
		r.Set(c, v)
	}
	return r
}

// Merge folds rows left to right into a new row. Later rows win on shared
// columns; column order follows first appearance.
func Merge(rows ...*Row) *Row {
	out := NewRow()
	for _, r := range rows {
		out.Merge(r)
	}
	return out
}

// Get returns the value of col and whether it is present.
func (r *Row) Get(col string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.vals[col]
	return v, ok
}

// Value returns the value of col, or nil when absent.
func (r *Row) Value(col string) any {
	v, _ := r.Get(col)
	return v
}

// Set assigns col.
func (r *Row) Set(col string, v any) {
	if r.vals == nil {
		r.vals = make(map[string]any)
	}
	if _, ok := r.vals[col]; !ok {
		r.keys = append(r.keys, col)
	}
	r.vals[col] = v
}

// SetDefault assigns col only when it is not already present.
func (r *Row) SetDefault(col string, v any) {
	if _, ok := r.Get(col); ok {
		return
	}
	r.Set(col, v)
}

// Merge copies every column of other into r, overwriting shared columns.
func (r *Row) Merge(other *Row) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		r.Set(k, other.vals[k])
	}
}

// Keys returns the columns in order.
func (r *Row) Keys() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.keys)
}

// Len returns the number of columns.
func (r *Row) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Clone returns an independent copy.
func (r *Row) Clone() *Row {
	out := &Row{keys: slices.Clone(r.keys), vals: make(map[string]any, len(r.vals))}
	for k, v := range r.vals {
		out.vals[k] = v
	}
	return out
}

// Project returns a row holding only cols, in the order given. Columns the
// row lacks are skipped.
func (r *Row) Project(cols ...string) *Row {
	out := NewRow()
	for _, c := range cols {
		if v, ok := r.Get(c); ok {
			out.Set(c, v)
		}
	}
	return out
}

// Map returns the row as an unordered map.
func (r *Row) Map() map[string]any {
	out := make(map[string]any, r.Len())
	for _, k := range r.Keys() {
		out[k] = r.vals[k]
	}
	return out
}

// MarshalJSON encodes the row as an object with columns in order.
func (r *Row) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
