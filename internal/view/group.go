// Package view reshapes flat rows: grouping by a key column, projecting
// columns, and filtering with a typed predicate tree.
package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"aerodb/internal/rowset"
)

// Group is the rows sharing one key value.
type Group struct {
	Key  any
	Rows []*rowset.Row
}

// View maps key values to row groups, ordered by first occurrence of each key.
type View struct {
	Column string
	Groups []Group
	index  map[string]int
}

// New creates an empty view keyed by column.
func New(column string) *View {
	return &View{Column: column, index: make(map[string]int)}
}

// GroupBy partitions rows by their value at key. Groups appear in the order
// their key first occurs and rows keep their relative order within a group.
// Rows without the key column group under nil.
func GroupBy(rows []*rowset.Row, key string) *View {
	v := New(key)
	for _, r := range rows {
		v.Append(r.Value(key), r)
	}
	return v
}

// Append adds rows to the group for key. A new key starts a group at the end,
// so appending a key with no rows reserves an empty group.
func (v *View) Append(key any, rows ...*rowset.Row) {
	ik := indexKey(key)
	i, ok := v.index[ik]
	if !ok {
		i = len(v.Groups)
		v.index[ik] = i
		v.Groups = append(v.Groups, Group{Key: key})
	}
	v.Groups[i].Rows = append(v.Groups[i].Rows, rows...)
}

// Get returns the rows grouped under key.
func (v *View) Get(key any) []*rowset.Row {
	if i, ok := v.index[indexKey(key)]; ok {
		return v.Groups[i].Rows
	}
	return nil
}

// Keys returns the group keys in order.
func (v *View) Keys() []any {
	keys := make([]any, len(v.Groups))
	for i, g := range v.Groups {
		keys[i] = g.Key
	}
	return keys
}

// Len returns the number of groups.
func (v *View) Len() int {
	return len(v.Groups)
}

// Rows flattens the view back into one slice, group by group.
func (v *View) Rows() []*rowset.Row {
	var out []*rowset.Row
	for _, g := range v.Groups {
		out = append(out, g.Rows...)
	}
	return out
}

// MarshalJSON encodes the view as an object keyed by KeyString of each group
// key, in group order. Keys of different types that render alike, such as 1
// and "1", cannot share an object and are rejected.
func (v *View) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	seen := make(map[string]struct{}, len(v.Groups))
	buf.WriteByte('{')
	for i, g := range v.Groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		ks := KeyString(g.Key)
		if _, dup := seen[ks]; dup {
			return nil, fmt.Errorf("view on %s: keys of different types both render as %q", v.Column, ks)
		}
		seen[ks] = struct{}{}
		key, err := json.Marshal(ks)
		if err != nil {
			return nil, err
		}
		rows := g.Rows
		if rows == nil {
			rows = []*rowset.Row{}
		}
		val, err := json.Marshal(rows)
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

// KeyString renders a group key as an object key. Strings are kept verbatim.
func KeyString(k any) string {
	switch t := k.(type) {
	case nil:
		return "null"
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339Nano)
	}
	if n, ok := wholeNumber(k); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(k)
}

// indexKey identifies a group by the type and exact value of its key. Whole
// numbers share one form whatever their Go type; nothing else is coerced.
func indexKey(k any) string {
	switch t := k.(type) {
	case nil:
		return "nil"
	case string:
		return "s:" + t
	case []byte:
		return "s:" + string(t)
	case time.Time:
		return "t:" + t.UTC().Format(time.RFC3339Nano)
	}
	if n, ok := wholeNumber(k); ok {
		return "n:" + strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%T:%v", k, k)
}

func wholeNumber(k any) (int64, bool) {
	switch n := k.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	case float32:
		return wholeNumber(float64(n))
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
	}
	return 0, false
}

// Project keeps cols in each row, in the order given, plus key when key is
// not already listed. An empty cols keeps rows unchanged.
func Project(rows []*rowset.Row, cols []string, key string) []*rowset.Row {
	if len(cols) == 0 {
		return rows
	}
	keep := cols
	if key != "" && !slices.Contains(cols, key) {
		keep = append(append([]string{}, cols...), key)
	}
	out := make([]*rowset.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Project(keep...)
	}
	return out
}
