package rowset

import (
	"bytes"
	"encoding/json"
)

// Table is the columnar form of a result: one value slice per column, all of
// equal length.
type Table struct {
	Columns []string
	Data    map[string][]any
}

// ToTable pivots rows into columns. The column set is the union of row
// columns in first-appearance order; missing cells are nil.
func ToTable(rows []*Row) *Table {
	t := &Table{Data: make(map[string][]any)}
	for _, r := range rows {
		for _, k := range r.keys {
			if _, ok := t.Data[k]; !ok {
				t.Columns = append(t.Columns, k)
				t.Data[k] = nil
			}
		}
	}
	for _, c := range t.Columns {
		col := make([]any, len(rows))
		for i, r := range rows {
			col[i] = r.Value(c)
		}
		t.Data[c] = col
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Data[t.Columns[0]])
}

// Rows pivots the table back into rows.
func (t *Table) Rows() []*Row {
	n := t.Len()
	rows := make([]*Row, n)
	for i := range rows {
		r := NewRow()
		for _, c := range t.Columns {
			r.Set(c, t.Data[c][i])
		}
		rows[i] = r
	}
	return rows
}

// MarshalJSON encodes the table as {"column": [values...]} with columns in order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range t.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		vals := t.Data[c]
		if vals == nil {
			vals = []any{}
		}
		val, err := json.Marshal(vals)
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
