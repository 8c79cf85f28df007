package render

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aerodb/internal/denorm"
	"aerodb/internal/ops"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/view"
)

func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
}

func render(t *testing.T, opts Options, result any) []byte {
	t.Helper()
	var buf bytes.Buffer
	p, err := New(&buf, opts)
	require.NoError(t, err)
	require.NoError(t, p.Print(result))
	return buf.Bytes()
}

func clientRows() []*rowset.Row {
	cols := []string{"CLIENT_ID", "CLIENT_NAME", "NOTES"}
	return []*rowset.Row{
		rowset.FromColumns(cols, []any{int64(1), "Acme", nil}),
		rowset.FromColumns(cols, []any{int64(12), []byte("Birch"), "x"}),
	}
}

func TestPrint_Rows(t *testing.T) {
	res := &denorm.Result{
		Rows:    clientRows(),
		Missing: []any{int64(99)},
		Absent:  []denorm.Absent{{Base: int64(12), Entity: schema.Projects}},
	}
	golden(t).Assert(t, "rows", render(t, Options{}, res))
}

func TestPrint_View(t *testing.T) {
	cols := []string{"PROJECT_ID", "PROJECT_NAME"}
	v := view.New("CLIENT_ID")
	v.Append(int64(1), rowset.FromColumns(cols, []any{int64(1), "North"}))
	v.Append(int64(2),
		rowset.FromColumns(cols, []any{int64(2), "South"}),
		rowset.FromColumns(cols, []any{int64(3), "Süd"}),
	)
	golden(t).Assert(t, "view", render(t, Options{Format: FormatTable}, &denorm.Result{View: v}))
}

func TestPrint_Operations(t *testing.T) {
	descs := []ops.Description{
		{Name: "add_client", Doc: "Create a client.", Write: true, Params: []ops.Param{
			{Name: "name", Required: true}, {Name: "notes"},
		}},
		{Name: "get", Doc: "Fetch one row by key.", Params: []ops.Param{
			{Name: "entity", Required: true}, {Name: "id", Required: true},
		}},
	}
	golden(t).Assert(t, "operations", render(t, Options{}, descs))
}

func TestPrint_Scalars(t *testing.T) {
	out := render(t, Options{}, ops.NameResult{Entity: schema.Clients, ID: int64(2), Name: "Birch"})
	assert.Equal(t, "clients 2: Birch\n", string(out))

	out = render(t, Options{}, rowset.FromColumns([]string{"FLIGHT_DATE"}, []any{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}))
	assert.Equal(t, "FLIGHT_DATE\n-----------\n2024-05-01\n(1 row)\n", string(out))

	out = render(t, Options{}, &rowset.Table{})
	assert.Equal(t, "(0 rows)\n", string(out))
}

func TestPrint_JSON(t *testing.T) {
	out := render(t, Options{Format: FormatJSON}, &denorm.Result{Rows: clientRows()[:1]})
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, []any{}, decoded["missing"])
	assert.Contains(t, string(out), "\n  \"rows\"")
}

func TestPrint_Color(t *testing.T) {
	out := render(t, Options{Color: true}, rowset.FromColumns([]string{"A"}, []any{1}))
	assert.Contains(t, string(out), "\x1b[")

	out = render(t, Options{Color: false}, rowset.FromColumns([]string{"A"}, []any{1}))
	assert.NotContains(t, string(out), "\x1b[")
}

func TestNew_RejectsFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, Options{Format: "csv"})
	assert.Error(t, err)
}
