// Package render prints operation results for a terminal: aligned tables
// with highlighted headers, or indented JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"aerodb/internal/denorm"
	"aerodb/internal/ops"
	"aerodb/internal/rowset"
	"aerodb/internal/view"
)

// Formats accepted by Options.Format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Options control rendering.
type Options struct {
	Format string
	Color  bool
}

// Printer writes results to one destination.
type Printer struct {
	w      io.Writer
	format string
	header *color.Color
	group  *color.Color
	dim    *color.Color
}

// New returns a printer. An empty format means table.
func New(w io.Writer, opts Options) (*Printer, error) {
	switch opts.Format {
	case "", FormatTable:
		opts.Format = FormatTable
	case FormatJSON:
	default:
		return nil, fmt.Errorf("invalid format %q: must be table or json", opts.Format)
	}
	p := &Printer{
		w:      w,
		format: opts.Format,
		header: color.New(color.FgCyan, color.Bold),
		group:  color.New(color.FgYellow, color.Bold),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.header, p.group, p.dim} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p, nil
}

// Print renders one operation result.
func (p *Printer) Print(result any) error {
	if p.format == FormatJSON {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	switch r := result.(type) {
	case *denorm.Result:
		return p.result(r)
	case *rowset.Table:
		return p.rows(r.Rows())
	case *rowset.Row:
		return p.rows([]*rowset.Row{r})
	case ops.NameResult:
		_, err := fmt.Fprintf(p.w, "%s %s: %s\n", r.Entity, cell(r.ID), cell(r.Name))
		return err
	case []ops.Description:
		return p.operations(r)
	default:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

func (p *Printer) result(r *denorm.Result) error {
	if r.View != nil {
		if err := p.view(r.View); err != nil {
			return err
		}
	} else if err := p.rows(r.Rows); err != nil {
		return err
	}
	if len(r.Missing) > 0 {
		keys := make([]string, len(r.Missing))
		for i, k := range r.Missing {
			keys[i] = cell(k)
		}
		if _, err := p.dim.Fprintf(p.w, "missing: %s\n", strings.Join(keys, ", ")); err != nil {
			return err
		}
	}
	for _, a := range r.Absent {
		if _, err := p.dim.Fprintf(p.w, "absent: %s for %s\n", a.Entity, cell(a.Base)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) view(v *view.View) error {
	for i, g := range v.Groups {
		if i > 0 {
			if _, err := fmt.Fprintln(p.w); err != nil {
				return err
			}
		}
		if _, err := p.group.Fprintf(p.w, "%s = %s\n", v.Column, view.KeyString(g.Key)); err != nil {
			return err
		}
		if err := p.rows(g.Rows); err != nil {
			return err
		}
	}
	return nil
}

// rows prints an aligned table over the union of row columns.
func (p *Printer) rows(rows []*rowset.Row) error {
	t := rowset.ToTable(rows)
	n := t.Len()
	if len(t.Columns) == 0 {
		_, err := p.dim.Fprintln(p.w, "(0 rows)")
		return err
	}

	widths := make([]int, len(t.Columns))
	cells := make([][]string, n)
	for c, col := range t.Columns {
		widths[c] = utf8.RuneCountInString(col)
	}
	for i := range cells {
		cells[i] = make([]string, len(t.Columns))
		for c, col := range t.Columns {
			s := cell(t.Data[col][i])
			cells[i][c] = s
			widths[c] = max(widths[c], utf8.RuneCountInString(s))
		}
	}

	var b strings.Builder
	for c, col := range t.Columns {
		if c > 0 {
			b.WriteString("  ")
		}
		b.WriteString(p.header.Sprint(pad(col, widths[c], c == len(t.Columns)-1)))
	}
	b.WriteByte('\n')
	for c := range t.Columns {
		if c > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", widths[c]))
	}
	b.WriteByte('\n')
	for _, row := range cells {
		for c, s := range row {
			if c > 0 {
				b.WriteString("  ")
			}
			b.WriteString(pad(s, widths[c], c == len(row)-1))
		}
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(p.w, b.String()); err != nil {
		return err
	}

	noun := "rows"
	if n == 1 {
		noun = "row"
	}
	_, err := p.dim.Fprintf(p.w, "(%d %s)\n", n, noun)
	return err
}

func (p *Printer) operations(descs []ops.Description) error {
	width := 0
	for _, d := range descs {
		width = max(width, len(d.Name))
	}
	for _, d := range descs {
		params := make([]string, len(d.Params))
		for i, prm := range d.Params {
			params[i] = prm.Name
			if prm.Required {
				params[i] += "*"
			}
		}
		mode := "read "
		if d.Write {
			mode = "write"
		}
		if _, err := fmt.Fprintf(p.w, "%s  %s  %s  [%s]\n",
			p.header.Sprint(pad(d.Name, width, false)), mode, d.Doc, strings.Join(params, " ")); err != nil {
			return err
		}
	}
	return nil
}

// pad right-pads s to width; the last column is left unpadded.
func pad(s string, width int, last bool) string {
	if last {
		return s
	}
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
