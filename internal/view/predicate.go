package view

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"aerodb/internal/dataerr"
	"aerodb/internal/rowset"
	"aerodb/internal/setutil"
)

// Comparator compares a row value with an operand.
type Comparator string

const (
	Eq       Comparator = "eq"
	Ne       Comparator = "ne"
	Lt       Comparator = "lt"
	Le       Comparator = "le"
	Gt       Comparator = "gt"
	Ge       Comparator = "ge"
	In       Comparator = "in"
	Like     Comparator = "like"
	Contains Comparator = "contains"
)

var comparatorAliases = map[string]Comparator{
	"eq": Eq, "=": Eq, "==": Eq,
	"ne": Ne, "!=": Ne, "<>": Ne,
	"lt": Lt, "<": Lt,
	"le": Le, "<=": Le,
	"gt": Gt, ">": Gt,
	"ge": Ge, ">=": Ge,
	"in":       In,
	"like":     Like,
	"contains": Contains,
}

// ParseComparator accepts a comparator name or its symbol.
func ParseComparator(s string) (Comparator, error) {
	if c, ok := comparatorAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown comparator %q", s)
}

// Term is one element of a filter. Op joins it to the previous term and is
// ignored on the first term.
type Term struct {
	Op         string     `json:"op,omitempty"`
	Column     string     `json:"column"`
	Comparator Comparator `json:"comparator"`
	Value      any        `json:"value"`
}

// Expr is a node of a compiled filter.
type Expr interface {
	Eval(r *rowset.Row) bool
}

// AndExpr is true when every child is true.
type AndExpr []Expr

func (e AndExpr) Eval(r *rowset.Row) bool {
	for _, c := range e {
		if !c.Eval(r) {
			return false
		}
	}
	return true
}

// OrExpr is true when any child is true.
type OrExpr []Expr

func (e OrExpr) Eval(r *rowset.Row) bool {
	for _, c := range e {
		if c.Eval(r) {
			return true
		}
	}
	return false
}

// Compare tests one column of a row.
type Compare struct {
	Column     string
	Comparator Comparator
	Value      any

	pattern *regexp.Regexp
	list    []any
}

// Compile builds an expression tree from terms. AND binds tighter than OR, so
// "a OR b AND c" is a OR (b AND c). No terms yields an expression that is
// always true.
func Compile(terms []Term) (Expr, error) {
	var (
		or      OrExpr
		current AndExpr
	)
	for i, t := range terms {
		cmp, err := newCompare(t)
		if err != nil {
			return nil, &dataerr.InvalidArgumentError{Operation: "filter", Argument: fmt.Sprintf("predicates[%d]", i), Reason: err.Error()}
		}
		if i > 0 {
			switch strings.ToUpper(strings.TrimSpace(t.Op)) {
			case "AND":
			case "OR":
				or = append(or, current)
				current = nil
			default:
				return nil, &dataerr.InvalidArgumentError{Operation: "filter", Argument: fmt.Sprintf("predicates[%d].op", i), Reason: fmt.Sprintf("op must be AND or OR, got %q", t.Op)}
			}
		}
		current = append(current, cmp)
	}
	if len(current) > 0 {
		or = append(or, current)
	}
	if len(or) == 1 {
		return or[0], nil
	}
	if len(or) == 0 {
		return AndExpr{}, nil
	}
	return or, nil
}

// Filter returns the rows for which expr is true, in order.
func Filter(rows []*rowset.Row, expr Expr) []*rowset.Row {
	out := make([]*rowset.Row, 0, len(rows))
	for _, r := range rows {
		if expr.Eval(r) {
			out = append(out, r)
		}
	}
	return out
}

func newCompare(t Term) (*Compare, error) {
	if strings.TrimSpace(t.Column) == "" {
		return nil, fmt.Errorf("column is required")
	}
	cmp, err := ParseComparator(string(t.Comparator))
	if err != nil {
		return nil, err
	}
	c := &Compare{Column: t.Column, Comparator: cmp, Value: t.Value}
	switch cmp {
	case Like:
		s, ok := t.Value.(string)
		if !ok {
			return nil, fmt.Errorf("like needs a string pattern")
		}
		c.pattern = regexp.MustCompile(likeToRegex(s))
	case In:
		if t.Value == nil {
			return nil, fmt.Errorf("in needs a list")
		}
		rv := reflect.ValueOf(t.Value)
		if rv.Kind() != reflect.Slice {
			return nil, fmt.Errorf("in needs a list")
		}
		c.list = make([]any, rv.Len())
		for i := range c.list {
			c.list[i] = rv.Index(i).Interface()
		}
	case Contains:
		if t.Value == nil {
			return nil, fmt.Errorf("contains needs a value")
		}
	}
	return c, nil
}

func (c *Compare) Eval(r *rowset.Row) bool {
	v, ok := r.Get(c.Column)
	if !ok {
		return false
	}
	switch c.Comparator {
	case Eq:
		return equal(v, c.Value)
	case Ne:
		return !equal(v, c.Value)
	case Lt, Le, Gt, Ge:
		order, ok := compare(v, c.Value)
		if !ok {
			return false
		}
		switch c.Comparator {
		case Lt:
			return order < 0
		case Le:
			return order <= 0
		case Gt:
			return order > 0
		default:
			return order >= 0
		}
	case In:
		for _, item := range c.list {
			if equal(v, item) {
				return true
			}
		}
		return false
	case Like:
		if v == nil {
			return false
		}
		return c.pattern.MatchString(setutil.Token(v))
	case Contains:
		s, ok := v.(string)
		return ok && setutil.Contains(s, c.Value)
	}
	return false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if order, ok := compare(a, b); ok {
		return order == 0
	}
	return setutil.Token(a) == setutil.Token(b)
}

// compare orders two values of compatible kinds: numbers with numbers,
// strings with strings, times with times or RFC 3339 strings.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmpOrdered(fa, fb), true
		}
		return 0, false
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func cmpOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, time.DateOnly, time.DateTime} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// likeToRegex translates a SQL LIKE pattern into an anchored, case-insensitive
// regular expression. % matches any run of characters and _ matches one.
func likeToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
