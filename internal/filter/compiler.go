package filter

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"aerodb/internal/dataerr"
	"aerodb/internal/schema"
	"aerodb/internal/sqlutil"
)

// Clause is one element of a filter: a predicate plus the connective joining
// it to the previous clause. Logic is ignored on the first clause.
type Clause struct {
	Kind   Kind   `json:"kind"`
	Column string `json:"column"`
	Value  any    `json:"value"`
	Logic  Logic  `json:"logic,omitempty"`
}

// Select describes a read of one registered entity.
type Select struct {
	Entity  schema.Entity
	Columns []string
	Clauses []Clause
	// Distinct deduplicates the projected rows.
	Distinct bool
	// OrderBy lists registered columns to sort by, ascending.
	OrderBy []string
}

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	Entity schema.Entity
	SQL    string
	Args   []any
}

// Compiler turns clause lists into SQL for one dialect.
type Compiler struct {
	registry *schema.Registry
	dialect  sqlutil.Dialect
}

// NewCompiler creates a compiler bound to a registry and dialect.
func NewCompiler(registry *schema.Registry, dialect sqlutil.Dialect) *Compiler {
	return &Compiler{registry: registry, dialect: dialect}
}

// Registry returns the registry identifiers are validated against.
func (c *Compiler) Registry() *schema.Registry {
	return c.registry
}

// Dialect returns the dialect statements are rendered for.
func (c *Compiler) Dialect() sqlutil.Dialect {
	return c.dialect
}

// Build renders one predicate on a registered column of entity. The fragment
// uses ? placeholders and the returned args are in placeholder order.
func (c *Compiler) Build(entity schema.Entity, column string, kind Kind, value any) (Predicate, error) {
	if err := c.registry.CheckColumns(entity, column); err != nil {
		return Predicate{}, err
	}
	return buildPredicate(c.dialect.Quote(column), kind, value)
}

// Where concatenates clauses in order with their connectives. No regrouping
// happens, so the usual AND-before-OR precedence of SQL applies.
func (c *Compiler) Where(entity schema.Entity, clauses []Clause) (Predicate, error) {
	var (
		b    strings.Builder
		args []any
	)
	for i, clause := range clauses {
		pred, err := c.Build(entity, clause.Column, clause.Kind, clause.Value)
		if err != nil {
			var argErr *dataerr.InvalidArgumentError
			if errors.As(err, &argErr) {
				argErr.Argument = fmt.Sprintf("clauses[%d].%s", i, argErr.Argument)
				return Predicate{}, argErr
			}
			return Predicate{}, fmt.Errorf("clause %d: %w", i, err)
		}
		if i > 0 {
			logic, err := ParseLogic(string(clause.Logic))
			if err != nil {
				return Predicate{}, &dataerr.InvalidArgumentError{
					Operation: "filter",
					Argument:  fmt.Sprintf("clauses[%d].logic", i),
					Reason:    err.Error(),
				}
			}
			b.WriteString(" ")
			b.WriteString(string(logic))
			b.WriteString(" ")
		}
		b.WriteString(pred.SQL)
		args = append(args, pred.Args...)
	}
	return Predicate{SQL: b.String(), Args: args}, nil
}

// Compile renders a SELECT. An empty clause list selects every row. An empty
// column list selects every registered column.
func (c *Compiler) Compile(s Select) (SQLQuery, error) {
	cols := s.Columns
	if len(cols) == 0 {
		var err error
		if cols, err = c.registry.Columns(s.Entity); err != nil {
			return SQLQuery{}, err
		}
	} else if err := c.registry.CheckColumns(s.Entity, cols...); err != nil {
		return SQLQuery{}, err
	}
	if err := c.registry.CheckColumns(s.Entity, s.OrderBy...); err != nil {
		return SQLQuery{}, err
	}

	builder := sq.Select(c.quoteAll(cols)...).
		From(c.dialect.Quote(string(s.Entity))).
		PlaceholderFormat(c.dialect.Placeholder())
	if s.Distinct {
		builder = builder.Distinct()
	}
	if len(s.Clauses) > 0 {
		where, err := c.Where(s.Entity, s.Clauses)
		if err != nil {
			return SQLQuery{}, err
		}
		builder = builder.Where(sq.Expr(where.SQL, where.Args...))
	}
	if len(s.OrderBy) > 0 {
		builder = builder.OrderBy(c.quoteAll(s.OrderBy)...)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{Entity: s.Entity, SQL: query, Args: args}, nil
}

// SelectIDs renders SELECT DISTINCT <key> for entity, ordered by key.
func (c *Compiler) SelectIDs(entity schema.Entity) (SQLQuery, error) {
	id, err := c.registry.IDColumn(entity)
	if err != nil {
		return SQLQuery{}, err
	}
	return c.Compile(Select{Entity: entity, Columns: []string{id}, Distinct: true, OrderBy: []string{id}})
}

// MaxID renders SELECT COALESCE(MAX(<key>), 0) for entity. The result is
// aliased to the key column so it is normalized like the key.
func (c *Compiler) MaxID(entity schema.Entity) (SQLQuery, error) {
	id, err := c.registry.IDColumn(entity)
	if err != nil {
		return SQLQuery{}, err
	}
	query, args, err := sq.Select(fmt.Sprintf("COALESCE(MAX(%[1]s), 0) AS %[1]s", c.dialect.Quote(id))).
		From(c.dialect.Quote(string(entity))).
		PlaceholderFormat(c.dialect.Placeholder()).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{Entity: entity, SQL: query, Args: args}, nil
}

// Insert renders a single-row INSERT.
func (c *Compiler) Insert(entity schema.Entity, cols []string, values []any) (SQLQuery, error) {
	if len(cols) != len(values) {
		return SQLQuery{}, fmt.Errorf("insert into %s: %d columns but %d values", entity, len(cols), len(values))
	}
	if err := c.registry.CheckColumns(entity, cols...); err != nil {
		return SQLQuery{}, err
	}
	query, args, err := sq.Insert(c.dialect.Quote(string(entity))).
		Columns(c.quoteAll(cols)...).
		Values(values...).
		PlaceholderFormat(c.dialect.Placeholder()).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{Entity: entity, SQL: query, Args: args}, nil
}

func (c *Compiler) quoteAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = c.dialect.Quote(col)
	}
	return out
}
