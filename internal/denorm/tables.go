package denorm

import (
	"context"

	"aerodb/internal/dataerr"
	"aerodb/internal/filter"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
)

// ListTable returns every row of entity in columnar form. An empty cols
// selects every registered column.
func (s *Service) ListTable(ctx context.Context, entity schema.Entity, cols []string) (*rowset.Table, error) {
	return s.Where(ctx, entity, nil, cols)
}

// Where returns the rows of entity matching clauses in columnar form.
func (s *Service) Where(ctx context.Context, entity schema.Entity, clauses []filter.Clause, cols []string) (*rowset.Table, error) {
	var order []string
	if id, err := s.registry.IDColumn(entity); err == nil {
		order = []string{id}
	}
	q, err := s.gw.Compiler().Compile(filter.Select{
		Entity:  entity,
		Columns: cols,
		Clauses: clauses,
		OrderBy: order,
	})
	if err != nil {
		return nil, err
	}
	return s.gw.Table(ctx, q)
}

// Get returns the row of entity with key id.
func (s *Service) Get(ctx context.Context, entity schema.Entity, id any) (*rowset.Row, error) {
	rows, _, err := s.fetchByIDs(ctx, s.gw, entity, []any{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &dataerr.NotFoundError{Entity: string(entity), ID: id}
	}
	return rows[0], nil
}

// IDToName returns the display name of the entity row with key id.
func (s *Service) IDToName(ctx context.Context, entity schema.Entity, id any) (any, error) {
	idCol, err := s.registry.IDColumn(entity)
	if err != nil {
		return nil, err
	}
	nameCol, err := s.registry.NameColumn(entity)
	if err != nil {
		return nil, err
	}
	rows, err := s.gw.Select(ctx, filter.Select{
		Entity:  entity,
		Columns: []string{nameCol},
		Clauses: []filter.Clause{{Kind: filter.Equal, Column: idCol, Value: id}},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &dataerr.NotFoundError{Entity: string(entity), ID: id}
	}
	return rows[0].Value(nameCol), nil
}
