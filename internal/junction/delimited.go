package junction

import (
	"context"
	"fmt"

	"aerodb/internal/filter"
	"aerodb/internal/gateway"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/setutil"
)

type delimited struct{}

// ProjectsContaining narrows candidates with LIKE in storage, then keeps only
// exact token matches so 1 does not match "15,23".
func (delimited) ProjectsContaining(ctx context.Context, gw *gateway.Gateway, standID any) ([]*rowset.Row, error) {
	candidates, err := gw.Select(ctx, filter.Select{
		Entity:  schema.Projects,
		Clauses: []filter.Clause{{Kind: filter.Like, Column: schema.StandList, Value: standID}},
		OrderBy: []string{schema.ProjectID},
	})
	if err != nil {
		return nil, err
	}
	matches := candidates[:0]
	for _, p := range candidates {
		list, _ := p.Value(schema.StandList).(string)
		if setutil.Contains(list, standID) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func (delimited) StandIDs(_ context.Context, _ *gateway.Gateway, projects []*rowset.Row) (map[string][]any, error) {
	out := make(map[string][]any, len(projects))
	for _, p := range projects {
		list, _ := p.Value(schema.StandList).(string)
		ids, err := setutil.ParseIDs(list)
		if err != nil {
			return nil, fmt.Errorf("project %v: %w", p.Value(schema.ProjectID), err)
		}
		members := make([]any, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		out[setutil.Token(p.Value(schema.ProjectID))] = members
	}
	return out, nil
}
