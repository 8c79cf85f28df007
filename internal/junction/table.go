package junction

import (
	"context"

	"aerodb/internal/filter"
	"aerodb/internal/gateway"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/setutil"
)

type joinTable struct{}

func (j joinTable) ProjectsContaining(ctx context.Context, gw *gateway.Gateway, standID any) ([]*rowset.Row, error) {
	links, err := gw.Select(ctx, filter.Select{
		Entity:  schema.ProjectStands,
		Columns: []string{schema.ProjectID},
		Clauses: []filter.Clause{{Kind: filter.Equal, Column: schema.StandPersistentID, Value: standID}},
		OrderBy: []string{schema.ProjectID},
	})
	if err != nil || len(links) == 0 {
		return nil, err
	}
	projectIDs := make([]any, len(links))
	for i, l := range links {
		projectIDs[i] = l.Value(schema.ProjectID)
	}
	projects, err := gw.Select(ctx, filter.Select{
		Entity:  schema.Projects,
		Clauses: []filter.Clause{{Kind: filter.In, Column: schema.ProjectID, Value: projectIDs}},
		OrderBy: []string{schema.ProjectID},
	})
	if err != nil {
		return nil, err
	}
	if _, err := j.fill(ctx, gw, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (j joinTable) StandIDs(ctx context.Context, gw *gateway.Gateway, projects []*rowset.Row) (map[string][]any, error) {
	return j.fill(ctx, gw, projects)
}

// fill loads membership for projects in one query and rewrites each project's
// STAND_PERSISTENT_IDS with the canonical list, so rows look the same under
// either strategy.
func (joinTable) fill(ctx context.Context, gw *gateway.Gateway, projects []*rowset.Row) (map[string][]any, error) {
	out := make(map[string][]any, len(projects))
	if len(projects) == 0 {
		return out, nil
	}
	projectIDs := make([]any, len(projects))
	for i, p := range projects {
		projectIDs[i] = p.Value(schema.ProjectID)
	}
	links, err := gw.Select(ctx, filter.Select{
		Entity:  schema.ProjectStands,
		Clauses: []filter.Clause{{Kind: filter.In, Column: schema.ProjectID, Value: projectIDs}},
		OrderBy: []string{schema.ProjectID, schema.StandPersistentID},
	})
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		key := setutil.Token(l.Value(schema.ProjectID))
		out[key] = append(out[key], l.Value(schema.StandPersistentID))
	}
	for _, p := range projects {
		key := setutil.Token(p.Value(schema.ProjectID))
		members := out[key]
		if members == nil {
			members = []any{}
			out[key] = members
		}
		list, err := setutil.JoinAny(members)
		if err != nil {
			return nil, err
		}
		p.Set(schema.StandList, list)
	}
	return out, nil
}
