package denorm

import (
	"context"

	"aerodb/internal/gateway"
	"aerodb/internal/resolve"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/setutil"
)

// Nested column names used by Hierarchy.
const (
	ProjectsColumn = "PROJECTS"
	StandsColumn   = "STANDS"
)

// Hierarchy returns one row per client with its projects nested under
// PROJECTS and each project's stands nested under STANDS, in listing order.
// It costs four round trips whatever the number of clients.
func (s *Service) Hierarchy(ctx context.Context, ids resolve.IDs) (*Result, error) {
	res := &Result{}
	err := s.read(ctx, func(gw *gateway.Gateway) error {
		keys, err := resolve.Resolve(ctx, gw, schema.Clients, ids)
		if err != nil {
			return err
		}
		clients, missing, err := s.fetchByIDs(ctx, gw, schema.Clients, keys)
		if err != nil {
			return err
		}
		projects, err := s.selectWhereIn(ctx, gw, schema.Projects, schema.ClientID, keys)
		if err != nil {
			return err
		}
		members, err := s.membership.StandIDs(ctx, gw, projects)
		if err != nil {
			return err
		}
		var standIDs []any
		for _, p := range projects {
			standIDs = append(standIDs, members[setutil.Token(p.Value(schema.ProjectID))]...)
		}
		stands, _, err := s.fetchByIDs(ctx, gw, schema.Stands, standIDs)
		if err != nil {
			return err
		}
		standByID := indexBy(stands, schema.StandPersistentID)

		projectsByClient := make(map[string][]*rowset.Row)
		for _, p := range projects {
			pid := p.Value(schema.ProjectID)
			nested := make([]*rowset.Row, 0)
			for _, sid := range members[setutil.Token(pid)] {
				st, ok := standByID[setutil.Token(sid)]
				if !ok {
					res.Absent = append(res.Absent, Absent{Base: pid, Entity: schema.Stands})
					continue
				}
				nested = append(nested, st)
			}
			node := p.Clone()
			node.Set(StandsColumn, nested)
			k := setutil.Token(p.Value(schema.ClientID))
			projectsByClient[k] = append(projectsByClient[k], node)
		}

		for _, c := range clients {
			node := c.Clone()
			nested := projectsByClient[setutil.Token(c.Value(schema.ClientID))]
			if nested == nil {
				nested = make([]*rowset.Row, 0)
			}
			node.Set(ProjectsColumn, nested)
			res.Rows = append(res.Rows, node)
		}
		res.Missing = missing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
