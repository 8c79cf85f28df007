package denorm

import (
	"context"

	"aerodb/internal/dataerr"
	"aerodb/internal/gateway"
	"aerodb/internal/resolve"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/setutil"
	"aerodb/internal/view"
)

// standRef asks for one stand, optionally reached through a project.
type standRef struct {
	id      any
	project any
}

// FullStandData returns each stand merged with its client and project, in
// that order, so stand columns win on name clashes.
func (s *Service) FullStandData(ctx context.Context, ids resolve.IDs) (*Result, error) {
	res := &Result{}
	err := s.read(ctx, func(gw *gateway.Gateway) error {
		keys, err := resolve.Resolve(ctx, gw, schema.Stands, ids)
		if err != nil {
			return err
		}
		refs := make([]standRef, 0, len(keys))
		for _, k := range uniqueIDs(keys) {
			refs = append(refs, standRef{id: k})
		}
		rows, absent, err := s.fullStands(ctx, s.newHopper(gw), refs)
		if err != nil {
			return err
		}
		for i, r := range rows {
			if r == nil {
				res.Missing = append(res.Missing, refs[i].id)
				continue
			}
			res.Rows = append(res.Rows, r)
		}
		res.Absent = absent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FullStandDataView groups FullStandData by key, keeping only cols (plus key)
// when cols is set. An empty key returns the flat rows.
func (s *Service) FullStandDataView(ctx context.Context, ids resolve.IDs, key string, cols []string) (*Result, error) {
	check := append([]string{}, cols...)
	if key != "" {
		check = append(check, key)
	}
	if err := s.checkMerged("full_stand_data", standParts, check...); err != nil {
		return nil, err
	}

	res, err := s.FullStandData(ctx, ids)
	if err != nil {
		return nil, err
	}
	if key == "" {
		res.Rows = view.Project(res.Rows, cols, "")
		return res, nil
	}
	res.View = view.GroupBy(view.Project(res.Rows, cols, key), key)
	res.Rows = nil
	return res, nil
}

// FilterFullStandData returns the full stand rows that satisfy terms.
func (s *Service) FilterFullStandData(ctx context.Context, ids resolve.IDs, terms []view.Term) (*Result, error) {
	expr, err := view.Compile(terms)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(terms))
	for i, t := range terms {
		cols[i] = t.Column
	}
	if err := s.checkMerged("filter_full_stand_data", standParts, cols...); err != nil {
		return nil, err
	}

	res, err := s.FullStandData(ctx, ids)
	if err != nil {
		return nil, err
	}
	res.Rows = view.Filter(res.Rows, expr)
	return res, nil
}

// ProjectStands lists the stand rows of each project in listing order.
// Projects that do not exist are reported missing; listed stands with no row
// are reported absent.
func (s *Service) ProjectStands(ctx context.Context, ids resolve.IDs) (*Result, error) {
	res := &Result{}
	err := s.read(ctx, func(gw *gateway.Gateway) error {
		keys, err := resolve.Resolve(ctx, gw, schema.Projects, ids)
		if err != nil {
			return err
		}
		projects, missing, err := s.fetchByIDs(ctx, gw, schema.Projects, keys)
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
		byID := indexBy(stands, schema.StandPersistentID)

		v := view.New(schema.ProjectID)
		for _, k := range uniqueIDs(keys) {
			v.Append(k)
		}
		for _, p := range projects {
			pid := p.Value(schema.ProjectID)
			for _, sid := range members[setutil.Token(pid)] {
				st, ok := byID[setutil.Token(sid)]
				if !ok {
					res.Absent = append(res.Absent, Absent{Base: pid, Entity: schema.Stands})
					continue
				}
				v.Append(pid, st)
			}
		}
		res.View = v
		res.Missing = missing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ProjectFullStandData groups the full rows of each project's stands under
// the project key. A stand listed by several projects is merged with the
// project it is listed under.
func (s *Service) ProjectFullStandData(ctx context.Context, ids resolve.IDs) (*Result, error) {
	res := &Result{}
	err := s.read(ctx, func(gw *gateway.Gateway) error {
		keys, err := resolve.Resolve(ctx, gw, schema.Projects, ids)
		if err != nil {
			return err
		}
		projects, missing, err := s.fetchByIDs(ctx, gw, schema.Projects, keys)
		if err != nil {
			return err
		}
		members, err := s.membership.StandIDs(ctx, gw, projects)
		if err != nil {
			return err
		}

		var (
			refs   []standRef
			groups []any
		)
		for _, p := range projects {
			pid := p.Value(schema.ProjectID)
			for _, sid := range uniqueIDs(members[setutil.Token(pid)]) {
				refs = append(refs, standRef{id: sid, project: pid})
				groups = append(groups, pid)
			}
		}
		rows, absent, err := s.fullStands(ctx, s.newHopper(gw), refs)
		if err != nil {
			return err
		}

		v := view.New(schema.ProjectID)
		for _, k := range uniqueIDs(keys) {
			v.Append(k)
		}
		for i, r := range rows {
			if r == nil {
				absent = append(absent, Absent{Base: groups[i], Entity: schema.Stands})
				continue
			}
			v.Append(groups[i], r)
		}
		res.View, res.Missing, res.Absent = v, missing, absent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// standParts are the entities merged into a full stand row, in merge order.
var standParts = []schema.Entity{schema.Clients, schema.Projects, schema.Stands}

// fullStands builds one merged row per ref. The result is aligned with refs
// and holds nil where the stand does not exist.
func (s *Service) fullStands(ctx context.Context, h *hopper, refs []standRef) ([]*rowset.Row, []Absent, error) {
	ids := make([]any, len(refs))
	for i, r := range refs {
		ids[i] = r.id
	}
	stands, _, err := s.fetchByIDs(ctx, h.gw, schema.Stands, ids)
	if err != nil {
		return nil, nil, err
	}
	h.prime(schema.Stands, schema.StandPersistentID, stands)
	byID := indexBy(stands, schema.StandPersistentID)

	clientRel, err := s.registry.Relation(schema.Stands, schema.Clients)
	if err != nil {
		return nil, nil, err
	}

	out := make([]*rowset.Row, len(refs))
	absent := make([][]Absent, len(refs))
	err = s.fanOut(ctx, len(refs), func(ctx context.Context, i int) error {
		st, ok := byID[setutil.Token(refs[i].id)]
		if !ok {
			return nil
		}
		id := st.Value(schema.StandPersistentID)
		client, err := h.normalized(ctx, clientRel, st)
		if err != nil {
			return err
		}
		project, err := h.project(ctx, id, refs[i].project)
		if err != nil {
			return err
		}
		out[i], absent[i] = h.assemble(id,
			part{schema.Clients, client},
			part{schema.Projects, project},
			part{schema.Stands, st},
		)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, flatten(absent), nil
}

// checkMerged verifies cols exist on at least one of the merged entities.
func (s *Service) checkMerged(operation string, parts []schema.Entity, cols ...string) error {
	for _, c := range cols {
		found := false
		for _, e := range parts {
			if s.registry.HasColumn(e, c) {
				found = true
				break
			}
		}
		if !found {
			return &dataerr.SchemaError{Entity: operation, Column: c, Reason: "unknown column"}
		}
	}
	return nil
}

func indexBy(rows []*rowset.Row, col string) map[string]*rowset.Row {
	out := make(map[string]*rowset.Row, len(rows))
	for _, r := range rows {
		key := setutil.Token(r.Value(col))
		if _, ok := out[key]; !ok {
			out[key] = r
		}
	}
	return out
}

func flatten(parts [][]Absent) []Absent {
	var out []Absent
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
