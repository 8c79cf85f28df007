package denorm

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"aerodb/internal/dataerr"
	"aerodb/internal/filter"
	"aerodb/internal/gateway"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/setutil"
)

// hopper resolves hops for one request. Each distinct lookup reaches storage
// once; concurrent callers asking for the same row share the round trip.
type hopper struct {
	s  *Service
	gw *gateway.Gateway

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string][]*rowset.Row
}

func (s *Service) newHopper(gw *gateway.Gateway) *hopper {
	return &hopper{s: s, gw: gw, memo: make(map[string][]*rowset.Row)}
}

func memoKey(entity schema.Entity, column string, value any) string {
	return string(entity) + "\x00" + column + "\x00" + setutil.Token(value)
}

// prime records rows already loaded by key so later hops skip the query.
func (h *hopper) prime(entity schema.Entity, column string, rows []*rowset.Row) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range rows {
		v := r.Value(column)
		if v == nil {
			continue
		}
		k := memoKey(entity, column, v)
		h.memo[k] = append(h.memo[k], r)
	}
}

// primeEmpty records that no row of entity has column = value.
func (h *hopper) primeEmpty(entity schema.Entity, column string, values []any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, v := range values {
		k := memoKey(entity, column, v)
		if _, ok := h.memo[k]; !ok {
			h.memo[k] = nil
		}
	}
}

func (h *hopper) lookup(ctx context.Context, entity schema.Entity, column string, value any, load func(context.Context) ([]*rowset.Row, error)) ([]*rowset.Row, error) {
	k := memoKey(entity, column, value)
	h.mu.Lock()
	rows, ok := h.memo[k]
	h.mu.Unlock()
	if ok {
		return rows, nil
	}

	v, err, _ := h.group.Do(k, func() (any, error) {
		rows, err := load(ctx)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.memo[k] = rows
		h.mu.Unlock()
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*rowset.Row), nil
}

// normalized follows rel from one base row: an EQUAL match on the foreign
// key that should find one row. It returns nil when nothing matches and the
// first row when several do.
func (h *hopper) normalized(ctx context.Context, rel schema.Relation, base *rowset.Row) (*rowset.Row, error) {
	value := base.Value(rel.FromColumn)
	if value == nil {
		return nil, nil
	}
	rows, err := h.lookup(ctx, rel.To, rel.ToColumn, value, func(ctx context.Context) ([]*rowset.Row, error) {
		return h.gw.Select(ctx, filter.Select{
			Entity:  rel.To,
			Clauses: []filter.Clause{{Kind: filter.Equal, Column: rel.ToColumn, Value: value}},
		})
	})
	if err != nil {
		return nil, err
	}
	if len(rows) > 1 {
		h.s.logger.WarnContext(ctx, "normalized hop matched several rows, using the first",
			slog.String("from", string(rel.From)),
			slog.String("to", string(rel.To)),
			slog.String("column", rel.ToColumn),
			slog.Any("value", value),
			slog.Int("matches", len(rows)),
		)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// project finds the project listing standID. hint, when set, names the
// project the caller reached the stand through and wins if it lists the stand.
func (h *hopper) project(ctx context.Context, standID, hint any) (*rowset.Row, error) {
	rows, err := h.lookup(ctx, schema.Projects, schema.StandList, standID, func(ctx context.Context) ([]*rowset.Row, error) {
		return h.s.membership.ProjectsContaining(ctx, h.gw, standID)
	})
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	}

	if hint != nil {
		for _, p := range rows {
			if setutil.Token(p.Value(schema.ProjectID)) == setutil.Token(hint) {
				return p, nil
			}
		}
	}

	ids := make([]any, len(rows))
	for i, p := range rows {
		ids[i] = p.Value(schema.ProjectID)
	}
	if h.s.cfg.StrictProjectJoin {
		return nil, &dataerr.AmbiguousJoinError{
			From:       string(schema.Stands),
			To:         string(schema.Projects),
			ID:         standID,
			Candidates: ids,
		}
	}

	sorted := slices.Clone(rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessKey(sorted[i].Value(schema.ProjectID), sorted[j].Value(schema.ProjectID))
	})
	h.s.logger.WarnContext(ctx, "stand listed by several projects, using the lowest key",
		slog.Any("stand", standID),
		slog.Any("projects", ids),
		slog.Any("chosen", sorted[0].Value(schema.ProjectID)),
	)
	return sorted[0], nil
}

func lessKey(a, b any) bool {
	ai, aok := a.(int64)
	bi, bok := b.(int64)
	if aok && bok {
		return ai < bi
	}
	return setutil.Token(a) < setutil.Token(b)
}

// part is one input to a merged row.
type part struct {
	entity schema.Entity
	row    *rowset.Row
}

// assemble merges parts in order with last-write-wins. A part with no row
// contributes its entity's columns as nulls without replacing values already
// merged, and is reported as absent.
func (h *hopper) assemble(base any, parts ...part) (*rowset.Row, []Absent) {
	out := rowset.NewRow()
	var absent []Absent
	for _, p := range parts {
		if p.row != nil {
			out.Merge(p.row)
			continue
		}
		absent = append(absent, Absent{Base: base, Entity: p.entity})
		cols, err := h.s.registry.Columns(p.entity)
		if err != nil {
			continue
		}
		for _, c := range cols {
			out.SetDefault(c, nil)
		}
	}
	return out, absent
}
