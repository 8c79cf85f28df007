// Package denorm answers the hierarchy's read operations by chaining
// single-table queries and merging the related rows, and allocates keys for
// new clients.
package denorm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"aerodb/internal/dbexec"
	"aerodb/internal/filter"
	"aerodb/internal/gateway"
	"aerodb/internal/junction"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/setutil"
	"aerodb/internal/view"
)

const (
	defaultConcurrency     = 8
	defaultAllocateRetries = 3

	// inChunk caps the keys bound into one IN clause.
	inChunk = 500
)

// Config tunes the service.
type Config struct {
	// Concurrency bounds the hops in flight for one request.
	Concurrency int
	// Snapshot runs each multi-hop read inside one read-only transaction.
	Snapshot bool
	// StrictProjectJoin fails a stand read when the stand is listed by more
	// than one project. Otherwise the lowest project key wins.
	StrictProjectJoin bool
	// AllocateRetries bounds key allocation attempts for AddClient.
	AllocateRetries int
}

// Service runs the read and write operations against one gateway.
type Service struct {
	gw         *gateway.Gateway
	registry   *schema.Registry
	beginner   dbexec.Beginner
	membership junction.Membership
	cfg        Config
	logger     *slog.Logger
}

// New creates a service. beginner may be nil, in which case snapshot reads
// are disabled and AddClient runs without a transaction.
func New(gw *gateway.Gateway, beginner dbexec.Beginner, membership junction.Membership, cfg Config, logger *slog.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.AllocateRetries <= 0 {
		cfg.AllocateRetries = defaultAllocateRetries
	}
	if membership == nil {
		membership = junction.New(junction.Delimited)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gw:         gw,
		registry:   gw.Compiler().Registry(),
		beginner:   beginner,
		membership: membership,
		cfg:        cfg,
		logger:     logger,
	}
}

// Registry returns the schema registry the service reads with.
func (s *Service) Registry() *schema.Registry {
	return s.registry
}

// Absent records a hop that found no related row. The merged row carries the
// related entity's columns as nulls.
type Absent struct {
	Base   any           `json:"base"`
	Entity schema.Entity `json:"entity"`
}

// Result is the outcome of a read: either flat rows or a grouped view. Missing
// lists requested keys with no base row.
type Result struct {
	Rows    []*rowset.Row
	View    *view.View
	Missing []any
	Absent  []Absent
}

func (r *Result) MarshalJSON() ([]byte, error) {
	missing := r.Missing
	if missing == nil {
		missing = []any{}
	}
	if r.View != nil {
		return json.Marshal(struct {
			View    *view.View `json:"view"`
			Missing []any      `json:"missing"`
			Absent  []Absent   `json:"absent,omitempty"`
		}{r.View, missing, r.Absent})
	}
	rows := r.Rows
	if rows == nil {
		rows = []*rowset.Row{}
	}
	return json.Marshal(struct {
		Rows    []*rowset.Row `json:"rows"`
		Missing []any         `json:"missing"`
		Absent  []Absent      `json:"absent,omitempty"`
	}{rows, missing, r.Absent})
}

// read runs fn against the pool, or inside a snapshot transaction when
// configured.
func (s *Service) read(ctx context.Context, fn func(gw *gateway.Gateway) error) error {
	if !s.cfg.Snapshot || s.beginner == nil {
		return fn(s.gw)
	}
	tx, err := s.beginner.BeginTx(ctx, s.gw.Compiler().Dialect().SnapshotTxOptions())
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	if err := fn(s.gw.WithExecutor(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WarnContext(ctx, "snapshot rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("end snapshot: %w", err)
	}
	return nil
}

// fanOut calls fn for 0..n-1 with at most Concurrency calls running. The
// first error cancels the rest.
func (s *Service) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error { return fn(gctx, i) })
	}
	return g.Wait()
}

// fetchByIDs loads entity rows whose key is in ids and returns them in the
// order of ids, each key once. Keys with no row are returned as missing.
func (s *Service) fetchByIDs(ctx context.Context, gw *gateway.Gateway, entity schema.Entity, ids []any, cols ...string) ([]*rowset.Row, []any, error) {
	idCol, err := s.registry.IDColumn(entity)
	if err != nil {
		return nil, nil, err
	}
	if len(cols) > 0 && !slices.Contains(cols, idCol) {
		cols = append([]string{idCol}, cols...)
	}
	ids = uniqueIDs(ids)

	var fetched []*rowset.Row
	for start := 0; start < len(ids); start += inChunk {
		end := min(start+inChunk, len(ids))
		rows, err := gw.Select(ctx, filter.Select{
			Entity:  entity,
			Columns: cols,
			Clauses: []filter.Clause{{Kind: filter.In, Column: idCol, Value: ids[start:end]}},
		})
		if err != nil {
			return nil, nil, err
		}
		fetched = append(fetched, rows...)
	}

	byID := make(map[string]*rowset.Row, len(fetched))
	for _, r := range fetched {
		key := setutil.Token(r.Value(idCol))
		if _, dup := byID[key]; !dup {
			byID[key] = r
		}
	}
	ordered := make([]*rowset.Row, 0, len(ids))
	var missing []any
	for _, id := range ids {
		if r, ok := byID[setutil.Token(id)]; ok {
			ordered = append(ordered, r)
		} else {
			missing = append(missing, id)
		}
	}
	return ordered, missing, nil
}

// selectWhereIn loads rows whose column value is in values, ordered by key.
func (s *Service) selectWhereIn(ctx context.Context, gw *gateway.Gateway, entity schema.Entity, column string, values []any) ([]*rowset.Row, error) {
	values = uniqueIDs(values)
	if len(values) == 0 {
		return nil, nil
	}
	idCol, err := s.registry.IDColumn(entity)
	if err != nil {
		return nil, err
	}
	var out []*rowset.Row
	for start := 0; start < len(values); start += inChunk {
		end := min(start+inChunk, len(values))
		rows, err := gw.Select(ctx, filter.Select{
			Entity:  entity,
			Clauses: []filter.Clause{{Kind: filter.In, Column: column, Value: values[start:end]}},
			OrderBy: []string{idCol},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// uniqueIDs drops repeated keys, comparing by token so 3 and "3" are one key.
func uniqueIDs(ids []any) []any {
	seen := make(map[string]struct{}, len(ids))
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if id == nil {
			continue
		}
		key := setutil.Token(id)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
	}
	return out
}
