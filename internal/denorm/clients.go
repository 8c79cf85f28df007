package denorm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"aerodb/internal/dataerr"
	"aerodb/internal/filter"
	"aerodb/internal/gateway"
	"aerodb/internal/resolve"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/setutil"
	"aerodb/internal/sqlutil"
	"aerodb/internal/view"
)

// ClientProjects groups the projects of each client under the client key.
// Every requested client has a group, empty when it has no projects; keys
// with no client row are also listed in Missing.
func (s *Service) ClientProjects(ctx context.Context, ids resolve.IDs) (*Result, error) {
	res := &Result{}
	err := s.read(ctx, func(gw *gateway.Gateway) error {
		keys, err := resolve.Resolve(ctx, gw, schema.Clients, ids)
		if err != nil {
			return err
		}
		keys = uniqueIDs(keys)
		if !ids.IsAll() {
			_, missing, err := s.fetchByIDs(ctx, gw, schema.Clients, keys, schema.ClientID)
			if err != nil {
				return err
			}
			res.Missing = missing
		}
		idCol, err := s.registry.IDColumn(schema.Projects)
		if err != nil {
			return err
		}

		groups := make([][]*rowset.Row, len(keys))
		err = s.fanOut(ctx, len(keys), func(ctx context.Context, i int) error {
			rows, err := gw.Select(ctx, filter.Select{
				Entity:  schema.Projects,
				Clauses: []filter.Clause{{Kind: filter.Equal, Column: schema.ClientID, Value: keys[i]}},
				OrderBy: []string{idCol},
			})
			groups[i] = rows
			return err
		})
		if err != nil {
			return err
		}

		v := view.New(schema.ClientID)
		for i, k := range keys {
			v.Append(k, groups[i]...)
		}
		res.View = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ClientFullStandData groups the full rows of the stands listed by each
// client's projects under the client key. Each stand is merged with the
// first of the client's projects that lists it.
func (s *Service) ClientFullStandData(ctx context.Context, ids resolve.IDs) (*Result, error) {
	res := &Result{}
	err := s.read(ctx, func(gw *gateway.Gateway) error {
		keys, err := resolve.Resolve(ctx, gw, schema.Clients, ids)
		if err != nil {
			return err
		}
		keys = uniqueIDs(keys)
		h := s.newHopper(gw)

		clients, missing, err := s.fetchByIDs(ctx, gw, schema.Clients, keys)
		if err != nil {
			return err
		}
		h.prime(schema.Clients, schema.ClientID, clients)

		projects, err := s.selectWhereIn(ctx, gw, schema.Projects, schema.ClientID, keys)
		if err != nil {
			return err
		}
		members, err := s.membership.StandIDs(ctx, gw, projects)
		if err != nil {
			return err
		}

		byClient := make(map[string][]*rowset.Row)
		for _, p := range projects {
			k := setutil.Token(p.Value(schema.ClientID))
			byClient[k] = append(byClient[k], p)
		}

		var (
			refs   []standRef
			groups []any
		)
		for _, k := range keys {
			seen := make(map[string]struct{})
			for _, p := range byClient[setutil.Token(k)] {
				pid := p.Value(schema.ProjectID)
				for _, sid := range members[setutil.Token(pid)] {
					if _, dup := seen[setutil.Token(sid)]; dup {
						continue
					}
					seen[setutil.Token(sid)] = struct{}{}
					refs = append(refs, standRef{id: sid, project: pid})
					groups = append(groups, k)
				}
			}
		}

		rows, absent, err := s.fullStands(ctx, h, refs)
		if err != nil {
			return err
		}
		v := view.New(schema.ClientID)
		for _, k := range keys {
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

// NewClient holds the fields of a client to create.
type NewClient struct {
	Name         string
	Category     string
	CreationDate string
	Notes        string
}

func (c NewClient) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &dataerr.InvalidArgumentError{Operation: "add_client", Argument: "name", Reason: "must not be empty"}
	}
	if c.CreationDate != "" {
		if _, err := time.Parse(time.DateOnly, c.CreationDate); err != nil {
			return &dataerr.InvalidArgumentError{Operation: "add_client", Argument: "creation_date", Reason: "must be YYYY-MM-DD"}
		}
	}
	return nil
}

// AddClient creates a client with the next free key and returns the stored
// row. The key is allocated inside a transaction; losing a race for it
// retries with a fresh key until the configured attempts run out.
func (s *Service) AddClient(ctx context.Context, c NewClient) (*rowset.Row, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.AllocateRetries; attempt++ {
		row, err := s.insertClient(ctx, c)
		if err == nil {
			return row, nil
		}
		if !sqlutil.IsUniqueViolation(err) && !sqlutil.IsSerializationFailure(err) {
			return nil, err
		}
		lastErr = err
		s.logger.WarnContext(ctx, "client key allocation conflicted, retrying",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}
	return nil, &dataerr.WriteConflictError{
		Entity:   string(schema.Clients),
		Attempts: s.cfg.AllocateRetries,
		Err:      lastErr,
	}
}

func (s *Service) insertClient(ctx context.Context, c NewClient) (*rowset.Row, error) {
	if s.beginner == nil {
		return s.allocateAndInsert(ctx, s.gw, c)
	}
	tx, err := s.beginner.BeginTx(ctx, s.gw.Compiler().Dialect().WriteTxOptions())
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	row, err := s.allocateAndInsert(ctx, s.gw.WithExecutor(tx), c)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return row, nil
}

func (s *Service) allocateAndInsert(ctx context.Context, gw *gateway.Gateway, c NewClient) (*rowset.Row, error) {
	compiler := gw.Compiler()
	q, err := compiler.MaxID(schema.Clients)
	if err != nil {
		return nil, err
	}
	current, err := gw.Scalar(ctx, q)
	if err != nil {
		return nil, err
	}
	last, err := toInt64(current)
	if err != nil {
		return nil, fmt.Errorf("allocate client key: %w", err)
	}

	// A blank date is stored as NULL; CREATION_DATE holds dates only.
	var created any
	if c.CreationDate != "" {
		created = c.CreationDate
	}
	row := rowset.FromColumns(
		[]string{schema.ClientID, "CLIENT_NAME", "CATEGORY", "CREATION_DATE", "NOTES"},
		[]any{last + 1, c.Name, c.Category, created, c.Notes},
	)
	ins, err := compiler.Insert(schema.Clients, row.Keys(), rowValues(row))
	if err != nil {
		return nil, err
	}
	if _, err := gw.Exec(ctx, ins); err != nil {
		return nil, err
	}
	return row, nil
}

func rowValues(r *rowset.Row) []any {
	keys := r.Keys()
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = r.Value(k)
	}
	return out
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected key type %T", v)
	}
}
