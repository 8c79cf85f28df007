package ops

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"aerodb/internal/denorm"
	"aerodb/internal/filter"
	"aerodb/internal/resolve"
	"aerodb/internal/schema"
	"aerodb/internal/setutil"
	"aerodb/internal/view"
)

type tableArgs struct {
	Entity string   `json:"entity" op:"required" type:"entity" doc:"registered table name"`
	Cols   []string `json:"cols" doc:"columns to return; all registered columns when empty"`
}

type lookupArgs struct {
	Entity string `json:"entity" op:"required" type:"entity" doc:"registered table name"`
	ID     any    `json:"id" op:"required" type:"id" doc:"primary key"`
}

type whereArgs struct {
	Entity  string          `json:"entity" op:"required" type:"entity" doc:"registered table name"`
	Clauses []filter.Clause `json:"clauses" op:"required" type:"clauses" doc:"ordered {kind, column, value, logic} clauses"`
	Cols    []string        `json:"cols" doc:"columns to return"`
}

type clientIDs struct {
	ClientIDs any `json:"client_ids" type:"ids" doc:"client keys; every client when absent"`
}

type projectIDs struct {
	ProjectIDs any `json:"project_ids" type:"ids" doc:"project keys; every project when absent"`
}

type standIDs struct {
	StandIDs any `json:"stand_ids" type:"ids" doc:"stand keys; every stand when absent"`
}

type flightIDs struct {
	FlightIDs any `json:"flight_ids" type:"ids" doc:"flight keys; every flight when absent"`
}

type standViewArgs struct {
	StandIDs any      `json:"stand_ids" type:"ids" doc:"stand keys; every stand when absent"`
	Key      string   `json:"key" doc:"column to group by; flat rows when absent"`
	Cols     []string `json:"cols" doc:"columns to keep in each row"`
}

type standFilterArgs struct {
	StandIDs   any         `json:"stand_ids" type:"ids" doc:"stand keys; every stand when absent"`
	Predicates []view.Term `json:"predicates" op:"required" type:"predicates" doc:"ordered {op, column, comparator, value} terms"`
}

type addClientArgs struct {
	Name         string `json:"name" op:"required" doc:"client name"`
	Category     string `json:"category" doc:"client category"`
	CreationDate string `json:"creation_date" doc:"YYYY-MM-DD"`
	Notes        string `json:"notes" doc:"free text"`
}

// NameResult is returned by id_to_name.
type NameResult struct {
	Entity schema.Entity `json:"entity"`
	ID     any           `json:"id"`
	Name   any           `json:"name"`
}

func operations() []*Operation {
	return []*Operation{
		define("list_table", "List every row of a table.", false,
			func(ctx context.Context, e *env, a *tableArgs) (any, error) {
				entity, err := e.entity(a.Entity)
				if err != nil {
					return nil, err
				}
				return e.Service.ListTable(ctx, entity, a.Cols)
			}),
		define("id_to_name", "Resolve a key to the row's display name.", false,
			func(ctx context.Context, e *env, a *lookupArgs) (any, error) {
				entity, err := e.entity(a.Entity)
				if err != nil {
					return nil, err
				}
				id, err := e.id("id", a.ID)
				if err != nil {
					return nil, err
				}
				name, err := e.Service.IDToName(ctx, entity, id)
				if err != nil {
					return nil, err
				}
				return NameResult{Entity: entity, ID: id, Name: name}, nil
			}),
		define("get", "Fetch one row by key.", false,
			func(ctx context.Context, e *env, a *lookupArgs) (any, error) {
				entity, err := e.entity(a.Entity)
				if err != nil {
					return nil, err
				}
				id, err := e.id("id", a.ID)
				if err != nil {
					return nil, err
				}
				return e.Service.Get(ctx, entity, id)
			}),
		define("where", "Filter a table with ordered EQUAL/IN/LIKE/BETWEEN clauses.", false,
			func(ctx context.Context, e *env, a *whereArgs) (any, error) {
				entity, err := e.entity(a.Entity)
				if err != nil {
					return nil, err
				}
				clauses := make([]filter.Clause, len(a.Clauses))
				for i, c := range a.Clauses {
					kind, err := filter.ParseKind(string(c.Kind))
					if err != nil {
						return nil, err
					}
					c.Kind = kind
					c.Value = normalizeValue(c.Value)
					clauses[i] = c
				}
				return e.Service.Where(ctx, entity, clauses, a.Cols)
			}),
		define("client_projects", "Group projects under each client.", false,
			func(ctx context.Context, e *env, a *clientIDs) (any, error) {
				ids, err := e.ids("client_ids", a.ClientIDs)
				if err != nil {
					return nil, err
				}
				return e.Service.ClientProjects(ctx, ids)
			}),
		define("project_stands", "Group stands under each project that lists them.", false,
			func(ctx context.Context, e *env, a *projectIDs) (any, error) {
				ids, err := e.ids("project_ids", a.ProjectIDs)
				if err != nil {
					return nil, err
				}
				return e.Service.ProjectStands(ctx, ids)
			}),
		define("full_stand_data", "Stands merged with their client and project.", false,
			func(ctx context.Context, e *env, a *standIDs) (any, error) {
				ids, err := e.ids("stand_ids", a.StandIDs)
				if err != nil {
					return nil, err
				}
				return e.Service.FullStandData(ctx, ids)
			}),
		define("full_stand_data_view", "Full stand rows grouped by a column.", false,
			func(ctx context.Context, e *env, a *standViewArgs) (any, error) {
				ids, err := e.ids("stand_ids", a.StandIDs)
				if err != nil {
					return nil, err
				}
				return e.Service.FullStandDataView(ctx, ids, a.Key, a.Cols)
			}),
		define("client_full_stand_data", "Full stand rows grouped under each client.", false,
			func(ctx context.Context, e *env, a *clientIDs) (any, error) {
				ids, err := e.ids("client_ids", a.ClientIDs)
				if err != nil {
					return nil, err
				}
				return e.Service.ClientFullStandData(ctx, ids)
			}),
		define("project_full_stand_data", "Full stand rows grouped under each project.", false,
			func(ctx context.Context, e *env, a *projectIDs) (any, error) {
				ids, err := e.ids("project_ids", a.ProjectIDs)
				if err != nil {
					return nil, err
				}
				return e.Service.ProjectFullStandData(ctx, ids)
			}),
		define("full_flight_data", "Flights merged with stand, client, project, AI and file rows.", false,
			func(ctx context.Context, e *env, a *flightIDs) (any, error) {
				ids, err := e.ids("flight_ids", a.FlightIDs)
				if err != nil {
					return nil, err
				}
				return e.Service.FullFlightData(ctx, ids)
			}),
		define("stand_full_flight_data", "Full flight rows grouped under each stand.", false,
			func(ctx context.Context, e *env, a *standIDs) (any, error) {
				ids, err := e.ids("stand_ids", a.StandIDs)
				if err != nil {
					return nil, err
				}
				return e.Service.StandFullFlightData(ctx, ids)
			}),
		define("hierarchy", "Clients with their projects and stands nested.", false,
			func(ctx context.Context, e *env, a *clientIDs) (any, error) {
				ids, err := e.ids("client_ids", a.ClientIDs)
				if err != nil {
					return nil, err
				}
				return e.Service.Hierarchy(ctx, ids)
			}),
		define("filter_full_stand_data", "Full stand rows that satisfy a predicate list.", false,
			func(ctx context.Context, e *env, a *standFilterArgs) (any, error) {
				ids, err := e.ids("stand_ids", a.StandIDs)
				if err != nil {
					return nil, err
				}
				terms := make([]view.Term, len(a.Predicates))
				for i, t := range a.Predicates {
					t.Value = normalizeValue(t.Value)
					terms[i] = t
				}
				return e.Service.FilterFullStandData(ctx, ids, terms)
			}),
		define("stand_imagery", "Probe the imagery directories of each stand.", false,
			func(ctx context.Context, e *env, a *standIDs) (any, error) {
				ids, err := e.ids("stand_ids", a.StandIDs)
				if err != nil {
					return nil, err
				}
				return e.Service.StandImagery(ctx, ids, e.Prober)
			}),
		define("add_client", "Create a client with the next free key.", true,
			func(ctx context.Context, e *env, a *addClientArgs) (any, error) {
				row, err := e.Service.AddClient(ctx, denorm.NewClient{
					Name:         a.Name,
					Category:     a.Category,
					CreationDate: a.CreationDate,
					Notes:        a.Notes,
				})
				if err != nil {
					return nil, err
				}
				if err := e.Publisher.PublishClientCreated(ctx, row); err != nil {
					e.Logger.WarnContext(ctx, "client created but event not published",
						slog.Any("client_id", row.Value(schema.ClientID)),
						slog.String("error", err.Error()),
					)
				}
				return row, nil
			}),
	}
}

func (e *env) entity(name string) (schema.Entity, error) {
	return e.Service.Registry().ParseEntity(name)
}

// id converts a single key argument to int64.
func (e *env) id(arg string, v any) (any, error) {
	n, ok := toKey(v)
	if !ok {
		return nil, invalid(e.op, arg, "must be an integer key, got %v", v)
	}
	return n, nil
}

// ids converts a key-list argument. Absent selects every row; a scalar or a
// comma-delimited string is accepted alongside a list.
func (e *env) ids(arg string, v any) (resolve.IDs, error) {
	if t, ok := v.(string); ok {
		tokens := setutil.Split(t)
		items := make([]any, len(tokens))
		for i, tok := range tokens {
			items[i] = tok
		}
		v = items
	}
	ids := resolve.FromAny(v)
	if ids.IsAll() {
		return ids, nil
	}
	items := ids.Values()
	keys := make([]any, len(items))
	for i, it := range items {
		n, ok := toKey(it)
		if !ok {
			return resolve.IDs{}, invalid(e.op, arg, "element %d must be an integer key, got %v", i, it)
		}
		keys[i] = n
	}
	return resolve.List(keys...), nil
}

func toKey(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int64(n), true
		}
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// normalizeValue turns whole JSON numbers into int64 so integer columns are
// bound with integer parameters.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
