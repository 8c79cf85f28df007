package denorm

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aerodb/internal/dataerr"
	"aerodb/internal/dbexec"
	"aerodb/internal/filter"
	"aerodb/internal/gateway"
	"aerodb/internal/junction"
	"aerodb/internal/probe"
	"aerodb/internal/resolve"
	"aerodb/internal/rowset"
	"aerodb/internal/schema"
	"aerodb/internal/sqlutil"
	"aerodb/internal/testutil/sqlitedb"
	"aerodb/internal/view"
)

type fixture struct {
	tdb *sqlitedb.TestDB
	svc *Service
}

func newFixture(t *testing.T, strategy junction.Strategy, cfg Config) *fixture {
	t.Helper()
	tdb := sqlitedb.NewTestDB(t)
	tdb.SeedHierarchy(t)
	exec := dbexec.NewStandardExecutor(tdb.DB)
	gw := gateway.New(exec, tdb.Compiler, nil, nil)
	return &fixture{tdb: tdb, svc: New(gw, exec, junction.New(strategy), cfg, nil)}
}

// variants runs fn under both membership strategies, with and without
// snapshot reads.
func variants(t *testing.T, fn func(t *testing.T, strategy junction.Strategy, cfg Config)) {
	for _, strategy := range []junction.Strategy{junction.Delimited, junction.JoinTable} {
		for _, snapshot := range []bool{false, true} {
			name := fmt.Sprintf("%s/snapshot=%v", strategy, snapshot)
			t.Run(name, func(t *testing.T) {
				fn(t, strategy, Config{Concurrency: 4, Snapshot: snapshot})
			})
		}
	}
}

func (f *fixture) addProject(t *testing.T, id, client int, list string, stands ...int) {
	t.Helper()
	f.tdb.Insert(t, schema.Projects,
		[]string{"PROJECT_ID", "PROJECT_NAME", "CLIENT_ID", "STAND_PERSISTENT_IDS"},
		[]any{id, fmt.Sprintf("P%d", id), client, list},
	)
	for _, s := range stands {
		f.tdb.Insert(t, schema.ProjectStands,
			[]string{"PROJECT_ID", "STAND_PERSISTENT_ID"},
			[]any{id, s},
		)
	}
}

func (f *fixture) addStand(t *testing.T, id, client int, temp string) {
	t.Helper()
	f.tdb.Insert(t, schema.Stands,
		[]string{"STAND_PERSISTENT_ID", "STAND_ID", "STAND_NAME", "CLIENT_ID", "ACRES"},
		[]any{id, temp, fmt.Sprintf("S%d", id), client, 1.0},
	)
}

func column(rows []*rowset.Row, col string) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r.Value(col)
	}
	return out
}

func TestClientFullStandData_Scenario(t *testing.T) {
	variants(t, func(t *testing.T, strategy junction.Strategy, cfg Config) {
		f := newFixture(t, strategy, cfg)

		res, err := f.svc.ClientFullStandData(context.Background(), resolve.List(int64(1)))
		require.NoError(t, err)
		require.NotNil(t, res.View)
		assert.Equal(t, []any{int64(1)}, res.View.Keys())
		assert.Empty(t, res.Missing)

		rows := res.View.Get(int64(1))
		require.Len(t, rows, 2)
		assert.Equal(t, []any{int64(10), int64(11)}, column(rows, schema.StandPersistentID))
		for _, r := range rows {
			assert.Equal(t, int64(1), r.Value(schema.ClientID))
			assert.Equal(t, "Acme", r.Value("CLIENT_NAME"))
			assert.Equal(t, "forestry", r.Value("CATEGORY"))
			assert.Equal(t, int64(1), r.Value(schema.ProjectID))
			assert.Equal(t, "North", r.Value("PROJECT_NAME"))
			assert.Equal(t, "10,11", r.Value(schema.StandList))
		}
		assert.Equal(t, "Ridge", rows[0].Value("STAND_NAME"))
		assert.Equal(t, "Creek", rows[1].Value("STAND_NAME"))
	})
}

func TestFullStandData_MergeOrder(t *testing.T) {
	f := newFixture(t, junction.Delimited, Config{})

	res, err := f.svc.FullStandData(context.Background(), resolve.One(int64(10)))
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	r := res.Rows[0]

	assert.Equal(t, []string{
		"CLIENT_ID", "CLIENT_NAME", "CATEGORY", "CREATION_DATE", "NOTES",
		"PROJECT_ID", "PROJECT_NAME", "STAND_PERSISTENT_IDS", "QUESTIONS",
		"STAND_PERSISTENT_ID", "STAND_ID", "STAND_NAME", "ACRES", "LOCATION",
	}, r.Keys())
	// project columns overwrite the client's shared ones
	assert.Equal(t, "2021-01-01", r.Value("CREATION_DATE"))
	assert.Nil(t, r.Value("NOTES"))
	assert.Equal(t, 12.5, r.Value("ACRES"))
}

func TestClientProjects_Exact(t *testing.T) {
	variants(t, func(t *testing.T, strategy junction.Strategy, cfg Config) {
		f := newFixture(t, strategy, cfg)
		f.addProject(t, 3, 1, "15,23", 15, 23)

		res, err := f.svc.ClientProjects(context.Background(), resolve.All())
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), int64(2)}, res.View.Keys())
		assert.Equal(t, []any{int64(1), int64(3)}, column(res.View.Get(int64(1)), schema.ProjectID))
		assert.Equal(t, []any{int64(2)}, column(res.View.Get(int64(2)), schema.ProjectID))

		for _, g := range res.View.Groups {
			for _, p := range g.Rows {
				assert.Equal(t, g.Key, p.Value(schema.ClientID))
			}
		}

		assert.Empty(t, res.Missing)

		res, err = f.svc.ClientProjects(context.Background(), resolve.List(int64(1), int64(99)))
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), int64(99)}, res.View.Keys())
		assert.Empty(t, res.View.Get(int64(99)))
		assert.Equal(t, []any{int64(99)}, res.Missing)

		full, err := f.svc.ClientFullStandData(context.Background(), resolve.List(int64(1), int64(99)))
		require.NoError(t, err)
		assert.Equal(t, full.Missing, res.Missing)
	})
}

func TestProjectStands_Exact(t *testing.T) {
	variants(t, func(t *testing.T, strategy junction.Strategy, cfg Config) {
		f := newFixture(t, strategy, cfg)
		f.addStand(t, 13, 1, "A3")

		res, err := f.svc.ProjectStands(context.Background(), resolve.List(int64(1), int64(42)))
		require.NoError(t, err)
		assert.Equal(t, []any{int64(10), int64(11)}, column(res.View.Get(int64(1)), schema.StandPersistentID))
		assert.Equal(t, []any{int64(42)}, res.Missing)
		assert.Empty(t, res.View.Get(int64(42)))
	})
}

func TestFullStandData_ExactTokenMembership(t *testing.T) {
	variants(t, func(t *testing.T, strategy junction.Strategy, cfg Config) {
		f := newFixture(t, strategy, cfg)
		f.addProject(t, 3, 1, "15,23", 15, 23)
		f.addStand(t, 1, 1, "Z1")

		res, err := f.svc.FullStandData(context.Background(), resolve.One(int64(1)))
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)

		r := res.Rows[0]
		assert.Equal(t, "Acme", r.Value("CLIENT_NAME"))
		v, present := r.Get(schema.ProjectID)
		assert.True(t, present, "absent project columns are carried as nulls")
		assert.Nil(t, v)
		assert.Equal(t, []Absent{{Base: int64(1), Entity: schema.Projects}}, res.Absent)
	})
}

func TestFullStandData_SeveralProjects(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, junction.Delimited, Config{})
	f.addProject(t, 3, 1, "10", 10)

	res, err := f.svc.FullStandData(ctx, resolve.One(int64(10)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows[0].Value(schema.ProjectID))

	strict := newFixture(t, junction.Delimited, Config{StrictProjectJoin: true})
	strict.addProject(t, 3, 1, "10", 10)

	_, err = strict.svc.FullStandData(ctx, resolve.One(int64(10)))
	require.ErrorIs(t, err, dataerr.ErrAmbiguousJoin)
	var amb *dataerr.AmbiguousJoinError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, []any{int64(1), int64(3)}, amb.Candidates)

	// reached through a project, the listing project wins
	res, err = strict.svc.ProjectFullStandData(ctx, resolve.One(int64(3)))
	require.NoError(t, err)
	rows := res.View.Get(int64(3))
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].Value(schema.ProjectID))
}

func TestFullStandData_MissingAndDuplicates(t *testing.T) {
	f := newFixture(t, junction.Delimited, Config{})

	res, err := f.svc.FullStandData(context.Background(), resolve.List(int64(12), int64(999), int64(10), int64(12)))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(12), int64(10)}, column(res.Rows, schema.StandPersistentID))
	assert.Equal(t, []any{int64(999)}, res.Missing)

	res, err = f.svc.FullStandData(context.Background(), resolve.List())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Missing)

	res, err = f.svc.FullStandData(context.Background(), resolve.All())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(11), int64(12)}, column(res.Rows, schema.StandPersistentID))
}

func TestFullStandDataView(t *testing.T) {
	f := newFixture(t, junction.Delimited, Config{})
	ctx := context.Background()

	res, err := f.svc.FullStandDataView(ctx, resolve.All(), schema.ClientID, []string{"STAND_NAME"})
	require.NoError(t, err)
	assert.Nil(t, res.Rows)
	assert.Equal(t, []any{int64(1), int64(2)}, res.View.Keys())
	g := res.View.Get(int64(1))
	require.Len(t, g, 2)
	assert.Equal(t, []string{"STAND_NAME", "CLIENT_ID"}, g[0].Keys())

	res, err = f.svc.FullStandDataView(ctx, resolve.All(), "", []string{"STAND_NAME"})
	require.NoError(t, err)
	assert.Nil(t, res.View)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, []string{"STAND_NAME"}, res.Rows[0].Keys())

	_, err = f.svc.FullStandDataView(ctx, resolve.All(), "COLOR", nil)
	assert.ErrorIs(t, err, dataerr.ErrSchema)
}

func TestFilterFullStandData(t *testing.T) {
	f := newFixture(t, junction.Delimited, Config{})
	ctx := context.Background()

	res, err := f.svc.FilterFullStandData(ctx, resolve.All(), []view.Term{
		{Column: "ACRES", Comparator: view.Gt, Value: 20},
		{Op: "OR", Column: "PROJECT_NAME", Comparator: view.Eq, Value: "North"},
		{Op: "AND", Column: "STAND_NAME", Comparator: view.Like, Value: "cr%"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(11), int64(12)}, column(res.Rows, schema.StandPersistentID))

	res, err = f.svc.FilterFullStandData(ctx, resolve.All(), []view.Term{
		{Column: "STAND_PERSISTENT_IDS", Comparator: view.Contains, Value: 11},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(11)}, column(res.Rows, schema.StandPersistentID))

	_, err = f.svc.FilterFullStandData(ctx, resolve.All(), []view.Term{{Column: "COLOR", Comparator: view.Eq, Value: 1}})
	assert.ErrorIs(t, err, dataerr.ErrSchema)

	_, err = f.svc.FilterFullStandData(ctx, resolve.All(), []view.Term{{Column: "ACRES", Comparator: "~", Value: 1}})
	assert.ErrorIs(t, err, dataerr.ErrInvalidArgument)
}

func TestProjectFullStandData(t *testing.T) {
	variants(t, func(t *testing.T, strategy junction.Strategy, cfg Config) {
		f := newFixture(t, strategy, cfg)
		f.addProject(t, 4, 2, "")

		res, err := f.svc.ProjectFullStandData(context.Background(), resolve.List(int64(2), int64(4), int64(8)))
		require.NoError(t, err)
		assert.Equal(t, []any{int64(2), int64(4), int64(8)}, res.View.Keys())
		assert.Equal(t, []any{int64(12)}, column(res.View.Get(int64(2)), schema.StandPersistentID))
		assert.Empty(t, res.View.Get(int64(4)))
		assert.Equal(t, []any{int64(8)}, res.Missing)
	})
}

func TestFullFlightData_AbsentMarkers(t *testing.T) {
	variants(t, func(t *testing.T, strategy junction.Strategy, cfg Config) {
		f := newFixture(t, strategy, cfg)

		res, err := f.svc.FullFlightData(context.Background(), resolve.All())
		require.NoError(t, err)
		require.Len(t, res.Rows, 2)

		full := res.Rows[0]
		assert.Equal(t, int64(100), full.Value(schema.FlightID))
		assert.Equal(t, "Ridge", full.Value("STAND_NAME"))
		assert.Equal(t, "Acme", full.Value("CLIENT_NAME"))
		assert.Equal(t, "North", full.Value("PROJECT_NAME"))
		assert.Equal(t, "F-100", full.Value("FLIGHT_NAME"))
		assert.Equal(t, "done", full.Value("AI_STATUS"))
		assert.Equal(t, int64(42), full.Value("FILES_COUNT"))

		partial := res.Rows[1]
		assert.Equal(t, int64(101), partial.Value(schema.FlightID))
		assert.Equal(t, "Flat", partial.Value("STAND_NAME"))
		for _, col := range []string{"AI_STATUS", "AI_MODEL", "FILES_LOCATION", "FILES_COUNT"} {
			v, ok := partial.Get(col)
			assert.True(t, ok, col)
			assert.Nil(t, v, col)
		}
		assert.Equal(t, []Absent{
			{Base: int64(101), Entity: schema.FlightAI},
			{Base: int64(101), Entity: schema.FlightFiles},
		}, res.Absent)
	})
}

func TestStandFullFlightData(t *testing.T) {
	f := newFixture(t, junction.Delimited, Config{})

	res, err := f.svc.StandFullFlightData(context.Background(), resolve.List(int64(10), int64(11), int64(12), int64(77)))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(11), int64(12), int64(77)}, res.View.Keys())
	assert.Equal(t, []any{int64(100)}, column(res.View.Get(int64(10)), schema.FlightID))
	assert.Empty(t, res.View.Get(int64(11)))
	assert.Equal(t, []any{int64(101)}, column(res.View.Get(int64(12)), schema.FlightID))
	assert.Equal(t, []any{int64(77)}, res.Missing)
}

func TestHierarchy(t *testing.T) {
	variants(t, func(t *testing.T, strategy junction.Strategy, cfg Config) {
		f := newFixture(t, strategy, cfg)

		res, err := f.svc.Hierarchy(context.Background(), resolve.List(int64(1), int64(7)))
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, []any{int64(7)}, res.Missing)

		client := res.Rows[0]
		assert.Equal(t, "Acme", client.Value("CLIENT_NAME"))
		projects, ok := client.Value(ProjectsColumn).([]*rowset.Row)
		require.True(t, ok)
		require.Len(t, projects, 1)
		assert.Equal(t, "North", projects[0].Value("PROJECT_NAME"))
		stands, ok := projects[0].Value(StandsColumn).([]*rowset.Row)
		require.True(t, ok)
		assert.Equal(t, []any{int64(10), int64(11)}, column(stands, schema.StandPersistentID))
	})
}

type recordingProber struct {
	mu    sync.Mutex
	calls [][3]string
}

func (p *recordingProber) Probe(_ context.Context, clientID, projectID, standTempID string) ([]probe.Location, error) {
	p.mu.Lock()
	p.calls = append(p.calls, [3]string{clientID, projectID, standTempID})
	p.mu.Unlock()
	return []probe.Location{{
		Directory: clientID + "/" + projectID + "/" + standTempID + "/raw",
		Exists:    true,
		HasFiles:  standTempID == "A1",
	}}, nil
}

func TestStandImagery(t *testing.T) {
	f := newFixture(t, junction.Delimited, Config{})
	f.addStand(t, 14, 1, "Q9")
	prober := &recordingProber{}

	res, err := f.svc.StandImagery(context.Background(), resolve.List(int64(10), int64(14), int64(404)), prober)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(14)}, res.View.Keys())
	assert.Equal(t, []any{int64(404)}, res.Missing)

	locs := res.View.Get(int64(10))
	require.Len(t, locs, 1)
	assert.Equal(t, "1/1/A1/raw", locs[0].Value(DirectoryColumn))
	assert.Equal(t, true, locs[0].Value(HasFilesColumn))

	// stand 14 has no project, so its imagery is never looked up
	assert.Empty(t, res.View.Get(int64(14)))
	assert.Equal(t, [][3]string{{"1", "1", "A1"}}, prober.calls)
}

func TestAddClient_RoundTrip(t *testing.T) {
	f := newFixture(t, junction.Delimited, Config{})
	ctx := context.Background()

	in := NewClient{Name: "Cedar", Category: "nursery", CreationDate: "2024-02-29", Notes: "walk-in"}
	created, err := f.svc.AddClient(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.Value(schema.ClientID))

	got, err := f.svc.Get(ctx, schema.Clients, int64(3))
	require.NoError(t, err)
	assert.Equal(t, "Cedar", got.Value("CLIENT_NAME"))
	assert.Equal(t, "nursery", got.Value("CATEGORY"))
	assert.Equal(t, "2024-02-29", got.Value("CREATION_DATE"))
	assert.Equal(t, "walk-in", got.Value("NOTES"))
	assert.Equal(t, created.Map(), got.Map())

	name, err := f.svc.IDToName(ctx, schema.Clients, int64(3))
	require.NoError(t, err)
	assert.Equal(t, "Cedar", name)

	next, err := f.svc.AddClient(ctx, NewClient{Name: "Dogwood"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.Value(schema.ClientID))
	assert.Nil(t, next.Value("CREATION_DATE"))
}

func TestAddClient_Validation(t *testing.T) {
	f := newFixture(t, junction.Delimited, Config{})

	_, err := f.svc.AddClient(context.Background(), NewClient{Name: "  "})
	assert.ErrorIs(t, err, dataerr.ErrInvalidArgument)

	_, err = f.svc.AddClient(context.Background(), NewClient{Name: "X", CreationDate: "02/29/2024"})
	assert.ErrorIs(t, err, dataerr.ErrInvalidArgument)
}

func newMockService(t *testing.T, retries int) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exec := dbexec.NewStandardExecutor(db)
	compiler := filter.NewCompiler(schema.NewRegistry(nil), sqlutil.MySQL)
	gw := gateway.New(exec, compiler, nil, nil)
	return New(gw, exec, nil, Config{AllocateRetries: retries}, nil), mock
}

func expectAllocate(mock sqlmock.Sqlmock, current int64) {
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"CLIENT_ID"}).AddRow(current))
}

func TestAddClient_RetriesOnConflict(t *testing.T) {
	svc, mock := newMockService(t, 3)
	duplicate := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '3' for key 'PRIMARY'"}

	expectAllocate(mock, 2)
	mock.ExpectExec("INSERT INTO `clients`").WillReturnError(duplicate)
	mock.ExpectRollback()
	expectAllocate(mock, 3)
	mock.ExpectExec("INSERT INTO `clients`").
		WithArgs(int64(4), "Cedar", "nursery", "2024-01-02", "").
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectCommit()

	row, err := svc.AddClient(context.Background(), NewClient{Name: "Cedar", Category: "nursery", CreationDate: "2024-01-02"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), row.Value(schema.ClientID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddClient_ConflictExhausted(t *testing.T) {
	svc, mock := newMockService(t, 2)
	duplicate := &mysql.MySQLError{Number: 1062}

	for i := 0; i < 2; i++ {
		expectAllocate(mock, 2)
		mock.ExpectExec("INSERT INTO `clients`").WillReturnError(duplicate)
		mock.ExpectRollback()
	}

	_, err := svc.AddClient(context.Background(), NewClient{Name: "Cedar"})
	require.ErrorIs(t, err, dataerr.ErrWriteConflict)
	var conflict *dataerr.WriteConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 2, conflict.Attempts)
	assert.ErrorIs(t, err, duplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddClient_OtherErrorsAreNotRetried(t *testing.T) {
	svc, mock := newMockService(t, 3)

	expectAllocate(mock, 2)
	mock.ExpectExec("INSERT INTO `clients`").WillReturnError(&mysql.MySQLError{Number: 1146, Message: "no such table"})
	mock.ExpectRollback()

	_, err := svc.AddClient(context.Background(), NewClient{Name: "Cedar"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, dataerr.ErrWriteConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTableWhereAndIDToName(t *testing.T) {
	f := newFixture(t, junction.Delimited, Config{})
	ctx := context.Background()

	table, err := f.svc.ListTable(ctx, schema.Stands, []string{"STAND_PERSISTENT_ID", "STAND_NAME"})
	require.NoError(t, err)
	assert.Equal(t, []string{"STAND_PERSISTENT_ID", "STAND_NAME"}, table.Columns)
	assert.Equal(t, []any{"Ridge", "Creek", "Flat"}, table.Data["STAND_NAME"])

	table, err = f.svc.Where(ctx, schema.Stands, []filter.Clause{
		{Kind: filter.Between, Column: "ACRES", Value: []any{7, 13}},
		{Kind: filter.Equal, Column: "CLIENT_ID", Value: 2, Logic: filter.Or},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(11), int64(12)}, table.Data["STAND_PERSISTENT_ID"])

	_, err = f.svc.Where(ctx, schema.Stands, []filter.Clause{{Kind: filter.Equal, Column: "COLOR", Value: 1}}, nil)
	assert.ErrorIs(t, err, dataerr.ErrSchema)

	name, err := f.svc.IDToName(ctx, schema.Projects, int64(2))
	require.NoError(t, err)
	assert.Equal(t, "South", name)

	_, err = f.svc.IDToName(ctx, schema.Projects, int64(99))
	assert.ErrorIs(t, err, dataerr.ErrNotFound)

	_, err = f.svc.Get(ctx, schema.Flights, int64(5))
	assert.ErrorIs(t, err, dataerr.ErrNotFound)
}

func TestResultMarshalJSON(t *testing.T) {
	rows := []*rowset.Row{rowset.FromColumns([]string{"A"}, []any{int64(1)})}

	data, err := (&Result{Rows: rows}).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[{"A":1}],"missing":[]}`, string(data))

	v := view.GroupBy(rows, "A")
	data, err = (&Result{View: v, Missing: []any{int64(9)}}).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"view":{"1":[{"A":1}]},"missing":[9]}`, string(data))

	data, err = (&Result{}).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[],"missing":[]}`, string(data))
}
