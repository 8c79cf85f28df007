package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aerodb/internal/dataerr"
	"aerodb/internal/dbexec"
	"aerodb/internal/filter"
	"aerodb/internal/schema"
	"aerodb/internal/sqlutil"
	"aerodb/internal/testutil/sqlitedb"
)

type recordedTrip struct {
	entity string
	err    error
}

type fakeRecorder struct {
	mu    sync.Mutex
	trips []recordedTrip
}

func (f *fakeRecorder) RecordRoundTrip(_ context.Context, entity string, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trips = append(f.trips, recordedTrip{entity: entity, err: err})
}

func TestRows_NormalizesDriverBytes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT `STAND_PERSISTENT_ID`, `ACRES`, `STAND_ID` FROM `stands`").
		WillReturnRows(sqlmock.NewRows([]string{"STAND_PERSISTENT_ID", "ACRES", "STAND_ID"}).
			AddRow([]byte("1000000"), []byte("12.5"), []byte("A1")).
			AddRow([]byte("1000001"), nil, []byte("A2")))

	compiler := filter.NewCompiler(schema.NewRegistry(nil), sqlutil.MySQL)
	rec := &fakeRecorder{}
	gw := New(dbexec.NewStandardExecutor(db), compiler, nil, rec)

	rows, err := gw.Select(context.Background(), filter.Select{
		Entity:  schema.Stands,
		Columns: []string{"STAND_PERSISTENT_ID", "ACRES", "STAND_ID"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(1000000), rows[0].Value("STAND_PERSISTENT_ID"))
	assert.Equal(t, 12.5, rows[0].Value("ACRES"))
	assert.Equal(t, "A1", rows[0].Value("STAND_ID"))
	assert.Nil(t, rows[1].Value("ACRES"))
	assert.Equal(t, []string{"STAND_PERSISTENT_ID", "ACRES", "STAND_ID"}, rows[1].Keys())

	require.Len(t, rec.trips, 1)
	assert.Equal(t, "stands", rec.trips[0].entity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRows_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))

	compiler := filter.NewCompiler(schema.NewRegistry(nil), sqlutil.MySQL)
	rec := &fakeRecorder{}
	gw := New(dbexec.NewStandardExecutor(db), compiler, nil, rec)

	_, err = gw.Select(context.Background(), filter.Select{Entity: schema.Clients})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query clients")
	require.Len(t, rec.trips, 1)
	assert.Error(t, rec.trips[0].err)
}

func TestRows_UnregisteredEntity(t *testing.T) {
	compiler := filter.NewCompiler(schema.NewRegistry(nil), sqlutil.MySQL)
	gw := New(dbexec.NewStandardExecutor(nil), compiler, nil, nil)

	_, err := gw.Rows(context.Background(), filter.SQLQuery{Entity: "planes", SQL: "SELECT 1"})
	assert.ErrorIs(t, err, dataerr.ErrSchema)
}

func TestTableAndScalar_SQLite(t *testing.T) {
	tdb := sqlitedb.NewTestDB(t)
	tdb.SeedHierarchy(t)
	gw := New(dbexec.NewStandardExecutor(tdb.DB), tdb.Compiler, nil, nil)
	ctx := context.Background()

	q, err := tdb.Compiler.Compile(filter.Select{
		Entity:  schema.Clients,
		Columns: []string{"CLIENT_ID", "CLIENT_NAME"},
		OrderBy: []string{"CLIENT_ID"},
	})
	require.NoError(t, err)

	table, err := gw.Table(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"CLIENT_ID", "CLIENT_NAME"}, table.Columns)
	assert.Equal(t, []any{int64(1), int64(2)}, table.Data["CLIENT_ID"])
	assert.Equal(t, []any{"Acme", "Birch"}, table.Data["CLIENT_NAME"])

	maxQ, err := tdb.Compiler.MaxID(schema.Clients)
	require.NoError(t, err)
	maxID, err := gw.Scalar(ctx, maxQ)
	require.NoError(t, err)
	assert.Equal(t, int64(2), maxID)
}

func TestExecInsideTransaction(t *testing.T) {
	tdb := sqlitedb.NewTestDB(t)
	base := New(dbexec.NewStandardExecutor(tdb.DB), tdb.Compiler, nil, nil)
	ctx := context.Background()

	tx, err := dbexec.NewStandardExecutor(tdb.DB).BeginTx(ctx, nil)
	require.NoError(t, err)
	gw := base.WithExecutor(tx)

	ins, err := tdb.Compiler.Insert(schema.Clients, []string{"CLIENT_ID", "CLIENT_NAME"}, []any{7, "Cedar"})
	require.NoError(t, err)
	_, err = gw.Exec(ctx, ins)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	rows, err := base.Select(ctx, filter.Select{Entity: schema.Clients})
	require.NoError(t, err)
	assert.Empty(t, rows, "rolled back insert must not be visible")
}
