// Package sqlitedb provides in-memory SQLite databases loaded with the
// registered schema for tests.
package sqlitedb

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"aerodb/internal/filter"
	"aerodb/internal/schema"
	"aerodb/internal/sqlutil"
)

// TestDB is an isolated in-memory database with every registered table created.
type TestDB struct {
	DB       *sql.DB
	Registry *schema.Registry
	Compiler *filter.Compiler
}

// NewTestDB opens a fresh database. It is closed when the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	db, err := sql.Open(sqlutil.SQLite.DriverName(), ":memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	// Every connection to :memory: is a different database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database connection: %v", err)
		}
	})

	reg := schema.NewRegistry(nil)
	for _, stmt := range reg.DDL(sqlutil.SQLite) {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to create table: %v\n%s", err, stmt)
		}
	}

	return &TestDB{
		DB:       db,
		Registry: reg,
		Compiler: filter.NewCompiler(reg, sqlutil.SQLite),
	}
}

// Insert adds one row per values slice.
func (tdb *TestDB) Insert(t *testing.T, entity schema.Entity, cols []string, rows ...[]any) {
	t.Helper()
	for _, vals := range rows {
		q, err := tdb.Compiler.Insert(entity, cols, vals)
		if err != nil {
			t.Fatalf("Failed to build insert into %s: %v", entity, err)
		}
		if _, err := tdb.DB.ExecContext(context.Background(), q.SQL, q.Args...); err != nil {
			t.Fatalf("Failed to insert into %s: %v", entity, err)
		}
	}
}

// SeedHierarchy loads a small hierarchy:
//
//	client 1 "Acme"  -> project 1 "North" -> stands 10, 11
//	client 2 "Birch" -> project 2 "South" -> stand 12
//	flights 100 (stand 10) and 101 (stand 12); only 100 has AI and file rows
func (tdb *TestDB) SeedHierarchy(t *testing.T) {
	t.Helper()

	tdb.Insert(t, schema.Clients,
		[]string{"CLIENT_ID", "CLIENT_NAME", "CATEGORY", "CREATION_DATE", "NOTES"},
		[]any{1, "Acme", "forestry", "2020-01-01", "first"},
		[]any{2, "Birch", "orchard", "2020-02-01", nil},
	)
	tdb.Insert(t, schema.Projects,
		[]string{"PROJECT_ID", "PROJECT_NAME", "CREATION_DATE", "CLIENT_ID", "STAND_PERSISTENT_IDS", "QUESTIONS", "NOTES"},
		[]any{1, "North", "2021-01-01", 1, "10,11", "health", nil},
		[]any{2, "South", "2021-02-01", 2, "12", nil, "dry"},
	)
	tdb.Insert(t, schema.Stands,
		[]string{"STAND_PERSISTENT_ID", "STAND_ID", "STAND_NAME", "CLIENT_ID", "ACRES", "LOCATION"},
		[]any{10, "A1", "Ridge", 1, 12.5, "45.1,-122.3"},
		[]any{11, "A2", "Creek", 1, 7.25, "45.2,-122.4"},
		[]any{12, "B1", "Flat", 2, 30.0, "44.0,-121.0"},
	)
	tdb.Insert(t, schema.Flights,
		[]string{"FLIGHT_ID", "FLIGHT_NAME", "FLIGHT_DATE", "CLIENT_ID", "PROJECT_ID", "STAND_PERSISTENT_ID"},
		[]any{100, "F-100", "2022-05-01", 1, 1, 10},
		[]any{101, "F-101", "2022-05-02", 2, 2, 12},
	)
	tdb.Insert(t, schema.FlightAI,
		[]string{"FLIGHT_ID", "AI_STATUS", "AI_MODEL", "AI_PROCESSED_DATE"},
		[]any{100, "done", "canopy-v2", "2022-05-03"},
	)
	tdb.Insert(t, schema.FlightFiles,
		[]string{"FLIGHT_ID", "FILES_LOCATION", "FILES_COUNT", "FILES_UPLOADED_DATE"},
		[]any{100, "s3://imagery/100", 42, "2022-05-01"},
	)
	tdb.Insert(t, schema.ProjectStands,
		[]string{"PROJECT_ID", "STAND_PERSISTENT_ID"},
		[]any{1, 10}, []any{1, 11}, []any{2, 12},
	)
}
