// Package gateway is the single place compiled queries reach storage.
package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"aerodb/internal/dbexec"
	"aerodb/internal/filter"
	"aerodb/internal/rowset"
)

// Recorder observes each storage round trip.
type Recorder interface {
	RecordRoundTrip(ctx context.Context, entity string, duration time.Duration, err error)
}

// Gateway runs compiled queries and scans their results.
type Gateway struct {
	exec     dbexec.QueryExecutor
	compiler *filter.Compiler
	logger   *slog.Logger
	recorder Recorder
}

// New creates a gateway. recorder may be nil.
func New(exec dbexec.QueryExecutor, compiler *filter.Compiler, logger *slog.Logger, recorder Recorder) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{exec: exec, compiler: compiler, logger: logger, recorder: recorder}
}

// Compiler returns the compiler statements are built with.
func (g *Gateway) Compiler() *filter.Compiler {
	return g.compiler
}

// Executor returns the executor queries run on.
func (g *Gateway) Executor() dbexec.QueryExecutor {
	return g.exec
}

// WithExecutor returns a copy of the gateway that runs on exec, typically a
// transaction.
func (g *Gateway) WithExecutor(exec dbexec.QueryExecutor) *Gateway {
	clone := *g
	clone.exec = exec
	return &clone
}

// Select compiles s and returns its rows.
func (g *Gateway) Select(ctx context.Context, s filter.Select) ([]*rowset.Row, error) {
	q, err := g.compiler.Compile(s)
	if err != nil {
		return nil, err
	}
	return g.Rows(ctx, q)
}

// Table runs q and returns the columnar form.
func (g *Gateway) Table(ctx context.Context, q filter.SQLQuery) (*rowset.Table, error) {
	rows, err := g.Rows(ctx, q)
	if err != nil {
		return nil, err
	}
	return rowset.ToTable(rows), nil
}

// Rows runs q and returns one ordered row per result row. Driver values are
// normalized to the registered column types.
func (g *Gateway) Rows(ctx context.Context, q filter.SQLQuery) (out []*rowset.Row, err error) {
	start := time.Now()
	defer func() { g.observe(ctx, q, start, err) }()

	table, err := g.compiler.Registry().Table(q.Entity)
	if err != nil {
		return nil, err
	}

	rows, err := g.exec.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Entity, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", q.Entity, err)
	}

	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Entity, err)
		}
		for i, c := range cols {
			values[i] = table.Normalize(c, values[i])
		}
		out = append(out, rowset.FromColumns(cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Entity, err)
	}
	return out, nil
}

// Scalar runs q and returns the first column of the first row, or nil when
// there are no rows.
func (g *Gateway) Scalar(ctx context.Context, q filter.SQLQuery) (any, error) {
	rows, err := g.Rows(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0].Len() == 0 {
		return nil, nil
	}
	return rows[0].Value(rows[0].Keys()[0]), nil
}

// Exec runs a statement that returns no rows.
func (g *Gateway) Exec(ctx context.Context, q filter.SQLQuery) (res sql.Result, err error) {
	start := time.Now()
	defer func() { g.observe(ctx, q, start, err) }()
	return g.exec.ExecContext(ctx, q.SQL, q.Args...)
}

func (g *Gateway) observe(ctx context.Context, q filter.SQLQuery, start time.Time, err error) {
	elapsed := time.Since(start)
	if g.recorder != nil {
		g.recorder.RecordRoundTrip(ctx, string(q.Entity), elapsed, err)
	}
	if g.logger.Enabled(ctx, slog.LevelDebug) {
		g.logger.DebugContext(ctx, "storage round trip",
			slog.String("entity", string(q.Entity)),
			slog.String("sql", q.SQL),
			slog.Int("args", len(q.Args)),
			slog.Duration("duration", elapsed),
			slog.Bool("error", err != nil),
		)
	}
}
