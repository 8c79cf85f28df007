package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite"

	"aerodb/internal/config"
	"aerodb/internal/junction"
	"aerodb/internal/logging"
	"aerodb/internal/naming"
	"aerodb/internal/schema"
	"aerodb/internal/sqlutil"
)

const maxRetryInterval = 30 * time.Second

func dbSystem(d sqlutil.Dialect) attribute.KeyValue {
	switch d {
	case sqlutil.Postgres:
		return semconv.DBSystemPostgreSQL
	case sqlutil.SQLite:
		return semconv.DBSystemKey.String("sqlite")
	default:
		return semconv.DBSystemMySQL
	}
}

func connectDB(cfg *config.Config, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	dialect, err := cfg.Database.Dialect()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}
	driver, dsn, err := cfg.Database.DataSource()
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("opening database", slog.String("driver", driver), slog.String("dsn", config.Redacted(dsn)))

	if !cfg.Observability.MetricsEnabled && !cfg.Observability.TracingEnabled {
		db, err := sql.Open(driver, dsn)
		return db, nil, err
	}

	attrs := otelsql.WithAttributes(dbSystem(dialect))
	opts := []otelsql.Option{attrs}
	if cfg.Observability.TracingEnabled {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{
			DisableErrSkip: true,
			OmitRows:       true,
		}))
	}

	db, err := otelsql.Open(driver, dsn, opts...)
	if err != nil {
		return nil, nil, err
	}

	var dbStatsReg interface{ Unregister() error }
	if cfg.Observability.MetricsEnabled {
		dbStatsReg, err = otelsql.RegisterDBStatsMetrics(db, attrs)
		if err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		}
	}

	logger.Info("database instrumentation enabled",
		slog.Bool("metrics", cfg.Observability.MetricsEnabled),
		slog.Bool("tracing", cfg.Observability.TracingEnabled),
	)
	return db, dbStatsReg, nil
}

func configureDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB) error {
	pool := cfg.Database.Pool
	if dialect, _ := cfg.Database.Dialect(); dialect == sqlutil.SQLite && cfg.Database.Path == ":memory:" {
		// Each connection to :memory: opens a separate database.
		pool.MaxOpen, pool.MaxIdle = 1, 1
	}
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	if err := waitForDatabase(ctx, cfg, logger, db); err != nil {
		return err
	}

	logger.Info("connected to database",
		slog.String("driver", cfg.Database.Driver),
		slog.Int("pool_max_open", pool.MaxOpen),
		slog.Int("pool_max_idle", pool.MaxIdle),
		slog.Duration("pool_max_lifetime", pool.MaxLifetime),
	)
	return nil
}

// waitForDatabase pings until the database answers or connection_timeout
// passes, doubling the wait between attempts. A zero timeout pings once.
func waitForDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, db *sql.DB) error {
	timeout := cfg.Database.ConnectionTimeout
	interval := cfg.Database.ConnectionRetryInterval

	if timeout == 0 {
		return db.PingContext(ctx)
	}

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(interval*2, maxRetryInterval)
	}
}

// OpenDatabase connects and verifies a pool for tools that run outside the
// server lifecycle. The caller closes the returned database.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*sql.DB, error) {
	db, _, err := connectDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := configureDatabase(ctx, cfg, logger, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewSchemaRegistry builds the entity registry with the configured naming
// overrides.
func NewSchemaRegistry(cfg *config.Config, logger *slog.Logger) *schema.Registry {
	return schema.NewRegistry(naming.New(cfg.Naming, logger))
}

// SchemaStatements returns the CREATE statements for every table and, when
// withView is set, the join-table compatibility view.
func SchemaStatements(cfg *config.Config, reg *schema.Registry, withView bool) ([]string, error) {
	dialect, err := cfg.Database.Dialect()
	if err != nil {
		return nil, err
	}
	stmts := reg.DDL(dialect)
	if withView {
		view, err := junction.CompatibilityViewDDL(reg, dialect)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, view)
	}
	return stmts, nil
}

// BootstrapSchema creates any missing tables.
func BootstrapSchema(ctx context.Context, cfg *config.Config, db *sql.DB, logger *logging.Logger) error {
	stmts, err := SchemaStatements(cfg, NewSchemaRegistry(cfg, logger.Logger), false)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w\n%s", err, stmt)
		}
	}
	logger.Info("schema bootstrapped", slog.Int("statements", len(stmts)))
	return nil
}
