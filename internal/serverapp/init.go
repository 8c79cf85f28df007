package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"aerodb/internal/tlscert"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, metrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	a.logger.Info("connecting to database",
		slog.String("driver", a.cfg.Database.Driver),
		slog.String("host", a.cfg.Database.Host),
		slog.Int("port", a.cfg.Database.Port),
	)

	db, dbStatsReg, err := connectDB(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanup.push("database", func(_ context.Context) error {
		if dbStatsReg != nil {
			if err := dbStatsReg.Unregister(); err != nil {
				a.logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
			}
		}
		return db.Close()
	})

	if err := configureDatabase(ctx, a.cfg, a.logger, db); err != nil {
		return fmt.Errorf("failed to verify database connection: %w", err)
	}

	if a.cfg.Database.BootstrapSchema {
		if err := BootstrapSchema(ctx, a.cfg, db, a.logger); err != nil {
			return fmt.Errorf("failed to bootstrap schema: %w", err)
		}
	}

	// Only a non-nil observer may be stored in the interface.
	var observer Observer
	if metrics != nil {
		observer = metrics
	}
	registry, publisher, err := BuildRegistry(ctx, a.cfg, db, a.logger, observer)
	if err != nil {
		return fmt.Errorf("failed to build operation registry: %w", err)
	}
	cleanup.push("event publisher", func(_ context.Context) error {
		return publisher.Close()
	})

	mux := buildRouter(a.cfg, a.logger, db, registry, meterProvider)
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	serverAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := buildServer(a.cfg, handler, serverAddr)
	certs, err := tlscert.Load(serverTLSConfig(a.cfg), a.logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to configure server TLS: %w", err)
	}
	if certs != nil {
		srv.TLSConfig = certs.TLSConfig()
		a.logger.Info("server TLS enabled", slog.String("source", certs.String()))
	}
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.metrics = metrics
	a.tracerProvider = tracerProvider
	a.db = db
	a.dbStatsReg = dbStatsReg
	a.publisher = publisher
	a.registry = registry
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
