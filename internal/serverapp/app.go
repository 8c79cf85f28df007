// Package serverapp assembles the aerodb HTTP service: telemetry, the
// database pool, the operation registry, and the server lifecycle.
package serverapp

import (
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"aerodb/internal/config"
	"aerodb/internal/events"
	"aerodb/internal/logging"
	"aerodb/internal/observability"
	"aerodb/internal/ops"
)

// App owns runtime resources for the aerodb server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	meterProvider  *observability.MeterProvider
	metrics        *observability.OperationMetrics
	tracerProvider *observability.TracerProvider

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }

	publisher events.Publisher
	registry  *ops.Registry

	handler    http.Handler
	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler once Init has run.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}

// Registry returns the operation registry once Init has run.
func (a *App) Registry() *ops.Registry {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.registry
}
