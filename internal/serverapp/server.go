package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"aerodb/internal/config"
	"aerodb/internal/logging"
	"aerodb/internal/middleware"
	"aerodb/internal/observability"
	"aerodb/internal/tlscert"
)

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db Pinger, registry Caller, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api", listHandler(registry))
	mux.HandleFunc("/api/{op}", apiHandler(registry, cfg.Server.MaxBodyBytes))
	mux.HandleFunc("GET /health", healthHandler(db, cfg.Server.HealthCheckTimeout))

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}
	return mux
}

// wrapHTTPHandler applies, from the outside in: rate limiting, request
// logging, then OTel instrumentation when metrics or tracing is on.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	handler = middleware.LoggingMiddleware(logger)(handler)

	return middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Enabled: cfg.Server.RateLimitEnabled,
		RPS:     cfg.Server.RateLimitRPS,
		Burst:   cfg.Server.RateLimitBurst,
	})(handler)
}

// httpRootSpanName keeps span names low-cardinality: operation names are
// enumerated, anything else collapses to /*.
func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/api", "/health", "/metrics":
		return rawPath
	}
	if strings.HasPrefix(rawPath, "/api/") {
		return "/api/{op}"
	}
	return "/*"
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func serverTLSConfig(cfg *config.Config) tlscert.Config {
	t := cfg.Server.TLS
	return tlscert.Config{Mode: t.Mode, CertFile: t.CertFile, KeyFile: t.KeyFile, CertDir: t.CertDir, Hosts: t.Hosts}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	go func() {
		logAttrs := []any{
			slog.String("address", serverAddr),
			slog.String("api_endpoint", "/api/{op}"),
			slog.String("health_endpoint", "/health"),
			slog.String("log_level", cfg.Observability.Logging.Level),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}
		if cfg.Server.RateLimitEnabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
			)
		}
		logAttrs = append(logAttrs, slog.Bool("tls", srv.TLSConfig != nil))
		logger.Info("server starting", logAttrs...)

		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

// healthHandler pings the database with a short timeout.
func healthHandler(db Pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if err := db.PingContext(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}
