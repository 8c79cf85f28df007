package serverapp

import (
	"context"
	"log/slog"

	"aerodb/internal/config"
	"aerodb/internal/logging"
	"aerodb/internal/observability"
)

// InitLogger builds the process logger from config and installs it as the
// slog default. When log export is enabled the returned provider must be
// shut down by the caller (or handed to App.AttachLoggerProvider).
func InitLogger(ctx context.Context, cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.LogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(ctx, telemetryConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	logger.Info("OpenTelemetry logging initialized")

	return logger, loggerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.OperationMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil
	}

	meterProvider, err := observability.InitMeterProvider(telemetryConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return nil, nil, err
	}

	metrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("OpenTelemetry metrics initialized",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("environment", cfg.Observability.Environment),
	)
	return meterProvider, metrics, nil
}

func initTracing(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.TracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)

	tracerProvider, err := observability.InitTracerProvider(ctx, telemetryConfig(cfg, tracesConfig))
	if err != nil {
		return nil, err
	}
	logger.Info("OpenTelemetry tracing initialized")
	return tracerProvider, nil
}

func telemetryConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLP: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
			RetryEnabled:      otlp.RetryEnabled,
			RetryMaxAttempts:  otlp.RetryMaxAttempts,
		},
	}
}
