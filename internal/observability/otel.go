// Package observability wires OpenTelemetry for aerodb: a Prometheus-backed
// meter provider, OTLP trace and log exporters over gRPC or HTTP, and the
// operation metrics recorded by the ops registry and the storage gateway.
package observability

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

const (
	shutdownTimeout = 5 * time.Second

	retryInitial = 1 * time.Second
	retryMax     = 5 * time.Second
	retryElapsed = 30 * time.Second
)

// Config describes the service identity and the OTLP destination.
type Config struct {
	ServiceName      string
	ServiceVersion   string
	Environment      string
	TraceSampleRatio float64
	OTLP             OTLPExporterConfig
}

// OTLPExporterConfig holds the exporter settings shared by traces and logs.
type OTLPExporterConfig struct {
	Endpoint          string
	Protocol          string
	Insecure          bool
	TLSCertFile       string
	TLSClientCertFile string
	TLSClientKeyFile  string
	Headers           map[string]string
	Timeout           time.Duration
	Compression       string
	RetryEnabled      bool
	RetryMaxAttempts  int
}

func (c OTLPExporterConfig) retrying() bool {
	return c.RetryEnabled && c.RetryMaxAttempts > 0
}

func (c OTLPExporterConfig) gzip() bool {
	return strings.EqualFold(c.Compression, "gzip")
}

func newResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// MeterProvider owns the global meter provider and its Prometheus reader.
type MeterProvider struct {
	provider *metric.MeterProvider
	exporter *prometheus.Exporter
}

// InitMeterProvider installs a Prometheus-backed meter provider globally.
func InitMeterProvider(cfg Config) (*MeterProvider, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	return &MeterProvider{provider: provider, exporter: exporter}, nil
}

// Shutdown flushes and stops the meter provider.
func (mp *MeterProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "meter provider", mp.provider.Shutdown)
}

// Exporter returns the Prometheus exporter backing /metrics.
func (mp *MeterProvider) Exporter() *prometheus.Exporter {
	return mp.exporter
}

type otlpProtocol string

const (
	otlpProtocolGRPC otlpProtocol = "grpc"
	otlpProtocolHTTP otlpProtocol = "http/protobuf"
)

func parseOTLPProtocol(value string) (otlpProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(otlpProtocolGRPC):
		return otlpProtocolGRPC, nil
	case "http", string(otlpProtocolHTTP):
		return otlpProtocolHTTP, nil
	default:
		return "", fmt.Errorf("unsupported OTLP protocol %q (use grpc or http/protobuf)", value)
	}
}

func buildTLSConfig(cfg OTLPExporterConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.TLSCertFile != "" {
		pem, err := os.ReadFile(cfg.TLSCertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read OTLP TLS CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse OTLP TLS CA file")
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.TLSClientCertFile != "" || cfg.TLSClientKeyFile != "" {
		if cfg.TLSClientCertFile == "" || cfg.TLSClientKeyFile == "" {
			return nil, fmt.Errorf("OTLP TLS client cert and key must both be set")
		}
		cert, err := tls.LoadX509KeyPair(cfg.TLSClientCertFile, cfg.TLSClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load OTLP TLS client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func isHTTPEndpointURL(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}

func traceGRPCOptions(cfg OTLPExporterConfig) ([]otlptracegrpc.Option, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}
	if cfg.gzip() {
		opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
	}
	if cfg.retrying() {
		opts = append(opts, otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled: true, InitialInterval: retryInitial, MaxInterval: retryMax, MaxElapsedTime: retryElapsed,
		}))
	}
	return opts, nil
}

func traceHTTPOptions(cfg OTLPExporterConfig) ([]otlptracehttp.Option, error) {
	var opts []otlptracehttp.Option
	if isHTTPEndpointURL(cfg.Endpoint) {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	} else {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsConfig))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
	}
	if cfg.gzip() {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	if cfg.retrying() {
		opts = append(opts, otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled: true, InitialInterval: retryInitial, MaxInterval: retryMax, MaxElapsedTime: retryElapsed,
		}))
	}
	return opts, nil
}

func newTraceExporter(ctx context.Context, cfg OTLPExporterConfig) (sdktrace.SpanExporter, error) {
	protocol, err := parseOTLPProtocol(cfg.Protocol)
	if err != nil {
		return nil, err
	}

	var exp sdktrace.SpanExporter
	switch protocol {
	case otlpProtocolHTTP:
		opts, err := traceHTTPOptions(cfg)
		if err != nil {
			return nil, err
		}
		exp, err = otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
	default:
		opts, err := traceGRPCOptions(cfg)
		if err != nil {
			return nil, err
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
	}
	return exp, nil
}

// TracerProvider owns the global tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// InitTracerProvider installs a batching OTLP tracer provider globally.
func InitTracerProvider(ctx context.Context, cfg Config) (*TracerProvider, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}
	exp, err := newTraceExporter(ctx, cfg.OTLP)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(traceSamplerForRatio(cfg.TraceSampleRatio)),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{provider: provider}, nil
}

func traceSamplerForRatio(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "tracer provider", tp.provider.Shutdown)
}

func logGRPCOptions(cfg OTLPExporterConfig) ([]otlploggrpc.Option, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	} else {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlploggrpc.WithTimeout(cfg.Timeout))
	}
	if cfg.gzip() {
		opts = append(opts, otlploggrpc.WithCompressor("gzip"))
	}
	if cfg.retrying() {
		opts = append(opts, otlploggrpc.WithRetry(otlploggrpc.RetryConfig{
			Enabled: true, InitialInterval: retryInitial, MaxInterval: retryMax, MaxElapsedTime: retryElapsed,
		}))
	}
	return opts, nil
}

func logHTTPOptions(cfg OTLPExporterConfig) ([]otlploghttp.Option, error) {
	var opts []otlploghttp.Option
	if isHTTPEndpointURL(cfg.Endpoint) {
		opts = append(opts, otlploghttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlploghttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	} else {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, otlploghttp.WithTLSClientConfig(tlsConfig))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(cfg.Timeout))
	}
	if cfg.gzip() {
		opts = append(opts, otlploghttp.WithCompression(otlploghttp.GzipCompression))
	}
	if cfg.retrying() {
		opts = append(opts, otlploghttp.WithRetry(otlploghttp.RetryConfig{
			Enabled: true, InitialInterval: retryInitial, MaxInterval: retryMax, MaxElapsedTime: retryElapsed,
		}))
	}
	return opts, nil
}

func newLogExporter(ctx context.Context, cfg OTLPExporterConfig) (log.Exporter, error) {
	protocol, err := parseOTLPProtocol(cfg.Protocol)
	if err != nil {
		return nil, err
	}

	var exp log.Exporter
	switch protocol {
	case otlpProtocolHTTP:
		opts, err := logHTTPOptions(cfg)
		if err != nil {
			return nil, err
		}
		exp, err = otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
	default:
		opts, err := logGRPCOptions(cfg)
		if err != nil {
			return nil, err
		}
		exp, err = otlploggrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
	}
	return exp, nil
}

// LoggerProvider owns the OTLP log pipeline fed by the slog bridge.
type LoggerProvider struct {
	provider *log.LoggerProvider
}

// InitLoggerProvider builds a batching OTLP logger provider. It is not
// installed globally; pass Provider() to logging.Config instead.
func InitLoggerProvider(ctx context.Context, cfg Config) (*LoggerProvider, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}
	exp, err := newLogExporter(ctx, cfg.OTLP)
	if err != nil {
		return nil, err
	}

	provider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(exp)),
	)
	return &LoggerProvider{provider: provider}, nil
}

// Shutdown flushes pending log records.
func (lp *LoggerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "logger provider", lp.provider.Shutdown)
}

// Provider returns the underlying SDK provider.
func (lp *LoggerProvider) Provider() *log.LoggerProvider {
	return lp.provider
}

// Shutdowner is any provider with a bounded shutdown.
type Shutdowner interface {
	Shutdown(ctx context.Context, logger *slog.Logger) error
}

// ShutdownAll stops every provider, in order, and joins their errors.
func ShutdownAll(ctx context.Context, logger *slog.Logger, providers ...Shutdowner) error {
	var errs []error
	for _, p := range providers {
		if p == nil {
			continue
		}
		if err := p.Shutdown(ctx, logger); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func shutdown(ctx context.Context, logger *slog.Logger, what string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		logger.Error("failed to shutdown "+what, slog.String("error", err.Error()))
		return err
	}
	logger.Info(what + " shutdown successfully")
	return nil
}
