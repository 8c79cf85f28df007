package observability

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"aerodb/internal/dataerr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestInitMeterProvider(t *testing.T) {
	mp, err := InitMeterProvider(Config{ServiceName: "aerodb-test", ServiceVersion: "1.0.0", Environment: "test"})
	require.NoError(t, err)
	require.NotNil(t, mp.provider)
	require.NotNil(t, mp.Exporter())

	m, err := InitMetrics(testLogger())
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.NoError(t, mp.Shutdown(context.Background(), testLogger()))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sum(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

func TestOperationMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewOperationMetrics(provider.Meter(meterName))
	require.NoError(t, err)

	ctx := context.Background()
	m.ObserveOperation(ctx, "full_stand_data", 20*time.Millisecond, nil, 2)
	m.ObserveOperation(ctx, "get", time.Millisecond, &dataerr.NotFoundError{Entity: "clients", ID: 9}, 0)
	m.RecordRoundTrip(ctx, "stands", time.Millisecond, nil)
	m.RecordRoundTrip(ctx, "clients", time.Millisecond, errors.New("boom"))

	got := collect(t, reader)
	assert.Equal(t, int64(2), sum(t, got["aerodb.operation.total"]))
	assert.Equal(t, int64(1), sum(t, got["aerodb.operation.errors"]))
	assert.Equal(t, int64(2), sum(t, got["aerodb.operation.missing_ids"]))
	assert.Equal(t, int64(2), sum(t, got["aerodb.storage.round_trips"]))
	assert.Contains(t, got, "aerodb.operation.duration")
	assert.Contains(t, got, "aerodb.storage.round_trip.duration")

	errs := got["aerodb.operation.errors"].Data.(metricdata.Sum[int64])
	kind, ok := errs.DataPoints[0].Attributes.Value("error.kind")
	require.True(t, ok)
	assert.Equal(t, "not_found", kind.AsString())
}

func TestParseOTLPProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    otlpProtocol
		wantErr bool
	}{
		{"", otlpProtocolGRPC, false},
		{"GRPC", otlpProtocolGRPC, false},
		{"http", otlpProtocolHTTP, false},
		{"http/protobuf", otlpProtocolHTTP, false},
		{"thrift", "", true},
	}
	for _, tt := range tests {
		got, err := parseOTLPProtocol(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestBuildTLSConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	junk := dir + "/junk.pem"
	require.NoError(t, os.WriteFile(junk, []byte("not-a-cert"), 0600))

	tests := []struct {
		name string
		cfg  OTLPExporterConfig
		want string
	}{
		{"missing ca", OTLPExporterConfig{TLSCertFile: "/nonexistent/ca.pem"}, "failed to read OTLP TLS CA file"},
		{"invalid ca", OTLPExporterConfig{TLSCertFile: junk}, "failed to parse OTLP TLS CA file"},
		{"half key pair", OTLPExporterConfig{TLSClientCertFile: junk}, "OTLP TLS client cert and key must both be set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildTLSConfig(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTraceSamplerForRatio(t *testing.T) {
	params := func(ctx context.Context, id byte) sdktrace.SamplingParameters {
		return sdktrace.SamplingParameters{ParentContext: ctx, TraceID: trace.TraceID{id}, Name: "op"}
	}
	bg := context.Background()

	assert.Equal(t, sdktrace.Drop, traceSamplerForRatio(0).ShouldSample(params(bg, 1)).Decision)
	assert.Equal(t, sdktrace.RecordAndSample, traceSamplerForRatio(1).ShouldSample(params(bg, 2)).Decision)

	sampledParent := trace.ContextWithSpanContext(bg, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{3},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
	assert.Equal(t, sdktrace.RecordAndSample, traceSamplerForRatio(0.5).ShouldSample(params(sampledParent, 4)).Decision)
}

type failingShutdown struct{ err error }

func (f failingShutdown) Shutdown(context.Context, *slog.Logger) error { return f.err }

func TestShutdownAll_JoinsErrors(t *testing.T) {
	a := errors.New("a")
	b := errors.New("b")
	err := ShutdownAll(context.Background(), testLogger(), failingShutdown{a}, failingShutdown{}, failingShutdown{b})
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
}
