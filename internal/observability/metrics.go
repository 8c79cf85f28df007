package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"aerodb/internal/dataerr"
)

const meterName = "aerodb"

// OperationMetrics records per-operation latency, outcome, and the storage
// round trips each operation spends.
type OperationMetrics struct {
	operationDuration metric.Float64Histogram
	operationCounter  metric.Int64Counter
	errorCounter      metric.Int64Counter
	missingCounter    metric.Int64Counter
	roundTripDuration metric.Float64Histogram
	roundTripCounter  metric.Int64Counter
}

// NewOperationMetrics creates the instruments on the given meter.
func NewOperationMetrics(meter metric.Meter) (*OperationMetrics, error) {
	operationDuration, err := meter.Float64Histogram(
		"aerodb.operation.duration",
		metric.WithDescription("Duration of data-access operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation duration histogram: %w", err)
	}

	operationCounter, err := meter.Int64Counter(
		"aerodb.operation.total",
		metric.WithDescription("Total number of operations invoked"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"aerodb.operation.errors",
		metric.WithDescription("Operations that returned an error, by error kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	missingCounter, err := meter.Int64Counter(
		"aerodb.operation.missing_ids",
		metric.WithDescription("Requested ids with no stored row"),
		metric.WithUnit("{id}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create missing id counter: %w", err)
	}

	roundTripDuration, err := meter.Float64Histogram(
		"aerodb.storage.round_trip.duration",
		metric.WithDescription("Duration of storage queries and statements"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create round trip histogram: %w", err)
	}

	roundTripCounter, err := meter.Int64Counter(
		"aerodb.storage.round_trips",
		metric.WithDescription("Storage round trips by entity"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create round trip counter: %w", err)
	}

	return &OperationMetrics{
		operationDuration: operationDuration,
		operationCounter:  operationCounter,
		errorCounter:      errorCounter,
		missingCounter:    missingCounter,
		roundTripDuration: roundTripDuration,
		roundTripCounter:  roundTripCounter,
	}, nil
}

// InitMetrics creates operation metrics on the global meter provider.
func InitMetrics(logger *slog.Logger) (*OperationMetrics, error) {
	m, err := NewOperationMetrics(otel.Meter(meterName))
	if err != nil {
		return nil, err
	}
	logger.Info("operation metrics initialized")
	return m, nil
}

// ObserveOperation records one completed operation.
func (m *OperationMetrics) ObserveOperation(ctx context.Context, name string, duration time.Duration, err error, missing int) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", name),
		attribute.String("status", status),
	)
	m.operationDuration.Record(ctx, duration.Seconds(), attrs)
	m.operationCounter.Add(ctx, 1, attrs)

	if err != nil {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", name),
			attribute.String("error.kind", dataerr.Kind(err)),
		))
	}
	if missing > 0 {
		m.missingCounter.Add(ctx, int64(missing), metric.WithAttributes(attribute.String("operation", name)))
	}
}

// RecordRoundTrip records one storage query or statement.
func (m *OperationMetrics) RecordRoundTrip(ctx context.Context, entity string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.Bool("error", err != nil),
	)
	m.roundTripDuration.Record(ctx, duration.Seconds(), attrs)
	m.roundTripCounter.Add(ctx, 1, attrs)
}
