package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records check run metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRun records a check run with duration and failure status.
	RecordRun(ctx context.Context, meta CheckMeta, duration time.Duration, err error)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	failureCount metric.Int64Counter
	durationHist metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"check.run.total",
		metric.WithDescription("Total number of check runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	failureCount, err := meter.Int64Counter(
		"check.run.failures",
		metric.WithDescription("Total number of failed check runs"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"check.run.duration_ms",
		metric.WithDescription("Check run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		failureCount: failureCount,
		durationHist: durationHist,
	}, nil
}

// RecordRun records metrics for a check run.
func (m *metricsImpl) RecordRun(ctx context.Context, meta CheckMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("check.name", meta.Name),
		attribute.String("check.mode", meta.Mode()),
	)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.failureCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

type noopMetrics struct{}

func (m *noopMetrics) RecordRun(ctx context.Context, meta CheckMeta, duration time.Duration, err error) {
}
