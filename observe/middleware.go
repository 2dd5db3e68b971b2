package observe

import (
	"context"
	"time"
)

// RunFunc is the signature of a single check run.
type RunFunc func(ctx context.Context, meta CheckMeta) error

// Middleware wraps check runs with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe RunFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps a RunFunc with tracing, metrics and logging.
func (m *Middleware) Wrap(fn RunFunc) RunFunc {
	return func(ctx context.Context, meta CheckMeta) error {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := time.Now()
		err := fn(ctx, meta)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordRun(ctx, meta, duration, err)

		fields := []Field{
			{Key: "mode", Value: meta.Mode()},
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}
		log := m.logger.WithCheck(meta.Name)
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			log.Debug(ctx, "check run failed", fields...)
		} else {
			log.Debug(ctx, "check run succeeded", fields...)
		}

		return err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(newTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// NopMiddleware returns a Middleware that only calls through.
func NopMiddleware() *Middleware {
	return NewMiddleware(newNoopTracer(), &noopMetrics{}, &noopLogger{})
}
