package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/healthmonitor/observe"
)

// requestLogger logs one line per request with its outcome.
//
// Example (json):
//
//	{"level":"info","timestamp":"...","msg":"request completed","request_id":"host/abc-000001","method":"PATCH","path":"/status","status":200,"bytes":56,"duration_ms":0}
func requestLogger(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []observe.Field{
				{Key: "request_id", Value: middleware.GetReqID(r.Context())},
				{Key: "method", Value: r.Method},
				{Key: "path", Value: r.URL.Path},
				{Key: "status", Value: status},
				{Key: "bytes", Value: ww.BytesWritten()},
				{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			}
			if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
				logger.Warn(r.Context(), "request completed", fields...)
				return
			}
			logger.Info(r.Context(), "request completed", fields...)
		})
	}
}

// requestMetrics counts requests and records their latency on meter.
type requestMetrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

func newRequestMetrics(meter metric.Meter) (*requestMetrics, error) {
	total, err := meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"http.server.duration_ms",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &requestMetrics{total: total, duration: duration}, nil
}

// middleware records metrics keyed by the matched route pattern.
func (m *requestMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := metric.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", routePattern(r)),
			attribute.Int("http.status_code", status),
		)
		m.total.Add(r.Context(), 1, attrs)
		m.duration.Record(r.Context(), float64(time.Since(start).Microseconds())/1000, attrs)
	})
}
