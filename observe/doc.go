// Package observe provides observability primitives for health check runs.
//
// It is a pure instrumentation library: tracing, metrics and structured
// logging for check executions, plus exporter setup. The monitor wraps every
// check run with a Middleware built from an Observer; the server exposes the
// Prometheus registry through Observer.MetricsHandler.
package observe
