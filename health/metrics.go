package health

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// RegisterStatusMetrics exposes the store as observable gauges on meter:
//   - health.status.healthy: 1 when healthy, 0 when unhealthy
//   - health.status.messages: number of accumulated messages
//   - health.status.deploying: 1 while the phase is deploying
//
// The returned registration can be unregistered to stop observing.
func RegisterStatusMetrics(meter metric.Meter, store *Store) (metric.Registration, error) {
	healthy, err := meter.Int64ObservableGauge(
		"health.status.healthy",
		metric.WithDescription("Whether the application is healthy (1) or unhealthy (0)"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create healthy gauge: %w", err)
	}

	messages, err := meter.Int64ObservableGauge(
		"health.status.messages",
		metric.WithDescription("Number of accumulated health messages"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages gauge: %w", err)
	}

	deploying, err := meter.Int64ObservableGauge(
		"health.status.deploying",
		metric.WithDescription("Whether the deployment phase is deploying (1) or online (0)"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deploying gauge: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		status := store.Snapshot()
		o.ObserveInt64(healthy, boolGauge(status.Healthy()))
		o.ObserveInt64(messages, int64(len(status.Messages)))
		o.ObserveInt64(deploying, boolGauge(status.Phase == PhaseDeploying))
		return nil
	}, healthy, messages, deploying)
}

func boolGauge(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
