package health

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/healthmonitor/observe"
)

// Monitor runs one independent loop per enabled check against a shared Store.
//
// Contract:
//   - A failing periodic check marks the store unhealthy with
//     "<name>: <reason>" and its loop stops for good.
//   - While the phase is deploying, loops skip their runs and re-poll. A
//     run that fails after the phase switched to deploying is discarded.
//   - Cancelling the context passed to Start stops every loop; a run in
//     flight at that moment is abandoned and its outcome discarded.
type Monitor struct {
	store        *Store
	checks       []Check
	pollInterval time.Duration
	logger       observe.Logger
	middleware   *observe.Middleware

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithPollInterval sets how often a loop re-reads the phase while deploying.
// Default: 1 second
func WithPollInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithLogger sets the logger for loop lifecycle events.
func WithLogger(l observe.Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMiddleware wraps every periodic and quick run with tracing, metrics and logging.
func WithMiddleware(mw *observe.Middleware) MonitorOption {
	return func(m *Monitor) {
		if mw != nil {
			m.middleware = mw
		}
	}
}

// NewMonitor creates a monitor over checks, kept in registration order.
func NewMonitor(store *Store, checks []Check, opts ...MonitorOption) *Monitor {
	registered := make([]Check, len(checks))
	copy(registered, checks)

	m := &Monitor{
		store:        store,
		checks:       registered,
		pollInterval: time.Second,
		logger:       observe.NopLogger(),
		middleware:   observe.NopMiddleware(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Checks returns the registered checks in registration order.
func (m *Monitor) Checks() []Check {
	checks := make([]Check, len(m.checks))
	copy(checks, m.checks)
	return checks
}

// Start spawns a loop for every enabled check and returns immediately.
// Disabled checks are never scheduled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrMonitorStarted
	}
	m.started = true

	for _, c := range m.checks {
		if !c.IsEnabled() {
			m.logger.WithCheck(c.Name()).Debug(ctx, "check disabled, not scheduling")
			continue
		}
		m.wg.Add(1)
		go m.loop(ctx, c)
	}
	return nil
}

// Wait blocks until every loop has returned.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// QuickCheck runs every enabled quick check once, in registration order,
// and returns the first failure unchanged. The store is neither read nor
// written.
func (m *Monitor) QuickCheck(ctx context.Context) error {
	for _, c := range m.checks {
		if !c.IsEnabled() || !c.IsQuickCheck() {
			continue
		}
		if err := m.run(ctx, c, true); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) loop(ctx context.Context, c Check) {
	defer m.wg.Done()

	log := m.logger.WithCheck(c.Name())
	for {
		switch m.store.gate() {
		case gateWait:
			log.Debug(ctx, "not executing check: deploying")
			if !sleep(ctx, m.pollInterval) {
				return
			}
			continue
		case gateHalt:
			log.Debug(ctx, "not executing check: status is unhealthy")
			return
		}

		err := m.run(ctx, c, false)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !m.store.failOnline(failureMessage(c, err)) {
				log.Debug(ctx, "discarding check failure: deploying", observe.Field{Key: "error", Value: err})
				continue
			}
			log.Error(ctx, "check failed", observe.Field{Key: "error", Value: err})
			return
		}

		if !sleep(ctx, c.Interval()) {
			return
		}
	}
}

// run invokes the check through the middleware. If ctx ends first the run
// is abandoned and ctx.Err() is returned; the probe goroutine drains into a
// buffered channel.
func (m *Monitor) run(ctx context.Context, c Check, quick bool) error {
	fn := m.middleware.Wrap(func(ctx context.Context, _ observe.CheckMeta) error {
		done := make(chan error, 1)
		go func() {
			done <- c.Run(ctx)
		}()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return fn(ctx, observe.CheckMeta{Name: c.Name(), Quick: quick})
}

// sleep waits for d or until ctx is done. It reports false when ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
