package health

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/healthmonitor/observe"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// waitDone fails the test if the monitor's loops do not all return in time.
func waitDone(t *testing.T, m *Monitor, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("Wait() did not return within %v", timeout)
	}
}

func TestMonitor_FailStop(t *testing.T) {
	store := NewStore(PhaseOnline)
	check := &fakeCheck{
		name:     "A",
		interval: time.Millisecond,
		run: func(ctx context.Context, call int) error {
			return errors.New("boom")
		},
	}

	m := NewMonitor(store, []Check{check})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, m, time.Second)

	status := store.Snapshot()
	if status.State != StateUnhealthy {
		t.Errorf("State = %v, want unhealthy", status.State)
	}
	if len(status.Messages) != 1 || status.Messages[0] != "A: boom" {
		t.Errorf("Messages = %v, want [A: boom]", status.Messages)
	}
	if check.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", check.Calls())
	}

	// An operator making the store healthy does not re-arm the loop.
	store.SetState(StateHealthy, "")
	time.Sleep(20 * time.Millisecond)
	if check.Calls() != 1 {
		t.Errorf("Calls() after reset = %d, want 1", check.Calls())
	}
}

func TestMonitor_RunsPeriodically(t *testing.T) {
	store := NewStore(PhaseOnline)
	check := &fakeCheck{name: "A", interval: 2 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(store, []Check{check})
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, time.Second, func() bool { return check.Calls() >= 3 })
	cancel()
	waitDone(t, m, time.Second)

	if !store.Snapshot().Healthy() {
		t.Errorf("store = %v, want healthy", store.Snapshot())
	}
}

func TestMonitor_OtherLoopsHaltAfterFailure(t *testing.T) {
	store := NewStore(PhaseOnline)
	failing := &fakeCheck{
		name:     "A",
		interval: time.Hour,
		run: func(ctx context.Context, call int) error {
			return errors.New("down")
		},
	}
	passing := &fakeCheck{name: "B", interval: 2 * time.Millisecond}

	m := NewMonitor(store, []Check{failing, passing})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, m, time.Second)

	status := store.Snapshot()
	if len(status.Messages) != 1 || status.Messages[0] != "A: down" {
		t.Errorf("Messages = %v, want [A: down]", status.Messages)
	}
}

func TestMonitor_UnhealthyAtStartHalts(t *testing.T) {
	store := NewStore(PhaseOnline)
	store.SetState(StateUnhealthy, "operator")
	check := &fakeCheck{name: "A", interval: time.Millisecond}

	m := NewMonitor(store, []Check{check})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, m, time.Second)

	if check.Calls() != 0 {
		t.Errorf("Calls() = %d, want 0", check.Calls())
	}
}

func TestMonitor_DeployingGate(t *testing.T) {
	store := NewStore(PhaseDeploying)
	check := &fakeCheck{
		name:     "FileCheck",
		interval: time.Millisecond,
		run: func(ctx context.Context, call int) error {
			return errors.New("file /a is empty")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(store, []Check{check}, WithPollInterval(2*time.Millisecond))
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if check.Calls() != 0 {
		t.Fatalf("Calls() while deploying = %d, want 0", check.Calls())
	}
	if !store.Snapshot().Healthy() {
		t.Fatalf("store while deploying = %v, want healthy", store.Snapshot())
	}

	store.SetPhase(PhaseOnline)
	waitDone(t, m, time.Second)

	status := store.Snapshot()
	if status.State != StateUnhealthy {
		t.Errorf("State = %v, want unhealthy", status.State)
	}
	if len(status.Messages) != 1 || status.Messages[0] != "FileCheck: file /a is empty" {
		t.Errorf("Messages = %v", status.Messages)
	}
}

func TestMonitor_DeployingTakesPrecedenceOverUnhealthy(t *testing.T) {
	store := NewStore(PhaseDeploying)
	store.SetState(StateUnhealthy, "")
	check := &fakeCheck{name: "A", interval: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(store, []Check{check}, WithPollInterval(2*time.Millisecond))
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The loop keeps polling instead of halting; it only halts once online.
	time.Sleep(20 * time.Millisecond)
	store.Apply(Patch{Phase: ptr(PhaseOnline)})
	waitDone(t, m, time.Second)
	cancel()

	if check.Calls() != 0 {
		t.Errorf("Calls() = %d, want 0", check.Calls())
	}
}

func TestMonitor_DisabledNotScheduled(t *testing.T) {
	store := NewStore(PhaseOnline)
	check := &fakeCheck{
		name:     "A",
		disabled: true,
		run: func(ctx context.Context, call int) error {
			return errors.New("should not run")
		},
	}

	m := NewMonitor(store, []Check{check})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, m, time.Second)

	if check.Calls() != 0 {
		t.Errorf("Calls() = %d, want 0", check.Calls())
	}
	if !store.Snapshot().Healthy() {
		t.Errorf("store = %v, want healthy", store.Snapshot())
	}
}

func TestMonitor_StartTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(NewStore(PhaseOnline), nil)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(ctx); !errors.Is(err, ErrMonitorStarted) {
		t.Errorf("second Start() error = %v, want ErrMonitorStarted", err)
	}
}

func TestMonitor_CancelAbandonsRun(t *testing.T) {
	store := NewStore(PhaseOnline)
	block := make(chan struct{})
	defer close(block)

	check := &fakeCheck{
		name:     "A",
		interval: time.Millisecond,
		run: func(ctx context.Context, call int) error {
			<-block
			return errors.New("late failure")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(store, []Check{check})
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, time.Second, func() bool { return check.Calls() == 1 })
	cancel()
	waitDone(t, m, time.Second)

	if !store.Snapshot().Healthy() {
		t.Errorf("store = %v, want healthy after shutdown", store.Snapshot())
	}
}

func TestMonitor_FailureDuringDeployingDiscarded(t *testing.T) {
	store := NewStore(PhaseOnline)
	release := make(chan struct{})

	check := &fakeCheck{
		name:     "A",
		interval: time.Millisecond,
		run: func(ctx context.Context, call int) error {
			if call == 1 {
				<-release
				return errors.New("boom")
			}
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMonitor(store, []Check{check}, WithPollInterval(5*time.Millisecond))
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, time.Second, func() bool { return check.Calls() == 1 })
	store.SetPhase(PhaseDeploying)
	close(release)

	time.Sleep(30 * time.Millisecond)
	status := store.Snapshot()
	if !status.Healthy() || len(status.Messages) != 0 {
		t.Errorf("store = %v, want healthy with no messages", status)
	}
	if check.Calls() != 1 {
		t.Errorf("Calls() while deploying = %d, want 1", check.Calls())
	}

	// The loop survives the discarded failure and resumes once online.
	store.SetPhase(PhaseOnline)
	waitFor(t, time.Second, func() bool { return check.Calls() >= 2 })
	if !store.Snapshot().Healthy() {
		t.Errorf("store = %v, want healthy", store.Snapshot())
	}

	cancel()
	waitDone(t, m, time.Second)
}

func TestMonitor_QuickCheckOrderAndFailFast(t *testing.T) {
	store := NewStore(PhaseDeploying)
	var order []string
	record := func(name string, err error) func(context.Context, int) error {
		return func(ctx context.Context, call int) error {
			order = append(order, name)
			return err
		}
	}

	bErr := errors.New("file /b is empty")
	a := &fakeCheck{name: "A", quick: true, run: record("A", nil)}
	slow := &fakeCheck{name: "Slow", quick: false, run: record("Slow", nil)}
	off := &fakeCheck{name: "Off", quick: true, disabled: true, run: record("Off", nil)}
	b := &fakeCheck{name: "B", quick: true, run: record("B", bErr)}
	c := &fakeCheck{name: "C", quick: true, run: record("C", nil)}

	m := NewMonitor(store, []Check{a, slow, off, b, c})
	err := m.QuickCheck(context.Background())

	if !errors.Is(err, bErr) {
		t.Fatalf("QuickCheck() error = %v, want %v", err, bErr)
	}
	if err.Error() != "file /b is empty" {
		t.Errorf("QuickCheck() error = %q, want the check's error unchanged", err.Error())
	}
	if strings.Join(order, ",") != "A,B" {
		t.Errorf("run order = %v, want [A B]", order)
	}
	if c.Calls() != 0 {
		t.Errorf("C.Calls() = %d, want 0", c.Calls())
	}

	status := store.Snapshot()
	if !status.Healthy() || len(status.Messages) != 0 || status.Phase != PhaseDeploying {
		t.Errorf("QuickCheck touched the store: %+v", status)
	}
}

func TestMonitor_QuickCheckAllPass(t *testing.T) {
	a := &fakeCheck{name: "A", quick: true}
	b := &fakeCheck{name: "B", quick: true}

	m := NewMonitor(NewStore(PhaseOnline), []Check{a, b})
	if err := m.QuickCheck(context.Background()); err != nil {
		t.Errorf("QuickCheck() error = %v, want nil", err)
	}
	if a.Calls() != 1 || b.Calls() != 1 {
		t.Errorf("Calls() = %d, %d, want 1, 1", a.Calls(), b.Calls())
	}
}

func TestMonitor_QuickCheckNoChecks(t *testing.T) {
	m := NewMonitor(NewStore(PhaseOnline), DefaultChecks(FileCheckConfig{}, URLCheckConfig{}))
	if err := m.QuickCheck(context.Background()); err != nil {
		t.Errorf("QuickCheck() error = %v, want nil", err)
	}
}

func TestMonitor_Checks(t *testing.T) {
	a := &fakeCheck{name: "A"}
	b := &fakeCheck{name: "B"}

	m := NewMonitor(NewStore(PhaseOnline), []Check{a, b})
	checks := m.Checks()
	if len(checks) != 2 || checks[0].Name() != "A" || checks[1].Name() != "B" {
		t.Errorf("Checks() = %v", checks)
	}
}

func TestMonitor_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("debug", &buf)

	check := &fakeCheck{
		name: "A",
		run: func(ctx context.Context, call int) error {
			return errors.New("boom")
		},
	}

	m := NewMonitor(NewStore(PhaseOnline), []Check{check}, WithLogger(logger))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, m, time.Second)

	out := buf.String()
	if !strings.Contains(out, `"msg":"check failed"`) {
		t.Errorf("log output missing check failed: %s", out)
	}
	if !strings.Contains(out, `"check":"A"`) {
		t.Errorf("log output missing check name: %s", out)
	}
}

// testObserver is an observe.Observer backed by a ManualReader.
type testObserver struct {
	meter metric.Meter
}

func (o *testObserver) Tracer() trace.Tracer {
	return tracenoop.NewTracerProvider().Tracer("test")
}
func (o *testObserver) Meter() metric.Meter                { return o.meter }
func (o *testObserver) Logger() observe.Logger             { return observe.NopLogger() }
func (o *testObserver) MetricsHandler() http.Handler       { return nil }
func (o *testObserver) Shutdown(ctx context.Context) error { return nil }

func TestMonitor_RecordsRunMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	mw, err := observe.MiddlewareFromObserver(&testObserver{meter: provider.Meter("test")})
	if err != nil {
		t.Fatalf("MiddlewareFromObserver() error = %v", err)
	}

	a := &fakeCheck{name: "A", quick: true}
	m := NewMonitor(NewStore(PhaseOnline), []Check{a}, WithMiddleware(mw))
	if err := m.QuickCheck(context.Background()); err != nil {
		t.Fatalf("QuickCheck() error = %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "check.run.total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("check.run.total data = %T, want Sum[int64]", md.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 1 {
		t.Errorf("check.run.total = %d, want 1", total)
	}
}

func ptr[T any](v T) *T {
	return &v
}
