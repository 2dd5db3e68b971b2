package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/healthmonitor/health"
	"github.com/jonwraymond/healthmonitor/observe"
)

var testInfo = health.Info{Name: "healthmonitor", Version: "test"}

// logObserver is a noop observer with a real logger.
type logObserver struct {
	observe.Observer
	logger observe.Logger
}

func (o logObserver) Logger() observe.Logger { return o.logger }

func newTestServer(t *testing.T, store *health.Store, obs observe.Observer) *Server {
	t.Helper()
	srv, err := New(Config{Addr: "127.0.0.1:0"}, store, testInfo, obs)
	require.NoError(t, err)
	return srv
}

func TestNew_Defaults(t *testing.T) {
	srv, err := New(Config{}, health.NewStore(health.PhaseOnline), testInfo, nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", srv.Addr())
	assert.Equal(t, 5*time.Second, srv.config.ShutdownTimeout)
}

func TestHandler_StatusRoutes(t *testing.T) {
	store := health.NewStore(health.PhaseOnline)
	srv := newTestServer(t, store, observe.NewNoop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/status", strings.NewReader(`{"health":"unhealthy","message":"down"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status health.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, []string{"down"}, status.Messages)
}

func TestHandler_NoMetricsRouteWithoutPrometheus(t *testing.T) {
	srv := newTestServer(t, health.NewStore(health.PhaseOnline), observe.NewNoop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_MetricsRoute(t *testing.T) {
	obs, err := observe.NewObserver(context.Background(), observe.Config{
		ServiceName: "healthmonitor-test",
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	store := health.NewStore(health.PhaseOnline)
	_, err = health.RegisterStatusMetrics(obs.Meter(), store)
	require.NoError(t, err)
	srv := newTestServer(t, store, obs)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assertExposes(t, body, "health_status_healthy", "health.status.healthy")
	assertExposes(t, body, "http_server_requests", "http.server.requests")
}

// assertExposes accepts either the escaped or the UTF-8 metric name, since
// the exporter's translation strategy decides which one is served.
func assertExposes(t *testing.T, body string, names ...string) {
	t.Helper()
	for _, name := range names {
		if strings.Contains(body, name) {
			return
		}
	}
	t.Errorf("metrics output does not contain any of %v:\n%s", names, body)
}

func TestHandler_LogsRequests(t *testing.T) {
	var buf bytes.Buffer
	obs := logObserver{Observer: observe.NewNoop(), logger: observe.NewLoggerWithWriter("info", &buf)}
	srv := newTestServer(t, health.NewStore(health.PhaseOnline), obs)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/info", entry["path"])
	assert.EqualValues(t, 200, entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestServe_Shutdown(t *testing.T) {
	var buf bytes.Buffer
	obs := logObserver{Observer: observe.NewNoop(), logger: observe.NewLoggerWithWriter("info", &buf)}
	srv := newTestServer(t, health.NewStore(health.PhaseOnline), obs)

	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/info")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"healthmonitor","version":"test"}`, string(body))

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	logs := buf.String()
	assert.Contains(t, logs, "Server started.")
	assert.Contains(t, logs, "Server stopped.")
}

func TestListen_AddressInUse(t *testing.T) {
	srv := newTestServer(t, health.NewStore(health.PhaseOnline), nil)
	ln, err := srv.Listen()
	require.NoError(t, err)
	defer ln.Close()

	busy, err := New(Config{Addr: ln.Addr().String()}, health.NewStore(health.PhaseOnline), testInfo, nil)
	require.NoError(t, err)

	_, err = busy.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind to")
}
