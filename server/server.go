package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jonwraymond/healthmonitor/health"
	"github.com/jonwraymond/healthmonitor/observe"
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the host:port to listen on.
	// Default: 127.0.0.1:8080
	Addr string

	// ShutdownTimeout bounds graceful shutdown once the context is cancelled.
	// Default: 5 seconds
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds how long a client may take to send headers.
	// Default: 10 seconds
	ReadHeaderTimeout time.Duration
}

// Server serves the status service, /info and /metrics.
type Server struct {
	config Config
	router chi.Router
	logger observe.Logger
}

// New creates a server for store. obs supplies the logger, the meter used
// for request metrics and, when the prometheus exporter is active, the
// /metrics handler.
func New(cfg Config, store *health.Store, info health.Info, obs observe.Observer) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if obs == nil {
		obs = observe.NewNoop()
	}

	metrics, err := newRequestMetrics(obs.Meter())
	if err != nil {
		return nil, fmt.Errorf("failed to create request metrics: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(obs.Logger()))
	r.Use(metrics.middleware)

	health.RegisterHandlers(r, store, info)
	if h := obs.MetricsHandler(); h != nil {
		r.Method(http.MethodGet, "/metrics", h)
	}

	return &Server{
		config: cfg,
		router: r,
		logger: obs.Logger(),
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind to %s: %w", s.config.Addr, err)
	}
	return ln, nil
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info(ctx, "Server started.", observe.Field{Key: "addr", Value: ln.Addr().String()})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.logger.Info(shutdownCtx, "Server stopped.")
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Run binds the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
