// Package health implements the monitoring engine: pluggable checks, the
// shared health record they report into, the per-check scheduling loops and
// the HTTP contract of the status service.
//
// # Core Concepts
//
// A Check is a named probe that passes or fails. FileCheck verifies that
// files exist and are non-empty; URLCheck verifies that URLs answer 200.
//
// A Store holds the single Status record: a State (healthy or unhealthy),
// an append-only list of messages and a deployment Phase. Every read and
// write goes through the store's mutex.
//
// A Monitor runs one loop per enabled check. A failure marks the store
// unhealthy, records "<name>: <reason>" and stops that loop. Only an
// operator can make the store healthy again. While the phase is deploying,
// loops hold off and re-poll.
//
// # Basic Usage
//
//	store := health.NewStore(health.PhaseOnline)
//	checks := health.DefaultChecks(
//	    health.FileCheckConfig{Files: []string{"/var/run/app.pid"}},
//	    health.URLCheckConfig{URLs: []string{"http://localhost:9000/ping"}},
//	)
//
//	mon := health.NewMonitor(store, checks)
//	if err := mon.Start(ctx); err != nil {
//	    return err
//	}
//	defer mon.Wait()
//
// # Quick Check
//
// QuickCheck runs the cheap checks once, synchronously, without touching
// the store:
//
//	if err := mon.QuickCheck(ctx); err != nil {
//	    fmt.Println("error:", err)
//	}
//
// # HTTP Endpoints
//
//	r := chi.NewRouter()
//	health.RegisterHandlers(r, store, health.Info{Name: "healthmonitor", Version: version})
//
// GET /status answers 200 when healthy and 503 when unhealthy. PATCH /status
// accepts {"health", "message", "phase"} and applies them atomically.
package health
