package health

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Info identifies a running server. Clients compare it to their own build to
// decide whether the server answering on an address is ours.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// StatusPatch is the JSON body accepted by PATCH /status. Every field is
// optional.
type StatusPatch struct {
	Health  *string `json:"health,omitempty"`
	Message *string `json:"message,omitempty"`
	Phase   *string `json:"phase,omitempty"`
}

// maxPatchBytes bounds the PATCH /status request body.
const maxPatchBytes = 1 << 20

// ErrorResponse is the JSON body of every 4xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusHandler returns an HTTP handler that serves the current snapshot.
// It answers 200 when healthy and 503 when unhealthy; the body is always present.
func StatusHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := store.Snapshot()

		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}

// PatchStatusHandler returns an HTTP handler that validates a StatusPatch and
// applies it atomically. Nothing is mutated unless every field is valid.
func PatchStatusHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body StatusPatch
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPatchBytes)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
			return
		}

		patch, err := body.toPatch()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, store.Apply(patch))
	}
}

// InfoHandler returns an HTTP handler that serves the server identity.
func InfoHandler(info Info) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, info)
	}
}

// RegisterHandlers registers the status service routes on r.
func RegisterHandlers(r chi.Router, store *Store, info Info) {
	r.Get("/status", StatusHandler(store))
	r.Patch("/status", PatchStatusHandler(store))
	r.Get("/info", InfoHandler(info))
}

func (p StatusPatch) toPatch() (Patch, error) {
	var patch Patch
	var errs []error

	if p.Health != nil {
		state, err := ParseState(*p.Health)
		if err != nil {
			errs = append(errs, err)
		} else {
			patch.State = &state
		}
	}
	if p.Phase != nil {
		phase, err := ParsePhase(*p.Phase)
		if err != nil {
			errs = append(errs, err)
		} else {
			patch.Phase = &phase
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Patch{}, err
	}

	patch.Message = p.Message
	return patch, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
