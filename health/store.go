package health

import "sync"

// Store is the shared, mutex-guarded health record. Check loops write to it
// on failure; the status service reads it and applies operator patches.
//
// Every method holds the lock for its whole read-modify-write, so a reader
// never observes a half-applied transition and concurrent appends never
// interleave.
type Store struct {
	mu     sync.Mutex
	status Status
}

// NewStore creates a healthy store with no messages in the given phase.
func NewStore(phase Phase) *Store {
	return &Store{
		status: Status{
			State:    StateHealthy,
			Messages: []string{},
			Phase:    phase,
		},
	}
}

// Snapshot returns a copy of the current status.
func (s *Store) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status.clone()
}

// SetState sets the health state and appends message when it is non-empty.
// Setting the state to healthy keeps previously accumulated messages.
func (s *Store) SetState(state State, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.State = state
	if message != "" {
		s.status.Messages = append(s.status.Messages, message)
	}
}

// SetPhase sets the deployment phase. State and messages are untouched.
func (s *Store) SetPhase(phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Phase = phase
}

// AppendMessage appends a message without changing the state.
func (s *Store) AppendMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Messages = append(s.status.Messages, message)
}

// MarkUnhealthy sets the state to unhealthy and appends message in a single
// critical section.
func (s *Store) MarkUnhealthy(message string) {
	s.SetState(StateUnhealthy, message)
}

// failOnline marks the store unhealthy with message unless the phase is
// deploying, checking the phase and writing the state in one critical section.
// It reports whether the failure was recorded.
func (s *Store) failOnline(message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Phase == PhaseDeploying {
		return false
	}
	s.status.State = StateUnhealthy
	if message != "" {
		s.status.Messages = append(s.status.Messages, message)
	}
	return true
}

// Patch is a partial update to the store. Nil fields are left unchanged.
type Patch struct {
	State   *State
	Phase   *Phase
	Message *string
}

// Apply applies every field of p in one critical section and returns the
// resulting snapshot. Values must already be validated; Apply cannot fail.
func (s *Store) Apply(p Patch) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.State != nil {
		s.status.State = *p.State
	}
	if p.Phase != nil {
		s.status.Phase = *p.Phase
	}
	if p.Message != nil && *p.Message != "" {
		s.status.Messages = append(s.status.Messages, *p.Message)
	}
	return s.status.clone()
}

// gateDecision is what a check loop should do next.
type gateDecision int

const (
	gateRun gateDecision = iota
	gateWait
	gateHalt
)

// gate reads phase and state under one lock. Deploying takes precedence:
// while deploying, loops wait even if the state is already unhealthy.
func (s *Store) gate() gateDecision {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.status.Phase == PhaseDeploying:
		return gateWait
	case s.status.State == StateUnhealthy:
		return gateHalt
	default:
		return gateRun
	}
}
