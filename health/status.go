package health

import (
	"fmt"
	"strings"
)

// State is the aggregate health state exposed to external observers.
type State int

const (
	// StateHealthy indicates every check that ran has passed.
	StateHealthy State = iota
	// StateUnhealthy indicates a check failed or an operator marked the application unhealthy.
	StateUnhealthy
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// ParseState parses a state name case-insensitively.
func ParseState(s string) (State, error) {
	switch strings.ToLower(s) {
	case "healthy":
		return StateHealthy, nil
	case "unhealthy":
		return StateUnhealthy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if s != StateHealthy && s != StateUnhealthy {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Phase is the deployment-lifecycle gate. Periodic checks only run while Online.
type Phase int

const (
	// PhaseOnline lets periodic checks run.
	PhaseOnline Phase = iota
	// PhaseDeploying holds periodic checks until the deployment finishes.
	PhaseDeploying
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseOnline:
		return "online"
	case PhaseDeploying:
		return "deploying"
	default:
		return "unknown"
	}
}

// ParsePhase parses a phase name case-insensitively.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(s) {
	case "online":
		return PhaseOnline, nil
	case "deploying":
		return PhaseDeploying, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if p != PhaseOnline && p != PhaseDeploying {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPhase, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Status is a point-in-time snapshot of the shared health record.
type Status struct {
	// State is the aggregate health state.
	State State `json:"state"`

	// Messages holds accumulated failure descriptions in arrival order.
	Messages []string `json:"messages"`

	// Phase is the deployment phase.
	Phase Phase `json:"phase"`
}

// Healthy reports whether the snapshot's state is StateHealthy.
func (s Status) Healthy() bool {
	return s.State == StateHealthy
}

// String renders "healthy" or "unhealthy", followed by ": " and the
// comma-separated messages when there are any.
func (s Status) String() string {
	if len(s.Messages) == 0 {
		return s.State.String()
	}
	return s.State.String() + ": " + strings.Join(s.Messages, ", ")
}

// clone returns a deep copy whose Messages is never nil, so it encodes as [].
func (s Status) clone() Status {
	messages := make([]string, len(s.Messages))
	copy(messages, s.Messages)
	s.Messages = messages
	return s
}
