package health

import "errors"

var (
	// ErrInvalidState indicates a health state name other than healthy/unhealthy.
	ErrInvalidState = errors.New("health: invalid health state")

	// ErrInvalidPhase indicates a phase name other than deploying/online.
	ErrInvalidPhase = errors.New("health: invalid deployment phase")

	// ErrFileEmpty indicates a checked file has zero length.
	ErrFileEmpty = errors.New("health: file is empty")

	// ErrUnexpectedStatus indicates a checked URL answered with a non-200 status.
	ErrUnexpectedStatus = errors.New("health: unexpected HTTP status")

	// ErrMonitorStarted indicates Start was called more than once.
	ErrMonitorStarted = errors.New("health: monitor already started")
)

// ProbeError describes why a single probe target failed.
type ProbeError struct {
	// Target is the file path or URL that failed.
	Target string

	// Reason is the human-readable failure description.
	Reason string

	// Err is the underlying cause: ErrFileEmpty, ErrUnexpectedStatus or an I/O error.
	Err error
}

func (e *ProbeError) Error() string {
	return e.Reason
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}
