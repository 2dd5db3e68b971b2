package health

import (
	"context"
	"time"
)

// Check is a named, configurable probe that can pass or fail.
//
// Contract:
// - Run is a read-only probe; calling it repeatedly has no effect on the
//   world beyond the probe itself.
// - Run returns nil on success or an error whose message is a single
//   human-readable failure description.
// - Run must honor ctx cancellation so shutdown can abandon it.
type Check interface {
	// Name returns the stable identifier used in failure messages.
	Name() string

	// Interval is the sleep between successive periodic runs.
	Interval() time.Duration

	// IsQuickCheck reports whether the check is fast and safe enough for the
	// synchronous one-shot diagnostic.
	IsQuickCheck() bool

	// IsEnabled reports whether the check has any work configured. Disabled
	// checks are neither scheduled nor quick-checked.
	IsEnabled() bool

	// Run performs the probe once.
	Run(ctx context.Context) error
}

// DefaultChecks returns the fixed list of checks in registration order.
func DefaultChecks(file FileCheckConfig, url URLCheckConfig) []Check {
	return []Check{
		NewFileCheck(file),
		NewURLCheck(url),
	}
}

// failureMessage formats a failure the way it is recorded in Status.
func failureMessage(c Check, err error) string {
	return c.Name() + ": " + err.Error()
}
