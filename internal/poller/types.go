// internal/poller/types.go
package poller

import (
	"time"

	"github.com/karronoli/tiny-sato/internal/status"
)

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	PrinterID string
	At        time.Time

	// Status is the last decoded record. It is also set when Err is a
	// device error, so the fault kind stays visible.
	Status status.JobStatus
	Err    error // non-nil means the poll cycle failed
}

// Ready reports whether the cycle succeeded with a ready printer.
func (r PollResult) Ready() bool {
	return r.Err == nil && r.Status.Ready()
}
