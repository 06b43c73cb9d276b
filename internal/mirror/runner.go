// internal/mirror/runner.go
package mirror

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/karronoli/tiny-sato/internal/poller"
)

// Runner folds poll results into a snapshot and delivers it.
// It owns the not-ready clock.
type Runner struct {
	w   *StatusWriter
	log zerolog.Logger
	now func() time.Time

	snap          Snapshot
	seen          bool
	notReadySince time.Time
}

func NewRunner(w *StatusWriter, log zerolog.Logger) *Runner {
	return &Runner{w: w, log: log, now: time.Now}
}

// Observe records one poll result and writes the block.
func (r *Runner) Observe(res poller.PollResult) error {
	r.snap = FromPoll(res)
	r.seen = true

	if r.snap.Health == HealthReady {
		r.notReadySince = time.Time{}
	} else if r.notReadySince.IsZero() {
		r.notReadySince = res.At
		if r.notReadySince.IsZero() {
			r.notReadySince = r.now()
		}
	}
	return r.Tick()
}

// Tick refreshes SecondsNotReady and writes the block.
func (r *Runner) Tick() error {
	if !r.seen {
		return nil
	}
	r.snap.SecondsNotReady = 0
	if !r.notReadySince.IsZero() {
		secs := r.now().Sub(r.notReadySince) / time.Second
		if secs > 65535 {
			secs = 65535
		}
		if secs > 0 {
			r.snap.SecondsNotReady = uint16(secs)
		}
	}
	return r.w.WriteStatus(r.snap)
}

// Run consumes results until ctx is done or in is closed.
// Write failures are logged; the writer re-asserts on the next success.
func (r *Runner) Run(ctx context.Context, in <-chan poller.PollResult) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-in:
			if !ok {
				return
			}
			if err := r.Observe(res); err != nil {
				r.log.Warn().Err(err).Str("printer", res.PrinterID).Msg("mirror write failed")
			}
		case <-ticker.C:
			if err := r.Tick(); err != nil {
				r.log.Warn().Err(err).Msg("mirror write failed")
			}
		}
	}
}
