// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/karronoli/tiny-sato/internal/metrics"
	"github.com/karronoli/tiny-sato/internal/sbpl"
	"github.com/karronoli/tiny-sato/internal/status"
)

// Client abstracts the one printer operation the poller needs.
type Client interface {
	Status(ctx context.Context) (status.JobStatus, error)
}

// Factory opens a fresh Client. One attempt per call.
type Factory func(ctx context.Context) (Client, error)

// Config is the minimal runtime config the poller needs.
type Config struct {
	PrinterID string
	Interval  time.Duration
	Log       *zerolog.Logger
}

// Poller queries one printer. It never overlaps queries.
type Poller struct {
	cfg     Config
	client  Client
	factory Factory
	log     zerolog.Logger
}

// New creates a poller with immutable config.
// factory may be nil; then a transport failure is permanent.
func New(cfg Config, client Client, factory Factory) (*Poller, error) {
	if cfg.PrinterID == "" {
		return nil, errors.New("poller: printer id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if client == nil && factory == nil {
		return nil, errors.New("poller: client or factory required")
	}

	log := zerolog.Nop()
	if cfg.Log != nil {
		log = cfg.Log.With().Str("printer", cfg.PrinterID).Logger()
	}
	return &Poller{cfg: cfg, client: client, factory: factory, log: log}, nil
}

// PollOnce performs exactly one status query.
//
// On transport failure the client is discarded and, when a factory
// exists, a new one is opened on a future call.
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	res := PollResult{
		PrinterID: p.cfg.PrinterID,
		At:        time.Now(),
	}
	res.Status, res.Err = p.query(ctx)
	return res
}

// UntilReady queries immediately and then every interval until the
// printer is ready or timeout elapses.
//
// Only "not ready" is retried. Transport and device errors propagate
// at once. On timeout the error is *sbpl.BusyTimeoutError carrying the
// last observed status.
func (p *Poller) UntilReady(ctx context.Context, timeout, interval time.Duration) (status.JobStatus, error) {
	if interval <= 0 {
		interval = p.cfg.Interval
	}
	start := time.Now()
	deadline := start.Add(timeout)

	var last status.JobStatus
	for {
		if err := ctx.Err(); err != nil {
			metrics.RecordReadinessWait(time.Since(start), false)
			return last, &sbpl.IOError{Op: "readiness wait", Err: err}
		}

		s, err := p.query(ctx)
		if err != nil {
			metrics.RecordReadinessWait(time.Since(start), false)
			return s, err
		}
		last = s
		if s.Ready() {
			metrics.RecordReadinessWait(time.Since(start), true)
			return s, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		p.log.Debug().Str("status", s.String()).Msg("printer not ready")

		wait := interval
		if wait > remaining {
			wait = remaining
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}

	metrics.RecordReadinessWait(time.Since(start), false)
	return last, &sbpl.BusyTimeoutError{Endpoint: p.cfg.PrinterID, Last: last.String()}
}

// query runs one status exchange and keeps the client lifecycle.
func (p *Poller) query(ctx context.Context) (status.JobStatus, error) {
	if p.client == nil {
		if p.factory == nil {
			metrics.RecordStatusQuery("io_error")
			return status.JobStatus{}, &sbpl.IOError{Op: "status query", Err: errors.New("no client")}
		}
		c, err := p.factory(ctx)
		if err != nil {
			metrics.RecordStatusQuery("io_error")
			p.log.Warn().Err(err).Msg("reconnect failed")
			return status.JobStatus{}, err
		}
		p.client = c
	}

	s, err := p.client.Status(ctx)
	switch {
	case err == nil && s.Ready():
		metrics.RecordStatusQuery("ready")
	case err == nil:
		metrics.RecordStatusQuery("busy")
	default:
		var de *sbpl.DeviceError
		if errors.As(err, &de) {
			metrics.RecordStatusQuery("device_error")
			break
		}
		metrics.RecordStatusQuery("io_error")
		if p.factory != nil {
			p.dropClient()
		}
	}
	return s, err
}

func (p *Poller) dropClient() {
	if c, ok := p.client.(io.Closer); ok {
		_ = c.Close()
	}
	p.client = nil
}

// Close releases a client opened by the factory.
func (p *Poller) Close() error {
	if p.client == nil || p.factory == nil {
		return nil
	}
	c, ok := p.client.(io.Closer)
	p.client = nil
	if !ok {
		return nil
	}
	return c.Close()
}
