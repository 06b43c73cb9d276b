// internal/transport/tcp.go
package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/karronoli/tiny-sato/internal/metrics"
	"github.com/karronoli/tiny-sato/internal/sbpl"
	"github.com/karronoli/tiny-sato/internal/status"
)

// TCPConfig is minimal transport config.
type TCPConfig struct {
	DialTimeout   time.Duration
	SendTimeout   time.Duration
	StatusTimeout time.Duration
	Log           *zerolog.Logger
}

const (
	DefaultDialTimeout = 3 * time.Second
	DefaultSendTimeout = 10 * time.Second
)

func (c *TCPConfig) withDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = status.DefaultIOTimeout
	}
}

// TCP is a raw print-port connection. Calls must not overlap.
type TCP struct {
	conn     net.Conn
	endpoint string
	cfg      TCPConfig
	log      zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// DialTCP connects to a printer print port.
// An unreachable endpoint is reported as *sbpl.NotFoundError.
func DialTCP(ctx context.Context, endpoint string, cfg TCPConfig) (*TCP, error) {
	if endpoint == "" {
		return nil, &sbpl.ArgumentError{Field: "endpoint", Value: endpoint, Msg: "required"}
	}
	cfg.withDefaults()

	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, &sbpl.NotFoundError{What: endpoint, Err: err}
	}
	return NewTCP(conn, endpoint, cfg), nil
}

// NewTCP wraps an established connection.
func NewTCP(conn net.Conn, endpoint string, cfg TCPConfig) *TCP {
	cfg.withDefaults()
	log := zerolog.Nop()
	if cfg.Log != nil {
		log = cfg.Log.With().Str("endpoint", endpoint).Logger()
	}
	return &TCP{conn: conn, endpoint: endpoint, cfg: cfg, log: log}
}

func (t *TCP) Endpoint() string { return t.endpoint }

// Write sends p within the send timeout. Cancelling ctx aborts it.
func (t *TCP) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &sbpl.IOError{Op: "send", Err: err}
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.cfg.SendTimeout)); err != nil {
		return 0, &sbpl.IOError{Op: "send deadline", Err: err}
	}
	defer t.conn.SetWriteDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()

	n, err := t.conn.Write(p)
	metrics.RecordBytesSent("tcp", n)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
		}
		return n, &sbpl.IOError{Op: "send", Err: err}
	}
	t.log.Debug().Int("bytes", n).Msg("stream sent")
	return n, nil
}

// Status runs one health query on the connection.
func (t *TCP) Status(ctx context.Context) (status.JobStatus, error) {
	s, err := status.Query(ctx, t.conn, t.cfg.StatusTimeout)
	if err == nil {
		t.log.Debug().Str("status", s.String()).Msg("status")
	}
	return s, err
}

// Close is idempotent.
func (t *TCP) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
