// internal/printer/options.go
package printer

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/karronoli/tiny-sato/internal/metrics"
	"github.com/karronoli/tiny-sato/internal/status"
)

const (
	DefaultConnectBudget   = 3 * time.Second
	DefaultConnectInterval = 100 * time.Millisecond
	DefaultPollInterval    = 100 * time.Millisecond
)

type options struct {
	log           zerolog.Logger
	statusTimeout time.Duration
	sendTimeout   time.Duration
	pollInterval  time.Duration
	connectBudget time.Duration
	sendOnClose   bool
}

func defaultOptions() options {
	return options{
		log:           zerolog.Nop(),
		statusTimeout: status.DefaultIOTimeout,
		pollInterval:  DefaultPollInterval,
		connectBudget: DefaultConnectBudget,
	}
}

// Option configures a Session.
type Option func(*options)

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithStatusTimeout bounds one status query.
func WithStatusTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.statusTimeout = d
		}
	}
}

// WithSendTimeout bounds one stream write on TCP.
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithPollInterval sets the delay between readiness queries.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithConnectBudget bounds the readiness wait when a TCP session opens.
func WithConnectBudget(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectBudget = d
		}
	}
}

// WithMetrics registers the prometheus collectors on the default registry.
func WithMetrics() Option {
	return func(*options) { metrics.Register() }
}

// WithSendOnClose makes Close finish a pending job with Send.
func WithSendOnClose(on bool) Option {
	return func(o *options) { o.sendOnClose = on }
}
