// internal/poller/builder.go
package poller

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/karronoli/tiny-sato/internal/config"
	"github.com/karronoli/tiny-sato/internal/discovery"
	"github.com/karronoli/tiny-sato/internal/transport"
)

// Build constructs a Poller for one network printer and wires the
// connection lifecycle. The connection is reused while healthy. On
// transport death the Poller discards it and uses the factory on a
// future tick. MAC-addressed printers are resolved through svc on
// every reconnect, so the discovery cache absorbs the cost.
func Build(p config.PrinterConfig, d config.DiscoveryConfig, svc *discovery.Service, log zerolog.Logger) (*Poller, func() error, error) {
	plog := log.With().Str("printer", p.ID).Logger()

	// client factory: ONE attempt per call
	factory := func(ctx context.Context) (Client, error) {
		endpoint := p.Endpoint
		if endpoint == "" {
			mac, err := discovery.ParseMAC(p.MAC)
			if err != nil {
				return nil, err
			}
			ep, err := svc.FindByMAC(ctx, mac, config.Millis(d.WaitMs), d.RequestPort)
			if err != nil {
				return nil, err
			}
			endpoint = ep.String()
		}
		tcp, err := transport.DialTCP(ctx, endpoint, transport.TCPConfig{
			DialTimeout:   config.Millis(p.ConnectTimeoutMs),
			StatusTimeout: config.Millis(p.StatusTimeoutMs),
			Log:           &plog,
		})
		if err != nil {
			return nil, err
		}
		return tcp, nil
	}

	poll, err := New(
		Config{
			PrinterID: p.ID,
			Interval:  config.Millis(p.Poll.IntervalMs),
			Log:       &log,
		},
		nil, // first tick connects
		factory,
	)
	if err != nil {
		return nil, nil, err
	}

	return poll, poll.Close, nil
}
