// cmd/labelctl/monitor.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/karronoli/tiny-sato/internal/config"
	"github.com/karronoli/tiny-sato/internal/discovery"
	"github.com/karronoli/tiny-sato/internal/logging"
	"github.com/karronoli/tiny-sato/internal/metrics"
	"github.com/karronoli/tiny-sato/internal/mirror"
	"github.com/karronoli/tiny-sato/internal/poller"
)

func runMonitor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	cfgPath := fs.String("config", "labelctl.yaml", "config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	log := logging.New("labelctl", cfg.Log.Level)
	metrics.Register()

	svc := discovery.NewService(discovery.UDPNetwork{}, discovery.WithLogger(log))

	var mcli *mirror.ModbusClient
	if cfg.Mirror.Endpoint != "" {
		mcli, err = mirror.BuildClient(cfg.Mirror)
		if err != nil {
			return fmt.Errorf("mirror client failed: %w", err)
		}
		defer mcli.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	// --------------------
	// Build per-printer pipelines
	// --------------------

	started := 0
	for _, pc := range cfg.Printers {
		if !pc.Network() {
			log.Info().Str("printer", pc.ID).Msg("spool printer has no status channel; not monitored")
			continue
		}

		// ---- poller ----
		p, closePoller, err := poller.Build(pc, cfg.Discovery, svc, log)
		if err != nil {
			return fmt.Errorf("poller build failed (printer=%s): %w", pc.ID, err)
		}
		defer closePoller()

		out := make(chan poller.PollResult)

		// ---- mirror (optional per printer) ----
		plan, enabled, err := mirror.BuildPlan(cfg.Mirror, pc)
		if err != nil {
			return err
		}
		if enabled {
			sw, err := mirror.NewStatusWriter(plan, mcli)
			if err != nil {
				return fmt.Errorf("mirror writer failed (printer=%s): %w", pc.ID, err)
			}
			r := mirror.NewRunner(sw, log.With().Str("printer", pc.ID).Logger())
			g.Go(func() error {
				r.Run(gctx, out)
				return nil
			})
		} else {
			plog := log.With().Str("printer", pc.ID).Logger()
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case res := <-out:
						if res.Err != nil {
							plog.Warn().Err(res.Err).Msg("status poll failed")
							continue
						}
						plog.Debug().Stringer("status", res.Status).Msg("status")
					}
				}
			})
		}

		// poller producer
		g.Go(func() error {
			p.Run(gctx, out)
			return nil
		})
		started++
	}

	if started == 0 {
		return errors.New("no network printers to monitor")
	}

	// --------------------
	// Metrics endpoint
	// --------------------

	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info().Str("listen", cfg.Metrics.Listen).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info().Int("printers", started).Msg("monitor started")
	return g.Wait()
}
