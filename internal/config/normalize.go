// internal/config/normalize.go
package config

import (
	"time"

	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// Defaults applied by Normalize.
const (
	DefaultLogLevel         = "info"
	DefaultDiscoveryWaitMs  = 3000
	DefaultPollIntervalMs   = 1000
	DefaultConnectTimeoutMs = 3000
	DefaultStatusTimeoutMs  = 10000
	DefaultMirrorTimeoutMs  = 1000
	DefaultBaudRate         = 9600
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Discovery.RequestPort == 0 {
		cfg.Discovery.RequestPort = sbpl.DefaultSearchPort
	}
	if cfg.Discovery.WaitMs == 0 {
		cfg.Discovery.WaitMs = DefaultDiscoveryWaitMs
	}
	if cfg.Mirror.TimeoutMs == 0 {
		cfg.Mirror.TimeoutMs = DefaultMirrorTimeoutMs
	}

	for i := range cfg.Printers {
		p := &cfg.Printers[i]

		if p.Poll.IntervalMs == 0 {
			p.Poll.IntervalMs = DefaultPollIntervalMs
		}
		if p.ConnectTimeoutMs == 0 {
			p.ConnectTimeoutMs = DefaultConnectTimeoutMs
		}
		if p.StatusTimeoutMs == 0 {
			p.StatusTimeoutMs = DefaultStatusTimeoutMs
		}
		if p.Serial != "" && p.BaudRate == 0 {
			p.BaudRate = DefaultBaudRate
		}

		// Name is already printable ASCII; the mirror holds 16 characters.
		if len(p.Name) > 16 {
			p.Name = p.Name[:16]
		}
	}
}

// Millis converts a millisecond setting.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
