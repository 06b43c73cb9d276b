// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Printers  []PrinterConfig `yaml:"printers" validate:"dive"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
}

// ---- DISCOVERY ----

type DiscoveryConfig struct {
	RequestPort int `yaml:"request_port" validate:"gte=0,lte=65535"`
	WaitMs      int `yaml:"wait_ms" validate:"gte=0"`
}

// ---- PRINTER ----

// PrinterConfig locates one printer. Exactly one of Endpoint, MAC,
// Serial and File is set.
type PrinterConfig struct {
	ID string `yaml:"id" validate:"required"`

	Endpoint string `yaml:"endpoint" validate:"omitempty,hostname_port"`
	MAC      string `yaml:"mac" validate:"omitempty,printer_mac"`
	Serial   string `yaml:"serial"`
	BaudRate int    `yaml:"baud_rate" validate:"gte=0"`
	File     string `yaml:"file"`

	Name string `yaml:"name" validate:"omitempty,printascii"`

	ConnectTimeoutMs int `yaml:"connect_timeout_ms" validate:"gte=0"`
	StatusTimeoutMs  int `yaml:"status_timeout_ms" validate:"gte=0"`

	Poll PollConfig `yaml:"poll"`

	// Health mirror block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot"`
}

// Network reports whether the printer is reached over TCP.
func (p PrinterConfig) Network() bool {
	return p.Endpoint != "" || p.MAC != ""
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms" validate:"gte=0"`
}

// ---- MIRROR ----

type MirrorConfig struct {
	Endpoint  string `yaml:"endpoint" validate:"omitempty,hostname_port"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms" validate:"gte=0"`
}

// ---- METRICS ----

type MetricsConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

// Load reads a YAML file. Unknown keys are rejected.
// It neither validates nor normalizes.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
