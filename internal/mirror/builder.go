// internal/mirror/builder.go
package mirror

import (
	"errors"
	"fmt"

	"github.com/karronoli/tiny-sato/internal/config"
)

// BuildPlan converts one printer config into a mirror Plan.
// Returns false when the printer did not opt in.
// Assumes config has already passed Validate.
func BuildPlan(m config.MirrorConfig, p config.PrinterConfig) (Plan, bool, error) {
	if p.StatusSlot == nil {
		return Plan{}, false, nil
	}
	if p.ID == "" {
		return Plan{}, false, errors.New("mirror: printer id required")
	}
	if m.Endpoint == "" {
		return Plan{}, false, fmt.Errorf("mirror: printer %q: endpoint required", p.ID)
	}
	return Plan{
		Endpoint: m.Endpoint,
		BaseSlot: *p.StatusSlot,
		Name:     p.Name,
	}, true, nil
}

// BuildClient opens the Modbus connection all mirror plans share.
func BuildClient(m config.MirrorConfig) (*ModbusClient, error) {
	return NewModbusClient(ModbusConfig{
		Endpoint: m.Endpoint,
		UnitID:   m.UnitID,
		Timeout:  config.Millis(m.TimeoutMs),
	})
}
