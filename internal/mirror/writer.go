// internal/mirror/writer.go
package mirror

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// registerClient is the exact contract the writer uses. The client is
// already bound to the PLC unit.
type registerClient interface {
	WriteRegisters(addr uint16, regs []uint16) error
}

// Plan places one printer's block on a Modbus endpoint.
type Plan struct {
	Endpoint string
	BaseSlot uint16

	// Name overrides the name reported by the printer when set.
	Name string
}

// StatusWriter delivers snapshots into one printer's status block.
//
// The first write, and the first write after any failure, re-asserts
// the full block. Otherwise only changed slots are written.
type StatusWriter struct {
	plan Plan
	cli  registerClient

	needFull bool
	last     []uint16
}

func NewStatusWriter(plan Plan, cli registerClient) (*StatusWriter, error) {
	if cli == nil {
		return nil, fmt.Errorf("status writer: missing client for endpoint %s", plan.Endpoint)
	}
	return &StatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true,
	}, nil
}

func (sw *StatusWriter) baseAddr() uint16 {
	// Each printer owns a fixed SlotsPerPrinter block.
	return sw.plan.BaseSlot * SlotsPerPrinter
}

// WriteStatus delivers one snapshot.
func (sw *StatusWriter) WriteStatus(s Snapshot) error {
	if sw.plan.Name != "" {
		s.Name = sw.plan.Name
	}
	regs := Encode(s)
	base := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(base, regs); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}
		sw.needFull = false
		sw.last = regs
		return nil
	}

	var errs []string

	for _, slot := range liveSlots {
		if sw.last[slot] == regs[slot] {
			continue
		}
		if err := sw.cli.WriteRegisters(base+uint16(slot), regs[slot:slot+1]); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d write failed: %v", slot, err))
			continue
		}
		sw.last[slot] = regs[slot]
	}

	name := regs[SlotNameStart : SlotNameEnd+1]
	if !slices.Equal(sw.last[SlotNameStart:SlotNameEnd+1], name) {
		if err := sw.cli.WriteRegisters(base+SlotNameStart, name); err != nil {
			errs = append(errs, fmt.Sprintf("name write failed: %v", err))
		} else {
			copy(sw.last[SlotNameStart:], name)
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}
	return nil
}
