// internal/mirror/snapshot.go
package mirror

import (
	"encoding/binary"
	"errors"
	"strings"

	"github.com/karronoli/tiny-sato/internal/poller"
	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// Snapshot is exactly what the writer is allowed to deliver.
type Snapshot struct {
	Health          uint16
	RawHealth       uint16
	SecondsNotReady uint16
	LabelRemaining  uint32
	State           uint16
	ErrorCode       uint16
	Name            string
}

// FromPoll maps one poll result to a snapshot. SecondsNotReady is left
// to the caller, which owns the clock.
func FromPoll(res poller.PollResult) Snapshot {
	s := Snapshot{
		RawHealth:      uint16(res.Status.Health.Raw),
		LabelRemaining: uint32(res.Status.LabelRemaining),
		ErrorCode:      sbpl.ErrorCode(res.Err),
		Name:           res.Status.Name,
	}
	if s.RawHealth != 0 {
		s.State = uint16(res.Status.Health.State) + 1
	}

	var de *sbpl.DeviceError
	switch {
	case res.Err == nil && res.Status.Ready():
		s.Health = HealthReady
	case res.Err == nil:
		s.Health = HealthBusy
	case errors.As(res.Err, &de):
		s.Health = HealthDeviceError
	default:
		s.Health = HealthUnreachable
	}
	return s
}

// Encode converts a snapshot into a full status block.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerPrinter)

	regs[SlotHealth] = s.Health
	regs[SlotRawHealth] = s.RawHealth
	regs[SlotSecondsNotReady] = s.SecondsNotReady
	regs[SlotLabelsHi] = uint16(s.LabelRemaining >> 16)
	regs[SlotLabelsLo] = uint16(s.LabelRemaining)
	regs[SlotState] = s.State
	regs[SlotErrorCode] = s.ErrorCode

	copy(regs[SlotNameStart:SlotNameEnd+1], encodeNameRegs(s.Name))
	return regs
}

// encodeNameRegs packs the name into SlotNameSlots registers, two
// ASCII characters per register, NUL padded. Characters a PLC string
// cannot hold become '?'.
func encodeNameRegs(name string) []uint16 {
	var raw [NameMaxChars]byte
	copy(raw[:], strings.Map(plcChar, name))

	out := make([]uint16, SlotNameSlots)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	return out
}

func plcChar(r rune) rune {
	if r < 0x20 || r > 0x7E {
		return '?'
	}
	return r
}
