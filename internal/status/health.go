// internal/status/health.go
package status

import (
	"errors"
	"fmt"
)

// State is the operational state decoded from a health code.
type State int

const (
	StateOffline State = iota
	StateOnline
	StateOnlinePrinting
	StateOnlineDispense
	StateOnlineAnalyzing
	StateError
)

var stateNames = [...]string{"Offline", "Online", "OnlinePrinting", "OnlineDispense", "OnlineAnalyzing", "Error"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

type Battery int

const (
	BatteryNearEnd Battery = iota
	BatteryOK
	BatteryUnknown
)

func (b Battery) String() string {
	switch b {
	case BatteryNearEnd:
		return "NearEnd"
	case BatteryOK:
		return "OK"
	default:
		return "Unknown"
	}
}

type Buffer int

const (
	BufferNearFull Buffer = iota
	BufferOK
	BufferUnknown
)

func (b Buffer) String() string {
	switch b {
	case BufferNearFull:
		return "NearFull"
	case BufferOK:
		return "OK"
	default:
		return "Unknown"
	}
}

// ErrorKind is the physical fault behind an error health code.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorBuffer
	ErrorPaper
	ErrorBattery
	ErrorSensor
	ErrorHead
	ErrorCoverOpen
	ErrorOther
)

var errorNames = [...]string{"None", "Buffer", "Paper", "Battery", "Sensor", "Head", "CoverOpen", "Other"}

func (e ErrorKind) String() string {
	if e < 0 || int(e) >= len(errorNames) {
		return fmt.Sprintf("ErrorKind(%d)", int(e))
	}
	return errorNames[e]
}

// ErrUnknownHealth is returned for a health code outside the defined alphabet.
var ErrUnknownHealth = errors.New("status: unknown health code")

// Health is the decoded form of one raw health character.
type Health struct {
	Raw     byte
	State   State
	Battery Battery
	Buffer  Buffer
	Error   ErrorKind
}

// Ready reports whether the printer can accept a job:
// an online state with battery and buffer both OK.
func (h Health) Ready() bool {
	return IsReady(h.State, h.Battery, h.Buffer)
}

func IsReady(s State, b Battery, buf Buffer) bool {
	switch s {
	case StateOnline, StateOnlinePrinting, StateOnlineDispense, StateOnlineAnalyzing:
		return b == BatteryOK && buf == BufferOK
	default:
		return false
	}
}

// ---- TABLE ----

func op(raw byte, s State, b Battery, buf Buffer) Health {
	return Health{Raw: raw, State: s, Battery: b, Buffer: buf, Error: ErrorNone}
}

func fault(raw byte, e ErrorKind) Health {
	return Health{Raw: raw, State: StateError, Battery: BatteryUnknown, Buffer: BufferUnknown, Error: e}
}

// healthTable is the complete health alphabet. Each operational state
// uses four consecutive codes: OK, battery near end, buffer near full, both.
var healthTable = buildTable(
	op('0', StateOffline, BatteryOK, BufferOK),
	op('1', StateOffline, BatteryNearEnd, BufferOK),
	op('2', StateOffline, BatteryOK, BufferNearFull),
	op('3', StateOffline, BatteryNearEnd, BufferNearFull),

	op('A', StateOnline, BatteryOK, BufferOK),
	op('B', StateOnline, BatteryNearEnd, BufferOK),
	op('C', StateOnline, BatteryOK, BufferNearFull),
	op('D', StateOnline, BatteryNearEnd, BufferNearFull),

	op('G', StateOnlinePrinting, BatteryOK, BufferOK),
	op('H', StateOnlinePrinting, BatteryNearEnd, BufferOK),
	op('I', StateOnlinePrinting, BatteryOK, BufferNearFull),
	op('J', StateOnlinePrinting, BatteryNearEnd, BufferNearFull),

	op('M', StateOnlineDispense, BatteryOK, BufferOK),
	op('N', StateOnlineDispense, BatteryNearEnd, BufferOK),
	op('O', StateOnlineDispense, BatteryOK, BufferNearFull),
	op('P', StateOnlineDispense, BatteryNearEnd, BufferNearFull),

	op('S', StateOnlineAnalyzing, BatteryOK, BufferOK),
	op('T', StateOnlineAnalyzing, BatteryNearEnd, BufferOK),
	op('U', StateOnlineAnalyzing, BatteryOK, BufferNearFull),
	op('V', StateOnlineAnalyzing, BatteryNearEnd, BufferNearFull),

	fault('a', ErrorBuffer),
	fault('c', ErrorPaper),
	fault('d', ErrorBattery),
	fault('f', ErrorSensor),
	fault('g', ErrorHead),
	fault('h', ErrorCoverOpen),
	fault('k', ErrorOther),
)

// buildTable panics on a duplicate code or an entry that mixes an
// operational triple with an error kind.
func buildTable(entries ...Health) map[byte]Health {
	t := make(map[byte]Health, len(entries))
	type triple struct {
		s   State
		b   Battery
		buf Buffer
	}
	seen := make(map[triple]byte)
	for _, h := range entries {
		if _, dup := t[h.Raw]; dup {
			panic(fmt.Sprintf("status: duplicate health code %q", h.Raw))
		}
		if (h.Error == ErrorNone) == (h.State == StateError) {
			panic(fmt.Sprintf("status: inconsistent health code %q", h.Raw))
		}
		if h.Error == ErrorNone {
			k := triple{h.State, h.Battery, h.Buffer}
			if prev, dup := seen[k]; dup {
				panic(fmt.Sprintf("status: health codes %q and %q decode identically", prev, h.Raw))
			}
			seen[k] = h.Raw
		}
		t[h.Raw] = h
	}
	return t
}

// DecodeHealth maps a raw health character to its Health.
func DecodeHealth(raw byte) (Health, error) {
	h, ok := healthTable[raw]
	if !ok {
		return Health{}, fmt.Errorf("%w: %q", ErrUnknownHealth, raw)
	}
	return h, nil
}

// Codes returns the defined health alphabet.
func Codes() []byte {
	out := make([]byte, 0, len(healthTable))
	for c := range healthTable {
		out = append(out, c)
	}
	return out
}
