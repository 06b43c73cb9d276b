// internal/mirror/layout.go
package mirror

// Printer status block layout constants.
// These values define the register contract with the PLC and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerPrinter is the fixed number of registers per printer.
const SlotsPerPrinter = 20

// ---- SLOT INDICES ----

const (
	SlotHealth          = 0 // Health* code
	SlotRawHealth       = 1 // raw health character from the printer
	SlotSecondsNotReady = 2 // saturates at 65535
	SlotLabelsHi        = 3 // label remaining, high word
	SlotLabelsLo        = 4 // label remaining, low word
	SlotState           = 5 // status.State + 1; 0 means never seen
	SlotErrorCode       = 6 // sbpl error code of the last poll; 0 on success
)

// liveSlots are written one by one when they change.
var liveSlots = [...]int{
	SlotHealth, SlotRawHealth, SlotSecondsNotReady,
	SlotLabelsHi, SlotLabelsLo, SlotState, SlotErrorCode,
}

// Slots 7-10 are reserved.

// ---- PRINTER NAME ----

// The name always lives at the end of the block.
const (
	SlotNameStart = 11
	SlotNameSlots = 8
	SlotNameEnd   = SlotNameStart + SlotNameSlots - 1
	NameMaxChars  = 16
)

// ---- HEALTH CODES ----

const (
	HealthUnknown     uint16 = 0
	HealthReady       uint16 = 1
	HealthDeviceError uint16 = 2
	HealthBusy        uint16 = 3
	HealthUnreachable uint16 = 4
)
