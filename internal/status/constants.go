// internal/status/constants.go
package status

import "time"

// Status record layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- REQUEST ----

// RequestByte enquires the printer status (ENQ).
const RequestByte byte = 0x05

// ---- RECORD GEOMETRY ----

// The record is always the last RecordLen bytes of a reply.
// Anything before it is transport padding.
const (
	OffsetSTX            = 0
	OffsetID             = 1
	LenID                = 2
	OffsetHealth         = OffsetID + LenID
	OffsetLabelRemaining = OffsetHealth + 1
	LenLabelRemaining    = 6
	OffsetName           = OffsetLabelRemaining + LenLabelRemaining
	LenName              = 16
	OffsetETX            = OffsetName + LenName

	// RecordLen is STX + ID + Health + LabelRemaining + Name + ETX.
	RecordLen = OffsetETX + 1
)

// ---- LIMITS ----

// MaxReplyLen bounds one status reply including padding.
const MaxReplyLen = 1024

// DefaultIOTimeout bounds the request write and the reply read.
const DefaultIOTimeout = 10 * time.Second
