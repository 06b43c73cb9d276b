// internal/sbpl/errors.go
package sbpl

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by any session operation after Close.
var ErrClosed = errors.New("sbpl: session closed")

// Error codes surfaced to the health mirror and the CLI exit status.
// 0 means success.
const (
	CodeGeneric  uint16 = 1
	CodeArgument uint16 = 2
	CodeIO       uint16 = 3
	CodeNotFound uint16 = 4
	CodeDevice   uint16 = 5
	CodeBusy     uint16 = 6
)

// ArgumentError reports out-of-range or malformed caller input.
// It is always raised before any state is mutated.
type ArgumentError struct {
	Field string
	Value any
	Msg   string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("sbpl: invalid %s %v: %s", e.Field, e.Value, e.Msg)
}

func (e *ArgumentError) Code() uint16 { return CodeArgument }

// CheckRange fails with an ArgumentError unless min <= v <= max.
func CheckRange(field string, v, min, max int) error {
	if v < min || v > max {
		return &ArgumentError{
			Field: field,
			Value: v,
			Msg:   fmt.Sprintf("valid range: %d-%d", min, max),
		}
	}
	return nil
}

// IOError wraps a transport read/write failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("sbpl: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Code() uint16 { return CodeIO }

// NotFoundError reports that a printer could not be located or reached.
type NotFoundError struct {
	What string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sbpl: printer not found: %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("sbpl: printer not found: %s", e.What)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Code() uint16 { return CodeNotFound }

// DeviceError reports a physical fault decoded from the printer health code.
// It is fatal and never retried.
type DeviceError struct {
	Kind   string
	Status string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("sbpl: printer failure: error=%s status=[%s]", e.Kind, e.Status)
}

func (e *DeviceError) Code() uint16 { return CodeDevice }

// BusyTimeoutError reports that a readiness poll exhausted its deadline.
// Last holds the last observed status string.
type BusyTimeoutError struct {
	Endpoint string
	Last     string
}

func (e *BusyTimeoutError) Error() string {
	return fmt.Sprintf("sbpl: printer is busy: endpoint=%s status=[%s]", e.Endpoint, e.Last)
}

func (e *BusyTimeoutError) Code() uint16 { return CodeBusy }

// ErrorCode extracts a code from err without assuming concrete types.
// If the error does not expose a code, returns CodeGeneric.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeGeneric
}
