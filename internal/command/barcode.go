// internal/command/barcode.go
package command

import (
	"strings"

	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// ---- LIMITS ----

const (
	MinBarWidth = 1
	MaxBarWidth = 12

	MinBarHeight = 1
	MaxBarHeight = 600
)

// CODE128 code-set control sequences understood by the firmware.
const (
	code128StartB = ">H"
	code128CodeC  = ">C"
)

// minNumericRun is the shortest trailing digit run worth switching to Code C.
const minNumericRun = 6

const (
	codabarStartStop = "ABCD"
	codabarData      = "0123456789-$:/.+"
)

func checkBar(width, height int) error {
	if err := sbpl.CheckRange("narrow bar width", width, MinBarWidth, MaxBarWidth); err != nil {
		return err
	}
	return sbpl.CheckRange("barcode height", height, MinBarHeight, MaxBarHeight)
}

// CODE128 encodes a CODE128 barcode; the firmware picks the code set.
func CODE128(narrowWidth, height int, data string) ([]byte, error) {
	if err := checkBar(narrowWidth, height); err != nil {
		return nil, err
	}
	if err := checkASCII(data); err != nil {
		return nil, err
	}
	return sbpl.Op("BG", sbpl.Digits(narrowWidth, 2), sbpl.Digits(height, 3), data), nil
}

// Code128Segments is the code-set split of a CODE128 payload.
type Code128Segments struct {
	Front string // literal (Code B)
	Back  string // pair-packed digits (Code C), even length
}

// SplitCODE128 moves an even-length trailing digit run of at least six
// digits into the numeric segment. Everything before it stays literal.
func SplitCODE128(data string) Code128Segments {
	run := 0
	for i := len(data) - 1; i >= 0 && isDigit(data[i]); i-- {
		run++
	}
	run -= run % 2
	if run < minNumericRun {
		return Code128Segments{Front: data}
	}
	cut := len(data) - run
	return Code128Segments{Front: data[:cut], Back: data[cut:]}
}

// ModuleWidth is the symbol width in dots, quiet zone excluded:
// start and code-set symbols, front data, check symbol and stop pattern,
// plus the code switch and digit pairs when a numeric segment exists.
func (s Code128Segments) ModuleWidth(narrowWidth int) int {
	w := 11*narrowWidth*(2+len(s.Front)) + 11*narrowWidth + 13*narrowWidth
	if s.Back != "" {
		w += 11*narrowWidth + 11*narrowWidth*len(s.Back)/2
	}
	return w
}

// CODE128Auto encodes a CODE128 barcode with explicit code-set switching
// and returns the payload together with its module width in dots.
func CODE128Auto(narrowWidth, height int, data string) ([]byte, int, error) {
	if err := checkBar(narrowWidth, height); err != nil {
		return nil, 0, err
	}
	if err := checkASCII(data); err != nil {
		return nil, 0, err
	}

	seg := SplitCODE128(data)
	body := code128StartB + seg.Front
	if seg.Back != "" {
		body += code128CodeC + seg.Back
	}

	op := sbpl.Op("BG", sbpl.Digits(narrowWidth, 2), sbpl.Digits(height, 3), body)
	return op, seg.ModuleWidth(narrowWidth), nil
}

// JAN13 encodes a JAN-13 (EAN-13) barcode. Data is 11-13 digits;
// the firmware computes a missing check digit.
func JAN13(thinWidth, top int, data string) ([]byte, error) {
	if err := checkBar(thinWidth, top); err != nil {
		return nil, err
	}
	if len(data) < 11 || len(data) > 13 {
		return nil, &sbpl.ArgumentError{Field: "JAN13 data length", Value: len(data), Msg: "valid range: 11-13"}
	}
	for i := 0; i < len(data); i++ {
		if !isDigit(data[i]) {
			return nil, &sbpl.ArgumentError{Field: "JAN13 data", Value: data, Msg: "digits only"}
		}
	}
	return sbpl.Op("BD3", sbpl.Digits(thinWidth, 2), sbpl.Digits(top, 3), data), nil
}

// Codabar encodes a 1:3 ratio Codabar barcode framed by start and stop characters.
func Codabar(thinWidth, length int, data string, start, stop byte) ([]byte, error) {
	if err := checkBar(thinWidth, length); err != nil {
		return nil, err
	}
	for i := 0; i < len(data); i++ {
		if strings.IndexByte(codabarData, data[i]) < 0 {
			return nil, &sbpl.ArgumentError{Field: "Codabar data", Value: data, Msg: "allowed: " + codabarData}
		}
	}
	if strings.IndexByte(codabarStartStop, start) < 0 {
		return nil, &sbpl.ArgumentError{Field: "Codabar start character", Value: string(start), Msg: "allowed: " + codabarStartStop}
	}
	if strings.IndexByte(codabarStartStop, stop) < 0 {
		return nil, &sbpl.ArgumentError{Field: "Codabar stop character", Value: string(stop), Msg: "allowed: " + codabarStartStop}
	}

	const barcodeType = "0" // Codabar
	body := string(start) + data + string(stop)
	return sbpl.Op("B", barcodeType, sbpl.Digits(thinWidth, 2), sbpl.Digits(length, 3), body), nil
}

func checkASCII(data string) error {
	if data == "" {
		return &sbpl.ArgumentError{Field: "barcode data", Value: `""`, Msg: "must not be empty"}
	}
	for i := 0; i < len(data); i++ {
		if data[i] < 0x20 || data[i] > 0x7E {
			return &sbpl.ArgumentError{Field: "barcode data", Value: data, Msg: "printable ASCII only"}
		}
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
