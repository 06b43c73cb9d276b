// internal/command/settings.go
package command

import (
	"time"

	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// Page-scoped global settings. The stream wraps each of these in its own
// page ahead of the drawing commands.

// DensitySpec selects the firmware density table.
type DensitySpec byte

const (
	DensityA DensitySpec = 'A'
	DensityB DensitySpec = 'B'
	DensityC DensitySpec = 'C'
	DensityD DensitySpec = 'D'
	DensityE DensitySpec = 'E'
	DensityF DensitySpec = 'F'
)

// SensorType selects how the printer detects the label edge.
type SensorType int

const (
	SensorReflection  SensorType = 0
	SensorTransparent SensorType = 1
	SensorIgnore      SensorType = 2
)

func (s SensorType) String() string {
	switch s {
	case SensorReflection:
		return "reflection"
	case SensorTransparent:
		return "transparent"
	case SensorIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

func Density(density int, spec DensitySpec) ([]byte, error) {
	if err := sbpl.CheckRange("density", density, 1, 5); err != nil {
		return nil, err
	}
	if spec < DensityA || spec > DensityF {
		return nil, &sbpl.ArgumentError{Field: "density spec", Value: string(rune(spec)), Msg: "valid range: A-F"}
	}
	return sbpl.Op("#E", sbpl.Digits(density, 1), string(rune(spec))), nil
}

func Speed(speed int) ([]byte, error) {
	if err := sbpl.CheckRange("speed", speed, 1, 5); err != nil {
		return nil, err
	}
	return sbpl.Op("CS", sbpl.Digits(speed, 2)), nil
}

// PaperSize sets the label height and width in dots.
func PaperSize(height, width int) ([]byte, error) {
	if err := sbpl.CheckRange("paper height", height, 1, 9999); err != nil {
		return nil, err
	}
	if err := sbpl.CheckRange("paper width", width, 1, 9999); err != nil {
		return nil, err
	}
	return sbpl.Op("A1", sbpl.Digits(height, 4), sbpl.Digits(width, 4)), nil
}

// LabelGap sets the gap between labels in dots.
func LabelGap(gap int) ([]byte, error) {
	if err := sbpl.CheckRange("label gap", gap, 0, 64); err != nil {
		return nil, err
	}
	return sbpl.Op("TG", sbpl.Digits(gap, 2)), nil
}

func Sensor(t SensorType) ([]byte, error) {
	if err := sbpl.CheckRange("sensor type", int(t), int(SensorReflection), int(SensorIgnore)); err != nil {
		return nil, err
	}
	return sbpl.Op("IG", sbpl.Digits(int(t), 1)), nil
}

// ---- PAGE-SCOPED COMMANDS ----

func MoveToX(x int) ([]byte, error) {
	if err := sbpl.CheckRange("x", x, 1, 9999); err != nil {
		return nil, err
	}
	return sbpl.Op("H", sbpl.Digits(x, 4)), nil
}

func MoveToY(y int) ([]byte, error) {
	if err := sbpl.CheckRange("y", y, 1, 9999); err != nil {
		return nil, err
	}
	return sbpl.Op("V", sbpl.Digits(y, 4)), nil
}

// StartPosition shifts the print origin by (x, y) dots.
func StartPosition(x, y int) ([]byte, error) {
	if err := sbpl.CheckRange("start position x", x, -999, 999); err != nil {
		return nil, err
	}
	if err := sbpl.CheckRange("start position y", y, -999, 999); err != nil {
		return nil, err
	}
	return sbpl.Op("A3V", sbpl.Signed(y, 3), "H", sbpl.Signed(x, 3)), nil
}

// Calendar sets the printer clock to t, minute precision.
func Calendar(t time.Time) []byte {
	return sbpl.Op("WT",
		sbpl.Digits(t.Year()%1000, 2),
		sbpl.Digits(int(t.Month()), 2),
		sbpl.Digits(t.Day(), 2),
		sbpl.Digits(t.Hour(), 2),
		sbpl.Digits(t.Minute(), 2),
	)
}

// PageCount sets how many copies of the current page are printed.
func PageCount(n int) ([]byte, error) {
	if err := sbpl.CheckRange("page count", n, 1, 999999); err != nil {
		return nil, err
	}
	return sbpl.Op("Q", sbpl.Digits(n, 6)), nil
}
