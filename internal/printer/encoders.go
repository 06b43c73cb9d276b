// internal/printer/encoders.go
package printer

import (
	"image"
	"time"

	"github.com/karronoli/tiny-sato/internal/bitmap"
	"github.com/karronoli/tiny-sato/internal/command"
	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// Every method validates first and leaves the stream untouched on error.

func (s *Session) page(op []byte, err error) error {
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sbpl.ErrClosed
	}
	s.st.Add(op)
	return nil
}

func (s *Session) global(op []byte, err error) error {
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sbpl.ErrClosed
	}
	s.st.InsertGlobalSetting(op)
	return nil
}

// Add appends a raw command; ESC is prepended.
func (s *Session) Add(op string) error {
	return s.page(sbpl.Op(op), nil)
}

// ---- barcodes ----

func (s *Session) AddCODE128(narrowWidth, height int, data string) error {
	return s.page(command.CODE128(narrowWidth, height, data))
}

// AddCODE128Auto encodes with code set switching and returns the
// symbol width in dots, quiet zone excluded.
func (s *Session) AddCODE128Auto(narrowWidth, height int, data string) (int, error) {
	op, width, err := command.CODE128Auto(narrowWidth, height, data)
	if err != nil {
		return 0, err
	}
	return width, s.page(op, nil)
}

// CenterCODE128 places an auto-mode CODE128 centred on a label
// labelWidth dots wide.
func (s *Session) CenterCODE128(labelWidth, narrowWidth, height int, data string) error {
	op, width, err := command.CODE128Auto(narrowWidth, height, data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sbpl.ErrClosed
	}
	move, err := command.MoveToX((labelWidth-width)/2 + s.offsetX)
	if err != nil {
		return err
	}
	s.st.Add(move)
	s.st.Add(op)
	return nil
}

func (s *Session) AddJAN13(thinWidth, top int, data string) error {
	return s.page(command.JAN13(thinWidth, top, data))
}

// AddCodabar uses 'A' as start and stop character.
func (s *Session) AddCodabar(thinWidth, length int, data string) error {
	return s.page(command.Codabar(thinWidth, length, data, 'A', 'A'))
}

// AddCodabarWith picks the start and stop characters from ABCD.
func (s *Session) AddCodabarWith(thinWidth, length int, data string, start, stop byte) error {
	return s.page(command.Codabar(thinWidth, length, data, start, stop))
}

// ---- graphics ----

func (s *Session) AddBox(hLineWidth, vLineWidth, width, height int) error {
	return s.page(command.Box(hLineWidth, vLineWidth, width, height))
}

func (s *Session) AddGraphic(src bitmap.Source, strict bool) error {
	return s.page(command.Graphic(src, strict))
}

func (s *Session) AddBitmap(src bitmap.Source) error {
	return s.page(command.Bitmap(src))
}

// AddImage scales and thresholds img, then adds it as a graphic.
func (s *Session) AddImage(img image.Image, opt bitmap.Options) error {
	mono, err := bitmap.FromImage(img, opt)
	if err != nil {
		return err
	}
	return s.AddGraphic(mono, false)
}

// ---- positioning ----

func (s *Session) MoveToX(x int) error {
	s.mu.Lock()
	off := s.offsetX
	s.mu.Unlock()
	return s.page(command.MoveToX(x + off))
}

func (s *Session) MoveToY(y int) error {
	s.mu.Lock()
	off := s.offsetY
	s.mu.Unlock()
	return s.page(command.MoveToY(y + off))
}

func (s *Session) SetStartPosition(x, y int) error {
	return s.page(command.StartPosition(x, y))
}

// SetStartPositionEx sets a soft offset applied by MoveToX and MoveToY.
// Nothing is sent to the printer.
func (s *Session) SetStartPositionEx(x, y int) error {
	if err := sbpl.CheckRange("start position x", x, -9999, 9999); err != nil {
		return err
	}
	if err := sbpl.CheckRange("start position y", y, -9999, 9999); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sbpl.ErrClosed
	}
	s.offsetX, s.offsetY = x, y
	return nil
}

func (s *Session) SetCalendar(t time.Time) error {
	return s.page(command.Calendar(t), nil)
}

func (s *Session) SetPageNumber(pages int) error {
	return s.page(command.PageCount(pages))
}

// ---- global settings ----

func (s *Session) SetDensity(density int, spec command.DensitySpec) error {
	return s.global(command.Density(density, spec))
}

func (s *Session) SetSpeed(speed int) error {
	return s.global(command.Speed(speed))
}

func (s *Session) SetPaperSize(height, width int) error {
	return s.global(command.PaperSize(height, width))
}

func (s *Session) SetGapSizeBetweenLabels(gap int) error {
	return s.global(command.LabelGap(gap))
}

func (s *Session) SetSensorType(t command.SensorType) error {
	return s.global(command.Sensor(t))
}
