// internal/transport/serial.go
package transport

import (
	"io"

	"go.bug.st/serial"

	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// port is the part of serial.Port a spool job uses.
type port interface {
	io.WriteCloser
	Drain() error
}

// SerialSpooler spools jobs to a label printer on a serial or USB-CDC
// port. One job holds the port open; EndPage drains it.
type SerialSpooler struct {
	Device   string
	BaudRate int

	open func(device string, mode *serial.Mode) (port, error)
	jobs jobs[port]
}

func NewSerialSpooler(device string, baudRate int) *SerialSpooler {
	if baudRate <= 0 {
		baudRate = 9600
	}
	return &SerialSpooler{
		Device:   device,
		BaudRate: baudRate,
		open: func(device string, mode *serial.Mode) (port, error) {
			return serial.Open(device, mode)
		},
	}
}

func (s *SerialSpooler) OpenJob(name string) (Handle, error) {
	mode := &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := s.open(s.Device, mode)
	if err != nil {
		return 0, &sbpl.IOError{Op: "open job " + name, Err: err}
	}
	return s.jobs.add(p), nil
}

func (s *SerialSpooler) BeginPage(h Handle) error {
	_, err := s.jobs.get("begin page", h)
	return err
}

func (s *SerialSpooler) WriteBytes(h Handle, b []byte) (int, error) {
	p, err := s.jobs.get("write page", h)
	if err != nil {
		return 0, err
	}
	n, err := p.Write(b)
	if err != nil {
		return n, &sbpl.IOError{Op: "write page", Err: err}
	}
	return n, nil
}

func (s *SerialSpooler) EndPage(h Handle) error {
	p, err := s.jobs.get("end page", h)
	if err != nil {
		return err
	}
	if err := p.Drain(); err != nil {
		return &sbpl.IOError{Op: "end page", Err: err}
	}
	return nil
}

func (s *SerialSpooler) CloseJob(h Handle) error {
	p, err := s.jobs.remove("close job", h)
	if err != nil {
		return err
	}
	derr := p.Drain()
	if err := p.Close(); err != nil {
		return &sbpl.IOError{Op: "close job", Err: err}
	}
	if derr != nil {
		return &sbpl.IOError{Op: "close job", Err: derr}
	}
	return nil
}
