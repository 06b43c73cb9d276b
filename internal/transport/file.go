// internal/transport/file.go
package transport

import (
	"os"

	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// FileSpooler spools jobs to a device node such as /dev/usb/lp0,
// or appends them to a regular file.
type FileSpooler struct {
	Path string

	jobs jobs[*os.File]
}

func NewFileSpooler(path string) *FileSpooler {
	return &FileSpooler{Path: path}
}

func (s *FileSpooler) OpenJob(name string) (Handle, error) {
	f, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return 0, &sbpl.IOError{Op: "open job " + name, Err: err}
	}
	return s.jobs.add(f), nil
}

func (s *FileSpooler) BeginPage(h Handle) error {
	_, err := s.jobs.get("begin page", h)
	return err
}

func (s *FileSpooler) WriteBytes(h Handle, b []byte) (int, error) {
	f, err := s.jobs.get("write page", h)
	if err != nil {
		return 0, err
	}
	n, err := f.Write(b)
	if err != nil {
		return n, &sbpl.IOError{Op: "write page", Err: err}
	}
	return n, nil
}

func (s *FileSpooler) EndPage(h Handle) error {
	_, err := s.jobs.get("end page", h)
	return err
}

func (s *FileSpooler) CloseJob(h Handle) error {
	f, err := s.jobs.remove("close job", h)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return &sbpl.IOError{Op: "close job", Err: err}
	}
	return nil
}
