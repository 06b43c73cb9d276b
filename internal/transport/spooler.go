// internal/transport/spooler.go
package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/karronoli/tiny-sato/internal/metrics"
	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// Handle identifies one open spool job.
type Handle int

// Spooler is a local print queue. Each call may fail with a platform
// error; implementations return them as *sbpl.IOError.
type Spooler interface {
	OpenJob(name string) (Handle, error)
	BeginPage(h Handle) error
	WriteBytes(h Handle, p []byte) (int, error)
	EndPage(h Handle) error
	CloseJob(h Handle) error
}

// WritePage sends p as one spooled page.
func WritePage(sp Spooler, h Handle, p []byte) (int, error) {
	if err := sp.BeginPage(h); err != nil {
		return 0, wrapIO("begin page", err)
	}
	n, err := sp.WriteBytes(h, p)
	metrics.RecordBytesSent("spool", n)
	if err != nil {
		return n, wrapIO("write page", err)
	}
	if n != len(p) {
		return n, &sbpl.IOError{Op: "write page", Err: fmt.Errorf("short write %d/%d", n, len(p))}
	}
	if err := sp.EndPage(h); err != nil {
		return n, wrapIO("end page", err)
	}
	return n, nil
}

func wrapIO(op string, err error) error {
	var ioe *sbpl.IOError
	if errors.As(err, &ioe) {
		return err
	}
	return &sbpl.IOError{Op: op, Err: err}
}

// ---- job table ----

// jobs maps handles to open sinks.
type jobs[T io.Closer] struct {
	mu   sync.Mutex
	next Handle
	m    map[Handle]T
}

func (j *jobs[T]) add(v T) Handle {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.m == nil {
		j.m = make(map[Handle]T)
	}
	j.next++
	j.m[j.next] = v
	return j.next
}

func (j *jobs[T]) get(op string, h Handle) (T, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.m[h]
	if !ok {
		var zero T
		return zero, &sbpl.IOError{Op: op, Err: fmt.Errorf("unknown job handle %d", h)}
	}
	return v, nil
}

func (j *jobs[T]) remove(op string, h Handle) (T, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.m[h]
	if !ok {
		var zero T
		return zero, &sbpl.IOError{Op: op, Err: fmt.Errorf("unknown job handle %d", h)}
	}
	delete(j.m, h)
	return v, nil
}
