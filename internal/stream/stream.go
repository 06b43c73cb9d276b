// internal/stream/stream.go
package stream

import (
	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// State is the lifecycle position of a Stream.
type State int

const (
	// Empty holds only the frame start marker.
	Empty State = iota
	// Accumulating holds buffered operations.
	Accumulating
	// Flushed holds nothing after a mid-job page was emitted.
	Flushed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Accumulating:
		return "accumulating"
	case Flushed:
		return "flushed"
	default:
		return "unknown"
	}
}

// Stream is an ordered buffer of wire operations with a movable settings
// boundary. Global settings are inserted at the boundary as their own
// A...Z page so they always run before the drawing commands of the page.
//
// A Stream is not safe for concurrent use; the owning session serializes access.
type Stream struct {
	ops      [][]byte
	boundary int
	flushed  bool
}

// New returns a stream holding only the frame start marker.
func New() *Stream {
	s := &Stream{}
	s.reset()
	return s
}

func (s *Stream) reset() {
	s.ops = [][]byte{{sbpl.STX}}
	s.boundary = len(s.ops)
	s.flushed = false
}

// Add appends one operation scoped to the current page.
func (s *Stream) Add(op []byte) {
	s.ops = append(s.ops, op)
}

// InsertGlobalSetting wraps op with page markers and inserts the unit at
// the settings boundary, advancing it by 3.
func (s *Stream) InsertGlobalSetting(op []byte) {
	unit := [][]byte{sbpl.PageStart, op, sbpl.PageEnd}
	s.ops = insert(s.ops, s.boundary, unit...)
	s.boundary += len(unit)
}

// Page closes the current page and returns the flattened bytes.
// The buffer is cleared for the next page of the same job.
func (s *Stream) Page() []byte {
	s.ops = insert(s.ops, s.boundary, sbpl.PageStart)
	s.ops = append(s.ops, sbpl.PageEnd)

	out := flatten(s.ops)

	s.ops = s.ops[:0]
	s.boundary = 0
	s.flushed = true
	return out
}

// Final closes the current page and the job frame and returns the
// flattened bytes. The buffer returns to the initial empty frame.
func (s *Stream) Final() []byte {
	s.ops = insert(s.ops, s.boundary, sbpl.PageStart)
	s.ops = append(s.ops, sbpl.JobEnd)

	out := flatten(s.ops)

	s.reset()
	return out
}

// Len is the number of buffered operations.
func (s *Stream) Len() int { return len(s.ops) }

// Boundary is the current settings insertion index.
func (s *Stream) Boundary() int { return s.boundary }

// Pending reports whether anything beyond the initial frame is buffered.
func (s *Stream) Pending() bool {
	if s.flushed {
		return true
	}
	return len(s.ops) > 1
}

func (s *Stream) State() State {
	switch {
	case s.flushed && len(s.ops) == 0:
		return Flushed
	case !s.flushed && len(s.ops) == 1:
		return Empty
	default:
		return Accumulating
	}
}

// Snapshot returns the current buffer flattened without changing it.
func (s *Stream) Snapshot() []byte { return flatten(s.ops) }

func insert(ops [][]byte, at int, items ...[]byte) [][]byte {
	ops = append(ops, items...)
	copy(ops[at+len(items):], ops[at:len(ops)-len(items)])
	copy(ops[at:], items)
	return ops
}

func flatten(ops [][]byte) []byte {
	n := 0
	for _, op := range ops {
		n += len(op)
	}
	out := make([]byte, 0, n)
	for _, op := range ops {
		out = append(out, op...)
	}
	return out
}
