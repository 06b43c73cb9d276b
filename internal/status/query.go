// internal/status/query.go
package status

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// Conn is the subset of net.Conn a status query needs.
type Conn interface {
	io.ReadWriter
	SetDeadline(t time.Time) error
}

// Query sends one status request on conn and decodes the reply.
//
// The reply is read until it ends with ETX and holds at least one full
// record; leading padding is discarded. timeout bounds the whole exchange
// (zero selects DefaultIOTimeout). Cancelling ctx aborts a blocked read.
func Query(ctx context.Context, conn Conn, timeout time.Duration) (JobStatus, error) {
	if timeout <= 0 {
		timeout = DefaultIOTimeout
	}
	if err := ctx.Err(); err != nil {
		return JobStatus{}, &sbpl.IOError{Op: "status query", Err: err}
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return JobStatus{}, &sbpl.IOError{Op: "status deadline", Err: err}
	}
	defer conn.SetDeadline(time.Time{})

	// Force blocked I/O to return as soon as ctx is done.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := conn.Write([]byte{RequestByte}); err != nil {
		return JobStatus{}, &sbpl.IOError{Op: "status write", Err: ctxOr(ctx, err)}
	}

	buf := make([]byte, MaxReplyLen)
	n := 0
	for {
		m, err := conn.Read(buf[n:])
		n += m
		if n >= RecordLen && buf[n-1] == sbpl.ETX && buf[n-RecordLen] == sbpl.STX {
			break
		}
		if err != nil {
			return JobStatus{}, &sbpl.IOError{Op: "status read", Err: ctxOr(ctx, err)}
		}
		if n == len(buf) {
			return JobStatus{}, &sbpl.IOError{
				Op:  "status read",
				Err: fmt.Errorf("%w: no ETX within %d bytes", ErrMalformedRecord, len(buf)),
			}
		}
	}

	rec, err := ExtractRecord(buf[:n])
	if err != nil {
		return JobStatus{}, err
	}
	return Decode(rec)
}

func ctxOr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w (%v)", cerr, err)
	}
	return err
}
