// internal/status/jobstatus.go
package status

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// ErrMalformedRecord is wrapped by decode failures caused by bad framing.
var ErrMalformedRecord = errors.New("status: malformed record")

// JobStatus is one decoded status record.
type JobStatus struct {
	ID             string
	Health         Health
	LabelRemaining int
	Name           string
}

func (s JobStatus) Ready() bool { return s.Health.Ready() }

// String is the diagnostic form carried by busy and device errors.
func (s JobStatus) String() string {
	return fmt.Sprintf(
		"id=%s health=%c state=%s battery=%s buffer=%s error=%s remaining=%d name=%s",
		s.ID, s.Health.Raw, s.Health.State, s.Health.Battery, s.Health.Buffer,
		s.Health.Error, s.LabelRemaining, s.Name,
	)
}

// ExtractRecord returns the last RecordLen bytes of buf.
func ExtractRecord(buf []byte) ([]byte, error) {
	if len(buf) < RecordLen {
		return nil, &sbpl.IOError{
			Op:  "status decode",
			Err: fmt.Errorf("%w: short reply len=%d want>=%d", ErrMalformedRecord, len(buf), RecordLen),
		}
	}
	return buf[len(buf)-RecordLen:], nil
}

// Decode parses a record by fixed offsets.
//
// An Error-kind health code yields the decoded status together with a
// *sbpl.DeviceError. Framing problems and unknown health codes yield
// *sbpl.IOError.
func Decode(rec []byte) (JobStatus, error) {
	if len(rec) != RecordLen {
		return JobStatus{}, malformed("len=%d want=%d", len(rec), RecordLen)
	}
	if rec[OffsetSTX] != sbpl.STX || rec[OffsetETX] != sbpl.ETX {
		return JobStatus{}, malformed("missing STX/ETX")
	}

	h, err := DecodeHealth(rec[OffsetHealth])
	if err != nil {
		return JobStatus{}, &sbpl.IOError{Op: "status decode", Err: err}
	}

	rawRemaining := string(rec[OffsetLabelRemaining : OffsetLabelRemaining+LenLabelRemaining])
	remaining, err := strconv.Atoi(rawRemaining)
	if err != nil || remaining < 0 {
		return JobStatus{}, malformed("label remaining %q", rawRemaining)
	}

	s := JobStatus{
		ID:             string(rec[OffsetID : OffsetID+LenID]),
		Health:         h,
		LabelRemaining: remaining,
		Name:           strings.TrimRight(string(rec[OffsetName:OffsetName+LenName]), " \x00"),
	}

	if h.State == StateError {
		return s, &sbpl.DeviceError{Kind: h.Error.String(), Status: s.String()}
	}
	return s, nil
}

func malformed(format string, args ...any) error {
	return &sbpl.IOError{
		Op:  "status decode",
		Err: fmt.Errorf("%w: "+format, append([]any{ErrMalformedRecord}, args...)...),
	}
}

// Encode renders s back to its wire record. Used by fakes and tests.
func Encode(s JobStatus) []byte {
	rec := make([]byte, RecordLen)
	rec[OffsetSTX] = sbpl.STX
	copy(rec[OffsetID:OffsetID+LenID], fmt.Sprintf("%-2.2s", s.ID))
	rec[OffsetHealth] = s.Health.Raw
	copy(rec[OffsetLabelRemaining:OffsetLabelRemaining+LenLabelRemaining], sbpl.Digits(s.LabelRemaining, LenLabelRemaining))
	copy(rec[OffsetName:OffsetName+LenName], fmt.Sprintf("%-16.16s", s.Name))
	rec[OffsetETX] = sbpl.ETX
	return rec
}
