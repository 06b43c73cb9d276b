// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/karronoli/tiny-sato/internal/sbpl"
	"github.com/karronoli/tiny-sato/internal/status"
)

// fakeClient replays health codes; the last one repeats.
type fakeClient struct {
	mu     sync.Mutex
	codes  []byte
	calls  int
	failAt int // 1-based call that fails with an I/O error; 0 never
	closed bool
}

func (f *fakeClient) Status(ctx context.Context) (status.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failAt == f.calls {
		return status.JobStatus{}, &sbpl.IOError{Op: "status read", Err: errors.New("reset")}
	}
	i := f.calls - 1
	if i >= len(f.codes) {
		i = len(f.codes) - 1
	}
	return status.Decode(status.Encode(status.JobStatus{
		ID:     "01",
		Health: status.Health{Raw: f.codes[i]},
		Name:   "fake",
	}))
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newPoller(t *testing.T, c Client, factory Factory) *Poller {
	t.Helper()
	p, err := New(Config{PrinterID: "p1", Interval: 10 * time.Millisecond}, c, factory)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Interval: time.Second}, &fakeClient{}, nil); err == nil {
		t.Fatalf("expected error for missing printer id")
	}
	if _, err := New(Config{PrinterID: "p1"}, &fakeClient{}, nil); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := New(Config{PrinterID: "p1", Interval: time.Second}, nil, nil); err == nil {
		t.Fatalf("expected error for missing client and factory")
	}
}

func TestPollOnce_Success(t *testing.T) {
	p := newPoller(t, &fakeClient{codes: []byte{'A'}}, nil)

	res := p.PollOnce(context.Background())
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if !res.Ready() {
		t.Fatalf("expected ready, got %s", res.Status)
	}
	if res.PrinterID != "p1" {
		t.Fatalf("printer id = %q", res.PrinterID)
	}
}

func TestPollOnce_DeviceErrorKeepsStatus(t *testing.T) {
	p := newPoller(t, &fakeClient{codes: []byte{'h'}}, nil)

	res := p.PollOnce(context.Background())
	var de *sbpl.DeviceError
	if !errors.As(res.Err, &de) {
		t.Fatalf("expected DeviceError, got %v", res.Err)
	}
	if res.Status.Health.Error != status.ErrorCoverOpen {
		t.Fatalf("expected cover open, got %s", res.Status.Health.Error)
	}
}

func TestPollOnce_ReconnectsAfterTransportFailure(t *testing.T) {
	first := &fakeClient{codes: []byte{'A'}, failAt: 1}
	second := &fakeClient{codes: []byte{'G'}}
	opened := 0

	factory := func(context.Context) (Client, error) {
		opened++
		return second, nil
	}
	p := newPoller(t, first, factory)

	if res := p.PollOnce(context.Background()); res.Err == nil {
		t.Fatalf("expected transport failure")
	}
	if !first.closed {
		t.Fatalf("failed client not closed")
	}

	res := p.PollOnce(context.Background())
	if res.Err != nil {
		t.Fatalf("PollOnce after reconnect err=%v", res.Err)
	}
	if opened != 1 || res.Status.Health.State != status.StateOnlinePrinting {
		t.Fatalf("opened=%d state=%s", opened, res.Status.Health.State)
	}
}

func TestUntilReady_BecomesReady(t *testing.T) {
	c := &fakeClient{codes: []byte{'0', '2', 'B', 'S'}}
	p := newPoller(t, c, nil)

	s, err := p.UntilReady(context.Background(), time.Second, time.Millisecond)
	if err != nil {
		t.Fatalf("UntilReady err=%v", err)
	}
	if s.Health.Raw != 'S' || c.Calls() != 4 {
		t.Fatalf("health=%q calls=%d", s.Health.Raw, c.Calls())
	}
}

func TestUntilReady_BusyTimeoutCarriesLastStatus(t *testing.T) {
	p := newPoller(t, &fakeClient{codes: []byte{'C'}}, nil)

	_, err := p.UntilReady(context.Background(), 30*time.Millisecond, 5*time.Millisecond)
	var be *sbpl.BusyTimeoutError
	if !errors.As(err, &be) {
		t.Fatalf("expected BusyTimeoutError, got %v", err)
	}
	if be.Endpoint != "p1" {
		t.Fatalf("endpoint = %q", be.Endpoint)
	}
	if want := "health=C"; !strings.Contains(be.Last, want) {
		t.Fatalf("last status %q missing %q", be.Last, want)
	}
}

func TestUntilReady_DeviceErrorIsNotRetried(t *testing.T) {
	c := &fakeClient{codes: []byte{'c'}}
	p := newPoller(t, c, nil)

	_, err := p.UntilReady(context.Background(), time.Second, time.Millisecond)
	var de *sbpl.DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if c.Calls() != 1 {
		t.Fatalf("expected one query, got %d", c.Calls())
	}
}

func TestUntilReady_IOErrorPropagates(t *testing.T) {
	c := &fakeClient{codes: []byte{'0'}, failAt: 2}
	p := newPoller(t, c, nil)

	_, err := p.UntilReady(context.Background(), time.Second, time.Millisecond)
	var ioe *sbpl.IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if c.Calls() != 2 {
		t.Fatalf("expected two queries, got %d", c.Calls())
	}
}

func TestUntilReady_CancelAbortsBeforeDeadline(t *testing.T) {
	p := newPoller(t, &fakeClient{codes: []byte{'0'}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := p.UntilReady(ctx, 10*time.Second, 5*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("cancel did not abort the wait")
	}
}

func TestRun_EmitsUntilCancelled(t *testing.T) {
	p := newPoller(t, &fakeClient{codes: []byte{'A'}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan PollResult)
	done := make(chan struct{})
	go func() {
		p.Run(ctx, out)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case res := <-out:
			if !res.Ready() {
				t.Fatalf("result %d not ready: %v", i, res.Err)
			}
		case <-time.After(time.Second):
			t.Fatalf("no result %d", i)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
