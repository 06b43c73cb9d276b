package printer

import (
	"context"
	"fmt"
	"image"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karronoli/tiny-sato/internal/bitmap"
	"github.com/karronoli/tiny-sato/internal/command"
	"github.com/karronoli/tiny-sato/internal/logging"
	"github.com/karronoli/tiny-sato/internal/sbpl"
	"github.com/karronoli/tiny-sato/internal/status"
	"github.com/karronoli/tiny-sato/internal/transport"
)

func TestMain(m *testing.M) {
	logging.Configure(logging.ProfileTest)
	os.Exit(m.Run())
}

// ---- fake TCP printer ----

// fakePrinter accepts one connection, answers every ENQ with the next
// health code (the last repeats) and records everything else.
type fakePrinter struct {
	ln      net.Listener
	healths []byte

	mu   sync.Mutex
	data []byte
	enqs int
	done chan struct{}
}

func startPrinter(t *testing.T, healths ...byte) *fakePrinter {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := &fakePrinter{ln: ln, healths: healths, done: make(chan struct{})}
	t.Cleanup(func() { ln.Close() })
	go p.serve()
	return p
}

func (p *fakePrinter) Addr() string { return p.ln.Addr().String() }

func (p *fakePrinter) serve() {
	defer close(p.done)
	conn, err := p.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		for _, b := range buf[:n] {
			if b != sbpl.ENQ {
				p.mu.Lock()
				p.data = append(p.data, b)
				p.mu.Unlock()
				continue
			}
			p.mu.Lock()
			i := p.enqs
			if i >= len(p.healths) {
				i = len(p.healths) - 1
			}
			p.enqs++
			p.mu.Unlock()

			reply := append([]byte{0, 0, 0, 0x1c, sbpl.ENQ}, status.Encode(status.JobStatus{
				ID:     "01",
				Health: status.Health{Raw: p.healths[i]},
				Name:   "Lesprit",
			})...)
			if _, werr := conn.Write(reply); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Received waits for the client to hang up and returns the job bytes.
func (p *fakePrinter) Received(t *testing.T) []byte {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("printer connection still open")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

// frame renders ESC-prefixed commands inside STX ... ETX.
func frame(cmds ...string) []byte {
	out := []byte{sbpl.STX}
	for _, c := range cmds {
		out = append(out, sbpl.ESC)
		out = append(out, c...)
	}
	return append(out, sbpl.ETX)
}

func dial(t *testing.T, p *fakePrinter, opts ...Option) *Session {
	t.Helper()
	s, err := Dial(context.Background(), p.Addr(), opts...)
	require.NoError(t, err)
	return s
}

// ---- fake spooler ----

type fakeSpooler struct {
	calls []string
	pages [][]byte
	cur   []byte
}

func (f *fakeSpooler) OpenJob(name string) (transport.Handle, error) {
	f.calls = append(f.calls, "open "+name)
	return 7, nil
}

func (f *fakeSpooler) BeginPage(h transport.Handle) error {
	f.calls = append(f.calls, "begin")
	f.cur = nil
	return nil
}

func (f *fakeSpooler) WriteBytes(h transport.Handle, p []byte) (int, error) {
	f.calls = append(f.calls, "write")
	f.cur = append(f.cur, p...)
	return len(p), nil
}

func (f *fakeSpooler) EndPage(h transport.Handle) error {
	f.calls = append(f.calls, "end")
	f.pages = append(f.pages, f.cur)
	return nil
}

func (f *fakeSpooler) CloseJob(h transport.Handle) error {
	f.calls = append(f.calls, fmt.Sprintf("close %d", h))
	return nil
}

// ---- TCP sessions ----

func TestMultiPageJob(t *testing.T) {
	p := startPrinter(t, 'A')
	s := dial(t, p)
	ctx := context.Background()

	require.NoError(t, s.AddCODE128(1, 2, "HELLO"))
	require.NoError(t, s.SetPageNumber(3))
	_, err := s.AddStream(ctx)
	require.NoError(t, err)

	require.NoError(t, s.AddCODE128(4, 5, "WORLD"))
	require.NoError(t, s.SetPageNumber(6))
	_, err = s.AddStream(ctx)
	require.NoError(t, err)

	require.NoError(t, s.AddCODE128(7, 8, "!!!"))
	require.NoError(t, s.SetPageNumber(9))
	_, err = s.Send(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	want := frame(
		"A", "BG01002HELLO", "Q000003", "Z",
		"A", "BG04005WORLD", "Q000006", "Z",
		"A", "BG07008!!!", "Q000009", "Z",
	)
	assert.Equal(t, want, p.Received(t))
}

func TestSettingsPrecedeDrawings(t *testing.T) {
	p := startPrinter(t, 'A')
	s := dial(t, p)
	barcode := "1234567890128"

	require.NoError(t, s.SetSensorType(command.SensorReflection))
	require.NoError(t, s.SetGapSizeBetweenLabels(16))
	require.NoError(t, s.SetDensity(3, command.DensityA))
	require.NoError(t, s.SetSpeed(4))
	require.NoError(t, s.SetPaperSize(639, 831))
	require.NoError(t, s.SetStartPosition(0, 0))

	require.NoError(t, s.MoveToX(80))
	require.NoError(t, s.MoveToY(80))
	require.NoError(t, s.AddJAN13(3, 70, barcode))
	require.NoError(t, s.MoveToX(8))
	require.NoError(t, s.MoveToY(8))
	require.NoError(t, s.AddCodabar(1, 2, barcode))

	n, err := s.SendPages(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	want := frame(
		"A", "IG0", "Z",
		"A", "TG16", "Z",
		"A", "#E3A", "Z",
		"A", "CS04", "Z",
		"A", "A10639", "Z",
		"A", "A3V+000H+000",
		"H0080", "V0080", "BD303070"+barcode,
		"H0008", "V0008", "B001002A"+barcode+"A",
		"Q000001", "Z",
	)
	assert.Equal(t, len(want), n)
	assert.Equal(t, string(want), string(p.Received(t)))
}

func TestDialWaitsForReady(t *testing.T) {
	p := startPrinter(t, '0', 'C', 'G')
	s := dial(t, p, WithConnectBudget(2*time.Second))
	require.NoError(t, s.Close())
	p.Received(t)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 3, p.enqs)
}

func TestDialBusyTimeout(t *testing.T) {
	p := startPrinter(t, '2')

	_, err := Dial(context.Background(), p.Addr(), WithConnectBudget(100*time.Millisecond))
	var be *sbpl.BusyTimeoutError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, p.Addr(), be.Endpoint)
	assert.Contains(t, be.Last, "health=2")
	p.Received(t)
}

func TestDialDeviceError(t *testing.T) {
	p := startPrinter(t, 'h')

	_, err := Dial(context.Background(), p.Addr())
	var de *sbpl.DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "CoverOpen", de.Kind)
	assert.Equal(t, sbpl.CodeDevice, sbpl.ErrorCode(err))
}

func TestDialUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), addr, WithConnectBudget(200*time.Millisecond))
	var nf *sbpl.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestSendWithinBusyStillClosesFrame(t *testing.T) {
	p := startPrinter(t, 'A', '0')
	s := dial(t, p)

	require.NoError(t, s.AddCODE128(1, 2, "HELLO"))
	_, err := s.SendWithin(context.Background(), 50*time.Millisecond)
	var be *sbpl.BusyTimeoutError
	require.ErrorAs(t, err, &be)
	require.NoError(t, s.Close())

	want := "\x02\x1bA\x1bBG01002HELLO\x1bZ" + "\x1bA\x1bZ\x03"
	assert.Equal(t, want, string(p.Received(t)))
}

func TestAddStreamWithinGatesAfterSend(t *testing.T) {
	p := startPrinter(t, 'A', 'V')
	s := dial(t, p)

	require.NoError(t, s.AddCODE128(1, 2, "HELLO"))
	_, err := s.AddStreamWithin(context.Background(), 50*time.Millisecond)
	var be *sbpl.BusyTimeoutError
	require.ErrorAs(t, err, &be, "buffer near full is not ready")
	require.NoError(t, s.Close())

	assert.Equal(t, "\x02\x1bA\x1bBG01002HELLO\x1bZ", string(p.Received(t)))
}

func TestTimeoutMustBePositive(t *testing.T) {
	sp := &fakeSpooler{}
	s, err := Open(sp, "job")
	require.NoError(t, err)

	var ae *sbpl.ArgumentError
	_, err = s.AddStreamWithin(context.Background(), 0)
	assert.ErrorAs(t, err, &ae)
	_, err = s.SendWithin(context.Background(), -time.Second)
	assert.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"open job"}, sp.calls)
}

func TestStatusOnTCP(t *testing.T) {
	p := startPrinter(t, 'A', 'c')
	s := dial(t, p)
	defer s.Close()

	_, err := s.Status(context.Background())
	var de *sbpl.DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Paper", de.Kind)
}

// ---- spool sessions ----

func TestSpoolPagesAndIdempotentClose(t *testing.T) {
	sp := &fakeSpooler{}
	s, err := Open(sp, "labels")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.AddCODE128(1, 2, "HELLO"))
	_, err = s.AddStream(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddCODE128(1, 2, "WORLD"))
	_, err = s.SendWithin(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, []string{
		"open labels",
		"begin", "write", "end",
		"begin", "write", "end",
		"begin", "write", "end",
		"close 7",
	}, sp.calls)
	require.Len(t, sp.pages, 3)
	assert.Equal(t, "\x02\x1bA\x1bBG01002HELLO\x1bZ", string(sp.pages[0]))
	assert.Equal(t, "\x1bA\x1bBG01002WORLD\x1bZ", string(sp.pages[1]))
	assert.Equal(t, "\x1bA\x1bZ\x03", string(sp.pages[2]))
}

func TestCodabarWithCustomStartStop(t *testing.T) {
	sp := &fakeSpooler{}
	s, err := Open(sp, "codabar")
	require.NoError(t, err)

	require.NoError(t, s.AddCodabarWith(1, 2, "123", 'B', 'D'))

	var ae *sbpl.ArgumentError
	require.ErrorAs(t, s.AddCodabarWith(1, 2, "123", 'B', 'E'), &ae)

	_, err = s.Send(context.Background())
	require.NoError(t, err)
	require.Len(t, sp.pages, 1)
	assert.Equal(t, "\x02\x1bA\x1bB001002B123D\x1bZ\x03", string(sp.pages[0]))
}

func TestOpenRejectsEmptyDocName(t *testing.T) {
	sp := &fakeSpooler{}
	_, err := Open(sp, "")
	var ae *sbpl.ArgumentError
	require.ErrorAs(t, err, &ae)
	assert.Empty(t, sp.calls)
}

func TestOperationsAfterClose(t *testing.T) {
	s, err := Open(&fakeSpooler{}, "job")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.ErrorIs(t, s.AddCODE128(1, 2, "X"), sbpl.ErrClosed)
	assert.ErrorIs(t, s.SetSpeed(3), sbpl.ErrClosed)
	assert.ErrorIs(t, s.SetStartPositionEx(1, 1), sbpl.ErrClosed)
	_, err = s.Send(ctx)
	assert.ErrorIs(t, err, sbpl.ErrClosed)
	_, err = s.AddStream(ctx)
	assert.ErrorIs(t, err, sbpl.ErrClosed)
	_, err = s.Status(ctx)
	assert.ErrorIs(t, err, sbpl.ErrClosed)
}

func TestSendOnClose(t *testing.T) {
	sp := &fakeSpooler{}
	s, err := Open(sp, "job", WithSendOnClose(true))
	require.NoError(t, err)
	require.NoError(t, s.AddCODE128(1, 2, "HELLO"))
	require.NoError(t, s.Close())

	require.Len(t, sp.pages, 1)
	assert.Equal(t, frame("A", "BG01002HELLO", "Z"), sp.pages[0])

	// nothing pending: close only
	sp = &fakeSpooler{}
	s, err = Open(sp, "job", WithSendOnClose(true))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Empty(t, sp.pages)
}

func TestCloseWithoutSendOnCloseDropsPending(t *testing.T) {
	sp := &fakeSpooler{}
	s, err := Open(sp, "job")
	require.NoError(t, err)
	require.NoError(t, s.AddCODE128(1, 2, "HELLO"))
	require.NoError(t, s.Close())
	assert.Empty(t, sp.pages)
}

func TestFailedSetterLeavesStreamUntouched(t *testing.T) {
	s, err := Open(&fakeSpooler{}, "job")
	require.NoError(t, err)
	defer s.Close()

	var ae *sbpl.ArgumentError
	assert.ErrorAs(t, s.SetSpeed(9), &ae)
	assert.ErrorAs(t, s.SetGapSizeBetweenLabels(65), &ae)
	assert.ErrorAs(t, s.AddCODE128(13, 1, "X"), &ae)
	assert.ErrorAs(t, s.SetPageNumber(0), &ae)
	assert.False(t, s.Pending())
}

func TestSoftOffset(t *testing.T) {
	sp := &fakeSpooler{}
	s, err := Open(sp, "job")
	require.NoError(t, err)

	require.NoError(t, s.SetStartPositionEx(10, 20))
	require.NoError(t, s.MoveToX(5))
	require.NoError(t, s.MoveToY(5))

	var ae *sbpl.ArgumentError
	assert.ErrorAs(t, s.MoveToX(-10), &ae, "offset result must stay >= 1")
	assert.ErrorAs(t, s.SetStartPositionEx(10000, 0), &ae)

	_, err = s.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, frame("A", "H0015", "V0025", "Z"), sp.pages[0])
}

func TestCenterCODE128(t *testing.T) {
	sp := &fakeSpooler{}
	s, err := Open(sp, "job")
	require.NoError(t, err)

	require.NoError(t, s.CenterCODE128(800, 2, 100, "AB12345678"))
	_, err = s.Send(context.Background())
	require.NoError(t, err)

	width := command.SplitCODE128("AB12345678").ModuleWidth(2)
	x := (800 - width) / 2
	got := string(sp.pages[0])
	assert.True(t, strings.Contains(got, fmt.Sprintf("\x1bH%04d\x1bBG02100>H", x)), "got %q", got)
}

func TestAddImage(t *testing.T) {
	sp := &fakeSpooler{}
	s, err := Open(sp, "job")
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, 32, 16))
	require.NoError(t, s.AddImage(img, bitmap.Options{Width: 16}))
	_, err = s.Send(context.Background())
	require.NoError(t, err)

	assert.Equal(t, frame("A", "GH002001"+strings.Repeat("FF", 16), "Z"), sp.pages[0])
}
