package discovery

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karronoli/tiny-sato/internal/sbpl"
)

var lesprit = Response{
	MAC:        MAC{0x02, 0, 0, 0, 0, 0x01},
	IP:         net.IPv4(127, 0, 0, 1).To4(),
	SubnetMask: net.IPv4(255, 0, 0, 0).To4(),
	Gateway:    net.IPv4(0, 0, 0, 0).To4(),
	Name:       "Lesprit Series",
	DHCP:       true,
	RARP:       true,
}

func printerAt(last byte, ip byte) Response {
	r := lesprit
	r.MAC[5] = last
	r.IP = net.IPv4(10, 0, 0, ip).To4()
	return r
}

// ---- fakes ----

type datagram struct {
	payload []byte
	from    net.Addr
}

// fakeConn answers a broadcast with queued datagrams, then blocks
// until its read deadline.
type fakeConn struct {
	mu       sync.Mutex
	net      *fakeNetwork
	inbox    []datagram
	deadline time.Time
	wake     chan struct{}
	closed   bool
}

func (c *fakeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return 0, nil, net.ErrClosed
		}
		if len(c.inbox) > 0 {
			d := c.inbox[0]
			c.inbox = c.inbox[1:]
			c.mu.Unlock()
			return copy(p, d.payload), d.from, nil
		}
		dl := c.deadline
		wake := c.wake
		c.mu.Unlock()

		if !dl.IsZero() && !time.Now().Before(dl) {
			return 0, nil, os.ErrDeadlineExceeded
		}
		var timer *time.Timer
		var timeout <-chan time.Time
		if !dl.IsZero() {
			timer = time.NewTimer(time.Until(dl))
			timeout = timer.C
		}
		select {
		case <-wake:
		case <-timeout:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (c *fakeConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.net.record("send")
	c.net.mu.Lock()
	c.net.sent = append(c.net.sent, append([]byte(nil), p...))
	c.net.sentTo = append(c.net.sentTo, addr)
	replies := c.net.replies
	c.net.mu.Unlock()

	c.mu.Lock()
	for _, r := range replies {
		c.inbox = append(c.inbox, datagram{payload: r, from: &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 19541}})
	}
	c.mu.Unlock()
	c.poke()
	return len(p), nil
}

func (c *fakeConn) poke() {
	c.mu.Lock()
	close(c.wake)
	c.wake = make(chan struct{})
	c.mu.Unlock()
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.net.record("close")
	}
	c.closed = true
	c.mu.Unlock()
	c.poke()
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr { return &net.UDPAddr{IP: net.IPv4zero, Port: 50000} }

func (c *fakeConn) SetDeadline(t time.Time) error { return c.SetReadDeadline(t) }

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	c.poke()
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

type fakeNetwork struct {
	mu      sync.Mutex
	replies [][]byte
	sent    [][]byte
	sentTo  []net.Addr
	events  []string
}

func (n *fakeNetwork) record(ev string) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *fakeNetwork) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func (n *fakeNetwork) ListenPacket(context.Context) (net.PacketConn, error) {
	n.record("listen")
	return &fakeConn{net: n, wake: make(chan struct{})}, nil
}

func (n *fakeNetwork) BroadcastAddr(port int) net.Addr {
	return &net.UDPAddr{IP: net.IPv4bcast, Port: port}
}

func (n *fakeNetwork) Sends() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newNetwork(replies ...Response) *fakeNetwork {
	n := &fakeNetwork{}
	for _, r := range replies {
		n.replies = append(n.replies, EncodeResponse(r))
	}
	return n
}

// ---- codec ----

func TestParseResponseRoundTrip(t *testing.T) {
	raw := EncodeResponse(lesprit)
	require.Len(t, raw, 59)

	got, err := ParseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, lesprit.MAC, got.MAC)
	assert.True(t, lesprit.IP.Equal(got.IP))
	assert.True(t, lesprit.SubnetMask.Equal(got.SubnetMask))
	assert.True(t, lesprit.Gateway.Equal(got.Gateway))
	assert.Equal(t, "Lesprit Series", got.Name)
	assert.True(t, got.DHCP)
	assert.True(t, got.RARP)
}

func TestParseResponseRejectsMalformed(t *testing.T) {
	raw := EncodeResponse(lesprit)

	_, err := ParseResponse(raw[:58])
	assert.ErrorIs(t, err, ErrMalformedResponse)

	bad := append([]byte(nil), raw...)
	bad[0] = 'x'
	_, err = ParseResponse(bad)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	bad = append([]byte(nil), raw...)
	bad[ResponseLen-1] = 'x'
	_, err = ParseResponse(bad)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseMAC(t *testing.T) {
	for _, s := range []string{"02:00:00:00:00:01", "02-00-00-00-00-01", "02:00-00:00-00:01"} {
		m, err := ParseMAC(s)
		require.NoError(t, err, s)
		assert.Equal(t, lesprit.MAC, m)
	}

	m, err := ParseMAC("aa:BB:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", m.String())

	for _, s := range []string{"", "00:00:00:00:00:00", "02:00:00:00:00", "02:00:00:00:00:01:02", "0g:00:00:00:00:01", "020:00:00:00:00:1", "02::00:00:00:00"} {
		_, err := ParseMAC(s)
		var ae *sbpl.ArgumentError
		assert.ErrorAs(t, err, &ae, s)
	}
}

// ---- service ----

func TestCollectAllReturnsDistinctPrinters(t *testing.T) {
	n := newNetwork(printerAt(1, 1), printerAt(2, 2), printerAt(3, 3))
	svc := NewService(n)

	got, err := svc.CollectAll(context.Background(), 50*time.Millisecond, sbpl.DefaultSearchPort)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	require.Equal(t, 1, n.Sends())
	assert.Equal(t, Request, n.sent[0])
	assert.Equal(t, "255.255.255.255:19541", n.sentTo[0].String())

	ip, ok := svc.Lookup(printerAt(2, 2).MAC)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2", ip.String())
}

func TestCollectAllFirstDuplicateWins(t *testing.T) {
	n := newNetwork(printerAt(1, 1), printerAt(1, 99), printerAt(2, 2))
	n.replies = append(n.replies, []byte("noise"))
	svc := NewService(n)

	got, err := svc.CollectAll(context.Background(), 50*time.Millisecond, sbpl.DefaultSearchPort)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "10.0.0.1", got[0].IP.String())

	ip, _ := svc.Lookup(printerAt(1, 1).MAC)
	assert.Equal(t, "10.0.0.1", ip.String())
}

func TestCollectAllReplacesCache(t *testing.T) {
	svc := NewService(newNetwork(printerAt(1, 1)))
	_, err := svc.CollectAll(context.Background(), 20*time.Millisecond, sbpl.DefaultSearchPort)
	require.NoError(t, err)

	svc.network = newNetwork(printerAt(2, 2))
	_, err = svc.CollectAll(context.Background(), 20*time.Millisecond, sbpl.DefaultSearchPort)
	require.NoError(t, err)

	_, ok := svc.Lookup(printerAt(1, 1).MAC)
	assert.False(t, ok)
	_, ok = svc.Lookup(printerAt(2, 2).MAC)
	assert.True(t, ok)
}

func TestFindByMACUsesCacheWithoutSending(t *testing.T) {
	n := newNetwork(lesprit)
	svc := NewService(n)
	svc.remember(lesprit)

	ep, err := svc.FindByMAC(context.Background(), lesprit.MAC, time.Second, sbpl.DefaultSearchPort)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", ep.String())
	assert.Equal(t, 0, n.Sends())
}

func TestFindByMACStopsAtFirstMatch(t *testing.T) {
	n := newNetwork(printerAt(7, 7), lesprit)
	svc := NewService(n, WithPrintPort(9101))

	start := time.Now()
	ep, err := svc.FindByMAC(context.Background(), lesprit.MAC, 5*time.Second, sbpl.DefaultSearchPort)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9101", ep.String())
	assert.Less(t, time.Since(start), 2*time.Second)

	_, ok := svc.Lookup(printerAt(7, 7).MAC)
	assert.False(t, ok, "non-matching answers are not cached")
}

func TestFindByMACNotFound(t *testing.T) {
	svc := NewService(newNetwork(printerAt(7, 7)))
	svc.remember(printerAt(8, 8))

	_, err := svc.FindByMAC(context.Background(), lesprit.MAC, 30*time.Millisecond, sbpl.DefaultSearchPort)
	var nf *sbpl.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, err.Error(), "02:00:00:00:00:01")

	_, ok := svc.Lookup(printerAt(8, 8).MAC)
	assert.True(t, ok, "find keeps the cache")
}

func TestCollectAllHonoursCancel(t *testing.T) {
	svc := NewService(newNetwork())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := svc.CollectAll(ctx, 10*time.Second, sbpl.DefaultSearchPort)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClearCacheDuringRound(t *testing.T) {
	svc := NewService(newNetwork())

	done := make(chan struct{})
	go func() {
		_, _ = svc.CollectAll(context.Background(), 200*time.Millisecond, sbpl.DefaultSearchPort)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cleared := make(chan struct{})
	go func() {
		svc.ClearCache()
		close(cleared)
	}()

	select {
	case <-cleared:
	case <-done:
		t.Fatal("ClearCache waited for the round")
	}
	<-done
}

func TestRoundsDoNotOverlap(t *testing.T) {
	network := newNetwork(printerAt(1, 11))
	svc := NewService(network)

	collected := make(chan struct{})
	go func() {
		_, _ = svc.CollectAll(context.Background(), 200*time.Millisecond, sbpl.DefaultSearchPort)
		close(collected)
	}()

	require.Eventually(t, func() bool { return network.Sends() == 1 }, time.Second, time.Millisecond)

	found := make(chan error, 1)
	go func() {
		_, err := svc.FindByMAC(context.Background(), printerAt(7, 17).MAC, 50*time.Millisecond, sbpl.DefaultSearchPort)
		found <- err
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, network.Sends(), "second round started while the first was in flight")

	<-collected
	var nf *sbpl.NotFoundError
	require.ErrorAs(t, <-found, &nf)

	assert.Equal(t, []string{"listen", "send", "close", "listen", "send", "close"}, network.Events())
}

func TestBroadcastReportsEphemeralPort(t *testing.T) {
	network := newNetwork()
	svc := NewService(network)

	conn, err := network.ListenPacket(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	port, err := svc.broadcast(conn, 3000)
	require.NoError(t, err)
	assert.Equal(t, 50000, port)

	require.Len(t, network.sent, 1)
	assert.Equal(t, Request, network.sent[0])
	assert.Equal(t, &net.UDPAddr{IP: net.IPv4bcast, Port: 3000}, network.sentTo[0])
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
