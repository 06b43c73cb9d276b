// internal/discovery/service.go
package discovery

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/karronoli/tiny-sato/internal/metrics"
	"github.com/karronoli/tiny-sato/internal/sbpl"
)

// DefaultWait is how long a round listens for answers.
const DefaultWait = 3 * time.Second

// Network opens the socket one discovery round uses.
// The returned conn sends the broadcast and receives the answers.
type Network interface {
	ListenPacket(ctx context.Context) (net.PacketConn, error)
	BroadcastAddr(port int) net.Addr
}

// UDPNetwork is the IPv4 broadcast network.
type UDPNetwork struct{}

func (UDPNetwork) ListenPacket(ctx context.Context) (net.PacketConn, error) {
	var lc net.ListenConfig
	return lc.ListenPacket(ctx, "udp4", ":0")
}

func (UDPNetwork) BroadcastAddr(port int) net.Addr {
	return &net.UDPAddr{IP: net.IPv4bcast, Port: port}
}

// Endpoint is where a located printer accepts print jobs.
type Endpoint struct {
	IP   net.IP
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP.String(), strconv.Itoa(e.Port))
}

// Service runs discovery rounds and owns the MAC cache.
//
// Only one round is in flight per Service. The cache has its own lock,
// so ClearCache and Lookup never wait on a round.
type Service struct {
	network   Network
	printPort int
	log       zerolog.Logger

	round sync.Mutex

	mu    sync.Mutex
	cache map[MAC]net.IP
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l.With().Str("component", "discovery").Logger() }
}

// WithPrintPort sets the port reported in endpoints.
func WithPrintPort(port int) Option {
	return func(s *Service) { s.printPort = port }
}

func NewService(network Network, opts ...Option) *Service {
	s := &Service{
		network:   network,
		printPort: sbpl.DefaultPrintPort,
		log:       zerolog.Nop(),
		cache:     make(map[MAC]net.IP),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var (
	defaultOnce    sync.Once
	defaultService *Service
)

// Default returns the process-wide service on the UDP network.
func Default() *Service {
	defaultOnce.Do(func() {
		defaultService = NewService(UDPNetwork{})
	})
	return defaultService
}

// ---- CACHE ----

func (s *Service) ClearCache() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

// Lookup returns the cached address for mac.
func (s *Service) Lookup(mac MAC) (net.IP, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ip, ok := s.cache[mac]
	return ip, ok
}

func (s *Service) remember(r Response) {
	s.mu.Lock()
	s.cache[r.MAC] = r.IP
	s.mu.Unlock()
}

// ---- ROUNDS ----

// CollectAll broadcasts a search and gathers every answer that arrives
// within wait. Results are deduplicated by MAC, first answer wins, and
// replace the cache.
func (s *Service) CollectAll(ctx context.Context, wait time.Duration, requestPort int) ([]Response, error) {
	s.round.Lock()
	defer s.round.Unlock()

	s.ClearCache()

	var out []Response
	seen := make(map[MAC]struct{})
	err := s.receive(ctx, wait, requestPort, func(r Response) bool {
		if _, dup := seen[r.MAC]; dup {
			metrics.RecordDiscoveryResponse("duplicate")
			return false
		}
		seen[r.MAC] = struct{}{}
		metrics.RecordDiscoveryResponse("accepted")
		s.remember(r)
		out = append(out, r)
		return false
	})
	if err != nil {
		metrics.RecordDiscoveryRound("collect", "error")
		return out, err
	}

	metrics.RecordDiscoveryRound("collect", "ok")
	s.log.Debug().Int("printers", len(out)).Msg("search finished")
	return out, nil
}

// FindByMAC returns the print endpoint of mac. A cached address is
// returned without touching the network. Otherwise a round runs until
// the first matching answer or until wait elapses.
func (s *Service) FindByMAC(ctx context.Context, mac MAC, wait time.Duration, requestPort int) (Endpoint, error) {
	s.round.Lock()
	defer s.round.Unlock()

	if ip, ok := s.Lookup(mac); ok {
		metrics.RecordDiscoveryRound("find", "cached")
		return Endpoint{IP: ip, Port: s.printPort}, nil
	}

	var found net.IP
	err := s.receive(ctx, wait, requestPort, func(r Response) bool {
		if r.MAC != mac {
			metrics.RecordDiscoveryResponse("ignored")
			return false
		}
		metrics.RecordDiscoveryResponse("accepted")
		s.remember(r)
		found = r.IP
		return true
	})
	if err != nil {
		metrics.RecordDiscoveryRound("find", "error")
		return Endpoint{}, err
	}
	if found == nil {
		metrics.RecordDiscoveryRound("find", "not_found")
		return Endpoint{}, &sbpl.NotFoundError{What: "mac " + mac.String()}
	}

	metrics.RecordDiscoveryRound("find", "ok")
	return Endpoint{IP: found, Port: s.printPort}, nil
}

// broadcast sends one search request to requestPort and returns the
// local port the answers will arrive on.
func (s *Service) broadcast(conn net.PacketConn, requestPort int) (int, error) {
	if _, err := conn.WriteTo(Request, s.network.BroadcastAddr(requestPort)); err != nil {
		return 0, &sbpl.IOError{Op: "discovery broadcast", Err: err}
	}
	port := 0
	if ua, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		port = ua.Port
	}
	s.log.Debug().Int("port", requestPort).Int("local_port", port).Msg("search request sent")
	return port, nil
}

// receive broadcasts one request and feeds every well-formed answer to
// accept until accept returns true or wait elapses.
// Caller holds s.round.
func (s *Service) receive(ctx context.Context, wait time.Duration, requestPort int, accept func(Response) bool) error {
	if wait <= 0 {
		wait = DefaultWait
	}

	conn, err := s.network.ListenPacket(ctx)
	if err != nil {
		return &sbpl.IOError{Op: "discovery listen", Err: err}
	}
	defer conn.Close()

	if _, err := s.broadcast(conn, requestPort); err != nil {
		return err
	}

	deadline := time.Now().Add(wait)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return &sbpl.IOError{Op: "discovery deadline", Err: err}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	buf := make([]byte, 1500)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return &sbpl.IOError{Op: "discovery receive", Err: cerr}
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return &sbpl.IOError{Op: "discovery receive", Err: err}
		}

		r, perr := ParseResponse(buf[:n])
		if perr != nil {
			metrics.RecordDiscoveryResponse("malformed")
			s.log.Warn().Err(perr).Stringer("from", from).Msg("skipping datagram")
			continue
		}
		if accept(r) {
			return nil
		}
	}
}
