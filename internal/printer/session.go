// internal/printer/session.go
package printer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/karronoli/tiny-sato/internal/discovery"
	"github.com/karronoli/tiny-sato/internal/poller"
	"github.com/karronoli/tiny-sato/internal/sbpl"
	"github.com/karronoli/tiny-sato/internal/status"
	"github.com/karronoli/tiny-sato/internal/stream"
	"github.com/karronoli/tiny-sato/internal/transport"
)

// Session owns one operation stream and one printer transport.
// Methods are safe for concurrent use but serialize on the session.
type Session struct {
	mu     sync.Mutex
	opts   options
	log    zerolog.Logger
	closed bool

	st               *stream.Stream
	offsetX, offsetY int

	// exactly one of tcp / spool is set
	tcp   *transport.TCP
	poll  *poller.Poller
	spool transport.Spooler
	job   transport.Handle

	endpoint string
}

// Dial connects to a printer print port and waits until it is ready.
//
// A printer that stays busy for the connect budget yields
// *sbpl.BusyTimeoutError; an unreachable one *sbpl.NotFoundError.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	log := o.log.With().Str("endpoint", endpoint).Logger()

	tcp, err := transport.DialTCP(ctx, endpoint, transport.TCPConfig{
		DialTimeout:   o.connectBudget,
		SendTimeout:   o.sendTimeout,
		StatusTimeout: o.statusTimeout,
		Log:           &log,
	})
	if err != nil {
		return nil, err
	}

	s, err := newTCPSession(tcp, endpoint, o, log)
	if err != nil {
		_ = tcp.Close()
		return nil, err
	}

	if _, err := s.poll.UntilReady(ctx, o.connectBudget, DefaultConnectInterval); err != nil {
		_ = tcp.Close()
		return nil, err
	}
	log.Debug().Msg("session open")
	return s, nil
}

func newTCPSession(tcp *transport.TCP, endpoint string, o options, log zerolog.Logger) (*Session, error) {
	p, err := poller.New(poller.Config{
		PrinterID: endpoint,
		Interval:  o.pollInterval,
		Log:       &log,
	}, tcp, nil)
	if err != nil {
		return nil, err
	}
	return &Session{
		opts:     o,
		log:      log,
		st:       stream.New(),
		tcp:      tcp,
		poll:     p,
		endpoint: endpoint,
	}, nil
}

// Find locates mac through svc and dials its print port.
func Find(ctx context.Context, svc *discovery.Service, mac string, opts ...Option) (*Session, error) {
	m, err := discovery.ParseMAC(mac)
	if err != nil {
		return nil, err
	}
	ep, err := svc.FindByMAC(ctx, m, discovery.DefaultWait, sbpl.DefaultSearchPort)
	if err != nil {
		return nil, err
	}
	return Dial(ctx, ep.String(), opts...)
}

// Open starts a spool job named docName.
func Open(sp transport.Spooler, docName string, opts ...Option) (*Session, error) {
	if docName == "" {
		return nil, &sbpl.ArgumentError{Field: "document name", Value: docName, Msg: "must not be empty"}
	}
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	h, err := sp.OpenJob(docName)
	if err != nil {
		return nil, err
	}
	return &Session{
		opts:     o,
		log:      o.log.With().Str("job", docName).Logger(),
		st:       stream.New(),
		spool:    sp,
		job:      h,
		endpoint: docName,
	}, nil
}

func (s *Session) Endpoint() string { return s.endpoint }

// Pending reports whether operations are buffered and unsent.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Pending()
}

// Status queries the printer once. Spool sessions have no status channel.
func (s *Session) Status(ctx context.Context) (status.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return status.JobStatus{}, sbpl.ErrClosed
	}
	if s.tcp == nil {
		return status.JobStatus{}, &sbpl.IOError{Op: "status", Err: errors.New("not available on spool transport")}
	}
	res := s.poll.PollOnce(ctx)
	return res.Status, res.Err
}

// ---- FLUSH ----

// AddStream sends the current page and starts a new one in the same job.
func (s *Session) AddStream(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, sbpl.ErrClosed
	}
	return s.transmit(ctx, s.st.Page())
}

// AddStreamWithin is AddStream followed by a readiness wait of at most
// timeout. The page is on the wire even when the wait fails.
func (s *Session) AddStreamWithin(ctx context.Context, timeout time.Duration) (int, error) {
	if err := checkTimeout(timeout); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, sbpl.ErrClosed
	}

	n, err := s.transmit(ctx, s.st.Page())
	if err != nil || s.tcp == nil {
		return n, err
	}
	_, err = s.poll.UntilReady(ctx, timeout, s.opts.pollInterval)
	return n, err
}

// Send closes the job frame and sends everything buffered.
func (s *Session) Send(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, sbpl.ErrClosed
	}
	return s.transmit(ctx, s.st.Final())
}

// SendPages sets the page count and sends.
func (s *Session) SendPages(ctx context.Context, pages int) (int, error) {
	if err := s.SetPageNumber(pages); err != nil {
		return 0, err
	}
	return s.Send(ctx)
}

// SendWithin sends the current page, waits up to timeout for the
// printer to become ready, then closes the job frame. Spool sessions
// skip the wait.
//
// On a busy timeout the frame is still closed and the busy error is
// returned. Transport and device errors stop before the terminator.
func (s *Session) SendWithin(ctx context.Context, timeout time.Duration) (int, error) {
	if err := checkTimeout(timeout); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, sbpl.ErrClosed
	}

	n1, err := s.transmit(ctx, s.st.Page())
	if err != nil {
		return n1, err
	}

	var gateErr error
	if s.tcp != nil {
		_, gateErr = s.poll.UntilReady(ctx, timeout, s.opts.pollInterval)
		var busy *sbpl.BusyTimeoutError
		if gateErr != nil && !errors.As(gateErr, &busy) {
			return n1, gateErr
		}
	}

	n2, err := s.transmit(ctx, s.st.Final())
	if err != nil {
		return n1 + n2, err
	}
	return n1 + n2, gateErr
}

func (s *Session) transmit(ctx context.Context, b []byte) (int, error) {
	var (
		n   int
		err error
	)
	if s.tcp != nil {
		n, err = s.tcp.Write(ctx, b)
	} else {
		n, err = transport.WritePage(s.spool, s.job, b)
	}
	if err != nil {
		s.log.Warn().Err(err).Int("bytes", len(b)).Msg("send failed")
		return n, err
	}
	s.log.Debug().Int("bytes", n).Msg("sent")
	return n, nil
}

func checkTimeout(d time.Duration) error {
	if d <= 0 {
		return &sbpl.ArgumentError{Field: "timeout", Value: d, Msg: "must be > 0"}
	}
	return nil
}

// ---- CLOSE ----

// Close releases the transport. It is idempotent; calls after the
// first do nothing. With WithSendOnClose a pending job is sent first.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.opts.sendOnClose && s.st.Pending() {
		if _, err := s.transmit(context.Background(), s.st.Final()); err != nil {
			errs = append(errs, err)
		}
	}

	if s.tcp != nil {
		if err := s.tcp.Close(); err != nil {
			errs = append(errs, &sbpl.IOError{Op: "close", Err: err})
		}
	} else if err := s.spool.CloseJob(s.job); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
