// cmd/labelctl/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/karronoli/tiny-sato/internal/command"
	"github.com/karronoli/tiny-sato/internal/discovery"
	"github.com/karronoli/tiny-sato/internal/logging"
	"github.com/karronoli/tiny-sato/internal/printer"
	"github.com/karronoli/tiny-sato/internal/sbpl"
	"github.com/karronoli/tiny-sato/internal/transport"
)

const usage = `usage: labelctl <command> [flags]

commands:
  search   broadcast a discovery request and list responders
  find     resolve a MAC address to its print endpoint
  status   query a printer's job status once
  print    print a CODE128 test label
  monitor  poll printers from a config file and mirror their status`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "search":
		err = runSearch(ctx, os.Args[2:])
	case "find":
		err = runFind(ctx, os.Args[2:])
	case "status":
		err = runStatus(ctx, os.Args[2:])
	case "print":
		err = runPrint(ctx, os.Args[2:])
	case "monitor":
		err = runMonitor(ctx, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "labelctl: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode keeps the process status inside the 1-255 range while still
// telling the error classes apart.
func exitCode(err error) int {
	code := int(sbpl.ErrorCode(err))
	if code <= 0 || code > 255 {
		return 1
	}
	return code
}

// ---- shared flags ----

type common struct {
	level string
	wait  time.Duration
	port  int
}

func (c *common) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.level, "log-level", "info", "log level")
	fs.DurationVar(&c.wait, "wait", discovery.DefaultWait, "discovery listen window")
	fs.IntVar(&c.port, "request-port", sbpl.DefaultSearchPort, "discovery request port")
}

func (c *common) logger() zerolog.Logger {
	return logging.New("labelctl", c.level)
}

// target selects exactly one way to reach a printer.
type target struct {
	endpoint string
	mac      string
	serial   string
	baud     int
	file     string
	doc      string
}

func (t *target) bind(fs *flag.FlagSet) {
	fs.StringVar(&t.endpoint, "endpoint", "", "printer host:port")
	fs.StringVar(&t.mac, "mac", "", "printer MAC address, resolved by discovery")
	fs.StringVar(&t.serial, "serial", "", "serial device to spool to")
	fs.IntVar(&t.baud, "baud", 9600, "serial baud rate")
	fs.StringVar(&t.file, "file", "", "file to spool to")
	fs.StringVar(&t.doc, "doc", "labelctl", "spool document name")
}

func (t *target) open(ctx context.Context, svc *discovery.Service, opts ...printer.Option) (*printer.Session, error) {
	n := 0
	for _, s := range []string{t.endpoint, t.mac, t.serial, t.file} {
		if s != "" {
			n++
		}
	}
	if n != 1 {
		return nil, &sbpl.ArgumentError{Field: "target", Value: fmt.Sprint(n), Msg: "exactly one of -endpoint, -mac, -serial, -file"}
	}

	switch {
	case t.endpoint != "":
		return printer.Dial(ctx, t.endpoint, opts...)
	case t.mac != "":
		return printer.Find(ctx, svc, t.mac, opts...)
	case t.serial != "":
		return printer.Open(transport.NewSerialSpooler(t.serial, t.baud), t.doc, opts...)
	default:
		return printer.Open(transport.NewFileSpooler(t.file), t.doc, opts...)
	}
}

// --------------------
// search / find
// --------------------

func runSearch(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	c.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := c.logger()

	svc := discovery.NewService(discovery.UDPNetwork{}, discovery.WithLogger(log))
	found, err := svc.CollectAll(ctx, c.wait, c.port)
	if err != nil {
		return err
	}
	for _, r := range found {
		fmt.Printf("%s\t%s\t%s\tdhcp=%t\n", r.MAC, r.IP, r.Name, r.DHCP)
	}
	log.Info().Int("count", len(found)).Msg("search done")
	return nil
}

func runFind(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	c.bind(fs)
	mac := fs.String("mac", "", "printer MAC address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := c.logger()

	m, err := discovery.ParseMAC(*mac)
	if err != nil {
		return err
	}
	svc := discovery.NewService(discovery.UDPNetwork{}, discovery.WithLogger(log))
	ep, err := svc.FindByMAC(ctx, m, c.wait, c.port)
	if err != nil {
		return err
	}
	fmt.Println(ep)
	return nil
}

// --------------------
// status / print
// --------------------

func runStatus(ctx context.Context, args []string) error {
	var c common
	var t target
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	c.bind(fs)
	t.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := c.logger()

	svc := discovery.NewService(discovery.UDPNetwork{}, discovery.WithLogger(log))
	s, err := t.open(ctx, svc, printer.WithLogger(log))
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.Status(ctx)
	if st.Health.Raw != 0 {
		fmt.Println(st)
	}
	return err
}

func runPrint(ctx context.Context, args []string) error {
	var c common
	var t target
	fs := flag.NewFlagSet("print", flag.ContinueOnError)
	c.bind(fs)
	t.bind(fs)
	data := fs.String("data", "TINYSATO", "CODE128 payload")
	copies := fs.Int("copies", 1, "number of copies")
	labelWidth := fs.Int("label-width", 640, "label width in dots")
	height := fs.Int("height", 80, "bar height in dots")
	narrow := fs.Int("narrow", 3, "narrow bar width in dots")
	density := fs.Int("density", 3, "print density 1-5")
	within := fs.Duration("within", 0, "wait for the printer to finish, 0 to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := c.logger()

	svc := discovery.NewService(discovery.UDPNetwork{}, discovery.WithLogger(log))
	s, err := t.open(ctx, svc, printer.WithLogger(log))
	if err != nil {
		return err
	}
	defer s.Close()

	steps := []func() error{
		func() error { return s.SetDensity(*density, command.DensityA) },
		func() error { return s.MoveToY(*height / 2) },
		func() error { return s.CenterCODE128(*labelWidth, *narrow, *height, *data) },
		func() error { return s.SetPageNumber(*copies) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	var n int
	if *within > 0 {
		n, err = s.SendWithin(ctx, *within)
	} else {
		n, err = s.Send(ctx)
	}
	if err != nil {
		return err
	}
	log.Info().Str("printer", s.Endpoint()).Int("bytes", n).Msg("label sent")
	return s.Close()
}
