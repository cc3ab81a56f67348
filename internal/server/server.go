// Package server receives data sent by gn write (or anything else) over TCP
// or UDP and prints, echoes or discards it.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/gn/internal/logger"
	"github.com/torosent/gn/internal/transport"
)

type Mode string

const (
	// ModePrint writes each TCP connection payload or UDP datagram to Out,
	// followed by a newline.
	ModePrint Mode = "print"
	// ModeEcho sends received bytes back to the peer.
	ModeEcho Mode = "echo"
	// ModeDiscard only counts what arrives.
	ModeDiscard Mode = "discard"
)

const DefaultBufferSize = 1024

var (
	ErrAlreadyListening = errors.New("server is already listening")
	ErrUnknownMode      = errors.New("unknown server mode")
)

type Options struct {
	Address  string
	Protocol transport.Protocol
	Mode     Mode
	// BufferSize is the UDP receive buffer. Longer datagrams are truncated.
	BufferSize int
	// Out receives printed data. It is kept apart from log output.
	Out    io.Writer
	Logger logrus.FieldLogger
}

type Stats struct {
	Connections int64
	Datagrams   int64
	Bytes       int64
	ReadErrors  int64
}

type Server struct {
	opts Options
	log  logrus.FieldLogger

	outMu sync.Mutex

	listener net.Listener
	packet   net.PacketConn

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
	connWG sync.WaitGroup

	connections atomic.Int64
	datagrams   atomic.Int64
	bytes       atomic.Int64
	readErrors  atomic.Int64
}

// New validates opts and returns an unstarted server.
func New(opts Options) (*Server, error) {
	if opts.Protocol == "" {
		opts.Protocol = transport.ProtocolTCP
	}
	if opts.Protocol != transport.ProtocolTCP && opts.Protocol != transport.ProtocolUDP {
		return nil, fmt.Errorf("unsupported protocol %q", opts.Protocol)
	}
	if opts.Mode == "" {
		opts.Mode = ModePrint
	}
	switch opts.Mode {
	case ModePrint, ModeEcho, ModeDiscard:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Server{
		opts:  opts,
		log:   opts.Logger.WithField("protocol", string(opts.Protocol)),
		conns: make(map[net.Conn]struct{}),
	}, nil
}

// Listen binds the socket without serving it, so callers can learn the
// bound address before data arrives.
func (s *Server) Listen(ctx context.Context) error {
	if s.listener != nil || s.packet != nil {
		return ErrAlreadyListening
	}
	var lc net.ListenConfig
	switch s.opts.Protocol {
	case transport.ProtocolUDP:
		pc, err := lc.ListenPacket(ctx, "udp", s.opts.Address)
		if err != nil {
			return fmt.Errorf("listen udp %s: %w", s.opts.Address, err)
		}
		s.packet = pc
	default:
		l, err := lc.Listen(ctx, "tcp", s.opts.Address)
		if err != nil {
			return fmt.Errorf("listen tcp %s: %w", s.opts.Address, err)
		}
		s.listener = l
	}
	s.log.WithField("address", s.Addr().String()).Infof("Listening on %s://%s", s.opts.Protocol, s.Addr())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	switch {
	case s.listener != nil:
		return s.listener.Addr()
	case s.packet != nil:
		return s.packet.LocalAddr()
	default:
		return nil
	}
}

// Serve runs until ctx is cancelled or the socket fails. A cancelled
// context is a clean shutdown and returns nil.
func (s *Server) Serve(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.packet != nil {
			return s.receiveLoop(gctx)
		}
		return s.acceptLoop(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.close()
	})

	err := g.Wait()
	s.connWG.Wait()
	s.log.WithFields(logrus.Fields{
		"connections": s.connections.Load(),
		"datagrams":   s.datagrams.Load(),
		"bytes":       s.bytes.Load(),
	}).Info("Server stopped")
	return err
}

func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.connections.Load(),
		Datagrams:   s.datagrams.Load(),
		Bytes:       s.bytes.Load(),
		ReadErrors:  s.readErrors.Load(),
	}
}

// close shuts the listening socket and any open connections.
func (s *Server) close() error {
	var err error
	if s.listener != nil {
		if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("close listener: %w", cerr))
		}
	}
	if s.packet != nil {
		if cerr := s.packet.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("close packet conn: %w", cerr))
		}
	}
	s.connMu.Lock()
	for conn := range s.conns {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", conn.RemoteAddr(), cerr))
		}
	}
	s.connMu.Unlock()
	return err
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.WithError(err).Warn("Accept timed out")
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.connections.Inc()
		s.track(conn)
		if ctx.Err() != nil {
			s.untrack(conn)
			return nil
		}
		s.connWG.Add(1)
		go func() {
			defer s.connWG.Done()
			defer s.untrack(conn)
			s.handleConn(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) {
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
	conn.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	log := s.log.WithField("remote", conn.RemoteAddr().String())

	switch s.opts.Mode {
	case ModeEcho:
		n, err := io.Copy(conn, conn)
		s.bytes.Add(n)
		if err != nil {
			s.readErrors.Inc()
			log.WithError(err).Warn("Unable to echo stream")
		}
	case ModeDiscard:
		n, err := io.Copy(io.Discard, conn)
		s.bytes.Add(n)
		if err != nil {
			s.readErrors.Inc()
			log.WithError(err).Warn("Unable to read stream")
		}
	default:
		// Read to EOF so one connection prints as one payload.
		data, err := io.ReadAll(conn)
		s.bytes.Add(int64(len(data)))
		if err != nil {
			s.readErrors.Inc()
			log.WithError(err).Warn("Unable to read stream")
			return
		}
		s.print(data)
	}
}

func (s *Server) receiveLoop(ctx context.Context) error {
	buf := make([]byte, s.opts.BufferSize)
	for {
		n, addr, err := s.packet.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("receive: %w", err)
			}
			s.readErrors.Inc()
			s.log.WithError(err).Warn("Unable to read datagram")
			continue
		}
		s.datagrams.Inc()
		s.bytes.Add(int64(n))

		switch s.opts.Mode {
		case ModeEcho:
			if _, err := s.packet.WriteTo(buf[:n], addr); err != nil {
				s.log.WithError(err).WithField("remote", addr.String()).Warn("Unable to echo datagram")
			}
		case ModeDiscard:
		default:
			s.print([]byte(strings.ToValidUTF8(string(buf[:n]), "\uFFFD")))
		}
	}
}

func (s *Server) print(data []byte) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if _, err := fmt.Fprintf(s.opts.Out, "%s\n", data); err != nil {
		s.log.WithError(err).Warn("Unable to write received data")
	}
}
