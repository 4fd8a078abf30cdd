package msgsock

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("server closed")

// Handler receives the messages of every connection accepted by a Server.
type Handler interface {
	// ServeMessage is called from the connection's read loop, one message at
	// a time per connection. A non-nil error closes that connection.
	ServeMessage(conn *Conn, message Message) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(conn *Conn, message Message) error

// ServeMessage calls f(conn, message).
func (f HandlerFunc) ServeMessage(conn *Conn, message Message) error { return f(conn, message) }

// Server accepts TCP connections, frames each with the configured protocol
// and runs it until the peer leaves or the server shuts down.
type Server struct {
	listener  *net.TCPListener
	logger    Logger
	connOpts  []Option
	drainTime time.Duration

	active    sync.WaitGroup
	numActive atomic.Int64

	mu        sync.Mutex
	shutdown  bool
	closed    chan struct{} // closed by Close
	closeOnce sync.Once
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server. Connections log through
// it as well unless ServerConnOption supplies a LoggerOption.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerConnOption sets the options every accepted connection is built with.
// ProtocolOption is required; OnMessageOption is ignored because messages go
// to the Handler given to Serve.
func ServerConnOption(opts ...Option) ServerOption {
	return func(s *Server) {
		s.connOpts = append(s.connOpts, opts...)
	}
}

// ServerShutdownTimeoutOption sets how long Serve waits, once its context is
// canceled, for open connections to finish on their own before canceling
// them. Default is 0: connections are canceled as soon as accepting stops.
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.drainTime = timeout
	}
}

// New creates a server bound to addr.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	s := &Server{
		logger: slog.Default(),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	var conn options
	for _, o := range s.connOpts {
		o(&conn)
	}
	if conn.protocol == nil {
		return nil, ErrInvalidProtocol
	}

	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	s.listener = listener
	return s, nil
}

// Serve accepts connections and runs each one, delivering its messages to
// handler. It blocks until ctx is canceled (returning ctx.Err()), Close is
// called (returning ErrServerClosed) or accepting fails. Before returning it
// waits for every connection it started to stop.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()

	stop := context.AfterFunc(ctx, func() {
		s.setShutdown()
		_ = s.listener.Close()
	})
	defer stop()

	for {
		raw, err := s.listener.AcceptTCP()
		if err != nil {
			if !s.isShutdown() {
				s.logger.Error("accept error", "error", err)
				cancelConns()
				s.active.Wait()
				return errors.Wrap(err, "accept")
			}

			s.drain(cancelConns)
			s.logger.Info("server stopped", "addr", s.listener.Addr())
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrServerClosed
		}

		s.serveConn(connCtx, raw, handler)
	}
}

// serveConn frames raw and runs it in its own goroutine.
func (s *Server) serveConn(ctx context.Context, raw *net.TCPConn, handler Handler) {
	_ = raw.SetNoDelay(true)

	var conn *Conn
	opts := make([]Option, 0, len(s.connOpts)+2)
	opts = append(opts, LoggerOption(s.logger))
	opts = append(opts, s.connOpts...)
	opts = append(opts, OnMessageOption(func(m Message) error {
		return handler.ServeMessage(conn, m)
	}))

	conn, err := NewConn(raw, opts...)
	if err != nil {
		s.logger.Error("failed to create connection", "remote_addr", raw.RemoteAddr(), "error", err)
		_ = raw.Close()
		return
	}

	s.active.Add(1)
	n := s.numActive.Add(1)
	s.logger.Debug("accepted connection", "remote_addr", raw.RemoteAddr(), "active", n)

	go func() {
		defer s.active.Done()
		defer s.numActive.Add(-1)

		if err := conn.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			s.logger.Debug("connection ended", "remote_addr", raw.RemoteAddr(), "error", err)
		}
	}()
}

// drain waits for running connections, up to the shutdown timeout, and then
// cancels whatever is left. Close cuts the wait short.
func (s *Server) drain(cancelConns context.CancelFunc) {
	finished := make(chan struct{})
	go func() {
		s.active.Wait()
		close(finished)
	}()

	if s.drainTime > 0 {
		s.logger.Info("graceful shutdown initiated", "timeout", s.drainTime, "active", s.numActive.Load())
		timer := time.NewTimer(s.drainTime)
		defer timer.Stop()

		select {
		case <-finished:
			return
		case <-timer.C:
		case <-s.closed:
		}
	}

	cancelConns()
	<-finished
}

// ActiveConns reports how many connections are running.
func (s *Server) ActiveConns() int {
	return int(s.numActive.Load())
}

func (s *Server) setShutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// Close stops accepting and cancels every running connection without
// waiting for the shutdown timeout.
func (s *Server) Close() error {
	s.setShutdown()
	s.closeOnce.Do(func() { close(s.closed) })

	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
