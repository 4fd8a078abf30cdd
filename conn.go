// Package msgsock is a TCP connection library that delimits messages with a
// length-prefixed framing protocol. Each connection owns one resumable
// parser that assembles messages from socket reads of any size, and runs
// asynchronous read and write loops until it fails or is canceled.
package msgsock

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/msgsock/framing"
)

// Errors returned by connection operations.
var (
	// ErrInvalidProtocol is returned when no protocol is provided.
	ErrInvalidProtocol = errors.New("invalid protocol")
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrBufferFull is returned when the send buffer cannot accept more messages.
	// It signals backpressure: the peer is not consuming messages fast enough.
	// Drop the message, retry with WriteBlocking or WriteTimeout, or apply
	// application-level flow control.
	ErrBufferFull = errors.New("send buffer full")
)

// Default configuration values.
const (
	defaultBufferSize     = 1
	defaultReadBufferSize = 4 * 1024
	// defaultMaxMessageSize is the default maximum size of a single message (1MB).
	defaultMaxMessageSize = 1024 * 1024
	defaultHeartbeat      = 30 * time.Second
)

// Conn is a framed TCP connection.
type Conn struct {
	rawConn *net.TCPConn
	logger  Logger
	opts    options

	// Read side, owned by readLoop.
	parser  framing.Parser
	cursor  *framing.Reader
	readBuf []byte
	pending []byte // bytes the parser has not consumed yet

	sendMsg chan []byte
	closed  atomic.Bool

	mu       sync.Mutex
	cancel   context.CancelFunc // set by Run
	done     chan struct{}      // closed once the loops are stopping
	doneOnce sync.Once
}

// NewConn wraps the given TCP connection.
// Returns an error if required options (protocol, onMessage) are missing.
func NewConn(conn *net.TCPConn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, opts), nil
}

// Dial connects to addr and wraps the connection.
func Dial(ctx context.Context, addr string, opt ...Option) (*Conn, error) {
	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}

	conn, err := NewConn(raw.(*net.TCPConn), opt...)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.protocol == nil {
		return ErrInvalidProtocol
	}

	if opts.onMessage == nil {
		return ErrInvalidOnMessage
	}

	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.readBufferSize <= 0 {
		opts.readBufferSize = defaultReadBufferSize
	}

	if opts.maxReadLength <= 0 {
		opts.maxReadLength = defaultMaxMessageSize
	}

	if opts.heartbeat <= 0 {
		opts.heartbeat = defaultHeartbeat
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

func newConnWithOptions(c *net.TCPConn, opts options) *Conn {
	return &Conn{
		rawConn: c,
		logger:  opts.logger,
		opts:    opts,
		parser:  opts.protocol.NewParser(opts.maxReadLength),
		cursor:  framing.NewReader(nil),
		readBuf: make([]byte, opts.readBufferSize),
		sendMsg: make(chan []byte, opts.bufferSize),
		done:    make(chan struct{}),
	}
}

// Run starts the connection's read and write loops and blocks until one of
// them fails or ctx is canceled. The connection is closed when Run returns.
func (c *Conn) Run(ctx context.Context) error {
	c.logger.Info("connection established", "addr", c.Addr(), "protocol", c.opts.protocol.Name())
	c.logger.Debug("connection options", "addr", c.Addr(),
		"buffer_size", c.opts.bufferSize,
		"read_buffer_size", c.opts.readBufferSize,
		"max_read_length", c.opts.maxReadLength,
		"heartbeat", c.opts.heartbeat)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	// Close may have run before cancel was published.
	if c.closed.Load() {
		cancel()
	}

	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return c.readLoop(child)
	})

	group.Go(func() error {
		return c.writeLoop(child)
	})

	// Unblock a pending socket read once either loop stops.
	go func() {
		<-child.Done()
		c.stopWriters()
		_ = c.rawConn.CloseRead()
	}()

	err := group.Wait()
	c.closeConn()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "addr", c.Addr(), "error", err)
	} else {
		c.logger.Info("connection closed", "addr", c.Addr())
	}

	return err
}

// Close cancels Run and closes the underlying TCP connection.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.stopWriters()

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return c.rawConn.Close()
}

// stopWriters releases callers blocked in WriteBlocking or WriteTimeout.
func (c *Conn) stopWriters() {
	c.doneOnce.Do(func() { close(c.done) })
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Write frames a message and queues it without blocking.
//
// Returns:
//   - nil: message was queued (not yet sent)
//   - ErrBufferFull: send buffer is full, message was NOT queued
//   - ErrConnectionClosed: connection is closed
//   - encoding error: if the protocol cannot frame the message
func (c *Conn) Write(message Message) error {
	frame, err := c.encode(message)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- frame:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking frames a message and blocks until it is queued, ctx is done,
// or the connection stops (ErrConnectionClosed).
func (c *Conn) WriteBlocking(ctx context.Context, message Message) error {
	frame, err := c.encode(message)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrConnectionClosed
	}
}

// WriteTimeout frames a message and waits up to timeout for it to be queued.
// ErrBufferFull is returned when the timeout expires.
func (c *Conn) WriteTimeout(message Message, timeout time.Duration) error {
	frame, err := c.encode(message)
	if err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.sendMsg <- frame:
		return nil
	case <-timer.C:
		return ErrBufferFull
	case <-c.done:
		return ErrConnectionClosed
	}
}

func (c *Conn) encode(message Message) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.opts.protocol.Encode(message)
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// readLoop reads whatever the socket has, hands it to the parser and
// dispatches every completed message. Returns when the context is canceled,
// the peer closes the stream, or an unrecoverable error occurs.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = c.rawConn.SetReadDeadline(time.Now().Add(c.opts.heartbeat * 2))

		n, err := c.rawConn.Read(c.readBuf)
		if n > 0 {
			if derr := c.dispatch(c.readBuf[:n]); derr != nil {
				return derr
			}
		}
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			if c.parser.Phase() != framing.ReadingLength || len(c.pending) > 0 {
				return errors.Wrapf(io.ErrUnexpectedEOF, "%s closed mid-message", c.Addr())
			}
			return err
		}

		c.logger.Debug("read error", "addr", c.Addr(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
	}
}

// dispatch feeds one chunk to the parser and delivers the messages it
// completes. Unconsumed bytes are kept for the next chunk.
func (c *Conn) dispatch(chunk []byte) error {
	data := chunk
	if len(c.pending) > 0 {
		c.pending = append(c.pending, chunk...)
		data = c.pending
	}
	c.cursor.Reset(data)

	for {
		payload, ok, err := c.parser.TryParse(c.cursor)
		if err != nil {
			c.logger.Warn("framing error", "addr", c.Addr(),
				"protocol", c.opts.protocol.Name(), "error", err)
			c.opts.onError(err)
			return errors.WithMessagef(err, "read from %s", c.Addr())
		}
		if !ok {
			break
		}
		if err := c.opts.onMessage(NewMessage(payload)); err != nil {
			return err
		}
	}

	c.pending = append(c.pending[:0], c.cursor.Bytes()...)
	return nil
}

// writeLoop continuously sends frames from the send channel to the connection.
// Returns when the context is canceled or an unrecoverable error occurs.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-c.sendMsg:
			if err := c.write(data); err != nil {
				return err
			}
		}
	}
}

// write sends a frame with a deadline. The error is returned only when
// onError asks to disconnect.
func (c *Conn) write(data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.heartbeat * 2))

	_, err := c.rawConn.Write(data)

	if err != nil {
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
	}

	return nil
}

// closeConn marks the connection as closed and closes the underlying TCP connection.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	c.stopWriters()
	_ = c.rawConn.Close()
}
