package framing

import "fmt"

// Parser assembles payloads from bytes delivered in chunks of any size.
//
// TryParse consumes bytes from r and returns the next complete payload with
// ok == true. When r runs out before a message completes it returns
// ok == false and a nil error; the bytes already consumed are remembered and
// the caller must present the unconsumed remainder, followed by new data, on
// the next call. A non-nil error is fatal for the stream.
type Parser interface {
	TryParse(r *Reader) (payload []byte, ok bool, err error)
	// Phase reports what the parser expects next. Anything other than
	// ReadingLength means a message is partially read.
	Phase() Phase
	Reset()
}

// Phase names the part of a frame a parser expects next.
type Phase int

const (
	ReadingLength Phase = iota
	LengthComplete
	ReadingPayload
	PayloadComplete
)

func (p Phase) String() string {
	switch p {
	case ReadingLength:
		return "ReadingLength"
	case LengthComplete:
		return "LengthComplete"
	case ReadingPayload:
		return "ReadingPayload"
	case PayloadComplete:
		return "PayloadComplete"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// parseState is a single parser state. Each implementation carries only the
// data that is meaningful in that state, so a reset is the assignment of a
// fresh awaitingLength value.
type parseState interface {
	phase() Phase
}

type awaitingLength struct{}

func (awaitingLength) phase() Phase { return ReadingLength }

// awaitingDelimiter holds a decoded length whose field delimiter has not been seen.
type awaitingDelimiter struct {
	length int
}

func (awaitingDelimiter) phase() Phase { return LengthComplete }

// readingPayload accumulates a payload of a known length.
type readingPayload struct {
	buf  []byte
	read int
}

func (*readingPayload) phase() Phase { return ReadingPayload }

// fill copies as many pending payload bytes as r holds and reports whether
// the payload is complete.
func (s *readingPayload) fill(r *Reader) bool {
	n := copy(s.buf[s.read:], r.Bytes())
	r.Advance(n)
	s.read += n
	return s.read == len(s.buf)
}

// awaitingTerminator holds a complete payload whose message delimiter has
// not been seen.
type awaitingTerminator struct {
	buf []byte
}

func (awaitingTerminator) phase() Phase { return PayloadComplete }

func phaseOf(s parseState) Phase {
	if s == nil {
		return ReadingLength
	}
	return s.phase()
}

// Option configures a parser.
type Option func(*config)

type config struct {
	prefix  LengthPrefix
	maxSize int
}

func newConfig(opts []Option) config {
	var c config
	for _, o := range opts {
		o(&c)
	}
	return c
}

// WithMaxMessageSize caps the declared length a parser accepts. Longer
// messages fail with ErrMessageTooLarge before any payload is buffered.
// Zero or a negative size keeps the 2^31-1 wire limit.
func WithMaxMessageSize(size int) Option {
	return func(c *config) {
		c.maxSize = size
	}
}

// WithLengthPrefix selects the binary length prefix. Text parsers ignore it.
func WithLengthPrefix(prefix LengthPrefix) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// checkLength applies the configured size cap to a decoded length.
func (c config) checkLength(length uint64) error {
	const wireLimit = 1<<31 - 1
	if length > wireLimit {
		return tooLarge(length, wireLimit)
	}
	if c.maxSize > 0 && length > uint64(c.maxSize) {
		return tooLarge(length, c.maxSize)
	}
	return nil
}
