package framing

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// LengthPrefix selects the encoding of a binary frame's length.
type LengthPrefix int

const (
	// LengthVarint writes the length as a varint (see AppendVarint).
	LengthVarint LengthPrefix = iota
	// LengthFixed64 writes the length as 8 big-endian bytes. Some older
	// peers decode this fixed width even though they encode varints, so
	// both ends of a connection must agree on the prefix explicitly.
	LengthFixed64
)

const fixed64Len = 8

func (p LengthPrefix) String() string {
	switch p {
	case LengthVarint:
		return "varint"
	case LengthFixed64:
		return "fixed64"
	}
	return fmt.Sprintf("LengthPrefix(%d)", int(p))
}

// ParseLengthPrefix maps "varint" or "fixed64" to a LengthPrefix.
func ParseLengthPrefix(s string) (LengthPrefix, error) {
	switch s {
	case "varint":
		return LengthVarint, nil
	case "fixed64":
		return LengthFixed64, nil
	}
	return 0, errors.Errorf("unknown length prefix %q", s)
}

// BinaryParser parses <length><payload> frames.
// The zero value parses varint-prefixed frames with no size cap beyond
// the 2^31-1 wire limit.
type BinaryParser struct {
	cfg   config
	state parseState
}

// NewBinaryParser returns a parser configured by opts.
func NewBinaryParser(opts ...Option) *BinaryParser {
	return &BinaryParser{cfg: newConfig(opts), state: awaitingLength{}}
}

// Phase returns the part of the frame the parser expects next.
func (p *BinaryParser) Phase() Phase { return phaseOf(p.state) }

// Reset discards any partially parsed message.
func (p *BinaryParser) Reset() {
	p.state = awaitingLength{}
}

// TryParse implements Parser.
func (p *BinaryParser) TryParse(r *Reader) ([]byte, bool, error) {
	for {
		switch st := p.state.(type) {
		case nil, awaitingLength:
			length, size, complete, err := p.readLength(r.Bytes())
			if err != nil || !complete {
				return nil, false, err
			}
			if err := p.cfg.checkLength(length); err != nil {
				return nil, false, err
			}
			r.Advance(size)
			p.state = &readingPayload{buf: make([]byte, length)}

		case *readingPayload:
			if !st.fill(r) {
				return nil, false, nil
			}
			payload := st.buf
			p.Reset()
			return payload, true, nil

		default:
			panic(fmt.Sprintf("framing: binary parser in %v", st.phase()))
		}
	}
}

func (p *BinaryParser) readLength(b []byte) (length uint64, size int, complete bool, err error) {
	if p.cfg.prefix == LengthFixed64 {
		if len(b) < fixed64Len {
			return 0, 0, false, nil
		}
		return binary.BigEndian.Uint64(b), fixed64Len, true, nil
	}
	return decodeVarintLength(b)
}

// BinaryFormatter writes <length><payload> frames.
type BinaryFormatter struct {
	Prefix LengthPrefix
}

// Format writes one frame to s. The sink is expected to take the whole
// frame; the result only reports whether it did.
func (f BinaryFormatter) Format(s Sink, payload []byte) bool {
	var scratch [10]byte
	return s.Append(f.appendPrefix(scratch[:0], len(payload))) && s.Append(payload)
}

// Append appends one frame to dst.
func (f BinaryFormatter) Append(dst, payload []byte) []byte {
	dst = f.appendPrefix(dst, len(payload))
	return append(dst, payload...)
}

// FrameLen returns the size of the frame for an n-byte payload.
func (f BinaryFormatter) FrameLen(n int) int {
	if f.Prefix == LengthFixed64 {
		return fixed64Len + n
	}
	return VarintLen(int64(n)) + n
}

func (f BinaryFormatter) appendPrefix(dst []byte, n int) []byte {
	if f.Prefix == LengthFixed64 {
		return binary.BigEndian.AppendUint64(dst, uint64(n))
	}
	return AppendVarint(dst, int64(n))
}

// AppendBinary appends payload to dst as a varint-prefixed frame.
func AppendBinary(dst, payload []byte) []byte {
	return BinaryFormatter{}.Append(dst, payload)
}

// AppendBinaryFixed64 appends payload to dst with an 8-byte big-endian length.
func AppendBinaryFixed64(dst, payload []byte) []byte {
	return BinaryFormatter{Prefix: LengthFixed64}.Append(dst, payload)
}
