package framing

import (
	"bytes"
	"fmt"
	"strconv"
)

const (
	fieldDelimiter   = ':'
	messageDelimiter = ';'

	// maxLengthField is the widest length field: a sign and ten digits.
	maxLengthField = 11
)

// TextParser parses <decimal length>:<payload>; frames.
// The zero value is ready to use.
type TextParser struct {
	cfg   config
	state parseState
}

// NewTextParser returns a parser configured by opts.
func NewTextParser(opts ...Option) *TextParser {
	return &TextParser{cfg: newConfig(opts), state: awaitingLength{}}
}

// Phase returns the part of the frame the parser expects next.
func (p *TextParser) Phase() Phase { return phaseOf(p.state) }

// Reset discards any partially parsed message.
func (p *TextParser) Reset() {
	p.state = awaitingLength{}
}

// TryParse implements Parser.
func (p *TextParser) TryParse(r *Reader) ([]byte, bool, error) {
	for {
		switch st := p.state.(type) {
		case nil, awaitingLength:
			length, ok, err := p.readLength(r)
			if err != nil || !ok {
				return nil, false, err
			}
			p.state = awaitingDelimiter{length: length}

		case awaitingDelimiter:
			b, ok := r.Peek(1)
			if !ok {
				return nil, false, nil
			}
			if b[0] != fieldDelimiter {
				return nil, false, formatError("length", "", "expected ':' after length")
			}
			r.Advance(1)
			p.state = &readingPayload{buf: make([]byte, st.length)}

		case *readingPayload:
			if !st.fill(r) {
				return nil, false, nil
			}
			p.state = awaitingTerminator{buf: st.buf}

		case awaitingTerminator:
			b, ok := r.Peek(1)
			if !ok {
				return nil, false, nil
			}
			if b[0] != messageDelimiter {
				return nil, false, formatError("payload", "", "expected ';' after payload")
			}
			r.Advance(1)
			p.Reset()
			return st.buf, true, nil

		default:
			panic(fmt.Sprintf("framing: text parser in %v", st.phase()))
		}
	}
}

// readLength parses the length digits and leaves r on the field delimiter.
// Until the delimiter arrives nothing is consumed and the digits are scanned
// again on the next call.
func (p *TextParser) readLength(r *Reader) (int, bool, error) {
	head := r.Bytes()
	if len(head) > maxLengthField+1 {
		head = head[:maxLengthField+1]
	}

	end := bytes.IndexByte(head, fieldDelimiter)
	if end < 0 {
		return 0, false, checkPartialLength(head)
	}

	span := head[:end]
	length, n, ok := ParseInt32(span)
	if !ok || n != len(span) || length < 0 {
		return 0, false, formatError("length", string(span), "not a non-negative decimal integer")
	}
	if err := p.cfg.checkLength(uint64(length)); err != nil {
		return 0, false, err
	}
	r.Advance(n)
	return int(length), true, nil
}

// checkPartialLength rejects an undelimited length field as soon as it can
// no longer become valid, so a peer cannot make the parser buffer garbage.
func checkPartialLength(b []byte) error {
	for i, c := range b {
		if i == 0 && (c == '+' || c == '-') {
			continue
		}
		if c < '0' || c > '9' {
			return formatError("length", string(b[:i+1]), "expected ':' after length")
		}
	}
	if len(b) > maxLengthField {
		return formatError("length", string(b), "length field too long")
	}
	return nil
}

// TextFormatter writes <decimal length>:<payload>; frames.
type TextFormatter struct{}

// Format writes one frame to s. It returns false as soon as the sink refuses
// a write; the caller decides whether to retry.
func (TextFormatter) Format(s Sink, payload []byte) bool {
	return s.AppendInt(int64(len(payload))) &&
		s.AppendByte(fieldDelimiter) &&
		s.Append(payload) &&
		s.AppendByte(messageDelimiter)
}

// Append appends one frame to dst.
func (TextFormatter) Append(dst, payload []byte) []byte {
	dst = strconv.AppendInt(dst, int64(len(payload)), 10)
	dst = append(dst, fieldDelimiter)
	dst = append(dst, payload...)
	return append(dst, messageDelimiter)
}

// AppendText appends payload to dst as a text frame.
func AppendText(dst, payload []byte) []byte {
	return TextFormatter{}.Append(dst, payload)
}
