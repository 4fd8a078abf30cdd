package framing

// Reader is a read cursor over a borrowed byte slice. Parsers peek at and
// advance it; the bytes it has not consumed stay with the caller.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a cursor positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Reset points the cursor at the start of b.
func (r *Reader) Reset(b []byte) {
	r.buf = b
	r.pos = 0
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

// Bytes returns the unread bytes without consuming them.
func (r *Reader) Bytes() []byte {
	return r.buf[r.pos:]
}

// Peek returns the next n bytes without consuming them. ok is false when
// fewer than n bytes are available.
func (r *Reader) Peek(n int) (b []byte, ok bool) {
	if n > r.Len() {
		return nil, false
	}
	return r.buf[r.pos : r.pos+n], true
}

// Advance consumes n bytes. Advancing past the end is a programming error.
func (r *Reader) Advance(n int) {
	if n < 0 || n > r.Len() {
		panic("framing: advance out of range")
	}
	r.pos += n
}

// Consumed returns how many bytes have been consumed since the last Reset.
func (r *Reader) Consumed() int {
	return r.pos
}
