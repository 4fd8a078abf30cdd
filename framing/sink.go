package framing

import "strconv"

// Sink receives formatted frames. Each call either accepts all of its bytes
// or reports backpressure by returning false and accepting none.
type Sink interface {
	Append(p []byte) bool
	AppendInt(v int64) bool
	AppendByte(c byte) bool
}

// Buffer is a Sink backed by a growable byte slice. A Buffer with a positive
// limit refuses appends that would grow it beyond limit bytes.
type Buffer struct {
	buf   []byte
	limit int
}

// NewBuffer returns a Buffer that never refuses a write.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewLimitedBuffer returns a Buffer holding at most limit bytes.
func NewLimitedBuffer(limit int) *Buffer {
	return &Buffer{limit: limit}
}

func (b *Buffer) fits(n int) bool {
	return b.limit <= 0 || len(b.buf)+n <= b.limit
}

// Append implements Sink.
func (b *Buffer) Append(p []byte) bool {
	if !b.fits(len(p)) {
		return false
	}
	b.buf = append(b.buf, p...)
	return true
}

// AppendInt implements Sink.
func (b *Buffer) AppendInt(v int64) bool {
	var scratch [20]byte
	return b.Append(strconv.AppendInt(scratch[:0], v, 10))
}

// AppendByte implements Sink.
func (b *Buffer) AppendByte(c byte) bool {
	if !b.fits(1) {
		return false
	}
	b.buf = append(b.buf, c)
	return true
}

// Bytes returns the accumulated bytes. The slice aliases the buffer until
// the next Reset or append.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len returns the number of accumulated bytes.
func (b *Buffer) Len() int { return len(b.buf) }

// Reset empties the buffer and keeps its capacity.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }
