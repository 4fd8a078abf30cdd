package framing

import (
	"github.com/multiformats/go-varint"
	"github.com/pkg/errors"
)

// maxVarintLen32 is the number of varint bytes needed for 2^31-1.
// An unterminated varint this long can only describe an oversized message.
const maxVarintLen32 = 5

// AppendVarint appends n as a varint: seven data bits per byte, least
// significant group first, with the high bit set on every byte but the last.
// Zero encodes as a single 0x00 byte. n must not be negative.
func AppendVarint(dst []byte, n int64) []byte {
	if n < 0 {
		panic("framing: negative varint length")
	}
	var scratch [varint.MaxLenUvarint63]byte
	size := varint.PutUvarint(scratch[:], uint64(n))
	return append(dst, scratch[:size]...)
}

// VarintLen returns the number of bytes AppendVarint emits for n.
func VarintLen(n int64) int {
	if n < 0 {
		panic("framing: negative varint length")
	}
	return varint.UvarintSize(uint64(n))
}

// decodeVarintLength decodes a length prefix from the front of b. complete
// is false when b holds only part of the prefix; nothing should be consumed
// in that case.
func decodeVarintLength(b []byte) (length uint64, size int, complete bool, err error) {
	length, size, err = varint.FromUvarint(b)
	switch {
	case err == varint.ErrUnderflow:
		if len(b) >= maxVarintLen32 {
			return 0, 0, false, errors.Wrap(ErrMessageTooLarge, "length prefix wider than 32 bits")
		}
		return 0, 0, false, nil
	case err == varint.ErrOverflow:
		return 0, 0, false, errors.Wrap(ErrMessageTooLarge, "length prefix wider than 64 bits")
	case err == varint.ErrNotMinimal:
		return 0, 0, false, formatError("length", "", "varint is not minimally encoded")
	case err != nil:
		return 0, 0, false, err
	}
	return length, size, true, nil
}
