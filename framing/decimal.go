package framing

import "math"

// maxInt32Digits is the decimal width of math.MaxInt32.
const maxInt32Digits = 10

// ParseInt32 parses an optionally signed ASCII decimal integer from the start
// of b. It stops at the first byte that is not a digit and returns the number
// of bytes consumed, so callers can reject trailing garbage. Overflow is
// checked before each digit that could cause it is applied; an overflowing or
// digitless input reports ok == false.
func ParseInt32(b []byte) (value int32, consumed int, ok bool) {
	i := 0
	neg := false
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		neg = b[i] == '-'
		i++
	}

	limit := uint32(math.MaxInt32)
	if neg {
		limit++
	}

	start := i
	for i < len(b) && b[i] == '0' {
		i++
	}
	sawDigit := i > start

	var n uint32
	digits := 0
	for ; i < len(b); i++ {
		d := b[i] - '0'
		if d > 9 {
			break
		}
		sawDigit = true
		digits++
		if digits >= maxInt32Digits {
			if digits > maxInt32Digits || n > (limit-uint32(d))/10 {
				return 0, 0, false
			}
		}
		n = n*10 + uint32(d)
	}

	if !sawDigit {
		return 0, 0, false
	}
	if neg {
		return int32(-int64(n)), i, true
	}
	return int32(n), i, true
}
