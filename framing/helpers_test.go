package framing

// feed drives p the way a transport does: each chunk is appended to the
// bytes the parser left unconsumed, and the parser runs until it needs more.
func feed(p Parser, chunks ...[]byte) ([][]byte, error) {
	var out [][]byte
	var pending []byte
	r := NewReader(nil)
	for _, c := range chunks {
		pending = append(pending, c...)
		r.Reset(pending)
		for {
			payload, ok, err := p.TryParse(r)
			if err != nil {
				return out, err
			}
			if !ok {
				break
			}
			out = append(out, payload)
		}
		pending = append(pending[:0], r.Bytes()...)
	}
	return out, nil
}

// splitEvery cuts b into chunks of at most n bytes.
func splitEvery(b []byte, n int) [][]byte {
	var chunks [][]byte
	for len(b) > n {
		chunks = append(chunks, b[:n])
		b = b[n:]
	}
	if len(b) > 0 {
		chunks = append(chunks, b)
	}
	return chunks
}

// splitAt cuts b at the given ascending offsets.
func splitAt(b []byte, cuts []int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, c := range cuts {
		if c <= prev || c >= len(b) {
			continue
		}
		chunks = append(chunks, b[prev:c])
		prev = c
	}
	return append(chunks, b[prev:])
}
