package framing

import "testing"

func TestReader(t *testing.T) {
	r := NewReader([]byte("abcdef"))

	if r.Len() != 6 {
		t.Fatalf("Len = %d, want 6", r.Len())
	}
	if b, ok := r.Peek(2); !ok || string(b) != "ab" {
		t.Errorf("Peek(2) = (%q, %v), want ab", b, ok)
	}
	if _, ok := r.Peek(7); ok {
		t.Error("Peek(7) succeeded on 6 bytes")
	}

	r.Advance(4)
	if r.Consumed() != 4 || r.Len() != 2 || string(r.Bytes()) != "ef" {
		t.Errorf("after Advance(4): consumed=%d len=%d bytes=%q", r.Consumed(), r.Len(), r.Bytes())
	}

	r.Reset([]byte("xy"))
	if r.Consumed() != 0 || string(r.Bytes()) != "xy" {
		t.Errorf("after Reset: consumed=%d bytes=%q", r.Consumed(), r.Bytes())
	}
}

func TestReader_AdvancePastEnd(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when advancing past the end")
		}
	}()
	NewReader([]byte("a")).Advance(2)
}
