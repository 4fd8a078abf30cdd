package framing

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestAppendVarint(t *testing.T) {
	tests := []struct {
		n    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{math.MaxInt32, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
	}

	for _, tt := range tests {
		got := AppendVarint(nil, tt.n)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("AppendVarint(%d) = %x, want %x", tt.n, got, tt.want)
		}
		if VarintLen(tt.n) != len(tt.want) {
			t.Errorf("VarintLen(%d) = %d, want %d", tt.n, VarintLen(tt.n), len(tt.want))
		}
	}
}

func TestAppendVarint_Negative(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for negative length")
		}
	}()
	AppendVarint(nil, -1)
}

func TestDecodeVarintLength(t *testing.T) {
	length, size, complete, err := decodeVarintLength([]byte{0xac, 0x02, 0xff})
	if err != nil || !complete {
		t.Fatalf("decode failed: complete=%v err=%v", complete, err)
	}
	if length != 300 || size != 2 {
		t.Errorf("decode = (%d, %d), want (300, 2)", length, size)
	}
}

func TestDecodeVarintLength_Incomplete(t *testing.T) {
	for _, b := range [][]byte{nil, {0x80}, {0xff, 0xff, 0xff, 0xff}} {
		_, _, complete, err := decodeVarintLength(b)
		if err != nil {
			t.Errorf("decode(%x) error = %v, want nil", b, err)
		}
		if complete {
			t.Errorf("decode(%x) complete, want incomplete", b)
		}
	}
}

func TestDecodeVarintLength_TooWide(t *testing.T) {
	for _, b := range [][]byte{
		{0x80, 0x80, 0x80, 0x80, 0x80},
		{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01},
	} {
		_, _, _, err := decodeVarintLength(b)
		if !errors.Is(err, ErrMessageTooLarge) {
			t.Errorf("decode(%x) error = %v, want ErrMessageTooLarge", b, err)
		}
	}
}

func TestDecodeVarintLength_NotMinimal(t *testing.T) {
	_, _, _, err := decodeVarintLength([]byte{0x80, 0x00})
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FormatError", err)
	}
	if fe.Field != "length" {
		t.Errorf("Field = %q, want length", fe.Field)
	}
}
