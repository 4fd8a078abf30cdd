package msgsock

import (
	"bytes"
	"testing"

	"github.com/Zereker/msgsock/framing"
)

func TestNewMessage(t *testing.T) {
	m := NewMessage([]byte("abc"))
	if m.Length() != 3 || string(m.Body()) != "abc" {
		t.Errorf("message = (%d, %q)", m.Length(), m.Body())
	}
}

func TestProtocols_Encode(t *testing.T) {
	tests := []struct {
		protocol Protocol
		name     string
		body     []byte
		want     []byte
	}{
		{TextProtocol(), "text", []byte("OK"), []byte("2:OK;")},
		{TextProtocol(), "text", nil, []byte("0:;")},
		{BinaryProtocol(framing.LengthVarint), "binary/varint", []byte{0xAB, 0xCD}, []byte{0x02, 0xAB, 0xCD}},
		{BinaryProtocol(framing.LengthFixed64), "binary/fixed64", []byte("x"), []byte{0, 0, 0, 0, 0, 0, 0, 1, 'x'}},
	}

	for _, tt := range tests {
		if tt.protocol.Name() != tt.name {
			t.Errorf("Name = %q, want %q", tt.protocol.Name(), tt.name)
		}
		got, err := tt.protocol.Encode(NewMessage(tt.body))
		if err != nil {
			t.Errorf("%s: Encode failed: %v", tt.name, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%s: Encode = %x, want %x", tt.name, got, tt.want)
		}
	}
}

func TestProtocols_ParserRoundTrip(t *testing.T) {
	for _, protocol := range []Protocol{
		TextProtocol(),
		BinaryProtocol(framing.LengthVarint),
		BinaryProtocol(framing.LengthFixed64),
	} {
		frame, err := protocol.Encode(NewMessage([]byte("payload")))
		if err != nil {
			t.Fatalf("%s: Encode failed: %v", protocol.Name(), err)
		}

		payload, ok, err := protocol.NewParser(1024).TryParse(framing.NewReader(frame))
		if err != nil || !ok || string(payload) != "payload" {
			t.Errorf("%s: TryParse = (%q, %v, %v)", protocol.Name(), payload, ok, err)
		}
	}
}

func TestProtocols_ParserMaxSize(t *testing.T) {
	for _, protocol := range []Protocol{TextProtocol(), BinaryProtocol(framing.LengthVarint)} {
		frame, _ := protocol.Encode(NewMessage([]byte("too long")))
		_, _, err := protocol.NewParser(4).TryParse(framing.NewReader(frame))
		if !framing.IsFatal(err) {
			t.Errorf("%s: error = %v, want a fatal framing error", protocol.Name(), err)
		}
	}
}

func TestProtocols_EncodeNil(t *testing.T) {
	if _, err := TextProtocol().Encode(nil); err == nil {
		t.Error("expected error for nil message")
	}
}
