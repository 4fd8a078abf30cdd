package msgsock

import (
	"testing"
	"time"

	"github.com/Zereker/msgsock/framing"
)

func TestProtocolOption(t *testing.T) {
	protocol := BinaryProtocol(framing.LengthVarint)
	opt := ProtocolOption(protocol)

	var opts options
	opt(&opts)

	if opts.protocol != protocol {
		t.Error("protocol not set correctly")
	}
}

func TestOptions_MultipleOptions(t *testing.T) {
	protocol := TextProtocol()
	logger := &mockLogger{}
	errorCalled := false
	heartbeat := time.Second * 45

	var opts options
	for _, opt := range []Option{
		ProtocolOption(protocol),
		OnMessageOption(func(Message) error { return nil }),
		OnErrorOption(func(error) ErrorAction {
			errorCalled = true
			return Continue
		}),
		HeartbeatOption(heartbeat),
		BufferSizeOption(50),
		ReadBufferSizeOption(512),
		MessageMaxSize(8192),
		LoggerOption(logger),
	} {
		opt(&opts)
	}

	if opts.protocol != protocol {
		t.Error("protocol not set")
	}
	if opts.onMessage == nil {
		t.Error("onMessage not set")
	}
	if opts.onError == nil || opts.onError(nil) != Continue || !errorCalled {
		t.Error("onError not set")
	}
	if opts.heartbeat != heartbeat {
		t.Errorf("heartbeat = %v, want %v", opts.heartbeat, heartbeat)
	}
	if opts.bufferSize != 50 {
		t.Errorf("bufferSize = %d, want 50", opts.bufferSize)
	}
	if opts.readBufferSize != 512 {
		t.Errorf("readBufferSize = %d, want 512", opts.readBufferSize)
	}
	if opts.maxReadLength != 8192 {
		t.Errorf("maxReadLength = %d, want 8192", opts.maxReadLength)
	}
	if opts.logger != logger {
		t.Error("logger not set")
	}
}

func TestErrorAction(t *testing.T) {
	if Disconnect != 0 {
		t.Errorf("Disconnect = %d, want 0", Disconnect)
	}
	if Continue != 1 {
		t.Errorf("Continue = %d, want 1", Continue)
	}
}
