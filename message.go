package msgsock

import (
	"math"

	"github.com/pkg/errors"

	"github.com/Zereker/msgsock/framing"
)

// Message is a payload transmitted over the connection.
type Message interface {
	// Length returns the length of the message body.
	Length() int
	// Body returns the raw message data.
	Body() []byte
}

type message []byte

// NewMessage wraps body as a Message. The slice is not copied.
func NewMessage(body []byte) Message {
	return message(body)
}

func (m message) Length() int  { return len(m) }
func (m message) Body() []byte { return m }

// Protocol frames messages on a byte stream.
//
// NewParser is called once per connection and the parser is reused for every
// message read from it; Encode must be safe for concurrent use.
type Protocol interface {
	// Name identifies the protocol in logs.
	Name() string
	// NewParser returns a parser that rejects messages longer than maxSize.
	NewParser(maxSize int) framing.Parser
	// Encode returns the complete frame for a message.
	Encode(Message) ([]byte, error)
}

// BinaryProtocol frames messages as <length><payload> with the given
// length prefix encoding.
func BinaryProtocol(prefix framing.LengthPrefix) Protocol {
	return binaryProtocol{formatter: framing.BinaryFormatter{Prefix: prefix}}
}

type binaryProtocol struct {
	formatter framing.BinaryFormatter
}

func (p binaryProtocol) Name() string {
	return "binary/" + p.formatter.Prefix.String()
}

func (p binaryProtocol) NewParser(maxSize int) framing.Parser {
	return framing.NewBinaryParser(
		framing.WithLengthPrefix(p.formatter.Prefix),
		framing.WithMaxMessageSize(maxSize),
	)
}

func (p binaryProtocol) Encode(m Message) ([]byte, error) {
	body, err := checkBody(m)
	if err != nil {
		return nil, err
	}
	return p.formatter.Append(make([]byte, 0, p.formatter.FrameLen(len(body))), body), nil
}

// TextProtocol frames messages as <decimal length>:<payload>;.
func TextProtocol() Protocol {
	return textProtocol{}
}

type textProtocol struct{}

func (textProtocol) Name() string { return "text" }

func (textProtocol) NewParser(maxSize int) framing.Parser {
	return framing.NewTextParser(framing.WithMaxMessageSize(maxSize))
}

func (textProtocol) Encode(m Message) ([]byte, error) {
	body, err := checkBody(m)
	if err != nil {
		return nil, err
	}
	return framing.AppendText(make([]byte, 0, len(body)+13), body), nil
}

// checkBody rejects bodies that no peer could decode.
func checkBody(m Message) ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil message")
	}
	body := m.Body()
	if int64(len(body)) > math.MaxInt32 {
		return nil, errors.Wrapf(framing.ErrMessageTooLarge, "body of %d bytes", len(body))
	}
	return body, nil
}
