package framing

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidFormat is the root of every malformed-framing error.
	ErrInvalidFormat = errors.New("invalid message format")
	// ErrMessageTooLarge is returned when a declared length exceeds the
	// largest message a parser accepts.
	ErrMessageTooLarge = errors.New("message too large")
)

// FormatError describes a byte stream that violates the wire grammar.
// The stream cannot be resynchronized after one is returned.
type FormatError struct {
	// Field names the part of the frame that is malformed ("length" or "payload").
	Field string
	// Text holds the offending bytes when they are useful for diagnosis.
	Text string
	// Reason is a short description of what was expected.
	Reason string
}

func (e *FormatError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Text, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidFormat.
func (e *FormatError) Unwrap() error { return ErrInvalidFormat }

func formatError(field, text, reason string) error {
	return errors.WithStack(&FormatError{Field: field, Text: text, Reason: reason})
}

func tooLarge(length uint64, limit int) error {
	return errors.Wrapf(ErrMessageTooLarge, "declared length %d exceeds %d", length, limit)
}

// IsFatal reports whether err was produced by a parser and therefore ends the
// stream it was read from.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidFormat) || errors.Is(err, ErrMessageTooLarge)
}
