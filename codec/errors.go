package codec

import (
	"errors"
	"fmt"
)

var (
	ErrShortBuffer           = errors.New("buffer too short")
	ErrInvalidValue          = errors.New("invalid encoded value")
	ErrUnknownVariant        = errors.New("unknown enum variant")
	ErrUnknownDiscriminator  = errors.New("unknown discriminator")
	ErrDiscriminatorMismatch = errors.New("discriminator mismatch")

	ErrOutOfRange     = errors.New("value out of range")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrMissingField   = errors.New("missing field")
	ErrWrongType      = errors.New("wrong value type")
)

// DecodeError reports wire bytes that do not match the expected layout.
// Offset is the cursor position within the decoded buffer when the failure
// was detected.
type DecodeError struct {
	Offset int
	Path   string
	Err    error
	Msg    string
}

func (e *DecodeError) Error() string {
	msg := e.Err.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Path != "" {
		return fmt.Sprintf("decode %s at offset %d: %s", e.Path, e.Offset, msg)
	}
	return fmt.Sprintf("decode at offset %d: %s", e.Offset, msg)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a value that cannot be laid out as its declared type.
type EncodeError struct {
	Path string
	Err  error
	Msg  string
}

func (e *EncodeError) Error() string {
	msg := e.Err.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Path != "" {
		return fmt.Sprintf("encode %s: %s", e.Path, msg)
	}
	return "encode: " + msg
}

func (e *EncodeError) Unwrap() error { return e.Err }
