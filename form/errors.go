package form

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	ErrRequired     = errors.New("value required")
	ErrInvalid      = errors.New("invalid value")
	ErrOutOfRange   = errors.New("value out of range")
	ErrFixedLength  = errors.New("array length is fixed")
	ErrNoVariant    = errors.New("no enum variant selected")
	ErrWrongControl = errors.New("operation does not apply to this control")
)

// ValidationError is a problem with one control, addressed by its path
// (for example "config.admins[1]").
type ValidationError struct {
	Path string
	Err  error
	Msg  string
}

func (e *ValidationError) Error() string {
	msg := e.Err.Error()
	if e.Msg != "" {
		msg = e.Msg
	}
	if e.Path == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Path, msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(path string, err error, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// ValidationErrors flattens an error returned by Validate into its
// field-local parts.
func ValidationErrors(err error) []*ValidationError {
	var out []*ValidationError
	for _, e := range multierr.Errors(err) {
		var ve *ValidationError
		if errors.As(e, &ve) {
			out = append(out, ve)
		}
	}
	return out
}
