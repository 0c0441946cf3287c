package idl

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidJSON     = errors.New("invalid IDL JSON")
	ErrUnknownType     = errors.New("unknown type")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrCyclicType      = errors.New("cyclic type definition")
	ErrDuplicate       = errors.New("duplicate definition")
	ErrMissingDef      = errors.New("missing definition")
	ErrNotFound        = errors.New("not found")
)

// SchemaError reports an IDL that cannot be loaded or a reference the schema
// cannot satisfy. Path locates the offending item, e.g. "types.Pool.fields.fee".
type SchemaError struct {
	Path string
	Err  error
	Msg  string
}

func (e *SchemaError) Error() string {
	msg := e.Err.Error()
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Path == "" {
		return "schema: " + msg
	}
	return fmt.Sprintf("schema: %s at %s", msg, e.Path)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func schemaErr(path string, err error, format string, args ...any) *SchemaError {
	return &SchemaError{Path: path, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// IsSchemaError reports whether err is, or wraps, a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
