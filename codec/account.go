package codec

import (
	"bytes"
	"fmt"

	"anchor-studio/idl"
)

// DecodedAccount is account data matched to an account kind.
type DecodedAccount struct {
	Kind   string
	Fields Fields
}

// DecodeAccount identifies the account kind by discriminator and decodes it.
// Account data is usually allocated larger than its layout, so trailing
// bytes are ignored.
func DecodeAccount(s *idl.Schema, data []byte) (*DecodedAccount, error) {
	acc, ok := s.AccountByDiscriminator(data)
	if !ok {
		n := min(len(data), idl.DiscriminatorSize)
		return nil, &DecodeError{Err: ErrUnknownDiscriminator, Msg: fmt.Sprintf("%x matches no account kind", data[:n])}
	}
	fields, err := decodeAccountBody(s, acc, data)
	if err != nil {
		return nil, err
	}
	return &DecodedAccount{Kind: acc.Name, Fields: fields}, nil
}

// DecodeAccountAs decodes data as the named account kind, failing if the
// discriminator belongs to another kind.
func DecodeAccountAs(s *idl.Schema, kind string, data []byte) (Fields, error) {
	acc, ok := s.Account(kind)
	if !ok {
		return nil, &idl.SchemaError{Path: "accounts." + kind, Err: idl.ErrNotFound, Msg: "no such account kind"}
	}
	if len(data) < len(acc.Discriminator) {
		return nil, &DecodeError{Err: ErrShortBuffer, Msg: fmt.Sprintf("account data is %d bytes", len(data))}
	}
	if !bytes.HasPrefix(data, acc.Discriminator) {
		return nil, &DecodeError{Err: ErrDiscriminatorMismatch, Msg: fmt.Sprintf("%x is not a %s", data[:len(acc.Discriminator)], kind)}
	}
	return decodeAccountBody(s, acc, data)
}

func decodeAccountBody(s *idl.Schema, acc *idl.AccountDef, data []byte) (Fields, error) {
	layout, err := s.AccountFields(acc.Name)
	if err != nil {
		return nil, err
	}
	start := len(acc.Discriminator)
	d := newDecoder(s, data[start:], start)
	d.push(acc.Name)
	return d.fields(layout)
}

// EncodeAccount lays out account data: discriminator then fields.
func EncodeAccount(s *idl.Schema, kind string, fields map[string]any) ([]byte, error) {
	acc, ok := s.Account(kind)
	if !ok {
		return nil, &idl.SchemaError{Path: "accounts." + kind, Err: idl.ErrNotFound, Msg: "no such account kind"}
	}
	layout, err := s.AccountFields(kind)
	if err != nil {
		return nil, err
	}
	body, err := EncodeFields(s, layout, fields)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), acc.Discriminator...), body...), nil
}
