package codec

import (
	"bytes"
	"fmt"

	"anchor-studio/idl"
)

// EventAuthorityAccount is the single account an emit_cpi! self-invocation
// carries.
var EventAuthorityAccount = idl.AccountSpec{
	Name:     "eventAuthority",
	IsSigner: true,
	IsMut:    false,
}

// DecodedInstruction is an instruction payload matched against the schema.
// When SelfCPI is set, Name is the event name, Args are the event fields and
// Accounts holds only EventAuthorityAccount.
type DecodedInstruction struct {
	Name     string
	SelfCPI  bool
	Args     Fields
	ArgDefs  []idl.Field
	Accounts []idl.AccountSpec
}

// DecodeInstruction decodes instruction data. The prefix is matched against
// instruction discriminators first; only if none match is the payload tried
// as a self-CPI event, either behind the emit_cpi! tag or carrying a bare
// event discriminator.
func DecodeInstruction(s *idl.Schema, data []byte) (*DecodedInstruction, error) {
	if len(data) < idl.DiscriminatorSize {
		return nil, &DecodeError{Offset: 0, Err: ErrShortBuffer, Msg: fmt.Sprintf("instruction data is %d bytes, discriminator needs %d", len(data), idl.DiscriminatorSize)}
	}

	if ix, ok := s.InstructionByDiscriminator(data); ok {
		start := len(ix.Discriminator)
		d := newDecoder(s, data[start:], start)
		d.push(ix.Name)
		args, err := d.fields(ix.Args)
		if err != nil {
			return nil, err
		}
		return &DecodedInstruction{
			Name:     ix.Name,
			Args:     args,
			ArgDefs:  ix.Args,
			Accounts: ix.Accounts,
		}, nil
	}

	payload, start := data, 0
	if bytes.HasPrefix(data, idl.EventCPITag) {
		payload, start = data[len(idl.EventCPITag):], len(idl.EventCPITag)
	}
	if ev, ok := s.EventByDiscriminator(payload); ok {
		start += len(ev.Discriminator)
		d := newDecoder(s, data[start:], start)
		d.push(ev.Name)
		args, err := d.fields(ev.Fields)
		if err != nil {
			return nil, err
		}
		return &DecodedInstruction{
			Name:     ev.Name,
			SelfCPI:  true,
			Args:     args,
			ArgDefs:  ev.Fields,
			Accounts: []idl.AccountSpec{EventAuthorityAccount},
		}, nil
	}

	return nil, &DecodeError{
		Offset: start,
		Err:    ErrUnknownDiscriminator,
		Msg:    fmt.Sprintf("%x matches no instruction or event", data[:idl.DiscriminatorSize]),
	}
}

// IsSelfCPI reports whether data is an event emitted through a self-CPI
// rather than an ordinary instruction of the schema.
func IsSelfCPI(s *idl.Schema, data []byte) bool {
	if _, ok := s.InstructionByDiscriminator(data); ok {
		return false
	}
	if bytes.HasPrefix(data, idl.EventCPITag) {
		data = data[len(idl.EventCPITag):]
	}
	_, ok := s.EventByDiscriminator(data)
	return ok
}

// EncodeInstruction builds instruction data: the discriminator followed by
// args in declaration order.
func EncodeInstruction(s *idl.Schema, name string, args map[string]any) ([]byte, error) {
	ix, ok := s.Instruction(name)
	if !ok {
		return nil, &idl.SchemaError{Path: "instructions." + name, Err: idl.ErrNotFound, Msg: "no such instruction"}
	}
	body, err := EncodeFields(s, ix.Args, args)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(ix.Discriminator)+len(body))
	out = append(out, ix.Discriminator...)
	return append(out, body...), nil
}
