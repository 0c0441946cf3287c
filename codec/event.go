package codec

import (
	"fmt"

	"anchor-studio/idl"
)

// DecodedEvent is an event payload as logged after "Program data: ".
type DecodedEvent struct {
	Name   string
	Fields Fields
}

// DecodeEvent decodes an event payload: event discriminator then fields.
func DecodeEvent(s *idl.Schema, data []byte) (*DecodedEvent, error) {
	ev, ok := s.EventByDiscriminator(data)
	if !ok {
		n := min(len(data), idl.DiscriminatorSize)
		return nil, &DecodeError{Err: ErrUnknownDiscriminator, Msg: fmt.Sprintf("%x matches no event", data[:n])}
	}
	start := len(ev.Discriminator)
	d := newDecoder(s, data[start:], start)
	d.push(ev.Name)
	fields, err := d.fields(ev.Fields)
	if err != nil {
		return nil, err
	}
	return &DecodedEvent{Name: ev.Name, Fields: fields}, nil
}

// EncodeEvent lays out an event payload.
func EncodeEvent(s *idl.Schema, name string, fields map[string]any) ([]byte, error) {
	ev, ok := s.Event(name)
	if !ok {
		return nil, &idl.SchemaError{Path: "events." + name, Err: idl.ErrNotFound, Msg: "no such event"}
	}
	body, err := EncodeFields(s, ev.Fields, fields)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), ev.Discriminator...), body...), nil
}

// EncodeEventCPI lays out the instruction data of an emit_cpi! self-call.
func EncodeEventCPI(s *idl.Schema, name string, fields map[string]any) ([]byte, error) {
	payload, err := EncodeEvent(s, name, fields)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), idl.EventCPITag...), payload...), nil
}
