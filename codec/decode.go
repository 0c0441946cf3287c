package codec

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"anchor-studio/idl"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// maxZeroSizedElems caps vecs whose elements occupy no bytes, since the
// remaining-length guard cannot bound them.
const maxZeroSizedElems = 1 << 16

// decoder is a read cursor over one payload. base is the payload's offset
// within the caller's buffer so errors point at absolute positions.
type decoder struct {
	schema *idl.Schema
	dec    *bin.Decoder
	base   int
	size   int
	path   []string
}

func newDecoder(s *idl.Schema, data []byte, base int) *decoder {
	return &decoder{
		schema: s,
		dec:    bin.NewBorshDecoder(data),
		base:   base,
		size:   len(data),
	}
}

func (d *decoder) offset() int {
	return d.base + d.size - d.dec.Remaining()
}

func (d *decoder) push(name string) { d.path = append(d.path, name) }

func (d *decoder) pop() { d.path = d.path[:len(d.path)-1] }

func (d *decoder) fail(err error, format string, args ...any) *DecodeError {
	return &DecodeError{
		Offset: d.offset(),
		Path:   strings.Join(d.path, "."),
		Err:    err,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (d *decoder) need(n int, what string) error {
	if rem := d.dec.Remaining(); rem < n {
		return d.fail(ErrShortBuffer, "%s needs %d bytes, %d left", what, n, rem)
	}
	return nil
}

func (d *decoder) bytes(n int, what string) ([]byte, error) {
	if err := d.need(n, what); err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	b, err := d.dec.ReadNBytes(n)
	if err != nil {
		return nil, d.fail(ErrShortBuffer, "%s: %v", what, err)
	}
	return b, nil
}

func (d *decoder) u8(what string) (uint8, error) {
	if err := d.need(1, what); err != nil {
		return 0, err
	}
	v, err := d.dec.ReadUint8()
	if err != nil {
		return 0, d.fail(ErrShortBuffer, "%s: %v", what, err)
	}
	return v, nil
}

func (d *decoder) u16(what string) (uint16, error) {
	if err := d.need(2, what); err != nil {
		return 0, err
	}
	v, err := d.dec.ReadUint16(bin.LE)
	if err != nil {
		return 0, d.fail(ErrShortBuffer, "%s: %v", what, err)
	}
	return v, nil
}

func (d *decoder) u32(what string) (uint32, error) {
	if err := d.need(4, what); err != nil {
		return 0, err
	}
	v, err := d.dec.ReadUint32(bin.LE)
	if err != nil {
		return 0, d.fail(ErrShortBuffer, "%s: %v", what, err)
	}
	return v, nil
}

func (d *decoder) u64(what string) (uint64, error) {
	if err := d.need(8, what); err != nil {
		return 0, err
	}
	v, err := d.dec.ReadUint64(bin.LE)
	if err != nil {
		return 0, d.fail(ErrShortBuffer, "%s: %v", what, err)
	}
	return v, nil
}

// DecodeValue decodes a single value of type t from the start of data.
// Trailing bytes are ignored.
func DecodeValue(s *idl.Schema, t idl.TypeRef, data []byte) (any, error) {
	return newDecoder(s, data, 0).value(t)
}

// DecodeFields decodes fields in declaration order from the start of data.
func DecodeFields(s *idl.Schema, fields []idl.Field, data []byte) (Fields, error) {
	return newDecoder(s, data, 0).fields(fields)
}

func (d *decoder) fields(fields []idl.Field) (Fields, error) {
	out := make(Fields, len(fields))
	for _, f := range fields {
		d.push(f.Name)
		v, err := d.value(f.Type)
		d.pop()
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func (d *decoder) value(t idl.TypeRef) (any, error) {
	switch v := t.(type) {
	case idl.Primitive:
		return d.primitive(v)

	case idl.Option:
		flag, err := d.u8("option flag")
		if err != nil {
			return nil, err
		}
		switch flag {
		case 0:
			return nil, nil
		case 1:
			return d.value(v.Elem)
		default:
			return nil, d.fail(ErrInvalidValue, "option flag %d", flag)
		}

	case idl.Vec:
		n, err := d.u32("vec length")
		if err != nil {
			return nil, err
		}
		if elem := minSize(d.schema, v.Elem); elem > 0 {
			if rem := d.dec.Remaining(); uint64(n)*uint64(elem) > uint64(rem) {
				return nil, d.fail(ErrShortBuffer, "vec of %d elements needs at least %d bytes, %d left", n, uint64(n)*uint64(elem), rem)
			}
		} else if n > maxZeroSizedElems {
			return nil, d.fail(ErrInvalidValue, "vec of %d zero-sized elements", n)
		}
		return d.sequence(v.Elem, int(n))

	case idl.Array:
		if v.Len < 0 || v.Len > idl.MaxArrayLen {
			return nil, d.fail(ErrInvalidValue, "array length %d", v.Len)
		}
		if need, rem := minSize(d.schema, v), d.dec.Remaining(); need > rem {
			return nil, d.fail(ErrShortBuffer, "array of %d elements needs at least %d bytes, %d left", v.Len, need, rem)
		}
		return d.sequence(v.Elem, v.Len)

	case idl.Defined:
		rt, err := d.schema.Resolve(v)
		if err != nil {
			return nil, err
		}
		return d.value(rt)

	case *idl.Struct:
		return d.fields(v.Fields)

	case *idl.Enum:
		return d.enum(v)
	}
	return nil, &idl.SchemaError{Path: strings.Join(d.path, "."), Err: idl.ErrUnsupportedType, Msg: fmt.Sprintf("%T", t)}
}

func (d *decoder) sequence(elem idl.TypeRef, n int) ([]any, error) {
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		d.push(strconv.Itoa(i))
		v, err := d.value(elem)
		d.pop()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *decoder) enum(e *idl.Enum) (any, error) {
	var tag int
	if e.TagSize() == 1 {
		t, err := d.u8("enum tag")
		if err != nil {
			return nil, err
		}
		tag = int(t)
	} else {
		t, err := d.u16("enum tag")
		if err != nil {
			return nil, err
		}
		tag = int(t)
	}
	if tag >= len(e.Variants) {
		return nil, d.fail(ErrUnknownVariant, "%s has %d variants, got index %d", e.Name, len(e.Variants), tag)
	}
	variant := e.Variants[tag]
	out := EnumValue{Variant: variant.Name}
	if len(variant.Fields) > 0 {
		d.push(variant.Name)
		fields, err := d.fields(variant.Fields)
		d.pop()
		if err != nil {
			return nil, err
		}
		out.Fields = fields
	}
	return out, nil
}

func (d *decoder) primitive(p idl.Primitive) (any, error) {
	what := string(p)
	switch p {
	case idl.U8:
		return d.u8(what)
	case idl.I8:
		v, err := d.u8(what)
		return int8(v), err
	case idl.U16:
		return d.u16(what)
	case idl.I16:
		v, err := d.u16(what)
		return int16(v), err
	case idl.U32:
		return d.u32(what)
	case idl.I32:
		v, err := d.u32(what)
		return int32(v), err
	case idl.U64:
		return d.u64(what)
	case idl.I64:
		v, err := d.u64(what)
		return int64(v), err
	case idl.U128, idl.I128:
		b, err := d.bytes(16, what)
		if err != nil {
			return nil, err
		}
		return leToBig(b, p == idl.I128), nil
	case idl.F32:
		v, err := d.u32(what)
		return math.Float32frombits(v), err
	case idl.F64:
		v, err := d.u64(what)
		return math.Float64frombits(v), err
	case idl.Bool:
		v, err := d.u8(what)
		return v != 0, err
	case idl.Pubkey:
		b, err := d.bytes(solana.PublicKeyLength, what)
		if err != nil {
			return nil, err
		}
		return solana.PublicKeyFromBytes(b).String(), nil
	case idl.String:
		n, err := d.u32("string length")
		if err != nil {
			return nil, err
		}
		b, err := d.bytes(int(n), what)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, d.fail(ErrInvalidValue, "string is not valid UTF-8")
		}
		return string(b), nil
	case idl.Bytes:
		n, err := d.u32("bytes length")
		if err != nil {
			return nil, err
		}
		b, err := d.bytes(int(n), what)
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.EncodeToString(b), nil
	}
	return nil, &idl.SchemaError{Path: strings.Join(d.path, "."), Err: idl.ErrUnknownType, Msg: string(p)}
}

// leToBig interprets 16 little-endian bytes as a 128-bit integer.
func leToBig(le []byte, signed bool) *big.Int {
	be := make([]byte, len(le))
	for i := range le {
		be[len(le)-1-i] = le[i]
	}
	v := new(big.Int).SetBytes(be)
	if signed && be[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return v
}
