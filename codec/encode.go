package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"anchor-studio/idl"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type encoder struct {
	schema *idl.Schema
	enc    *bin.Encoder
	path   []string
}

func newEncoder(s *idl.Schema, buf *bytes.Buffer) *encoder {
	return &encoder{schema: s, enc: bin.NewBorshEncoder(buf)}
}

func (e *encoder) push(name string) { e.path = append(e.path, name) }

func (e *encoder) pop() { e.path = e.path[:len(e.path)-1] }

func (e *encoder) fail(err error, format string, args ...any) *EncodeError {
	return &EncodeError{
		Path: strings.Join(e.path, "."),
		Err:  err,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// EncodeValue lays out v as type t.
func EncodeValue(s *idl.Schema, t idl.TypeRef, v any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := newEncoder(s, buf).value(t, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeFields lays out values in the declaration order of fields. Every
// declared field must be present; extra keys are ignored.
func EncodeFields(s *idl.Schema, fields []idl.Field, values map[string]any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := newEncoder(s, buf).fields(fields, values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *encoder) fields(fields []idl.Field, values map[string]any) error {
	for _, f := range fields {
		e.push(f.Name)
		v, ok := values[f.Name]
		if !ok {
			err := e.fail(ErrMissingField, "no value supplied")
			e.pop()
			return err
		}
		err := e.value(f.Type, v)
		e.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) write(err error) error {
	if err != nil {
		return e.fail(ErrInvalidValue, "write: %v", err)
	}
	return nil
}

func (e *encoder) value(t idl.TypeRef, v any) error {
	switch tt := t.(type) {
	case idl.Primitive:
		return e.primitive(tt, v)

	case idl.Option:
		if v == nil {
			return e.write(e.enc.WriteUint8(0))
		}
		if err := e.write(e.enc.WriteUint8(1)); err != nil {
			return err
		}
		return e.value(tt.Elem, v)

	case idl.Vec:
		items, err := e.sequence(v)
		if err != nil {
			return err
		}
		if uint64(len(items)) > math.MaxUint32 {
			return e.fail(ErrLengthMismatch, "vec of %d elements exceeds u32 length", len(items))
		}
		if err := e.write(e.enc.WriteUint32(uint32(len(items)), bin.LE)); err != nil {
			return err
		}
		return e.elements(tt.Elem, items)

	case idl.Array:
		items, err := e.sequence(v)
		if err != nil {
			return err
		}
		if len(items) != tt.Len {
			return e.fail(ErrLengthMismatch, "array needs %d elements, got %d", tt.Len, len(items))
		}
		return e.elements(tt.Elem, items)

	case idl.Defined:
		rt, err := e.schema.Resolve(tt)
		if err != nil {
			return err
		}
		return e.value(rt, v)

	case *idl.Struct:
		m, ok := asFields(v)
		if !ok {
			return e.fail(ErrWrongType, "%s expects an object, got %T", tt.Name, v)
		}
		return e.fields(tt.Fields, m)

	case *idl.Enum:
		return e.enum(tt, v)
	}
	return &idl.SchemaError{Path: strings.Join(e.path, "."), Err: idl.ErrUnsupportedType, Msg: fmt.Sprintf("%T", t)}
}

func (e *encoder) elements(elem idl.TypeRef, items []any) error {
	for i, item := range items {
		e.push(strconv.Itoa(i))
		err := e.value(elem, item)
		e.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

// sequence accepts []any or any other slice or array kind.
func (e *encoder) sequence(v any) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, e.fail(ErrWrongType, "expected a list, got %T", v)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

func asFields(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Fields:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

func (e *encoder) enum(en *idl.Enum, v any) error {
	var ev EnumValue
	switch x := v.(type) {
	case EnumValue:
		ev = x
	case *EnumValue:
		if x == nil {
			return e.fail(ErrWrongType, "nil enum value")
		}
		ev = *x
	case string:
		ev = EnumValue{Variant: x}
	default:
		m, ok := asFields(v)
		if !ok {
			return e.fail(ErrWrongType, "%s expects a variant, got %T", en.Name, v)
		}
		name, _ := m["variant"].(string)
		ev.Variant = name
		if f, ok := asFields(m["fields"]); ok {
			ev.Fields = f
		}
	}

	variant, idx, ok := en.Variant(ev.Variant)
	if !ok {
		return e.fail(ErrUnknownVariant, "%s has no variant %q", en.Name, ev.Variant)
	}
	if en.TagSize() == 1 {
		if err := e.write(e.enc.WriteUint8(uint8(idx))); err != nil {
			return err
		}
	} else {
		if err := e.write(e.enc.WriteUint16(uint16(idx), bin.LE)); err != nil {
			return err
		}
	}
	if len(variant.Fields) == 0 {
		return nil
	}
	e.push(variant.Name)
	defer e.pop()
	return e.fields(variant.Fields, ev.Fields)
}

func (e *encoder) primitive(p idl.Primitive, v any) error {
	switch {
	case p.IsInteger():
		n, err := toBigInt(v)
		if err != nil {
			return e.fail(ErrWrongType, "%s: %v", p, err)
		}
		if !InRange(p, n) {
			return e.fail(ErrOutOfRange, "%s does not fit in %s", n, p)
		}
		return e.integer(p, n)

	case p.IsFloat():
		f, err := toFloat(v)
		if err != nil {
			return e.fail(ErrWrongType, "%s: %v", p, err)
		}
		if p == idl.F32 {
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return e.fail(ErrOutOfRange, "%v does not fit in f32", f)
			}
			return e.write(e.enc.WriteUint32(math.Float32bits(float32(f)), bin.LE))
		}
		return e.write(e.enc.WriteUint64(math.Float64bits(f), bin.LE))
	}

	switch p {
	case idl.Bool:
		b, ok := v.(bool)
		if !ok {
			return e.fail(ErrWrongType, "bool expects true or false, got %T", v)
		}
		var x uint8
		if b {
			x = 1
		}
		return e.write(e.enc.WriteUint8(x))

	case idl.String:
		s, ok := v.(string)
		if !ok {
			return e.fail(ErrWrongType, "string expects text, got %T", v)
		}
		return e.lengthPrefixed([]byte(s))

	case idl.Bytes:
		var b []byte
		switch x := v.(type) {
		case []byte:
			b = x
		case string:
			dec, err := base64.StdEncoding.DecodeString(x)
			if err != nil {
				return e.fail(ErrWrongType, "bytes expects base64 text: %v", err)
			}
			b = dec
		default:
			return e.fail(ErrWrongType, "bytes expects []byte, got %T", v)
		}
		return e.lengthPrefixed(b)

	case idl.Pubkey:
		pk, err := toPublicKey(v)
		if err != nil {
			return e.fail(ErrWrongType, "%v", err)
		}
		return e.write(e.enc.WriteBytes(pk[:], false))
	}
	return &idl.SchemaError{Path: strings.Join(e.path, "."), Err: idl.ErrUnknownType, Msg: string(p)}
}

func (e *encoder) lengthPrefixed(b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return e.fail(ErrLengthMismatch, "%d bytes exceeds u32 length", len(b))
	}
	if err := e.write(e.enc.WriteUint32(uint32(len(b)), bin.LE)); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return e.write(e.enc.WriteBytes(b, false))
}

func (e *encoder) integer(p idl.Primitive, n *big.Int) error {
	switch p.Bits() {
	case 8:
		return e.write(e.enc.WriteUint8(uint8(truncate(n))))
	case 16:
		return e.write(e.enc.WriteUint16(uint16(truncate(n)), bin.LE))
	case 32:
		return e.write(e.enc.WriteUint32(uint32(truncate(n)), bin.LE))
	case 64:
		return e.write(e.enc.WriteUint64(truncate(n), bin.LE))
	}
	return e.write(e.enc.WriteBytes(bigToLE(n), false))
}

// truncate returns the low 64 bits of n in two's complement.
func truncate(n *big.Int) uint64 {
	if n.Sign() >= 0 {
		return n.Uint64()
	}
	return uint64(n.Int64())
}

// bigToLE renders n as 16 little-endian two's complement bytes.
func bigToLE(n *big.Int) []byte {
	v := new(big.Int).Set(n)
	if v.Sign() < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	be := v.FillBytes(make([]byte, 16))
	le := make([]byte, 16)
	for i := range be {
		le[15-i] = be[i]
	}
	return le
}

// IntRange returns the inclusive bounds of an integer primitive.
func IntRange(p idl.Primitive) (lo, hi *big.Int) {
	bits := uint(p.Bits())
	one := big.NewInt(1)
	if p.IsSigned() {
		hi = new(big.Int).Sub(new(big.Int).Lsh(one, bits-1), one)
		lo = new(big.Int).Neg(new(big.Int).Lsh(one, bits-1))
		return lo, hi
	}
	return big.NewInt(0), new(big.Int).Sub(new(big.Int).Lsh(one, bits), one)
}

// InRange reports whether n fits integer primitive p.
func InRange(p idl.Primitive, n *big.Int) bool {
	lo, hi := IntRange(p)
	return n.Cmp(lo) >= 0 && n.Cmp(hi) <= 0
}

func toBigInt(v any) (*big.Int, error) {
	switch x := v.(type) {
	case int:
		return big.NewInt(int64(x)), nil
	case int8:
		return big.NewInt(int64(x)), nil
	case int16:
		return big.NewInt(int64(x)), nil
	case int32:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case *big.Int:
		if x == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return x, nil
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return nil, fmt.Errorf("%v is not an exact integer", x)
		}
		return big.NewInt(int64(x)), nil
	case json.Number:
		return parseBigInt(string(x))
	case string:
		return parseBigInt(x)
	}
	return nil, fmt.Errorf("expected an integer, got %T", v)
}

func parseBigInt(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("%q is not a decimal integer", s)
	}
	return n, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	if n, err := toBigInt(v); err == nil {
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func toPublicKey(v any) (solana.PublicKey, error) {
	switch x := v.(type) {
	case solana.PublicKey:
		return x, nil
	case *solana.PublicKey:
		if x == nil {
			return solana.PublicKey{}, fmt.Errorf("nil public key")
		}
		return *x, nil
	case [32]byte:
		return solana.PublicKey(x), nil
	case []byte:
		if len(x) != solana.PublicKeyLength {
			return solana.PublicKey{}, fmt.Errorf("public key must be %d bytes, got %d", solana.PublicKeyLength, len(x))
		}
		return solana.PublicKeyFromBytes(x), nil
	case string:
		pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(x))
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("invalid public key %q: %w", x, err)
		}
		return pk, nil
	}
	return solana.PublicKey{}, fmt.Errorf("expected a public key, got %T", v)
}
