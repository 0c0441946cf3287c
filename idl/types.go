package idl

import (
	"fmt"
	"strings"
)

// Primitive names a scalar type of the IDL vocabulary.
type Primitive string

const (
	U8     Primitive = "u8"
	U16    Primitive = "u16"
	U32    Primitive = "u32"
	U64    Primitive = "u64"
	U128   Primitive = "u128"
	I8     Primitive = "i8"
	I16    Primitive = "i16"
	I32    Primitive = "i32"
	I64    Primitive = "i64"
	I128   Primitive = "i128"
	F32    Primitive = "f32"
	F64    Primitive = "f64"
	Bool   Primitive = "bool"
	String Primitive = "string"
	Pubkey Primitive = "pubkey"
	Bytes  Primitive = "bytes"
)

var primitives = map[string]Primitive{
	"u8": U8, "u16": U16, "u32": U32, "u64": U64, "u128": U128,
	"i8": I8, "i16": I16, "i32": I32, "i64": I64, "i128": I128,
	"f32": F32, "f64": F64,
	"bool": Bool, "string": String, "bytes": Bytes,
	"pubkey": Pubkey,
	// legacy spelling
	"publicKey": Pubkey,
}

// LookupPrimitive maps an IDL type name to its primitive, accepting legacy spellings.
func LookupPrimitive(name string) (Primitive, bool) {
	p, ok := primitives[name]
	return p, ok
}

// IsInteger reports whether p is a signed or unsigned integer.
func (p Primitive) IsInteger() bool {
	return p.Bits() > 0 && p != F32 && p != F64
}

// IsSigned reports whether p is a signed integer.
func (p Primitive) IsSigned() bool {
	switch p {
	case I8, I16, I32, I64, I128:
		return true
	}
	return false
}

// IsFloat reports whether p is a floating point number.
func (p Primitive) IsFloat() bool {
	return p == F32 || p == F64
}

// Bits returns the width of a numeric primitive, or 0 for non-numeric ones.
func (p Primitive) Bits() int {
	switch p {
	case U8, I8:
		return 8
	case U16, I16:
		return 16
	case U32, I32, F32:
		return 32
	case U64, I64, F64:
		return 64
	case U128, I128:
		return 128
	}
	return 0
}

// Size returns the fixed encoded size of p in bytes. Length-prefixed
// primitives (string, bytes) report their 4-byte prefix only.
func (p Primitive) Size() int {
	switch p {
	case Bool:
		return 1
	case Pubkey:
		return 32
	case String, Bytes:
		return 4
	}
	return p.Bits() / 8
}

// TypeRef is the closed set of type shapes a field can carry: Primitive,
// Option, Vec, Array and Defined as written in the IDL, plus *Struct and
// *Enum which only appear once a Defined reference has been resolved.
type TypeRef interface {
	fmt.Stringer
	typeRef()
}

func (Primitive) typeRef() {}

func (p Primitive) String() string { return string(p) }

// Option is a nullable wrapper, encoded as a presence byte and the value.
type Option struct {
	Elem TypeRef
}

func (Option) typeRef() {}

func (o Option) String() string { return "option<" + o.Elem.String() + ">" }

// Vec is a u32 length-prefixed sequence.
type Vec struct {
	Elem TypeRef
}

func (Vec) typeRef() {}

func (v Vec) String() string { return "vec<" + v.Elem.String() + ">" }

// MaxArrayLen bounds fixed array lengths accepted from an IDL.
const MaxArrayLen = 1 << 16

// Array is a fixed-length sequence without a length prefix.
type Array struct {
	Elem TypeRef
	Len  int
}

func (Array) typeRef() {}

func (a Array) String() string { return fmt.Sprintf("[%s; %d]", a.Elem, a.Len) }

// Defined is a reference by name into the schema's type table.
type Defined struct {
	Name string
}

func (Defined) typeRef() {}

func (d Defined) String() string { return d.Name }

// Struct is a resolved struct definition.
type Struct struct {
	Name   string
	Fields []Field
}

func (*Struct) typeRef() {}

func (s *Struct) String() string { return s.Name }

// Enum is a resolved enum definition.
type Enum struct {
	Name     string
	Variants []Variant
}

func (*Enum) typeRef() {}

func (e *Enum) String() string { return e.Name }

// Variant returns the variant with the given name and its index.
func (e *Enum) Variant(name string) (*Variant, int, bool) {
	for i := range e.Variants {
		if e.Variants[i].Name == name {
			return &e.Variants[i], i, true
		}
	}
	return nil, -1, false
}

// TagSize is the width of the variant index. Borsh uses a single byte; wider
// tags are only needed past 256 variants.
func (e *Enum) TagSize() int {
	if len(e.Variants) <= 1<<8 {
		return 1
	}
	return 2
}

// Field is a named, typed member of a struct, instruction or event. Field
// order is wire order.
type Field struct {
	Name string
	Type TypeRef
	Docs []string
}

// Variant is one arm of an enum. Unit variants carry no fields; tuple
// variants carry positionally named fields ("0", "1", ...).
type Variant struct {
	Name   string
	Fields []Field
	Tuple  bool
}

// TypeDefKind distinguishes entries of the type table.
type TypeDefKind string

const (
	KindStruct TypeDefKind = "struct"
	KindEnum   TypeDefKind = "enum"
	KindAlias  TypeDefKind = "type"
)

// TypeDef is a named entry of the schema's type table.
type TypeDef struct {
	Name     string
	Docs     []string
	Kind     TypeDefKind
	Fields   []Field
	Tuple    bool
	Variants []Variant
	Alias    TypeRef
}

// FieldNames lists the names of fields in declaration order.
func FieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// SnakeCase converts a camelCase or PascalCase identifier to snake_case the
// way Anchor's client does before hashing instruction names.
func SnakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prev := runes[i-1]
			prevLower := (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9')
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			prevUpper := prev >= 'A' && prev <= 'Z'
			if prevLower || (prevUpper && nextLower) {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
