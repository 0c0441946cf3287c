package codec

import (
	"math"

	"anchor-studio/idl"
)

// Fields holds a decoded struct, instruction argument list or event, keyed by
// field name. Values use the following Go representations:
//
//	u8..u64, i8..i64   uint8..uint64, int8..int64
//	u128, i128         *big.Int
//	f32, f64           float32, float64
//	bool, string       bool, string
//	pubkey             base58 string
//	bytes              base64 string
//	option<T>          nil or the T value
//	vec<T>, [T; N]     []any
//	struct             Fields
//	enum               EnumValue
type Fields map[string]any

// EnumValue is a decoded enum. Fields is nil for unit variants and uses
// positional keys ("0", "1", ...) for tuple variants.
type EnumValue struct {
	Variant string `json:"variant"`
	Fields  Fields `json:"fields,omitempty"`
}

// sizeCap saturates minSize; no buffer gets near it.
const sizeCap = math.MaxInt32

func satMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > sizeCap/b {
		return sizeCap
	}
	return a * b
}

func satAdd(a, b int) int {
	if a > sizeCap-b {
		return sizeCap
	}
	return a + b
}

// minSize is the smallest number of bytes any value of t can occupy,
// saturating at sizeCap. It bounds sequence lengths before allocation.
func minSize(s *idl.Schema, t idl.TypeRef) int {
	switch v := t.(type) {
	case idl.Primitive:
		return v.Size()
	case idl.Option:
		return 1
	case idl.Vec:
		return 4
	case idl.Array:
		return satMul(v.Len, minSize(s, v.Elem))
	case idl.Defined:
		rt, err := s.Resolve(v)
		if err != nil {
			return 0
		}
		return minSize(s, rt)
	case *idl.Struct:
		n := 0
		for _, f := range v.Fields {
			n = satAdd(n, minSize(s, f.Type))
		}
		return n
	case *idl.Enum:
		return v.TagSize()
	}
	return 0
}
