package form

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"anchor-studio/codec"
	"anchor-studio/idl"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"go.uber.org/multierr"
)

const pubkeyLen = len(solana.PublicKey{})

// Validate checks every control in the tree and returns all field-local
// problems combined with multierr; use ValidationErrors to split them.
func (c *Control) Validate() error {
	var errs error
	c.validate(&errs)
	return errs
}

func (c *Control) validate(errs *error) {
	switch c.Kind {
	case KindBool:
	case KindOption:
		if c.Present {
			c.Inner.validate(errs)
		}
	case KindVec, KindArray:
		for _, item := range c.Items {
			item.validate(errs)
		}
	case KindStruct:
		for _, f := range c.Fields {
			f.validate(errs)
		}
	case KindEnum:
		if c.Selected < 0 {
			*errs = multierr.Append(*errs, invalid(c.Path, ErrNoVariant, "choose one of %s", strings.Join(c.VariantNames(), ", ")))
			return
		}
		for _, f := range c.Variant {
			f.validate(errs)
		}
	default:
		if _, err := c.scalar(); err != nil {
			*errs = multierr.Append(*errs, err)
		}
	}
}

// Value validates the tree and returns the value in the representation the
// codec decodes to, so Value and a decoded value of the same data compare
// equal.
func (c *Control) Value() (any, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c.value()
}

func (c *Control) value() (any, error) {
	switch c.Kind {
	case KindBool:
		return c.Bool, nil

	case KindOption:
		if !c.Present {
			return nil, nil
		}
		return c.Inner.value()

	case KindVec, KindArray:
		items := make([]any, len(c.Items))
		for i, item := range c.Items {
			v, err := item.value()
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil

	case KindStruct:
		return fieldValues(c.Fields)

	case KindEnum:
		ev := codec.EnumValue{Variant: c.SelectedVariant()}
		if len(c.Enum.Variants[c.Selected].Fields) > 0 {
			fields, err := fieldValues(c.Variant)
			if err != nil {
				return nil, err
			}
			ev.Fields = fields
		}
		return ev, nil
	}
	return c.scalar()
}

func fieldValues(controls []*Control) (codec.Fields, error) {
	out := make(codec.Fields, len(controls))
	for _, f := range controls {
		v, err := f.value()
		if err != nil {
			return nil, err
		}
		out[f.Label] = v
	}
	return out, nil
}

// scalar parses the text of a scalar control.
func (c *Control) scalar() (any, error) {
	text := strings.TrimSpace(c.Text)

	switch c.Kind {
	case KindString:
		return c.Text, nil

	case KindInteger:
		if text == "" {
			return nil, invalid(c.Path, ErrRequired, "enter a %s", c.Primitive)
		}
		n, ok := new(big.Int).SetString(strings.ReplaceAll(text, "_", ""), 10)
		if !ok {
			return nil, invalid(c.Path, ErrInvalid, "%q is not a whole number", text)
		}
		if !codec.InRange(c.Primitive, n) {
			lo, hi := codec.IntRange(c.Primitive)
			return nil, invalid(c.Path, ErrOutOfRange, "%s must be between %s and %s", c.Primitive, lo, hi)
		}
		return nativeInt(c.Primitive, n), nil

	case KindFloat:
		if text == "" {
			return nil, invalid(c.Path, ErrRequired, "enter a %s", c.Primitive)
		}
		f, err := strconv.ParseFloat(text, c.Primitive.Bits())
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return nil, invalid(c.Path, ErrOutOfRange, "%s does not fit in %s", text, c.Primitive)
			}
			return nil, invalid(c.Path, ErrInvalid, "%q is not a number", text)
		}
		if c.Primitive == idl.F32 {
			return float32(f), nil
		}
		return f, nil

	case KindPubkey:
		if text == "" {
			return nil, invalid(c.Path, ErrRequired, "enter a public key")
		}
		raw, err := base58.Decode(text)
		if err != nil {
			return nil, invalid(c.Path, ErrInvalid, "%q is not base58", text)
		}
		if len(raw) != pubkeyLen {
			return nil, invalid(c.Path, ErrInvalid, "decodes to %d bytes, a public key has %d", len(raw), pubkeyLen)
		}
		return solana.PublicKeyFromBytes(raw).String(), nil

	case KindBytes:
		return parseBytes(c.Path, text)
	}
	return nil, invalid(c.Path, ErrWrongControl, "%s control has no text value", c.Kind)
}

// parseBytes accepts 0x-prefixed hex or base64.
func parseBytes(path, text string) ([]byte, error) {
	if text == "" {
		return []byte{}, nil
	}
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		b, err := hex.DecodeString(text[2:])
		if err != nil {
			return nil, invalid(path, ErrInvalid, "bad hex: %v", err)
		}
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, invalid(path, ErrInvalid, "expected base64 or 0x-prefixed hex")
	}
	return b, nil
}

func nativeInt(p idl.Primitive, n *big.Int) any {
	switch p {
	case idl.U8:
		return uint8(n.Uint64())
	case idl.U16:
		return uint16(n.Uint64())
	case idl.U32:
		return uint32(n.Uint64())
	case idl.U64:
		return n.Uint64()
	case idl.I8:
		return int8(n.Int64())
	case idl.I16:
		return int16(n.Int64())
	case idl.I32:
		return int32(n.Int64())
	case idl.I64:
		return n.Int64()
	}
	return n
}

// SetValue fills the tree from a loose value: a decoded value, or JSON
// decoded with UseNumber. Enums accept a variant name, codec.EnumValue,
// {"variant": name, "fields": {...}} or Anchor's {"Name": {...}} form.
func (c *Control) SetValue(v any) error {
	switch c.Kind {
	case KindBool:
		switch b := v.(type) {
		case bool:
			c.Bool = b
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return invalid(c.Path, ErrInvalid, "%q is not true or false", b)
			}
			c.Bool = parsed
		default:
			return invalid(c.Path, ErrInvalid, "expected true or false, got %T", v)
		}
		return nil

	case KindOption:
		if v == nil {
			return c.SetPresent(false)
		}
		if err := c.SetPresent(true); err != nil {
			return err
		}
		return c.Inner.SetValue(v)

	case KindVec, KindArray:
		items, ok := v.([]any)
		if !ok {
			return invalid(c.Path, ErrInvalid, "expected a list, got %T", v)
		}
		if c.Kind == KindArray && len(items) != c.Len {
			return invalid(c.Path, ErrFixedLength, "expected %d items, got %d", c.Len, len(items))
		}
		if err := c.Resize(len(items)); err != nil {
			return err
		}
		var errs error
		for i, item := range items {
			errs = multierr.Append(errs, c.Items[i].SetValue(item))
		}
		return errs

	case KindStruct:
		m, ok := asMap(v)
		if !ok {
			return invalid(c.Path, ErrInvalid, "expected an object, got %T", v)
		}
		return setFields(c.Fields, m)

	case KindEnum:
		return c.setEnum(v)
	}
	return c.setScalar(v)
}

func setFields(controls []*Control, m map[string]any) error {
	var errs error
	for _, f := range controls {
		if fv, ok := m[f.Label]; ok {
			errs = multierr.Append(errs, f.SetValue(fv))
		}
	}
	return errs
}

func (c *Control) setEnum(v any) error {
	var name string
	var fields any
	switch x := v.(type) {
	case string:
		name = x
	case codec.EnumValue:
		name = x.Variant
		if x.Fields != nil {
			fields = map[string]any(x.Fields)
		}
	case *codec.EnumValue:
		name = x.Variant
		if x.Fields != nil {
			fields = map[string]any(x.Fields)
		}
	default:
		m, ok := asMap(v)
		if !ok {
			return invalid(c.Path, ErrInvalid, "expected a variant, got %T", v)
		}
		if vn, ok := m["variant"].(string); ok {
			name, fields = vn, m["fields"]
		} else if len(m) == 1 {
			for k, fv := range m {
				name, fields = k, fv
			}
		} else {
			return invalid(c.Path, ErrInvalid, "expected a single variant key")
		}
	}

	if err := c.SelectVariant(name); err != nil {
		// IDLs and JSON clients disagree on variant casing
		folded, ok := c.variantFold(name)
		if !ok {
			return err
		}
		if err := c.SelectVariant(folded); err != nil {
			return err
		}
	}
	if fields == nil {
		return nil
	}
	switch f := fields.(type) {
	case []any:
		if len(f) != len(c.Variant) {
			return invalid(c.Path, ErrInvalid, "variant %s takes %d fields, got %d", name, len(c.Variant), len(f))
		}
		var errs error
		for i, fv := range f {
			errs = multierr.Append(errs, c.Variant[i].SetValue(fv))
		}
		return errs
	default:
		m, ok := asMap(fields)
		if !ok {
			return invalid(c.Path, ErrInvalid, "variant fields must be an object or list, got %T", fields)
		}
		return setFields(c.Variant, m)
	}
}

func (c *Control) variantFold(name string) (string, bool) {
	for _, v := range c.VariantNames() {
		if strings.EqualFold(v, name) {
			return v, true
		}
	}
	return "", false
}

func (c *Control) setScalar(v any) error {
	var text string
	switch x := v.(type) {
	case string:
		text = x
	case json.Number:
		text = x.String()
	case *big.Int:
		text = x.String()
	case float64:
		text = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		text = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		text = fmt.Sprint(x)
	case solana.PublicKey:
		text = x.String()
	case []byte:
		text = base64.StdEncoding.EncodeToString(x)
	default:
		return invalid(c.Path, ErrInvalid, "cannot use %T as %s", v, c.Kind)
	}
	return c.SetText(text)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case codec.Fields:
		return m, true
	}
	return nil, false
}
