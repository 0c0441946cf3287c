package form

import (
	"fmt"
	"strings"

	"anchor-studio/idl"
)

// Kind is the input a control presents, one per resolved type shape.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindBool
	KindString
	KindPubkey
	KindBytes
	KindOption
	KindVec
	KindArray
	KindStruct
	KindEnum
)

var kindNames = [...]string{
	KindInteger: "integer",
	KindFloat:   "float",
	KindBool:    "bool",
	KindString:  "string",
	KindPubkey:  "pubkey",
	KindBytes:   "bytes",
	KindOption:  "option",
	KindVec:     "vec",
	KindArray:   "array",
	KindStruct:  "struct",
	KindEnum:    "enum",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsScalar reports whether the control takes a single text value.
func (k Kind) IsScalar() bool {
	switch k {
	case KindInteger, KindFloat, KindString, KindPubkey, KindBytes:
		return true
	}
	return false
}

// Control is one node of a form. Scalars hold the text the user typed;
// compound controls hold child controls. Nothing is parsed until Validate
// or Value is called.
type Control struct {
	Path  string
	Label string
	// Type is the reference the control was built from, before resolution.
	Type      idl.TypeRef
	Kind      Kind
	Primitive idl.Primitive
	Docs      []string

	Text string
	Bool bool

	// option
	Present bool
	Inner   *Control

	// vec and array
	Elem  idl.TypeRef
	Len   int
	Items []*Control

	// struct
	Fields []*Control

	// enum; Selected is -1 until a variant is chosen
	Enum     *idl.Enum
	Selected int
	Variant  []*Control

	schema *idl.Schema
}

// Build creates the control tree for a value of type t. Defined types are
// resolved against s; option contents are built when first switched on.
func Build(s *idl.Schema, path string, t idl.TypeRef) (*Control, error) {
	return build(s, path, label(path), t)
}

func label(path string) string {
	if i := strings.LastIndexAny(path, ".["); i >= 0 {
		if path[i] == '[' {
			return path[i:]
		}
		return path[i+1:]
	}
	return path
}

func build(s *idl.Schema, path, lbl string, t idl.TypeRef) (*Control, error) {
	c := &Control{Path: path, Label: lbl, Type: t, Selected: -1, schema: s}

	switch tt := t.(type) {
	case idl.Primitive:
		c.Primitive = tt
		switch {
		case tt.IsInteger():
			c.Kind = KindInteger
		case tt.IsFloat():
			c.Kind = KindFloat
		case tt == idl.Bool:
			c.Kind = KindBool
		case tt == idl.String:
			c.Kind = KindString
		case tt == idl.Pubkey:
			c.Kind = KindPubkey
		case tt == idl.Bytes:
			c.Kind = KindBytes
		default:
			return nil, &idl.SchemaError{Path: path, Err: idl.ErrUnknownType, Msg: fmt.Sprintf("no control for primitive %q", string(tt))}
		}

	case idl.Option:
		c.Kind = KindOption
		c.Elem = tt.Elem

	case idl.Vec:
		c.Kind = KindVec
		c.Elem = tt.Elem

	case idl.Array:
		if n := fixedControls(s, tt); tt.Len > idl.MaxArrayLen || n > maxControls {
			return nil, &idl.SchemaError{Path: path, Err: idl.ErrUnsupportedType, Msg: fmt.Sprintf("%s needs %d controls, limit is %d", tt, n, maxControls)}
		}
		c.Kind = KindArray
		c.Elem = tt.Elem
		c.Len = tt.Len
		c.Items = make([]*Control, tt.Len)
		for i := range c.Items {
			item, err := build(s, itemPath(path, i), fmt.Sprintf("[%d]", i), tt.Elem)
			if err != nil {
				return nil, err
			}
			c.Items[i] = item
		}

	case idl.Defined:
		resolved, err := s.Resolve(tt)
		if err != nil {
			return nil, err
		}
		rc, err := build(s, path, lbl, resolved)
		if err != nil {
			return nil, err
		}
		rc.Type = tt
		return rc, nil

	case *idl.Struct:
		c.Kind = KindStruct
		fields, err := buildFields(s, path, tt.Fields)
		if err != nil {
			return nil, err
		}
		c.Fields = fields

	case *idl.Enum:
		c.Kind = KindEnum
		c.Enum = tt

	default:
		return nil, &idl.SchemaError{Path: path, Err: idl.ErrUnsupportedType, Msg: fmt.Sprintf("no control for %T", t)}
	}
	return c, nil
}

// maxControls caps the controls one fixed array may expand into.
const maxControls = 1 << 18

// fixedControls counts the controls build creates up front for t, saturating
// past maxControls. Option, vec and enum contents are built on demand.
func fixedControls(s *idl.Schema, t idl.TypeRef) int {
	switch tt := t.(type) {
	case idl.Array:
		elem := fixedControls(s, tt.Elem)
		if tt.Len > 0 && elem > maxControls/tt.Len {
			return maxControls + 1
		}
		return 1 + tt.Len*elem
	case idl.Defined:
		rt, err := s.Resolve(tt)
		if err != nil {
			return 1
		}
		return fixedControls(s, rt)
	case *idl.Struct:
		n := 1
		for _, f := range tt.Fields {
			if n += fixedControls(s, f.Type); n > maxControls {
				return maxControls + 1
			}
		}
		return n
	}
	return 1
}

func buildFields(s *idl.Schema, path string, fields []idl.Field) ([]*Control, error) {
	out := make([]*Control, len(fields))
	for i, f := range fields {
		fc, err := build(s, joinPath(path, f.Name), f.Name, f.Type)
		if err != nil {
			return nil, err
		}
		fc.Docs = f.Docs
		out[i] = fc
	}
	return out, nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func itemPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}

// Field returns the struct or variant field control with the given name.
func (c *Control) Field(name string) *Control {
	for _, f := range c.Fields {
		if f.Label == name {
			return f
		}
	}
	for _, f := range c.Variant {
		if f.Label == name {
			return f
		}
	}
	return nil
}

// SetText stores the text of a scalar control and reports whether it is
// valid. The text is kept either way.
func (c *Control) SetText(text string) error {
	if !c.Kind.IsScalar() {
		return invalid(c.Path, ErrWrongControl, "%s control takes no text", c.Kind)
	}
	c.Text = text
	_, err := c.scalar()
	return err
}

// SetBool sets a bool control.
func (c *Control) SetBool(b bool) error {
	if c.Kind != KindBool {
		return invalid(c.Path, ErrWrongControl, "%s control is not a toggle", c.Kind)
	}
	c.Bool = b
	return nil
}

// SetPresent toggles an option. Its inner control is created the first time
// it is switched on and kept when switched off.
func (c *Control) SetPresent(present bool) error {
	if c.Kind != KindOption {
		return invalid(c.Path, ErrWrongControl, "%s control is not optional", c.Kind)
	}
	if present && c.Inner == nil {
		inner, err := build(c.schema, c.Path, c.Label, c.Elem)
		if err != nil {
			return err
		}
		c.Inner = inner
	}
	c.Present = present
	return nil
}

// AddItem appends a row to a vec control.
func (c *Control) AddItem() (*Control, error) {
	if c.Kind == KindArray {
		return nil, invalid(c.Path, ErrFixedLength, "array has exactly %d items", c.Len)
	}
	if c.Kind != KindVec {
		return nil, invalid(c.Path, ErrWrongControl, "%s control has no items", c.Kind)
	}
	i := len(c.Items)
	item, err := build(c.schema, itemPath(c.Path, i), fmt.Sprintf("[%d]", i), c.Elem)
	if err != nil {
		return nil, err
	}
	c.Items = append(c.Items, item)
	return item, nil
}

// RemoveItem deletes row i of a vec control. Later rows are renumbered.
func (c *Control) RemoveItem(i int) error {
	if c.Kind == KindArray {
		return invalid(c.Path, ErrFixedLength, "array has exactly %d items", c.Len)
	}
	if c.Kind != KindVec {
		return invalid(c.Path, ErrWrongControl, "%s control has no items", c.Kind)
	}
	if i < 0 || i >= len(c.Items) {
		return invalid(c.Path, ErrOutOfRange, "no item %d", i)
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	for j := i; j < len(c.Items); j++ {
		c.Items[j].renumber(itemPath(c.Path, j), fmt.Sprintf("[%d]", j))
	}
	return nil
}

// Resize grows or shrinks a vec control to n rows.
func (c *Control) Resize(n int) error {
	if c.Kind != KindVec && c.Kind != KindArray {
		return invalid(c.Path, ErrWrongControl, "%s control has no items", c.Kind)
	}
	if n < 0 {
		return invalid(c.Path, ErrOutOfRange, "negative length %d", n)
	}
	if c.Kind == KindArray {
		if n == c.Len {
			return nil
		}
		return invalid(c.Path, ErrFixedLength, "array has exactly %d items", c.Len)
	}
	for len(c.Items) < n {
		if _, err := c.AddItem(); err != nil {
			return err
		}
	}
	if len(c.Items) > n {
		c.Items = c.Items[:n]
	}
	return nil
}

func (c *Control) renumber(path, lbl string) {
	old := c.Path
	c.Path, c.Label = path, lbl
	c.walk(func(child *Control) {
		child.Path = path + strings.TrimPrefix(child.Path, old)
	})
}

// walk visits every descendant, not c itself.
func (c *Control) walk(fn func(*Control)) {
	var children []*Control
	if c.Inner != nil {
		children = append(children, c.Inner)
	}
	children = append(children, c.Items...)
	children = append(children, c.Fields...)
	children = append(children, c.Variant...)
	for _, child := range children {
		fn(child)
		child.walk(fn)
	}
}

// SelectVariant picks an enum variant by name and swaps in a fresh sub-form
// for its fields.
func (c *Control) SelectVariant(name string) error {
	if c.Kind != KindEnum {
		return invalid(c.Path, ErrWrongControl, "%s control has no variants", c.Kind)
	}
	v, idx, ok := c.Enum.Variant(name)
	if !ok {
		return invalid(c.Path, ErrInvalid, "%s has no variant %q", c.Enum.Name, name)
	}
	fields, err := buildFields(c.schema, c.Path, v.Fields)
	if err != nil {
		return err
	}
	c.Selected = idx
	c.Variant = fields
	return nil
}

// VariantNames lists the variants of an enum control in declaration order.
func (c *Control) VariantNames() []string {
	if c.Enum == nil {
		return nil
	}
	names := make([]string, len(c.Enum.Variants))
	for i, v := range c.Enum.Variants {
		names[i] = v.Name
	}
	return names
}

// SelectedVariant returns the chosen variant name, or "".
func (c *Control) SelectedVariant() string {
	if c.Enum == nil || c.Selected < 0 {
		return ""
	}
	return c.Enum.Variants[c.Selected].Name
}
