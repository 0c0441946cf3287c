package idl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Raw JSON shapes. Both the legacy layout (isMut/isSigner, "publicKey",
// defined as a string, inline event fields) and the 0.30+ layout
// (writable/signer, "pubkey", defined as an object, explicit
// discriminators, field lists kept under types) are accepted.

type rawIDL struct {
	Version      string           `json:"version"`
	Name         string           `json:"name"`
	Address      string           `json:"address"`
	Metadata     *rawMetadata     `json:"metadata"`
	Instructions []rawInstruction `json:"instructions"`
	Accounts     []rawAccountDef  `json:"accounts"`
	Events       []rawEvent       `json:"events"`
	Types        []rawTypeDef     `json:"types"`
	Errors       []ErrorDef       `json:"errors"`
}

type rawMetadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Spec        string `json:"spec"`
	Description string `json:"description"`
	Address     string `json:"address"`
}

type rawInstruction struct {
	Name          string           `json:"name"`
	Docs          []string         `json:"docs"`
	Discriminator []int            `json:"discriminator"`
	Accounts      []rawAccountItem `json:"accounts"`
	Args          []rawField       `json:"args"`
}

type rawAccountItem struct {
	Name string   `json:"name"`
	Docs []string `json:"docs"`

	IsMut      bool `json:"isMut"`
	IsSigner   bool `json:"isSigner"`
	IsOptional bool `json:"isOptional"`

	Writable bool `json:"writable"`
	Signer   bool `json:"signer"`
	Optional bool `json:"optional"`

	Address string  `json:"address"`
	PDA     *rawPDA `json:"pda"`

	// Set on composite account groups.
	Accounts []rawAccountItem `json:"accounts"`
}

type rawPDA struct {
	Seeds   []rawSeed `json:"seeds"`
	Program *rawSeed  `json:"program"`
}

type rawSeed struct {
	Kind  string `json:"kind"`
	Value []int  `json:"value"`
	Path  string `json:"path"`
}

type rawAccountDef struct {
	Name          string       `json:"name"`
	Docs          []string     `json:"docs"`
	Discriminator []int        `json:"discriminator"`
	Type          *rawTypeBody `json:"type"`
}

type rawEvent struct {
	Name          string          `json:"name"`
	Discriminator []int           `json:"discriminator"`
	Fields        json.RawMessage `json:"fields"`
}

type rawTypeDef struct {
	Name string      `json:"name"`
	Docs []string    `json:"docs"`
	Type rawTypeBody `json:"type"`
}

type rawTypeBody struct {
	Kind     string          `json:"kind"`
	Fields   json.RawMessage `json:"fields"`
	Variants []rawVariant    `json:"variants"`
	Alias    json.RawMessage `json:"alias"`
	Value    json.RawMessage `json:"value"`
}

type rawVariant struct {
	Name   string          `json:"name"`
	Fields json.RawMessage `json:"fields"`
}

type rawField struct {
	Name string          `json:"name"`
	Docs []string        `json:"docs"`
	Type json.RawMessage `json:"type"`
}

// Parse decodes and validates an IDL document. Any syntax error, unknown
// primitive, dangling defined reference or cyclic type produces a
// *SchemaError; a returned schema is fully resolvable.
func Parse(data []byte) (*Schema, error) {
	var raw rawIDL
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, schemaErr("", ErrInvalidJSON, "error unmarshalling IDL JSON: %v", err)
	}

	s := &Schema{
		Name:    raw.Name,
		Version: raw.Version,
		Address: raw.Address,
		Errors:  raw.Errors,
		types:   make(map[string]*TypeDef),
		raw:     append([]byte(nil), data...),
	}
	if raw.Metadata != nil {
		if s.Name == "" {
			s.Name = raw.Metadata.Name
		}
		if s.Version == "" {
			s.Version = raw.Metadata.Version
		}
		if s.Address == "" {
			s.Address = raw.Metadata.Address
		}
		s.Spec = raw.Metadata.Spec
	}

	for i, rt := range raw.Types {
		path := fmt.Sprintf("types[%d]", i)
		if rt.Name == "" {
			return nil, schemaErr(path, ErrMissingDef, "type has no name")
		}
		td, err := parseTypeDef(rt.Name, rt.Docs, rt.Type, "types."+rt.Name)
		if err != nil {
			return nil, err
		}
		if err := s.addType(td, path); err != nil {
			return nil, err
		}
	}

	for _, ra := range raw.Accounts {
		path := "accounts." + ra.Name
		// Legacy IDLs carry the account layout inline.
		if ra.Type != nil && ra.Type.Kind != "" {
			td, err := parseTypeDef(ra.Name, ra.Docs, *ra.Type, path)
			if err != nil {
				return nil, err
			}
			if _, exists := s.types[ra.Name]; !exists {
				if err := s.addType(td, path); err != nil {
					return nil, err
				}
			}
		}
		disc, err := explicitDiscriminator(ra.Discriminator, path)
		if err != nil {
			return nil, err
		}
		if disc == nil {
			disc = ComputeDiscriminator(NamespaceAccount, ra.Name)
		}
		s.Accounts = append(s.Accounts, AccountDef{Name: ra.Name, Docs: ra.Docs, Discriminator: disc})
	}

	for _, re := range raw.Events {
		path := "events." + re.Name
		ev := EventDef{Name: re.Name}
		if len(re.Fields) > 0 && string(re.Fields) != "null" {
			fields, _, err := parseFields(re.Fields, path+".fields")
			if err != nil {
				return nil, err
			}
			ev.Fields = fields
		} else if td, ok := s.types[re.Name]; ok {
			if td.Kind != KindStruct {
				return nil, schemaErr(path, ErrUnsupportedType, "event type %q is a %s, not a struct", re.Name, td.Kind)
			}
			ev.Fields = td.Fields
		} else {
			return nil, schemaErr(path, ErrMissingDef, "event %q has no field definition", re.Name)
		}
		disc, err := explicitDiscriminator(re.Discriminator, path)
		if err != nil {
			return nil, err
		}
		if disc == nil {
			disc = ComputeDiscriminator(NamespaceEvent, re.Name)
		}
		ev.Discriminator = disc
		s.Events = append(s.Events, ev)
	}

	for _, ri := range raw.Instructions {
		path := "instructions." + ri.Name
		ix := InstructionDef{Name: ri.Name, Docs: ri.Docs}
		for _, rf := range ri.Args {
			f, err := parseField(rf, path+".args."+rf.Name)
			if err != nil {
				return nil, err
			}
			ix.Args = append(ix.Args, f)
		}
		ix.Accounts = flattenAccounts(ri.Accounts, nil)
		disc, err := explicitDiscriminator(ri.Discriminator, path)
		if err != nil {
			return nil, err
		}
		if disc == nil {
			disc = ComputeDiscriminator(NamespaceGlobal, SnakeCase(ri.Name))
		}
		ix.Discriminator = disc
		s.Instructions = append(s.Instructions, ix)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) addType(td *TypeDef, path string) error {
	if _, exists := s.types[td.Name]; exists {
		return schemaErr(path, ErrDuplicate, "type %q defined twice", td.Name)
	}
	s.types[td.Name] = td
	s.typeOrder = append(s.typeOrder, td.Name)
	return nil
}

func explicitDiscriminator(raw []int, path string) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, schemaErr(path+".discriminator", ErrInvalidJSON, "byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// flattenAccounts walks composite account groups depth-first so the result
// lines up with the instruction's positional account keys.
func flattenAccounts(items []rawAccountItem, out []AccountSpec) []AccountSpec {
	for _, it := range items {
		if len(it.Accounts) > 0 {
			out = flattenAccounts(it.Accounts, out)
			continue
		}
		spec := AccountSpec{
			Name:       it.Name,
			Docs:       it.Docs,
			IsMut:      it.IsMut || it.Writable,
			IsSigner:   it.IsSigner || it.Signer,
			IsOptional: it.IsOptional || it.Optional,
			Address:    it.Address,
		}
		if it.PDA != nil {
			spec.PDA = &PDA{}
			for _, rs := range it.PDA.Seeds {
				spec.PDA.Seeds = append(spec.PDA.Seeds, convertSeed(rs))
			}
			if it.PDA.Program != nil {
				prog := convertSeed(*it.PDA.Program)
				spec.PDA.Program = &prog
			}
		}
		out = append(out, spec)
	}
	return out
}

func convertSeed(rs rawSeed) Seed {
	seed := Seed{Kind: SeedKind(rs.Kind), Path: rs.Path}
	if len(rs.Value) > 0 {
		seed.Value = make([]byte, len(rs.Value))
		for i, v := range rs.Value {
			seed.Value[i] = byte(v)
		}
	}
	return seed
}

func parseTypeDef(name string, docs []string, body rawTypeBody, path string) (*TypeDef, error) {
	td := &TypeDef{Name: name, Docs: docs}
	switch body.Kind {
	case "struct":
		td.Kind = KindStruct
		if len(body.Fields) > 0 && string(body.Fields) != "null" {
			fields, tuple, err := parseFields(body.Fields, path+".fields")
			if err != nil {
				return nil, err
			}
			td.Fields, td.Tuple = fields, tuple
		}
	case "enum":
		td.Kind = KindEnum
		for _, rv := range body.Variants {
			v := Variant{Name: rv.Name}
			if len(rv.Fields) > 0 && string(rv.Fields) != "null" {
				fields, tuple, err := parseFields(rv.Fields, path+".variants."+rv.Name)
				if err != nil {
					return nil, err
				}
				v.Fields, v.Tuple = fields, tuple
			}
			td.Variants = append(td.Variants, v)
		}
	case "type", "alias":
		td.Kind = KindAlias
		raw := body.Alias
		if len(raw) == 0 {
			raw = body.Value
		}
		t, err := parseTypeRef(raw, path+".alias")
		if err != nil {
			return nil, err
		}
		td.Alias = t
	default:
		return nil, schemaErr(path, ErrUnsupportedType, "unknown type kind %q", body.Kind)
	}
	return td, nil
}

// parseFields accepts both named field lists and tuple lists of bare types.
// Tuple members are named by position.
func parseFields(raw json.RawMessage, path string) ([]Field, bool, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, schemaErr(path, ErrInvalidJSON, "fields must be an array: %v", err)
	}
	fields := make([]Field, 0, len(items))
	tuple := false
	for i, item := range items {
		var rf rawField
		if err := json.Unmarshal(item, &rf); err == nil && rf.Name != "" && len(rf.Type) > 0 {
			f, err := parseField(rf, path+"."+rf.Name)
			if err != nil {
				return nil, false, err
			}
			fields = append(fields, f)
			continue
		}
		t, err := parseTypeRef(item, path+"."+strconv.Itoa(i))
		if err != nil {
			return nil, false, err
		}
		tuple = true
		fields = append(fields, Field{Name: strconv.Itoa(i), Type: t})
	}
	return fields, tuple, nil
}

func parseField(rf rawField, path string) (Field, error) {
	t, err := parseTypeRef(rf.Type, path)
	if err != nil {
		return Field{}, err
	}
	return Field{Name: rf.Name, Type: t, Docs: rf.Docs}, nil
}

func parseTypeRef(raw json.RawMessage, path string) (TypeRef, error) {
	if len(raw) == 0 {
		return nil, schemaErr(path, ErrMissingDef, "missing type")
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if p, ok := LookupPrimitive(name); ok {
			return p, nil
		}
		return nil, schemaErr(path, ErrUnknownType, "unknown primitive %q", name)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, schemaErr(path, ErrInvalidJSON, "type must be a string or an object")
	}

	if inner, ok := obj["option"]; ok {
		elem, err := parseTypeRef(inner, path+"<option>")
		if err != nil {
			return nil, err
		}
		return Option{Elem: elem}, nil
	}
	if inner, ok := obj["vec"]; ok {
		elem, err := parseTypeRef(inner, path+"<vec>")
		if err != nil {
			return nil, err
		}
		return Vec{Elem: elem}, nil
	}
	if inner, ok := obj["array"]; ok {
		var parts []json.RawMessage
		if err := json.Unmarshal(inner, &parts); err != nil || len(parts) != 2 {
			return nil, schemaErr(path, ErrInvalidJSON, "array must be [type, length]")
		}
		elem, err := parseTypeRef(parts[0], path+"<array>")
		if err != nil {
			return nil, err
		}
		var n int
		if err := json.Unmarshal(parts[1], &n); err != nil {
			return nil, schemaErr(path, ErrUnsupportedType, "array length must be a constant integer")
		}
		if n < 0 {
			return nil, schemaErr(path, ErrInvalidJSON, "negative array length %d", n)
		}
		if n > MaxArrayLen {
			return nil, schemaErr(path, ErrUnsupportedType, "array length %d exceeds %d", n, MaxArrayLen)
		}
		return Array{Elem: elem, Len: n}, nil
	}
	if inner, ok := obj["defined"]; ok {
		var ref string
		if err := json.Unmarshal(inner, &ref); err != nil {
			var named struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(inner, &named); err != nil {
				return nil, schemaErr(path, ErrInvalidJSON, "malformed defined reference")
			}
			ref = named.Name
		}
		if ref == "" {
			return nil, schemaErr(path, ErrInvalidJSON, "defined reference has no name")
		}
		return Defined{Name: ref}, nil
	}

	for k := range obj {
		return nil, schemaErr(path, ErrUnsupportedType, "unsupported type constructor %q", k)
	}
	return nil, schemaErr(path, ErrInvalidJSON, "empty type object")
}
