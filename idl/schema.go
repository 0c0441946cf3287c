package idl

import (
	"bytes"
	"fmt"
)

// Schema is a validated, immutable view of a program IDL. Every Defined
// reference reachable from it resolves and no type refers to itself.
type Schema struct {
	Name    string
	Version string
	Spec    string
	Address string

	Instructions []InstructionDef
	Accounts     []AccountDef
	Events       []EventDef
	Errors       []ErrorDef

	types     map[string]*TypeDef
	typeOrder []string
	raw       []byte
}

// InstructionDef describes one callable instruction.
type InstructionDef struct {
	Name          string
	Docs          []string
	Discriminator []byte
	Args          []Field
	Accounts      []AccountSpec
}

// AccountSpec is one positional account an instruction expects.
type AccountSpec struct {
	Name       string
	Docs       []string
	IsSigner   bool
	IsMut      bool
	IsOptional bool
	// Address is set when the IDL pins the account to a fixed key.
	Address string
	PDA     *PDA
}

type SeedKind string

const (
	SeedConst   SeedKind = "const"
	SeedArg     SeedKind = "arg"
	SeedAccount SeedKind = "account"
)

// Seed is one component of a program derived address.
type Seed struct {
	Kind  SeedKind
	Value []byte
	Path  string
}

// PDA describes how an account address is derived. A nil Program means the
// schema's own program.
type PDA struct {
	Seeds   []Seed
	Program *Seed
}

// AccountDef is a program-owned account kind. Its layout lives in the type
// table under the same name.
type AccountDef struct {
	Name          string
	Docs          []string
	Discriminator []byte
}

// EventDef is an event the program emits via logs or self-CPI.
type EventDef struct {
	Name          string
	Discriminator []byte
	Fields        []Field
}

type ErrorDef struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// Raw returns the document the schema was parsed from.
func (s *Schema) Raw() []byte { return s.raw }

// Instruction looks up an instruction by name.
func (s *Schema) Instruction(name string) (*InstructionDef, bool) {
	for i := range s.Instructions {
		if s.Instructions[i].Name == name {
			return &s.Instructions[i], true
		}
	}
	return nil, false
}

// Event looks up an event by name.
func (s *Schema) Event(name string) (*EventDef, bool) {
	for i := range s.Events {
		if s.Events[i].Name == name {
			return &s.Events[i], true
		}
	}
	return nil, false
}

// Account looks up an account kind by name.
func (s *Schema) Account(name string) (*AccountDef, bool) {
	for i := range s.Accounts {
		if s.Accounts[i].Name == name {
			return &s.Accounts[i], true
		}
	}
	return nil, false
}

// TypeDef looks up a named type.
func (s *Schema) TypeDef(name string) (*TypeDef, bool) {
	td, ok := s.types[name]
	return td, ok
}

// Types returns the type table in declaration order.
func (s *Schema) Types() []*TypeDef {
	out := make([]*TypeDef, 0, len(s.typeOrder))
	for _, n := range s.typeOrder {
		out = append(out, s.types[n])
	}
	return out
}

// AccountFields returns the field layout of an account kind.
func (s *Schema) AccountFields(name string) ([]Field, error) {
	if _, ok := s.Account(name); !ok {
		return nil, schemaErr("accounts."+name, ErrNotFound, "no account kind %q", name)
	}
	td, ok := s.types[name]
	if !ok {
		return nil, schemaErr("accounts."+name, ErrMissingDef, "account %q has no type definition", name)
	}
	if td.Kind != KindStruct {
		return nil, schemaErr("accounts."+name, ErrUnsupportedType, "account %q is a %s, not a struct", name, td.Kind)
	}
	return td.Fields, nil
}

// ErrorByCode finds a program error by its custom error code.
func (s *Schema) ErrorByCode(code int) (*ErrorDef, bool) {
	for i := range s.Errors {
		if s.Errors[i].Code == code {
			return &s.Errors[i], true
		}
	}
	return nil, false
}

// InstructionByDiscriminator returns the instruction whose discriminator
// prefixes data.
func (s *Schema) InstructionByDiscriminator(data []byte) (*InstructionDef, bool) {
	for i := range s.Instructions {
		d := s.Instructions[i].Discriminator
		if len(d) > 0 && bytes.HasPrefix(data, d) {
			return &s.Instructions[i], true
		}
	}
	return nil, false
}

// EventByDiscriminator returns the event whose discriminator prefixes data.
func (s *Schema) EventByDiscriminator(data []byte) (*EventDef, bool) {
	for i := range s.Events {
		d := s.Events[i].Discriminator
		if len(d) > 0 && bytes.HasPrefix(data, d) {
			return &s.Events[i], true
		}
	}
	return nil, false
}

// AccountByDiscriminator returns the account kind whose discriminator
// prefixes data.
func (s *Schema) AccountByDiscriminator(data []byte) (*AccountDef, bool) {
	for i := range s.Accounts {
		d := s.Accounts[i].Discriminator
		if len(d) > 0 && bytes.HasPrefix(data, d) {
			return &s.Accounts[i], true
		}
	}
	return nil, false
}

// Resolve replaces a top-level Defined reference (following aliases) with
// the *Struct or *Enum it names. Other type shapes are returned unchanged;
// nested element types stay unresolved until the caller reaches them.
func (s *Schema) Resolve(t TypeRef) (TypeRef, error) {
	seen := make(map[string]bool)
	for {
		d, ok := t.(Defined)
		if !ok {
			return t, nil
		}
		if seen[d.Name] {
			return nil, schemaErr("types."+d.Name, ErrCyclicType, "alias chain loops back to %q", d.Name)
		}
		seen[d.Name] = true
		td, ok := s.types[d.Name]
		if !ok {
			return nil, schemaErr("", ErrUnknownType, "no type named %q", d.Name)
		}
		switch td.Kind {
		case KindStruct:
			return &Struct{Name: td.Name, Fields: td.Fields}, nil
		case KindEnum:
			return &Enum{Name: td.Name, Variants: td.Variants}, nil
		case KindAlias:
			t = td.Alias
		default:
			return nil, schemaErr("types."+d.Name, ErrUnsupportedType, "unknown kind %q", td.Kind)
		}
	}
}

// validate checks that every defined reference in the schema names a known
// type and that the type graph is acyclic.
func (s *Schema) validate() error {
	for _, name := range s.typeOrder {
		td := s.types[name]
		for _, t := range typeDefRefs(td) {
			if err := s.checkRefs(t, "types."+name); err != nil {
				return err
			}
		}
	}
	for _, ix := range s.Instructions {
		for _, f := range ix.Args {
			if err := s.checkRefs(f.Type, "instructions."+ix.Name+".args."+f.Name); err != nil {
				return err
			}
		}
	}
	for _, ev := range s.Events {
		for _, f := range ev.Fields {
			if err := s.checkRefs(f.Type, "events."+ev.Name+"."+f.Name); err != nil {
				return err
			}
		}
	}
	for _, acc := range s.Accounts {
		if _, err := s.AccountFields(acc.Name); err != nil {
			return err
		}
	}
	return s.checkCycles()
}

func (s *Schema) checkRefs(t TypeRef, path string) error {
	switch v := t.(type) {
	case Option:
		return s.checkRefs(v.Elem, path)
	case Vec:
		return s.checkRefs(v.Elem, path)
	case Array:
		return s.checkRefs(v.Elem, path)
	case Defined:
		if _, ok := s.types[v.Name]; !ok {
			return schemaErr(path, ErrUnknownType, "no type named %q", v.Name)
		}
	}
	return nil
}

const (
	unvisited = iota
	visiting
	done
)

// checkCycles runs a depth-first search over the "refers to" graph of the
// type table. Any back edge is a cycle, including ones that pass through an
// option or vec: such types are well-formed in Rust only behind a Box, which
// the IDL cannot express.
func (s *Schema) checkCycles() error {
	state := make(map[string]int, len(s.types))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return schemaErr("types."+name, ErrCyclicType, "cycle %v -> %s", stack, name)
		case done:
			return nil
		}
		state[name] = visiting
		stack = append(stack, name)
		for _, t := range typeDefRefs(s.types[name]) {
			for _, dep := range definedNames(t, nil) {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, name := range s.typeOrder {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

func typeDefRefs(td *TypeDef) []TypeRef {
	var refs []TypeRef
	for _, f := range td.Fields {
		refs = append(refs, f.Type)
	}
	for _, v := range td.Variants {
		for _, f := range v.Fields {
			refs = append(refs, f.Type)
		}
	}
	if td.Alias != nil {
		refs = append(refs, td.Alias)
	}
	return refs
}

func definedNames(t TypeRef, out []string) []string {
	switch v := t.(type) {
	case Option:
		return definedNames(v.Elem, out)
	case Vec:
		return definedNames(v.Elem, out)
	case Array:
		return definedNames(v.Elem, out)
	case Defined:
		return append(out, v.Name)
	}
	return out
}

func (d InstructionDef) String() string {
	return fmt.Sprintf("%s(%d args, %d accounts)", d.Name, len(d.Args), len(d.Accounts))
}
