package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"anchor-studio/idl"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/multierr"
)

// AccountInput is the address entered for one instruction account.
type AccountInput struct {
	Spec idl.AccountSpec
	Text string
	// Source records who filled the field: "user" or the auto-fill rule.
	Source string
}

// Path is the validation path of the account field.
func (a *AccountInput) Path() string { return "accounts." + a.Spec.Name }

// Key parses the entered address. ok is false when the field is empty.
func (a *AccountInput) Key() (key solana.PublicKey, ok bool, err error) {
	text := strings.TrimSpace(a.Text)
	if text == "" {
		if a.Spec.IsOptional {
			return solana.PublicKey{}, false, nil
		}
		return solana.PublicKey{}, false, invalid(a.Path(), ErrRequired, "enter the %s address", a.Spec.Name)
	}
	key, err = solana.PublicKeyFromBase58(text)
	if err != nil {
		return solana.PublicKey{}, false, invalid(a.Path(), ErrInvalid, "%q is not a public key", text)
	}
	return key, true, nil
}

// InstructionForm collects the arguments and accounts of one instruction.
type InstructionForm struct {
	Instruction *idl.InstructionDef
	Args        []*Control
	Accounts    []*AccountInput
}

// NewInstructionForm builds a form for the named instruction.
func NewInstructionForm(s *idl.Schema, name string) (*InstructionForm, error) {
	ix, ok := s.Instruction(name)
	if !ok {
		return nil, &idl.SchemaError{Path: "instructions." + name, Err: idl.ErrNotFound, Msg: "no such instruction"}
	}
	args, err := buildFields(s, "", ix.Args)
	if err != nil {
		return nil, err
	}
	f := &InstructionForm{Instruction: ix, Args: args}
	for _, spec := range ix.Accounts {
		f.Accounts = append(f.Accounts, &AccountInput{Spec: spec})
	}
	return f, nil
}

// Arg returns the control for an argument.
func (f *InstructionForm) Arg(name string) *Control {
	for _, c := range f.Args {
		if c.Label == name {
			return c
		}
	}
	return nil
}

// Account returns the input for an account.
func (f *InstructionForm) Account(name string) *AccountInput {
	for _, a := range f.Accounts {
		if a.Spec.Name == name {
			return a
		}
	}
	return nil
}

// SetAccount enters an address by hand.
func (f *InstructionForm) SetAccount(name, text string) error {
	a := f.Account(name)
	if a == nil {
		return invalid("accounts."+name, ErrInvalid, "instruction %s has no account %q", f.Instruction.Name, name)
	}
	a.Text, a.Source = text, "user"
	if strings.TrimSpace(text) == "" {
		a.Source = ""
	}
	_, _, err := a.Key()
	return err
}

// Prefill sets an account the user has not filled yet. It reports whether
// the value was taken.
func (f *InstructionForm) Prefill(name string, key solana.PublicKey, source string) bool {
	a := f.Account(name)
	if a == nil || a.Source == "user" {
		return false
	}
	a.Text, a.Source = key.String(), source
	return true
}

// Validate checks all arguments and accounts.
func (f *InstructionForm) Validate() error {
	var errs error
	for _, c := range f.Args {
		errs = multierr.Append(errs, c.Validate())
	}
	for _, a := range f.Accounts {
		if _, _, err := a.Key(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Values returns the argument values keyed by name, ready for encoding.
func (f *InstructionForm) Values() (map[string]any, error) {
	var errs error
	for _, c := range f.Args {
		errs = multierr.Append(errs, c.Validate())
	}
	if errs != nil {
		return nil, errs
	}
	fields, err := fieldValues(f.Args)
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// PartialValues returns the arguments that are currently valid, for
// deriving addresses before the form is complete.
func (f *InstructionForm) PartialValues() map[string]any {
	out := make(map[string]any)
	for _, c := range f.Args {
		if c.Validate() != nil {
			continue
		}
		if v, err := c.value(); err == nil {
			out[c.Label] = v
		}
	}
	return out
}

// AccountKeys returns the filled accounts. Empty optional accounts are
// left out.
func (f *InstructionForm) AccountKeys() (map[string]solana.PublicKey, error) {
	out := make(map[string]solana.PublicKey, len(f.Accounts))
	var errs error
	for _, a := range f.Accounts {
		key, ok, err := a.Key()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			out[a.Spec.Name] = key
		}
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// PartialAccountKeys returns the accounts whose addresses currently parse.
func (f *InstructionForm) PartialAccountKeys() map[string]solana.PublicKey {
	out := make(map[string]solana.PublicKey)
	for _, a := range f.Accounts {
		if a.Source == "" {
			continue
		}
		if key, ok, err := a.Key(); err == nil && ok {
			out[a.Spec.Name] = key
		}
	}
	return out
}

type argumentFile struct {
	Args     map[string]any
	Accounts map[string]string
}

// ImportJSON fills the form from {"args": {...}, "accounts": {...}}. A plain
// object without those keys is taken as the arguments. Numbers keep their
// full precision.
func (f *InstructionForm) ImportJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("invalid argument file: %w", err)
	}

	file := argumentFile{Args: raw}
	_, hasArgs := raw["args"]
	_, hasAccounts := raw["accounts"]
	if hasArgs || hasAccounts {
		file.Args, _ = raw["args"].(map[string]any)
		if accounts, ok := raw["accounts"].(map[string]any); ok {
			file.Accounts = make(map[string]string, len(accounts))
			for name, v := range accounts {
				s, ok := v.(string)
				if !ok {
					return invalid("accounts."+name, ErrInvalid, "address must be a string")
				}
				file.Accounts[name] = s
			}
		}
	}

	var errs error
	for name, v := range file.Args {
		c := f.Arg(name)
		if c == nil {
			errs = multierr.Append(errs, invalid(name, ErrInvalid, "instruction %s has no argument %q", f.Instruction.Name, name))
			continue
		}
		errs = multierr.Append(errs, c.SetValue(v))
	}
	for name, text := range file.Accounts {
		errs = multierr.Append(errs, f.SetAccount(name, text))
	}
	return errs
}
