package chain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"anchor-studio/codec"
	"anchor-studio/idl"

	"github.com/gagliardetto/solana-go"
)

var ErrMissingAccount = errors.New("missing account")

// AccountSource tells where a resolved account key came from.
type AccountSource string

const (
	SourceUser   AccountSource = "user"
	SourceFixed  AccountSource = "fixed"
	SourcePDA    AccountSource = "pda"
	SourceWallet AccountSource = "wallet"
)

// ResolvedKey is an account key together with its origin.
type ResolvedKey struct {
	Key    solana.PublicKey
	Source AccountSource
}

// signerHints are name fragments that mark a signer slot as the wallet's.
var signerHints = []string{"authority", "payer", "signer"}

const eventAuthoritySeed = "__event_authority"

// ResolveAccounts fills in the accounts of ix that can be known without the
// user: accounts pinned to a fixed address, PDAs whose seeds are all
// available, and signers whose name suggests the wallet. Keys in known always
// win. PDA seeds may reference other accounts, so resolution repeats until
// nothing changes.
func ResolveAccounts(schema *idl.Schema, programID solana.PublicKey, ix *idl.InstructionDef, args map[string]any, known map[string]solana.PublicKey, wallet solana.PublicKey) map[string]ResolvedKey {
	out := make(map[string]ResolvedKey, len(ix.Accounts))
	for name, key := range known {
		out[name] = ResolvedKey{Key: key, Source: SourceUser}
	}

	for changed := true; changed; {
		changed = false
		for _, acc := range ix.Accounts {
			if _, ok := out[acc.Name]; ok {
				continue
			}

			if acc.Address != "" {
				if key, err := solana.PublicKeyFromBase58(acc.Address); err == nil {
					out[acc.Name] = ResolvedKey{Key: key, Source: SourceFixed}
					changed = true
					continue
				}
			}

			if acc.PDA != nil {
				key, err := DerivePDA(schema, programID, ix, acc.PDA, args, out)
				if err == nil {
					out[acc.Name] = ResolvedKey{Key: key, Source: SourcePDA}
					changed = true
					continue
				}
			}

			if key, ok := emitCPIAccount(acc.Name, programID); ok {
				out[acc.Name] = ResolvedKey{Key: key, Source: SourcePDA}
				changed = true
				continue
			}

			if acc.IsSigner && !wallet.IsZero() && isWalletSlot(acc.Name) {
				out[acc.Name] = ResolvedKey{Key: wallet, Source: SourceWallet}
				changed = true
			}
		}
	}
	return out
}

// emitCPIAccount fills the two accounts emit_cpi! appends to an
// instruction when the IDL leaves them unannotated.
func emitCPIAccount(name string, programID solana.PublicKey) (solana.PublicKey, bool) {
	switch idl.SnakeCase(name) {
	case "event_authority":
		key, _, err := solana.FindProgramAddress([][]byte{[]byte(eventAuthoritySeed)}, programID)
		return key, err == nil
	case "program":
		return programID, true
	}
	return solana.PublicKey{}, false
}

func isWalletSlot(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range signerHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// DerivePDA computes the address described by pda. It fails when a seed
// refers to an argument or account that is not yet known.
func DerivePDA(schema *idl.Schema, programID solana.PublicKey, ix *idl.InstructionDef, pda *idl.PDA, args map[string]any, accounts map[string]ResolvedKey) (solana.PublicKey, error) {
	seeds := make([][]byte, 0, len(pda.Seeds))
	for _, seed := range pda.Seeds {
		b, err := seedBytes(schema, ix, seed, args, accounts)
		if err != nil {
			return solana.PublicKey{}, err
		}
		seeds = append(seeds, b)
	}

	program := programID
	if pda.Program != nil {
		b, err := seedBytes(schema, ix, *pda.Program, args, accounts)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("pda program: %w", err)
		}
		if len(b) != len(solana.PublicKey{}) {
			return solana.PublicKey{}, fmt.Errorf("pda program is %d bytes, want %d", len(b), len(solana.PublicKey{}))
		}
		program = solana.PublicKeyFromBytes(b)
	}

	key, _, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive PDA: %w", err)
	}
	return key, nil
}

func seedBytes(schema *idl.Schema, ix *idl.InstructionDef, seed idl.Seed, args map[string]any, accounts map[string]ResolvedKey) ([]byte, error) {
	switch seed.Kind {
	case idl.SeedConst:
		return seed.Value, nil

	case idl.SeedArg:
		return argSeed(schema, ix.Args, seed.Path, args)

	case idl.SeedAccount:
		if strings.Contains(seed.Path, ".") {
			return nil, fmt.Errorf("seed %q reads account data: %w", seed.Path, ErrMissingAccount)
		}
		for name, rk := range accounts {
			if name == seed.Path || idl.SnakeCase(name) == idl.SnakeCase(seed.Path) {
				return rk.Key.Bytes(), nil
			}
		}
		return nil, fmt.Errorf("seed account %q: %w", seed.Path, ErrMissingAccount)

	default:
		return nil, fmt.Errorf("unsupported seed kind %q", seed.Kind)
	}
}

// argSeed encodes the argument at path (dot separated for struct fields).
// Strings and bytes contribute their raw content, everything else its Borsh
// encoding.
func argSeed(schema *idl.Schema, fields []idl.Field, path string, args map[string]any) ([]byte, error) {
	parts := strings.Split(path, ".")
	values := args
	var t idl.TypeRef
	var v any
	for i, part := range parts {
		f, ok := findField(fields, part)
		if !ok {
			return nil, fmt.Errorf("seed arg %q: no field %q", path, part)
		}
		val, ok := lookupValue(values, f.Name)
		if !ok || val == nil {
			return nil, fmt.Errorf("seed arg %q: value not set", path)
		}
		t, v = f.Type, val
		if i == len(parts)-1 {
			break
		}

		resolved, err := schema.Resolve(f.Type)
		if err != nil {
			return nil, err
		}
		st, ok := resolved.(*idl.Struct)
		if !ok {
			return nil, fmt.Errorf("seed arg %q: %s is not a struct", path, part)
		}
		nested, ok := toMap(val)
		if !ok {
			return nil, fmt.Errorf("seed arg %q: %s has no fields", path, part)
		}
		fields, values = st.Fields, nested
	}

	resolved, err := schema.Resolve(t)
	if err != nil {
		return nil, err
	}
	switch resolved {
	case idl.String:
		if s, ok := v.(string); ok {
			return []byte(s), nil
		}
	case idl.Bytes:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return base64.StdEncoding.DecodeString(b)
		}
	}
	return codec.EncodeValue(schema, t, v)
}

func findField(fields []idl.Field, name string) (idl.Field, bool) {
	for _, f := range fields {
		if f.Name == name || idl.SnakeCase(f.Name) == idl.SnakeCase(name) {
			return f, true
		}
	}
	return idl.Field{}, false
}

func lookupValue(values map[string]any, name string) (any, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	for k, v := range values {
		if idl.SnakeCase(k) == idl.SnakeCase(name) {
			return v, true
		}
	}
	return nil, false
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case codec.Fields:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

// BuildInstruction encodes args for the named instruction and lays out its
// accounts in declaration order. An absent optional account is passed as the
// program id, the way Anchor marks it as None. remaining are appended as-is.
func BuildInstruction(schema *idl.Schema, programID solana.PublicKey, name string, args map[string]any, keys map[string]solana.PublicKey, remaining ...*solana.AccountMeta) (solana.Instruction, error) {
	ix, ok := schema.Instruction(name)
	if !ok {
		return nil, &idl.SchemaError{Path: "instructions." + name, Err: idl.ErrNotFound, Msg: "no such instruction"}
	}
	data, err := codec.EncodeInstruction(schema, name, args)
	if err != nil {
		return nil, err
	}

	metas := make(solana.AccountMetaSlice, 0, len(ix.Accounts)+len(remaining))
	for _, acc := range ix.Accounts {
		key, ok := keys[acc.Name]
		if !ok {
			if !acc.IsOptional {
				return nil, fmt.Errorf("%s: %w", acc.Name, ErrMissingAccount)
			}
			metas = append(metas, solana.NewAccountMeta(programID, false, false))
			continue
		}
		metas = append(metas, solana.NewAccountMeta(key, acc.IsMut, acc.IsSigner))
	}
	metas = append(metas, remaining...)

	return solana.NewInstruction(programID, metas, data), nil
}
