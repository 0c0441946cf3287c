package codec

import (
	"fmt"

	"anchor-studio/idl"

	"github.com/gagliardetto/solana-go"
)

// AccountKey is one positional account of a compiled instruction.
type AccountKey struct {
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// LabeledAccount pairs an account key with the schema slot it fills. Spec is
// nil for keys past the declared accounts.
type LabeledAccount struct {
	Name       string
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
	Spec       *idl.AccountSpec
}

// LabelAccounts names keys by position. Extra keys, Anchor's remaining
// accounts, are labeled "Remaining Account #k" counting from 1.
func LabelAccounts(specs []idl.AccountSpec, keys []AccountKey) []LabeledAccount {
	out := make([]LabeledAccount, len(keys))
	for i, k := range keys {
		out[i] = LabeledAccount{
			PublicKey:  k.PublicKey,
			IsSigner:   k.IsSigner,
			IsWritable: k.IsWritable,
		}
		if i < len(specs) {
			out[i].Name = specs[i].Name
			out[i].Spec = &specs[i]
		} else {
			out[i].Name = fmt.Sprintf("Remaining Account #%d", i+1-len(specs))
		}
	}
	return out
}
