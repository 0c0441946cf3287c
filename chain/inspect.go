package chain

import (
	"fmt"
	"time"

	"anchor-studio/codec"
	"anchor-studio/idl"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// InstructionView is one top-level or inner instruction of a transaction,
// decoded when it targets the configured program.
type InstructionView struct {
	// Index is "n" for top-level instructions and "n.m" for inner ones,
	// both counted from 1.
	Index     string
	Inner     bool
	ProgramID solana.PublicKey
	Data      []byte
	Accounts  []codec.AccountKey

	Decoded   *codec.DecodedInstruction
	Labeled   []codec.LabeledAccount
	DecodeErr error
}

// TransactionView is a transaction as the inspector shows it.
type TransactionView struct {
	Signature    solana.Signature
	Slot         uint64
	BlockTime    *time.Time
	Fee          uint64
	Failed       bool
	ErrMsg       string
	ComputeUnits *uint64
	Logs         []string
	Instructions []InstructionView
	Events       []LogEvent
}

// InspectTransaction turns an RPC result into a view. Instructions for
// programID are decoded against schema; a decode failure is kept on the
// instruction and does not affect the others.
func InspectTransaction(res *rpc.GetTransactionResult, schema *idl.Schema, programID solana.PublicKey) (*TransactionView, error) {
	if res == nil || res.Transaction == nil {
		return nil, ErrTransactionNotFound
	}
	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}

	view := BuildTransactionView(tx, res.Meta, schema, programID)
	view.Slot = res.Slot
	if res.BlockTime != nil {
		t := res.BlockTime.Time()
		view.BlockTime = &t
	}
	return view, nil
}

// BuildTransactionView does the work of InspectTransaction on an already
// parsed transaction. meta may be nil.
func BuildTransactionView(tx *solana.Transaction, meta *rpc.TransactionMeta, schema *idl.Schema, programID solana.PublicKey) *TransactionView {
	view := &TransactionView{}
	if len(tx.Signatures) > 0 {
		view.Signature = tx.Signatures[0]
	}

	var writable, readonly []solana.PublicKey
	if meta != nil {
		view.Fee = meta.Fee
		view.Logs = meta.LogMessages
		view.ComputeUnits = meta.ComputeUnitsConsumed
		if meta.Err != nil {
			view.Failed = true
			view.ErrMsg = fmt.Sprintf("%v", meta.Err)
		}
		writable = meta.LoadedAddresses.Writable
		readonly = meta.LoadedAddresses.ReadOnly
	}

	keys := MessageAccountKeys(tx.Message, writable, readonly)

	for i, ci := range tx.Message.Instructions {
		accounts := make([]int, len(ci.Accounts))
		for j, a := range ci.Accounts {
			accounts[j] = int(a)
		}
		iv := compiledView(keys, int(ci.ProgramIDIndex), accounts, []byte(ci.Data))
		iv.Index = fmt.Sprintf("%d", i+1)
		view.Instructions = append(view.Instructions, iv)

		if meta == nil {
			continue
		}
		for _, inner := range meta.InnerInstructions {
			if int(inner.Index) != i {
				continue
			}
			for k, ii := range inner.Instructions {
				accounts := make([]int, len(ii.Accounts))
				for j, a := range ii.Accounts {
					accounts[j] = int(a)
				}
				iv := compiledView(keys, int(ii.ProgramIDIndex), accounts, []byte(ii.Data))
				iv.Index = fmt.Sprintf("%d.%d", i+1, k+1)
				iv.Inner = true
				view.Instructions = append(view.Instructions, iv)
			}
		}
	}

	if schema != nil {
		for i := range view.Instructions {
			DecodeInstructionView(&view.Instructions[i], schema, programID)
		}
		view.Events = ProgramLogEvents(schema, programID, view.Logs)
	}
	return view
}

// DecodeInstructionView decodes iv in place if it targets programID.
func DecodeInstructionView(iv *InstructionView, schema *idl.Schema, programID solana.PublicKey) {
	if !iv.ProgramID.Equals(programID) {
		return
	}
	decoded, err := codec.DecodeInstruction(schema, iv.Data)
	if err != nil {
		iv.DecodeErr = err
		return
	}
	iv.Decoded = decoded
	iv.Labeled = codec.LabelAccounts(decoded.Accounts, iv.Accounts)
}

func compiledView(keys []codec.AccountKey, programIdx int, accounts []int, data []byte) InstructionView {
	iv := InstructionView{Data: data}
	if programIdx < len(keys) {
		iv.ProgramID = keys[programIdx].PublicKey
	}
	for _, idx := range accounts {
		if idx < len(keys) {
			iv.Accounts = append(iv.Accounts, keys[idx])
		}
	}
	return iv
}

// MessageAccountKeys lists the static keys of msg followed by the keys
// loaded from address lookup tables, writable ones first, with their signer
// and writable flags derived from the message header.
func MessageAccountKeys(msg solana.Message, loadedWritable, loadedReadonly []solana.PublicKey) []codec.AccountKey {
	h := msg.Header
	numStatic := len(msg.AccountKeys)
	numSigners := int(h.NumRequiredSignatures)

	keys := make([]codec.AccountKey, 0, numStatic+len(loadedWritable)+len(loadedReadonly))
	for i, pk := range msg.AccountKeys {
		signer := i < numSigners
		var writable bool
		if signer {
			writable = i < numSigners-int(h.NumReadonlySignedAccounts)
		} else {
			writable = i < numStatic-int(h.NumReadonlyUnsignedAccounts)
		}
		keys = append(keys, codec.AccountKey{PublicKey: pk, IsSigner: signer, IsWritable: writable})
	}
	for _, pk := range loadedWritable {
		keys = append(keys, codec.AccountKey{PublicKey: pk, IsWritable: true})
	}
	for _, pk := range loadedReadonly {
		keys = append(keys, codec.AccountKey{PublicKey: pk})
	}
	return keys
}
