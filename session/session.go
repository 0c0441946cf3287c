package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"anchor-studio/chain"
	"anchor-studio/config"
	"anchor-studio/idl"
	"anchor-studio/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrSuperseded is returned by an attempt that finished after a Reset.
// Its result was discarded.
var ErrSuperseded = errors.New("session was reset during the attempt")

// State is the lifecycle position of the configured program.
type State int

const (
	// Empty has no program configured.
	Empty State = iota
	// Configured has a persisted program but no live handle.
	Configured
	// Live has a program bound to a wallet and an RPC connection.
	Live
	// Error means the last attempt failed. The configuration is kept.
	Error
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Configured:
		return "configured"
	case Live:
		return "live"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Handle is a live program. It is never persisted.
type Handle struct {
	Schema    *idl.Schema
	ProgramID solana.PublicKey
	Client    *chain.Client
	Wallet    chain.Wallet
	Config    storage.ProgramConfig
}

// ConnectFunc opens an RPC connection.
type ConnectFunc func(ctx context.Context, rpcURL string, commitment rpc.CommitmentType) (*chain.Client, error)

// Submission is a program to configure.
type Submission struct {
	IDL        []byte
	RPCURL     string
	Commitment string
	// ProgramID overrides the address in the IDL. It is required when the
	// IDL carries none.
	ProgramID string
}

// Reconciler keeps the persisted program configuration and the live,
// wallet-bound handle in step. Only one connection attempt runs at a time.
type Reconciler struct {
	store   storage.Store
	connect ConnectFunc
	now     func() time.Time

	inFlight atomic.Bool

	mu     sync.Mutex
	state  State
	config *storage.ProgramConfig
	// pending is a submission that failed; it is retried but not persisted.
	pending *storage.ProgramConfig
	wallet  chain.Wallet
	handle  *Handle
	err     error
	gen     uint64
}

// New restores the persisted program, if any, in the Configured state.
func New(store storage.Store, connect ConnectFunc) (*Reconciler, error) {
	cfg, err := storage.LoadProgramConfig(store)
	if err != nil {
		return nil, err
	}
	r := &Reconciler{store: store, connect: connect, now: time.Now}
	if cfg != nil {
		r.config = cfg
		r.state = Configured
	}
	return r, nil
}

// State returns the current state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the failure that put the reconciler in the Error state.
func (r *Reconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Config returns a copy of the active program configuration, or nil.
func (r *Reconciler) Config() *storage.ProgramConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config == nil {
		return nil
	}
	cfg := *r.config
	return &cfg
}

// Wallet returns the wallet the session is bound to, or nil.
func (r *Reconciler) Wallet() chain.Wallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wallet
}

// Handle returns the live program.
func (r *Reconciler) Handle() (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Live {
		return nil, ErrNotLive
	}
	return r.handle, nil
}

// Submit configures a new program and goes live with it. wallet may be nil
// to use the wallet already known to the session. On failure the previous
// configuration stays persisted.
func (r *Reconciler) Submit(ctx context.Context, sub Submission, wallet chain.Wallet) (*Handle, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil, ErrReinitInFlight
	}
	defer r.inFlight.Store(false)

	if wallet != nil {
		r.mu.Lock()
		r.wallet = wallet
		r.mu.Unlock()
	}

	cfg, schema, err := r.newProgramConfig(sub)
	if err != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.pending = nil
		return nil, r.failLocked("submit", err)
	}
	return r.attempt(ctx, "submit", cfg, schema, true)
}

// WalletAvailable binds a newly connected wallet. A configured or failed
// program is brought live with it; a live one is rebound if the address
// changed.
func (r *Reconciler) WalletAvailable(ctx context.Context, wallet chain.Wallet) (*Handle, error) {
	if wallet == nil {
		return nil, ErrNoWallet
	}
	r.mu.Lock()
	r.wallet = wallet
	state, h := r.state, r.handle
	r.mu.Unlock()

	switch state {
	case Empty:
		return nil, nil
	case Live:
		if h.Wallet.PublicKey().Equals(wallet.PublicKey()) {
			return h, nil
		}
	case Error:
		return r.Retry(ctx)
	}
	return r.Reinitialize(ctx)
}

// Reinitialize rebuilds the live handle from the persisted configuration.
// A call made while another attempt runs returns ErrReinitInFlight and has
// no effect.
func (r *Reconciler) Reinitialize(ctx context.Context) (*Handle, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil, ErrReinitInFlight
	}
	defer r.inFlight.Store(false)

	r.mu.Lock()
	cfg := r.config
	r.mu.Unlock()
	if cfg == nil {
		return nil, ErrNotConfigured
	}
	return r.attempt(ctx, "reinitialize", cfg, nil, false)
}

// Retry repeats the attempt that failed: a failed submission if there is
// one, otherwise the persisted configuration.
func (r *Reconciler) Retry(ctx context.Context) (*Handle, error) {
	r.mu.Lock()
	state, pending := r.state, r.pending
	r.mu.Unlock()
	if state != Error {
		return nil, ErrNothingToRetry
	}
	if pending == nil {
		return r.Reinitialize(ctx)
	}

	if !r.inFlight.CompareAndSwap(false, true) {
		return nil, ErrReinitInFlight
	}
	defer r.inFlight.Store(false)
	return r.attempt(ctx, "retry", pending, nil, true)
}

// Reset drops the live handle and returns to Empty. The persisted
// configuration is removed only when clear is set; otherwise the next
// reconciler built on the same store starts Configured. An attempt still
// running is discarded when it finishes.
func (r *Reconciler) Reset(clear bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.state = Empty
	r.config, r.pending, r.handle, r.err = nil, nil, nil, nil
	if clear {
		return storage.ClearProgramConfig(r.store)
	}
	return nil
}

func (r *Reconciler) attempt(ctx context.Context, op string, cfg *storage.ProgramConfig, schema *idl.Schema, persist bool) (*Handle, error) {
	r.mu.Lock()
	wallet, gen := r.wallet, r.gen
	r.mu.Unlock()

	h, err := r.open(ctx, cfg, schema, wallet)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		if h != nil {
			h.Client.Close()
		}
		return nil, ErrSuperseded
	}
	if err == nil && persist {
		if err = storage.SaveProgramConfig(r.store, cfg); err != nil {
			h.Client.Close()
		}
	}
	if err != nil {
		if persist {
			r.pending = cfg
		}
		return nil, r.failLocked(op, err)
	}
	r.state = Live
	r.config, r.pending, r.handle, r.err = cfg, nil, h, nil
	return h, nil
}

func (r *Reconciler) failLocked(op string, err error) error {
	serr := &SessionError{Op: op, Err: err}
	r.state = Error
	r.handle = nil
	r.err = serr
	return serr
}

func (r *Reconciler) newProgramConfig(sub Submission) (*storage.ProgramConfig, *idl.Schema, error) {
	schema, err := idl.Parse(sub.IDL)
	if err != nil {
		return nil, nil, err
	}
	url := strings.TrimSpace(sub.RPCURL)
	if url == "" {
		return nil, nil, errors.New("rpc url is required")
	}
	programID := strings.TrimSpace(sub.ProgramID)
	if programID == "" {
		programID = schema.Address
	}
	if programID == "" {
		return nil, nil, ErrNoProgramID
	}
	if _, err := solana.PublicKeyFromBase58(programID); err != nil {
		return nil, nil, fmt.Errorf("invalid program address %q: %w", programID, err)
	}
	commitment := sub.Commitment
	if commitment == "" {
		commitment = string(rpc.CommitmentConfirmed)
	}
	return &storage.ProgramConfig{
		ProgramID:     programID,
		Name:          schema.Name,
		RPCURL:        url,
		Cluster:       string(config.ClusterFromRPCURL(url)),
		Commitment:    commitment,
		InitializedAt: r.now().UTC(),
		SerializedIDL: string(sub.IDL),
	}, schema, nil
}

// open builds a handle. schema is parsed from cfg when nil.
func (r *Reconciler) open(ctx context.Context, cfg *storage.ProgramConfig, schema *idl.Schema, wallet chain.Wallet) (*Handle, error) {
	if wallet == nil {
		return nil, ErrNoWallet
	}
	if schema == nil {
		var err error
		schema, err = idl.Parse([]byte(cfg.SerializedIDL))
		if err != nil {
			return nil, fmt.Errorf("stored idl: %w", err)
		}
	}
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program address %q: %w", cfg.ProgramID, err)
	}
	client, err := r.connect(ctx, cfg.RPCURL, rpc.CommitmentType(cfg.Commitment))
	if err != nil {
		return nil, err
	}
	return &Handle{
		Schema:    schema,
		ProgramID: programID,
		Client:    client,
		Wallet:    wallet,
		Config:    *cfg,
	}, nil
}
