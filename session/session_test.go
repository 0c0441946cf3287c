package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"anchor-studio/chain"
	"anchor-studio/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devnetURL = "https://api.devnet.solana.com"

var errUnreachable = errors.New("connection refused")

type fakeRPC struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *fakeRPC) connect(_ context.Context, url string, commitment rpc.CommitmentType) (*chain.Client, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, &chain.ConnectionError{Op: "getHealth", URL: url, Err: errUnreachable}
	}
	return chain.NewClient(url, commitment, nil), nil
}

func vaultIDL(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("../idl/testdata/vault.json")
	require.NoError(t, err)
	return data
}

func newWallet() chain.Wallet {
	return &chain.KeypairWallet{PrivateKey: solana.NewWallet().PrivateKey}
}

func newReconciler(t *testing.T) (*Reconciler, storage.Store, *fakeRPC) {
	t.Helper()
	store, err := storage.Connect(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	f := &fakeRPC{}
	r, err := New(store, f.connect)
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return r, store, f
}

func TestSubmit_GoesLive(t *testing.T) {
	r, store, f := newReconciler(t)
	assert.Equal(t, Empty, r.State())
	_, err := r.Handle()
	assert.ErrorIs(t, err, ErrNotLive)

	w := newWallet()
	h, err := r.Submit(context.Background(), Submission{IDL: vaultIDL(t), RPCURL: devnetURL}, w)
	require.NoError(t, err)
	assert.Equal(t, Live, r.State())
	assert.Equal(t, "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS", h.ProgramID.String())
	assert.Equal(t, "vault", h.Schema.Name)
	assert.Equal(t, devnetURL, h.Client.URL)
	assert.Equal(t, rpc.CommitmentConfirmed, h.Client.Commitment)
	assert.Equal(t, w, h.Wallet)
	assert.EqualValues(t, 1, f.calls.Load())

	saved, err := storage.LoadProgramConfig(store)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "devnet", saved.Cluster)
	assert.Equal(t, "confirmed", saved.Commitment)
	assert.Equal(t, "vault", saved.Name)
	assert.Equal(t, 2026, saved.InitializedAt.Year())
	assert.Equal(t, string(vaultIDL(t)), saved.SerializedIDL)

	got, err := r.Handle()
	require.NoError(t, err)
	assert.Same(t, h, got)
}

func TestRestore_WalletAvailable(t *testing.T) {
	r, store, f := newReconciler(t)
	_, err := r.Submit(context.Background(), Submission{IDL: vaultIDL(t), RPCURL: devnetURL, Commitment: "finalized"}, newWallet())
	require.NoError(t, err)

	// a restart keeps the configuration but not the handle
	restored, err := New(store, f.connect)
	require.NoError(t, err)
	assert.Equal(t, Configured, restored.State())
	require.NotNil(t, restored.Config())
	assert.Equal(t, "finalized", restored.Config().Commitment)
	_, err = restored.Handle()
	assert.ErrorIs(t, err, ErrNotLive)

	w := newWallet()
	h, err := restored.WalletAvailable(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, Live, restored.State())
	assert.Equal(t, rpc.CommitmentFinalized, h.Client.Commitment)

	// same wallet again is a no-op
	calls := f.calls.Load()
	again, err := restored.WalletAvailable(context.Background(), w)
	require.NoError(t, err)
	assert.Same(t, h, again)
	assert.Equal(t, calls, f.calls.Load())

	// a different wallet rebinds
	other := newWallet()
	rebound, err := restored.WalletAvailable(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, other, rebound.Wallet)
	assert.Equal(t, calls+1, f.calls.Load())
}

func TestWalletAvailable_Empty(t *testing.T) {
	r, _, f := newReconciler(t)
	h, err := r.WalletAvailable(context.Background(), newWallet())
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Equal(t, Empty, r.State())
	assert.Zero(t, f.calls.Load())

	_, err = r.WalletAvailable(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoWallet)
}

func TestSubmit_Failures(t *testing.T) {
	tests := []struct {
		name    string
		sub     func(t *testing.T) Submission
		wallet  chain.Wallet
		rpcDown bool
		wantErr error
	}{
		{
			name:    "invalid json",
			sub:     func(*testing.T) Submission { return Submission{IDL: []byte("{"), RPCURL: devnetURL} },
			wallet:  newWallet(),
			wantErr: nil,
		},
		{
			name:    "no wallet",
			sub:     func(t *testing.T) Submission { return Submission{IDL: vaultIDL(t), RPCURL: devnetURL} },
			wantErr: ErrNoWallet,
		},
		{
			name:    "rpc unreachable",
			sub:     func(t *testing.T) Submission { return Submission{IDL: vaultIDL(t), RPCURL: devnetURL} },
			wallet:  newWallet(),
			rpcDown: true,
			wantErr: errUnreachable,
		},
		{
			name: "bad program id",
			sub: func(t *testing.T) Submission {
				return Submission{IDL: vaultIDL(t), RPCURL: devnetURL, ProgramID: "not-a-key"}
			},
			wallet: newWallet(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store, f := newReconciler(t)
			f.fail.Store(tt.rpcDown)

			_, err := r.Submit(context.Background(), tt.sub(t), tt.wallet)
			require.Error(t, err)
			var serr *SessionError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, "submit", serr.Op)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, Error, r.State())
			assert.Equal(t, err, r.Err())

			saved, err := storage.LoadProgramConfig(store)
			require.NoError(t, err)
			assert.Nil(t, saved)
		})
	}
}

func TestSubmit_FailureKeepsPreviousConfig(t *testing.T) {
	r, store, _ := newReconciler(t)
	_, err := r.Submit(context.Background(), Submission{IDL: vaultIDL(t), RPCURL: devnetURL}, newWallet())
	require.NoError(t, err)

	_, err = r.Submit(context.Background(), Submission{IDL: []byte(`{"instructions": 5}`), RPCURL: devnetURL}, nil)
	require.Error(t, err)
	assert.Equal(t, Error, r.State())
	require.NotNil(t, r.Config())
	assert.Equal(t, "vault", r.Config().Name)

	saved, err := storage.LoadProgramConfig(store)
	require.NoError(t, err)
	assert.Equal(t, "vault", saved.Name)

	// retry falls back to the kept configuration
	h, err := r.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Live, r.State())
	assert.Equal(t, "vault", h.Schema.Name)
}

func TestRetry(t *testing.T) {
	r, store, f := newReconciler(t)
	_, err := r.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)

	f.fail.Store(true)
	_, err = r.Submit(context.Background(), Submission{IDL: vaultIDL(t), RPCURL: devnetURL}, newWallet())
	require.Error(t, err)
	assert.True(t, chain.IsConnectionError(err))

	_, err = r.Retry(context.Background())
	require.Error(t, err)
	assert.Equal(t, Error, r.State())

	f.fail.Store(false)
	h, err := r.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Live, r.State())
	assert.Nil(t, r.Err())
	assert.Equal(t, devnetURL, h.Config.RPCURL)

	saved, err := storage.LoadProgramConfig(store)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, h.Config.ProgramID, saved.ProgramID)
}

func TestWalletAvailable_RetriesMissingWallet(t *testing.T) {
	r, _, _ := newReconciler(t)
	_, err := r.Submit(context.Background(), Submission{IDL: vaultIDL(t), RPCURL: devnetURL}, nil)
	require.ErrorIs(t, err, ErrNoWallet)

	h, err := r.WalletAvailable(context.Background(), newWallet())
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, Live, r.State())
}

func TestReset(t *testing.T) {
	r, store, f := newReconciler(t)
	_, err := r.Submit(context.Background(), Submission{IDL: vaultIDL(t), RPCURL: devnetURL}, newWallet())
	require.NoError(t, err)

	require.NoError(t, r.Reset(false))
	assert.Equal(t, Empty, r.State())
	assert.Nil(t, r.Config())
	_, err = r.Reinitialize(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	saved, err := storage.LoadProgramConfig(store)
	require.NoError(t, err)
	assert.NotNil(t, saved)

	restored, err := New(store, f.connect)
	require.NoError(t, err)
	assert.Equal(t, Configured, restored.State())
	require.NoError(t, restored.Reset(true))

	saved, err = storage.LoadProgramConfig(store)
	require.NoError(t, err)
	assert.Nil(t, saved)
}

// blockingRPC holds every connect until released.
type blockingRPC struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	last    atomic.Pointer[chain.Client]
}

func (b *blockingRPC) connect(ctx context.Context, url string, commitment rpc.CommitmentType) (*chain.Client, error) {
	b.calls.Add(1)
	b.entered <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c := chain.NewClient(url, commitment, nil)
	b.last.Store(c)
	return c, nil
}

func TestReinitialize_SingleFlight(t *testing.T) {
	store, err := storage.Connect(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	seed, err := New(store, (&fakeRPC{}).connect)
	require.NoError(t, err)
	_, err = seed.Submit(context.Background(), Submission{IDL: vaultIDL(t), RPCURL: devnetURL}, newWallet())
	require.NoError(t, err)

	b := &blockingRPC{entered: make(chan struct{}, 1), release: make(chan struct{})}
	r, err := New(store, b.connect)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var first *Handle
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = r.WalletAvailable(context.Background(), newWallet())
	}()
	<-b.entered

	for i := 0; i < 5; i++ {
		_, err := r.Reinitialize(context.Background())
		assert.ErrorIs(t, err, ErrReinitInFlight)
	}
	_, err = r.Submit(context.Background(), Submission{IDL: vaultIDL(t), RPCURL: devnetURL}, nil)
	assert.ErrorIs(t, err, ErrReinitInFlight)
	assert.Equal(t, Configured, r.State())

	close(b.release)
	wg.Wait()
	require.NoError(t, firstErr)
	require.NotNil(t, first)
	assert.Equal(t, Live, r.State())
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestReset_DiscardsRunningAttempt(t *testing.T) {
	store, err := storage.Connect(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	b := &blockingRPC{entered: make(chan struct{}, 1), release: make(chan struct{})}
	r, err := New(store, b.connect)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := r.Submit(context.Background(), Submission{IDL: vaultIDL(t), RPCURL: devnetURL}, newWallet())
		done <- err
	}()
	<-b.entered

	require.NoError(t, r.Reset(true))
	close(b.release)
	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, Empty, r.State())

	discarded := b.last.Load()
	require.NotNil(t, discarded)
	assert.Nil(t, discarded.RpcClient, "discarded client left open")

	saved, err := storage.LoadProgramConfig(store)
	require.NoError(t, err)
	assert.Nil(t, saved)
}
