package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Client wraps a Solana JSON-RPC endpoint with the reads and writes the
// studio needs.
type Client struct {
	RpcClient  *rpc.Client
	URL        string
	Commitment rpc.CommitmentType
	log        *zap.Logger
}

// KeyedAccount is raw account state addressed by its key.
type KeyedAccount struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// NewClient creates a client for rpcEndpoint. No request is made until the
// first call; use Ping to verify the endpoint.
func NewClient(rpcEndpoint string, commitment rpc.CommitmentType, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Client{
		RpcClient:  rpc.New(rpcEndpoint),
		URL:        rpcEndpoint,
		Commitment: commitment,
		log:        log.With(zap.String("rpc", rpcEndpoint)),
	}
}

// Connect creates a client and checks that the endpoint answers.
func Connect(ctx context.Context, rpcEndpoint string, commitment rpc.CommitmentType, log *zap.Logger) (*Client, error) {
	c := NewClient(rpcEndpoint, commitment, log)
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Close releases the endpoint's idle connections. The client must not be
// used afterwards.
func (c *Client) Close() error {
	if c.RpcClient == nil {
		return nil
	}
	err := c.RpcClient.Close()
	c.RpcClient = nil
	return err
}

func (c *Client) wrap(op string, err error) error {
	c.log.Debug("rpc call failed", zap.String("op", op), zap.Error(err))
	return &ConnectionError{Op: op, URL: c.URL, Err: err}
}

// Ping asks the node for its health.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	status, err := c.RpcClient.GetHealth(ctx)
	if err != nil {
		return c.wrap("getHealth", err)
	}
	c.log.Debug("rpc healthy", zap.String("status", status), zap.Duration("took", time.Since(start)))
	return nil
}

// GetAccountData fetches the data of a single account.
func (c *Client) GetAccountData(ctx context.Context, address solana.PublicKey) (*KeyedAccount, error) {
	resp, err := c.RpcClient.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.Commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", address, ErrAccountNotFound)
	}
	if err != nil {
		return nil, c.wrap("getAccountInfo", err)
	}
	if resp.Value == nil {
		return nil, fmt.Errorf("%s: %w", address, ErrAccountNotFound)
	}

	return &KeyedAccount{
		Address:  address,
		Owner:    resp.Value.Owner,
		Lamports: resp.Value.Lamports,
		Data:     resp.Value.Data.GetBinary(),
	}, nil
}

// GetProgramAccounts lists accounts owned by program whose data starts with
// discriminator. An empty discriminator lists every account.
func (c *Client) GetProgramAccounts(ctx context.Context, program solana.PublicKey, discriminator []byte) ([]KeyedAccount, error) {
	opts := &rpc.GetProgramAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.Commitment,
	}
	if len(discriminator) > 0 {
		opts.Filters = []rpc.RPCFilter{
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: 0,
					Bytes:  discriminator,
				},
			},
		}
	}

	start := time.Now()
	resp, err := c.RpcClient.GetProgramAccountsWithOpts(ctx, program, opts)
	if err != nil {
		return nil, c.wrap("getProgramAccounts", err)
	}
	c.log.Debug("fetched program accounts",
		zap.String("program", program.String()),
		zap.Int("count", len(resp)),
		zap.Duration("took", time.Since(start)),
	)

	out := make([]KeyedAccount, 0, len(resp))
	for _, ka := range resp {
		if ka == nil || ka.Account == nil {
			continue
		}
		out = append(out, KeyedAccount{
			Address:  ka.Pubkey,
			Owner:    ka.Account.Owner,
			Lamports: ka.Account.Lamports,
			Data:     ka.Account.Data.GetBinary(),
		})
	}
	return out, nil
}

// GetMultipleAccounts fetches the given addresses in one round trip.
// Missing accounts come back as nil entries in the same position.
func (c *Client) GetMultipleAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*KeyedAccount, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	resp, err := c.RpcClient.GetMultipleAccountsWithOpts(ctx, addresses, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.Commitment,
	})
	if err != nil {
		return nil, c.wrap("getMultipleAccounts", err)
	}

	out := make([]*KeyedAccount, len(addresses))
	for i, acc := range resp.Value {
		if i >= len(out) || acc == nil {
			continue
		}
		out[i] = &KeyedAccount{
			Address:  addresses[i],
			Owner:    acc.Owner,
			Lamports: acc.Lamports,
			Data:     acc.Data.GetBinary(),
		}
	}
	return out, nil
}

// GetBalance returns the lamport balance of address.
func (c *Client) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	resp, err := c.RpcClient.GetBalance(ctx, address, c.Commitment)
	if err != nil {
		return 0, c.wrap("getBalance", err)
	}
	return resp.Value, nil
}

// GetTransaction fetches a confirmed transaction, including versioned ones.
func (c *Client) GetTransaction(ctx context.Context, signature solana.Signature) (*rpc.GetTransactionResult, error) {
	// getTransaction does not accept processed
	commitment := c.Commitment
	if commitment == rpc.CommitmentProcessed {
		commitment = rpc.CommitmentConfirmed
	}

	version := uint64(0)
	tx, err := c.RpcClient.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     commitment,
		MaxSupportedTransactionVersion: &version,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && tx == nil) {
		return nil, fmt.Errorf("%s: %w", signature, ErrTransactionNotFound)
	}
	if err != nil {
		return nil, c.wrap("getTransaction", err)
	}
	return tx, nil
}

// SignatureQuery pages through an address's transaction history.
type SignatureQuery struct {
	Limit  int
	Before solana.Signature
	Until  solana.Signature
}

// SignatureInfo is one entry of an address's history.
type SignatureInfo struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime *time.Time
	Failed    bool
	Memo      string
	Status    string
}

// GetSignaturesForAddress lists recent signatures involving address, newest
// first.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, q SignatureQuery) ([]SignatureInfo, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000 // Maximum allowed by Solana RPC
	}
	commitment := c.Commitment
	if commitment == rpc.CommitmentProcessed {
		commitment = rpc.CommitmentConfirmed
	}

	sigs, err := c.RpcClient.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Before:     q.Before,
		Until:      q.Until,
		Commitment: commitment,
	})
	if err != nil {
		return nil, c.wrap("getSignaturesForAddress", err)
	}

	out := make([]SignatureInfo, 0, len(sigs))
	for _, s := range sigs {
		if s == nil {
			continue
		}
		info := SignatureInfo{
			Signature: s.Signature,
			Slot:      s.Slot,
			Failed:    s.Err != nil,
			Status:    string(s.ConfirmationStatus),
		}
		if s.BlockTime != nil {
			t := s.BlockTime.Time()
			info.BlockTime = &t
		}
		if s.Memo != nil {
			info.Memo = *s.Memo
		}
		out = append(out, info)
	}
	return out, nil
}

// SendInstructions builds a transaction paid by wallet, has the wallet sign
// it and submits it.
func (c *Client) SendInstructions(ctx context.Context, wallet Wallet, instructions ...solana.Instruction) (solana.Signature, error) {
	latestBlockhash, err := c.RpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, c.wrap("getLatestBlockhash", err)
	}
	if latestBlockhash == nil || latestBlockhash.Value == nil {
		return solana.Signature{}, ErrNoBlockhash
	}

	tx, err := solana.NewTransaction(
		instructions,
		latestBlockhash.Value.Blockhash,
		solana.TransactionPayer(wallet.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := wallet.SignTransaction(ctx, tx); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := c.RpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.Commitment,
	})
	if err != nil {
		return solana.Signature{}, c.wrap("sendTransaction", err)
	}
	c.log.Info("transaction submitted", zap.String("signature", sig.String()))
	return sig, nil
}
