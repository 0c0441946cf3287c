package chain

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
)

const (
	defaultConfigDirName = ".config"
	studioConfigDirName  = "anchor-studio"
	walletFileName       = "wallet.json"
)

// Wallet is the signing capability a live session is bound to. The studio
// only reads the address and asks for signatures.
type Wallet interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// KeypairWallet signs with a local ed25519 keypair.
type KeypairWallet struct {
	PrivateKey solana.PrivateKey
}

// PublicKey returns the public key of the wallet.
func (w *KeypairWallet) PublicKey() solana.PublicKey {
	return w.PrivateKey.PublicKey()
}

// SignTransaction adds the wallet's signature. It fails if the transaction
// requires other signers.
func (w *KeypairWallet) SignTransaction(_ context.Context, tx *solana.Transaction) error {
	pub := w.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &w.PrivateKey
		}
		return nil
	})
	return err
}

// DefaultWalletPath returns ~/.config/anchor-studio/wallet.json.
func DefaultWalletPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, defaultConfigDirName, studioConfigDirName, walletFileName), nil
}

// LoadWallet reads a keypair file in the Solana CLI format: a JSON array of
// the 64 secret key bytes.
func LoadWallet(path string) (*KeypairWallet, error) {
	privateKey, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}

	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: expected %d, got %d", ed25519.PrivateKeySize, len(privateKey))
	}
	return &KeypairWallet{PrivateKey: privateKey}, nil
}

// LoadOrCreateWallet loads the keypair at path, generating and saving a new
// one if the file does not exist. created reports which happened.
func LoadOrCreateWallet(path string) (wallet *KeypairWallet, created bool, err error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		wallet := &KeypairWallet{PrivateKey: solana.NewWallet().PrivateKey}
		if err := SaveWallet(wallet, path); err != nil {
			return nil, false, fmt.Errorf("failed to save new wallet: %w", err)
		}
		return wallet, true, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to check for wallet file: %w", err)
	}

	wallet, err = LoadWallet(path)
	return wallet, false, err
}

// SaveWallet writes the keypair to path, readable only by the owner.
func SaveWallet(wallet *KeypairWallet, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create wallet directory: %w", err)
	}

	// A JSON array of numbers, not base64, to match solana-keygen.
	ints := make([]int, len(wallet.PrivateKey))
	for i, b := range wallet.PrivateKey {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write wallet file: %w", err)
	}
	return nil
}
