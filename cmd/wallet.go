package cmd

import (
	"context"
	"fmt"

	"anchor-studio/chain"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show the local wallet address and balance",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		return runWallet(ctx, a)
	}),
}

func init() {
	rootCmd.AddCommand(walletCmd)
}

func runWallet(ctx context.Context, a *app) error {
	wallet, err := a.loadWallet()
	if err != nil {
		return err
	}
	path, _ := a.walletPath()

	fmt.Println(titleStyle.Render("🔑 Wallet"))
	fmt.Println(field("Address", wallet.PublicKey()))
	fmt.Println(field("Keypair", path))

	// the wallet can be checked before any program is set up
	url := a.cfg.RPCURL()
	if cfg := a.session.Config(); cfg != nil {
		url = cfg.RPCURL
	}
	client := chain.NewClient(url, rpc.CommitmentType(a.cfg.Commitment), a.log)
	fmt.Println(promptStyle.Render("\nChecking balance... Please wait."))
	balance, err := client.GetBalance(ctx, wallet.PublicKey())
	if err != nil {
		return err
	}
	fmt.Println(field("Balance", fmt.Sprintf("%.9f SOL", float64(balance)/float64(solana.LAMPORTS_PER_SOL))))
	fmt.Println(field("RPC", url))
	return nil
}
