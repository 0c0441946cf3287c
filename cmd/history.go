package cmd

import (
	"context"
	"fmt"
	"strings"

	"anchor-studio/chain"
	"anchor-studio/codec"
	"anchor-studio/idl"
	"anchor-studio/table"

	"github.com/AlecAivazis/survey/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

type historyOptions struct {
	address string
	limit   int
	before  string
	until   string
}

var historyOpts historyOptions

var historyCmd = &cobra.Command{
	Use:   "history [address]",
	Short: "List recent transaction signatures for an address (default: the program)",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		opts := historyOpts
		if len(args) == 1 {
			opts.address = args[0]
		}
		return runHistory(ctx, a, opts)
	}),
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyOpts.limit, "limit", 20, "number of signatures to fetch (max 1000)")
	f.StringVar(&historyOpts.before, "before", "", "start searching backwards from this signature")
	f.StringVar(&historyOpts.until, "until", "", "stop at this signature")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, a *app, opts historyOptions) error {
	h, err := a.live(ctx)
	if err != nil {
		return err
	}

	address := h.ProgramID
	if opts.address != "" {
		if address, err = solana.PublicKeyFromBase58(strings.TrimSpace(opts.address)); err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
	}
	q := chain.SignatureQuery{Limit: opts.limit}
	if opts.before != "" {
		if q.Before, err = solana.SignatureFromBase58(opts.before); err != nil {
			return fmt.Errorf("invalid --before signature: %w", err)
		}
	}
	if opts.until != "" {
		if q.Until, err = solana.SignatureFromBase58(opts.until); err != nil {
			return fmt.Errorf("invalid --until signature: %w", err)
		}
	}

	fmt.Println(promptStyle.Render(fmt.Sprintf("Fetching signatures for %s...", address)))
	sigs, err := h.Client.GetSignaturesForAddress(ctx, address, q)
	if err != nil {
		return err
	}
	if len(sigs) == 0 {
		fmt.Println(promptStyle.Render("No transactions found."))
		return nil
	}

	tbl := signatureTable(sigs, a.cfg.PageSize)
	fmt.Println(titleStyle.Render("📜 Signature History"))
	for {
		fmt.Println(tbl.Render(table.Options{}))
		options := []string{}
		if tbl.PageIndex()+1 < tbl.PageCount() {
			options = append(options, browseNext)
		}
		if tbl.PageIndex() > 0 {
			options = append(options, browsePrev)
		}
		options = append(options, "Inspect transaction", browseDone)

		var choice string
		if err := survey.AskOne(&survey.Select{Message: "History:", Options: options}, &choice); err != nil {
			return err
		}
		switch choice {
		case browseNext:
			tbl.NextPage()
		case browsePrev:
			tbl.PrevPage()
		case browseDone:
			return nil
		default:
			page := tbl.Page()
			picks := make([]string, len(page))
			for i, r := range page {
				picks[i] = r.Address
			}
			var sig string
			if err := survey.AskOne(&survey.Select{Message: "Signature:", Options: picks}, &sig); err != nil {
				return err
			}
			if err := runTransaction(ctx, a, sig, false); err != nil {
				printErr(err)
			}
		}
	}
}

func signatureTable(sigs []chain.SignatureInfo, pageSize int) *table.Table {
	cols := []table.Column{
		{ID: table.AddressColumn, Header: "Signature"},
		{ID: "slot", Header: "Slot", Type: idl.U64},
		{ID: "time", Header: "Time", Type: idl.String},
		{ID: "status", Header: "Status", Type: idl.String},
		{ID: "memo", Header: "Memo", Type: idl.String},
	}
	rows := make([]table.Row, len(sigs))
	for i, s := range sigs {
		status := s.Status
		if s.Failed {
			status = "failed"
		}
		when := ""
		if s.BlockTime != nil {
			when = s.BlockTime.Local().Format("2006-01-02 15:04:05")
		}
		rows[i] = table.Row{
			Address: s.Signature.String(),
			Values: codec.Fields{
				"slot":   s.Slot,
				"time":   when,
				"status": status,
				"memo":   s.Memo,
			},
		}
	}
	return table.New(cols, rows, pageSize)
}
