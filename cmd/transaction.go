package cmd

import (
	"context"
	"fmt"
	"strings"

	"anchor-studio/chain"
	"anchor-studio/table"

	"github.com/AlecAivazis/survey/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

var showLogs bool

var transactionCmd = &cobra.Command{
	Use:     "tx [signature]",
	Aliases: []string{"transaction"},
	Short:   "Fetch a transaction and decode the program's instructions and events",
	Args:    cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		sig := ""
		if len(args) == 1 {
			sig = args[0]
		}
		return runTransaction(ctx, a, sig, showLogs)
	}),
}

func init() {
	transactionCmd.Flags().BoolVar(&showLogs, "logs", false, "print the program logs")
	rootCmd.AddCommand(transactionCmd)
}

func runTransaction(ctx context.Context, a *app, sig string, logs bool) error {
	h, err := a.live(ctx)
	if err != nil {
		return err
	}
	if sig == "" {
		prompt := &survey.Input{Message: "Transaction signature:"}
		if err := survey.AskOne(prompt, &sig, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
		logs = true
	}
	signature, err := solana.SignatureFromBase58(strings.TrimSpace(sig))
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}

	fmt.Println(promptStyle.Render("Fetching transaction..."))
	res, err := h.Client.GetTransaction(ctx, signature)
	if err != nil {
		return err
	}
	view, err := chain.InspectTransaction(res, h.Schema, h.ProgramID)
	if err != nil {
		return err
	}
	printTransaction(view, h.ProgramID, logs)
	return nil
}

func printTransaction(v *chain.TransactionView, programID solana.PublicKey, logs bool) {
	fmt.Println(titleStyle.Render("🔎 Transaction"))
	fmt.Println(field("Signature", v.Signature))
	fmt.Println(field("Slot", v.Slot))
	if v.BlockTime != nil {
		fmt.Println(field("Time", v.BlockTime.Local().Format("2006-01-02 15:04:05")))
	}
	if v.Failed {
		fmt.Println(labelStyle.Render("Status") + " " + warningStyle.Render("Failed "+v.ErrMsg))
	} else {
		fmt.Println(labelStyle.Render("Status") + " " + successStyle.Render("Success"))
	}
	fmt.Println(field("Fee", fmt.Sprintf("%d lamports", v.Fee)))
	if v.ComputeUnits != nil {
		fmt.Println(field("Compute units", *v.ComputeUnits))
	}

	fmt.Println(titleStyle.Render("Instructions"))
	for _, ix := range v.Instructions {
		indent := "  "
		if ix.Inner {
			indent = "      "
		}
		head := fmt.Sprintf("%s#%s %s", indent, ix.Index, table.Shorten(ix.ProgramID.String()))
		switch {
		case ix.Decoded != nil && ix.Decoded.SelfCPI:
			fmt.Println(infoStyle.Render(head + " event " + ix.Decoded.Name))
		case ix.Decoded != nil:
			fmt.Println(infoStyle.Render(head + " " + ix.Decoded.Name))
		case ix.DecodeErr != nil:
			fmt.Println(infoStyle.Render(head) + " " + warningStyle.Render(ix.DecodeErr.Error()))
			continue
		default:
			fmt.Println(promptStyle.Render(head))
			continue
		}
		if len(ix.Decoded.Args) > 0 {
			fmt.Println(indentLines(prettyJSON(ix.Decoded.Args), indent+"  "))
		}
		for _, acc := range ix.Labeled {
			flags := ""
			if acc.IsWritable {
				flags += " writable"
			}
			if acc.IsSigner {
				flags += " signer"
			}
			fmt.Println(indent + "  " + field(acc.Name, acc.PublicKey) + promptStyle.Render(flags))
		}
	}

	if len(v.Events) > 0 {
		fmt.Println(titleStyle.Render("Events"))
		for _, ev := range v.Events {
			if ev.Err != nil {
				fmt.Println(warningStyle.Render(fmt.Sprintf("  log %d: %v", ev.Line+1, ev.Err)))
				continue
			}
			fmt.Println(infoStyle.Render("  " + ev.Event.Name))
			fmt.Println(indentLines(prettyJSON(ev.Event.Fields), "    "))
		}
	}

	if msgs := chain.ProgramLogs(programID, v.Logs); len(msgs) > 0 {
		fmt.Println(titleStyle.Render("Program Messages"))
		for _, m := range msgs {
			fmt.Println(promptStyle.Render("  " + m))
		}
	}
	if logs && len(v.Logs) > 0 {
		fmt.Println(titleStyle.Render("Logs"))
		for _, l := range v.Logs {
			fmt.Println(promptStyle.Render("  " + l))
		}
	}
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
