package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"anchor-studio/chain"
	"anchor-studio/form"
	"anchor-studio/idl"
	"anchor-studio/session"

	"github.com/AlecAivazis/survey/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type instructionOptions struct {
	name      string
	argsFile  string
	remaining []string
	yes       bool
}

var instructionOpts instructionOptions

var instructionCmd = &cobra.Command{
	Use:     "ix [instruction]",
	Aliases: []string{"instruction"},
	Short:   "Build, sign and send a program instruction",
	Long: `Builds an instruction from its IDL definition. Arguments and accounts are asked
for interactively or read from a JSON file given with --args:

  {"args": {"amount": 1000}, "accounts": {"vault": "<address>"}}

Fixed addresses, derivable PDAs and the wallet's signer slots are filled in
automatically.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		opts := instructionOpts
		if len(args) == 1 {
			opts.name = args[0]
		}
		return runInstruction(ctx, a, opts)
	}),
}

func init() {
	f := instructionCmd.Flags()
	f.StringVar(&instructionOpts.argsFile, "args", "", "JSON file with args and accounts")
	f.StringSliceVar(&instructionOpts.remaining, "remaining", nil, "remaining accounts as ADDRESS[:w][:s]")
	f.BoolVarP(&instructionOpts.yes, "yes", "y", false, "send without confirming")
	rootCmd.AddCommand(instructionCmd)
}

func runInstruction(ctx context.Context, a *app, opts instructionOptions) error {
	h, err := a.live(ctx)
	if err != nil {
		return err
	}
	if len(h.Schema.Instructions) == 0 {
		return errors.New("the program declares no instructions")
	}

	name := opts.name
	if name == "" {
		names := make([]string, len(h.Schema.Instructions))
		for i, ix := range h.Schema.Instructions {
			names[i] = ix.Name
		}
		if err := survey.AskOne(&survey.Select{Message: "Instruction:", Options: names}, &name); err != nil {
			return err
		}
	}
	f, err := form.NewInstructionForm(h.Schema, name)
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("⚙️  " + name + signature(f.Instruction.Args)))
	for _, doc := range f.Instruction.Docs {
		fmt.Println(promptStyle.Render(doc))
	}

	remaining, err := parseRemaining(opts.remaining)
	if err != nil {
		return err
	}

	if opts.argsFile != "" {
		data, err := os.ReadFile(opts.argsFile)
		if err != nil {
			return fmt.Errorf("failed to read argument file: %w", err)
		}
		if err := f.ImportJSON(data); err != nil {
			return validationFailed(err)
		}
		prefill(h, f)
	} else {
		if err := fillInteractive(h, f, a.asker); err != nil {
			return err
		}
	}

	args, err := f.Values()
	if err != nil {
		return validationFailed(err)
	}
	keys, err := f.AccountKeys()
	if err != nil {
		return validationFailed(err)
	}
	ix, err := chain.BuildInstruction(h.Schema, h.ProgramID, name, args, keys, remaining...)
	if err != nil {
		return err
	}
	data, err := ix.Data()
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Accounts"))
	for _, acc := range f.Accounts {
		key := acc.Text
		if key == "" {
			key = "(none)"
		}
		source := acc.Source
		if source == "" {
			source = "user"
		}
		fmt.Println(field(acc.Spec.Name, key) + promptStyle.Render("  "+source))
	}
	for i, meta := range remaining {
		fmt.Println(field(fmt.Sprintf("Remaining #%d", i+1), meta.PublicKey))
	}
	fmt.Println(field("Data", hex.EncodeToString(data)))

	if !opts.yes {
		confirm := false
		prompt := &survey.Confirm{Message: fmt.Sprintf("Send %s signed by %s?", name, h.Wallet.PublicKey()), Default: false}
		if err := survey.AskOne(prompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			fmt.Println(promptStyle.Render("\nSend cancelled."))
			return nil
		}
	}

	fmt.Println(promptStyle.Render("\nSending transaction... Please wait."))
	sig, err := h.Client.SendInstructions(ctx, h.Wallet, ix)
	if err != nil {
		if msg := explainProgramError(h.Schema, err); msg != "" {
			fmt.Println(warningStyle.Render(msg))
		}
		return err
	}
	a.log.Info("instruction sent", zap.String("instruction", name), zap.String("signature", sig.String()))
	fmt.Println(successStyle.Render("\n✅ Transaction Sent Successfully!"))
	fmt.Printf("   Transaction Signature: %s\n", sig.String())
	return nil
}

// fillInteractive asks for the arguments, then for each account that could
// not be derived. Derivation reruns after every answer since PDA seeds may
// name accounts entered earlier.
func fillInteractive(h *session.Handle, f *form.InstructionForm, asker form.Asker) error {
	if err := form.FillArgs(f, asker); err != nil {
		return err
	}
	prefill(h, f)
	for _, acc := range f.Accounts {
		if acc.Source != "" && acc.Source != "user" {
			fmt.Println(field(acc.Spec.Name, acc.Text) + promptStyle.Render("  "+acc.Source))
			continue
		}
		if err := form.FillAccount(f, acc, asker); err != nil {
			return err
		}
		prefill(h, f)
	}
	return nil
}

// prefill fills accounts derivable from what the form holds so far.
func prefill(h *session.Handle, f *form.InstructionForm) {
	resolved := chain.ResolveAccounts(h.Schema, h.ProgramID, f.Instruction, f.PartialValues(), f.PartialAccountKeys(), h.Wallet.PublicKey())
	for name, rk := range resolved {
		if rk.Source == chain.SourceUser {
			continue
		}
		f.Prefill(name, rk.Key, string(rk.Source))
	}
}

// parseRemaining reads ADDRESS[:w][:s] specs into account metas.
func parseRemaining(specs []string) ([]*solana.AccountMeta, error) {
	metas := make([]*solana.AccountMeta, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(strings.TrimSpace(spec), ":")
		key, err := solana.PublicKeyFromBase58(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid remaining account %q: %w", spec, err)
		}
		meta := solana.Meta(key)
		for _, flag := range parts[1:] {
			switch flag {
			case "w":
				meta.WRITE()
			case "s":
				meta.SIGNER()
			default:
				return nil, fmt.Errorf("unknown flag %q in remaining account %q", flag, spec)
			}
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// validationFailed lists every field-local problem.
func validationFailed(err error) error {
	problems := form.ValidationErrors(err)
	if len(problems) == 0 {
		return err
	}
	fmt.Println(warningStyle.Render("The instruction is not valid:"))
	for _, p := range problems {
		fmt.Println(warningStyle.Render(fmt.Sprintf("  • %s: %s", p.Path, p.Msg)))
	}
	return fmt.Errorf("%d invalid field(s)", len(multierr.Errors(err)))
}

var customErrRe = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// explainProgramError names the IDL error behind a custom program error.
func explainProgramError(schema *idl.Schema, err error) string {
	m := customErrRe.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	code, perr := strconv.ParseInt(m[1], 16, 64)
	if perr != nil {
		return ""
	}
	def, ok := schema.ErrorByCode(int(code))
	if !ok {
		return fmt.Sprintf("Program error %d", code)
	}
	return fmt.Sprintf("Program error %d %s: %s", def.Code, def.Name, def.Msg)
}
