package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"anchor-studio/config"
	"anchor-studio/idl"
	"anchor-studio/session"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type setupOptions struct {
	idlPath   string
	rpc       string
	programID string
}

var setupOpts setupOptions

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Load a program IDL and connect to a cluster",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		return runSetup(ctx, a, setupOpts)
	}),
}

func init() {
	setupCmd.Flags().StringVar(&setupOpts.idlPath, "idl", "", "path to the program's IDL JSON")
	setupCmd.Flags().StringVar(&setupOpts.rpc, "rpc", "", "rpc preset (mainnet-beta, devnet, localnet) or endpoint URL")
	setupCmd.Flags().StringVar(&setupOpts.programID, "program-id", "", "program address, when the IDL has none")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(ctx context.Context, a *app, opts setupOptions) error {
	fmt.Println(titleStyle.Render("🚀 Program Setup"))

	path := opts.idlPath
	if path == "" {
		prompt := &survey.Input{Message: "Path to the IDL JSON file:"}
		if err := survey.AskOne(prompt, &path, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}
	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return fmt.Errorf("failed to read IDL: %w", err)
	}
	schema, err := idl.Parse(data)
	if err != nil {
		return err
	}
	fmt.Println(field("Program", fmt.Sprintf("%s %s", schema.Name, schema.Version)))

	programID := opts.programID
	if programID == "" && schema.Address == "" {
		prompt := &survey.Input{Message: "The IDL has no address. Program address:"}
		if err := survey.AskOne(prompt, &programID, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	url, err := a.chooseRPC(opts.rpc)
	if err != nil {
		return err
	}

	wallet, err := a.loadWallet()
	if err != nil {
		return err
	}

	fmt.Println(promptStyle.Render(fmt.Sprintf("\nConnecting to %s...", url)))
	h, err := a.session.Submit(ctx, session.Submission{
		IDL:        data,
		RPCURL:     url,
		Commitment: a.cfg.Commitment,
		ProgramID:  programID,
	}, wallet)
	if err != nil {
		return err
	}
	a.log.Info("program configured",
		zap.String("program", h.ProgramID.String()),
		zap.String("name", h.Schema.Name),
		zap.String("rpc", url),
	)

	fmt.Println(successStyle.Render("\n✅ Program Ready"))
	fmt.Println(field("Address", h.ProgramID))
	fmt.Println(field("Cluster", h.Config.Cluster))
	fmt.Println(field("Wallet", h.Wallet.PublicKey()))
	return nil
}

// chooseRPC resolves a preset name or URL, asking when none is given.
func (a *app) chooseRPC(choice string) (string, error) {
	if choice == "" {
		options := make([]string, 0, len(config.Presets()))
		for _, p := range config.Presets() {
			options = append(options, string(p))
		}
		prompt := &survey.Select{
			Message: "Choose a cluster:",
			Options: options,
			Default: string(a.cfg.RPC.Preset),
		}
		if err := survey.AskOne(prompt, &choice); err != nil {
			return "", err
		}
	}

	switch p := config.Preset(choice); p {
	case config.PresetMainnet, config.PresetDevnet, config.PresetLocalnet:
		return a.cfg.URLFor(p), nil
	case config.PresetCustom:
		url := a.cfg.RPC.CustomURL
		prompt := &survey.Input{Message: "RPC endpoint URL:", Default: url}
		if err := survey.AskOne(prompt, &url, survey.WithValidator(validateURL)); err != nil {
			return "", err
		}
		return url, nil
	}
	if err := validateURL(choice); err != nil {
		return "", err
	}
	return choice, nil
}

func validateURL(ans interface{}) error {
	s, _ := ans.(string)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("%q is not an http(s) URL", s)
	}
	return nil
}
