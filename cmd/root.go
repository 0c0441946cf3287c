package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"anchor-studio/session"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	figure "github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "anchor-studio",
	Short:        "Anchor Studio lets you explore and call Anchor programs.",
	Long:         `An interactive command-line console for Anchor programs: load an IDL, browse and decode program accounts, build and send instructions, and inspect transactions.`,
	SilenceUsage: true,
	RunE:         withApp(run),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/anchor-studio/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

const (
	menuSetup     = "Set Up Program"
	menuDashboard = "View Dashboard"
	menuAccounts  = "Browse Accounts"
	menuIx        = "Run Instruction"
	menuTx        = "Inspect Transaction"
	menuHistory   = "Signature History"
	menuWallet    = "Wallet"
	menuRetry     = "Retry Connection"
	menuReset     = "Reset Program"
	menuExit      = "Exit"
)

// run is the main entry point for the interactive CLI.
func run(ctx context.Context, a *app, _ []string) error {
	myFigure := figure.NewFigure("ANCHOR", "larry3d", true)
	fmt.Println(titleStyle.Render(myFigure.String()))

	for {
		printStatus(a)

		var choice string
		menu := &survey.Select{
			Message: promptStyle.Render("Choose an action:"),
			Options: menuOptions(a.session.State()),
			Help:    "Use the arrow keys to navigate, and press Enter to select.",
		}
		if err := survey.AskOne(menu, &choice); err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				return nil
			}
			return err
		}

		var err error
		switch choice {
		case menuSetup:
			err = runSetup(ctx, a, setupOptions{})
		case menuDashboard:
			err = runDashboard(ctx, a)
		case menuAccounts:
			err = runAccounts(ctx, a, accountsOptions{pageSize: a.cfg.PageSize})
		case menuIx:
			err = runInstruction(ctx, a, instructionOptions{})
		case menuTx:
			err = runTransaction(ctx, a, "", false)
		case menuHistory:
			err = runHistory(ctx, a, historyOptions{limit: 20})
		case menuWallet:
			err = runWallet(ctx, a)
		case menuRetry:
			_, err = a.session.Retry(ctx)
		case menuReset:
			err = runReset(a, false)
		case menuExit:
			fmt.Println("Exiting Anchor Studio.")
			return nil
		}
		if err != nil {
			if errors.Is(err, terminal.InterruptErr) || errors.Is(err, context.Canceled) {
				fmt.Println(promptStyle.Render("Cancelled."))
			} else {
				printErr(err)
			}
		}
		fmt.Println()
	}
}

func menuOptions(state session.State) []string {
	switch state {
	case session.Empty:
		return []string{menuSetup, menuWallet, menuExit}
	case session.Error:
		return []string{menuRetry, menuSetup, menuDashboard, menuWallet, menuReset, menuExit}
	}
	return []string{menuDashboard, menuAccounts, menuIx, menuTx, menuHistory, menuWallet, menuSetup, menuReset, menuExit}
}

func printStatus(a *app) {
	state := a.session.State()
	line := "Status: " + state.String()
	if cfg := a.session.Config(); cfg != nil {
		line += fmt.Sprintf(" · %s (%s) on %s", cfg.Name, cfg.ProgramID, cfg.Cluster)
	}
	fmt.Println(promptStyle.Render(line))
	if err := a.session.Err(); err != nil && state == session.Error {
		printErr(err)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(warningStyle.Render(err.Error()))
		os.Exit(1)
	}
}
