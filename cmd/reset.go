package cmd

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetClear bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the configured program",
	Long: `Drops the live program session. With --clear the saved program
configuration is deleted as well; otherwise it is restored on the next run.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(_ context.Context, a *app, _ []string) error {
		return runReset(a, resetClear)
	}),
}

func init() {
	resetCmd.Flags().BoolVar(&resetClear, "clear", true, "also delete the saved program configuration")
	rootCmd.AddCommand(resetCmd)
}

func runReset(a *app, clear bool) error {
	cfg := a.session.Config()
	if cfg == nil {
		fmt.Println(promptStyle.Render("No program is configured."))
		return nil
	}
	if !clear {
		prompt := &survey.Confirm{Message: "Also delete the saved configuration?", Default: true}
		if err := survey.AskOne(prompt, &clear); err != nil {
			return err
		}
	}
	confirm := false
	prompt := &survey.Confirm{Message: fmt.Sprintf("Reset %s (%s)?", cfg.Name, cfg.ProgramID), Default: false}
	if err := survey.AskOne(prompt, &confirm); err != nil {
		return err
	}
	if !confirm {
		fmt.Println(promptStyle.Render("\nReset cancelled."))
		return nil
	}
	if err := a.session.Reset(clear); err != nil {
		return err
	}
	a.log.Info("program reset", zap.String("program", cfg.ProgramID), zap.Bool("cleared", clear))
	fmt.Println(successStyle.Render("\n✅ Program reset."))
	return nil
}
