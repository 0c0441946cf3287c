package cmd

import (
	"context"
	"fmt"
	"strings"

	"anchor-studio/codec"
	"anchor-studio/idl"
	"anchor-studio/table"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the configured program and its IDL",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		return runDashboard(ctx, a)
	}),
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(ctx context.Context, a *app) error {
	schema, programID, cfg, err := a.program()
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("📊 Program Dashboard"))
	name := schema.Name
	if schema.Version != "" {
		name += " v" + schema.Version
	}
	fmt.Println(field("Program", name))
	fmt.Println(field("Address", programID))
	fmt.Println(field("Cluster", cfg.Cluster))
	fmt.Println(field("RPC", cfg.RPCURL))
	fmt.Println(field("Commitment", cfg.Commitment))
	fmt.Println(field("Initialized", cfg.InitializedAt.Local().Format("2006-01-02 15:04:05")))
	fmt.Println(field("Session", a.session.State()))

	if h, err := a.session.Handle(); err == nil {
		fmt.Println(field("Wallet", h.Wallet.PublicKey()))
		balance, err := h.Client.GetBalance(ctx, h.Wallet.PublicKey())
		if err != nil {
			a.log.Debug("balance unavailable", zap.Error(err))
		} else {
			fmt.Println(field("Balance", fmt.Sprintf("%.9f SOL", float64(balance)/float64(solana.LAMPORTS_PER_SOL))))
		}
	}

	fmt.Println(titleStyle.Render("IDL"))
	fmt.Println(field("Instructions", len(schema.Instructions)))
	fmt.Println(field("Accounts", len(schema.Accounts)))
	fmt.Println(field("Types", len(schema.Types())))
	fmt.Println(field("Events", len(schema.Events)))
	fmt.Println(field("Errors", len(schema.Errors)))

	if len(schema.Instructions) > 0 {
		fmt.Println(titleStyle.Render("Instructions"))
		for _, ix := range schema.Instructions {
			fmt.Println(infoStyle.Render("  "+ix.Name) + promptStyle.Render(signature(ix.Args)))
		}
	}

	if len(schema.Errors) > 0 {
		fmt.Println(titleStyle.Render("Error Codes"))
		fmt.Println(errorTable(schema).Render(table.Options{MaxCellWidth: 60}))
	}
	return nil
}

func signature(args []idl.Field) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Name + ": " + a.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func errorTable(schema *idl.Schema) *table.Table {
	cols := []table.Column{
		{ID: "code", Header: "Code", Type: idl.U32},
		{ID: "name", Header: "Name", Type: idl.String},
		{ID: "msg", Header: "Message", Type: idl.String},
	}
	rows := make([]table.Row, len(schema.Errors))
	for i, e := range schema.Errors {
		rows[i].Values = codec.Fields{"code": e.Code, "name": e.Name, "msg": e.Msg}
	}
	return table.New(cols, rows, len(rows))
}
