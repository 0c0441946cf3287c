package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"anchor-studio/table"

	"github.com/AlecAivazis/survey/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type accountsOptions struct {
	kind      string
	addresses []string
	filter    string
	sort      []string
	pageSize  int
	print     bool
	full      bool
}

var accountsOpts accountsOptions

var accountsCmd = &cobra.Command{
	Use:   "accounts [kind]",
	Short: "Fetch and decode program accounts of one kind",
	Long: `Fetches every account of the given kind owned by the program, or only the
addresses passed with --address, and shows them decoded in a table.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		opts := accountsOpts
		if len(args) == 1 {
			opts.kind = args[0]
		}
		if opts.pageSize <= 0 {
			opts.pageSize = a.cfg.PageSize
		}
		return runAccounts(ctx, a, opts)
	}),
}

func init() {
	f := accountsCmd.Flags()
	f.StringSliceVar(&accountsOpts.addresses, "address", nil, "decode only these account addresses")
	f.StringVar(&accountsOpts.filter, "filter", "", "show rows containing this text in any column")
	f.StringSliceVar(&accountsOpts.sort, "sort", nil, "sort by columns; prefix with - for descending, e.g. --sort -balance,authority")
	f.IntVar(&accountsOpts.pageSize, "page-size", 0, "rows per page (default from config)")
	f.BoolVar(&accountsOpts.print, "print", false, "print every matching row and exit")
	f.BoolVar(&accountsOpts.full, "full", false, "show full addresses")
	rootCmd.AddCommand(accountsCmd)
}

func runAccounts(ctx context.Context, a *app, opts accountsOptions) error {
	h, err := a.live(ctx)
	if err != nil {
		return err
	}
	if len(h.Schema.Accounts) == 0 {
		return errors.New("the program declares no account kinds")
	}

	kind := opts.kind
	if kind == "" {
		names := make([]string, len(h.Schema.Accounts))
		for i, acc := range h.Schema.Accounts {
			names[i] = acc.Name
		}
		if err := survey.AskOne(&survey.Select{Message: "Account kind:", Options: names}, &kind); err != nil {
			return err
		}
	}
	def, ok := h.Schema.Account(kind)
	if !ok {
		return fmt.Errorf("the program has no account kind %q", kind)
	}

	fmt.Println(promptStyle.Render(fmt.Sprintf("Fetching %s accounts...", kind)))
	var raw []table.RawAccount
	if len(opts.addresses) > 0 {
		keys := make([]solana.PublicKey, len(opts.addresses))
		for i, s := range opts.addresses {
			if keys[i], err = solana.PublicKeyFromBase58(strings.TrimSpace(s)); err != nil {
				return fmt.Errorf("invalid address %q: %w", s, err)
			}
		}
		accounts, err := h.Client.GetMultipleAccounts(ctx, keys)
		if err != nil {
			return err
		}
		for i, acc := range accounts {
			if acc == nil {
				fmt.Println(warningStyle.Render(fmt.Sprintf("%s does not exist", keys[i])))
				continue
			}
			raw = append(raw, table.RawAccount{Address: acc.Address.String(), Data: acc.Data})
		}
	} else {
		accounts, err := h.Client.GetProgramAccounts(ctx, h.ProgramID, def.Discriminator)
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			raw = append(raw, table.RawAccount{Address: acc.Address.String(), Data: acc.Data})
		}
	}

	tbl, err := table.DecodeAccounts(h.Schema, kind, raw, opts.pageSize)
	if err != nil {
		return err
	}
	a.log.Debug("decoded accounts", zap.String("kind", kind), zap.Int("rows", tbl.Total()))

	tbl.SetFilter(opts.filter)
	if len(opts.sort) > 0 {
		if err := tbl.SortBy(parseSortKeys(opts.sort)...); err != nil {
			return err
		}
	}

	render := table.Options{FullAddresses: opts.full}
	if opts.print {
		tbl.SetPageSize(max(tbl.Len(), 1))
		fmt.Println(tbl.Render(render))
		return nil
	}
	return browse(tbl, render)
}

func parseSortKeys(specs []string) []table.SortKey {
	keys := make([]table.SortKey, 0, len(specs))
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := table.SortKey{Column: s}
		if strings.HasPrefix(s, "-") {
			k = table.SortKey{Column: s[1:], Desc: true}
		}
		keys = append(keys, k)
	}
	return keys
}

const (
	browseNext   = "Next page"
	browsePrev   = "Previous page"
	browseFilter = "Filter"
	browseSort   = "Sort"
	browseRow    = "Show row"
	browseDone   = "Done"
)

// browse pages through a table until the user is done.
func browse(tbl *table.Table, opt table.Options) error {
	for {
		fmt.Println(tbl.Render(opt))

		var options []string
		if tbl.PageIndex()+1 < tbl.PageCount() {
			options = append(options, browseNext)
		}
		if tbl.PageIndex() > 0 {
			options = append(options, browsePrev)
		}
		options = append(options, browseFilter, browseSort)
		if len(tbl.Page()) > 0 {
			options = append(options, browseRow)
		}
		options = append(options, browseDone)

		var choice string
		if err := survey.AskOne(&survey.Select{Message: "Table:", Options: options}, &choice); err != nil {
			return err
		}

		switch choice {
		case browseNext:
			tbl.NextPage()
		case browsePrev:
			tbl.PrevPage()
		case browseFilter:
			query := tbl.Filter()
			if err := survey.AskOne(&survey.Input{Message: "Filter (empty to clear):", Default: query}, &query); err != nil {
				return err
			}
			tbl.SetFilter(query)
		case browseSort:
			if err := askSort(tbl); err != nil {
				printErr(err)
			}
		case browseRow:
			if err := showRow(tbl); err != nil {
				return err
			}
		case browseDone:
			return nil
		}
	}
}

func askSort(tbl *table.Table) error {
	ids := make([]string, len(tbl.Columns))
	for i, c := range tbl.Columns {
		ids[i] = c.ID
	}
	var picked []string
	prompt := &survey.MultiSelect{
		Message: "Sort by (in order of precedence, none to restore):",
		Options: ids,
	}
	if err := survey.AskOne(prompt, &picked); err != nil {
		return err
	}
	keys := make([]table.SortKey, len(picked))
	for i, id := range picked {
		desc := false
		if err := survey.AskOne(&survey.Confirm{Message: fmt.Sprintf("Descending by %s?", id)}, &desc); err != nil {
			return err
		}
		keys[i] = table.SortKey{Column: id, Desc: desc}
	}
	return tbl.SortBy(keys...)
}

func showRow(tbl *table.Table) error {
	page := tbl.Page()
	addrs := make([]string, len(page))
	for i, r := range page {
		addrs[i] = r.Address
	}
	var addr string
	if err := survey.AskOne(&survey.Select{Message: "Account:", Options: addrs}, &addr); err != nil {
		return err
	}
	for _, r := range page {
		if r.Address != addr {
			continue
		}
		fmt.Println(titleStyle.Render(r.Address))
		if r.Err != nil {
			printErr(r.Err)
			return nil
		}
		fmt.Println(prettyJSON(r.Values))
	}
	return nil
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
