package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

func newBalanceCommand() *cobra.Command {
	var asOf, since string
	cmd := &cobra.Command{
		Use:   "balance CODE",
		Short: "Show an account balance as of a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFrom(cmd)
			at, err := parseDateFlag("as-of", asOf)
			if err != nil {
				return err
			}
			if at.IsZero() {
				at = env.now()
			}
			from, err := parseDateFlag("since", since)
			if err != nil {
				return err
			}
			var window *time.Time
			if !from.IsZero() {
				window = &from
			}
			bal, err := env.Core.GetBalance(cmd.Context(), args[0], at, window)
			if err != nil {
				return err
			}
			printBalance(cmd, bal)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "balance date, defaults to today")
	cmd.Flags().StringVar(&since, "since", "", "start of the movement window")
	return cmd
}

func printBalance(cmd *cobra.Command, b accounting.Balance) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s %s (%s)\t\n", b.AccountCode, b.AccountName, b.AccountType)
	fmt.Fprintf(tw, "opening\t%s\t\n", formatMoney(b.OpeningBalance))
	fmt.Fprintf(tw, "debit\t%s\t\n", formatMoney(b.Debit))
	fmt.Fprintf(tw, "credit\t%s\t\n", formatMoney(b.Credit))
	fmt.Fprintf(tw, "ending\t%s\t\n", formatMoney(b.EndingBalance))
	_ = tw.Flush()
}
