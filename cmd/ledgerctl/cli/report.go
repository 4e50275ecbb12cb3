package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

func newReportCommand(actor *int64) *cobra.Command {
	var asOf, from, to, account string
	cmd := &cobra.Command{
		Use:       "report TYPE",
		Short:     "Generate and store a financial report",
		Long:      "Generate one of balance_sheet, income_statement, cash_flow, trial_balance or account_ledger and print its record id.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"balance_sheet", "income_statement", "cash_flow", "trial_balance", "account_ledger"},
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFrom(cmd)
			req := ledger.ReportRequest{Type: reports.ReportType(args[0]), AccountCode: account}
			var err error
			if req.AsOf, err = parseDateFlag("as-of", asOf); err != nil {
				return err
			}
			if req.AsOf.IsZero() {
				req.AsOf = env.now()
			}
			if req.From, err = parseDateFlag("from", from); err != nil {
				return err
			}
			if req.To, err = parseDateFlag("to", to); err != nil {
				return err
			}
			id, err := env.Core.GenerateReport(cmd.Context(), req, *actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s report %d\n", req.Type, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "balance sheet date, defaults to today")
	cmd.Flags().StringVar(&from, "from", "", "period start")
	cmd.Flags().StringVar(&to, "to", "", "period end")
	cmd.Flags().StringVar(&account, "account", "", "account code for account_ledger")
	return cmd
}
