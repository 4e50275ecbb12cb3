package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newReconcileCommand(actor *int64) *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check open item masters against their details",
		Long:  "Compare every active master with the aggregate of its details. With --fix the master totals are rewritten from the details.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFrom(cmd)
			results, err := env.Core.ReconcileMasters(cmd.Context(), fix, *actor)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "all masters consistent")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MASTER\tEXPECTED BALANCE\tACTUAL BALANCE\tREPAIRED")
			for _, r := range results {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", r.Check.MasterID,
					formatMoney(r.Check.Expected.Balance), formatMoney(r.Check.Actual.Balance), r.Repaired)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if !fix {
				return fmt.Errorf("%d inconsistent master(s), rerun with --fix to repair", len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "rewrite inconsistent master totals from their details")
	return cmd
}

func newVerifyBalancesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-balances",
		Short: "Recompute cached account balances from posted entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			drifts, err := envFrom(cmd).Core.VerifyBalances(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(drifts) == 0 {
				fmt.Fprintln(out, "all balances match")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACCOUNT\tCACHED\tCOMPUTED\tDIFFERENCE")
			for _, d := range drifts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.AccountCode,
					formatMoney(d.Cached), formatMoney(d.Computed), formatMoney(d.Difference()))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return fmt.Errorf("%d account(s) drifted", len(drifts))
		},
	}
}
