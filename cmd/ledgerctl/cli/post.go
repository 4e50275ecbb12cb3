package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

func newPostCommand(actor *int64) *cobra.Command {
	var (
		number, date, journalType, description string
		lines                                  []string
	)
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create and post a balanced journal",
		Example: `  ledgerctl post --number JV-12 --date 2026-03-05 \
    --line 1002:750.00:0 --line 4100:0:750.00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFrom(cmd)
			d, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			if d.IsZero() {
				d = env.now()
			}
			in := journals.CreateInput{
				Number:      number,
				Type:        accounting.JournalType(journalType),
				Date:        d,
				Description: description,
				PreparedBy:  *actor,
			}
			for _, raw := range lines {
				entry, err := parseLine(raw)
				if err != nil {
					return err
				}
				in.Entries = append(in.Entries, entry)
			}
			j, err := env.Core.PostJournal(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "posted %s (id %d, period %s) debit %s credit %s\n",
				j.Number, j.ID, j.Period, formatMoney(j.TotalDebit), formatMoney(j.TotalCredit))
			return nil
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "journal number (required)")
	_ = cmd.MarkFlagRequired("number")
	cmd.Flags().StringVar(&date, "date", "", "journal date, defaults to today")
	cmd.Flags().StringVar(&journalType, "type", "", "journal type")
	cmd.Flags().StringVar(&description, "description", "", "journal description")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "entry as CODE:DEBIT:CREDIT, repeatable")
	return cmd
}

// parseLine reads CODE:DEBIT:CREDIT. Empty amounts are zero.
func parseLine(raw string) (journals.EntryInput, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 || strings.TrimSpace(parts[0]) == "" {
		return journals.EntryInput{}, fmt.Errorf("--line %q: expected CODE:DEBIT:CREDIT", raw)
	}
	debit, err := accounting.ParseMoney(strings.TrimSpace(parts[1]))
	if err != nil {
		return journals.EntryInput{}, fmt.Errorf("--line %q: %w", raw, err)
	}
	credit, err := accounting.ParseMoney(strings.TrimSpace(parts[2]))
	if err != nil {
		return journals.EntryInput{}, fmt.Errorf("--line %q: %w", raw, err)
	}
	return journals.EntryInput{AccountCode: strings.TrimSpace(parts[0]), Debit: debit, Credit: credit}, nil
}
