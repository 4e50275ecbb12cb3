package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// GroupKey returns the code prefix used to group trial balance rows.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// TrialBalanceRow places one account's balances in debit and credit columns.
type TrialBalanceRow struct {
	Code          string                 `json:"code"`
	Name          string                 `json:"name"`
	Type          accounting.AccountType `json:"type"`
	OpeningDebit  decimal.Decimal        `json:"opening_debit"`
	OpeningCredit decimal.Decimal        `json:"opening_credit"`
	Debit         decimal.Decimal        `json:"debit"`
	Credit        decimal.Decimal        `json:"credit"`
	EndingDebit   decimal.Decimal        `json:"ending_debit"`
	EndingCredit  decimal.Decimal        `json:"ending_credit"`
}

// TrialBalanceTotals sums every column.
type TrialBalanceTotals struct {
	OpeningDebit  decimal.Decimal `json:"opening_debit"`
	OpeningCredit decimal.Decimal `json:"opening_credit"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	EndingDebit   decimal.Decimal `json:"ending_debit"`
	EndingCredit  decimal.Decimal `json:"ending_credit"`
}

func (t *TrialBalanceTotals) add(row TrialBalanceRow) {
	t.OpeningDebit = t.OpeningDebit.Add(row.OpeningDebit)
	t.OpeningCredit = t.OpeningCredit.Add(row.OpeningCredit)
	t.Debit = t.Debit.Add(row.Debit)
	t.Credit = t.Credit.Add(row.Credit)
	t.EndingDebit = t.EndingDebit.Add(row.EndingDebit)
	t.EndingCredit = t.EndingCredit.Add(row.EndingCredit)
}

// TrialBalanceGroup aggregates rows sharing a code prefix.
type TrialBalanceGroup struct {
	Key    string             `json:"key"`
	Rows   []TrialBalanceRow  `json:"rows"`
	Totals TrialBalanceTotals `json:"totals"`
}

// TrialBalancePayload is the structured trial balance.
type TrialBalancePayload struct {
	From       time.Time           `json:"from"`
	To         time.Time           `json:"to"`
	Groups     []TrialBalanceGroup `json:"groups"`
	Totals     TrialBalanceTotals  `json:"totals"`
	IsBalanced bool                `json:"is_balanced"`
	Difference decimal.Decimal     `json:"difference"`
}

// ReportType implements Payload.
func (*TrialBalancePayload) ReportType() ReportType { return TypeTrialBalance }

// Rows flattens the groups in code order.
func (tb *TrialBalancePayload) Rows() []TrialBalanceRow {
	var out []TrialBalanceRow
	for _, g := range tb.Groups {
		out = append(out, g.Rows...)
	}
	return out
}

// place puts a balance in the account's natural column, or the opposite
// column when the balance is negative.
func place(t accounting.AccountType, amount decimal.Decimal) (debit, credit decimal.Decimal) {
	natural := accounting.NormalSideOf(t)
	if amount.IsNegative() {
		amount = amount.Neg()
		if natural == accounting.SideDebit {
			natural = accounting.SideCredit
		} else {
			natural = accounting.SideDebit
		}
	}
	if natural == accounting.SideDebit {
		return amount, decimal.Zero
	}
	return decimal.Zero, amount
}

// BuildTrialBalance lays out opening, period and ending columns for every
// account. Rows with nothing to show are skipped. The balancing check is
// reported, not enforced.
func BuildTrialBalance(from, to time.Time, rows []AccountBalance) *TrialBalancePayload {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range rows {
		row := TrialBalanceRow{Code: acc.Code, Name: acc.Name, Type: acc.Type, Debit: acc.Debit, Credit: acc.Credit}
		row.OpeningDebit, row.OpeningCredit = place(acc.Type, acc.Opening)
		row.EndingDebit, row.EndingCredit = place(acc.Type, acc.Ending)
		if acc.Opening.IsZero() && acc.Debit.IsZero() && acc.Credit.IsZero() && acc.Ending.IsZero() {
			continue
		}
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Rows = append(grp.Rows, row)
		grp.Totals.add(row)
	}

	sort.Strings(keys)
	tb := &TrialBalancePayload{From: accounting.DateOnly(from), To: accounting.DateOnly(to)}
	for _, key := range keys {
		grp := groups[key]
		sortByCode(grp.Rows, func(r TrialBalanceRow) string { return r.Code })
		tb.Groups = append(tb.Groups, *grp)
		for _, row := range grp.Rows {
			tb.Totals.add(row)
		}
	}
	tb.Difference = tb.Totals.Debit.Sub(tb.Totals.Credit)
	tb.IsBalanced = accounting.WithinTolerance(tb.Totals.Debit, tb.Totals.Credit)
	return tb
}
