package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// IncomeStatementPayload is the structured income statement.
type IncomeStatementPayload struct {
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	Revenue         Section         `json:"revenue"`
	Cost            Section         `json:"cost"`
	Expenses        Section         `json:"expenses"`
	GrossProfit     decimal.Decimal `json:"gross_profit"`
	OperatingProfit decimal.Decimal `json:"operating_profit"`
	NetProfit       decimal.Decimal `json:"net_profit"`
}

// ReportType implements Payload.
func (*IncomeStatementPayload) ReportType() ReportType { return TypeIncomeStatement }

// BuildIncomeStatement aggregates period movements of revenue, cost and expense
// accounts. Net profit equals operating profit; no non-operating items or tax.
func BuildIncomeStatement(from, to time.Time, rows []AccountBalance) *IncomeStatementPayload {
	is := &IncomeStatementPayload{
		From:     accounting.DateOnly(from),
		To:       accounting.DateOnly(to),
		Revenue:  Section{Label: "Revenue"},
		Cost:     Section{Label: "Cost"},
		Expenses: Section{Label: "Expenses"},
	}
	for _, row := range rows {
		var target *Section
		switch row.Type {
		case accounting.AccountTypeRevenue:
			target = &is.Revenue
		case accounting.AccountTypeCost:
			target = &is.Cost
		case accounting.AccountTypeExpense:
			target = &is.Expenses
		default:
			continue
		}
		amount := accounting.SignedMovement(row.Type, row.Debit, row.Credit)
		if amount.IsZero() {
			continue
		}
		target.add(row.Code, row.Name, amount)
	}
	sortLines(is.Revenue.Lines)
	sortLines(is.Cost.Lines)
	sortLines(is.Expenses.Lines)
	is.GrossProfit = is.Revenue.Total.Sub(is.Cost.Total)
	is.OperatingProfit = is.GrossProfit.Sub(is.Expenses.Total)
	is.NetProfit = is.OperatingProfit
	return is
}
