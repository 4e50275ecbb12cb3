package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

const (
	// CashFlowMethod names the only cash flow method produced.
	CashFlowMethod = "direct-simplified"
	cashFlowNote   = "Simplified cash flow: movements of cash and bank accounts only, no operating/investing/financing classification."
)

// CashFlowLine is one cash or bank account's movement.
type CashFlowLine struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
}

// CashFlowPayload is the structured cash flow statement.
type CashFlowPayload struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Method       string          `json:"method"`
	Note         string          `json:"note"`
	Lines        []CashFlowLine  `json:"lines"`
	TotalInflow  decimal.Decimal `json:"total_inflow"`
	TotalOutflow decimal.Decimal `json:"total_outflow"`
	NetCashFlow  decimal.Decimal `json:"net_cash_flow"`
}

// ReportType implements Payload.
func (*CashFlowPayload) ReportType() ReportType { return TypeCashFlow }

// BuildCashFlow treats debits to cash accounts as inflow and credits as
// outflow. rows must already be restricted to cash and bank accounts.
func BuildCashFlow(from, to time.Time, rows []AccountBalance) *CashFlowPayload {
	cf := &CashFlowPayload{
		From:   accounting.DateOnly(from),
		To:     accounting.DateOnly(to),
		Method: CashFlowMethod,
		Note:   cashFlowNote,
	}
	for _, row := range rows {
		cf.Lines = append(cf.Lines, CashFlowLine{
			Code:    row.Code,
			Name:    row.Name,
			Inflow:  row.Debit,
			Outflow: row.Credit,
			Net:     row.Debit.Sub(row.Credit),
		})
		cf.TotalInflow = cf.TotalInflow.Add(row.Debit)
		cf.TotalOutflow = cf.TotalOutflow.Add(row.Credit)
	}
	sortByCode(cf.Lines, func(l CashFlowLine) string { return l.Code })
	cf.NetCashFlow = cf.TotalInflow.Sub(cf.TotalOutflow)
	return cf
}
