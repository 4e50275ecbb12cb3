package reports

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// ReportType enumerates persisted report kinds.
type ReportType string

const (
	TypeBalanceSheet    ReportType = "balance_sheet"
	TypeIncomeStatement ReportType = "income_statement"
	TypeCashFlow        ReportType = "cash_flow"
	TypeTrialBalance    ReportType = "trial_balance"
	TypeAccountLedger   ReportType = "account_ledger"
)

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	switch t {
	case TypeBalanceSheet, TypeIncomeStatement, TypeCashFlow, TypeTrialBalance, TypeAccountLedger:
		return true
	}
	return false
}

// AccountBalance is one account's balance row fed into the builders.
type AccountBalance struct {
	Code     string
	Name     string
	Type     accounting.AccountType
	Category accounting.AccountCategory
	Opening  decimal.Decimal
	Debit    decimal.Decimal
	Credit   decimal.Decimal
	Ending   decimal.Decimal
}

// RowFrom combines an account with its computed balance.
func RowFrom(acc accounting.Account, bal accounting.Balance) AccountBalance {
	return AccountBalance{
		Code:     acc.Code,
		Name:     acc.Name,
		Type:     acc.Type,
		Category: acc.Category,
		Opening:  bal.OpeningBalance,
		Debit:    bal.Debit,
		Credit:   bal.Credit,
		Ending:   bal.EndingBalance,
	}
}

// Line is one account shown on a statement.
type Line struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Section groups statement lines with their total.
type Section struct {
	Label string          `json:"label"`
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func (s *Section) add(code, name string, amount decimal.Decimal) {
	s.Lines = append(s.Lines, Line{Code: code, Name: name, Amount: amount})
	s.Total = s.Total.Add(amount)
}

// Payload is the typed body of a report record.
type Payload interface {
	ReportType() ReportType
}

type envelope struct {
	Type ReportType      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload renders p as {"type": ..., "data": ...}.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("reports: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: p.ReportType(), Data: data})
}

// DecodePayload parses an encoded payload back into its concrete type.
func DecodePayload(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("reports: decode envelope: %w", err)
	}
	var p Payload
	switch env.Type {
	case TypeBalanceSheet:
		p = &BalanceSheetPayload{}
	case TypeIncomeStatement:
		p = &IncomeStatementPayload{}
	case TypeCashFlow:
		p = &CashFlowPayload{}
	case TypeTrialBalance:
		p = &TrialBalancePayload{}
	case TypeAccountLedger:
		p = &AccountLedgerPayload{}
	default:
		return nil, fmt.Errorf("reports: unknown payload type %q", env.Type)
	}
	if err := json.Unmarshal(env.Data, p); err != nil {
		return nil, fmt.Errorf("reports: decode %s: %w", env.Type, err)
	}
	return p, nil
}

// Summary carries the scalar columns stored beside the payload.
type Summary struct {
	TotalAssets      *decimal.Decimal `json:"total_assets,omitempty"`
	TotalLiabilities *decimal.Decimal `json:"total_liabilities,omitempty"`
	TotalEquity      *decimal.Decimal `json:"total_equity,omitempty"`
	NetProfit        *decimal.Decimal `json:"net_profit,omitempty"`
}

// ReportRecord is an immutable generated report.
type ReportRecord struct {
	ID          int64      `json:"id"`
	Type        ReportType `json:"type"`
	ReportDate  time.Time  `json:"report_date"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Payload     Payload    `json:"-"`
	Summary     Summary    `json:"summary"`
	GeneratedAt time.Time  `json:"generated_at"`
	GeneratedBy int64      `json:"generated_by"`
	Notes       string     `json:"notes,omitempty"`
}

type recordAlias ReportRecord

type recordJSON struct {
	recordAlias
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON embeds the tagged payload.
func (r ReportRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{recordAlias: recordAlias(r)}
	if r.Payload != nil {
		raw, err := EncodePayload(r.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the concrete payload type.
func (r *ReportRecord) UnmarshalJSON(raw []byte) error {
	var in recordJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	*r = ReportRecord(in.recordAlias)
	if len(in.Payload) > 0 && string(in.Payload) != "null" {
		p, err := DecodePayload(in.Payload)
		if err != nil {
			return err
		}
		r.Payload = p
	}
	return nil
}

// ListFilter narrows report listings.
type ListFilter struct {
	Type  ReportType
	From  *time.Time
	To    *time.Time
	Limit int
}

// Match reports whether rec satisfies the filter.
func (f ListFilter) Match(rec ReportRecord) bool {
	if f.Type != "" && rec.Type != f.Type {
		return false
	}
	date := accounting.DateOnly(rec.ReportDate)
	if f.From != nil && date.Before(accounting.DateOnly(*f.From)) {
		return false
	}
	if f.To != nil && date.After(accounting.DateOnly(*f.To)) {
		return false
	}
	return true
}

func sortLines(lines []Line) {
	sortByCode(lines, func(l Line) string { return l.Code })
}
