package http

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type referenceView struct {
	Type   string `json:"type,omitempty"`
	ID     string `json:"id,omitempty"`
	Number string `json:"number,omitempty"`
}

func newReferenceView(r accounting.DocumentRef) *referenceView {
	if r.IsZero() {
		return nil
	}
	return &referenceView{Type: r.Type, ID: r.ID, Number: r.Number}
}

type entryView struct {
	AccountCode string `json:"account_code"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description,omitempty"`
	Project     string `json:"project,omitempty"`
}

type journalView struct {
	ID          int64          `json:"id"`
	Number      string         `json:"number"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	Date        string         `json:"date"`
	Period      string         `json:"period"`
	TotalDebit  string         `json:"total_debit"`
	TotalCredit string         `json:"total_credit"`
	Reference   *referenceView `json:"reference,omitempty"`
	ReversalOf  *int64         `json:"reversal_of,omitempty"`
	Description string         `json:"description,omitempty"`
	PostedAt    *time.Time     `json:"posted_at,omitempty"`
	Entries     []entryView    `json:"entries,omitempty"`
}

func newJournalView(j accounting.Journal) journalView {
	v := journalView{
		ID:          j.ID,
		Number:      j.Number,
		Type:        string(j.Type),
		Status:      string(j.Status),
		Date:        j.Date.Format(time.DateOnly),
		Period:      j.Period,
		TotalDebit:  accounting.FormatMoney(j.TotalDebit),
		TotalCredit: accounting.FormatMoney(j.TotalCredit),
		Reference:   newReferenceView(j.Reference),
		ReversalOf:  j.ReversalOf,
		Description: j.Description,
		PostedAt:    j.PostedAt,
	}
	for _, e := range j.Entries {
		v.Entries = append(v.Entries, entryView{
			AccountCode: e.AccountCode,
			Debit:       accounting.FormatMoney(e.DebitAmount),
			Credit:      accounting.FormatMoney(e.CreditAmount),
			Description: e.Description,
			Project:     e.Project,
		})
	}
	return v
}

type accountView struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Category       string `json:"category,omitempty"`
	Level          int    `json:"level"`
	IsLeaf         bool   `json:"is_leaf"`
	IsActive       bool   `json:"is_active"`
	OpeningBalance string `json:"opening_balance"`
	CurrentBalance string `json:"current_balance"`
}

func newAccountView(a accounting.Account) accountView {
	return accountView{
		Code:           a.Code,
		Name:           a.Name,
		Type:           string(a.Type),
		Category:       string(a.Category),
		Level:          a.Level,
		IsLeaf:         a.IsLeaf,
		IsActive:       a.IsActive,
		OpeningBalance: accounting.FormatMoney(a.OpeningBalance),
		CurrentBalance: accounting.FormatMoney(a.CurrentBalance),
	}
}

type balanceView struct {
	AccountCode    string `json:"account_code"`
	AccountName    string `json:"account_name"`
	AccountType    string `json:"account_type"`
	OpeningBalance string `json:"opening_balance"`
	Debit          string `json:"debit"`
	Credit         string `json:"credit"`
	EndingBalance  string `json:"ending_balance"`
}

func newBalanceView(b accounting.Balance) balanceView {
	return balanceView{
		AccountCode:    b.AccountCode,
		AccountName:    b.AccountName,
		AccountType:    string(b.AccountType),
		OpeningBalance: accounting.FormatMoney(b.OpeningBalance),
		Debit:          accounting.FormatMoney(b.Debit),
		Credit:         accounting.FormatMoney(b.Credit),
		EndingBalance:  accounting.FormatMoney(b.EndingBalance),
	}
}

type masterView struct {
	ID             int64          `json:"id"`
	Kind           string         `json:"kind"`
	CounterpartyID int64          `json:"counterparty_id"`
	SourceDoc      *referenceView `json:"source_doc,omitempty"`
	Number         string         `json:"number,omitempty"`
	Status         string         `json:"status"`
	InvoiceAmount  string         `json:"invoice_amount"`
	PaidAmount     string         `json:"paid_amount"`
	Balance        string         `json:"balance"`
	PaymentRatio   string         `json:"payment_ratio"`
	DueDate        string         `json:"due_date,omitempty"`
	Lifecycle      string         `json:"lifecycle"`
}

func newMasterView(m openitems.Master) masterView {
	v := masterView{
		ID:             m.ID,
		Kind:           string(m.Kind),
		CounterpartyID: m.CounterpartyID,
		SourceDoc:      newReferenceView(m.SourceDoc),
		Number:         m.Number,
		Status:         string(m.Status),
		InvoiceAmount:  accounting.FormatMoney(m.InvoiceAmount),
		PaidAmount:     accounting.FormatMoney(m.PaidAmount),
		Balance:        accounting.FormatMoney(m.Balance),
		PaymentRatio:   m.PaymentRatio().StringFixed(2),
		Lifecycle:      string(m.Lifecycle),
	}
	if m.DueDate != nil {
		v.DueDate = m.DueDate.Format(time.DateOnly)
	}
	return v
}

type detailView struct {
	ID              int64  `json:"id"`
	Number          string `json:"number,omitempty"`
	MasterID        *int64 `json:"master_id,omitempty"`
	DetailType      string `json:"detail_type"`
	Amount          string `json:"amount"`
	AllocatedAmount string `json:"allocated_amount"`
	Balance         string `json:"balance"`
	Status          string `json:"status"`
	BusinessDate    string `json:"business_date"`
	Lifecycle       string `json:"lifecycle"`
}

func newDetailView(d openitems.Detail) detailView {
	return detailView{
		ID:              d.ID,
		Number:          d.Number,
		MasterID:        d.MasterID,
		DetailType:      string(d.DetailType),
		Amount:          accounting.FormatMoney(d.Amount),
		AllocatedAmount: accounting.FormatMoney(d.AllocatedAmount),
		Balance:         accounting.FormatMoney(d.Balance()),
		Status:          string(d.Status),
		BusinessDate:    d.BusinessDate.Format(time.DateOnly),
		Lifecycle:       string(d.Lifecycle),
	}
}

type detailResponse struct {
	Detail detailView `json:"detail"`
	Master masterView `json:"master"`
}

type totalsView struct {
	InvoiceAmount string `json:"invoice_amount"`
	PaidAmount    string `json:"paid_amount"`
	Balance       string `json:"balance"`
}

func newTotalsView(t openitems.Totals) totalsView {
	return totalsView{
		InvoiceAmount: accounting.FormatMoney(t.InvoiceAmount),
		PaidAmount:    accounting.FormatMoney(t.PaidAmount),
		Balance:       accounting.FormatMoney(t.Balance),
	}
}

type aggregationView struct {
	MasterID   int64      `json:"master_id"`
	Consistent bool       `json:"consistent"`
	HasDetails bool       `json:"has_details"`
	Expected   totalsView `json:"expected"`
	Actual     totalsView `json:"actual"`
}

func newAggregationView(c openitems.AggregationCheck) aggregationView {
	return aggregationView{
		MasterID:   c.MasterID,
		Consistent: c.Consistent,
		HasDetails: c.HasDetails,
		Expected:   newTotalsView(c.Expected),
		Actual:     newTotalsView(c.Actual),
	}
}

type listResponse[T any] struct {
	Items      []T               `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

type createdResponse struct {
	ID int64 `json:"id"`
}
