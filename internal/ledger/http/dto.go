package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
)

type referenceRequest struct {
	Type   string `json:"type" validate:"max=50"`
	ID     string `json:"id" validate:"max=64"`
	Number string `json:"number" validate:"max=64"`
}

func (r *referenceRequest) ref() accounting.DocumentRef {
	if r == nil {
		return accounting.DocumentRef{}
	}
	return accounting.DocumentRef{Type: r.Type, ID: r.ID, Number: r.Number}
}

type entryRequest struct {
	AccountCode  string `json:"account_code" validate:"required,max=20"`
	Debit        string `json:"debit" validate:"omitempty,numeric"`
	Credit       string `json:"credit" validate:"omitempty,numeric"`
	Description  string `json:"description" validate:"max=255"`
	CustomerID   *int64 `json:"customer_id"`
	SupplierID   *int64 `json:"supplier_id"`
	DepartmentID *int64 `json:"department_id"`
	Project      string `json:"project" validate:"max=100"`
}

type postJournalRequest struct {
	Number      string            `json:"number" validate:"required,max=50"`
	Type        string            `json:"type" validate:"omitempty,oneof=general cash bank transfer adjustment"`
	Date        string            `json:"date" validate:"required,datetime=2006-01-02"`
	Reference   *referenceRequest `json:"reference"`
	Description string            `json:"description" validate:"max=500"`
	Notes       string            `json:"notes"`
	Entries     []entryRequest    `json:"entries" validate:"required,min=2,dive"`
}

func (req postJournalRequest) input(actor int64) (journals.CreateInput, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return journals.CreateInput{}, err
	}
	in := journals.CreateInput{
		Number:      req.Number,
		Type:        accounting.JournalType(req.Type),
		Date:        date,
		Reference:   req.Reference.ref(),
		Description: req.Description,
		Notes:       req.Notes,
		PreparedBy:  actor,
	}
	for _, e := range req.Entries {
		debit, err := accounting.ParseMoney(e.Debit)
		if err != nil {
			return journals.CreateInput{}, err
		}
		credit, err := accounting.ParseMoney(e.Credit)
		if err != nil {
			return journals.CreateInput{}, err
		}
		in.Entries = append(in.Entries, journals.EntryInput{
			AccountCode:  e.AccountCode,
			Debit:        debit,
			Credit:       credit,
			Description:  e.Description,
			CustomerID:   e.CustomerID,
			SupplierID:   e.SupplierID,
			DepartmentID: e.DepartmentID,
			Project:      e.Project,
		})
	}
	return in, nil
}

type reverseJournalRequest struct {
	Number string `json:"number" validate:"max=50"`
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Memo   string `json:"memo" validate:"max=500"`
}

type createDetailRequest struct {
	Number         string            `json:"number" validate:"max=50"`
	MasterID       int64             `json:"master_id" validate:"omitempty,gt=0"`
	Kind           string            `json:"kind" validate:"omitempty,oneof=payable receivable"`
	CounterpartyID int64             `json:"counterparty_id" validate:"omitempty,gt=0"`
	SourceDoc      *referenceRequest `json:"source_doc"`
	DueDate        string            `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Currency       string            `json:"currency" validate:"omitempty,len=3"`
	DetailType     string            `json:"detail_type" validate:"required,oneof=positive negative"`
	Amount         string            `json:"amount" validate:"required,numeric"`
	BusinessDate   string            `json:"business_date" validate:"required,datetime=2006-01-02"`
	Origin         *referenceRequest `json:"origin"`
	Notes          string            `json:"notes"`
}

func (req createDetailRequest) input(actor int64) (openitems.CreateDetailInput, error) {
	amount, err := accounting.ParseMoney(req.Amount)
	if err != nil {
		return openitems.CreateDetailInput{}, err
	}
	businessDate, err := parseDate(req.BusinessDate)
	if err != nil {
		return openitems.CreateDetailInput{}, err
	}
	var due *time.Time
	if req.DueDate != "" {
		d, err := parseDate(req.DueDate)
		if err != nil {
			return openitems.CreateDetailInput{}, err
		}
		due = &d
	}
	return openitems.CreateDetailInput{
		Number:   req.Number,
		MasterID: req.MasterID,
		Key: openitems.MasterKey{
			Kind:           openitems.Kind(req.Kind),
			CounterpartyID: req.CounterpartyID,
			SourceDoc:      req.SourceDoc.ref(),
		},
		Master: openitems.MasterOptions{
			DueDate:  due,
			Currency: req.Currency,
			ActorID:  actor,
		},
		DetailType:   openitems.DetailType(req.DetailType),
		Amount:       amount,
		BusinessDate: businessDate,
		Origin:       req.Origin.ref(),
		Notes:        req.Notes,
		ActorID:      actor,
	}, nil
}

type amountRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

func (req amountRequest) value() (decimal.Decimal, error) {
	return accounting.ParseMoney(req.Amount)
}

type directPaymentRequest struct {
	amountRequest
	Reference string `json:"reference" validate:"max=80"`
}

type generateReportRequest struct {
	AsOf        string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	From        string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To          string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	AccountCode string `json:"account_code" validate:"max=20"`
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, accounting.Invalid("invalid date %q", raw)
	}
	return t, nil
}
