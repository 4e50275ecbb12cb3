package integration

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
)

// InvoicePosted is emitted by sales (receivable) and purchasing (payable)
// when an invoice is final.
type InvoicePosted struct {
	Kind           openitems.Kind  `json:"kind"`
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	CounterpartyID int64           `json:"counterparty_id"`
	Date           time.Time       `json:"date"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Currency       string          `json:"currency,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	ActorID        int64           `json:"actor_id"`
}

// PaymentPosted settles an invoice previously sent through InvoicePosted.
type PaymentPosted struct {
	Kind           openitems.Kind  `json:"kind"`
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	CounterpartyID int64           `json:"counterparty_id"`
	InvoiceID      int64           `json:"invoice_id"`
	Date           time.Time       `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	ActorID        int64           `json:"actor_id"`
}

func (e InvoicePosted) validate() error {
	switch {
	case !e.Kind.Valid():
		return accounting.Invalid("integration: invalid kind %q", e.Kind)
	case e.ID == 0 || e.CounterpartyID == 0:
		return accounting.Invalid("integration: invoice id and counterparty required")
	case e.Date.IsZero():
		return accounting.Invalid("integration: invoice date required")
	case !e.Amount.IsPositive():
		return accounting.Invalid("integration: invoice amount must be positive")
	}
	return nil
}

func (e PaymentPosted) validate() error {
	switch {
	case !e.Kind.Valid():
		return accounting.Invalid("integration: invalid kind %q", e.Kind)
	case e.ID == 0 || e.InvoiceID == 0 || e.CounterpartyID == 0:
		return accounting.Invalid("integration: payment, invoice and counterparty ids required")
	case e.Date.IsZero():
		return accounting.Invalid("integration: payment date required")
	case !e.Amount.IsPositive():
		return accounting.Invalid("integration: payment amount must be positive")
	}
	return nil
}

// invoiceDoc is the source document keying the invoice's master.
func invoiceDoc(kind openitems.Kind, id int64, number string) accounting.DocumentRef {
	docType := "sales_invoice"
	if kind == openitems.KindPayable {
		docType = "purchase_invoice"
	}
	return accounting.DocumentRef{Type: docType, ID: strconv.FormatInt(id, 10), Number: number}
}
