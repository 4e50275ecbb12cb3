// Package openitems aggregates partial receivable and payable obligations
// (details) into master records and allocates payments against them.
package openitems

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Kind separates supplier payables from customer receivables.
type Kind string

const (
	KindPayable    Kind = "payable"
	KindReceivable Kind = "receivable"
)

// Valid reports whether k is known.
func (k Kind) Valid() bool {
	return k == KindPayable || k == KindReceivable
}

// MasterStatus enumerates master payment states.
type MasterStatus string

const (
	MasterPending       MasterStatus = "pending"
	MasterPartiallyPaid MasterStatus = "partially_paid"
	MasterPaid          MasterStatus = "paid"
	MasterOverdue       MasterStatus = "overdue"
)

// DetailType says whether a detail raises or reduces the obligation.
type DetailType string

const (
	DetailPositive DetailType = "positive"
	DetailNegative DetailType = "negative"
)

// DetailStatus enumerates allocation progress.
type DetailStatus string

const (
	DetailPending   DetailStatus = "pending"
	DetailPartial   DetailStatus = "partial"
	DetailAllocated DetailStatus = "allocated"
)

// Lifecycle replaces hard deletes.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleArchived Lifecycle = "archived"
)

// Master aggregates the details owed by or to one counterparty for one source document.
type Master struct {
	ID             int64
	Kind           Kind
	CounterpartyID int64
	SourceDoc      accounting.DocumentRef
	Number         string
	Status         MasterStatus
	InvoiceAmount  decimal.Decimal
	PaidAmount     decimal.Decimal
	Balance        decimal.Decimal
	DueDate        *time.Time
	Currency       string
	Lifecycle      Lifecycle
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Details        []Detail
}

// PaymentRatio returns paid/invoice as a percentage, zero when nothing is invoiced.
func (m Master) PaymentRatio() decimal.Decimal {
	if !m.InvoiceAmount.IsPositive() {
		return decimal.Zero
	}
	return m.PaidAmount.Div(m.InvoiceAmount).Mul(decimal.NewFromInt(100)).Round(2)
}

// IsOverdue reports whether an unpaid master is past its due date at asOf.
func (m Master) IsOverdue(asOf time.Time) bool {
	if m.DueDate == nil || !m.Balance.IsPositive() {
		return false
	}
	return accounting.DateOnly(asOf).After(accounting.DateOnly(*m.DueDate))
}

// DeriveStatus computes the status implied by the amounts and due date.
func (m Master) DeriveStatus(asOf time.Time) MasterStatus {
	switch {
	case !m.Balance.IsPositive():
		return MasterPaid
	case m.PaidAmount.IsPositive():
		return MasterPartiallyPaid
	case m.IsOverdue(asOf):
		return MasterOverdue
	default:
		return MasterPending
	}
}

func (m Master) totals() Totals {
	return Totals{InvoiceAmount: m.InvoiceAmount, PaidAmount: m.PaidAmount, Balance: m.Balance}
}

// Detail is one signed obligation event such as a receipt or a return.
type Detail struct {
	ID              int64
	Number          string
	MasterID        *int64
	Kind            Kind
	CounterpartyID  int64
	DetailType      DetailType
	Amount          decimal.Decimal
	AllocatedAmount decimal.Decimal
	Status          DetailStatus
	BusinessDate    time.Time
	Origin          accounting.DocumentRef
	Lifecycle       Lifecycle
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Balance is the unallocated part of the detail, signed like Amount.
func (d Detail) Balance() decimal.Decimal {
	return d.Amount.Sub(d.AllocatedAmount)
}

// deriveStatus computes allocation progress from the amounts.
func (d Detail) deriveStatus() DetailStatus {
	switch {
	case d.AllocatedAmount.IsZero():
		return DetailPending
	case d.AllocatedAmount.Abs().LessThan(d.Amount.Abs()):
		return DetailPartial
	default:
		return DetailAllocated
	}
}

// MasterKey identifies the master for a counterparty and source document.
type MasterKey struct {
	Kind           Kind
	CounterpartyID int64
	SourceDoc      accounting.DocumentRef
}

// Totals is the amount triple of a master.
type Totals struct {
	InvoiceAmount decimal.Decimal
	PaidAmount    decimal.Decimal
	Balance       decimal.Decimal
}

// Equal compares every amount.
func (t Totals) Equal(o Totals) bool {
	return t.InvoiceAmount.Equal(o.InvoiceAmount) && t.PaidAmount.Equal(o.PaidAmount) && t.Balance.Equal(o.Balance)
}

// AggregateDetails sums active details into master totals.
func AggregateDetails(details []Detail) Totals {
	var t Totals
	for _, d := range details {
		if d.Lifecycle == LifecycleArchived {
			continue
		}
		t.InvoiceAmount = t.InvoiceAmount.Add(d.Amount)
		t.PaidAmount = t.PaidAmount.Add(d.AllocatedAmount)
	}
	t.Balance = t.InvoiceAmount.Sub(t.PaidAmount)
	return t
}

// ChangeEntity names the row a change refers to.
type ChangeEntity string

const (
	EntityMaster ChangeEntity = "master"
	EntityDetail ChangeEntity = "detail"
)

const actionDirectPayment = "direct_payment"

// ChangeState snapshots the amounts of a master or detail.
type ChangeState struct {
	Balance decimal.Decimal `json:"balance"`
	Settled decimal.Decimal `json:"settled"`
	Status  string          `json:"status"`
}

func masterState(m Master) ChangeState {
	return ChangeState{Balance: m.Balance, Settled: m.PaidAmount, Status: string(m.Status)}
}

func detailState(d Detail) ChangeState {
	return ChangeState{Balance: d.Balance(), Settled: d.AllocatedAmount, Status: string(d.Status)}
}

// Change is one append-only audit row for a master or detail mutation.
type Change struct {
	ID       int64
	MasterID int64
	Entity   ChangeEntity
	EntityID int64
	Action   string
	Amount   decimal.Decimal
	// Reference identifies the external payment for direct payments.
	Reference string
	ActorID   int64
	Before    ChangeState
	After     ChangeState
	At        time.Time
}

// MasterFilter narrows master listings.
type MasterFilter struct {
	Kind           Kind
	CounterpartyID int64
	Status         MasterStatus
	OpenOnly       bool
	IncludeArchive bool
	Limit          int
}

// Match reports whether m satisfies the filter.
func (f MasterFilter) Match(m Master) bool {
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if f.CounterpartyID != 0 && m.CounterpartyID != f.CounterpartyID {
		return false
	}
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if f.OpenOnly && m.Status == MasterPaid {
		return false
	}
	if !f.IncludeArchive && m.Lifecycle == LifecycleArchived {
		return false
	}
	return true
}
