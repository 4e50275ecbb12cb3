package journals

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// EntryInput describes one leg of a journal.
type EntryInput struct {
	AccountCode  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Description  string
	CustomerID   *int64
	SupplierID   *int64
	DepartmentID *int64
	Project      string
}

// CreateInput groups fields required to create a journal.
type CreateInput struct {
	Number      string
	Type        accounting.JournalType
	Date        time.Time
	Period      string
	Reference   accounting.DocumentRef
	Description string
	Notes       string
	PreparedBy  int64
	Entries     []EntryInput
}

// Validate ensures the input meets minimum criteria. Balance is checked at post time.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Number) == "" {
		return accounting.ErrJournalNumberRequired
	}
	if in.Date.IsZero() {
		return accounting.Invalid("accounting: journal date required")
	}
	if len(in.Entries) < 2 {
		return accounting.ErrTooFewLines
	}
	for idx, e := range in.Entries {
		if strings.TrimSpace(e.AccountCode) == "" {
			return accounting.Invalid("accounting: entry %d missing account", idx)
		}
		debit, credit := accounting.Money(e.Debit), accounting.Money(e.Credit)
		if debit.IsNegative() || credit.IsNegative() {
			return accounting.Invalid("accounting: entry %d negative amount", idx)
		}
		if debit.IsZero() && credit.IsZero() {
			return accounting.Invalid("accounting: entry %d has no amount", idx)
		}
	}
	return nil
}

func (in CreateInput) journalType() accounting.JournalType {
	if in.Type == "" {
		return accounting.JournalTypeGeneral
	}
	return in.Type
}

func (in CreateInput) period() string {
	if p := strings.TrimSpace(in.Period); p != "" {
		return p
	}
	return accounting.PeriodOf(in.Date)
}

// PostInput identifies a draft journal to post.
type PostInput struct {
	JournalID int64
	PostedBy  int64
}

// ReviewInput stamps the reviewer on a draft.
type ReviewInput struct {
	JournalID  int64
	ReviewedBy int64
}

// CancelInput wraps parameters for cancelling a draft.
type CancelInput struct {
	JournalID int64
	ActorID   int64
	Reason    string
}

// ReverseInput wraps parameters for reversing a posted journal.
type ReverseInput struct {
	JournalID int64
	Number    string
	Date      *time.Time
	ActorID   int64
	Memo      string
}

// ListFilter narrows journal listings.
type ListFilter = accounting.JournalFilter
