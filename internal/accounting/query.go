package accounting

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountFilter narrows account listings.
type AccountFilter struct {
	Type         AccountType
	LeafOnly     bool
	ActiveOnly   bool
	CodePrefixes []string
}

// Match reports whether a satisfies the filter.
func (f AccountFilter) Match(a Account) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.LeafOnly && !a.IsLeaf {
		return false
	}
	if f.ActiveOnly && !a.IsActive {
		return false
	}
	if len(f.CodePrefixes) == 0 {
		return true
	}
	for _, prefix := range f.CodePrefixes {
		if strings.HasPrefix(a.Code, prefix) {
			return true
		}
	}
	return false
}

// JournalFilter narrows journal listings.
type JournalFilter struct {
	Status JournalStatus
	Period string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// DateWindow bounds journal dates. From is inclusive and optional; To is inclusive.
type DateWindow struct {
	From *time.Time
	To   time.Time
}

// Contains reports whether date falls inside the window.
func (w DateWindow) Contains(date time.Time) bool {
	d := DateOnly(date)
	if d.After(DateOnly(w.To)) {
		return false
	}
	if w.From != nil && d.Before(DateOnly(*w.From)) {
		return false
	}
	return true
}

// Before returns the window of every date strictly before since.
func Before(since time.Time) DateWindow {
	return DateWindow{To: DateOnly(since).AddDate(0, 0, -1)}
}

// Between returns the inclusive window [from, to].
func Between(from, to time.Time) DateWindow {
	f := DateOnly(from)
	return DateWindow{From: &f, To: DateOnly(to)}
}

// Through returns the unbounded window ending at asOf.
func Through(asOf time.Time) DateWindow {
	return DateWindow{To: DateOnly(asOf)}
}

// LedgerLine is one posted entry as seen from an account.
type LedgerLine struct {
	JournalID     int64
	JournalNumber string
	Date          time.Time
	Description   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}
