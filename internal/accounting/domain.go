package accounting

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeCost      AccountType = "cost"
)

// AccountTypes lists every supported account type in presentation order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeCost,
	AccountTypeExpense,
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense, AccountTypeCost:
		return true
	}
	return false
}

// ParseAccountType normalises user supplied account types.
func ParseAccountType(raw string) (AccountType, error) {
	t := AccountType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", Invalid("accounting: unknown account type %q", raw)
	}
	return t, nil
}

// AccountCategory sub-classifies accounts for statement partitioning.
type AccountCategory string

const (
	CategoryCurrentAsset      AccountCategory = "current_asset"
	CategoryFixedAsset        AccountCategory = "fixed_asset"
	CategoryCurrentLiability  AccountCategory = "current_liability"
	CategoryLongTermLiability AccountCategory = "long_term_liability"
	CategoryOperatingRevenue  AccountCategory = "operating_revenue"
	CategoryOperatingExpense  AccountCategory = "operating_expense"
	CategoryFinancialExpense  AccountCategory = "financial_expense"
	CategoryOther             AccountCategory = "other"
	CategoryUnspecified       AccountCategory = ""
)

// Side identifies the debit or credit column.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// NormalSideOf returns the side on which the account type increases.
func NormalSideOf(t AccountType) Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense, AccountTypeCost:
		return SideDebit
	default:
		return SideCredit
	}
}

// ApplySign combines an opening balance with debit/credit movements using the
// account type's normal side. Every balance figure in the ledger goes through
// this function.
func ApplySign(t AccountType, opening, debit, credit decimal.Decimal) decimal.Decimal {
	return opening.Add(SignedMovement(t, debit, credit))
}

// SignedMovement returns the net movement expressed on the normal side.
func SignedMovement(t AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if NormalSideOf(t) == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// JournalType enumerates voucher kinds.
type JournalType string

const (
	JournalTypeGeneral    JournalType = "general"
	JournalTypeCash       JournalType = "cash"
	JournalTypeBank       JournalType = "bank"
	JournalTypeTransfer   JournalType = "transfer"
	JournalTypeAdjustment JournalType = "adjustment"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft     JournalStatus = "draft"
	JournalStatusPosted    JournalStatus = "posted"
	JournalStatusCancelled JournalStatus = "cancelled"
)

// ReferenceTypeReversal marks journals created to offset a posted journal.
const ReferenceTypeReversal = "journal_reversal"

// Account models a chart of accounts node.
type Account struct {
	ID               int64
	Code             string
	Name             string
	Type             AccountType
	Category         AccountCategory
	ParentID         *int64
	Level            int
	IsLeaf           bool
	IsActive         bool
	AllowManualEntry bool
	OpeningBalance   decimal.Decimal
	CurrentBalance   decimal.Decimal
	Description      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NormalSide returns the account's natural balance side.
func (a Account) NormalSide() Side {
	return NormalSideOf(a.Type)
}

// DocumentRef points at the business document that originated a posting.
type DocumentRef struct {
	Type   string
	ID     string
	Number string
}

// IsZero reports whether the reference carries no data.
func (r DocumentRef) IsZero() bool {
	return r.Type == "" && r.ID == "" && r.Number == ""
}

// Journal is one atomic double-entry transaction.
type Journal struct {
	ID           int64
	Number       string
	Type         JournalType
	Status       JournalStatus
	Date         time.Time
	Period       string
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	Reference    DocumentRef
	PreparedBy   *int64
	ReviewedBy   *int64
	PostedBy     *int64
	PostedAt     *time.Time
	CancelledAt  *time.Time
	CancelReason string
	ReversalOf   *int64
	Description  string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Entries      []JournalEntry
}

// IsBalanced reports whether stored totals agree.
func (j Journal) IsBalanced() bool {
	return j.TotalDebit.Equal(j.TotalCredit)
}

// JournalEntry stores debit or credit amount for an account.
type JournalEntry struct {
	ID           int64
	JournalID    int64
	AccountID    int64
	AccountCode  string
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
	Description  string
	CustomerID   *int64
	SupplierID   *int64
	DepartmentID *int64
	Project      string
	SortOrder    int
}

// EntryTotals sums debit and credit columns of the supplied entries.
func EntryTotals(entries []JournalEntry) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range entries {
		debit = debit.Add(e.DebitAmount)
		credit = credit.Add(e.CreditAmount)
	}
	return debit, credit
}

// Balance is the result of a balance computation for one account.
type Balance struct {
	AccountCode    string
	AccountName    string
	AccountType    AccountType
	OpeningBalance decimal.Decimal
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	EndingBalance  decimal.Decimal
}

// PeriodOf returns the YYYY-MM accounting period for a date.
func PeriodOf(date time.Time) string {
	return date.Format("2006-01")
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
