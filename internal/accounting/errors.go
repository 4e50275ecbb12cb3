package accounting

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrJournalNotFound indicates missing journal.
	ErrJournalNotFound = errors.New("accounting: journal not found")
	// ErrInvalidStatus indicates action can't proceed from the current status.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrAlreadyReversed indicates a posted journal already has a reversal.
	ErrAlreadyReversed = errors.New("accounting: journal already reversed")
	// ErrDuplicateJournalNumber indicates the journal number is taken.
	ErrDuplicateJournalNumber = errors.New("accounting: journal number already exists")
	// ErrJournalNumberRequired indicates the caller did not supply a number.
	ErrJournalNumberRequired = errors.New("accounting: journal number required")
	// ErrAccountNotFound indicates the account code does not exist.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrNotLeafAccount indicates a posting to a non-leaf account.
	ErrNotLeafAccount = errors.New("accounting: account is not a leaf")
	// ErrAccountInactive indicates a posting to a disabled account.
	ErrAccountInactive = errors.New("accounting: account inactive")
	// ErrDuplicateAccountCode indicates the account code is taken.
	ErrDuplicateAccountCode = errors.New("accounting: account code already exists")
	// ErrParentHasPostings indicates a child cannot be attached to an account with postings.
	ErrParentHasPostings = errors.New("accounting: parent account has postings")
	// ErrOpeningBalanceLocked indicates postings already exist for the account.
	ErrOpeningBalanceLocked = errors.New("accounting: opening balance locked by postings")
	// ErrReportNotFound indicates missing report record.
	ErrReportNotFound = errors.New("accounting: report not found")
	// ErrInvalidDateRange indicates from is after to.
	ErrInvalidDateRange = errors.New("accounting: start date after end date")
	// ErrInvalidInput indicates a request that fails field validation.
	ErrInvalidInput = errors.New("accounting: invalid input")
)

// ImbalancedJournalError is returned when a journal's entries do not balance at post time.
type ImbalancedJournalError struct {
	JournalID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

func (e *ImbalancedJournalError) Error() string {
	return fmt.Sprintf("accounting: journal %d imbalanced: debit %s != credit %s",
		e.JournalID, FormatMoney(e.Debit), FormatMoney(e.Credit))
}

// Is lets errors.Is match ErrUnbalanced.
func (e *ImbalancedJournalError) Is(target error) bool {
	return target == ErrUnbalanced
}

// AccountNotFoundError carries the missing account code.
type AccountNotFoundError struct {
	Code string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("accounting: account %q not found", e.Code)
}

// Is lets errors.Is match ErrAccountNotFound.
func (e *AccountNotFoundError) Is(target error) bool {
	return target == ErrAccountNotFound
}

// NotLeafAccountError carries the offending account code.
type NotLeafAccountError struct {
	Code string
}

func (e *NotLeafAccountError) Error() string {
	return fmt.Sprintf("accounting: account %q is not a leaf and cannot receive postings", e.Code)
}

// Is lets errors.Is match ErrNotLeafAccount.
func (e *NotLeafAccountError) Is(target error) bool {
	return target == ErrNotLeafAccount
}

// InvalidInputError keeps the package message of a field validation failure.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string {
	return e.Msg
}

// Is lets errors.Is match ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Invalid formats an InvalidInputError.
func Invalid(format string, args ...any) error {
	return &InvalidInputError{Msg: fmt.Sprintf(format, args...)}
}
