package openitems

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

var (
	// ErrInvalidAmount indicates a detail amount whose sign disagrees with its type.
	ErrInvalidAmount = errors.New("openitems: amount sign does not match detail type")
	// ErrOverAllocation indicates an allocation or payment outside (0, balance].
	ErrOverAllocation = errors.New("openitems: amount exceeds open balance")
	// ErrInconsistentAggregation indicates stored master totals disagree with its details.
	ErrInconsistentAggregation = errors.New("openitems: master totals inconsistent with details")
	// ErrMasterNotFound indicates missing master.
	ErrMasterNotFound = errors.New("openitems: master not found")
	// ErrDetailNotFound indicates missing detail.
	ErrDetailNotFound = errors.New("openitems: detail not found")
	// ErrDetailHasAllocations indicates an archive attempt on an allocated detail.
	ErrDetailHasAllocations = errors.New("openitems: detail has allocations")
	// ErrDetailArchived indicates a mutation on an archived detail.
	ErrDetailArchived = errors.New("openitems: detail archived")
	// ErrCounterpartyMismatch indicates a detail attached to another counterparty's master.
	ErrCounterpartyMismatch = errors.New("openitems: detail does not belong to master counterparty")
	// ErrPaymentApplied indicates a direct payment reference already recorded on the master.
	ErrPaymentApplied = errors.New("openitems: payment already applied")
	// ErrDuplicateMaster indicates a concurrent insert of the same source document master.
	ErrDuplicateMaster = errors.New("openitems: master already exists for source document")
)

// OverAllocationError carries the rejected amount and what was available.
type OverAllocationError struct {
	Amount    decimal.Decimal
	Available decimal.Decimal
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("openitems: amount %s outside open balance %s",
		accounting.FormatMoney(e.Amount), accounting.FormatMoney(e.Available))
}

// Is lets errors.Is match ErrOverAllocation.
func (e *OverAllocationError) Is(target error) bool {
	return target == ErrOverAllocation
}

// InconsistentAggregationError reports stored totals that disagree with the details.
type InconsistentAggregationError struct {
	MasterID int64
	Expected Totals
	Actual   Totals
}

func (e *InconsistentAggregationError) Error() string {
	return fmt.Sprintf("openitems: master %d inconsistent: expected invoice %s paid %s balance %s, stored invoice %s paid %s balance %s",
		e.MasterID,
		accounting.FormatMoney(e.Expected.InvoiceAmount), accounting.FormatMoney(e.Expected.PaidAmount), accounting.FormatMoney(e.Expected.Balance),
		accounting.FormatMoney(e.Actual.InvoiceAmount), accounting.FormatMoney(e.Actual.PaidAmount), accounting.FormatMoney(e.Actual.Balance))
}

// Is lets errors.Is match ErrInconsistentAggregation.
func (e *InconsistentAggregationError) Is(target error) bool {
	return target == ErrInconsistentAggregation
}
