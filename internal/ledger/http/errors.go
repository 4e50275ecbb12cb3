package http

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func rule(status int, title string, targets ...error) []httpx.Rule {
	out := make([]httpx.Rule, 0, len(targets))
	for _, t := range targets {
		out = append(out, httpx.Rule{Target: t, Status: status, Title: title})
	}
	return out
}

var errorRules = concat(
	rule(http.StatusNotFound, "Not Found",
		accounting.ErrAccountNotFound,
		accounting.ErrJournalNotFound,
		accounting.ErrReportNotFound,
		openitems.ErrMasterNotFound,
		openitems.ErrDetailNotFound,
	),
	rule(http.StatusConflict, "Conflict",
		accounting.ErrDuplicateJournalNumber,
		accounting.ErrDuplicateAccountCode,
		accounting.ErrAlreadyReversed,
		shared.ErrIdempotencyConflict,
		openitems.ErrPaymentApplied,
		openitems.ErrDuplicateMaster,
	),
	rule(http.StatusBadRequest, "Validation Failed",
		accounting.ErrInvalidInput,
		accounting.ErrInvalidDateRange,
	),
	rule(http.StatusUnprocessableEntity, "Unprocessable Entity",
		accounting.ErrUnbalanced,
		accounting.ErrTooFewLines,
		accounting.ErrInvalidStatus,
		accounting.ErrJournalNumberRequired,
		accounting.ErrNotLeafAccount,
		accounting.ErrAccountInactive,
		accounting.ErrParentHasPostings,
		accounting.ErrOpeningBalanceLocked,
		openitems.ErrInvalidAmount,
		openitems.ErrOverAllocation,
		openitems.ErrInconsistentAggregation,
		openitems.ErrDetailHasAllocations,
		openitems.ErrDetailArchived,
		openitems.ErrCounterpartyMismatch,
	),
)

func concat(groups ...[]httpx.Rule) []httpx.Rule {
	var out []httpx.Rule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
