package balances

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Source reads posted ledger data inside one transaction.
type Source interface {
	GetAccountByCode(ctx context.Context, code string) (accounting.Account, error)
	// SumPostedEntries totals entries of posted journals dated inside window.
	SumPostedEntries(ctx context.Context, accountID int64, window accounting.DateWindow) (debit, credit decimal.Decimal, err error)
	// ListPostedEntries returns the same entries ordered by journal date then id.
	ListPostedEntries(ctx context.Context, accountID int64, window accounting.DateWindow) ([]accounting.LedgerLine, error)
}

// Repository opens a consistent read snapshot.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Source) error) error
}
