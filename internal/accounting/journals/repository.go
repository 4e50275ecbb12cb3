package journals

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	accounts.Reader
	AdjustCurrentBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error

	InsertJournal(ctx context.Context, j accounting.Journal) (accounting.Journal, error)
	GetJournal(ctx context.Context, id int64) (accounting.Journal, error)
	GetJournalForUpdate(ctx context.Context, id int64) (accounting.Journal, error)
	UpdateJournal(ctx context.Context, j accounting.Journal) error
	FindReversal(ctx context.Context, originalID int64) (int64, bool, error)
	ListJournals(ctx context.Context, filter accounting.JournalFilter) ([]accounting.Journal, error)
}
