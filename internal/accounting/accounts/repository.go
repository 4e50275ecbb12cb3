package accounts

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Repository abstracts transactional repository behaviour.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Reader exposes account lookups shared by every ledger transaction.
type Reader interface {
	GetAccountByCode(ctx context.Context, code string) (accounting.Account, error)
	GetAccountByID(ctx context.Context, id int64) (accounting.Account, error)
	ListAccounts(ctx context.Context, filter accounting.AccountFilter) ([]accounting.Account, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Reader
	InsertAccount(ctx context.Context, acc accounting.Account) (accounting.Account, error)
	UpdateAccount(ctx context.Context, acc accounting.Account) error
	HasPostedEntries(ctx context.Context, accountID int64) (bool, error)
	AdjustCurrentBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error
}
