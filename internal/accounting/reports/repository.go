package reports

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
)

// SnapshotSource reads accounts and posted entries from one consistent snapshot.
type SnapshotSource interface {
	balances.Source
	ListAccounts(ctx context.Context, filter accounting.AccountFilter) ([]accounting.Account, error)
}

// TxRepository persists report records.
type TxRepository interface {
	InsertReport(ctx context.Context, rec ReportRecord) (ReportRecord, error)
	GetReport(ctx context.Context, id int64) (ReportRecord, error)
	ListReports(ctx context.Context, filter ListFilter) ([]ReportRecord, error)
}

// Repository opens read snapshots for generation and write transactions for records.
type Repository interface {
	Snapshot(ctx context.Context, fn func(context.Context, SnapshotSource) error) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
