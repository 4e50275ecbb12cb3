package balances

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithTx opens a read-only repeatable read snapshot.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Source) error) error {
	return db.WithTx(ctx, r.pool, db.Snapshot, func(tx pgx.Tx) error {
		return fn(ctx, NewTxSource(tx))
	})
}

// TxSource implements Source on one transaction. The report repository embeds it.
type TxSource struct {
	*accounts.TxQueries
}

// NewTxSource wraps tx.
func NewTxSource(tx pgx.Tx) *TxSource {
	return &TxSource{TxQueries: accounts.NewTxQueries(tx)}
}

func windowClause(window accounting.DateWindow, args []any) (string, []any) {
	args = append(args, accounting.DateOnly(window.To))
	clause := fmt.Sprintf(" AND j.date <= $%d", len(args))
	if window.From != nil {
		args = append(args, accounting.DateOnly(*window.From))
		clause += fmt.Sprintf(" AND j.date >= $%d", len(args))
	}
	return clause, args
}

// SumPostedEntries totals posted entries of the account inside window.
func (s *TxSource) SumPostedEntries(ctx context.Context, accountID int64, window accounting.DateWindow) (decimal.Decimal, decimal.Decimal, error) {
	clause, args := windowClause(window, []any{accountID})
	var debit, credit string
	err := s.Tx.QueryRow(ctx, `SELECT COALESCE(SUM(je.debit_amount),0)::text, COALESCE(SUM(je.credit_amount),0)::text
FROM journal_entries je JOIN journals j ON j.id = je.journal_id
WHERE je.account_id=$1 AND j.status='posted'`+clause, args...).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	sums, err := db.NumericSet(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return sums[0], sums[1], nil
}

// ListPostedEntries returns posted entries of the account inside window.
func (s *TxSource) ListPostedEntries(ctx context.Context, accountID int64, window accounting.DateWindow) ([]accounting.LedgerLine, error) {
	clause, args := windowClause(window, []any{accountID})
	rows, err := s.Tx.Query(ctx, `SELECT j.id, j.number, j.date, COALESCE(NULLIF(je.description,''), j.description),
je.debit_amount::text, je.credit_amount::text
FROM journal_entries je JOIN journals j ON j.id = je.journal_id
WHERE je.account_id=$1 AND j.status='posted'`+clause+` ORDER BY j.date, j.id, je.sort_order`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.LedgerLine
	for rows.Next() {
		var (
			line          accounting.LedgerLine
			debit, credit string
		)
		if err := rows.Scan(&line.JournalID, &line.JournalNumber, &line.Date, &line.Description, &debit, &credit); err != nil {
			return nil, err
		}
		amounts, err := db.NumericSet(&debit, &credit)
		if err != nil {
			return nil, err
		}
		line.Debit, line.Credit = amounts[0], amounts[1]
		out = append(out, line)
	}
	return out, rows.Err()
}
