package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithTx runs fn inside a serializable transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.Write, func(tx pgx.Tx) error {
		return fn(ctx, NewTxQueries(tx))
	})
}

// TxQueries holds account statements bound to one transaction. Other ledger
// repositories embed it so account reads share their transaction.
type TxQueries struct {
	Tx pgx.Tx
}

// NewTxQueries wraps tx.
func NewTxQueries(tx pgx.Tx) *TxQueries {
	return &TxQueries{Tx: tx}
}

const accountColumns = `id, code, name, type, category, parent_id, level, is_leaf, is_active,
allow_manual_entry, opening_balance::text, current_balance::text, description, created_at, updated_at`

func scanAccount(row pgx.Row) (accounting.Account, error) {
	var (
		acc              accounting.Account
		accType, cat     string
		opening, current string
	)
	if err := row.Scan(&acc.ID, &acc.Code, &acc.Name, &accType, &cat, &acc.ParentID, &acc.Level,
		&acc.IsLeaf, &acc.IsActive, &acc.AllowManualEntry, &opening, &current, &acc.Description,
		&acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return accounting.Account{}, err
	}
	acc.Type = accounting.AccountType(accType)
	acc.Category = accounting.AccountCategory(cat)
	values, err := db.NumericSet(&opening, &current)
	if err != nil {
		return accounting.Account{}, err
	}
	acc.OpeningBalance, acc.CurrentBalance = values[0], values[1]
	return acc, nil
}

// GetAccountByCode loads an account by code.
func (q *TxQueries) GetAccountByCode(ctx context.Context, code string) (accounting.Account, error) {
	acc, err := scanAccount(q.Tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.Account{}, &accounting.AccountNotFoundError{Code: code}
	}
	return acc, err
}

// GetAccountByID loads an account by id.
func (q *TxQueries) GetAccountByID(ctx context.Context, id int64) (accounting.Account, error) {
	acc, err := scanAccount(q.Tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.Account{}, &accounting.AccountNotFoundError{Code: fmt.Sprintf("#%d", id)}
	}
	return acc, err
}

// ListAccounts returns accounts matching filter ordered by code.
func (q *TxQueries) ListAccounts(ctx context.Context, filter accounting.AccountFilter) ([]accounting.Account, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		clauses = append(clauses, fmt.Sprintf("type=$%d", len(args)))
	}
	if filter.LeafOnly {
		clauses = append(clauses, "is_leaf")
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "is_active")
	}
	if len(filter.CodePrefixes) > 0 {
		var likes []string
		for _, prefix := range filter.CodePrefixes {
			args = append(args, prefix+"%")
			likes = append(likes, fmt.Sprintf("code LIKE $%d", len(args)))
		}
		clauses = append(clauses, "("+strings.Join(likes, " OR ")+")")
	}
	sql := `SELECT ` + accountColumns + ` FROM accounts`
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}
	sql += " ORDER BY code"
	rows, err := q.Tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// InsertAccount stores a new account.
func (q *TxQueries) InsertAccount(ctx context.Context, acc accounting.Account) (accounting.Account, error) {
	err := q.Tx.QueryRow(ctx, `INSERT INTO accounts (code, name, type, category, parent_id, level, is_leaf, is_active,
allow_manual_entry, opening_balance, current_balance, description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id`,
		acc.Code, acc.Name, string(acc.Type), string(acc.Category), acc.ParentID, acc.Level, acc.IsLeaf,
		acc.IsActive, acc.AllowManualEntry, db.Numeric(acc.OpeningBalance), db.Numeric(acc.CurrentBalance),
		acc.Description, acc.CreatedAt, acc.UpdatedAt).Scan(&acc.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return accounting.Account{}, accounting.ErrDuplicateAccountCode
		}
		return accounting.Account{}, err
	}
	return acc, nil
}

// UpdateAccount persists mutable account attributes.
func (q *TxQueries) UpdateAccount(ctx context.Context, acc accounting.Account) error {
	tag, err := q.Tx.Exec(ctx, `UPDATE accounts SET name=$2, category=$3, is_leaf=$4, is_active=$5,
allow_manual_entry=$6, opening_balance=$7, current_balance=$8, description=$9, updated_at=$10 WHERE id=$1`,
		acc.ID, acc.Name, string(acc.Category), acc.IsLeaf, acc.IsActive, acc.AllowManualEntry,
		db.Numeric(acc.OpeningBalance), db.Numeric(acc.CurrentBalance), acc.Description, acc.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &accounting.AccountNotFoundError{Code: acc.Code}
	}
	return nil
}

// HasPostedEntries reports whether any posted journal references the account.
func (q *TxQueries) HasPostedEntries(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := q.Tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_entries je JOIN journals j ON j.id = je.journal_id
WHERE je.account_id=$1 AND j.status='posted')`, accountID).Scan(&exists)
	return exists, err
}

// AdjustCurrentBalance adds delta to the cached current balance.
func (q *TxQueries) AdjustCurrentBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	tag, err := q.Tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2::numeric, updated_at = NOW() WHERE id=$1`,
		accountID, db.Numeric(delta))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &accounting.AccountNotFoundError{Code: fmt.Sprintf("#%d", accountID)}
	}
	return nil
}
