package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// WithTx runs fn in a serializable transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.Write, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxQueries: accounts.NewTxQueries(tx)})
	})
}

type txRepository struct {
	*accounts.TxQueries
}

const journalColumns = `id, number, type, status, date, period, total_debit::text, total_credit::text,
reference_type, reference_id, reference_number, prepared_by, reviewed_by, posted_by, posted_at,
cancelled_at, cancel_reason, reversal_of, description, notes, created_at, updated_at`

func scanJournal(row pgx.Row) (accounting.Journal, error) {
	var (
		j             accounting.Journal
		jType, status string
		debit, credit string
	)
	err := row.Scan(&j.ID, &j.Number, &jType, &status, &j.Date, &j.Period, &debit, &credit,
		&j.Reference.Type, &j.Reference.ID, &j.Reference.Number, &j.PreparedBy, &j.ReviewedBy, &j.PostedBy,
		&j.PostedAt, &j.CancelledAt, &j.CancelReason, &j.ReversalOf, &j.Description, &j.Notes,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return accounting.Journal{}, err
	}
	j.Type = accounting.JournalType(jType)
	j.Status = accounting.JournalStatus(status)
	totals, err := db.NumericSet(&debit, &credit)
	if err != nil {
		return accounting.Journal{}, err
	}
	j.TotalDebit, j.TotalCredit = totals[0], totals[1]
	return j, nil
}

func (r *txRepository) InsertJournal(ctx context.Context, j accounting.Journal) (accounting.Journal, error) {
	err := r.Tx.QueryRow(ctx, `INSERT INTO journals (number, type, status, date, period, total_debit, total_credit,
reference_type, reference_id, reference_number, prepared_by, reversal_of, description, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16) RETURNING id`,
		j.Number, string(j.Type), string(j.Status), j.Date, j.Period, db.Numeric(j.TotalDebit), db.Numeric(j.TotalCredit),
		j.Reference.Type, j.Reference.ID, j.Reference.Number, j.PreparedBy, j.ReversalOf, j.Description, j.Notes,
		j.CreatedAt, j.UpdatedAt).Scan(&j.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "journals_number_key") {
			return accounting.Journal{}, accounting.ErrDuplicateJournalNumber
		}
		if db.IsUniqueViolation(err, "journals_reversal_of_key") {
			return accounting.Journal{}, accounting.ErrAlreadyReversed
		}
		return accounting.Journal{}, err
	}
	for i := range j.Entries {
		e := &j.Entries[i]
		e.JournalID = j.ID
		if err := r.Tx.QueryRow(ctx, `INSERT INTO journal_entries (journal_id, account_id, debit_amount, credit_amount,
description, customer_id, supplier_id, department_id, project, sort_order)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
			j.ID, e.AccountID, db.Numeric(e.DebitAmount), db.Numeric(e.CreditAmount), e.Description,
			e.CustomerID, e.SupplierID, e.DepartmentID, e.Project, e.SortOrder).Scan(&e.ID); err != nil {
			return accounting.Journal{}, err
		}
	}
	return j, nil
}

func (r *txRepository) GetJournal(ctx context.Context, id int64) (accounting.Journal, error) {
	return r.loadJournal(ctx, `SELECT `+journalColumns+` FROM journals WHERE id=$1`, id)
}

func (r *txRepository) GetJournalForUpdate(ctx context.Context, id int64) (accounting.Journal, error) {
	return r.loadJournal(ctx, `SELECT `+journalColumns+` FROM journals WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) loadJournal(ctx context.Context, sql string, id int64) (accounting.Journal, error) {
	j, err := scanJournal(r.Tx.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.Journal{}, accounting.ErrJournalNotFound
	}
	if err != nil {
		return accounting.Journal{}, err
	}
	rows, err := r.Tx.Query(ctx, `SELECT je.id, je.journal_id, je.account_id, a.code, je.debit_amount::text,
je.credit_amount::text, je.description, je.customer_id, je.supplier_id, je.department_id, je.project, je.sort_order
FROM journal_entries je JOIN accounts a ON a.id = je.account_id
WHERE je.journal_id=$1 ORDER BY je.sort_order, je.id`, id)
	if err != nil {
		return accounting.Journal{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			e             accounting.JournalEntry
			debit, credit string
		)
		if err := rows.Scan(&e.ID, &e.JournalID, &e.AccountID, &e.AccountCode, &debit, &credit, &e.Description,
			&e.CustomerID, &e.SupplierID, &e.DepartmentID, &e.Project, &e.SortOrder); err != nil {
			return accounting.Journal{}, err
		}
		amounts, err := db.NumericSet(&debit, &credit)
		if err != nil {
			return accounting.Journal{}, err
		}
		e.DebitAmount, e.CreditAmount = amounts[0], amounts[1]
		j.Entries = append(j.Entries, e)
	}
	return j, rows.Err()
}

func (r *txRepository) UpdateJournal(ctx context.Context, j accounting.Journal) error {
	tag, err := r.Tx.Exec(ctx, `UPDATE journals SET status=$2, total_debit=$3, total_credit=$4, reviewed_by=$5,
posted_by=$6, posted_at=$7, cancelled_at=$8, cancel_reason=$9, updated_at=$10 WHERE id=$1`,
		j.ID, string(j.Status), db.Numeric(j.TotalDebit), db.Numeric(j.TotalCredit), j.ReviewedBy, j.PostedBy,
		j.PostedAt, j.CancelledAt, j.CancelReason, j.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return accounting.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) FindReversal(ctx context.Context, originalID int64) (int64, bool, error) {
	var id int64
	err := r.Tx.QueryRow(ctx, `SELECT id FROM journals WHERE reversal_of=$1 AND status <> 'cancelled' LIMIT 1`, originalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *txRepository) ListJournals(ctx context.Context, filter accounting.JournalFilter) ([]accounting.Journal, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Period != "" {
		args = append(args, filter.Period)
		clauses = append(clauses, fmt.Sprintf("period=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, accounting.DateOnly(*filter.From))
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, accounting.DateOnly(*filter.To))
		clauses = append(clauses, fmt.Sprintf("date <= $%d", len(args)))
	}
	sql := `SELECT ` + journalColumns + ` FROM journals`
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}
	sql += " ORDER BY date DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := r.Tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
