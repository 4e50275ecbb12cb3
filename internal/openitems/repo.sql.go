package openitems

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

const masterColumns = `id, kind, counterparty_id, source_type, source_id, source_number, number, status,
invoice_amount::text, paid_amount::text, balance::text, due_date, currency, lifecycle, notes, created_at, updated_at`

func scanMaster(row pgx.Row) (Master, error) {
	var (
		m                      Master
		kind, status, life     string
		invoice, paid, balance string
	)
	if err := row.Scan(&m.ID, &kind, &m.CounterpartyID, &m.SourceDoc.Type, &m.SourceDoc.ID, &m.SourceDoc.Number,
		&m.Number, &status, &invoice, &paid, &balance, &m.DueDate, &m.Currency, &life, &m.Notes,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return Master{}, err
	}
	m.Kind, m.Status, m.Lifecycle = Kind(kind), MasterStatus(status), Lifecycle(life)
	amounts, err := db.NumericSet(&invoice, &paid, &balance)
	if err != nil {
		return Master{}, err
	}
	m.InvoiceAmount, m.PaidAmount, m.Balance = amounts[0], amounts[1], amounts[2]
	return m, nil
}

func (r *txRepository) FindMaster(ctx context.Context, key MasterKey) (Master, bool, error) {
	m, err := scanMaster(r.tx.QueryRow(ctx, `SELECT `+masterColumns+` FROM open_item_masters
WHERE kind=$1 AND counterparty_id=$2 AND source_type=$3 AND source_id=$4`,
		string(key.Kind), key.CounterpartyID, key.SourceDoc.Type, key.SourceDoc.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Master{}, false, nil
	}
	if err != nil {
		return Master{}, false, err
	}
	return m, true, nil
}

func (r *txRepository) InsertMaster(ctx context.Context, m Master) (Master, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO open_item_masters (kind, counterparty_id, source_type, source_id, source_number,
number, status, invoice_amount, paid_amount, balance, due_date, currency, lifecycle, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16) RETURNING id`,
		string(m.Kind), m.CounterpartyID, m.SourceDoc.Type, m.SourceDoc.ID, m.SourceDoc.Number, m.Number,
		string(m.Status), db.Numeric(m.InvoiceAmount), db.Numeric(m.PaidAmount), db.Numeric(m.Balance),
		m.DueDate, m.Currency, string(m.Lifecycle), m.Notes, m.CreatedAt, m.UpdatedAt).Scan(&m.ID)
	if db.IsUniqueViolation(err, "open_item_masters_source_key") {
		return Master{}, ErrDuplicateMaster
	}
	if err != nil {
		return Master{}, err
	}
	return m, nil
}

func (r *txRepository) GetMaster(ctx context.Context, id int64) (Master, error) {
	return r.loadMaster(ctx, `SELECT `+masterColumns+` FROM open_item_masters WHERE id=$1`, id)
}

func (r *txRepository) GetMasterForUpdate(ctx context.Context, id int64) (Master, error) {
	return r.loadMaster(ctx, `SELECT `+masterColumns+` FROM open_item_masters WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) loadMaster(ctx context.Context, sql string, id int64) (Master, error) {
	m, err := scanMaster(r.tx.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Master{}, ErrMasterNotFound
	}
	return m, err
}

func (r *txRepository) UpdateMaster(ctx context.Context, m Master) error {
	tag, err := r.tx.Exec(ctx, `UPDATE open_item_masters SET status=$2, invoice_amount=$3, paid_amount=$4, balance=$5,
due_date=$6, lifecycle=$7, notes=$8, updated_at=$9 WHERE id=$1`,
		m.ID, string(m.Status), db.Numeric(m.InvoiceAmount), db.Numeric(m.PaidAmount), db.Numeric(m.Balance),
		m.DueDate, string(m.Lifecycle), m.Notes, m.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMasterNotFound
	}
	return nil
}

func (r *txRepository) ListMasters(ctx context.Context, filter MasterFilter) ([]Master, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		clauses = append(clauses, fmt.Sprintf("kind=$%d", len(args)))
	}
	if filter.CounterpartyID != 0 {
		args = append(args, filter.CounterpartyID)
		clauses = append(clauses, fmt.Sprintf("counterparty_id=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.OpenOnly {
		clauses = append(clauses, "status <> 'paid'")
	}
	if !filter.IncludeArchive {
		clauses = append(clauses, "lifecycle = 'active'")
	}
	sql := `SELECT ` + masterColumns + ` FROM open_item_masters`
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}
	sql += " ORDER BY id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Master
	for rows.Next() {
		m, err := scanMaster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const detailColumns = `id, number, master_id, kind, counterparty_id, detail_type, amount::text, allocated_amount::text,
status, business_date, origin_type, origin_id, origin_number, lifecycle, notes, created_at, updated_at`

func scanDetail(row pgx.Row) (Detail, error) {
	var (
		d                         Detail
		kind, dType, status, life string
		amount, allocated         string
	)
	if err := row.Scan(&d.ID, &d.Number, &d.MasterID, &kind, &d.CounterpartyID, &dType, &amount, &allocated,
		&status, &d.BusinessDate, &d.Origin.Type, &d.Origin.ID, &d.Origin.Number, &life, &d.Notes,
		&d.CreatedAt, &d.UpdatedAt); err != nil {
		return Detail{}, err
	}
	d.Kind, d.DetailType, d.Status, d.Lifecycle = Kind(kind), DetailType(dType), DetailStatus(status), Lifecycle(life)
	amounts, err := db.NumericSet(&amount, &allocated)
	if err != nil {
		return Detail{}, err
	}
	d.Amount, d.AllocatedAmount = amounts[0], amounts[1]
	return d, nil
}

func (r *txRepository) InsertDetail(ctx context.Context, d Detail) (Detail, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO open_item_details (number, master_id, kind, counterparty_id, detail_type, amount,
allocated_amount, status, business_date, origin_type, origin_id, origin_number, lifecycle, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16) RETURNING id`,
		d.Number, d.MasterID, string(d.Kind), d.CounterpartyID, string(d.DetailType), db.Numeric(d.Amount),
		db.Numeric(d.AllocatedAmount), string(d.Status), d.BusinessDate, d.Origin.Type, d.Origin.ID, d.Origin.Number,
		string(d.Lifecycle), d.Notes, d.CreatedAt, d.UpdatedAt).Scan(&d.ID)
	if err != nil {
		return Detail{}, err
	}
	return d, nil
}

func (r *txRepository) GetDetail(ctx context.Context, id int64) (Detail, error) {
	return r.loadDetail(ctx, `SELECT `+detailColumns+` FROM open_item_details WHERE id=$1`, id)
}

func (r *txRepository) GetDetailForUpdate(ctx context.Context, id int64) (Detail, error) {
	return r.loadDetail(ctx, `SELECT `+detailColumns+` FROM open_item_details WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) loadDetail(ctx context.Context, sql string, id int64) (Detail, error) {
	d, err := scanDetail(r.tx.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, ErrDetailNotFound
	}
	return d, err
}

func (r *txRepository) UpdateDetail(ctx context.Context, d Detail) error {
	tag, err := r.tx.Exec(ctx, `UPDATE open_item_details SET allocated_amount=$2, status=$3, lifecycle=$4, notes=$5,
updated_at=$6 WHERE id=$1`,
		d.ID, db.Numeric(d.AllocatedAmount), string(d.Status), string(d.Lifecycle), d.Notes, d.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDetailNotFound
	}
	return nil
}

func (r *txRepository) ListDetails(ctx context.Context, masterID int64) ([]Detail, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+detailColumns+` FROM open_item_details WHERE master_id=$1
ORDER BY business_date, id`, masterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertChange(ctx context.Context, c Change) error {
	before, err := json.Marshal(c.Before)
	if err != nil {
		return err
	}
	after, err := json.Marshal(c.After)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO open_item_changes (master_id, entity, entity_id, action, amount, reference, actor_id,
before_state, after_state, occurred_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		c.MasterID, string(c.Entity), c.EntityID, c.Action, db.Numeric(c.Amount), c.Reference, c.ActorID, before, after, c.At)
	if db.IsUniqueViolation(err, "open_item_changes_payment_key") {
		return ErrPaymentApplied
	}
	return err
}

func (r *txRepository) ListChanges(ctx context.Context, masterID int64) ([]Change, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, master_id, entity, entity_id, action, amount::text, reference, actor_id,
before_state, after_state, occurred_at FROM open_item_changes WHERE master_id=$1 ORDER BY id`, masterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Change
	for rows.Next() {
		var (
			c             Change
			entity        string
			amount        string
			before, after []byte
		)
		if err := rows.Scan(&c.ID, &c.MasterID, &entity, &c.EntityID, &c.Action, &amount, &c.Reference, &c.ActorID,
			&before, &after, &c.At); err != nil {
			return nil, err
		}
		c.Entity = ChangeEntity(entity)
		if c.Amount, err = db.ParseNumeric(amount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(before, &c.Before); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(after, &c.After); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
