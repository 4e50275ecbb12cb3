package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
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

// Snapshot opens a read-only repeatable read transaction.
func (r *PGRepository) Snapshot(ctx context.Context, fn func(context.Context, SnapshotSource) error) error {
	return db.WithTx(ctx, r.pool, db.Snapshot, func(tx pgx.Tx) error {
		return fn(ctx, balances.NewTxSource(tx))
	})
}

// WithTx opens a write transaction for report records.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

const reportColumns = `id, type, report_date, start_date, end_date, payload, total_assets::text,
total_liabilities::text, total_equity::text, net_profit::text, generated_at, generated_by, notes`

func nullableNumeric(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := db.Numeric(*d)
	return &s
}

func parseNullable(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := db.ParseNumeric(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanReport(row pgx.Row) (ReportRecord, error) {
	var (
		rec                      ReportRecord
		rType                    string
		payload                  []byte
		assets, liab, eq, profit *string
	)
	if err := row.Scan(&rec.ID, &rType, &rec.ReportDate, &rec.StartDate, &rec.EndDate, &payload,
		&assets, &liab, &eq, &profit, &rec.GeneratedAt, &rec.GeneratedBy, &rec.Notes); err != nil {
		return ReportRecord{}, err
	}
	rec.Type = ReportType(rType)
	p, err := DecodePayload(payload)
	if err != nil {
		return ReportRecord{}, err
	}
	rec.Payload = p
	for _, pair := range []struct {
		raw  *string
		dest **decimal.Decimal
	}{{assets, &rec.Summary.TotalAssets}, {liab, &rec.Summary.TotalLiabilities}, {eq, &rec.Summary.TotalEquity}, {profit, &rec.Summary.NetProfit}} {
		if *pair.dest, err = parseNullable(pair.raw); err != nil {
			return ReportRecord{}, err
		}
	}
	return rec, nil
}

func (r *txRepository) InsertReport(ctx context.Context, rec ReportRecord) (ReportRecord, error) {
	payload, err := EncodePayload(rec.Payload)
	if err != nil {
		return ReportRecord{}, err
	}
	err = r.tx.QueryRow(ctx, `INSERT INTO report_records (type, report_date, start_date, end_date, payload,
total_assets, total_liabilities, total_equity, net_profit, generated_at, generated_by, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		string(rec.Type), rec.ReportDate, rec.StartDate, rec.EndDate, payload,
		nullableNumeric(rec.Summary.TotalAssets), nullableNumeric(rec.Summary.TotalLiabilities),
		nullableNumeric(rec.Summary.TotalEquity), nullableNumeric(rec.Summary.NetProfit),
		rec.GeneratedAt, rec.GeneratedBy, rec.Notes).Scan(&rec.ID)
	if err != nil {
		return ReportRecord{}, err
	}
	return rec, nil
}

func (r *txRepository) GetReport(ctx context.Context, id int64) (ReportRecord, error) {
	rec, err := scanReport(r.tx.QueryRow(ctx, `SELECT `+reportColumns+` FROM report_records WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ReportRecord{}, accounting.ErrReportNotFound
	}
	return rec, err
}

func (r *txRepository) ListReports(ctx context.Context, filter ListFilter) ([]ReportRecord, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		clauses = append(clauses, fmt.Sprintf("type=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, accounting.DateOnly(*filter.From))
		clauses = append(clauses, fmt.Sprintf("report_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, accounting.DateOnly(*filter.To))
		clauses = append(clauses, fmt.Sprintf("report_date <= $%d", len(args)))
	}
	sql := `SELECT ` + reportColumns + ` FROM report_records`
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}
	sql += " ORDER BY generated_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReportRecord
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
