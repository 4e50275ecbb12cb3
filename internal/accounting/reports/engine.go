package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
)

// DefaultCashPrefixes identifies cash on hand and bank deposit accounts.
var DefaultCashPrefixes = []string{"1001", "1002"}

// Engine generates and stores financial reports. It never mutates journals or accounts.
type Engine struct {
	repo         Repository
	cashPrefixes []string
	logger       *slog.Logger
	now          func() time.Time
}

// NewEngine constructs the engine. cashPrefixes defaults to DefaultCashPrefixes.
func NewEngine(repo Repository, cashPrefixes []string) *Engine {
	if len(cashPrefixes) == 0 {
		cashPrefixes = DefaultCashPrefixes
	}
	return &Engine{repo: repo, cashPrefixes: cashPrefixes, logger: slog.Default(), now: time.Now}
}

// WithLogger overrides the logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithNow overrides the clock.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// collect loads balances of every active leaf account matching filter.
func collect(ctx context.Context, src SnapshotSource, filter accounting.AccountFilter, asOf time.Time, since *time.Time) ([]AccountBalance, error) {
	filter.LeafOnly = true
	filter.ActiveOnly = true
	accs, err := src.ListAccounts(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows := make([]AccountBalance, 0, len(accs))
	for _, acc := range accs {
		bal, err := balances.BalanceOf(ctx, src, acc, asOf, since)
		if err != nil {
			return nil, err
		}
		rows = append(rows, RowFrom(acc, bal))
	}
	return rows, nil
}

func collectTypes(ctx context.Context, src SnapshotSource, asOf time.Time, since *time.Time, types ...accounting.AccountType) ([]AccountBalance, error) {
	var rows []AccountBalance
	for _, t := range types {
		part, err := collect(ctx, src, accounting.AccountFilter{Type: t}, asOf, since)
		if err != nil {
			return nil, fmt.Errorf("reports: %s balances: %w", t, err)
		}
		rows = append(rows, part...)
	}
	return rows, nil
}

func checkRange(from, to time.Time) error {
	if accounting.DateOnly(from).After(accounting.DateOnly(to)) {
		return accounting.ErrInvalidDateRange
	}
	return nil
}

// GenerateBalanceSheet builds and stores the balance sheet as of asOf.
func (e *Engine) GenerateBalanceSheet(ctx context.Context, asOf time.Time, actor int64) (ReportRecord, error) {
	var payload *BalanceSheetPayload
	err := e.repo.Snapshot(ctx, func(ctx context.Context, src SnapshotSource) error {
		rows, err := collectTypes(ctx, src, asOf, nil,
			accounting.AccountTypeAsset, accounting.AccountTypeLiability, accounting.AccountTypeEquity)
		if err != nil {
			return err
		}
		payload = BuildBalanceSheet(asOf, rows)
		return nil
	})
	if err != nil {
		return ReportRecord{}, err
	}
	if !payload.IsBalanced {
		e.logger.Warn("balance sheet not balanced",
			slog.String("as_of", payload.AsOf.Format(time.DateOnly)),
			slog.String("assets", accounting.FormatMoney(payload.TotalAssets)),
			slog.String("liabilities_and_equity", accounting.FormatMoney(payload.TotalLiabilitiesAndEquity)),
			slog.String("difference", accounting.FormatMoney(payload.Difference)))
	}
	return e.SaveReport(ctx, ReportRecord{
		Type:       TypeBalanceSheet,
		ReportDate: payload.AsOf,
		Payload:    payload,
		Summary: Summary{
			TotalAssets:      ptr(payload.TotalAssets),
			TotalLiabilities: ptr(payload.TotalLiabilities),
			TotalEquity:      ptr(payload.TotalEquity),
		},
		GeneratedBy: actor,
	})
}

// GenerateIncomeStatement builds and stores the income statement for [from, to].
func (e *Engine) GenerateIncomeStatement(ctx context.Context, from, to time.Time, actor int64) (ReportRecord, error) {
	if err := checkRange(from, to); err != nil {
		return ReportRecord{}, err
	}
	var payload *IncomeStatementPayload
	err := e.repo.Snapshot(ctx, func(ctx context.Context, src SnapshotSource) error {
		rows, err := collectTypes(ctx, src, to, &from,
			accounting.AccountTypeRevenue, accounting.AccountTypeCost, accounting.AccountTypeExpense)
		if err != nil {
			return err
		}
		payload = BuildIncomeStatement(from, to, rows)
		return nil
	})
	if err != nil {
		return ReportRecord{}, err
	}
	return e.SaveReport(ctx, periodRecord(TypeIncomeStatement, from, to, payload, actor,
		Summary{NetProfit: ptr(payload.NetProfit)}))
}

// GenerateCashFlow builds and stores the simplified cash flow for [from, to].
func (e *Engine) GenerateCashFlow(ctx context.Context, from, to time.Time, actor int64) (ReportRecord, error) {
	if err := checkRange(from, to); err != nil {
		return ReportRecord{}, err
	}
	var payload *CashFlowPayload
	err := e.repo.Snapshot(ctx, func(ctx context.Context, src SnapshotSource) error {
		rows, err := collect(ctx, src, accounting.AccountFilter{CodePrefixes: e.cashPrefixes}, to, &from)
		if err != nil {
			return fmt.Errorf("reports: cash balances: %w", err)
		}
		payload = BuildCashFlow(from, to, rows)
		return nil
	})
	if err != nil {
		return ReportRecord{}, err
	}
	return e.SaveReport(ctx, periodRecord(TypeCashFlow, from, to, payload, actor, Summary{}))
}

// GenerateTrialBalance builds and stores the trial balance for [from, to].
func (e *Engine) GenerateTrialBalance(ctx context.Context, from, to time.Time, actor int64) (ReportRecord, error) {
	if err := checkRange(from, to); err != nil {
		return ReportRecord{}, err
	}
	var payload *TrialBalancePayload
	err := e.repo.Snapshot(ctx, func(ctx context.Context, src SnapshotSource) error {
		rows, err := collect(ctx, src, accounting.AccountFilter{}, to, &from)
		if err != nil {
			return fmt.Errorf("reports: trial balance: %w", err)
		}
		payload = BuildTrialBalance(from, to, rows)
		return nil
	})
	if err != nil {
		return ReportRecord{}, err
	}
	if !payload.IsBalanced {
		e.logger.Warn("trial balance not balanced",
			slog.String("debit", accounting.FormatMoney(payload.Totals.Debit)),
			slog.String("credit", accounting.FormatMoney(payload.Totals.Credit)))
	}
	return e.SaveReport(ctx, periodRecord(TypeTrialBalance, from, to, payload, actor, Summary{}))
}

// GenerateAccountLedger builds and stores the detailed ledger of one account.
func (e *Engine) GenerateAccountLedger(ctx context.Context, code string, from, to time.Time, actor int64) (ReportRecord, error) {
	if err := checkRange(from, to); err != nil {
		return ReportRecord{}, err
	}
	var payload *AccountLedgerPayload
	err := e.repo.Snapshot(ctx, func(ctx context.Context, src SnapshotSource) error {
		st, err := balances.StatementIn(ctx, src, code, from, to)
		if err != nil {
			return err
		}
		payload = BuildAccountLedger(from, to, st)
		return nil
	})
	if err != nil {
		return ReportRecord{}, err
	}
	rec := periodRecord(TypeAccountLedger, from, to, payload, actor, Summary{})
	rec.Notes = payload.AccountCode
	return e.SaveReport(ctx, rec)
}

// SaveReport stores rec as a new immutable record.
func (e *Engine) SaveReport(ctx context.Context, rec ReportRecord) (ReportRecord, error) {
	if !rec.Type.Valid() {
		return ReportRecord{}, fmt.Errorf("reports: invalid report type %q", rec.Type)
	}
	if rec.Payload == nil || rec.Payload.ReportType() != rec.Type {
		return ReportRecord{}, fmt.Errorf("reports: payload does not match %s", rec.Type)
	}
	rec.ID = 0
	rec.GeneratedAt = e.now()
	var saved ReportRecord
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		saved, err = tx.InsertReport(ctx, rec)
		return err
	})
	if err != nil {
		return ReportRecord{}, err
	}
	e.logger.Info("report generated",
		slog.Int64("report_id", saved.ID),
		slog.String("type", string(saved.Type)),
		slog.String("report_date", saved.ReportDate.Format(time.DateOnly)),
		slog.Int64("generated_by", saved.GeneratedBy))
	return saved, nil
}

// GetReport loads one stored report.
func (e *Engine) GetReport(ctx context.Context, id int64) (ReportRecord, error) {
	var rec ReportRecord
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rec, err = tx.GetReport(ctx, id)
		return err
	})
	return rec, err
}

// ListReports lists stored reports, newest first.
func (e *Engine) ListReports(ctx context.Context, filter ListFilter) ([]ReportRecord, error) {
	var out []ReportRecord
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListReports(ctx, filter)
		return err
	})
	return out, err
}

func periodRecord(t ReportType, from, to time.Time, payload Payload, actor int64, summary Summary) ReportRecord {
	start, end := accounting.DateOnly(from), accounting.DateOnly(to)
	return ReportRecord{
		Type:        t,
		ReportDate:  end,
		StartDate:   &start,
		EndDate:     &end,
		Payload:     payload,
		Summary:     summary,
		GeneratedBy: actor,
	}
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
