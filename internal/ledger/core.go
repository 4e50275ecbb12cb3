// Package ledger is the narrow service interface the order modules use to
// record financial events, settle open items and produce statements.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Options tunes a Core.
type Options struct {
	CashPrefixes []string
	CacheTTL     time.Duration
	Logger       *slog.Logger
	Audit        journals.AuditPort
	Now          func() time.Time
}

// Repositories bundles one implementation of every repository port.
type Repositories struct {
	Accounts  accounts.Repository
	Journals  journals.Repository
	Balances  balances.Repository
	Reports   reports.Repository
	OpenItems openitems.Repository
}

// Core wires the ledger services together.
type Core struct {
	Accounts  *accounts.Registry
	Journals  *journals.Service
	Balances  *balances.Calculator
	OpenItems *openitems.Service
	Reports   *reports.Engine

	logger *slog.Logger
}

// New builds a Core over repos. cache may be nil.
func New(repos Repositories, cache *accounts.Cache, opts Options) *Core {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefixes := opts.CashPrefixes
	if len(prefixes) == 0 {
		prefixes = accounts.DefaultCashPrefixes
	}
	reg := accounts.NewRegistry(repos.Accounts, cache, prefixes).WithLogger(logger)
	js := journals.NewService(repos.Journals, opts.Audit, reg).WithLogger(logger)
	oi := openitems.NewService(repos.OpenItems).WithLogger(logger)
	engine := reports.NewEngine(repos.Reports, prefixes).WithLogger(logger)
	if opts.Now != nil {
		reg.WithNow(opts.Now)
		js.WithNow(opts.Now)
		oi.WithNow(opts.Now)
		engine.WithNow(opts.Now)
	}
	return &Core{
		Accounts:  reg,
		Journals:  js,
		Balances:  balances.NewCalculator(repos.Balances),
		OpenItems: oi,
		Reports:   engine,
		logger:    logger,
	}
}

// NewPostgres builds a Core on PostgreSQL, with a redis account cache when
// redisClient is not nil.
func NewPostgres(pool *pgxpool.Pool, redisClient *redis.Client, opts Options) *Core {
	var cache *accounts.Cache
	if redisClient != nil {
		cache = accounts.NewCache(redisClient, opts.CacheTTL).WithLogger(opts.Logger)
	}
	if opts.Audit == nil {
		opts.Audit = shared.NewAuditLogger(pool)
	}
	return New(Repositories{
		Accounts:  accounts.NewRepository(pool),
		Journals:  journals.NewRepository(pool),
		Balances:  balances.NewRepository(pool),
		Reports:   reports.NewRepository(pool),
		OpenItems: openitems.NewRepository(pool),
	}, cache, opts)
}

// NewInMemory builds a Core on an in-memory store.
func NewInMemory(store *memstore.Store, opts Options) *Core {
	if opts.Audit == nil {
		opts.Audit = &shared.MemoryAuditTrail{}
	}
	return New(Repositories{
		Accounts:  store.Accounts(),
		Journals:  store.Journals(),
		Balances:  store.Balances(),
		Reports:   store.Reports(),
		OpenItems: store.OpenItems(),
	}, nil, opts)
}

// PostJournal records and posts a journal in one step. Nothing is stored when
// the entries do not balance.
func (c *Core) PostJournal(ctx context.Context, input journals.CreateInput) (accounting.Journal, error) {
	j, err := c.Journals.PostJournal(ctx, input)
	if err != nil {
		return accounting.Journal{}, fmt.Errorf("ledger: post journal %s: %w", input.Number, err)
	}
	return j, nil
}

// GetBalance returns the balance of code as of asOf. since narrows the
// debit and credit totals to [since, asOf].
func (c *Core) GetBalance(ctx context.Context, code string, asOf time.Time, since *time.Time) (accounting.Balance, error) {
	bal, err := c.Balances.GetBalance(ctx, code, asOf, since)
	if err != nil {
		return accounting.Balance{}, fmt.Errorf("ledger: balance %s: %w", code, err)
	}
	return bal, nil
}

// CreateDetail records an open item detail under its master.
func (c *Core) CreateDetail(ctx context.Context, input openitems.CreateDetailInput) (openitems.Detail, openitems.Master, error) {
	d, m, err := c.OpenItems.CreateDetail(ctx, input)
	if err != nil {
		return openitems.Detail{}, openitems.Master{}, fmt.Errorf("ledger: create detail: %w", err)
	}
	return d, m, nil
}

// Allocate settles part of a detail.
func (c *Core) Allocate(ctx context.Context, input openitems.AllocateInput) (openitems.Detail, openitems.Master, error) {
	d, m, err := c.OpenItems.Allocate(ctx, input)
	if err != nil {
		return openitems.Detail{}, openitems.Master{}, fmt.Errorf("ledger: allocate detail %d: %w", input.DetailID, err)
	}
	return d, m, nil
}

// RecordDirectPayment settles part of a master.
func (c *Core) RecordDirectPayment(ctx context.Context, input openitems.DirectPaymentInput) (openitems.Master, error) {
	m, err := c.OpenItems.RecordDirectPayment(ctx, input)
	if err != nil {
		return openitems.Master{}, fmt.Errorf("ledger: direct payment master %d: %w", input.MasterID, err)
	}
	return m, nil
}

// PaymentApplied reports whether the referenced payment already settled the master.
func (c *Core) PaymentApplied(ctx context.Context, masterID int64, reference string) (bool, error) {
	applied, err := c.OpenItems.PaymentApplied(ctx, masterID, reference)
	if err != nil {
		return false, fmt.Errorf("ledger: payment %s on master %d: %w", reference, masterID, err)
	}
	return applied, nil
}

// FindMaster resolves the master owning a source document.
func (c *Core) FindMaster(ctx context.Context, key openitems.MasterKey) (openitems.Master, error) {
	m, err := c.OpenItems.FindMaster(ctx, key)
	if err != nil {
		return openitems.Master{}, fmt.Errorf("ledger: find master %s/%s: %w", key.SourceDoc.Type, key.SourceDoc.ID, err)
	}
	return m, nil
}

// GenerateBalanceSheet stores a balance sheet and returns its record id.
func (c *Core) GenerateBalanceSheet(ctx context.Context, asOf time.Time, actor int64) (int64, error) {
	rec, err := c.Reports.GenerateBalanceSheet(ctx, asOf, actor)
	return recordID(rec, err, reports.TypeBalanceSheet)
}

// GenerateIncomeStatement stores an income statement and returns its record id.
func (c *Core) GenerateIncomeStatement(ctx context.Context, from, to time.Time, actor int64) (int64, error) {
	rec, err := c.Reports.GenerateIncomeStatement(ctx, from, to, actor)
	return recordID(rec, err, reports.TypeIncomeStatement)
}

// GenerateCashFlow stores a cash flow statement and returns its record id.
func (c *Core) GenerateCashFlow(ctx context.Context, from, to time.Time, actor int64) (int64, error) {
	rec, err := c.Reports.GenerateCashFlow(ctx, from, to, actor)
	return recordID(rec, err, reports.TypeCashFlow)
}

// GenerateTrialBalance stores a trial balance and returns its record id.
func (c *Core) GenerateTrialBalance(ctx context.Context, from, to time.Time, actor int64) (int64, error) {
	rec, err := c.Reports.GenerateTrialBalance(ctx, from, to, actor)
	return recordID(rec, err, reports.TypeTrialBalance)
}

func recordID(rec reports.ReportRecord, err error, t reports.ReportType) (int64, error) {
	if err != nil {
		return 0, fmt.Errorf("ledger: generate %s: %w", t, err)
	}
	return rec.ID, nil
}

// VerifyAggregation checks a master against its details without writing. A
// mismatch is reported through the check and an ErrInconsistentAggregation.
func (c *Core) VerifyAggregation(ctx context.Context, masterID int64) (openitems.AggregationCheck, error) {
	check, err := c.OpenItems.VerifyAggregation(ctx, masterID)
	if err != nil {
		return check, fmt.Errorf("ledger: verify master %d: %w", masterID, err)
	}
	return check, nil
}

// GenerateAccountLedger stores the detailed ledger of one account and returns
// its record id.
func (c *Core) GenerateAccountLedger(ctx context.Context, code string, from, to time.Time, actor int64) (int64, error) {
	rec, err := c.Reports.GenerateAccountLedger(ctx, code, from, to, actor)
	return recordID(rec, err, reports.TypeAccountLedger)
}

// ReportRequest selects a generator and its date arguments. Balance sheets
// read AsOf; every other type needs From and To.
type ReportRequest struct {
	Type        reports.ReportType
	AsOf        time.Time
	From, To    time.Time
	AccountCode string
}

// GenerateReport dispatches req to the matching generator.
func (c *Core) GenerateReport(ctx context.Context, req ReportRequest, actor int64) (int64, error) {
	if !req.Type.Valid() {
		return 0, accounting.Invalid("unknown report type %q", req.Type)
	}
	if req.Type == reports.TypeBalanceSheet {
		if req.AsOf.IsZero() {
			return 0, accounting.Invalid("balance_sheet requires as_of")
		}
		return c.GenerateBalanceSheet(ctx, req.AsOf, actor)
	}
	if req.From.IsZero() || req.To.IsZero() {
		return 0, accounting.Invalid("%s requires from and to", req.Type)
	}
	switch req.Type {
	case reports.TypeIncomeStatement:
		return c.GenerateIncomeStatement(ctx, req.From, req.To, actor)
	case reports.TypeCashFlow:
		return c.GenerateCashFlow(ctx, req.From, req.To, actor)
	case reports.TypeTrialBalance:
		return c.GenerateTrialBalance(ctx, req.From, req.To, actor)
	default:
		if req.AccountCode == "" {
			return 0, accounting.Invalid("account_ledger requires account_code")
		}
		return c.GenerateAccountLedger(ctx, req.AccountCode, req.From, req.To, actor)
	}
}

// MasterReconciliation is the outcome of checking one master.
type MasterReconciliation struct {
	Check    openitems.AggregationCheck
	Repaired bool
}

// ReconcileMasters verifies every active master and, when fix is set,
// rewrites inconsistent totals from the details.
func (c *Core) ReconcileMasters(ctx context.Context, fix bool, actor int64) ([]MasterReconciliation, error) {
	masters, err := c.OpenItems.ListMasters(ctx, openitems.MasterFilter{})
	if err != nil {
		return nil, fmt.Errorf("ledger: list masters: %w", err)
	}
	var out []MasterReconciliation
	for _, m := range masters {
		check, err := c.OpenItems.VerifyAggregation(ctx, m.ID)
		if err != nil && !errors.Is(err, openitems.ErrInconsistentAggregation) {
			return out, fmt.Errorf("ledger: verify master %d: %w", m.ID, err)
		}
		if check.Consistent {
			continue
		}
		res := MasterReconciliation{Check: check}
		c.logger.Warn("open item master inconsistent",
			slog.Int64("master_id", m.ID),
			slog.String("expected_balance", accounting.FormatMoney(check.Expected.Balance)),
			slog.String("actual_balance", accounting.FormatMoney(check.Actual.Balance)))
		if fix {
			if _, err := c.OpenItems.Repair(ctx, m.ID, actor); err != nil {
				return out, fmt.Errorf("ledger: repair master %d: %w", m.ID, err)
			}
			res.Repaired = true
		}
		out = append(out, res)
	}
	return out, nil
}

// VerifyBalances compares the cached current balance of every leaf account
// with the posted entries and returns the accounts that drifted.
func (c *Core) VerifyBalances(ctx context.Context) ([]balances.Drift, error) {
	accs, err := c.Accounts.ListLeafAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: list accounts: %w", err)
	}
	var drifts []balances.Drift
	for _, acc := range accs {
		drift, ok, err := c.Balances.VerifyCurrentBalance(ctx, acc.Code)
		if err != nil {
			return drifts, fmt.Errorf("ledger: verify balance %s: %w", acc.Code, err)
		}
		if ok {
			continue
		}
		c.logger.Warn("account balance drift",
			slog.String("account", drift.AccountCode),
			slog.String("cached", accounting.FormatMoney(drift.Cached)),
			slog.String("computed", accounting.FormatMoney(drift.Computed)))
		drifts = append(drifts, drift)
	}
	return drifts, nil
}

// RefreshOverdue marks masters past their due date as overdue.
func (c *Core) RefreshOverdue(ctx context.Context, asOf time.Time) (int, error) {
	n, err := c.OpenItems.RefreshOverdue(ctx, asOf)
	if err != nil {
		return n, fmt.Errorf("ledger: refresh overdue: %w", err)
	}
	return n, nil
}
