package balances

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Calculator derives account balances from posted journals. It is the only
// place that sums ledger entries.
type Calculator struct {
	repo Repository
}

// NewCalculator constructs the calculator.
func NewCalculator(repo Repository) *Calculator {
	return &Calculator{repo: repo}
}

// GetBalance computes the balance of code as of asOf. When since is set the
// debit/credit columns cover [since, asOf] and the opening balance is rolled
// forward through every posted movement dated before since.
func (c *Calculator) GetBalance(ctx context.Context, code string, asOf time.Time, since *time.Time) (accounting.Balance, error) {
	var out accounting.Balance
	err := c.repo.WithTx(ctx, func(ctx context.Context, src Source) error {
		var err error
		out, err = BalanceIn(ctx, src, code, asOf, since)
		return err
	})
	return out, err
}

// BalanceIn computes a balance inside a caller supplied snapshot.
func BalanceIn(ctx context.Context, src Source, code string, asOf time.Time, since *time.Time) (accounting.Balance, error) {
	acc, err := src.GetAccountByCode(ctx, code)
	if err != nil {
		return accounting.Balance{}, err
	}
	return BalanceOf(ctx, src, acc, asOf, since)
}

// BalanceOf computes the balance of an already loaded account.
func BalanceOf(ctx context.Context, src Source, acc accounting.Account, asOf time.Time, since *time.Time) (accounting.Balance, error) {
	opening := acc.OpeningBalance
	window := accounting.Through(asOf)
	if since != nil {
		if accounting.DateOnly(*since).After(accounting.DateOnly(asOf)) {
			return accounting.Balance{}, accounting.ErrInvalidDateRange
		}
		preDebit, preCredit, err := src.SumPostedEntries(ctx, acc.ID, accounting.Before(*since))
		if err != nil {
			return accounting.Balance{}, fmt.Errorf("balances: pre-window sum %s: %w", acc.Code, err)
		}
		opening = accounting.ApplySign(acc.Type, opening, preDebit, preCredit)
		window = accounting.Between(*since, asOf)
	}
	debit, credit, err := src.SumPostedEntries(ctx, acc.ID, window)
	if err != nil {
		return accounting.Balance{}, fmt.Errorf("balances: sum %s: %w", acc.Code, err)
	}
	return accounting.Balance{
		AccountCode:    acc.Code,
		AccountName:    acc.Name,
		AccountType:    acc.Type,
		OpeningBalance: opening,
		Debit:          debit,
		Credit:         credit,
		EndingBalance:  accounting.ApplySign(acc.Type, opening, debit, credit),
	}, nil
}

// StatementLine is one ledger line with the running balance after it.
type StatementLine struct {
	accounting.LedgerLine
	Balance decimal.Decimal
}

// Statement lists the movements of an account between from and to.
type Statement struct {
	Account accounting.Account
	Opening decimal.Decimal
	Lines   []StatementLine
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Closing decimal.Decimal
}

// Statement builds the account ledger for [from, to].
func (c *Calculator) Statement(ctx context.Context, code string, from, to time.Time) (Statement, error) {
	var out Statement
	err := c.repo.WithTx(ctx, func(ctx context.Context, src Source) error {
		var err error
		out, err = StatementIn(ctx, src, code, from, to)
		return err
	})
	return out, err
}

// StatementIn builds the account ledger inside a caller supplied snapshot.
func StatementIn(ctx context.Context, src Source, code string, from, to time.Time) (Statement, error) {
	if accounting.DateOnly(from).After(accounting.DateOnly(to)) {
		return Statement{}, accounting.ErrInvalidDateRange
	}
	bal, err := BalanceIn(ctx, src, code, to, &from)
	if err != nil {
		return Statement{}, err
	}
	acc, err := src.GetAccountByCode(ctx, code)
	if err != nil {
		return Statement{}, err
	}
	lines, err := src.ListPostedEntries(ctx, acc.ID, accounting.Between(from, to))
	if err != nil {
		return Statement{}, fmt.Errorf("balances: statement %s: %w", code, err)
	}
	st := Statement{Account: acc, Opening: bal.OpeningBalance, Debit: bal.Debit, Credit: bal.Credit, Closing: bal.EndingBalance}
	running := bal.OpeningBalance
	for _, line := range lines {
		running = accounting.ApplySign(acc.Type, running, line.Debit, line.Credit)
		st.Lines = append(st.Lines, StatementLine{LedgerLine: line, Balance: running})
	}
	return st, nil
}

// Drift reports a cached CurrentBalance that disagrees with the ledger.
type Drift struct {
	AccountCode string
	Cached      decimal.Decimal
	Computed    decimal.Decimal
}

// Difference returns cached minus computed.
func (d Drift) Difference() decimal.Decimal {
	return d.Cached.Sub(d.Computed)
}

// VerifyCurrentBalance recomputes the all-time balance of code and compares it
// with the cached CurrentBalance. ok is false when they differ.
func (c *Calculator) VerifyCurrentBalance(ctx context.Context, code string) (Drift, bool, error) {
	var (
		drift Drift
		ok    bool
	)
	err := c.repo.WithTx(ctx, func(ctx context.Context, src Source) error {
		acc, err := src.GetAccountByCode(ctx, code)
		if err != nil {
			return err
		}
		debit, credit, err := src.SumPostedEntries(ctx, acc.ID, accounting.DateWindow{To: farFuture})
		if err != nil {
			return err
		}
		computed := accounting.ApplySign(acc.Type, acc.OpeningBalance, debit, credit)
		drift = Drift{AccountCode: acc.Code, Cached: acc.CurrentBalance, Computed: computed}
		ok = acc.CurrentBalance.Equal(computed)
		return nil
	})
	return drift, ok, err
}

var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
