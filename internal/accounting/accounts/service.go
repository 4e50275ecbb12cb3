package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Registry owns the chart of accounts.
type Registry struct {
	repo         Repository
	cache        *Cache
	cashPrefixes []string
	logger       *slog.Logger
	now          func() time.Time
}

// NewRegistry builds a registry. cache may be nil; cashPrefixes defaults to DefaultCashPrefixes.
func NewRegistry(repo Repository, cache *Cache, cashPrefixes []string) *Registry {
	if len(cashPrefixes) == 0 {
		cashPrefixes = DefaultCashPrefixes
	}
	return &Registry{
		repo:         repo,
		cache:        cache,
		cashPrefixes: append([]string(nil), cashPrefixes...),
		logger:       slog.Default(),
		now:          time.Now,
	}
}

// WithLogger overrides the registry logger.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithNow overrides the clock, for tests.
func (r *Registry) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// CashPrefixes returns the configured cash/bank code prefixes.
func (r *Registry) CashPrefixes() []string {
	return append([]string(nil), r.cashPrefixes...)
}

// GetAccount resolves an account by code.
func (r *Registry) GetAccount(ctx context.Context, code string) (accounting.Account, error) {
	code = strings.TrimSpace(code)
	key, err := r.cache.BuildKey(ctx, "code", code)
	if err != nil {
		r.logger.Warn("account cache key", slog.Any("error", err))
		return r.loadAccount(ctx, code)
	}
	var acc accounting.Account
	err = r.cache.FetchJSON(ctx, key, &acc, func(ctx context.Context) (any, error) {
		return r.loadAccount(ctx, code)
	})
	return acc, err
}

func (r *Registry) loadAccount(ctx context.Context, code string) (accounting.Account, error) {
	var acc accounting.Account
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acc, err = tx.GetAccountByCode(ctx, code)
		return err
	})
	return acc, err
}

// GetAccountsByType returns active leaf accounts of the given type ordered by code.
func (r *Registry) GetAccountsByType(ctx context.Context, t accounting.AccountType) ([]accounting.Account, error) {
	if !t.Valid() {
		return nil, accounting.Invalid("accounts: invalid account type %q", t)
	}
	return r.list(ctx, accounting.AccountFilter{Type: t, LeafOnly: true, ActiveOnly: true}, "type", string(t))
}

// ListLeafAccounts returns active leaf accounts.
func (r *Registry) ListLeafAccounts(ctx context.Context) ([]accounting.Account, error) {
	return r.list(ctx, accounting.AccountFilter{LeafOnly: true, ActiveOnly: true}, "leaf")
}

// ListAccounts returns the whole chart of accounts.
func (r *Registry) ListAccounts(ctx context.Context) ([]accounting.Account, error) {
	return r.list(ctx, accounting.AccountFilter{}, "all")
}

// ListCashAccounts returns active leaf cash and bank accounts.
func (r *Registry) ListCashAccounts(ctx context.Context) ([]accounting.Account, error) {
	filter := accounting.AccountFilter{LeafOnly: true, ActiveOnly: true, CodePrefixes: r.cashPrefixes}
	return r.list(ctx, filter, "cash", strings.Join(r.cashPrefixes, ","))
}

func (r *Registry) list(ctx context.Context, filter accounting.AccountFilter, keyParts ...string) ([]accounting.Account, error) {
	load := func(ctx context.Context) ([]accounting.Account, error) {
		var out []accounting.Account
		err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			out, err = tx.ListAccounts(ctx, filter)
			return err
		})
		return out, err
	}
	key, err := r.cache.BuildKey(ctx, append([]string{"list"}, keyParts...)...)
	if err != nil {
		r.logger.Warn("account cache key", slog.Any("error", err))
		return load(ctx)
	}
	var out []accounting.Account
	err = r.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	return out, err
}

// CreateAccount inserts a new account below an optional parent.
func (r *Registry) CreateAccount(ctx context.Context, input CreateAccountInput) (accounting.Account, error) {
	if err := input.Validate(); err != nil {
		return accounting.Account{}, err
	}
	now := r.now()
	acc := accounting.Account{
		Code:             strings.TrimSpace(input.Code),
		Name:             strings.TrimSpace(input.Name),
		Type:             input.Type,
		Category:         input.Category,
		Level:            1,
		IsLeaf:           true,
		IsActive:         true,
		AllowManualEntry: !input.DisallowManualEntry,
		OpeningBalance:   accounting.Money(input.OpeningBalance),
		CurrentBalance:   accounting.Money(input.OpeningBalance),
		Description:      input.Description,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	var created accounting.Account
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccountByCode(ctx, acc.Code); err == nil {
			return accounting.ErrDuplicateAccountCode
		} else if !errors.Is(err, accounting.ErrAccountNotFound) {
			return err
		}
		if parentCode := strings.TrimSpace(input.ParentCode); parentCode != "" {
			parent, err := tx.GetAccountByCode(ctx, parentCode)
			if err != nil {
				return err
			}
			if parent.Type != acc.Type {
				return accounting.Invalid("accounts: child type %s differs from parent type %s", acc.Type, parent.Type)
			}
			posted, err := tx.HasPostedEntries(ctx, parent.ID)
			if err != nil {
				return err
			}
			if posted {
				return accounting.ErrParentHasPostings
			}
			if parent.IsLeaf {
				parent.IsLeaf = false
				parent.UpdatedAt = now
				if err := tx.UpdateAccount(ctx, parent); err != nil {
					return err
				}
			}
			acc.ParentID = &parent.ID
			acc.Level = parent.Level + 1
		}
		var err error
		created, err = tx.InsertAccount(ctx, acc)
		return err
	})
	if err != nil {
		return accounting.Account{}, err
	}
	r.invalidate(ctx)
	r.logger.Info("account created", slog.String("code", created.Code), slog.String("type", string(created.Type)))
	return created, nil
}

// UpdateAccount patches mutable attributes of an account.
func (r *Registry) UpdateAccount(ctx context.Context, input UpdateAccountInput) (accounting.Account, error) {
	var updated accounting.Account
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.GetAccountByCode(ctx, strings.TrimSpace(input.Code))
		if err != nil {
			return err
		}
		input.apply(&acc)
		if acc.Name == "" {
			return accounting.Invalid("accounts: name required")
		}
		acc.UpdatedAt = r.now()
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		updated = acc
		return nil
	})
	if err != nil {
		return accounting.Account{}, err
	}
	r.invalidate(ctx)
	return updated, nil
}

// SetOpeningBalance replaces the opening balance of an account without postings.
func (r *Registry) SetOpeningBalance(ctx context.Context, code string, amount decimal.Decimal) (accounting.Account, error) {
	amount = accounting.Money(amount)
	var updated accounting.Account
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.GetAccountByCode(ctx, strings.TrimSpace(code))
		if err != nil {
			return err
		}
		posted, err := tx.HasPostedEntries(ctx, acc.ID)
		if err != nil {
			return err
		}
		if posted {
			return accounting.ErrOpeningBalanceLocked
		}
		acc.OpeningBalance = amount
		acc.CurrentBalance = amount
		acc.UpdatedAt = r.now()
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		updated = acc
		return nil
	})
	if err != nil {
		return accounting.Account{}, err
	}
	r.invalidate(ctx)
	return updated, nil
}

// ValidatePostingTarget reports whether acc may receive journal entries.
func ValidatePostingTarget(acc accounting.Account) error {
	if !acc.IsLeaf {
		return &accounting.NotLeafAccountError{Code: acc.Code}
	}
	if !acc.IsActive {
		return fmt.Errorf("%w: %s", accounting.ErrAccountInactive, acc.Code)
	}
	return nil
}

// Invalidate drops every cached account lookup. Posting calls it because
// cached accounts carry CurrentBalance.
func (r *Registry) Invalidate(ctx context.Context) error {
	return r.cache.Invalidate(ctx)
}

func (r *Registry) invalidate(ctx context.Context) {
	if err := r.cache.Invalidate(ctx); err != nil {
		r.logger.Warn("account cache invalidate", slog.Any("error", err))
	}
}
