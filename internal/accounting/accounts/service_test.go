package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/memstore"
)

func newRegistry(t *testing.T, cache *accounts.Cache) (*accounts.Registry, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	require.NoError(t, store.Seed(context.Background(), memstore.DefaultChart))
	return accounts.NewRegistry(store.Accounts(), cache, accounts.DefaultCashPrefixes), store
}

func TestCreateAccountUnderParent(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t, nil)

	child, err := reg.CreateAccount(ctx, accounts.CreateAccountInput{
		Code: "6101", Name: "Office Rent", Type: accounting.AccountTypeExpense, ParentCode: "6100",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, child.Level)
	assert.True(t, child.IsLeaf)

	parent, err := reg.GetAccount(ctx, "6100")
	require.NoError(t, err)
	assert.False(t, parent.IsLeaf)
	assert.Equal(t, parent.ID, *child.ParentID)
}

func TestCreateAccountRejections(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t, nil)

	_, err := reg.CreateAccount(ctx, accounts.CreateAccountInput{Code: "1001", Name: "Dup", Type: accounting.AccountTypeAsset})
	assert.ErrorIs(t, err, accounting.ErrDuplicateAccountCode)

	_, err = reg.CreateAccount(ctx, accounts.CreateAccountInput{Code: "6199", Name: "Stray", Type: accounting.AccountTypeAsset, ParentCode: "6000"})
	assert.Error(t, err)

	_, err = reg.CreateAccount(ctx, accounts.CreateAccountInput{Code: "7000", Name: "Bad", Type: "mystery"})
	assert.Error(t, err)

	_, err = reg.CreateAccount(ctx, accounts.CreateAccountInput{Code: "6199", Name: "Orphan", Type: accounting.AccountTypeExpense, ParentCode: "6999"})
	assert.ErrorIs(t, err, accounting.ErrAccountNotFound)
}

func TestParentWithPostingsCannotGainChildren(t *testing.T) {
	ctx := context.Background()
	reg, store := newRegistry(t, nil)
	svc := journals.NewService(store.Journals(), nil, reg)
	_, err := svc.PostJournal(ctx, journals.CreateInput{
		Number: "JV-1",
		Date:   mustDate("2026-01-05"),
		Entries: []journals.EntryInput{
			{AccountCode: "6100", Debit: accounting.MustMoney("50.00")},
			{AccountCode: "1001", Credit: accounting.MustMoney("50.00")},
		},
	})
	require.NoError(t, err)

	_, err = reg.CreateAccount(ctx, accounts.CreateAccountInput{Code: "6101", Name: "Office Rent", Type: accounting.AccountTypeExpense, ParentCode: "6100"})
	assert.ErrorIs(t, err, accounting.ErrParentHasPostings)

	_, err = reg.SetOpeningBalance(ctx, "6100", accounting.MustMoney("10.00"))
	assert.ErrorIs(t, err, accounting.ErrOpeningBalanceLocked)
}

func TestSetOpeningBalanceResetsCurrent(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t, nil)

	acc, err := reg.SetOpeningBalance(ctx, "1002", accounting.MustMoney("1250.505"))
	require.NoError(t, err)
	assert.Equal(t, "1250.51", accounting.FormatMoney(acc.OpeningBalance))
	assert.True(t, acc.CurrentBalance.Equal(acc.OpeningBalance))
}

func TestUpdateAccountDeactivates(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t, nil)
	inactive := false

	acc, err := reg.UpdateAccount(ctx, accounts.UpdateAccountInput{Code: "1500", IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, acc.IsActive)
	assert.ErrorIs(t, accounts.ValidatePostingTarget(acc), accounting.ErrAccountInactive)

	leaves, err := reg.ListLeafAccounts(ctx)
	require.NoError(t, err)
	for _, l := range leaves {
		assert.NotEqual(t, "1500", l.Code)
	}
}

func TestListingsByTypeAndCash(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t, nil)

	assets, err := reg.GetAccountsByType(ctx, accounting.AccountTypeAsset)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", "1002", "1100", "1500"}, codes(assets))

	cash, err := reg.ListCashAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", "1002"}, codes(cash))

	_, err = reg.GetAccountsByType(ctx, "bogus")
	assert.Error(t, err)
}

func TestValidatePostingTargetRejectsParent(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t, nil)
	parent, err := reg.GetAccount(ctx, "1000")
	require.NoError(t, err)

	err = accounts.ValidatePostingTarget(parent)
	assert.ErrorIs(t, err, accounting.ErrNotLeafAccount)
	var notLeaf *accounting.NotLeafAccountError
	require.ErrorAs(t, err, &notLeaf)
	assert.Equal(t, "1000", notLeaf.Code)
}

func TestRegistryCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg, store := newRegistry(t, accounts.NewCache(client, 0))
	first, err := reg.GetAccount(ctx, "1001")
	require.NoError(t, err)
	assert.True(t, first.CurrentBalance.IsZero())

	svc := journals.NewService(store.Journals(), nil, reg)
	_, err = svc.PostJournal(ctx, journals.CreateInput{
		Number: "JV-CACHE",
		Date:   mustDate("2026-01-05"),
		Entries: []journals.EntryInput{
			{AccountCode: "1001", Debit: accounting.MustMoney("75.00")},
			{AccountCode: "3100", Credit: accounting.MustMoney("75.00")},
		},
	})
	require.NoError(t, err)

	again, err := reg.GetAccount(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "75.00", accounting.FormatMoney(again.CurrentBalance))
}

func TestRegistryReadsThroughRedisOutage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg, _ := newRegistry(t, accounts.NewCache(client, time.Minute))
	mr.SetError("READONLY You can't write against a read only replica.")
	acc, err := reg.GetAccount(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "1001", acc.Code)

	leaves, err := reg.ListLeafAccounts(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, leaves)
}

func codes(list []accounting.Account) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Code)
	}
	return out
}
