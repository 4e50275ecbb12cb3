package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	boom := errors.New("boom")

	err := store.Accounts().WithTx(ctx, func(ctx context.Context, tx accounts.TxRepository) error {
		if _, err := tx.InsertAccount(ctx, accounting.Account{Code: "1101", Type: accounting.AccountTypeAsset}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.Accounts().WithTx(ctx, func(ctx context.Context, tx accounts.TxRepository) error {
		_, err := tx.GetAccountByCode(ctx, "1101")
		return err
	})
	require.ErrorIs(t, err, accounting.ErrAccountNotFound)
}

func TestPostedEntriesRespectStatusAndWindow(t *testing.T) {
	ctx := context.Background()
	store := New()
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, store.run(ctx, func(tx *Tx) error {
		cash, err := tx.InsertAccount(ctx, accounting.Account{Code: "1101", Type: accounting.AccountTypeAsset, IsLeaf: true})
		if err != nil {
			return err
		}
		for i, status := range []accounting.JournalStatus{accounting.JournalStatusPosted, accounting.JournalStatusDraft, accounting.JournalStatusPosted} {
			_, err := tx.InsertJournal(ctx, accounting.Journal{
				Number: "JV-" + string(rune('A'+i)),
				Status: status,
				Date:   day(1 + i*10),
				Entries: []accounting.JournalEntry{
					{AccountID: cash.ID, DebitAmount: accounting.MustMoney("100.00")},
				},
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, store.run(ctx, func(tx *Tx) error {
		acc, err := tx.GetAccountByCode(ctx, "1101")
		require.NoError(t, err)
		debit, _, err := tx.SumPostedEntries(ctx, acc.ID, accounting.Through(day(31)))
		require.NoError(t, err)
		require.True(t, debit.Equal(accounting.MustMoney("200.00")))

		lines, err := tx.ListPostedEntries(ctx, acc.ID, accounting.Between(day(2), day(31)))
		require.NoError(t, err)
		require.Len(t, lines, 1)
		require.Equal(t, "JV-C", lines[0].JournalNumber)
		return nil
	}))
}

func TestInsertJournalRejectsDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	store := New()
	err := store.run(ctx, func(tx *Tx) error {
		if _, err := tx.InsertJournal(ctx, accounting.Journal{Number: "JV-1"}); err != nil {
			return err
		}
		_, err := tx.InsertJournal(ctx, accounting.Journal{Number: "JV-1"})
		return err
	})
	require.ErrorIs(t, err, accounting.ErrDuplicateJournalNumber)
}
