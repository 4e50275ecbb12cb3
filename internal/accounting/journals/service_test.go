package journals_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type fixture struct {
	store *memstore.Store
	reg   *accounts.Registry
	svc   *journals.Service
	audit *shared.MemoryAuditTrail
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memstore.New()
	require.NoError(t, store.Seed(context.Background(), memstore.DefaultChart))
	reg := accounts.NewRegistry(store.Accounts(), nil, accounts.DefaultCashPrefixes)
	audit := &shared.MemoryAuditTrail{}
	svc := journals.NewService(store.Journals(), audit, reg)
	svc.WithNow(func() time.Time { return time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC) })
	return fixture{store: store, reg: reg, svc: svc, audit: audit}
}

func (f fixture) balance(t *testing.T, code string) string {
	t.Helper()
	acc, err := f.reg.GetAccount(context.Background(), code)
	require.NoError(t, err)
	return accounting.FormatMoney(acc.CurrentBalance)
}

func money(raw string) decimal.Decimal {
	return accounting.MustMoney(raw)
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestPostJournalMovesBalancesBySide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j, err := f.svc.PostJournal(ctx, journals.CreateInput{
		Number:     "JV-0001",
		Date:       day(10),
		PreparedBy: 7,
		Entries: []journals.EntryInput{
			{AccountCode: "1002", Debit: money("1000.00")},
			{AccountCode: "4100", Credit: money("1000.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, accounting.JournalStatusPosted, j.Status)
	assert.Equal(t, "2026-01", j.Period)
	require.NotNil(t, j.PostedAt)
	assert.Equal(t, "1000.00", accounting.FormatMoney(j.TotalDebit))

	assert.Equal(t, "1000.00", f.balance(t, "1002"))
	assert.Equal(t, "1000.00", f.balance(t, "4100"))

	logs := f.audit.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "journal.post", logs[0].Action)
	assert.Equal(t, int64(7), logs[0].ActorID)
}

func TestImbalancedJournalIsRejectedAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostJournal(ctx, journals.CreateInput{
		Number: "JV-0002",
		Date:   day(11),
		Entries: []journals.EntryInput{
			{AccountCode: "1001", Debit: money("100.00")},
			{AccountCode: "4100", Credit: money("99.99")},
		},
	})
	require.ErrorIs(t, err, accounting.ErrUnbalanced)
	var imbalance *accounting.ImbalancedJournalError
	require.ErrorAs(t, err, &imbalance)
	assert.Equal(t, "100.00", accounting.FormatMoney(imbalance.Debit))

	assert.Equal(t, "0.00", f.balance(t, "1001"))
	list, err := f.svc.List(ctx, journals.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.audit.Logs())
}

func TestDraftThenPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateJournal(ctx, journals.CreateInput{
		Number: "JV-0003",
		Date:   day(12),
		Entries: []journals.EntryInput{
			{AccountCode: "6100", Debit: money("300.00")},
			{AccountCode: "1001", Credit: money("300.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, accounting.JournalStatusDraft, draft.Status)
	assert.Equal(t, "0.00", f.balance(t, "6100"))

	_, err = f.svc.Review(ctx, journals.ReviewInput{JournalID: draft.ID, ReviewedBy: 3})
	require.NoError(t, err)

	posted, err := f.svc.Post(ctx, journals.PostInput{JournalID: draft.ID, PostedBy: 4})
	require.NoError(t, err)
	require.NotNil(t, posted.ReviewedBy)
	assert.Equal(t, int64(3), *posted.ReviewedBy)
	assert.Equal(t, "300.00", f.balance(t, "6100"))
	assert.Equal(t, "-300.00", f.balance(t, "1001"))

	_, err = f.svc.Post(ctx, journals.PostInput{JournalID: draft.ID, PostedBy: 4})
	assert.ErrorIs(t, err, accounting.ErrInvalidStatus)
	_, err = f.svc.Cancel(ctx, journals.CancelInput{JournalID: draft.ID})
	assert.ErrorIs(t, err, accounting.ErrInvalidStatus)
}

func TestCancelDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateJournal(ctx, journals.CreateInput{
		Number: "JV-0004",
		Date:   day(12),
		Entries: []journals.EntryInput{
			{AccountCode: "6100", Debit: money("10.00")},
			{AccountCode: "1001", Credit: money("10.00")},
		},
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, journals.CancelInput{JournalID: draft.ID, Reason: " duplicate "})
	require.NoError(t, err)
	assert.Equal(t, accounting.JournalStatusCancelled, cancelled.Status)
	assert.Equal(t, "duplicate", cancelled.CancelReason)

	_, err = f.svc.Post(ctx, journals.PostInput{JournalID: draft.ID})
	assert.ErrorIs(t, err, accounting.ErrInvalidStatus)
	assert.Equal(t, "0.00", f.balance(t, "6100"))
}

func TestReverseOffsetsOriginalOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.svc.PostJournal(ctx, journals.CreateInput{
		Number: "JV-0005",
		Date:   day(5),
		Entries: []journals.EntryInput{
			{AccountCode: "1100", Debit: money("480.00")},
			{AccountCode: "4100", Credit: money("480.00")},
		},
	})
	require.NoError(t, err)

	reversal, err := f.svc.Reverse(ctx, journals.ReverseInput{JournalID: original.ID, ActorID: 9})
	require.NoError(t, err)
	assert.Equal(t, "JV-0005-R", reversal.Number)
	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, original.ID, *reversal.ReversalOf)
	assert.Equal(t, accounting.ReferenceTypeReversal, reversal.Reference.Type)
	assert.Equal(t, day(31), reversal.Date)

	assert.Equal(t, "0.00", f.balance(t, "1100"))
	assert.Equal(t, "0.00", f.balance(t, "4100"))

	_, err = f.svc.Reverse(ctx, journals.ReverseInput{JournalID: original.ID, Number: "JV-0005-R2"})
	assert.ErrorIs(t, err, accounting.ErrAlreadyReversed)
}

func TestReverseRequiresPosted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateJournal(ctx, journals.CreateInput{
		Number: "JV-0006",
		Date:   day(5),
		Entries: []journals.EntryInput{
			{AccountCode: "1100", Debit: money("1.00")},
			{AccountCode: "4100", Credit: money("1.00")},
		},
	})
	require.NoError(t, err)
	_, err = f.svc.Reverse(ctx, journals.ReverseInput{JournalID: draft.ID})
	assert.ErrorIs(t, err, accounting.ErrInvalidStatus)
}

func TestDuplicateNumberRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := journals.CreateInput{
		Number: "JV-0007",
		Date:   day(5),
		Entries: []journals.EntryInput{
			{AccountCode: "1001", Debit: money("5.00")},
			{AccountCode: "3100", Credit: money("5.00")},
		},
	}
	_, err := f.svc.PostJournal(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.PostJournal(ctx, in)
	assert.ErrorIs(t, err, accounting.ErrDuplicateJournalNumber)
	assert.Equal(t, "5.00", f.balance(t, "1001"))
}

func TestPostingTargetsMustBeActiveLeaves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PostJournal(ctx, journals.CreateInput{
		Number: "JV-0008",
		Date:   day(5),
		Entries: []journals.EntryInput{
			{AccountCode: "1000", Debit: money("5.00")},
			{AccountCode: "3100", Credit: money("5.00")},
		},
	})
	assert.ErrorIs(t, err, accounting.ErrNotLeafAccount)

	_, err = f.svc.PostJournal(ctx, journals.CreateInput{
		Number: "JV-0009",
		Date:   day(5),
		Entries: []journals.EntryInput{
			{AccountCode: "9999", Debit: money("5.00")},
			{AccountCode: "3100", Credit: money("5.00")},
		},
	})
	assert.ErrorIs(t, err, accounting.ErrAccountNotFound)

	inactive := false
	_, err = f.reg.UpdateAccount(ctx, accounts.UpdateAccountInput{Code: "1500", IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.svc.PostJournal(ctx, journals.CreateInput{
		Number: "JV-0010",
		Date:   day(5),
		Entries: []journals.EntryInput{
			{AccountCode: "1500", Debit: money("5.00")},
			{AccountCode: "3100", Credit: money("5.00")},
		},
	})
	assert.ErrorIs(t, err, accounting.ErrAccountInactive)
}

func TestCreateInputValidation(t *testing.T) {
	base := journals.CreateInput{
		Number: "JV-1",
		Date:   day(1),
		Entries: []journals.EntryInput{
			{AccountCode: "1001", Debit: money("1.00")},
			{AccountCode: "3100", Credit: money("1.00")},
		},
	}
	require.NoError(t, base.Validate())

	noNumber := base
	noNumber.Number = " "
	assert.ErrorIs(t, noNumber.Validate(), accounting.ErrJournalNumberRequired)

	oneLine := base
	oneLine.Entries = base.Entries[:1]
	assert.ErrorIs(t, oneLine.Validate(), accounting.ErrTooFewLines)

	negative := base
	negative.Entries = []journals.EntryInput{
		{AccountCode: "1001", Debit: money("-1.00")},
		{AccountCode: "3100", Credit: money("1.00")},
	}
	assert.Error(t, negative.Validate())

	empty := base
	empty.Entries = []journals.EntryInput{
		{AccountCode: "1001"},
		{AccountCode: "3100", Credit: money("1.00")},
	}
	assert.Error(t, empty.Validate())

	subCent := base
	subCent.Entries = []journals.EntryInput{
		{AccountCode: "1001", Debit: decimal.RequireFromString("0.004")},
		{AccountCode: "3100", Credit: decimal.RequireFromString("0.004")},
	}
	assert.ErrorIs(t, subCent.Validate(), accounting.ErrInvalidInput)

	roundsUp := base
	roundsUp.Entries = []journals.EntryInput{
		{AccountCode: "1001", Debit: decimal.RequireFromString("0.005")},
		{AccountCode: "3100", Credit: decimal.RequireFromString("0.005")},
	}
	assert.NoError(t, roundsUp.Validate())
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, number := range []string{"JV-A", "JV-B"} {
		in := journals.CreateInput{
			Number: number,
			Date:   day(1 + i),
			Entries: []journals.EntryInput{
				{AccountCode: "1001", Debit: money("2.00")},
				{AccountCode: "3100", Credit: money("2.00")},
			},
		}
		var err error
		if i == 0 {
			_, err = f.svc.PostJournal(ctx, in)
		} else {
			_, err = f.svc.CreateJournal(ctx, in)
		}
		require.NoError(t, err)
	}

	posted, err := f.svc.List(ctx, journals.ListFilter{Status: accounting.JournalStatusPosted})
	require.NoError(t, err)
	require.Len(t, posted, 1)
	assert.Equal(t, "JV-A", posted[0].Number)

	all, err := f.svc.List(ctx, journals.ListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "JV-B", all[0].Number)
}

func TestCostAgainstPayableIncreasesBoth(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.PostJournal(context.Background(), journals.CreateInput{
		Number: "AP-0001",
		Date:   day(15),
		Entries: []journals.EntryInput{
			{AccountCode: "5100", Debit: money("1000.00")},
			{AccountCode: "2100", Credit: money("1000.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "1000.00", f.balance(t, "5100"))
	assert.Equal(t, "1000.00", f.balance(t, "2100"))
}

func TestPostingImbalancedDraftLeavesItDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.CreateJournal(ctx, journals.CreateInput{
		Number: "JV-0500",
		Date:   day(15),
		Entries: []journals.EntryInput{
			{AccountCode: "5100", Debit: money("500.00")},
			{AccountCode: "2100", Credit: money("400.00")},
		},
	})
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, journals.PostInput{JournalID: draft.ID})
	var imbalance *accounting.ImbalancedJournalError
	require.ErrorAs(t, err, &imbalance)
	assert.Equal(t, draft.ID, imbalance.JournalID)

	stored, err := f.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, accounting.JournalStatusDraft, stored.Status)
	assert.Len(t, stored.Entries, 2)
	assert.Equal(t, "0.00", f.balance(t, "5100"))
}
