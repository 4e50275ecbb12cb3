package openitems_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/memstore"
)

var today = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*openitems.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	svc := openitems.NewService(store.OpenItems())
	svc.WithNow(func() time.Time { return today })
	return svc, store
}

func money(raw string) decimal.Decimal { return accounting.MustMoney(raw) }

func key(doc string) openitems.MasterKey {
	return openitems.MasterKey{
		Kind:           openitems.KindReceivable,
		CounterpartyID: 42,
		SourceDoc:      accounting.DocumentRef{Type: "sales_invoice", ID: doc, Number: "INV-" + doc},
	}
}

func createDetail(t *testing.T, svc *openitems.Service, doc string, typ openitems.DetailType, amount string, date time.Time) (openitems.Detail, openitems.Master) {
	t.Helper()
	d, m, err := svc.CreateDetail(context.Background(), openitems.CreateDetailInput{
		Key:          key(doc),
		DetailType:   typ,
		Amount:       money(amount),
		BusinessDate: date,
		ActorID:      5,
	})
	require.NoError(t, err)
	return d, m
}

func TestAllocateRejectsOverAllocationThenSettles(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	detail, master := createDetail(t, svc, "100", openitems.DetailPositive, "1000.00", today)
	assert.Equal(t, "1000.00", accounting.FormatMoney(master.InvoiceAmount))
	assert.Equal(t, openitems.MasterPending, master.Status)
	assert.Equal(t, "INV-100", master.Number)

	_, _, err := svc.Allocate(ctx, openitems.AllocateInput{DetailID: detail.ID, Amount: money("1200.00")})
	require.ErrorIs(t, err, openitems.ErrOverAllocation)
	var over *openitems.OverAllocationError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, "1000.00", accounting.FormatMoney(over.Available))

	detail, master, err = svc.Allocate(ctx, openitems.AllocateInput{DetailID: detail.ID, Amount: money("1000.00")})
	require.NoError(t, err)
	assert.Equal(t, openitems.DetailAllocated, detail.Status)

	master, err = svc.AggregateFromDetails(ctx, master.ID, 5)
	require.NoError(t, err)
	assert.True(t, master.Balance.IsZero())
	assert.Equal(t, openitems.MasterPaid, master.Status)
	assert.Equal(t, "100.00", master.PaymentRatio().StringFixed(2))
}

func TestAllocateRejectsNonPositive(t *testing.T) {
	svc, _ := newService(t)
	detail, _ := createDetail(t, svc, "101", openitems.DetailPositive, "10.00", today)
	_, _, err := svc.Allocate(context.Background(), openitems.AllocateInput{DetailID: detail.ID, Amount: decimal.Zero})
	assert.ErrorIs(t, err, openitems.ErrOverAllocation)
}

func TestNegativeDetailReducesInvoice(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	createDetail(t, svc, "200", openitems.DetailPositive, "800.00", today.AddDate(0, 0, -2))
	returned, master := createDetail(t, svc, "200", openitems.DetailNegative, "-200.00", today)
	assert.Equal(t, "600.00", accounting.FormatMoney(master.InvoiceAmount))
	assert.Equal(t, "600.00", accounting.FormatMoney(master.Balance))

	again, err := svc.AggregateFromDetails(ctx, master.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, "600.00", accounting.FormatMoney(again.InvoiceAmount))

	returned, _, err = svc.Allocate(ctx, openitems.AllocateInput{DetailID: returned.ID, Amount: money("50.00")})
	require.NoError(t, err)
	assert.Equal(t, "-50.00", accounting.FormatMoney(returned.AllocatedAmount))
	assert.Equal(t, openitems.DetailPartial, returned.Status)
}

func TestDetailSignMustMatchType(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.CreateDetail(context.Background(), openitems.CreateDetailInput{
		Key: key("300"), DetailType: openitems.DetailNegative, Amount: money("200.00"),
	})
	assert.ErrorIs(t, err, openitems.ErrInvalidAmount)
	_, _, err = svc.CreateDetail(context.Background(), openitems.CreateDetailInput{
		Key: key("300"), DetailType: openitems.DetailPositive, Amount: money("-1.00"),
	})
	assert.ErrorIs(t, err, openitems.ErrInvalidAmount)
}

func TestAggregateIsIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, master := createDetail(t, svc, "400", openitems.DetailPositive, "300.00", today)

	before, err := svc.ListChanges(ctx, master.ID)
	require.NoError(t, err)
	first, err := svc.AggregateFromDetails(ctx, master.ID, 5)
	require.NoError(t, err)
	second, err := svc.AggregateFromDetails(ctx, master.ID, 5)
	require.NoError(t, err)
	after, err := svc.ListChanges(ctx, master.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, after, len(before))
}

func TestDirectPaymentWithoutDetails(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	master, err := svc.GetOrCreateMaster(ctx, key("500"), openitems.MasterOptions{InvoiceAmount: money("900.00")})
	require.NoError(t, err)

	_, err = svc.RecordDirectPayment(ctx, openitems.DirectPaymentInput{MasterID: master.ID, Amount: money("901.00")})
	assert.ErrorIs(t, err, openitems.ErrOverAllocation)

	master, err = svc.RecordDirectPayment(ctx, openitems.DirectPaymentInput{MasterID: master.ID, Amount: money("400.00")})
	require.NoError(t, err)
	assert.Equal(t, "500.00", accounting.FormatMoney(master.Balance))
	assert.Equal(t, openitems.MasterPartiallyPaid, master.Status)

	check, err := svc.VerifyAggregation(ctx, master.ID)
	require.NoError(t, err)
	assert.False(t, check.HasDetails)
	assert.True(t, check.Consistent)
}

func TestDirectPaymentAllocatesOldestFirst(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	older, _ := createDetail(t, svc, "600", openitems.DetailPositive, "300.00", today.AddDate(0, 0, -10))
	newer, master := createDetail(t, svc, "600", openitems.DetailPositive, "500.00", today)

	master, err := svc.RecordDirectPayment(ctx, openitems.DirectPaymentInput{MasterID: master.ID, Amount: money("450.00")})
	require.NoError(t, err)
	assert.Equal(t, "350.00", accounting.FormatMoney(master.Balance))

	full, err := svc.GetMaster(ctx, master.ID)
	require.NoError(t, err)
	require.Len(t, full.Details, 2)
	assert.Equal(t, older.ID, full.Details[0].ID)
	assert.Equal(t, openitems.DetailAllocated, full.Details[0].Status)
	assert.Equal(t, newer.ID, full.Details[1].ID)
	assert.Equal(t, "150.00", accounting.FormatMoney(full.Details[1].AllocatedAmount))
}

func TestDirectPaymentReferenceAppliesOnce(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, master := createDetail(t, svc, "650", openitems.DetailPositive, "800.00", today)

	applied, err := svc.PaymentApplied(ctx, master.ID, "RCPT-1")
	require.NoError(t, err)
	assert.False(t, applied)

	payment := openitems.DirectPaymentInput{MasterID: master.ID, Amount: money("300.00"), Reference: "RCPT-1"}
	master, err = svc.RecordDirectPayment(ctx, payment)
	require.NoError(t, err)
	assert.Equal(t, "500.00", accounting.FormatMoney(master.Balance))

	_, err = svc.RecordDirectPayment(ctx, payment)
	require.ErrorIs(t, err, openitems.ErrPaymentApplied)
	applied, err = svc.PaymentApplied(ctx, master.ID, "RCPT-1")
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := svc.GetMaster(ctx, master.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", accounting.FormatMoney(got.Balance))

	changes, err := svc.ListChanges(ctx, master.ID)
	require.NoError(t, err)
	last := changes[len(changes)-1]
	assert.Equal(t, "direct_payment", last.Action)
	assert.Equal(t, "RCPT-1", last.Reference)

	_, err = svc.PaymentApplied(ctx, master.ID, " ")
	assert.ErrorIs(t, err, accounting.ErrInvalidInput)
}

// staleReads hides existing masters from the first lookup, as a concurrent
// insert that committed after our read would.
type staleReads struct {
	inner openitems.Repository
	calls int
}

func (r *staleReads) WithTx(ctx context.Context, fn func(context.Context, openitems.TxRepository) error) error {
	r.calls++
	first := r.calls == 1
	return r.inner.WithTx(ctx, func(ctx context.Context, tx openitems.TxRepository) error {
		if first {
			return fn(ctx, staleTx{tx})
		}
		return fn(ctx, tx)
	})
}

type staleTx struct{ openitems.TxRepository }

func (staleTx) FindMaster(context.Context, openitems.MasterKey) (openitems.Master, bool, error) {
	return openitems.Master{}, false, nil
}

func TestCreateDetailRecoversFromMasterInsertRace(t *testing.T) {
	store := memstore.New()
	winner := openitems.NewService(store.OpenItems())
	winner.WithNow(func() time.Time { return today })
	ctx := context.Background()
	existing, err := winner.GetOrCreateMaster(ctx, key("700"), openitems.MasterOptions{})
	require.NoError(t, err)

	repo := &staleReads{inner: store.OpenItems()}
	loser := openitems.NewService(repo)
	loser.WithNow(func() time.Time { return today })
	_, master, err := loser.CreateDetail(ctx, openitems.CreateDetailInput{
		Key:          key("700"),
		DetailType:   openitems.DetailPositive,
		Amount:       money("120.00"),
		BusinessDate: today,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
	assert.Equal(t, existing.ID, master.ID)
	assert.Equal(t, "120.00", accounting.FormatMoney(master.InvoiceAmount))
}

func TestArchiveDetail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	keep, _ := createDetail(t, svc, "700", openitems.DetailPositive, "100.00", today)
	drop, master := createDetail(t, svc, "700", openitems.DetailPositive, "40.00", today)
	assert.Equal(t, "140.00", accounting.FormatMoney(master.InvoiceAmount))

	master, err := svc.ArchiveDetail(ctx, drop.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, "100.00", accounting.FormatMoney(master.InvoiceAmount))

	_, err = svc.ArchiveDetail(ctx, drop.ID, 5)
	assert.ErrorIs(t, err, openitems.ErrDetailArchived)
	_, _, err = svc.Allocate(ctx, openitems.AllocateInput{DetailID: drop.ID, Amount: money("1.00")})
	assert.ErrorIs(t, err, openitems.ErrDetailArchived)

	_, _, err = svc.Allocate(ctx, openitems.AllocateInput{DetailID: keep.ID, Amount: money("1.00")})
	require.NoError(t, err)
	_, err = svc.ArchiveDetail(ctx, keep.ID, 5)
	assert.ErrorIs(t, err, openitems.ErrDetailHasAllocations)
}

func TestVerifyAndRepairDetectsDrift(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	_, master := createDetail(t, svc, "800", openitems.DetailPositive, "250.00", today)

	check, err := svc.VerifyAggregation(ctx, master.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent)

	require.NoError(t, store.OpenItems().WithTx(ctx, func(ctx context.Context, tx openitems.TxRepository) error {
		m, err := tx.GetMaster(ctx, master.ID)
		if err != nil {
			return err
		}
		m.Balance = money("10.00")
		return tx.UpdateMaster(ctx, m)
	}))

	check, err = svc.VerifyAggregation(ctx, master.ID)
	require.ErrorIs(t, err, openitems.ErrInconsistentAggregation)
	assert.False(t, check.Consistent)
	assert.Equal(t, "250.00", accounting.FormatMoney(check.Expected.Balance))

	repaired, err := svc.Repair(ctx, master.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "250.00", accounting.FormatMoney(repaired.Balance))
	_, err = svc.VerifyAggregation(ctx, master.ID)
	assert.NoError(t, err)
}

func TestRefreshOverdue(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	due := today.AddDate(0, 0, 5)
	_, _, err := svc.CreateDetail(ctx, openitems.CreateDetailInput{
		Key:          key("900"),
		Master:       openitems.MasterOptions{DueDate: &due},
		DetailType:   openitems.DetailPositive,
		Amount:       money("75.00"),
		BusinessDate: today,
	})
	require.NoError(t, err)

	changed, err := svc.RefreshOverdue(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, changed)

	changed, err = svc.RefreshOverdue(ctx, due.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	overdue, err := svc.ListMasters(ctx, openitems.MasterFilter{Status: openitems.MasterOverdue})
	require.NoError(t, err)
	assert.Len(t, overdue, 1)
}

func TestMasterKeyReuse(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.GetOrCreateMaster(ctx, key("1000"), openitems.MasterOptions{})
	require.NoError(t, err)
	b, err := svc.GetOrCreateMaster(ctx, key("1000"), openitems.MasterOptions{Number: "other"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	_, _, err = svc.CreateDetail(ctx, openitems.CreateDetailInput{
		MasterID:   a.ID,
		Key:        openitems.MasterKey{CounterpartyID: 7},
		DetailType: openitems.DetailPositive,
		Amount:     money("1.00"),
	})
	assert.ErrorIs(t, err, openitems.ErrCounterpartyMismatch)

	_, err = svc.GetOrCreateMaster(ctx, openitems.MasterKey{Kind: "loan", CounterpartyID: 1}, openitems.MasterOptions{})
	assert.Error(t, err)
}
