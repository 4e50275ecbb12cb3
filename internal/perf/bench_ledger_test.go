package perf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/memstore"
)

var benchNow = time.Date(2026, 6, 30, 18, 0, 0, 0, time.UTC)

func newCore(tb testing.TB) *ledger.Core {
	tb.Helper()
	store := memstore.New()
	if err := store.Seed(context.Background(), memstore.DefaultChart); err != nil {
		tb.Fatalf("seed chart: %v", err)
	}
	return ledger.NewInMemory(store, ledger.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return benchNow },
	})
}

func salesJournal(number string, day int) journals.CreateInput {
	return journals.CreateInput{
		Number: number,
		Date:   time.Date(2026, 6, 1+day%28, 0, 0, 0, 0, time.UTC),
		Entries: []journals.EntryInput{
			{AccountCode: "1002", Debit: accounting.MustMoney("125.50")},
			{AccountCode: "4100", Credit: accounting.MustMoney("100.00")},
			{AccountCode: "2100", Credit: accounting.MustMoney("25.50")},
		},
	}
}

// preload posts n journals so reads aggregate a realistic history.
func preload(tb testing.TB, core *ledger.Core, n int) {
	tb.Helper()
	for i := 0; i < n; i++ {
		if _, err := core.PostJournal(context.Background(), salesJournal(fmt.Sprintf("PRE-%d", i), i)); err != nil {
			tb.Fatalf("preload journal %d: %v", i, err)
		}
	}
}

func BenchmarkPostJournal(b *testing.B) {
	core := newCore(b)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := core.PostJournal(ctx, salesJournal(fmt.Sprintf("JV-%d", i), i)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetBalance(b *testing.B) {
	core := newCore(b)
	preload(b, core, 500)
	ctx := context.Background()
	since := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	b.Run("current", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := core.GetBalance(ctx, "1002", benchNow, nil); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("window", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := core.GetBalance(ctx, "1002", benchNow, &since); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkGenerateTrialBalance(b *testing.B) {
	core := newCore(b)
	preload(b, core, 500)
	ctx := context.Background()
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := core.GenerateTrialBalance(ctx, from, benchNow, 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReconcileMasters(b *testing.B) {
	core := newCore(b)
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		_, _, err := core.CreateDetail(ctx, openitems.CreateDetailInput{
			Key: openitems.MasterKey{
				Kind:           openitems.KindReceivable,
				CounterpartyID: int64(i%20 + 1),
				SourceDoc:      accounting.DocumentRef{Type: "sales_invoice", ID: fmt.Sprint(i)},
			},
			DetailType:   openitems.DetailPositive,
			Amount:       accounting.MustMoney("75.00"),
			BusinessDate: benchNow,
		})
		if err != nil {
			b.Fatalf("create detail %d: %v", i, err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		found, err := core.ReconcileMasters(ctx, false, 1)
		if err != nil {
			b.Fatal(err)
		}
		if len(found) != 0 {
			b.Fatalf("unexpected inconsistencies: %d", len(found))
		}
	}
}
