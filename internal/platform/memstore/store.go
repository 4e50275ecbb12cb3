// Package memstore is a transactional in-memory implementation of every
// ledger repository port. It backs tests and the local demo.
package memstore

import (
	"context"
	"maps"
	"sync"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
)

type state struct {
	nextID   int64
	accounts map[int64]accounting.Account
	journals map[int64]accounting.Journal
	reports  map[int64]reports.ReportRecord
	masters  map[int64]openitems.Master
	details  map[int64]openitems.Detail
	changes  []openitems.Change
}

func newState() *state {
	return &state{
		accounts: make(map[int64]accounting.Account),
		journals: make(map[int64]accounting.Journal),
		reports:  make(map[int64]reports.ReportRecord),
		masters:  make(map[int64]openitems.Master),
		details:  make(map[int64]openitems.Detail),
	}
}

func (s *state) snapshot() *state {
	cp := &state{
		nextID:   s.nextID,
		accounts: maps.Clone(s.accounts),
		journals: make(map[int64]accounting.Journal, len(s.journals)),
		reports:  maps.Clone(s.reports),
		masters:  maps.Clone(s.masters),
		details:  maps.Clone(s.details),
		changes:  append([]openitems.Change(nil), s.changes...),
	}
	for id, j := range s.journals {
		j.Entries = append([]accounting.JournalEntry(nil), j.Entries...)
		cp.journals[id] = j
	}
	return cp
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store serialises transactions with a mutex. A failed transaction restores
// the snapshot taken when it began.
type Store struct {
	mu sync.Mutex
	st *state
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) run(ctx context.Context, fn func(*Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.snapshot()
	if err := fn(&Tx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Tx is the transactional view handed to repository callbacks.
type Tx struct {
	st *state
}

// Accounts adapts the store to accounts.Repository.
func (s *Store) Accounts() accounts.Repository { return accountsRepo{s} }

// Journals adapts the store to journals.Repository.
func (s *Store) Journals() journals.Repository { return journalsRepo{s} }

// Balances adapts the store to balances.Repository.
func (s *Store) Balances() balances.Repository { return balancesRepo{s} }

// Reports adapts the store to reports.Repository.
func (s *Store) Reports() reports.Repository { return reportsRepo{s} }

// OpenItems adapts the store to openitems.Repository.
func (s *Store) OpenItems() openitems.Repository { return openItemsRepo{s} }

type accountsRepo struct{ s *Store }

func (r accountsRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return r.s.run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

type journalsRepo struct{ s *Store }

func (r journalsRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return r.s.run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

type balancesRepo struct{ s *Store }

func (r balancesRepo) WithTx(ctx context.Context, fn func(context.Context, balances.Source) error) error {
	return r.s.run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

type reportsRepo struct{ s *Store }

func (r reportsRepo) Snapshot(ctx context.Context, fn func(context.Context, reports.SnapshotSource) error) error {
	return r.s.run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

func (r reportsRepo) WithTx(ctx context.Context, fn func(context.Context, reports.TxRepository) error) error {
	return r.s.run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}

type openItemsRepo struct{ s *Store }

func (r openItemsRepo) WithTx(ctx context.Context, fn func(context.Context, openitems.TxRepository) error) error {
	return r.s.run(ctx, func(tx *Tx) error { return fn(ctx, tx) })
}
