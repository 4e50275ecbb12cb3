package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

func (t *Tx) GetAccountByCode(_ context.Context, code string) (accounting.Account, error) {
	for _, acc := range t.st.accounts {
		if acc.Code == code {
			return acc, nil
		}
	}
	return accounting.Account{}, &accounting.AccountNotFoundError{Code: code}
}

func (t *Tx) GetAccountByID(_ context.Context, id int64) (accounting.Account, error) {
	acc, ok := t.st.accounts[id]
	if !ok {
		return accounting.Account{}, &accounting.AccountNotFoundError{Code: fmt.Sprintf("#%d", id)}
	}
	return acc, nil
}

func (t *Tx) ListAccounts(_ context.Context, filter accounting.AccountFilter) ([]accounting.Account, error) {
	var out []accounting.Account
	for _, acc := range t.st.accounts {
		if filter.Match(acc) {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *Tx) InsertAccount(_ context.Context, acc accounting.Account) (accounting.Account, error) {
	for _, existing := range t.st.accounts {
		if existing.Code == acc.Code {
			return accounting.Account{}, accounting.ErrDuplicateAccountCode
		}
	}
	acc.ID = t.st.id()
	t.st.accounts[acc.ID] = acc
	return acc, nil
}

func (t *Tx) UpdateAccount(_ context.Context, acc accounting.Account) error {
	existing, ok := t.st.accounts[acc.ID]
	if !ok {
		return &accounting.AccountNotFoundError{Code: acc.Code}
	}
	existing.Name = acc.Name
	existing.Category = acc.Category
	existing.IsLeaf = acc.IsLeaf
	existing.IsActive = acc.IsActive
	existing.AllowManualEntry = acc.AllowManualEntry
	existing.OpeningBalance = acc.OpeningBalance
	existing.CurrentBalance = acc.CurrentBalance
	existing.Description = acc.Description
	existing.UpdatedAt = acc.UpdatedAt
	t.st.accounts[acc.ID] = existing
	return nil
}

func (t *Tx) HasPostedEntries(_ context.Context, accountID int64) (bool, error) {
	for _, j := range t.st.journals {
		if j.Status != accounting.JournalStatusPosted {
			continue
		}
		for _, e := range j.Entries {
			if e.AccountID == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *Tx) AdjustCurrentBalance(_ context.Context, accountID int64, delta decimal.Decimal) error {
	acc, ok := t.st.accounts[accountID]
	if !ok {
		return &accounting.AccountNotFoundError{Code: fmt.Sprintf("#%d", accountID)}
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(delta)
	t.st.accounts[accountID] = acc
	return nil
}

func (t *Tx) InsertJournal(_ context.Context, j accounting.Journal) (accounting.Journal, error) {
	for _, existing := range t.st.journals {
		if existing.Number == j.Number {
			return accounting.Journal{}, accounting.ErrDuplicateJournalNumber
		}
		if j.ReversalOf != nil && existing.ReversalOf != nil && *existing.ReversalOf == *j.ReversalOf {
			return accounting.Journal{}, accounting.ErrAlreadyReversed
		}
	}
	j.ID = t.st.id()
	entries := make([]accounting.JournalEntry, len(j.Entries))
	for i, e := range j.Entries {
		e.ID = t.st.id()
		e.JournalID = j.ID
		if acc, ok := t.st.accounts[e.AccountID]; ok {
			e.AccountCode = acc.Code
		}
		entries[i] = e
	}
	j.Entries = entries
	t.st.journals[j.ID] = j
	return cloneJournal(j), nil
}

func (t *Tx) GetJournal(_ context.Context, id int64) (accounting.Journal, error) {
	j, ok := t.st.journals[id]
	if !ok {
		return accounting.Journal{}, accounting.ErrJournalNotFound
	}
	return cloneJournal(j), nil
}

func (t *Tx) GetJournalForUpdate(ctx context.Context, id int64) (accounting.Journal, error) {
	return t.GetJournal(ctx, id)
}

func (t *Tx) UpdateJournal(_ context.Context, j accounting.Journal) error {
	existing, ok := t.st.journals[j.ID]
	if !ok {
		return accounting.ErrJournalNotFound
	}
	existing.Status = j.Status
	existing.TotalDebit = j.TotalDebit
	existing.TotalCredit = j.TotalCredit
	existing.ReviewedBy = j.ReviewedBy
	existing.PostedBy = j.PostedBy
	existing.PostedAt = j.PostedAt
	existing.CancelledAt = j.CancelledAt
	existing.CancelReason = j.CancelReason
	existing.UpdatedAt = j.UpdatedAt
	t.st.journals[j.ID] = existing
	return nil
}

func (t *Tx) FindReversal(_ context.Context, originalID int64) (int64, bool, error) {
	for _, j := range t.st.journals {
		if j.ReversalOf != nil && *j.ReversalOf == originalID && j.Status != accounting.JournalStatusCancelled {
			return j.ID, true, nil
		}
	}
	return 0, false, nil
}

func (t *Tx) ListJournals(_ context.Context, filter accounting.JournalFilter) ([]accounting.Journal, error) {
	var out []accounting.Journal
	for _, j := range t.st.journals {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.Period != "" && j.Period != filter.Period {
			continue
		}
		date := accounting.DateOnly(j.Date)
		if filter.From != nil && date.Before(accounting.DateOnly(*filter.From)) {
			continue
		}
		if filter.To != nil && date.After(accounting.DateOnly(*filter.To)) {
			continue
		}
		j.Entries = nil
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].Date.Equal(out[k].Date) {
			return out[i].Date.After(out[k].Date)
		}
		return out[i].ID > out[k].ID
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (t *Tx) SumPostedEntries(ctx context.Context, accountID int64, window accounting.DateWindow) (debit, credit decimal.Decimal, err error) {
	lines, err := t.ListPostedEntries(ctx, accountID, window)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit, nil
}

func (t *Tx) ListPostedEntries(_ context.Context, accountID int64, window accounting.DateWindow) ([]accounting.LedgerLine, error) {
	type keyed struct {
		line  accounting.LedgerLine
		order int
	}
	var rows []keyed
	for _, j := range t.st.journals {
		if j.Status != accounting.JournalStatusPosted || !window.Contains(j.Date) {
			continue
		}
		for _, e := range j.Entries {
			if e.AccountID != accountID {
				continue
			}
			rows = append(rows, keyed{order: e.SortOrder, line: accounting.LedgerLine{
				JournalID:     j.ID,
				JournalNumber: j.Number,
				Date:          j.Date,
				Description:   e.Description,
				Debit:         e.DebitAmount,
				Credit:        e.CreditAmount,
			}})
		}
	}
	sort.SliceStable(rows, func(i, k int) bool {
		a, b := rows[i], rows[k]
		if !a.line.Date.Equal(b.line.Date) {
			return a.line.Date.Before(b.line.Date)
		}
		if a.line.JournalID != b.line.JournalID {
			return a.line.JournalID < b.line.JournalID
		}
		return a.order < b.order
	})
	out := make([]accounting.LedgerLine, len(rows))
	for i, r := range rows {
		out[i] = r.line
	}
	return out, nil
}

func cloneJournal(j accounting.Journal) accounting.Journal {
	j.Entries = append([]accounting.JournalEntry(nil), j.Entries...)
	return j
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
