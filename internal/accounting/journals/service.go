package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AuditPort records journal lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached account snapshots after balances move.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service implements the journal lifecycle.
type Service struct {
	repo        Repository
	audit       AuditPort
	invalidator CacheInvalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the journal service. audit and invalidator may be nil.
func NewService(repo Repository, audit AuditPort, invalidator CacheInvalidator) *Service {
	return &Service{repo: repo, audit: audit, invalidator: invalidator, logger: slog.Default(), now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLogger overrides the logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Get returns a journal with its entries.
func (s *Service) Get(ctx context.Context, id int64) (accounting.Journal, error) {
	var j accounting.Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		j, err = tx.GetJournal(ctx, id)
		return err
	})
	return j, err
}

// List returns journal headers matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]accounting.Journal, error) {
	var out []accounting.Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListJournals(ctx, filter)
		return err
	})
	return out, err
}

// CreateJournal stores a draft journal.
func (s *Service) CreateJournal(ctx context.Context, input CreateInput) (accounting.Journal, error) {
	if err := input.Validate(); err != nil {
		return accounting.Journal{}, err
	}
	var created accounting.Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = s.create(ctx, tx, input)
		return err
	})
	if err != nil {
		return accounting.Journal{}, err
	}
	return created, nil
}

// Post moves a draft journal to posted. An imbalanced journal stays in draft.
func (s *Service) Post(ctx context.Context, input PostInput) (accounting.Journal, error) {
	if input.JournalID == 0 {
		return accounting.Journal{}, accounting.Invalid("accounting: journal id required")
	}
	var posted accounting.Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalForUpdate(ctx, input.JournalID)
		if err != nil {
			return err
		}
		posted, err = s.post(ctx, tx, current, input.PostedBy)
		return err
	})
	if err != nil {
		s.logPostFailure(posted.Number, input.JournalID, err)
		return accounting.Journal{}, err
	}
	s.afterPost(ctx, posted, "journal.post", input.PostedBy, nil)
	return posted, nil
}

// PostJournal creates and posts a journal in one transaction. Nothing is
// persisted when the entries do not balance.
func (s *Service) PostJournal(ctx context.Context, input CreateInput) (accounting.Journal, error) {
	if err := input.Validate(); err != nil {
		return accounting.Journal{}, err
	}
	var posted accounting.Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := s.create(ctx, tx, input)
		if err != nil {
			return err
		}
		posted, err = s.post(ctx, tx, created, input.PreparedBy)
		return err
	})
	if err != nil {
		s.logPostFailure(input.Number, 0, err)
		return accounting.Journal{}, err
	}
	s.afterPost(ctx, posted, "journal.post", input.PreparedBy, nil)
	return posted, nil
}

// Review stamps the reviewer on a draft journal.
func (s *Service) Review(ctx context.Context, input ReviewInput) (accounting.Journal, error) {
	var reviewed accounting.Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalForUpdate(ctx, input.JournalID)
		if err != nil {
			return err
		}
		if current.Status != accounting.JournalStatusDraft {
			return accounting.ErrInvalidStatus
		}
		reviewer := input.ReviewedBy
		current.ReviewedBy = &reviewer
		current.UpdatedAt = s.now()
		if err := tx.UpdateJournal(ctx, current); err != nil {
			return err
		}
		reviewed = current
		return nil
	})
	return reviewed, err
}

// Cancel marks a draft journal as cancelled.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (accounting.Journal, error) {
	var cancelled accounting.Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalForUpdate(ctx, input.JournalID)
		if err != nil {
			return err
		}
		if current.Status != accounting.JournalStatusDraft {
			return accounting.ErrInvalidStatus
		}
		now := s.now()
		current.Status = accounting.JournalStatusCancelled
		current.CancelledAt = &now
		current.CancelReason = strings.TrimSpace(input.Reason)
		current.UpdatedAt = now
		if err := tx.UpdateJournal(ctx, current); err != nil {
			return err
		}
		cancelled = current
		return nil
	})
	if err != nil {
		return accounting.Journal{}, err
	}
	s.record(ctx, input.ActorID, "journal.cancel", cancelled, map[string]any{"reason": cancelled.CancelReason})
	return cancelled, nil
}

// Reverse posts a new journal with swapped legs that offsets a posted journal.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (accounting.Journal, error) {
	if input.JournalID == 0 {
		return accounting.Journal{}, accounting.Invalid("accounting: journal id required")
	}
	var reversal accounting.Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetJournalForUpdate(ctx, input.JournalID)
		if err != nil {
			return err
		}
		if original.Status != accounting.JournalStatusPosted {
			return accounting.ErrInvalidStatus
		}
		if _, found, err := tx.FindReversal(ctx, original.ID); err != nil {
			return err
		} else if found {
			return accounting.ErrAlreadyReversed
		}
		in := reversalInput(original, input, s.now())
		draft, err := s.create(ctx, tx, in)
		if err != nil {
			return err
		}
		reversal, err = s.post(ctx, tx, draft, input.ActorID)
		return err
	})
	if err != nil {
		return accounting.Journal{}, err
	}
	s.afterPost(ctx, reversal, "journal.reverse", input.ActorID, map[string]any{"reversal_of": input.JournalID})
	return reversal, nil
}

func reversalInput(original accounting.Journal, input ReverseInput, now time.Time) CreateInput {
	number := strings.TrimSpace(input.Number)
	if number == "" {
		number = original.Number + "-R"
	}
	date := accounting.DateOnly(now)
	if input.Date != nil {
		date = accounting.DateOnly(*input.Date)
	}
	memo := strings.TrimSpace(input.Memo)
	if memo == "" {
		memo = fmt.Sprintf("Reversal of %s", original.Number)
	}
	entries := make([]EntryInput, 0, len(original.Entries))
	for _, e := range original.Entries {
		entries = append(entries, EntryInput{
			AccountCode:  e.AccountCode,
			Debit:        e.CreditAmount,
			Credit:       e.DebitAmount,
			Description:  e.Description,
			CustomerID:   e.CustomerID,
			SupplierID:   e.SupplierID,
			DepartmentID: e.DepartmentID,
			Project:      e.Project,
		})
	}
	return CreateInput{
		Number: number,
		Type:   original.Type,
		Date:   date,
		Reference: accounting.DocumentRef{
			Type:   accounting.ReferenceTypeReversal,
			ID:     strconv.FormatInt(original.ID, 10),
			Number: original.Number,
		},
		Description: memo,
		PreparedBy:  input.ActorID,
		Entries:     entries,
	}
}

func (s *Service) create(ctx context.Context, tx TxRepository, input CreateInput) (accounting.Journal, error) {
	now := s.now()
	j := accounting.Journal{
		Number:      strings.TrimSpace(input.Number),
		Type:        input.journalType(),
		Status:      accounting.JournalStatusDraft,
		Date:        accounting.DateOnly(input.Date),
		Period:      input.period(),
		Reference:   input.Reference,
		Description: input.Description,
		Notes:       input.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.PreparedBy != 0 {
		preparer := input.PreparedBy
		j.PreparedBy = &preparer
	}
	if input.Reference.Type == accounting.ReferenceTypeReversal {
		if id, err := strconv.ParseInt(input.Reference.ID, 10, 64); err == nil {
			j.ReversalOf = &id
		}
	}
	for idx, e := range input.Entries {
		acc, err := tx.GetAccountByCode(ctx, strings.TrimSpace(e.AccountCode))
		if err != nil {
			return accounting.Journal{}, err
		}
		if err := accounts.ValidatePostingTarget(acc); err != nil {
			return accounting.Journal{}, err
		}
		j.Entries = append(j.Entries, accounting.JournalEntry{
			AccountID:    acc.ID,
			AccountCode:  acc.Code,
			DebitAmount:  accounting.Money(e.Debit),
			CreditAmount: accounting.Money(e.Credit),
			Description:  e.Description,
			CustomerID:   e.CustomerID,
			SupplierID:   e.SupplierID,
			DepartmentID: e.DepartmentID,
			Project:      e.Project,
			SortOrder:    idx + 1,
		})
	}
	j.TotalDebit, j.TotalCredit = accounting.EntryTotals(j.Entries)
	return tx.InsertJournal(ctx, j)
}

// post recomputes totals from the stored entries and applies the balance
// deltas. The caller's transaction rolls everything back on error.
func (s *Service) post(ctx context.Context, tx TxRepository, j accounting.Journal, postedBy int64) (accounting.Journal, error) {
	if j.Status != accounting.JournalStatusDraft {
		return j, accounting.ErrInvalidStatus
	}
	debit, credit := accounting.EntryTotals(j.Entries)
	if !debit.Equal(credit) {
		return j, &accounting.ImbalancedJournalError{JournalID: j.ID, Debit: debit, Credit: credit}
	}
	deltas := make(map[int64]decimal.Decimal)
	for _, e := range j.Entries {
		acc, err := tx.GetAccountByID(ctx, e.AccountID)
		if err != nil {
			return j, err
		}
		if err := accounts.ValidatePostingTarget(acc); err != nil {
			return j, err
		}
		deltas[acc.ID] = deltas[acc.ID].Add(accounting.SignedMovement(acc.Type, e.DebitAmount, e.CreditAmount))
	}
	ids := make([]int64, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	// stable lock order across concurrent posts
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	for _, id := range ids {
		if deltas[id].IsZero() {
			continue
		}
		if err := tx.AdjustCurrentBalance(ctx, id, deltas[id]); err != nil {
			return j, err
		}
	}
	now := s.now()
	j.Status = accounting.JournalStatusPosted
	j.TotalDebit, j.TotalCredit = debit, credit
	j.PostedAt = &now
	if postedBy != 0 {
		poster := postedBy
		j.PostedBy = &poster
	}
	j.UpdatedAt = now
	if err := tx.UpdateJournal(ctx, j); err != nil {
		return j, err
	}
	return j, nil
}

func (s *Service) afterPost(ctx context.Context, j accounting.Journal, action string, actor int64, meta map[string]any) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.Warn("account cache invalidate after post", slog.Any("error", err))
		}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["total"] = accounting.FormatMoney(j.TotalDebit)
	if !j.Reference.IsZero() {
		meta["reference_type"] = j.Reference.Type
		meta["reference_number"] = j.Reference.Number
	}
	s.record(ctx, actor, action, j, meta)
	s.logger.Info("journal posted",
		slog.Int64("journal_id", j.ID),
		slog.String("number", j.Number),
		slog.String("total", accounting.FormatMoney(j.TotalDebit)))
}

func (s *Service) logPostFailure(number string, id int64, err error) {
	var imbalance *accounting.ImbalancedJournalError
	if errors.As(err, &imbalance) {
		s.logger.Warn("journal rejected",
			slog.String("number", number),
			slog.Int64("journal_id", id),
			slog.String("debit", accounting.FormatMoney(imbalance.Debit)),
			slog.String("credit", accounting.FormatMoney(imbalance.Credit)))
	}
}

func (s *Service) record(ctx context.Context, actor int64, action string, j accounting.Journal, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = j.Number
	meta["request_id"] = uuid.NewString()
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "journal",
		EntityID: strconv.FormatInt(j.ID, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("journal audit", slog.String("action", action), slog.Any("error", err))
	}
}
