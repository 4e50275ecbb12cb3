package openitems

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// MasterOptions supplies attributes used only when a master is created.
type MasterOptions struct {
	Number   string
	DueDate  *time.Time
	Currency string
	Notes    string
	// InvoiceAmount seeds a master that is settled directly, without details.
	InvoiceAmount decimal.Decimal
	ActorID       int64
}

// CreateDetailInput describes a new detail. MasterID wins over the key when set.
type CreateDetailInput struct {
	Number       string
	MasterID     int64
	Key          MasterKey
	Master       MasterOptions
	DetailType   DetailType
	Amount       decimal.Decimal
	BusinessDate time.Time
	Origin       accounting.DocumentRef
	Notes        string
	ActorID      int64
}

// AllocateInput settles part of a detail. Amount is a positive magnitude.
type AllocateInput struct {
	DetailID int64
	Amount   decimal.Decimal
	ActorID  int64
}

// DirectPaymentInput settles part of a master. A non-empty Reference makes
// the payment apply at most once per master.
type DirectPaymentInput struct {
	MasterID  int64
	Amount    decimal.Decimal
	Reference string
	ActorID   int64
}

// AggregationCheck is the outcome of VerifyAggregation.
type AggregationCheck struct {
	MasterID   int64
	Expected   Totals
	Actual     Totals
	HasDetails bool
	Consistent bool
}

// Service implements the open item ledger.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: slog.Default(), now: time.Now}
}

// WithLogger overrides the logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetOrCreateMaster returns the master for key, creating it when missing.
func (s *Service) GetOrCreateMaster(ctx context.Context, key MasterKey, opts MasterOptions) (Master, error) {
	if err := validateKey(key); err != nil {
		return Master{}, err
	}
	var m Master
	err := s.withMasterRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		m, err = s.resolveMaster(ctx, tx, key, opts)
		return err
	})
	return m, err
}

// withMasterRetry reruns fn once when it lost a master insert race; the
// second pass finds the winner's master.
func (s *Service) withMasterRetry(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := s.repo.WithTx(ctx, fn)
	if errors.Is(err, ErrDuplicateMaster) {
		err = s.repo.WithTx(ctx, fn)
	}
	return err
}

func validateKey(key MasterKey) error {
	if !key.Kind.Valid() {
		return accounting.Invalid("openitems: invalid kind %q", key.Kind)
	}
	if key.CounterpartyID == 0 {
		return accounting.Invalid("openitems: counterparty required")
	}
	if key.SourceDoc.Type == "" || key.SourceDoc.ID == "" {
		return accounting.Invalid("openitems: source document required")
	}
	return nil
}

func (s *Service) resolveMaster(ctx context.Context, tx TxRepository, key MasterKey, opts MasterOptions) (Master, error) {
	existing, found, err := tx.FindMaster(ctx, key)
	if err != nil {
		return Master{}, err
	}
	if found {
		return tx.GetMasterForUpdate(ctx, existing.ID)
	}
	now := s.now()
	invoice := accounting.Money(opts.InvoiceAmount)
	if invoice.IsNegative() {
		return Master{}, ErrInvalidAmount
	}
	m := Master{
		Kind:           key.Kind,
		CounterpartyID: key.CounterpartyID,
		SourceDoc:      key.SourceDoc,
		Number:         strings.TrimSpace(opts.Number),
		InvoiceAmount:  invoice,
		PaidAmount:     decimal.Zero,
		Balance:        invoice,
		DueDate:        opts.DueDate,
		Currency:       opts.Currency,
		Lifecycle:      LifecycleActive,
		Notes:          opts.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if m.Number == "" {
		m.Number = key.SourceDoc.Number
	}
	m.Status = m.DeriveStatus(now)
	created, err := tx.InsertMaster(ctx, m)
	if err != nil {
		return Master{}, err
	}
	if err := s.log(ctx, tx, created.ID, EntityMaster, created.ID, "create", invoice, opts.ActorID, ChangeState{}, masterState(created)); err != nil {
		return Master{}, err
	}
	return created, nil
}

// CreateDetail stores a detail, resolving or creating its master, and
// re-aggregates the master in the same transaction.
func (s *Service) CreateDetail(ctx context.Context, input CreateDetailInput) (Detail, Master, error) {
	amount := accounting.Money(input.Amount)
	switch input.DetailType {
	case DetailPositive:
		if !amount.IsPositive() {
			return Detail{}, Master{}, ErrInvalidAmount
		}
	case DetailNegative:
		if !amount.IsNegative() {
			return Detail{}, Master{}, ErrInvalidAmount
		}
	default:
		return Detail{}, Master{}, accounting.Invalid("openitems: invalid detail type %q", input.DetailType)
	}
	if input.MasterID == 0 {
		if err := validateKey(input.Key); err != nil {
			return Detail{}, Master{}, err
		}
	}
	var (
		detail Detail
		master Master
	)
	create := func(ctx context.Context, tx TxRepository) error {
		var err error
		if input.MasterID != 0 {
			master, err = tx.GetMasterForUpdate(ctx, input.MasterID)
			if err != nil {
				return err
			}
			if input.Key.CounterpartyID != 0 && input.Key.CounterpartyID != master.CounterpartyID {
				return ErrCounterpartyMismatch
			}
		} else {
			master, err = s.resolveMaster(ctx, tx, input.Key, input.Master)
			if err != nil {
				return err
			}
		}
		now := s.now()
		masterID := master.ID
		d := Detail{
			Number:          strings.TrimSpace(input.Number),
			MasterID:        &masterID,
			Kind:            master.Kind,
			CounterpartyID:  master.CounterpartyID,
			DetailType:      input.DetailType,
			Amount:          amount,
			AllocatedAmount: decimal.Zero,
			Status:          DetailPending,
			BusinessDate:    accounting.DateOnly(input.BusinessDate),
			Origin:          input.Origin,
			Lifecycle:       LifecycleActive,
			Notes:           input.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if input.BusinessDate.IsZero() {
			d.BusinessDate = accounting.DateOnly(now)
		}
		detail, err = tx.InsertDetail(ctx, d)
		if err != nil {
			return err
		}
		if err := s.log(ctx, tx, masterID, EntityDetail, detail.ID, "create", amount, input.ActorID, ChangeState{}, detailState(detail)); err != nil {
			return err
		}
		master, err = s.aggregate(ctx, tx, master, input.ActorID)
		return err
	}
	err := s.withMasterRetry(ctx, create)
	if err != nil {
		return Detail{}, Master{}, err
	}
	return detail, master, nil
}

// Allocate settles amount of a detail in the detail's direction.
func (s *Service) Allocate(ctx context.Context, input AllocateInput) (Detail, Master, error) {
	amount := accounting.Money(input.Amount)
	var (
		detail Detail
		master Master
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		peek, err := tx.GetDetail(ctx, input.DetailID)
		if err != nil {
			return err
		}
		// masters are always locked before their details
		if peek.MasterID != nil {
			if master, err = tx.GetMasterForUpdate(ctx, *peek.MasterID); err != nil {
				return err
			}
		}
		current, err := tx.GetDetailForUpdate(ctx, input.DetailID)
		if err != nil {
			return err
		}
		detail, err = s.allocate(ctx, tx, current, amount, input.ActorID)
		if err != nil {
			return err
		}
		if current.MasterID == nil {
			return nil
		}
		master, err = s.aggregate(ctx, tx, master, input.ActorID)
		return err
	})
	if err != nil {
		return Detail{}, Master{}, err
	}
	return detail, master, nil
}

func (s *Service) allocate(ctx context.Context, tx TxRepository, d Detail, amount decimal.Decimal, actor int64) (Detail, error) {
	if d.Lifecycle == LifecycleArchived {
		return Detail{}, ErrDetailArchived
	}
	available := d.Balance().Abs()
	if !amount.IsPositive() || amount.GreaterThan(available) {
		return Detail{}, &OverAllocationError{Amount: amount, Available: available}
	}
	before := detailState(d)
	signed := amount
	if d.Amount.IsNegative() {
		signed = amount.Neg()
	}
	d.AllocatedAmount = d.AllocatedAmount.Add(signed)
	d.Status = d.deriveStatus()
	d.UpdatedAt = s.now()
	if err := tx.UpdateDetail(ctx, d); err != nil {
		return Detail{}, err
	}
	masterID := int64(0)
	if d.MasterID != nil {
		masterID = *d.MasterID
	}
	if err := s.log(ctx, tx, masterID, EntityDetail, d.ID, "allocate", signed, actor, before, detailState(d)); err != nil {
		return Detail{}, err
	}
	return d, nil
}

// AggregateFromDetails re-derives master totals and status from its active details.
func (s *Service) AggregateFromDetails(ctx context.Context, masterID int64, actor int64) (Master, error) {
	var m Master
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetMasterForUpdate(ctx, masterID)
		if err != nil {
			return err
		}
		m, err = s.aggregate(ctx, tx, current, actor)
		return err
	})
	return m, err
}

// aggregate writes the master only when something changed, so repeated calls
// leave both the master and the change log untouched.
func (s *Service) aggregate(ctx context.Context, tx TxRepository, m Master, actor int64) (Master, error) {
	details, err := tx.ListDetails(ctx, m.ID)
	if err != nil {
		return Master{}, err
	}
	before := m
	t := AggregateDetails(details)
	m.InvoiceAmount, m.PaidAmount, m.Balance = t.InvoiceAmount, t.PaidAmount, t.Balance
	m.Status = m.DeriveStatus(s.now())
	if before.totals().Equal(m.totals()) && before.Status == m.Status {
		return before, nil
	}
	m.UpdatedAt = s.now()
	if err := tx.UpdateMaster(ctx, m); err != nil {
		return Master{}, err
	}
	if err := s.log(ctx, tx, m.ID, EntityMaster, m.ID, "aggregate", m.Balance.Sub(before.Balance), actor, masterState(before), masterState(m)); err != nil {
		return Master{}, err
	}
	return m, nil
}

// RecordDirectPayment settles amount against a master. Masters with details
// receive the payment as allocations, oldest detail first.
func (s *Service) RecordDirectPayment(ctx context.Context, input DirectPaymentInput) (Master, error) {
	amount := accounting.Money(input.Amount)
	reference := strings.TrimSpace(input.Reference)
	var m Master
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetMasterForUpdate(ctx, input.MasterID)
		if err != nil {
			return err
		}
		applied, err := paymentApplied(ctx, tx, current.ID, reference)
		if err != nil {
			return err
		}
		if applied {
			return ErrPaymentApplied
		}
		if !amount.IsPositive() || amount.GreaterThan(current.Balance) {
			return &OverAllocationError{Amount: amount, Available: current.Balance}
		}
		details, err := tx.ListDetails(ctx, current.ID)
		if err != nil {
			return err
		}
		active := activeDetails(details)
		if len(active) == 0 {
			before := current
			current.PaidAmount = current.PaidAmount.Add(amount)
			current.Balance = current.InvoiceAmount.Sub(current.PaidAmount)
			current.Status = current.DeriveStatus(s.now())
			current.UpdatedAt = s.now()
			if err := tx.UpdateMaster(ctx, current); err != nil {
				return err
			}
			m = current
			return s.logChange(ctx, tx, Change{
				MasterID: current.ID, Entity: EntityMaster, EntityID: current.ID, Action: actionDirectPayment,
				Amount: amount, Reference: reference, ActorID: input.ActorID,
				Before: masterState(before), After: masterState(current),
			})
		}
		before := current
		remaining := amount
		for _, d := range active {
			if !remaining.IsPositive() {
				break
			}
			open := d.Balance()
			if !open.IsPositive() {
				continue
			}
			locked, err := tx.GetDetailForUpdate(ctx, d.ID)
			if err != nil {
				return err
			}
			portion := decimal.Min(remaining, locked.Balance())
			if _, err := s.allocate(ctx, tx, locked, portion, input.ActorID); err != nil {
				return err
			}
			remaining = remaining.Sub(portion)
		}
		if remaining.IsPositive() {
			return &OverAllocationError{Amount: amount, Available: amount.Sub(remaining)}
		}
		if m, err = s.aggregate(ctx, tx, current, input.ActorID); err != nil {
			return err
		}
		return s.logChange(ctx, tx, Change{
			MasterID: m.ID, Entity: EntityMaster, EntityID: m.ID, Action: actionDirectPayment,
			Amount: amount, Reference: reference, ActorID: input.ActorID,
			Before: masterState(before), After: masterState(m),
		})
	})
	if err != nil {
		return Master{}, err
	}
	s.logger.Info("direct payment recorded",
		slog.Int64("master_id", m.ID),
		slog.String("amount", accounting.FormatMoney(amount)),
		slog.String("balance", accounting.FormatMoney(m.Balance)))
	return m, nil
}

func activeDetails(details []Detail) []Detail {
	out := make([]Detail, 0, len(details))
	for _, d := range details {
		if d.Lifecycle == LifecycleActive {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].BusinessDate.Equal(out[j].BusinessDate) {
			return out[i].BusinessDate.Before(out[j].BusinessDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ArchiveDetail soft-deletes a detail without allocations and re-aggregates its master.
func (s *Service) ArchiveDetail(ctx context.Context, detailID, actor int64) (Master, error) {
	var m Master
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		peek, err := tx.GetDetail(ctx, detailID)
		if err != nil {
			return err
		}
		if peek.MasterID != nil {
			if m, err = tx.GetMasterForUpdate(ctx, *peek.MasterID); err != nil {
				return err
			}
		}
		d, err := tx.GetDetailForUpdate(ctx, detailID)
		if err != nil {
			return err
		}
		if d.Lifecycle == LifecycleArchived {
			return ErrDetailArchived
		}
		if !d.AllocatedAmount.IsZero() {
			return ErrDetailHasAllocations
		}
		before := detailState(d)
		d.Lifecycle = LifecycleArchived
		d.UpdatedAt = s.now()
		if err := tx.UpdateDetail(ctx, d); err != nil {
			return err
		}
		if d.MasterID == nil {
			return nil
		}
		if err := s.log(ctx, tx, *d.MasterID, EntityDetail, d.ID, "archive", d.Amount, actor, before, detailState(d)); err != nil {
			return err
		}
		m, err = s.aggregate(ctx, tx, m, actor)
		return err
	})
	return m, err
}

// VerifyAggregation compares stored master totals with a re-derivation. It
// never writes; a mismatch is returned as *InconsistentAggregationError.
func (s *Service) VerifyAggregation(ctx context.Context, masterID int64) (AggregationCheck, error) {
	var check AggregationCheck
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMaster(ctx, masterID)
		if err != nil {
			return err
		}
		details, err := tx.ListDetails(ctx, m.ID)
		if err != nil {
			return err
		}
		check = expectedTotals(m, details)
		return nil
	})
	if err != nil {
		return AggregationCheck{}, err
	}
	if !check.Consistent {
		return check, &InconsistentAggregationError{MasterID: masterID, Expected: check.Expected, Actual: check.Actual}
	}
	return check, nil
}

func expectedTotals(m Master, details []Detail) AggregationCheck {
	check := AggregationCheck{MasterID: m.ID, Actual: m.totals()}
	if len(activeDetails(details)) > 0 {
		check.HasDetails = true
		check.Expected = AggregateDetails(details)
	} else {
		check.Expected = Totals{
			InvoiceAmount: m.InvoiceAmount,
			PaidAmount:    m.PaidAmount,
			Balance:       m.InvoiceAmount.Sub(m.PaidAmount),
		}
	}
	check.Consistent = check.Expected.Equal(check.Actual)
	return check
}

// Repair re-derives a master's totals and status. It returns the master as stored afterwards.
func (s *Service) Repair(ctx context.Context, masterID, actor int64) (Master, error) {
	var m Master
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetMasterForUpdate(ctx, masterID)
		if err != nil {
			return err
		}
		details, err := tx.ListDetails(ctx, current.ID)
		if err != nil {
			return err
		}
		check := expectedTotals(current, details)
		if check.HasDetails {
			m, err = s.aggregate(ctx, tx, current, actor)
			return err
		}
		before := current
		current.Balance = check.Expected.Balance
		current.Status = current.DeriveStatus(s.now())
		if before.Balance.Equal(current.Balance) && before.Status == current.Status {
			m = before
			return nil
		}
		current.UpdatedAt = s.now()
		if err := tx.UpdateMaster(ctx, current); err != nil {
			return err
		}
		m = current
		return s.log(ctx, tx, current.ID, EntityMaster, current.ID, "repair", current.Balance.Sub(before.Balance), actor, masterState(before), masterState(current))
	})
	if err != nil {
		return Master{}, err
	}
	s.logger.Info("master repaired", slog.Int64("master_id", m.ID), slog.String("balance", accounting.FormatMoney(m.Balance)))
	return m, nil
}

// RefreshOverdue re-derives the status of every open master as of asOf and
// returns how many changed.
func (s *Service) RefreshOverdue(ctx context.Context, asOf time.Time) (int, error) {
	changed := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		masters, err := tx.ListMasters(ctx, MasterFilter{OpenOnly: true})
		if err != nil {
			return err
		}
		for _, peek := range masters {
			m, err := tx.GetMasterForUpdate(ctx, peek.ID)
			if err != nil {
				return err
			}
			status := m.DeriveStatus(asOf)
			if status == m.Status {
				continue
			}
			before := m
			m.Status = status
			m.UpdatedAt = s.now()
			if err := tx.UpdateMaster(ctx, m); err != nil {
				return err
			}
			if err := s.log(ctx, tx, m.ID, EntityMaster, m.ID, "status_refresh", decimal.Zero, 0, masterState(before), masterState(m)); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

// ListMasters lists masters matching filter.
func (s *Service) ListMasters(ctx context.Context, filter MasterFilter) ([]Master, error) {
	var out []Master
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListMasters(ctx, filter)
		return err
	})
	return out, err
}

// FindMaster returns the master for key without creating it.
func (s *Service) FindMaster(ctx context.Context, key MasterKey) (Master, error) {
	if err := validateKey(key); err != nil {
		return Master{}, err
	}
	var m Master
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, ok, err := tx.FindMaster(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMasterNotFound
		}
		m = found
		return nil
	})
	return m, err
}

// GetMaster loads a master with its details.
func (s *Service) GetMaster(ctx context.Context, id int64) (Master, error) {
	var m Master
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if m, err = tx.GetMaster(ctx, id); err != nil {
			return err
		}
		m.Details, err = tx.ListDetails(ctx, id)
		return err
	})
	return m, err
}

// PaymentApplied reports whether a direct payment with reference was
// already recorded against the master.
func (s *Service) PaymentApplied(ctx context.Context, masterID int64, reference string) (bool, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return false, accounting.Invalid("openitems: payment reference required")
	}
	var applied bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetMaster(ctx, masterID); err != nil {
			return err
		}
		var err error
		applied, err = paymentApplied(ctx, tx, masterID, reference)
		return err
	})
	return applied, err
}

func paymentApplied(ctx context.Context, tx TxRepository, masterID int64, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	changes, err := tx.ListChanges(ctx, masterID)
	if err != nil {
		return false, err
	}
	for _, c := range changes {
		if c.Action == actionDirectPayment && c.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

// ListChanges returns the change log of a master and its details in order.
func (s *Service) ListChanges(ctx context.Context, masterID int64) ([]Change, error) {
	var out []Change
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListChanges(ctx, masterID)
		return err
	})
	return out, err
}

func (s *Service) log(ctx context.Context, tx TxRepository, masterID int64, entity ChangeEntity, entityID int64, action string, amount decimal.Decimal, actor int64, before, after ChangeState) error {
	return s.logChange(ctx, tx, Change{
		MasterID: masterID,
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Amount:   amount,
		ActorID:  actor,
		Before:   before,
		After:    after,
	})
}

func (s *Service) logChange(ctx context.Context, tx TxRepository, c Change) error {
	c.At = s.now()
	return tx.InsertChange(ctx, c)
}
