// Package integration turns invoice and payment events from operational
// modules into journals and open items.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
)

// Ledger exposes the posting operations required by integrations.
type Ledger interface {
	PostJournal(ctx context.Context, input journals.CreateInput) (accounting.Journal, error)
	CreateDetail(ctx context.Context, input openitems.CreateDetailInput) (openitems.Detail, openitems.Master, error)
	RecordDirectPayment(ctx context.Context, input openitems.DirectPaymentInput) (openitems.Master, error)
	FindMaster(ctx context.Context, key openitems.MasterKey) (openitems.Master, error)
	PaymentApplied(ctx context.Context, masterID int64, reference string) (bool, error)
}

// AccountMapping names the accounts each event posts to.
type AccountMapping struct {
	Receivable string
	Revenue    string
	Payable    string
	Expense    string
	Cash       string
}

// DefaultMapping matches the seeded chart of accounts.
var DefaultMapping = AccountMapping{
	Receivable: "1100",
	Revenue:    "4100",
	Payable:    "2100",
	Expense:    "6100",
	Cash:       "1002",
}

// Hooks wires domain events from operational modules into the general ledger.
type Hooks struct {
	ledger  Ledger
	mapping AccountMapping
	logger  *slog.Logger
}

// NewHooks constructs integration hooks. A zero mapping uses DefaultMapping.
func NewHooks(ledger Ledger, mapping AccountMapping, logger *slog.Logger) *Hooks {
	if mapping == (AccountMapping{}) {
		mapping = DefaultMapping
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, mapping: mapping, logger: logger}
}

// HandleInvoicePosted posts the invoice journal and opens its detail. A
// replayed event whose journal and master already exist is a no-op.
func (h *Hooks) HandleInvoicePosted(ctx context.Context, evt InvoicePosted) error {
	if err := evt.validate(); err != nil {
		return err
	}
	doc := invoiceDoc(evt.Kind, evt.ID, evt.Number)
	key := openitems.MasterKey{Kind: evt.Kind, CounterpartyID: evt.CounterpartyID, SourceDoc: doc}

	input := journals.CreateInput{
		Number:      invoiceJournalNumber(evt.Kind, evt.ID),
		Type:        accounting.JournalTypeGeneral,
		Date:        evt.Date,
		Reference:   doc,
		Description: fmt.Sprintf("Invoice %s", evt.Number),
		PreparedBy:  evt.ActorID,
	}
	counterparty := evt.CounterpartyID
	if evt.Kind == openitems.KindReceivable {
		input.Entries = []journals.EntryInput{
			{AccountCode: h.mapping.Receivable, Debit: evt.Amount, CustomerID: &counterparty},
			{AccountCode: h.mapping.Revenue, Credit: evt.Amount},
		}
	} else {
		input.Entries = []journals.EntryInput{
			{AccountCode: h.mapping.Expense, Debit: evt.Amount},
			{AccountCode: h.mapping.Payable, Credit: evt.Amount, SupplierID: &counterparty},
		}
	}

	j, err := h.ledger.PostJournal(ctx, input)
	switch {
	case errors.Is(err, accounting.ErrDuplicateJournalNumber):
		_, findErr := h.ledger.FindMaster(ctx, key)
		if findErr == nil {
			h.logger.Info("invoice already linked", slog.String("journal", input.Number))
			return nil
		}
		if !errors.Is(findErr, openitems.ErrMasterNotFound) {
			return findErr
		}
		// The journal landed but the detail did not; finish the link.
		j = accounting.Journal{Number: input.Number}
	case err != nil:
		return err
	}

	origin := accounting.DocumentRef{Type: "journal", Number: j.Number}
	if j.ID != 0 {
		origin.ID = strconv.FormatInt(j.ID, 10)
	}
	_, _, err = h.ledger.CreateDetail(ctx, openitems.CreateDetailInput{
		Number:       evt.Number,
		Key:          key,
		Master:       openitems.MasterOptions{Number: evt.Number, DueDate: evt.DueDate, Currency: evt.Currency, ActorID: evt.ActorID},
		DetailType:   openitems.DetailPositive,
		Amount:       evt.Amount,
		BusinessDate: evt.Date,
		Origin:       origin,
		ActorID:      evt.ActorID,
	})
	return err
}

// HandlePaymentPosted posts the settlement journal and pays down the
// invoice's master. The payment must fit the open balance. The journal
// number doubles as the payment reference on the master, so a replay
// finishes a half-applied payment and ignores a fully applied one.
func (h *Hooks) HandlePaymentPosted(ctx context.Context, evt PaymentPosted) error {
	if err := evt.validate(); err != nil {
		return err
	}
	master, err := h.ledger.FindMaster(ctx, openitems.MasterKey{
		Kind:           evt.Kind,
		CounterpartyID: evt.CounterpartyID,
		SourceDoc:      invoiceDoc(evt.Kind, evt.InvoiceID, ""),
	})
	if err != nil {
		return err
	}

	number := paymentJournalNumber(evt.Kind, evt.ID)
	applied, err := h.ledger.PaymentApplied(ctx, master.ID, number)
	if err != nil {
		return err
	}
	if applied {
		h.logger.Info("payment already applied", slog.String("journal", number))
		return nil
	}
	if evt.Amount.GreaterThan(master.Balance) {
		return fmt.Errorf("integration: payment %s of %s: %w", number, accounting.FormatMoney(evt.Amount), openitems.ErrOverAllocation)
	}
	input := journals.CreateInput{
		Number:      number,
		Type:        accounting.JournalTypeCash,
		Date:        evt.Date,
		Reference:   accounting.DocumentRef{Type: "payment", ID: strconv.FormatInt(evt.ID, 10), Number: evt.Number},
		Description: fmt.Sprintf("Payment %s", evt.Number),
		PreparedBy:  evt.ActorID,
	}
	counterparty := evt.CounterpartyID
	if evt.Kind == openitems.KindReceivable {
		input.Entries = []journals.EntryInput{
			{AccountCode: h.mapping.Cash, Debit: evt.Amount},
			{AccountCode: h.mapping.Receivable, Credit: evt.Amount, CustomerID: &counterparty},
		}
	} else {
		input.Entries = []journals.EntryInput{
			{AccountCode: h.mapping.Payable, Debit: evt.Amount, SupplierID: &counterparty},
			{AccountCode: h.mapping.Cash, Credit: evt.Amount},
		}
	}
	if _, err := h.ledger.PostJournal(ctx, input); err != nil {
		if !errors.Is(err, accounting.ErrDuplicateJournalNumber) {
			return err
		}
		// The journal landed but the settlement did not; finish it.
		h.logger.Info("payment journal already posted, settling master", slog.String("journal", number))
	}
	_, err = h.ledger.RecordDirectPayment(ctx, openitems.DirectPaymentInput{
		MasterID:  master.ID,
		Amount:    evt.Amount,
		Reference: number,
		ActorID:   evt.ActorID,
	})
	if errors.Is(err, openitems.ErrPaymentApplied) {
		return nil
	}
	return err
}

func invoiceJournalNumber(kind openitems.Kind, id int64) string {
	if kind == openitems.KindPayable {
		return "PINV-" + strconv.FormatInt(id, 10)
	}
	return "SINV-" + strconv.FormatInt(id, 10)
}

func paymentJournalNumber(kind openitems.Kind, id int64) string {
	if kind == openitems.KindPayable {
		return "PAY-" + strconv.FormatInt(id, 10)
	}
	return "RCPT-" + strconv.FormatInt(id, 10)
}
