package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
)

// EventHooks books operational events into the ledger.
type EventHooks interface {
	HandleInvoicePosted(ctx context.Context, evt integration.InvoicePosted) error
	HandlePaymentPosted(ctx context.Context, evt integration.PaymentPosted) error
}

// IntegrationJob consumes invoice and payment events.
type IntegrationJob struct {
	Hooks   EventHooks
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIntegrationJob initialises the event consumer.
func NewIntegrationJob(hooks EventHooks, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrationJob {
	return &IntegrationJob{Hooks: hooks, Logger: logger, Metrics: metrics}
}

// HandleInvoice books one InvoicePosted event.
func (j *IntegrationJob) HandleInvoice(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Hooks == nil {
		return errors.New("integration: handler not configured")
	}
	var evt integration.InvoicePosted
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return fmt.Errorf("decode invoice event: %v: %w", err, asynq.SkipRetry)
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskInvoicePosted)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskInvoicePosted).With(slog.String("invoice", evt.Number), slog.String("kind", string(evt.Kind)))
	if err := j.Hooks.HandleInvoicePosted(ctx, evt); err != nil {
		logger.Error("book invoice", slog.Any("error", err))
		return permanent(err)
	}
	logger.Info("invoice booked")
	return nil
}

// HandlePayment books one PaymentPosted event.
func (j *IntegrationJob) HandlePayment(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Hooks == nil {
		return errors.New("integration: handler not configured")
	}
	var evt integration.PaymentPosted
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		return fmt.Errorf("decode payment event: %v: %w", err, asynq.SkipRetry)
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskPaymentPosted)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskPaymentPosted).With(slog.String("payment", evt.Number), slog.Int64("invoice_id", evt.InvoiceID))
	if err := j.Hooks.HandlePaymentPosted(ctx, evt); err != nil {
		logger.Error("book payment", slog.Any("error", err))
		return permanent(err)
	}
	logger.Info("payment booked")
	return nil
}

// permanent stops retries for errors a replay cannot fix. A missing master
// stays retryable since the invoice event may still be in flight.
func permanent(err error) error {
	switch {
	case errors.Is(err, accounting.ErrInvalidInput),
		errors.Is(err, accounting.ErrUnbalanced),
		errors.Is(err, openitems.ErrOverAllocation):
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
