package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskReconcileMasters verifies open item masters against their details.
	TaskReconcileMasters = "ledger:reconcile_masters"
	// TaskRefreshOverdue moves masters past their due date to overdue.
	TaskRefreshOverdue = "ledger:refresh_overdue"
	// TaskVerifyBalances compares cached account balances with posted entries.
	TaskVerifyBalances = "ledger:verify_balances"
	// TaskInvoicePosted books an invoice emitted by sales or purchasing.
	TaskInvoicePosted = "ledger:invoice_posted"
	// TaskPaymentPosted books a payment against a booked invoice.
	TaskPaymentPosted = "ledger:payment_posted"
	// TaskPurgeIdempotency drops expired idempotency keys.
	TaskPurgeIdempotency = "ledger:purge_idempotency"
)

// TaskNames lists the maintenance task types that can be triggered by name.
var TaskNames = []string{TaskReconcileMasters, TaskRefreshOverdue, TaskVerifyBalances, TaskPurgeIdempotency}

// ReconcilePayload configures a reconciliation run.
type ReconcilePayload struct {
	Fix     bool  `json:"fix"`
	ActorID int64 `json:"actor_id,omitempty"`
}

// OverduePayload pins the refresh date. An empty AsOf means the run date.
type OverduePayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewReconcileTask constructs a reconciliation task.
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	return newTask(TaskReconcileMasters, payload)
}

// NewOverdueRefreshTask constructs an overdue refresh task. A zero asOf
// leaves the date to the worker clock.
func NewOverdueRefreshTask(asOf time.Time) (*asynq.Task, error) {
	payload := OverduePayload{}
	if !asOf.IsZero() {
		payload.AsOf = asOf.Format(time.DateOnly)
	}
	return newTask(TaskRefreshOverdue, payload)
}

// NewBalanceVerifyTask constructs a balance verification task.
func NewBalanceVerifyTask() (*asynq.Task, error) {
	return newTask(TaskVerifyBalances, struct{}{})
}

// NewInvoicePostedTask wraps an invoice event for the worker.
func NewInvoicePostedTask(evt integration.InvoicePosted) (*asynq.Task, error) {
	return newTask(TaskInvoicePosted, evt)
}

// NewPaymentPostedTask wraps a payment event for the worker.
func NewPaymentPostedTask(evt integration.PaymentPosted) (*asynq.Task, error) {
	return newTask(TaskPaymentPosted, evt)
}

// NewTask builds a task with its default payload from a task type name.
func NewTask(name string, fix bool) (*asynq.Task, error) {
	switch name {
	case TaskReconcileMasters:
		return NewReconcileTask(ReconcilePayload{Fix: fix})
	case TaskRefreshOverdue:
		return NewOverdueRefreshTask(time.Time{})
	case TaskVerifyBalances:
		return NewBalanceVerifyTask()
	case TaskPurgeIdempotency:
		return newTask(TaskPurgeIdempotency, struct{}{})
	default:
		return nil, fmt.Errorf("jobs: unsupported task %s", name)
	}
}

func newTask(name string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(name, data), nil
}
