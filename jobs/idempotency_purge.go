package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// DefaultIdempotencyRetention keeps keys long enough to cover client retries.
const DefaultIdempotencyRetention = 72 * time.Hour

// KeyPurger drops idempotency keys older than a retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyPurgeJob trims the idempotency key table.
type IdempotencyPurgeJob struct {
	Store     KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle removes expired keys.
func (j *IdempotencyPurgeJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency purge: handler not configured")
	}
	retention := j.Retention
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskPurgeIdempotency)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskPurgeIdempotency)
	if err := j.Store.Cleanup(ctx, retention); err != nil {
		logger.Error("purge idempotency keys", slog.Any("error", err))
		return err
	}
	logger.Info("purged idempotency keys", slog.Duration("retention", retention))
	return nil
}
