package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// OverdueRefresher flips masters past their due date to overdue.
type OverdueRefresher interface {
	RefreshOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// OverdueRefreshJob keeps master statuses current as due dates pass.
type OverdueRefreshJob struct {
	Ledger  OverdueRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueRefreshJob initialises the overdue refresh handler.
func NewOverdueRefreshJob(l OverdueRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueRefreshJob {
	return &OverdueRefreshJob{
		Ledger:  l,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the refresh.
func (j *OverdueRefreshJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Ledger == nil {
		return errors.New("overdue refresh: handler not configured")
	}
	var payload OverduePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	asOf := j.now()
	if payload.AsOf != "" {
		parsed, err := time.Parse(time.DateOnly, payload.AsOf)
		if err != nil {
			return asynq.SkipRetry
		}
		asOf = parsed
	}

	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskRefreshOverdue)
	defer func() { err = tracker.End(err) }()

	logger := jobLogger(j.Logger, TaskRefreshOverdue).With(slog.String("as_of", asOf.Format(time.DateOnly)))
	n, err := j.Ledger.RefreshOverdue(ctx, asOf)
	if err != nil {
		logger.Error("overdue refresh failed", slog.Any("error", err))
		return err
	}
	metrics.AddFindings(jobmetrics.FindingOverdueMaster, n)
	logger.Info("completed overdue refresh", slog.Int("updated", n))
	return nil
}

func (j *OverdueRefreshJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
