package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Reconciler checks open item masters against their details.
type Reconciler interface {
	ReconcileMasters(ctx context.Context, fix bool, actor int64) ([]ledger.MasterReconciliation, error)
}

// ReconcileJob runs the open item aggregation check.
type ReconcileJob struct {
	Ledger  Reconciler
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	// AutoFix repairs inconsistent masters even when the payload does not ask for it.
	AutoFix bool
}

// NewReconcileJob initialises the reconciliation handler.
func NewReconcileJob(l Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics, autoFix bool) *ReconcileJob {
	return &ReconcileJob{Ledger: l, Logger: logger, Metrics: metrics, AutoFix: autoFix}
}

// Handle executes a reconciliation run.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Ledger == nil {
		return errors.New("reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	fix := payload.Fix || j.AutoFix
	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskReconcileMasters)
	defer func() { err = tracker.End(err) }()

	start := time.Now()
	logger := jobLogger(j.Logger, TaskReconcileMasters).With(slog.Bool("fix", fix))
	logger.Info("starting open item reconciliation")

	results, err := j.Ledger.ReconcileMasters(ctx, fix, payload.ActorID)
	if err != nil {
		logger.Error("reconciliation failed", slog.Any("error", err))
		return err
	}
	repaired := 0
	for _, r := range results {
		if r.Repaired {
			repaired++
		}
	}
	metrics.AddFindings(jobmetrics.FindingInconsistentMaster, len(results))
	metrics.AddRepairs(repaired)
	logger.Info("completed open item reconciliation",
		slog.Int("inconsistent", len(results)),
		slog.Int("repaired", repaired),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
