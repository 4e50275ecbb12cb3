package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// BalanceVerifier recomputes cached account balances from posted entries.
type BalanceVerifier interface {
	VerifyBalances(ctx context.Context) ([]balances.Drift, error)
}

// GLIntegrityJob reports leaf accounts whose cached balance drifted from
// the journal entries. Drift is reported, never corrected here.
type GLIntegrityJob struct {
	Ledger  BalanceVerifier
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGLIntegrityJob initialises the balance verification handler.
func NewGLIntegrityJob(l BalanceVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{Ledger: l, Logger: logger, Metrics: metrics}
}

// Handle executes the verification.
func (j *GLIntegrityJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("gl integrity: handler not configured")
	}
	_, err := j.Run(ctx)
	return err
}

// Run verifies every leaf account and returns the drifted ones.
func (j *GLIntegrityJob) Run(ctx context.Context) (drifts []balances.Drift, err error) {
	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskVerifyBalances)
	defer func() { err = tracker.End(err) }()

	start := time.Now()
	logger := jobLogger(j.Logger, TaskVerifyBalances)
	drifts, err = j.Ledger.VerifyBalances(ctx)
	if err != nil {
		logger.Error("balance verification failed", slog.Any("error", err))
		return nil, err
	}
	for _, d := range drifts {
		logger.Warn("cached balance drift",
			slog.String("account", d.AccountCode),
			slog.String("difference", accounting.FormatMoney(d.Difference())),
		)
	}
	metrics.AddFindings(jobmetrics.FindingBalanceDrift, len(drifts))
	logger.Info("completed balance verification",
		slog.Int("drifted", len(drifts)),
		slog.Duration("duration", time.Since(start)),
	)
	return drifts, nil
}
