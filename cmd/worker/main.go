package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	core := ledger.NewPostgres(pool, redisClient, ledger.Options{
		CashPrefixes: cfg.CashAccountPrefixes,
		CacheTTL:     cfg.AccountCacheTTL,
		Logger:       logger,
	})
	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	ledgerJobs := jobs.NewLedgerJobs(core, logger, metrics, cfg.ReconcileAutoFix).
		WithIdempotencyPurge(shared.NewIdempotencyStore(pool), cfg.IdempotencyRetention)

	cron, err := jobs.Schedule{
		Reconcile:        cfg.ReconcileCron,
		Overdue:          cfg.OverdueCron,
		BalanceVerify:    cfg.BalanceVerifyCron,
		IdempotencyPurge: cfg.IdempotencyCron,
	}.Registrations()
	if err != nil {
		logger.Error("build schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  ledgerJobs.Handlers(),
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker",
		slog.String("reconcile_cron", cfg.ReconcileCron),
		slog.String("overdue_cron", cfg.OverdueCron),
		slog.String("balance_verify_cron", cfg.BalanceVerifyCron),
		slog.String("idempotency_purge_cron", cfg.IdempotencyCron),
	)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
