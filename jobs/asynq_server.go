package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, fmt.Errorf("jobs: register %s %q: %w", entry.Task.Type(), entry.Spec, err)
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// LedgerJobs bundles the ledger maintenance handlers.
type LedgerJobs struct {
	Reconcile   *ReconcileJob
	Overdue     *OverdueRefreshJob
	Integrity   *GLIntegrityJob
	Integration *IntegrationJob
	// Purge is optional; see WithIdempotencyPurge.
	Purge *IdempotencyPurgeJob
}

// NewLedgerJobs builds every ledger job over one core.
func NewLedgerJobs(core *ledger.Core, logger *slog.Logger, metrics *jobmetrics.Metrics, autoFix bool) LedgerJobs {
	return LedgerJobs{
		Reconcile:   NewReconcileJob(core, logger, metrics, autoFix),
		Overdue:     NewOverdueRefreshJob(core, logger, metrics),
		Integrity:   NewGLIntegrityJob(core, logger, metrics),
		Integration: NewIntegrationJob(integration.NewHooks(core, integration.AccountMapping{}, logger), logger, metrics),
	}
}

// WithIdempotencyPurge adds the idempotency key purge to the bundle.
func (l LedgerJobs) WithIdempotencyPurge(store KeyPurger, retention time.Duration) LedgerJobs {
	var (
		logger  *slog.Logger
		metrics *jobmetrics.Metrics
	)
	if l.Reconcile != nil {
		logger, metrics = l.Reconcile.Logger, l.Reconcile.Metrics
	}
	l.Purge = &IdempotencyPurgeJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
	return l
}

// Handlers maps each task type to its job.
func (l LedgerJobs) Handlers() []TaskHandler {
	handlers := []TaskHandler{
		{Type: TaskReconcileMasters, Handler: l.Reconcile.Handle},
		{Type: TaskRefreshOverdue, Handler: l.Overdue.Handle},
		{Type: TaskVerifyBalances, Handler: l.Integrity.Handle},
		{Type: TaskInvoicePosted, Handler: l.Integration.HandleInvoice},
		{Type: TaskPaymentPosted, Handler: l.Integration.HandlePayment},
	}
	if l.Purge != nil {
		handlers = append(handlers, TaskHandler{Type: TaskPurgeIdempotency, Handler: l.Purge.Handle})
	}
	return handlers
}

// Schedule holds the cron expressions of the periodic ledger jobs. An empty
// expression disables that job's schedule.
type Schedule struct {
	Reconcile     string
	Overdue       string
	BalanceVerify string
	// IdempotencyPurge only takes effect when the worker runs the purge job.
	IdempotencyPurge string
}

// Registrations builds the cron entries for s.
func (s Schedule) Registrations() ([]CronRegistration, error) {
	reconcile, err := NewReconcileTask(ReconcilePayload{})
	if err != nil {
		return nil, err
	}
	overdue, err := NewOverdueRefreshTask(time.Time{})
	if err != nil {
		return nil, err
	}
	verify, err := NewBalanceVerifyTask()
	if err != nil {
		return nil, err
	}
	purge, err := NewTask(TaskPurgeIdempotency, false)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.MaxRetry(3), asynq.Queue(QueueDefault)}
	var out []CronRegistration
	for _, r := range []CronRegistration{
		{Spec: s.Reconcile, Task: reconcile, Options: opts},
		{Spec: s.Overdue, Task: overdue, Options: opts},
		{Spec: s.BalanceVerify, Task: verify, Options: opts},
		{Spec: s.IdempotencyPurge, Task: purge, Options: opts},
	} {
		if r.Spec != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// Enqueue submits task on the default queue.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// QueueInspector reports queue depth.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	out := queueHealth{Queue: QueueDefault}
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, out)
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue unavailable", "")
		return
	}
	if info != nil {
		out.Queue = info.Queue
		out.Pending = info.Pending
		out.Active = info.Active
		out.Scheduled = info.Scheduled
		out.Retry = info.Retry
		out.Failed = info.Failed
	}
	httpx.JSON(w, http.StatusOK, out)
}
