package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/memstore"
)

var runDate = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLedger(t *testing.T) (*ledger.Core, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	require.NoError(t, store.Seed(context.Background(), memstore.DefaultChart))
	core := ledger.NewInMemory(store, ledger.Options{
		Logger: quietLogger(),
		Now:    func() time.Time { return runDate },
	})
	return core, store
}

func newReceivable(t *testing.T, core *ledger.Core, due *time.Time) openitems.Master {
	t.Helper()
	_, master, err := core.CreateDetail(context.Background(), openitems.CreateDetailInput{
		Key: openitems.MasterKey{
			Kind:           openitems.KindReceivable,
			CounterpartyID: 4,
			SourceDoc:      accounting.DocumentRef{Type: "sales_invoice", ID: "SI-40"},
		},
		Master:       openitems.MasterOptions{DueDate: due},
		DetailType:   openitems.DetailPositive,
		Amount:       accounting.MustMoney("320.00"),
		BusinessDate: runDate,
	})
	require.NoError(t, err)
	return master
}

func TestReconcileJobRepairsWithAutoFix(t *testing.T) {
	core, store := newLedger(t)
	ctx := context.Background()
	master := newReceivable(t, core, nil)
	require.NoError(t, store.OpenItems().WithTx(ctx, func(ctx context.Context, tx openitems.TxRepository) error {
		m, err := tx.GetMaster(ctx, master.ID)
		if err != nil {
			return err
		}
		m.PaidAmount = accounting.MustMoney("20.00")
		return tx.UpdateMaster(ctx, m)
	}))

	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewReconcileJob(core, quietLogger(), metrics, true)
	task, err := NewReconcileTask(ReconcilePayload{ActorID: 9})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	check, err := core.VerifyAggregation(ctx, master.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent)
}

func TestReconcileJobRejectsBadPayload(t *testing.T) {
	core, _ := newLedger(t)
	job := NewReconcileJob(core, quietLogger(), nil, false)
	err := job.Handle(context.Background(), asynq.NewTask(TaskReconcileMasters, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	var empty *ReconcileJob
	assert.Error(t, empty.Handle(context.Background(), asynq.NewTask(TaskReconcileMasters, nil)))
}

type failingReconciler struct{}

func (failingReconciler) ReconcileMasters(context.Context, bool, int64) ([]ledger.MasterReconciliation, error) {
	return nil, errors.New("db down")
}

func TestReconcileJobPropagatesFailure(t *testing.T) {
	job := NewReconcileJob(failingReconciler{}, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()), false)
	err := job.Handle(context.Background(), asynq.NewTask(TaskReconcileMasters, nil))
	assert.EqualError(t, err, "db down")
}

func TestOverdueRefreshJobUsesPayloadDate(t *testing.T) {
	core, _ := newLedger(t)
	ctx := context.Background()
	due := runDate.AddDate(0, 0, 3)
	master := newReceivable(t, core, &due)

	job := NewOverdueRefreshJob(core, quietLogger(), nil)
	job.clock = func() time.Time { return runDate }

	require.NoError(t, job.Handle(ctx, asynq.NewTask(TaskRefreshOverdue, nil)))
	got, err := core.OpenItems.GetMaster(ctx, master.ID)
	require.NoError(t, err)
	assert.NotEqual(t, openitems.MasterOverdue, got.Status)

	task, err := NewOverdueRefreshTask(runDate.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))
	got, err = core.OpenItems.GetMaster(ctx, master.ID)
	require.NoError(t, err)
	assert.Equal(t, openitems.MasterOverdue, got.Status)

	err = job.Handle(ctx, asynq.NewTask(TaskRefreshOverdue, []byte(`{"as_of":"10/05/2026"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestGLIntegrityJobFindsDrift(t *testing.T) {
	core, store := newLedger(t)
	ctx := context.Background()
	_, err := core.PostJournal(ctx, journals.CreateInput{
		Number: "JV-50",
		Date:   runDate,
		Entries: []journals.EntryInput{
			{AccountCode: "1001", Debit: accounting.MustMoney("80.00")},
			{AccountCode: "4100", Credit: accounting.MustMoney("80.00")},
		},
	})
	require.NoError(t, err)

	job := NewGLIntegrityJob(core, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	drifts, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	require.NoError(t, store.Accounts().WithTx(ctx, func(ctx context.Context, tx accounts.TxRepository) error {
		acc, err := tx.GetAccountByCode(ctx, "1001")
		if err != nil {
			return err
		}
		return tx.AdjustCurrentBalance(ctx, acc.ID, accounting.MustMoney("5.00"))
	}))
	drifts, err = job.Run(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "1001", drifts[0].AccountCode)
	assert.NoError(t, job.Handle(ctx, asynq.NewTask(TaskVerifyBalances, nil)))
}

func TestScheduleSkipsEmptySpecs(t *testing.T) {
	regs, err := Schedule{Reconcile: "0 2 * * *", BalanceVerify: "0 3 * * 0"}.Registrations()
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, TaskReconcileMasters, regs[0].Task.Type())
	assert.Equal(t, TaskVerifyBalances, regs[1].Task.Type())
}

func TestNewTaskByName(t *testing.T) {
	task, err := NewTask(TaskReconcileMasters, true)
	require.NoError(t, err)
	var payload ReconcilePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.True(t, payload.Fix)

	_, err = NewTask("mail:send", false)
	assert.Error(t, err)
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	redis := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: redis.Addr()}
	core, _ := newLedger(t)
	handlers := NewLedgerJobs(core, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()), false).Handlers()

	regs, err := Schedule{Overdue: "30 0 * * *"}.Registrations()
	require.NoError(t, err)
	w, err := NewWorker(WorkerConfig{RedisOpts: opts, Logger: quietLogger(), Handlers: handlers, Cron: regs})
	require.NoError(t, err)
	assert.NotNil(t, w.scheduler)

	regs[0].Spec = "every tuesday"
	_, err = NewWorker(WorkerConfig{RedisOpts: opts, Handlers: handlers, Cron: regs})
	assert.Error(t, err)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthEndpoint(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rec
	}

	rec := serve(NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Retry: 1}}, quietLogger()))
	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Pending)
	assert.Equal(t, 1, body.Retry)

	rec = serve(NewHandler(stubInspector{err: errors.New("no redis")}, quietLogger()))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubPurger struct {
	olderThan time.Duration
	err       error
}

func (s *stubPurger) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.olderThan = olderThan
	return s.err
}

func TestIdempotencyPurge(t *testing.T) {
	core, _ := newLedger(t)
	base := NewLedgerJobs(core, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()), false)
	assert.Len(t, base.Handlers(), 5)

	purger := &stubPurger{}
	withPurge := base.WithIdempotencyPurge(purger, 0)
	handlers := withPurge.Handlers()
	require.Len(t, handlers, 6)
	assert.Equal(t, TaskPurgeIdempotency, handlers[5].Type)

	task, err := NewTask(TaskPurgeIdempotency, false)
	require.NoError(t, err)
	require.NoError(t, handlers[5].Handler(context.Background(), task))
	assert.Equal(t, DefaultIdempotencyRetention, purger.olderThan)

	purger.err = errors.New("table locked")
	assert.Error(t, withPurge.Purge.Handle(context.Background(), task))
}
