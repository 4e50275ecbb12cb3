package perf

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func TestLedgerJobsThroughputAndDuration(t *testing.T) {
	core := newCore(t)
	preload(t, core, 50)
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	ledgerJobs := jobs.NewLedgerJobs(core, nil, metrics, false)

	reconcile, err := jobs.NewReconcileTask(jobs.ReconcilePayload{})
	if err != nil {
		t.Fatalf("reconcile task: %v", err)
	}
	verify, err := jobs.NewBalanceVerifyTask()
	if err != nil {
		t.Fatalf("verify task: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if err := ledgerJobs.Reconcile.Handle(ctx, reconcile); err != nil {
			t.Fatalf("reconcile run %d: %v", i, err)
		}
		if err := ledgerJobs.Integrity.Handle(ctx, verify); err != nil {
			t.Fatalf("verify run %d: %v", i, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, job := range []string{jobs.TaskReconcileMasters, jobs.TaskVerifyBalances} {
		if got := metricValue(t, families, "odyssey_ledger_jobs_total", map[string]string{"job": job, "status": "success"}); got != 25 {
			t.Fatalf("%s successes = %v, want 25", job, got)
		}
		if mean := histogramMean(t, families, "odyssey_ledger_job_duration_seconds", map[string]string{"job": job}); mean > 0.5 {
			t.Fatalf("%s mean duration above budget: %f", job, mean)
		}
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) && fam.GetType() == dto.MetricType_COUNTER {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	seen := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		seen[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got, ok := seen[k]; !ok || got != v {
			return false
		}
	}
	return true
}
