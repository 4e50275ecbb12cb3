package http

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsMu          sync.Mutex
	metricsInitialized bool
	metricsError       error

	reportCounter   *prometheus.CounterVec
	reportHistogram *prometheus.HistogramVec
)

// SetupMetrics registers the report generation collectors. Registration
// happens once; later calls return the first outcome.
func SetupMetrics(reg prometheus.Registerer) error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metricsInitialized {
		return metricsError
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reportCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_reports_total",
		Help: "Reports generated through the ledger API partitioned by type and status.",
	}, []string{"type", "status"})
	reportHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_ledger_report_duration_seconds",
		Help:    "Duration required to generate and store a report.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	for _, collector := range []prometheus.Collector{reportCounter, reportHistogram} {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				switch c := already.ExistingCollector.(type) {
				case *prometheus.CounterVec:
					reportCounter = c
				case *prometheus.HistogramVec:
					reportHistogram = c
				default:
					metricsError = fmt.Errorf("ledger metrics: unexpected collector type %T", c)
				}
				continue
			}
			metricsError = err
			reportCounter = nil
			reportHistogram = nil
			break
		}
	}
	metricsInitialized = true
	return metricsError
}

func observeReport(reportType string, start time.Time, err error) {
	if reportCounter == nil || reportHistogram == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	reportCounter.WithLabelValues(reportType, status).Inc()
	reportHistogram.WithLabelValues(reportType).Observe(time.Since(start).Seconds())
}
