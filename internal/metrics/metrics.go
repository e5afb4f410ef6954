// Package metrics exposes Prometheus instrumentation for the sync service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oakmere/regsync/internal/domain/entity"
)

type Metrics struct {
	runsTotal       *prometheus.CounterVec
	operationsTotal *prometheus.CounterVec
	runDuration     prometheus.Histogram
	lastRunUnix     prometheus.Gauge
	lastRunFailed   prometheus.Gauge
}

// New registers the sync collectors on reg and returns the recorder the
// reconcile engine reports into.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regsync",
			Name:      "runs_total",
			Help:      "Completed reconciliation runs by outcome.",
		}, []string{"outcome"}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regsync",
			Name:      "operations_total",
			Help:      "Registry operations by type and result.",
		}, []string{"operation", "result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "regsync",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of reconciliation runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		lastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "regsync",
			Name:      "last_run_timestamp_seconds",
			Help:      "Completion time of the most recent run.",
		}),
		lastRunFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "regsync",
			Name:      "last_run_failed_operations",
			Help:      "Failed operations in the most recent run.",
		}),
	}
	reg.MustRegister(m.runsTotal, m.operationsTotal, m.runDuration, m.lastRunUnix, m.lastRunFailed)
	return m
}

func (m *Metrics) RecordOperation(op entity.Operation, result entity.Result) {
	m.operationsTotal.WithLabelValues(string(op), string(result)).Inc()
}

func (m *Metrics) RecordRun(summary *entity.RunSummary, duration time.Duration) {
	outcome := "clean"
	if summary.Failed > 0 {
		outcome = "degraded"
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRunUnix.Set(float64(summary.CompletedAt.Unix()))
	m.lastRunFailed.Set(float64(summary.Failed))
}
