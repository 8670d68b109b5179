// Package telemetry exposes Prometheus metrics for the sync engine.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peteski22/donorpulse/internal/domain"
)

const namespace = "donorpulse"

// Metrics records run and snapshot observations on its own registry, keeping
// the default registerer clean. It satisfies the orchestrator's
// Instrumentation interface.
type Metrics struct {
	registry *prometheus.Registry

	runDuration     prometheus.Histogram
	runsTotal       *prometheus.CounterVec
	snapshotCents   prometheus.Gauge
	snapshotDonors  prometheus.Gauge
	snapshotVersion prometheus.Gauge
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of completed sync runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Completed sync runs by outcome and trigger.",
		}, []string{"outcome", "trigger"}),
		snapshotCents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_total_amount_cents",
			Help:      "Total donated amount in the latest snapshot.",
		}),
		snapshotDonors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_donors",
			Help:      "Donor count in the latest snapshot.",
		}),
		snapshotVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_version",
			Help:      "Version of the latest published snapshot.",
		}),
	}

	m.registry.MustRegister(
		m.runDuration,
		m.runsTotal,
		m.snapshotCents,
		m.snapshotDonors,
		m.snapshotVersion,
	)

	return m
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(run domain.SyncRun) {
	m.runsTotal.WithLabelValues(string(run.Outcome), string(run.Trigger)).Inc()
	m.runDuration.Observe(run.Duration().Seconds())
}

// ObserveSnapshot records a freshly published snapshot.
func (m *Metrics) ObserveSnapshot(snapshot domain.SyncSnapshot) {
	m.snapshotCents.Set(float64(snapshot.Summary.TotalAmountCents))
	m.snapshotDonors.Set(float64(snapshot.Summary.TotalDonors))
	m.snapshotVersion.Set(float64(snapshot.Version))
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
