package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/peteski22/donorpulse/internal/domain"
)

func TestMetrics_ObserveRun(t *testing.T) {
	t.Parallel()

	m := New()

	started := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	m.ObserveRun(domain.SyncRun{
		FinishedAt: started.Add(2 * time.Second),
		ID:         "run-1",
		Outcome:    domain.OutcomeSucceeded,
		StartedAt:  started,
		Trigger:    domain.TriggerScheduled,
	})
	m.ObserveRun(domain.SyncRun{
		FinishedAt: started.Add(time.Second),
		ID:         "run-2",
		Outcome:    domain.OutcomeFailed,
		StartedAt:  started,
		Trigger:    domain.TriggerManual,
	})

	succeeded := m.runsTotal.WithLabelValues(string(domain.OutcomeSucceeded), string(domain.TriggerScheduled))
	require.Equal(t, float64(1), testutil.ToFloat64(succeeded))

	failed := m.runsTotal.WithLabelValues(string(domain.OutcomeFailed), string(domain.TriggerManual))
	require.Equal(t, float64(1), testutil.ToFloat64(failed))
}

func TestMetrics_ObserveSnapshot(t *testing.T) {
	t.Parallel()

	m := New()

	m.ObserveSnapshot(domain.SyncSnapshot{
		Summary: domain.AggregateSummary{
			TotalAmountCents: 250000,
			TotalDonors:      42,
		},
		Version: 7,
	})

	require.Equal(t, float64(250000), testutil.ToFloat64(m.snapshotCents))
	require.Equal(t, float64(42), testutil.ToFloat64(m.snapshotDonors))
	require.Equal(t, float64(7), testutil.ToFloat64(m.snapshotVersion))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()

	started := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	m.ObserveRun(domain.SyncRun{
		FinishedAt: started.Add(time.Second),
		ID:         "run-1",
		Outcome:    domain.OutcomeSucceeded,
		StartedAt:  started,
		Trigger:    domain.TriggerManual,
	})

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	require.Contains(t, body, "donorpulse_sync_runs_total")
	require.Contains(t, body, "donorpulse_sync_run_duration_seconds_count 1")
	require.Contains(t, body, "donorpulse_snapshot_version")
}
