package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peteski22/donorpulse/internal/domain"
	"github.com/peteski22/donorpulse/internal/storage"
	"github.com/peteski22/donorpulse/internal/sync"
)

// fakeService implements SyncService with canned responses. Nil funcs fall
// back to empty values.
type fakeService struct {
	dataFunc     func(page, pageSize int) sync.DonorPage
	historyFunc  func(limit int) []domain.SyncRun
	snapshotFunc func(ctx context.Context, version int64) (domain.SyncSnapshot, error)
	statusFunc   func() sync.Status
	summaryFunc  func() (domain.AggregateSummary, bool)
	triggerFunc  func(ctx context.Context, trigger domain.Trigger) (string, error)
	versionsFunc func(ctx context.Context) ([]int64, error)
}

func (f *fakeService) Data(page, pageSize int) sync.DonorPage {
	if f.dataFunc != nil {
		return f.dataFunc(page, pageSize)
	}
	return sync.DonorPage{Donors: []domain.DonorRecord{}, Page: page, PageSize: pageSize}
}

func (f *fakeService) History(limit int) []domain.SyncRun {
	if f.historyFunc != nil {
		return f.historyFunc(limit)
	}
	return []domain.SyncRun{}
}

func (f *fakeService) Snapshot(ctx context.Context, version int64) (domain.SyncSnapshot, error) {
	if f.snapshotFunc != nil {
		return f.snapshotFunc(ctx, version)
	}
	return domain.SyncSnapshot{}, storage.ErrSnapshotNotFound
}

func (f *fakeService) Status() sync.Status {
	if f.statusFunc != nil {
		return f.statusFunc()
	}
	return sync.Status{State: sync.StateIdle}
}

func (f *fakeService) Summary() (domain.AggregateSummary, bool) {
	if f.summaryFunc != nil {
		return f.summaryFunc()
	}
	return domain.AggregateSummary{}, false
}

func (f *fakeService) Trigger(ctx context.Context, trigger domain.Trigger) (string, error) {
	if f.triggerFunc != nil {
		return f.triggerFunc(ctx, trigger)
	}
	return "run-1", nil
}

func (f *fakeService) Versions(ctx context.Context) ([]int64, error) {
	if f.versionsFunc != nil {
		return f.versionsFunc(ctx)
	}
	return []int64{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func perform(router http.Handler, method, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(method, target, nil))
	return recorder
}

func TestRoutes_Health(t *testing.T) {
	t.Parallel()

	recorder := perform(NewRouter(&fakeService{}), http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var body struct {
		Data    healthResponse `json:"data"`
		Success bool           `json:"success"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
	require.True(t, body.Success)
	require.Equal(t, "ok", body.Data.Status)
	require.NotEmpty(t, body.Data.Uptime)
}

func TestRoutes_Summary(t *testing.T) {
	t.Parallel()

	t.Run("derives dollar amounts from cents", func(t *testing.T) {
		t.Parallel()

		service := &fakeService{summaryFunc: func() (domain.AggregateSummary, bool) {
			return domain.AggregateSummary{
				ActiveRecurringDonors: 4,
				AverageAmountCents:    12500,
				LastUpdated:           time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC),
				TopDonors:             []domain.TopDonor{{AmountCents: 50000, DisplayName: "Ada", ID: "1", Recurring: true}},
				TotalAmountCents:      250000,
				TotalContributions:    31,
				TotalDonors:           20,
			}, true
		}}

		recorder := perform(NewRouter(service), http.MethodGet, "/api/donor-wall/summary")

		require.Equal(t, http.StatusOK, recorder.Code)

		var body struct {
			Data    summaryResponse `json:"data"`
			Success bool            `json:"success"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		require.True(t, body.Success)
		require.Equal(t, int64(250000), body.Data.TotalAmountCents)
		require.Equal(t, 2500.0, body.Data.TotalAmountDollars)
		require.Equal(t, int64(12500), body.Data.AverageAmountCents)
		require.Equal(t, 125.0, body.Data.AverageAmountDollars)
		require.Equal(t, 20, body.Data.TotalDonors)
		require.Equal(t, 31, body.Data.TotalContributions)
		require.Equal(t, 4, body.Data.ActiveRecurringDonors)
		require.NotNil(t, body.Data.LastUpdated)
		require.Len(t, body.Data.TopDonors, 1)
		require.Equal(t, "Ada", body.Data.TopDonors[0].DisplayName)
	})

	t.Run("zeroes before the first snapshot", func(t *testing.T) {
		t.Parallel()

		recorder := perform(NewRouter(&fakeService{}), http.MethodGet, "/api/donor-wall/summary")

		require.Equal(t, http.StatusOK, recorder.Code)

		var body struct {
			Data    summaryResponse `json:"data"`
			Success bool            `json:"success"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		require.True(t, body.Success)
		require.Zero(t, body.Data.TotalAmountCents)
		require.Zero(t, body.Data.TotalDonors)
		require.Nil(t, body.Data.LastUpdated)
		require.NotNil(t, body.Data.TopDonors)
		require.Empty(t, body.Data.TopDonors)
	})
}

func TestRoutes_Data(t *testing.T) {
	t.Parallel()

	t.Run("serves a page with pagination meta", func(t *testing.T) {
		t.Parallel()

		var gotPage, gotSize int
		service := &fakeService{dataFunc: func(page, pageSize int) sync.DonorPage {
			gotPage, gotSize = page, pageSize
			return sync.DonorPage{
				Donors:   []domain.DonorRecord{{AmountCents: 9000, DisplayName: "Ada", ID: "1"}},
				HasMore:  true,
				Page:     page,
				PageSize: pageSize,
				Total:    12,
				Version:  3,
			}
		}}

		recorder := perform(NewRouter(service), http.MethodGet, "/api/donor-wall/data?page=2&page_size=5")

		require.Equal(t, http.StatusOK, recorder.Code)
		require.Equal(t, 2, gotPage)
		require.Equal(t, 5, gotSize)

		var body struct {
			Data    []domain.DonorRecord `json:"data"`
			Meta    pageMeta             `json:"meta"`
			Success bool                 `json:"success"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		require.True(t, body.Success)
		require.Len(t, body.Data, 1)
		require.Equal(t, "1", body.Data[0].ID)
		require.Equal(t, pageMeta{HasMore: true, Page: 2, PageSize: 5, Total: 12, Version: 3}, body.Meta)
	})

	t.Run("rejects malformed paging parameters", func(t *testing.T) {
		t.Parallel()

		targets := map[string]string{
			"negative page size":  "/api/donor-wall/data?page_size=-3",
			"non-numeric page":    "/api/donor-wall/data?page=abc",
			"page zero":           "/api/donor-wall/data?page=0",
		}

		for name, target := range targets {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				recorder := perform(NewRouter(&fakeService{}), http.MethodGet, target)

				require.Equal(t, http.StatusBadRequest, recorder.Code)

				var body struct {
					Error   string `json:"error"`
					Success bool   `json:"success"`
				}
				require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
				require.False(t, body.Success)
				require.Contains(t, body.Error, "must be a positive integer")
			})
		}
	})
}

func TestRoutes_Sync(t *testing.T) {
	t.Parallel()

	t.Run("accepts a manual trigger", func(t *testing.T) {
		t.Parallel()

		var gotTrigger domain.Trigger
		service := &fakeService{triggerFunc: func(_ context.Context, trigger domain.Trigger) (string, error) {
			gotTrigger = trigger
			return "run-42", nil
		}}

		recorder := perform(NewRouter(service), http.MethodPost, "/api/donor-wall/sync")

		require.Equal(t, http.StatusAccepted, recorder.Code)
		require.Equal(t, domain.TriggerManual, gotTrigger)

		var body struct {
			Data    syncAccepted `json:"data"`
			Success bool         `json:"success"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		require.True(t, body.Success)
		require.Equal(t, "run-42", body.Data.RunID)
	})

	t.Run("conflicts while a cycle is running", func(t *testing.T) {
		t.Parallel()

		service := &fakeService{triggerFunc: func(_ context.Context, _ domain.Trigger) (string, error) {
			return "", sync.ErrSyncInProgress
		}}

		recorder := perform(NewRouter(service), http.MethodPost, "/api/donor-wall/sync")

		require.Equal(t, http.StatusConflict, recorder.Code)

		var body struct {
			Error   string `json:"error"`
			Success bool   `json:"success"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		require.False(t, body.Success)
		require.Contains(t, body.Error, "already in progress")
	})

	t.Run("other trigger failures are internal errors", func(t *testing.T) {
		t.Parallel()

		service := &fakeService{triggerFunc: func(_ context.Context, _ domain.Trigger) (string, error) {
			return "", errors.New("gate jammed")
		}}

		recorder := perform(NewRouter(service), http.MethodPost, "/api/donor-wall/sync")

		require.Equal(t, http.StatusInternalServerError, recorder.Code)
	})
}

func TestRoutes_SyncStatus(t *testing.T) {
	t.Parallel()

	t.Run("reports state, last run and next scheduled run", func(t *testing.T) {
		t.Parallel()

		next := time.Date(2025, 11, 3, 12, 15, 0, 0, time.UTC)
		lastRun := domain.SyncRun{ID: "run-9", Outcome: domain.OutcomeSucceeded, SnapshotVersion: 4}

		var gotLimit int
		service := &fakeService{
			historyFunc: func(limit int) []domain.SyncRun {
				gotLimit = limit
				return []domain.SyncRun{lastRun}
			},
			statusFunc: func() sync.Status {
				return sync.Status{
					LastRun:          &lastRun,
					NextScheduledRun: next,
					SnapshotVersion:  4,
					State:            sync.StateIdle,
				}
			},
		}

		recorder := perform(NewRouter(service), http.MethodGet, "/api/donor-wall/sync-status")

		require.Equal(t, http.StatusOK, recorder.Code)
		require.Equal(t, defaultHistoryLimit, gotLimit)

		var body struct {
			Data    syncStatusResponse `json:"data"`
			Success bool               `json:"success"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		require.True(t, body.Success)
		require.Equal(t, string(sync.StateIdle), body.Data.State)
		require.Equal(t, int64(4), body.Data.SnapshotVersion)
		require.NotNil(t, body.Data.LastRun)
		require.Equal(t, "run-9", body.Data.LastRun.ID)
		require.NotNil(t, body.Data.NextScheduledRun)
		require.True(t, next.Equal(*body.Data.NextScheduledRun))
		require.Len(t, body.Data.History, 1)
	})

	t.Run("omits the next run when no scheduler reports one", func(t *testing.T) {
		t.Parallel()

		recorder := perform(NewRouter(&fakeService{}), http.MethodGet, "/api/donor-wall/sync-status")

		require.Equal(t, http.StatusOK, recorder.Code)

		var body struct {
			Data syncStatusResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		require.Nil(t, body.Data.NextScheduledRun)
		require.Equal(t, string(sync.StateIdle), body.Data.State)
	})

	t.Run("caps the history limit", func(t *testing.T) {
		t.Parallel()

		var gotLimit int
		service := &fakeService{historyFunc: func(limit int) []domain.SyncRun {
			gotLimit = limit
			return []domain.SyncRun{}
		}}

		recorder := perform(NewRouter(service), http.MethodGet, "/api/donor-wall/sync-status?limit=200")

		require.Equal(t, http.StatusOK, recorder.Code)
		require.Equal(t, maxHistoryLimit, gotLimit)
	})

	t.Run("rejects a malformed limit", func(t *testing.T) {
		t.Parallel()

		recorder := perform(NewRouter(&fakeService{}), http.MethodGet, "/api/donor-wall/sync-status?limit=abc")

		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestRoutes_Versions(t *testing.T) {
	t.Parallel()

	t.Run("lists published versions", func(t *testing.T) {
		t.Parallel()

		service := &fakeService{versionsFunc: func(_ context.Context) ([]int64, error) {
			return []int64{1, 2, 3}, nil
		}}

		recorder := perform(NewRouter(service), http.MethodGet, "/api/donor-wall/versions")

		require.Equal(t, http.StatusOK, recorder.Code)

		var body struct {
			Data    versionsResponse `json:"data"`
			Success bool             `json:"success"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		require.True(t, body.Success)
		require.Equal(t, []int64{1, 2, 3}, body.Data.Versions)
	})

	t.Run("store failures are internal errors", func(t *testing.T) {
		t.Parallel()

		service := &fakeService{versionsFunc: func(_ context.Context) ([]int64, error) {
			return nil, errors.New("table unavailable")
		}}

		recorder := perform(NewRouter(service), http.MethodGet, "/api/donor-wall/versions")

		require.Equal(t, http.StatusInternalServerError, recorder.Code)
	})
}

func TestRoutes_Snapshot(t *testing.T) {
	t.Parallel()

	t.Run("serves a historical snapshot", func(t *testing.T) {
		t.Parallel()

		service := &fakeService{snapshotFunc: func(_ context.Context, version int64) (domain.SyncSnapshot, error) {
			return domain.SyncSnapshot{
				Records: map[string]domain.DonorRecord{"1": {AmountCents: 9000, ID: "1"}},
				Version: version,
			}, nil
		}}

		recorder := perform(NewRouter(service), http.MethodGet, "/api/donor-wall/snapshots/2")

		require.Equal(t, http.StatusOK, recorder.Code)

		var body struct {
			Data    domain.SyncSnapshot `json:"data"`
			Success bool                `json:"success"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		require.True(t, body.Success)
		require.Equal(t, int64(2), body.Data.Version)
		require.Contains(t, body.Data.Records, "1")
	})

	t.Run("unknown versions are not found", func(t *testing.T) {
		t.Parallel()

		recorder := perform(NewRouter(&fakeService{}), http.MethodGet, "/api/donor-wall/snapshots/99")

		require.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("rejects a malformed version", func(t *testing.T) {
		t.Parallel()

		recorder := perform(NewRouter(&fakeService{}), http.MethodGet, "/api/donor-wall/snapshots/latest")

		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestRoutes_Metrics(t *testing.T) {
	t.Parallel()

	t.Run("mounts the given handler", func(t *testing.T) {
		t.Parallel()

		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("donorpulse_up 1"))
		})

		recorder := perform(NewRouter(&fakeService{}, WithMetricsHandler(metrics)), http.MethodGet, "/metrics")

		require.Equal(t, http.StatusOK, recorder.Code)
		require.Contains(t, recorder.Body.String(), "donorpulse_up 1")
	})

	t.Run("absent without a handler", func(t *testing.T) {
		t.Parallel()

		recorder := perform(NewRouter(&fakeService{}), http.MethodGet, "/metrics")

		require.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestRoutes_Middlewares(t *testing.T) {
	t.Parallel()

	tagged := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test", "applied")
			next.ServeHTTP(w, r)
		})
	}

	router := NewRouter(&fakeService{}, WithMiddlewares(tagged, LoggingMiddleware(testLogger())))

	recorder := perform(router, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "applied", recorder.Header().Get("X-Test"))
}
