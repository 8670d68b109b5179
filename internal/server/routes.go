// Package server exposes the donor wall and sync control HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/peteski22/donorpulse/internal/domain"
	"github.com/peteski22/donorpulse/internal/storage"
	"github.com/peteski22/donorpulse/internal/sync"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

// SyncService is the orchestrator surface the API serves.
type SyncService interface {
	// Data returns one page of the latest snapshot in leaderboard order.
	Data(page, pageSize int) sync.DonorPage

	// History returns up to limit completed runs, newest first.
	History(limit int) []domain.SyncRun

	// Snapshot retrieves a historical snapshot by version.
	Snapshot(ctx context.Context, version int64) (domain.SyncSnapshot, error)

	// Status reports the orchestrator state.
	Status() sync.Status

	// Summary returns the latest aggregate summary.
	Summary() (domain.AggregateSummary, bool)

	// Trigger starts a sync cycle and returns its run ID.
	Trigger(ctx context.Context, trigger domain.Trigger) (string, error)

	// Versions lists every published snapshot version.
	Versions(ctx context.Context) ([]int64, error)
}

// Routes holds the handlers for the donor wall API.
type Routes struct {
	service SyncService
	started time.Time
}

// RouterOption customizes the assembled router.
type RouterOption func(*routerConfig)

type routerConfig struct {
	metricsHandler http.Handler
	middlewares    []func(http.Handler) http.Handler
}

// WithMetricsHandler mounts handler at /metrics.
func WithMetricsHandler(handler http.Handler) RouterOption {
	return func(cfg *routerConfig) {
		cfg.metricsHandler = handler
	}
}

// WithMiddlewares wraps every route with the given middlewares.
func WithMiddlewares(middlewares ...func(http.Handler) http.Handler) RouterOption {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, middlewares...)
	}
}

// NewRouter assembles the API router around the given service.
func NewRouter(service SyncService, opts ...RouterOption) *chi.Mux {
	cfg := &routerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	routes := &Routes{
		service: service,
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(cfg.middlewares...)

	r.Get("/health", routes.getHealth)
	r.Route("/api/donor-wall", func(r chi.Router) {
		r.Get("/summary", routes.getSummary)
		r.Get("/data", routes.getData)
		r.Post("/sync", routes.postSync)
		r.Get("/sync-status", routes.getSyncStatus)
		r.Get("/versions", routes.getVersions)
		r.Get("/snapshots/{version}", routes.getSnapshot)
	})
	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	return r
}

// response is the envelope every JSON endpoint answers with.
type response struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    any    `json:"meta,omitempty"`
	Success bool   `json:"success"`
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// summaryResponse is the donor wall summary with dollar amounts derived from
// the stored cents.
type summaryResponse struct {
	ActiveRecurringDonors int               `json:"active_recurring_donors"`
	AverageAmountCents    int64             `json:"average_amount_cents"`
	AverageAmountDollars  float64           `json:"average_amount_dollars"`
	LastUpdated           *time.Time        `json:"last_updated,omitempty"`
	TopDonors             []domain.TopDonor `json:"top_donors"`
	TotalAmountCents      int64             `json:"total_amount_cents"`
	TotalAmountDollars    float64           `json:"total_amount_dollars"`
	TotalContributions    int               `json:"total_contributions"`
	TotalDonors           int               `json:"total_donors"`
}

type pageMeta struct {
	HasMore  bool  `json:"has_more"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int   `json:"total"`
	Version  int64 `json:"version"`
}

type syncAccepted struct {
	RunID string `json:"run_id"`
}

type syncStatusResponse struct {
	DryRun           bool             `json:"dry_run"`
	History          []domain.SyncRun `json:"history"`
	LastRun          *domain.SyncRun  `json:"last_run,omitempty"`
	NextScheduledRun *time.Time       `json:"next_scheduled_run,omitempty"`
	SnapshotVersion  int64            `json:"snapshot_version"`
	State            string           `json:"state"`
}

type versionsResponse struct {
	Versions []int64 `json:"versions"`
}

func (routes *Routes) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(routes.started).Round(time.Second).String(),
	})
}

// getSummary serves the latest aggregate summary. Before the first snapshot
// it answers with zeroes rather than an error, so the donor wall renders.
func (routes *Routes) getSummary(w http.ResponseWriter, _ *http.Request) {
	summary, _ := routes.service.Summary()

	payload := summaryResponse{
		ActiveRecurringDonors: summary.ActiveRecurringDonors,
		AverageAmountCents:    summary.AverageAmountCents,
		AverageAmountDollars:  dollars(summary.AverageAmountCents),
		TopDonors:             summary.TopDonors,
		TotalAmountCents:      summary.TotalAmountCents,
		TotalAmountDollars:    dollars(summary.TotalAmountCents),
		TotalContributions:    summary.TotalContributions,
		TotalDonors:           summary.TotalDonors,
	}
	if !summary.LastUpdated.IsZero() {
		lastUpdated := summary.LastUpdated
		payload.LastUpdated = &lastUpdated
	}
	if payload.TopDonors == nil {
		payload.TopDonors = []domain.TopDonor{}
	}

	writeData(w, http.StatusOK, payload)
}

func (routes *Routes) getData(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page", 1)
	if !ok {
		writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	pageSize, ok := queryInt(r, "page_size", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "page_size must be a positive integer")
		return
	}

	data := routes.service.Data(page, pageSize)

	writeJSON(w, http.StatusOK, response{
		Data: data.Donors,
		Meta: pageMeta{
			HasMore:  data.HasMore,
			Page:     data.Page,
			PageSize: data.PageSize,
			Total:    data.Total,
			Version:  data.Version,
		},
		Success: true,
	})
}

func (routes *Routes) postSync(w http.ResponseWriter, r *http.Request) {
	runID, err := routes.service.Trigger(r.Context(), domain.TriggerManual)
	if err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "sync already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start sync")
		return
	}

	writeData(w, http.StatusAccepted, syncAccepted{RunID: runID})
}

func (routes *Routes) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultHistoryLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	status := routes.service.Status()
	payload := syncStatusResponse{
		DryRun:          status.DryRun,
		History:         routes.service.History(limit),
		LastRun:         status.LastRun,
		SnapshotVersion: status.SnapshotVersion,
		State:           string(status.State),
	}
	if !status.NextScheduledRun.IsZero() {
		next := status.NextScheduledRun
		payload.NextScheduledRun = &next
	}
	if payload.History == nil {
		payload.History = []domain.SyncRun{}
	}

	writeData(w, http.StatusOK, payload)
}

func (routes *Routes) getVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := routes.service.Versions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list snapshot versions")
		return
	}
	if versions == nil {
		versions = []int64{}
	}

	writeData(w, http.StatusOK, versionsResponse{Versions: versions})
}

func (routes *Routes) getSnapshot(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, "version must be a positive integer")
		return
	}

	snapshot, err := routes.service.Snapshot(r.Context(), version)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}

	writeData(w, http.StatusOK, snapshot)
}

// queryInt parses an optional positive integer query parameter, returning
// the fallback when it is absent.
func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, false
	}

	return value, true
}

// dollars converts a cent amount to its dollar representation.
func dollars(cents int64) float64 {
	return float64(cents) / 100
}

func writeData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, response{Data: data, Success: true})
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, response{Error: message, Success: false})
}

func writeJSON(w http.ResponseWriter, statusCode int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
