package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/lucasew/slackoffload/internal/db"
	"github.com/lucasew/slackoffload/internal/errutil"
	"github.com/lucasew/slackoffload/internal/eviction"
	"github.com/lucasew/slackoffload/internal/logctx"
)

const defaultRunsLimit = 20

// Trigger starts or joins a quota run.
type Trigger interface {
	Trigger(ctx context.Context, onDemand bool) (*eviction.Report, bool, error)
}

// History lists journaled runs.
type History interface {
	RecentRuns(ctx context.Context, limit int) ([]db.RunEntry, error)
}

// Handler exposes on-demand runs and the run journal over HTTP.
type Handler struct {
	Runs    Trigger
	History History
}

func New(runs Trigger, history History) *Handler {
	return &Handler{
		Runs:    runs,
		History: history,
	}
}

// Register adds the handler's routes to mux.
//
//	POST /run      run now, or join the run in flight, and return its Report
//	GET  /runs     recent journaled runs (?limit=N)
//	GET  /healthz  liveness
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /run", h.run)
	mux.HandleFunc("GET /runs", h.runs)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithStr(r.Context(), "trigger", "http")

	report, shared, err := h.Runs.Trigger(ctx, true)
	if report == nil {
		errutil.LogMsg(ctx, err, "On-demand run not completed")
		http.Error(w, "run not completed", http.StatusServiceUnavailable)
		return
	}

	status := http.StatusOK
	switch {
	case err == nil, errors.Is(err, eviction.ErrQuotaUnmet):
	case errors.Is(err, eviction.ErrListingFailed):
		status = http.StatusBadGateway
	default:
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("X-Run-Shared", strconv.FormatBool(shared))
	writeJSON(ctx, w, status, report)
}

func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		http.Error(w, "journal not configured", http.StatusNotFound)
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.History.RecentRuns(r.Context(), limit)
	if err != nil {
		errutil.ReportError(r.Context(), err, "Failed to list runs")
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []db.RunEntry{}
	}
	writeJSON(r.Context(), w, http.StatusOK, entries)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	errutil.LogMsg(ctx, json.NewEncoder(w).Encode(v), "Failed to write response")
}
