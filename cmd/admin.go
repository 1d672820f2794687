package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/harvest"
	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/merge"
	"github.com/verdantlab/flora-cli/internal/model"
)

// mergeRunner abstracts the merge engine for the admin API.
type mergeRunner interface {
	Run(ctx context.Context, triggeredBy string) error
}

// adminAPI exposes run history, coverage, and manual triggers over HTTP.
// Triggered jobs run on baseCtx rather than the request context so they
// survive the 202 response.
type adminAPI struct {
	led     *ledger.Ledger
	cat     *catalog.Catalog
	runner  harvest.Runner
	merger  mergeRunner
	source  func(name string, forceFull bool) (harvest.Source, error)
	baseCtx context.Context
}

func (a *adminAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", a.handleHealth)
	r.Route("/admin", func(r chi.Router) {
		r.Post("/harvest/{source}", a.handleHarvest)
		r.Post("/merge", a.handleMerge)
		r.Get("/runs", a.handleRuns)
		r.Get("/runs/active", a.handleActiveRuns)
		r.Get("/coverage", a.handleCoverage)
	})
	return r
}

func (a *adminAPI) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *adminAPI) handleHarvest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")

	var req struct {
		ForceFull bool `json:"force_full"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	src, err := a.source(name, req.ForceFull)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	active, err := a.led.Active(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if active {
		writeError(w, http.StatusConflict, name+" harvest is already running")
		return
	}

	go func() {
		if err := a.runner.Run(a.baseCtx, src, model.TriggerAdmin, 0); err != nil {
			zap.L().Error("admin harvest failed", zap.String("source", name), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "source": name})
}

func (a *adminAPI) handleMerge(w http.ResponseWriter, r *http.Request) {
	active, err := a.led.Active(r.Context(), model.JobMerge)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if active {
		writeError(w, http.StatusConflict, "merge is already running")
		return
	}

	go func() {
		if err := a.merger.Run(a.baseCtx, model.TriggerAdmin); err != nil {
			zap.L().Error("admin merge failed", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *adminAPI) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := a.led.List(r.Context(), ledger.Filter{
		Job:    r.URL.Query().Get("job"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *adminAPI) handleActiveRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := a.led.List(r.Context(), ledger.Filter{Status: string(model.RunStatusRunning)})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *adminAPI) handleCoverage(w http.ResponseWriter, r *http.Request) {
	total, err := a.cat.CountPlants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts, err := a.cat.PlantFieldCoverage(r.Context(), merge.Fields())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_plants": total,
		"fields":       coverageRows(total, counts),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
