package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/lead-refinery/internal/domain"
	"github.com/ignite/lead-refinery/internal/instruction"
	"github.com/ignite/lead-refinery/internal/pipeline"
	"github.com/ignite/lead-refinery/internal/pkg/logger"
)

// RunStore persists run records. *postgres.RunRepo satisfies it.
type RunStore interface {
	Save(ctx context.Context, run *domain.Run) error
	List(ctx context.Context, limit int) ([]domain.Run, error)
	Get(ctx context.Context, id string) (*domain.Run, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	runner  *pipeline.Runner
	updater *pipeline.Updater
	runs    RunStore

	configWorksheet string
	startTime       time.Time
}

// NewHandlers creates the handler set. runner is required; updater and
// runs are optional and their endpoints report 503 when unset.
func NewHandlers(runner *pipeline.Runner, configWorksheet string) *Handlers {
	return &Handlers{
		runner:          runner,
		configWorksheet: configWorksheet,
		startTime:       time.Now(),
	}
}

// SetUpdater enables the monthly-update trigger endpoint.
func (h *Handlers) SetUpdater(u *pipeline.Updater) {
	h.updater = u
}

// SetRunStore enables run persistence and the run listing endpoints.
func (h *Handlers) SetRunStore(s RunStore) {
	h.runs = s
}

// HealthCheck returns basic liveness info.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
		"time":   time.Now().Format(time.RFC3339),
	})
}

// HandleTriggerRun loads the instruction sheet, runs the NG filter and
// returns the report. Synchronous: a run takes seconds, not minutes.
//
//	POST /api/v1/runs
func (h *Handlers) HandleTriggerRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	settings, err := h.loadSettings(ctx)
	if err != nil {
		respondError(w, http.StatusBadGateway, "loading instruction sheet: "+err.Error())
		return
	}

	report, err := h.runner.Run(ctx, settings)
	if err != nil {
		var cfgErr *instruction.ConfigError
		status := http.StatusInternalServerError
		if errors.As(err, &cfgErr) {
			status = http.StatusUnprocessableEntity
		}
		h.recordRun(ctx, domain.RunKindNGFilter, report, err)
		respondError(w, status, err.Error())
		return
	}

	h.recordRun(ctx, domain.RunKindNGFilter, report, nil)
	respondJSON(w, http.StatusOK, report)
}

// HandleTriggerUpdate runs the monthly ingest and returns its report.
//
//	POST /api/v1/updates
func (h *Handlers) HandleTriggerUpdate(w http.ResponseWriter, r *http.Request) {
	if h.updater == nil {
		respondError(w, http.StatusServiceUnavailable, "monthly update is not configured")
		return
	}

	report, err := h.updater.Run(r.Context(), time.Now())
	if err != nil {
		if errors.Is(err, pipeline.ErrUpdateInProgress) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// HandleListRuns lists recent runs from the store.
//
//	GET /api/v1/runs
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	runs, err := h.runs.List(r.Context(), 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

// HandleGetRun returns a single run by ID.
//
//	GET /api/v1/runs/{id}
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	run, err := h.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// loadSettings reads and parses the instruction worksheet.
func (h *Handlers) loadSettings(ctx context.Context) (*instruction.Settings, error) {
	t, err := h.runner.Source.Worksheet(ctx, h.runner.ConfigSpreadsheetID, h.configWorksheet)
	if err != nil {
		return nil, err
	}
	return instruction.Parse(t, h.configWorksheet)
}

// recordRun persists the outcome when a store is configured. Persistence
// failures are logged, never surfaced to the caller.
func (h *Handlers) recordRun(ctx context.Context, kind domain.RunKind, report *pipeline.Report, runErr error) {
	if h.runs == nil {
		return
	}
	run := &domain.Run{
		Kind:      kind,
		Status:    domain.RunCompleted,
		StartedAt: time.Now(),
	}
	if report != nil {
		run.ID = report.RunID
		run.InputRows = report.InputRows
		run.OutputRows = report.OutputRows
		run.NGCompany = report.NGCompany
		run.NGEmail = report.NGEmail
		run.NGIndustry = report.NGIndustry
		run.StartedAt = report.StartedAt
		run.FinishedAt = report.FinishedAt
	}
	if runErr != nil {
		run.Status = domain.RunFailed
		run.Error = runErr.Error()
		run.FinishedAt = time.Now()
	}
	if err := h.runs.Save(ctx, run); err != nil {
		logger.Error("saving run record failed", "run_id", run.ID, "error", err.Error())
	}
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
