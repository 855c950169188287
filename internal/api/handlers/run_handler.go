package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	middleware "github.com/markdave123-py/docpipe/internal/api/middlewares"
	"github.com/markdave123-py/docpipe/internal/models"
)

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context, runID string) (*models.RunReport, error)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunStatus is what GET /api/runs/latest returns.
type RunStatus struct {
	RunID     string            `json:"run_id"`
	Status    string            `json:"status"`
	Caller    string            `json:"caller,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Error     string            `json:"error,omitempty"`
	Report    *models.RunReport `json:"report,omitempty"`
}

// RunHandler triggers pipeline runs in the background, one at a time.
type RunHandler struct {
	run  RunFunc
	base context.Context
	log  *slog.Logger

	mu      sync.Mutex
	latest  *RunStatus
	running bool
	wg      sync.WaitGroup
}

// NewRunHandler runs work under base so a run outlives the request that started it
// but stops when the server shuts down.
func NewRunHandler(base context.Context, run RunFunc, logger *slog.Logger) *RunHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunHandler{run: run, base: base, log: logger}
}

func (h *RunHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartRun answers 202 with the new run id, or 409 while a run is in flight.
func (h *RunHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.Caller(r.Context())

	h.mu.Lock()
	if h.running {
		current := h.latest.RunID
		h.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "run already in progress", "run_id": current})
		return
	}
	status := &RunStatus{
		RunID:     uuid.NewString(),
		Status:    StatusRunning,
		Caller:    caller,
		StartedAt: time.Now().UTC(),
	}
	h.running = true
	h.latest = status
	h.wg.Add(1)
	h.mu.Unlock()

	h.log.Info("api.run.accepted", "run_id", status.RunID, "caller", caller)
	go h.execute(status.RunID)

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": status.RunID, "status": StatusRunning})
}

func (h *RunHandler) execute(runID string) {
	defer h.wg.Done()
	report, err := h.run(h.base, runID)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	h.latest.Report = report
	if err != nil {
		h.latest.Status = StatusFailed
		h.latest.Error = err.Error()
		h.log.Error("api.run.failed", "run_id", runID, "error", err)
		return
	}
	h.latest.Status = StatusSucceeded
	h.log.Info("api.run.done", "run_id", runID)
}

func (h *RunHandler) Latest(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	var snapshot *RunStatus
	if h.latest != nil {
		cp := *h.latest
		snapshot = &cp
	}
	h.mu.Unlock()

	if snapshot == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs yet"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// Wait blocks until the in-flight run, if any, returns.
func (h *RunHandler) Wait() {
	h.wg.Wait()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
