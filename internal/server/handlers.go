// Package server exposes the orchestrator core over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"testdeck/internal/logger"
	"testdeck/internal/pool"
	"testdeck/internal/queue"
	"testdeck/internal/store"
	"testdeck/pkg/api"
)

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	queue  *queue.Queue
	pool   *pool.Pool
	store  store.JobStore
	logger *slog.Logger
}

// NewHandlers creates a Handlers instance over the core components.
func NewHandlers(q *queue.Queue, p *pool.Pool, s store.JobStore, log *slog.Logger) *Handlers {
	return &Handlers{queue: q, pool: p, store: s, logger: log}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJSON(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// coreError maps core errors onto HTTP status codes.
func (h *Handlers) coreError(w http.ResponseWriter, err error) {
	var vErr *store.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.httpError(w, vErr.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		h.httpError(w, "Job not found", http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidState):
		h.httpError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrStoreUnavailable):
		h.httpError(w, "Store unavailable", http.StatusServiceUnavailable)
	default:
		h.httpError(w, "Internal error", http.StatusInternalServerError)
	}
}

// SubmitJob handles POST /jobs.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.queue.Submit(ctx, queue.SubmitRequest{
		OrgID:        req.OrgID,
		AppVersionID: req.AppVersionID,
		TestPath:     req.TestPath,
		Target:       store.Target(req.Target),
		Priority:     store.Priority(req.Priority),
		Timestamp:    req.Timestamp,
		JobID:        req.JobID,
		Status:       store.Status(req.Status),
		Progress:     req.Progress,
		RetryCount:   req.RetryCount,
		MaxRetries:   req.MaxRetries,
		StartedAt:    req.StartedAt,
		CompletedAt:  req.CompletedAt,
		DeviceID:     req.DeviceID,
		AgentID:      req.AgentID,
	})
	if err != nil {
		logger.FromContext(ctx, h.logger).Warn("submission rejected", "error", err)
		h.coreError(w, err)
		return
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}
	h.respondJSON(w, status, api.SubmitJobResponse{
		JobID:   result.JobID,
		Status:  string(result.Status),
		Message: result.Message,
	})
}

// GetJob handles GET /jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.coreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toJobResponse(job))
}

// ListJobs handles GET /jobs?org_id=...&status=...
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		h.httpError(w, "org_id is required", http.StatusBadRequest)
		return
	}

	var statusFilter *store.Status
	if v := r.URL.Query().Get("status"); v != "" {
		s := store.Status(v)
		if !s.Valid() {
			h.httpError(w, "Unknown status filter", http.StatusBadRequest)
			return
		}
		statusFilter = &s
	}

	jobs, err := h.queue.List(r.Context(), orgID, statusFilter)
	if err != nil {
		h.coreError(w, err)
		return
	}

	resp := api.ListJobsResponse{
		OrgID: orgID,
		Count: len(jobs),
		Jobs:  make([]api.JobResponse, 0, len(jobs)),
	}
	if statusFilter != nil {
		resp.StatusFilter = string(*statusFilter)
	}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// CancelJob handles POST /jobs/{id}/cancel.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		h.coreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toJobResponse(job))
}

// RetryJob handles POST /jobs/{id}/retry.
func (h *Handlers) RetryJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		h.coreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toJobResponse(job))
}

// GetStats handles GET /stats.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		h.coreError(w, err)
		return
	}
	agents, devices, running := h.pool.Counts()
	h.respondJSON(w, http.StatusOK, api.StatsResponse{
		Queue: api.QueueStats{
			Waiting:   stats.Waiting,
			Active:    stats.Active,
			Completed: stats.Completed,
			Failed:    stats.Failed,
			Total:     stats.Total,
			Groups:    stats.Groups,
		},
		Scheduler: api.SchedulerStats{
			Agents:      agents,
			Devices:     devices,
			RunningJobs: running,
		},
	})
}

// GetGroups handles GET /groups.
func (h *Handlers) GetGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.queue.Groups(r.Context())
	if err != nil {
		h.coreError(w, err)
		return
	}
	out := make([]api.GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, api.GroupResponse{
			GroupID:      g.GroupID,
			OrgID:        g.OrgID,
			AppVersionID: g.AppVersionID,
			Target:       string(g.Target),
			JobCount:     g.JobCount,
			Status:       string(g.Status),
			OldestJob:    g.OldestJob,
			NewestJob:    g.NewestJob,
		})
	}
	h.respondJSON(w, http.StatusOK, out)
}

// GetDevices handles GET /devices.
func (h *Handlers) GetDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.pool.Snapshot()
	out := make([]api.DeviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, api.DeviceResponse{
			ID:          d.ID,
			Type:        string(d.Type),
			Status:      string(d.Status),
			Target:      string(d.Target),
			AgentID:     d.AgentID,
			CurrentJobs: d.CurrentJobs,
		})
	}
	h.respondJSON(w, http.StatusOK, out)
}

// Health handles GET /healthz. It reports unhealthy when the backing
// store is unreachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.httpError(w, "Store unreachable", http.StatusServiceUnavailable)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toJobResponse(j *store.Job) api.JobResponse {
	return api.JobResponse{
		JobID:        j.ID,
		OrgID:        j.OrgID,
		AppVersionID: j.AppVersionID,
		TestPath:     j.TestPath,
		Target:       string(j.Target),
		Priority:     string(j.Priority),
		Status:       string(j.Status),
		Progress:     j.Progress,
		Result:       j.Result,
		Error:        j.Error,
		RetryCount:   j.RetryCount,
		MaxRetries:   j.MaxRetries,
		Timestamp:    j.Timestamp,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		DeviceID:     j.DeviceID,
		AgentID:      j.AgentID,
		GroupID:      j.GroupID,
	}
}
