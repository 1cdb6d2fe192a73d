package orchestrator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"transcode-orchestrator/internal/platform/metrics"
	"transcode-orchestrator/internal/transcoder"

	"github.com/go-chi/chi/v5"
)

// Handler exposes job endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts the job endpoints on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.SubmitJob)
		r.Get("/", h.ListJobs)
		r.Route("/{job_id}", func(r chi.Router) {
			r.Get("/", h.GetJob)
			r.Post("/cancel", h.CancelJob)
			r.Post("/pause", h.PauseJob)
			r.Post("/resume", h.ResumeJob)
		})
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManyJobs):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnknownProfile):
		return http.StatusBadRequest
	case errors.Is(err, transcoder.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, transcoder.ErrInvalidOperation):
		return http.StatusConflict
	case errors.Is(err, transcoder.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, transcoder.ErrMalformed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// SubmitJob handles POST /jobs.
// Body: { "source_path": "...", "dest_path": "...", "tracks": [...] }.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid job body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	job, err := h.svc.Submit(req)
	if err != nil {
		h.log.Info("job rejected",
			slog.String("source", req.SourcePath),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.log.Debug("job submitted", slog.String("job_id", string(job.ID)))
	writeJSON(w, http.StatusCreated, job)
	if h.metrics != nil {
		h.metrics.IncJobsSubmitted()
	}
}

// ListJobs handles GET /jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.svc.List()
	if jobs == nil {
		jobs = []Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetJob handles GET /jobs/{job_id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := JobID(chi.URLParam(r, "job_id"))
	job, ok := h.svc.Get(id)
	if !ok {
		writeError(w, ErrJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob handles POST /jobs/{job_id}/cancel.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := JobID(chi.URLParam(r, "job_id"))
	if err := h.svc.Cancel(id); err != nil {
		h.log.Info("cancel rejected", slog.String("job_id", string(id)), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	job, _ := h.svc.Get(id)
	writeJSON(w, http.StatusOK, job)
	if h.metrics != nil {
		h.metrics.IncJobsCancelled()
	}
}

// PauseJob handles POST /jobs/{job_id}/pause.
func (h *Handler) PauseJob(w http.ResponseWriter, r *http.Request) {
	id := JobID(chi.URLParam(r, "job_id"))
	if err := h.svc.Pause(id); err != nil {
		h.log.Info("pause rejected", slog.String("job_id", string(id)), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	job, _ := h.svc.Get(id)
	writeJSON(w, http.StatusOK, job)
}

// ResumeJob handles POST /jobs/{job_id}/resume.
func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	id := JobID(chi.URLParam(r, "job_id"))
	if err := h.svc.Resume(id); err != nil {
		h.log.Info("resume rejected", slog.String("job_id", string(id)), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	job, _ := h.svc.Get(id)
	writeJSON(w, http.StatusOK, job)
}
