package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vidforge/internal/domain"
	"vidforge/internal/middleware"
	"vidforge/internal/orchestrator"
)

type submitRequest struct {
	Title    string                    `json:"title"`
	Prompt   string                    `json:"prompt"`
	Settings domain.GenerationSettings `json:"settings"`
	Priority domain.Priority           `json:"priority,omitempty"`
}

type jobResponse struct {
	ID                     string                  `json:"id"`
	Status                 domain.JobStatus        `json:"status"`
	Stage                  domain.JobStage         `json:"stage,omitempty"`
	Progress               int                     `json:"progress"`
	EstimatedTimeRemaining *int                    `json:"estimated_time_remaining,omitempty"`
	Title                  string                  `json:"title"`
	Prompt                 string                  `json:"prompt"`
	CostCredits            int                     `json:"cost_credits"`
	RetryCount             int                     `json:"retry_count"`
	MaxRetries             int                     `json:"max_retries"`
	Error                  *domain.GenerationError `json:"error,omitempty"`
	VideoURL               string                  `json:"video_url,omitempty"`
	ThumbnailURL           string                  `json:"thumbnail_url,omitempty"`
	Metadata               *domain.VideoMetadata   `json:"metadata,omitempty"`
	CreatedAt              time.Time               `json:"created_at"`
	UpdatedAt              time.Time               `json:"updated_at"`
}

func jobView(job *domain.Job) jobResponse {
	return jobResponse{
		ID:                     job.ID.String(),
		Status:                 job.Status,
		Stage:                  job.Stage,
		Progress:               job.Progress,
		EstimatedTimeRemaining: job.EstimatedTimeRemaining,
		Title:                  job.Title,
		Prompt:                 job.Prompt,
		CostCredits:            job.CostCredits,
		RetryCount:             job.RetryCount,
		MaxRetries:             job.MaxRetries,
		Error:                  job.Error,
		VideoURL:               job.VideoURL,
		ThumbnailURL:           job.ThumbnailURL,
		Metadata:               job.Metadata,
		CreatedAt:              job.CreatedAt,
		UpdatedAt:              job.UpdatedAt,
	}
}

// GenerationsSubmit admits a new generation job for the authenticated user.
func (a *App) GenerationsSubmit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	o := a.Hub.ForUser(userID)
	job, err := o.Submit(r.Context(), orchestrator.Request{
		Title:    req.Title,
		Prompt:   req.Prompt,
		Settings: req.Settings,
		Priority: req.Priority,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, jobView(job))
}

// GenerationsList returns the user's most recent jobs, newest first.
func (a *App) GenerationsList(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	jobs, err := a.Jobs.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.domainError(w, err)
		return
	}
	res := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		res = append(res, jobView(job))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": res})
}

// GenerationStatus returns a snapshot of one job. The tracked job is
// served live from the orchestrator; finished jobs come from the store.
func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	if cur := a.Hub.ForUser(userID).CurrentJob(); cur != nil && cur.ID.String() == jobID {
		a.json(w, http.StatusOK, jobView(cur))
		return
	}

	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil || job.UserID != userID {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, jobView(job))
}

// GenerationCancel cancels the tracked job.
func (a *App) GenerationCancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")

	o := a.Hub.ForUser(userID)
	cur := o.CurrentJob()
	if cur == nil || cur.ID.String() != jobID {
		a.error(w, http.StatusNotFound, "not_found", "job is not being tracked")
		return
	}
	if err := o.Cancel(r.Context()); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, jobView(o.CurrentJob()))
}

// GenerationRetry re-submits a failed job as a new one.
func (a *App) GenerationRetry(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")

	o := a.Hub.ForUser(userID)
	cur := o.CurrentJob()
	if cur == nil || cur.ID.String() != jobID {
		a.error(w, http.StatusNotFound, "not_found", "job is not being tracked")
		return
	}
	job, err := o.Retry(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, jobView(job))
}

// GenerationsCost quotes the cost of the given settings. Speculative:
// nothing is reserved.
func (a *App) GenerationsCost(w http.ResponseWriter, r *http.Request) {
	var settings domain.GenerationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	a.json(w, http.StatusOK, a.Pricing.Compute(settings))
}
