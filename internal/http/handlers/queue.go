package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vidforge/internal/domain"
	"vidforge/internal/middleware"
)

type queueEntryResponse struct {
	ID                   string           `json:"id"`
	JobID                string           `json:"job_id"`
	Status               domain.JobStatus `json:"status"`
	Priority             domain.Priority  `json:"priority"`
	Position             int              `json:"position"`
	AddedAt              time.Time        `json:"added_at"`
	StartedAt            *time.Time       `json:"started_at,omitempty"`
	EstimatedWaitSeconds int              `json:"estimated_wait_seconds"`
}

type queueResponse struct {
	Status  domain.QueueStatus   `json:"status"`
	Entries []queueEntryResponse `json:"entries"`
	Stats   domain.QueueStats    `json:"stats"`
}

// QueueSnapshot returns the user's queue with fresh positions and wait
// estimates.
func (a *App) QueueSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	q := a.Hub.ForUser(userID).Queue()
	snap := q.Snapshot()
	res := queueResponse{Status: snap.Status, Stats: snap.Stats}
	for _, e := range snap.Entries {
		item := queueEntryResponse{
			ID:        e.ID,
			Priority:  e.Priority,
			Position:  e.Position,
			AddedAt:   e.AddedAt,
			StartedAt: e.StartedAt,
		}
		if e.Job != nil {
			item.JobID = e.Job.ID.String()
			item.Status = e.Job.Status
		}
		if wait, err := q.EstimatedWait(e.ID); err == nil {
			item.EstimatedWaitSeconds = int(wait.Seconds())
		}
		res.Entries = append(res.Entries, item)
	}
	a.json(w, http.StatusOK, res)
}

// QueuePause stops the queue from starting new jobs.
func (a *App) QueuePause(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	a.Hub.ForUser(userID).PauseQueue(r.Context())
	a.json(w, http.StatusOK, map[string]string{"status": string(domain.QueuePaused)})
}

// QueueResume lets the queue start jobs again.
func (a *App) QueueResume(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	o := a.Hub.ForUser(userID)
	o.ResumeQueue(r.Context())
	a.json(w, http.StatusOK, map[string]string{"status": string(o.Queue().Status())})
}

// QueueClear removes every entry, cancelling active jobs best-effort.
func (a *App) QueueClear(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	a.Hub.ForUser(userID).ClearQueue(r.Context())
	a.json(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// QueueRemove removes one entry by id.
func (a *App) QueueRemove(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	entryID := chi.URLParam(r, "entry_id")
	if entryID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "entry_id required")
		return
	}
	if err := a.Hub.ForUser(userID).RemoveEntry(r.Context(), entryID); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "removed"})
}
