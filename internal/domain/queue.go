package domain

import "time"

// Priority orders queue entries. It is a sort key only; a higher priority
// never preempts an already-active job.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Weight maps a priority to its sort rank. Unknown values rank as normal.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// QueueEntry wraps a job with queue bookkeeping. Position is 1-based among
// the not-yet-terminal entries of the owning queue and is recomputed on
// every read.
type QueueEntry struct {
	ID        string     `json:"id"`
	Job       *Job       `json:"-"`
	Priority  Priority   `json:"priority"`
	Position  int        `json:"position"`
	AddedAt   time.Time  `json:"added_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Active reports whether the entry occupies an active slot.
func (e *QueueEntry) Active() bool {
	return e.StartedAt != nil && e.Job != nil && !e.Job.Terminal()
}

// QueueStatus is the aggregate state of a user's queue.
type QueueStatus string

const (
	QueueIdle       QueueStatus = "idle"
	QueueProcessing QueueStatus = "processing"
	QueuePaused     QueueStatus = "paused"
)

// QueueStats are derived counts, recomputed on every read.
type QueueStats struct {
	Active    int `json:"active"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// QueueSnapshot is a read-only view of a user's queue handed to observers
// and persisted between sessions. ObservedAverageSeconds carries the
// average observed generation duration so a restored session starts with
// a seeded wait estimate instead of the cold default.
type QueueSnapshot struct {
	Status                 QueueStatus  `json:"status"`
	Entries                []QueueEntry `json:"entries"`
	Stats                  QueueStats   `json:"stats"`
	ObservedAverageSeconds int          `json:"observed_average_seconds,omitempty"`
}
