// Package queue maintains the ordered set of not-yet-terminal generation
// jobs for one user. The manager never performs generation itself; it only
// decides which entry is active next and derives positions, wait estimates
// and stats. The orchestrator is its only writer.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidforge/internal/domain"
)

const (
	// defaultWait is the ETA baseline used before any generation has
	// completed for the user.
	defaultWait = 120 * time.Second

	// historySize bounds the moving average over observed generation
	// durations.
	historySize = 10
)

// Manager owns one user's queue. All methods are safe for concurrent use;
// reads always reflect the latest mutation.
type Manager struct {
	mu          sync.Mutex
	entries     []*domain.QueueEntry
	paused      bool
	activeSlots int

	history   []time.Duration
	completed int
	failed    int

	now func() time.Time
}

// NewManager creates an empty queue with the given number of active slots.
// Slot counts below one are clamped to one.
func NewManager(activeSlots int) *Manager {
	if activeSlots < 1 {
		activeSlots = 1
	}
	return &Manager{
		activeSlots: activeSlots,
		now:         time.Now,
	}
}

// Enqueue appends a job. Entries order by (priority desc, addedAt asc);
// an already-active entry is never displaced by a later high-priority one.
func (m *Manager) Enqueue(job *domain.Job, priority domain.Priority) *domain.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &domain.QueueEntry{
		ID:       uuid.NewString(),
		Job:      job,
		Priority: priority,
		AddedAt:  m.now(),
	}
	m.entries = append(m.entries, entry)
	m.reorderLocked()
	return entry
}

// Dequeue removes the entry with the given id. The removed entry is
// returned so the caller can cancel its remote job if it was active.
func (m *Manager) Dequeue(entryID string) (*domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.entries {
		if e.ID == entryID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return e, nil
		}
	}
	return nil, domain.ErrEntryNotFound
}

// Clear empties the queue and returns the removed entries. Cancellation of
// any active jobs among them is the caller's responsibility and is
// best-effort; a rejected cancel does not restore the entry.
func (m *Manager) Clear() []*domain.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := m.entries
	m.entries = nil
	return removed
}

// Pause stops the queue from starting new jobs. Entries already active
// are unaffected.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume allows the queue to start jobs again.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

// Paused reports whether the queue is paused.
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Advance promotes the next eligible pending entry into an active slot and
// returns it, or nil when paused, full, or empty. Eligibility follows the
// queue order: highest priority first, oldest first within a priority.
func (m *Manager) Advance() *domain.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused || m.activeCountLocked() >= m.activeSlots {
		return nil
	}
	for _, e := range m.entries {
		if e.StartedAt == nil && e.Job != nil && !e.Job.Terminal() {
			started := m.now()
			e.StartedAt = &started
			return e
		}
	}
	return nil
}

// Release removes a finished entry and folds its outcome into the derived
// stats. Completed entries feed the wait-estimate moving average.
func (m *Manager) Release(entryID string, status domain.JobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.entries {
		if e.ID != entryID {
			continue
		}
		switch status {
		case domain.JobStatusCompleted:
			m.completed++
			if e.StartedAt != nil {
				m.observeLocked(m.now().Sub(*e.StartedAt))
			}
		case domain.JobStatusFailed:
			m.failed++
		}
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
		return
	}
}

// Position returns the 1-based rank of the entry among not-terminal
// entries. It is recomputed from scratch on every call.
func (m *Manager) Position(entryID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := 0
	for _, e := range m.entries {
		if e.Job == nil || e.Job.Terminal() {
			continue
		}
		pos++
		if e.ID == entryID {
			return pos, nil
		}
	}
	return 0, domain.ErrEntryNotFound
}

// EstimatedWait returns position x the moving average of recently observed
// generation durations, falling back to a fixed default with no history.
func (m *Manager) EstimatedWait(entryID string) (time.Duration, error) {
	pos, err := m.Position(entryID)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Duration(pos) * m.averageLocked(), nil
}

// Stats recomputes the derived counts from entry statuses.
func (m *Manager) Stats() domain.QueueStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

// Status derives the aggregate queue state.
func (m *Manager) Status() domain.QueueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Snapshot returns a read-only view with fresh positions for observers.
func (m *Manager) Snapshot() domain.QueueSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := domain.QueueSnapshot{
		Status: m.statusLocked(),
		Stats:  m.statsLocked(),
	}
	if len(m.history) > 0 {
		snap.ObservedAverageSeconds = int(m.averageLocked() / time.Second)
	}
	pos := 0
	for _, e := range m.entries {
		view := *e
		if e.Job != nil && !e.Job.Terminal() {
			pos++
			view.Position = pos
		}
		snap.Entries = append(snap.Entries, view)
	}
	return snap
}

// Observe records a generation duration from outside the queue, used when
// a session is restored with prior history.
func (m *Manager) Observe(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observeLocked(d)
}

func (m *Manager) statusLocked() domain.QueueStatus {
	if m.paused {
		return domain.QueuePaused
	}
	if m.activeCountLocked() > 0 {
		return domain.QueueProcessing
	}
	return domain.QueueIdle
}

func (m *Manager) statsLocked() domain.QueueStats {
	stats := domain.QueueStats{Completed: m.completed, Failed: m.failed}
	for _, e := range m.entries {
		if e.Job == nil || e.Job.Terminal() {
			continue
		}
		if e.Active() {
			stats.Active++
		} else {
			stats.Pending++
		}
	}
	return stats
}

func (m *Manager) activeCountLocked() int {
	n := 0
	for _, e := range m.entries {
		if e.Active() {
			n++
		}
	}
	return n
}

func (m *Manager) observeLocked(d time.Duration) {
	if d <= 0 {
		return
	}
	m.history = append(m.history, d)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

func (m *Manager) averageLocked() time.Duration {
	if len(m.history) == 0 {
		return defaultWait
	}
	var sum time.Duration
	for _, d := range m.history {
		sum += d
	}
	return sum / time.Duration(len(m.history))
}

// reorderLocked sorts pending entries by (priority desc, addedAt asc)
// while keeping active entries ahead in their start order.
func (m *Manager) reorderLocked() {
	sort.SliceStable(m.entries, func(i, j int) bool {
		a, b := m.entries[i], m.entries[j]
		if a.Active() != b.Active() {
			return a.Active()
		}
		if a.Active() && b.Active() {
			return a.StartedAt.Before(*b.StartedAt)
		}
		if a.Priority.Weight() != b.Priority.Weight() {
			return a.Priority.Weight() > b.Priority.Weight()
		}
		return a.AddedAt.Before(b.AddedAt)
	})
}
