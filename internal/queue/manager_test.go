package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidforge/internal/domain"
)

func newJob(t *testing.T) *domain.Job {
	t.Helper()
	return domain.NewJob("user-1", "clip", "a prompt", domain.GenerationSettings{
		Resolution: "720p", DurationSeconds: 10, Quality: "balanced",
	}, 10, 2, time.Now())
}

func TestEnqueueOrdersByPriorityThenAge(t *testing.T) {
	m := NewManager(1)

	low := m.Enqueue(newJob(t), domain.PriorityLow)
	normal := m.Enqueue(newJob(t), domain.PriorityNormal)
	high := m.Enqueue(newJob(t), domain.PriorityHigh)

	pos, err := m.Position(high.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = m.Position(normal.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	pos, err = m.Position(low.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
}

func TestEnqueueDoesNotDisplaceActiveEntry(t *testing.T) {
	m := NewManager(1)

	first := m.Enqueue(newJob(t), domain.PriorityNormal)
	started := m.Advance()
	require.NotNil(t, started)
	require.Equal(t, first.ID, started.ID)

	high := m.Enqueue(newJob(t), domain.PriorityHigh)

	pos, err := m.Position(first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pos, "active entry keeps the head position")

	pos, err = m.Position(high.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestAdvanceRespectsSlotLimit(t *testing.T) {
	m := NewManager(1)

	m.Enqueue(newJob(t), domain.PriorityNormal)
	m.Enqueue(newJob(t), domain.PriorityNormal)

	require.NotNil(t, m.Advance())
	assert.Nil(t, m.Advance(), "single slot occupied")

	stats := m.Stats()
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Pending)
}

func TestAdvanceWithMultipleSlots(t *testing.T) {
	m := NewManager(2)

	m.Enqueue(newJob(t), domain.PriorityNormal)
	m.Enqueue(newJob(t), domain.PriorityNormal)
	m.Enqueue(newJob(t), domain.PriorityNormal)

	require.NotNil(t, m.Advance())
	require.NotNil(t, m.Advance())
	assert.Nil(t, m.Advance())
	assert.Equal(t, 2, m.Stats().Active)
}

func TestPauseBlocksAdvance(t *testing.T) {
	m := NewManager(1)
	m.Enqueue(newJob(t), domain.PriorityNormal)

	m.Pause()
	assert.Nil(t, m.Advance())
	assert.Equal(t, domain.QueuePaused, m.Status())

	m.Resume()
	assert.NotNil(t, m.Advance())
	assert.Equal(t, domain.QueueProcessing, m.Status())
}

func TestReleaseUpdatesStats(t *testing.T) {
	m := NewManager(1)

	e1 := m.Enqueue(newJob(t), domain.PriorityNormal)
	require.NotNil(t, m.Advance())
	m.Release(e1.ID, domain.JobStatusCompleted)

	e2 := m.Enqueue(newJob(t), domain.PriorityNormal)
	require.NotNil(t, m.Advance())
	m.Release(e2.ID, domain.JobStatusFailed)

	stats := m.Stats()
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, domain.QueueIdle, m.Status())
}

func TestDequeueRemovesEntry(t *testing.T) {
	m := NewManager(1)
	e := m.Enqueue(newJob(t), domain.PriorityNormal)

	removed, err := m.Dequeue(e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, removed.ID)

	_, err = m.Position(e.ID)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = m.Dequeue("missing")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestClearReturnsRemovedEntries(t *testing.T) {
	m := NewManager(1)
	m.Enqueue(newJob(t), domain.PriorityNormal)
	m.Enqueue(newJob(t), domain.PriorityNormal)

	removed := m.Clear()
	assert.Len(t, removed, 2)
	assert.Empty(t, m.Snapshot().Entries)
}

func TestEstimatedWaitDefaultsWithoutHistory(t *testing.T) {
	m := NewManager(1)
	e1 := m.Enqueue(newJob(t), domain.PriorityNormal)
	e2 := m.Enqueue(newJob(t), domain.PriorityNormal)

	wait, err := m.EstimatedWait(e1.ID)
	require.NoError(t, err)
	assert.Equal(t, defaultWait, wait)

	wait, err = m.EstimatedWait(e2.ID)
	require.NoError(t, err)
	assert.Equal(t, 2*defaultWait, wait)
}

func TestEstimatedWaitUsesMovingAverage(t *testing.T) {
	m := NewManager(1)
	m.Observe(30 * time.Second)
	m.Observe(60 * time.Second)

	e := m.Enqueue(newJob(t), domain.PriorityNormal)
	wait, err := m.EstimatedWait(e.ID)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, wait)
}

func TestObserveBoundsHistory(t *testing.T) {
	m := NewManager(1)
	for i := 0; i < historySize; i++ {
		m.Observe(time.Hour)
	}
	// Newer observations push the old ones out of the window.
	for i := 0; i < historySize; i++ {
		m.Observe(10 * time.Second)
	}

	e := m.Enqueue(newJob(t), domain.PriorityNormal)
	wait, err := m.EstimatedWait(e.ID)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, wait)
}

func TestReleaseFeedsCompletionIntoAverage(t *testing.T) {
	m := NewManager(1)
	base := time.Now()
	m.now = func() time.Time { return base }

	e := m.Enqueue(newJob(t), domain.PriorityNormal)
	require.NotNil(t, m.Advance())

	m.now = func() time.Time { return base.Add(40 * time.Second) }
	m.Release(e.ID, domain.JobStatusCompleted)

	next := m.Enqueue(newJob(t), domain.PriorityNormal)
	wait, err := m.EstimatedWait(next.ID)
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, wait)
}

func TestPositionsStayGaplessAcrossRemovals(t *testing.T) {
	m := NewManager(1)

	entries := make([]*domain.QueueEntry, 0, 5)
	for i := 0; i < 5; i++ {
		entries = append(entries, m.Enqueue(newJob(t), domain.PriorityNormal))
	}

	// Remove from the middle, activate the head, release it, and add one
	// more; survivors must always rank exactly 1..N.
	_, err := m.Dequeue(entries[2].ID)
	require.NoError(t, err)

	require.NotNil(t, m.Advance())
	m.Release(entries[0].ID, domain.JobStatusCompleted)

	entries = append(entries, m.Enqueue(newJob(t), domain.PriorityNormal))

	survivors := []*domain.QueueEntry{entries[1], entries[3], entries[4], entries[5]}
	for want, e := range survivors {
		pos, err := m.Position(e.ID)
		require.NoError(t, err)
		assert.Equal(t, want+1, pos)
	}

	snap := m.Snapshot()
	require.Len(t, snap.Entries, len(survivors))
	for i, e := range snap.Entries {
		assert.Equal(t, i+1, e.Position, "snapshot positions must be a gapless 1..N")
	}
}

func TestSnapshotCarriesObservedAverage(t *testing.T) {
	m := NewManager(1)
	assert.Zero(t, m.Snapshot().ObservedAverageSeconds)

	m.Observe(30 * time.Second)
	m.Observe(60 * time.Second)
	assert.Equal(t, 45, m.Snapshot().ObservedAverageSeconds)
}

func TestSnapshotAssignsFreshPositions(t *testing.T) {
	m := NewManager(1)
	m.Enqueue(newJob(t), domain.PriorityLow)
	m.Enqueue(newJob(t), domain.PriorityHigh)

	snap := m.Snapshot()
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, domain.PriorityHigh, snap.Entries[0].Priority)
	assert.Equal(t, 1, snap.Entries[0].Position)
	assert.Equal(t, 2, snap.Entries[1].Position)
	assert.Equal(t, domain.QueueIdle, snap.Status)
}
