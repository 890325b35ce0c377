package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func testSettings() GenerationSettings {
	return GenerationSettings{Resolution: "720p", DurationSeconds: 10, Quality: "balanced"}
}

func TestNewJob(t *testing.T) {
	now := time.Now()
	job := NewJob("user-1", "clip", "a prompt", testSettings(), 10, 2, now)

	if job.Status != JobStatusPending || job.Stage != StageQueued {
		t.Errorf("new job state = %s/%s, want pending/queued", job.Status, job.Stage)
	}
	if !job.ID.Provisional {
		t.Error("new job must carry a provisional id")
	}
	if job.ID.Value == "" {
		t.Error("provisional id must not be empty")
	}
	if job.Terminal() {
		t.Error("new job must not be terminal")
	}
}

func TestAdvance(t *testing.T) {
	now := time.Now()
	job := NewJob("user-1", "clip", "a prompt", testSettings(), 10, 2, now)

	eta := 30
	job.Advance(JobStatusProcessing, StageGenerating, 40, &eta, now)
	if job.Status != JobStatusProcessing || job.Stage != StageGenerating || job.Progress != 40 {
		t.Errorf("got %s/%s/%d", job.Status, job.Stage, job.Progress)
	}

	// Progress never moves backwards.
	job.Advance(JobStatusProcessing, StageProcessing, 20, nil, now)
	if job.Progress != 40 {
		t.Errorf("progress regressed to %d", job.Progress)
	}
	if job.Stage != StageProcessing {
		t.Errorf("stage = %s, want processing", job.Stage)
	}

	// Terminal statuses cannot be applied through Advance.
	job.Advance(JobStatusCompleted, "", 100, nil, now)
	if job.Status != JobStatusProcessing {
		t.Errorf("Advance applied a terminal status: %s", job.Status)
	}
}

func TestTerminalTransitionsAreFinal(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		apply func(*Job)
		want  JobStatus
	}{
		{"completed", func(j *Job) { j.Complete("https://cdn/v.mp4", "", nil, now) }, JobStatusCompleted},
		{"failed", func(j *Job) { j.Fail(NewAPIError("boom", true), now) }, JobStatusFailed},
		{"cancelled", func(j *Job) { j.Cancel(now) }, JobStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob("user-1", "clip", "a prompt", testSettings(), 10, 2, now)
			tt.apply(job)
			if job.Status != tt.want {
				t.Fatalf("status = %s, want %s", job.Status, tt.want)
			}

			// Every further transition is a no-op.
			job.Advance(JobStatusProcessing, StageGenerating, 99, nil, now)
			job.Complete("https://other/v.mp4", "", nil, now)
			job.Fail(NewAPIError("later", true), now)
			job.Cancel(now)
			if job.Status != tt.want {
				t.Errorf("terminal job mutated to %s", job.Status)
			}
		})
	}
}

func TestCompleteClearsErrorAndSetsProgress(t *testing.T) {
	now := time.Now()
	job := NewJob("user-1", "clip", "a prompt", testSettings(), 10, 2, now)
	job.Error = NewAPIError("transient", true)

	job.Complete("https://cdn/v.mp4", "https://cdn/t.jpg", &VideoMetadata{Resolution: "720p"}, now)

	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100", job.Progress)
	}
	if job.Error != nil {
		t.Error("completion must clear the error")
	}
	if job.VideoURL != "https://cdn/v.mp4" {
		t.Errorf("video url = %q", job.VideoURL)
	}
}

func TestCanRetry(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		mut  func(*Job)
		want bool
	}{
		{"retryable failure", func(j *Job) { j.Fail(NewAPIError("boom", true), now) }, true},
		{"non-retryable failure", func(j *Job) { j.Fail(NewContentPolicyError("rejected"), now) }, false},
		{"budget exhausted", func(j *Job) {
			j.RetryCount = 2
			j.Fail(NewAPIError("boom", true), now)
		}, false},
		{"not failed", func(j *Job) {}, false},
		{"cancelled", func(j *Job) { j.Cancel(now) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob("user-1", "clip", "a prompt", testSettings(), 10, 2, now)
			tt.mut(job)
			if got := job.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobIDMarshalsAsString(t *testing.T) {
	id := PersistedID("job-7")
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"job-7"` {
		t.Errorf("got %s", data)
	}
}

func TestGenerationErrorUnwrapping(t *testing.T) {
	err := error(NewTimeoutError("no result"))
	gerr, ok := AsGenerationError(err)
	if !ok {
		t.Fatal("expected a GenerationError")
	}
	if gerr.Code != CodeTimeout || !gerr.Retryable {
		t.Errorf("got %+v", gerr)
	}

	if _, ok := AsGenerationError(ErrNotFound); ok {
		t.Error("plain errors must not unwrap")
	}
}
