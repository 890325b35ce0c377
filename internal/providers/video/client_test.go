package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidforge/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
}

func TestSubmit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer key", got)
		}
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Prompt != "a sunset" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(map[string]string{"job_id": "ext-42"})
	})

	id, err := client.Submit(context.Background(), SubmitRequest{
		Prompt: "a sunset", Resolution: "720p", DurationSeconds: 10, Quality: "balanced",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "ext-42" {
		t.Errorf("job id = %q, want ext-42", id)
	}
}

func TestSubmitMissingJobID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})

	_, err := client.Submit(context.Background(), SubmitRequest{Prompt: "x"})
	gerr, ok := domain.AsGenerationError(err)
	if !ok {
		t.Fatalf("expected typed error, got %v", err)
	}
	if gerr.Code != domain.CodeAPI || !gerr.Retryable {
		t.Errorf("got %+v, want retryable api error", gerr)
	}
}

func TestPoll(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/jobs/ext-42" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(PollResult{
			Status: RemoteGenerating, Progress: 55,
		})
	})

	res, err := client.Poll(context.Background(), "ext-42")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Status != RemoteGenerating || res.Progress != 55 {
		t.Errorf("got %+v", res)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  domain.ErrorCode
		retryable bool
	}{
		{
			name:     "content policy by status",
			status:   http.StatusUnprocessableEntity,
			body:     `{"error":{"message":"prompt violates policy"}}`,
			wantCode: domain.CodeContentPolicy,
		},
		{
			name:     "content policy by code",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":"content_policy_violation","message":"nope"}}`,
			wantCode: domain.CodeContentPolicy,
		},
		{
			name:     "cancellation rejected",
			status:   http.StatusConflict,
			body:     `{"error":{"message":"generation finished"}}`,
			wantCode: domain.CodeCancellationRejected,
		},
		{
			name:      "server error is retryable",
			status:    http.StatusInternalServerError,
			body:      `{}`,
			wantCode:  domain.CodeAPI,
			retryable: true,
		},
		{
			name:     "client error is not retryable",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"bad request"}}`,
			wantCode: domain.CodeAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.Poll(context.Background(), "ext-42")
			gerr, ok := domain.AsGenerationError(err)
			if !ok {
				t.Fatalf("expected typed error, got %v", err)
			}
			if gerr.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", gerr.Code, tt.wantCode)
			}
			if gerr.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", gerr.Retryable, tt.retryable)
			}
		})
	}
}

func TestCancelRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/ext-42/cancel" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"message":"too late"}}`))
	})

	err := client.Cancel(context.Background(), "ext-42")
	gerr, ok := domain.AsGenerationError(err)
	if !ok || gerr.Code != domain.CodeCancellationRejected {
		t.Fatalf("got %v, want cancellation_rejected", err)
	}
}

func TestEnhancePromptFallsBackToOriginal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if got := client.EnhancePrompt(context.Background(), "a sunset"); got != "a sunset" {
		t.Errorf("got %q, want the original prompt", got)
	}
}

func TestEnhancePrompt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"prompt": "a golden sunset, cinematic"})
	})

	if got := client.EnhancePrompt(context.Background(), "a sunset"); got != "a golden sunset, cinematic" {
		t.Errorf("got %q", got)
	}
}

func TestUnreachableServiceIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewClient(Options{BaseURL: srv.URL})

	_, err := client.Poll(context.Background(), "ext-42")
	gerr, ok := domain.AsGenerationError(err)
	if !ok || gerr.Code != domain.CodeAPI || !gerr.Retryable {
		t.Fatalf("got %v, want retryable api error", err)
	}
}
