// Package video adapts the external long-running generation service. The
// orchestrator owns the polling discipline; this client only translates
// domain requests to API calls and normalizes responses and failures.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vidforge/internal/domain"
	"vidforge/internal/infra"
)

// RemoteStatus is the status vocabulary of the external service.
type RemoteStatus string

const (
	RemoteQueued       RemoteStatus = "queued"
	RemoteInitializing RemoteStatus = "initializing"
	RemoteGenerating   RemoteStatus = "generating"
	RemoteProcessing   RemoteStatus = "processing"
	RemoteFinalizing   RemoteStatus = "finalizing"
	RemoteUploading    RemoteStatus = "uploading"
	RemoteCompleted    RemoteStatus = "completed"
	RemoteFailed       RemoteStatus = "failed"
	RemoteCancelled    RemoteStatus = "cancelled"
)

// Terminal reports whether the remote job is finished.
func (s RemoteStatus) Terminal() bool {
	switch s {
	case RemoteCompleted, RemoteFailed, RemoteCancelled:
		return true
	default:
		return false
	}
}

// SubmitRequest carries the settings for one remote generation job.
type SubmitRequest struct {
	Prompt              string  `json:"prompt"`
	NegativePrompt      string  `json:"negative_prompt,omitempty"`
	Resolution          string  `json:"resolution"`
	DurationSeconds     int     `json:"duration_seconds"`
	Quality             string  `json:"quality"`
	Format              string  `json:"format,omitempty"`
	AspectRatio         string  `json:"aspect_ratio,omitempty"`
	GuidanceScale       float64 `json:"guidance_scale,omitempty"`
	Seed                *int64  `json:"seed,omitempty"`
	EnableUpscaling     bool    `json:"enable_upscaling,omitempty"`
	EnableStabilization bool    `json:"enable_stabilization,omitempty"`
	RequestID           string  `json:"request_id,omitempty"`
}

// PollResult is the normalized status report for one remote job.
type PollResult struct {
	Status                 RemoteStatus          `json:"status"`
	Progress               int                   `json:"progress"`
	EstimatedTimeRemaining *int                  `json:"estimated_time_remaining,omitempty"`
	VideoURL               string                `json:"video_url,omitempty"`
	ThumbnailURL           string                `json:"thumbnail_url,omitempty"`
	Metadata               *domain.VideoMetadata `json:"metadata,omitempty"`
	ErrorCode              string                `json:"error_code,omitempty"`
	ErrorMessage           string                `json:"error_message,omitempty"`
}

// Generator is the contract consumed by the orchestrator.
type Generator interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	Poll(ctx context.Context, externalJobID string) (*PollResult, error)
	Cancel(ctx context.Context, externalJobID string) error
	EnhancePrompt(ctx context.Context, text string) string
}

// Options controls how the generation client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is the HTTP implementation of Generator.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a generation client with sane defaults. Callers may
// provide a nil HTTP client; one with a reasonable timeout is created.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.vidforge.example.com/v1"
	}

	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// Submit sends a generation job and returns the external job id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	var res submitResponse
	if err := c.invoke(ctx, http.MethodPost, "/jobs", req, &res); err != nil {
		return "", err
	}
	if res.JobID == "" {
		return "", domain.NewAPIError("generation service returned no job id", true)
	}
	c.logger.Debug().
		Str("external_job_id", res.JobID).
		Str("request_id", req.RequestID).
		Msg("video: job submitted")
	return res.JobID, nil
}

// Poll fetches the current status of a remote job. Repeating the same poll
// has no side effect on the remote job.
func (c *Client) Poll(ctx context.Context, externalJobID string) (*PollResult, error) {
	var res PollResult
	if err := c.invoke(ctx, http.MethodGet, "/jobs/"+externalJobID, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Cancel requests cancellation of a remote job. The service may reject it
// when generation is past the point of no return; that surfaces as a
// CancellationRejected error and the job keeps running.
func (c *Client) Cancel(ctx context.Context, externalJobID string) error {
	return c.invoke(ctx, http.MethodPost, "/jobs/"+externalJobID+"/cancel", nil, nil)
}

// EnhancePrompt asks the service for an improved prompt. Enhancement is
// best-effort: any failure returns the original text unchanged.
func (c *Client) EnhancePrompt(ctx context.Context, text string) string {
	payload := map[string]string{"prompt": text}
	var res struct {
		Prompt string `json:"prompt"`
	}
	if err := c.invoke(ctx, http.MethodPost, "/prompts/enhance", payload, &res); err != nil {
		c.logger.Warn().Err(err).Msg("video: prompt enhancement failed, using original")
		return text
	}
	if strings.TrimSpace(res.Prompt) == "" {
		return text
	}
	return res.Prompt
}

func (c *Client) invoke(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewAPIError(fmt.Sprintf("generation service unreachable: %v", err), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewAPIError(fmt.Sprintf("decode response: %v", err), true)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var apiErr apiErrorResponse
	msg := fmt.Sprintf("generation service status %d", resp.StatusCode)
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity || apiErr.Error.Code == "content_policy_violation":
		return domain.NewContentPolicyError(msg)
	case resp.StatusCode == http.StatusConflict:
		return domain.NewCancellationRejected(msg)
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.NewAPIError(msg, true)
	default:
		return domain.NewAPIError(msg, false)
	}
}

var _ Generator = (*Client)(nil)
