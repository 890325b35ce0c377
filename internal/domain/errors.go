package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNoActiveJob   = errors.New("no active job")
	ErrEntryNotFound = errors.New("queue entry not found")
)

// ErrorCode classifies generation failures for callers and for retry
// eligibility decisions.
type ErrorCode string

const (
	CodeValidation           ErrorCode = "validation_error"
	CodePermission           ErrorCode = "permission_error"
	CodeConcurrentGeneration ErrorCode = "concurrent_generation"
	CodeAPI                  ErrorCode = "api_error"
	CodeTimeout              ErrorCode = "timeout_error"
	CodeCancellationRejected ErrorCode = "cancellation_rejected"
	CodeContentPolicy        ErrorCode = "content_policy_violation"
)

// GenerationError is the typed failure surfaced by every operation. Message
// is human readable; Suggestion, when set, tells the user what to do next.
type GenerationError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	Retryable  bool      `json:"retryable"`
}

func (e *GenerationError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// AsGenerationError unwraps err into a GenerationError if one is present.
func AsGenerationError(err error) (*GenerationError, bool) {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}

func NewValidationError(msg, suggestion string) *GenerationError {
	return &GenerationError{Code: CodeValidation, Message: msg, Suggestion: suggestion}
}

func NewPermissionError(msg string) *GenerationError {
	return &GenerationError{
		Code:       CodePermission,
		Message:    msg,
		Suggestion: "upgrade your plan or top up credits",
	}
}

func NewConcurrentGenerationError() *GenerationError {
	return &GenerationError{
		Code:       CodeConcurrentGeneration,
		Message:    "a generation is already in progress",
		Suggestion: "wait for the current job to finish or cancel it",
	}
}

func NewAPIError(msg string, retryable bool) *GenerationError {
	return &GenerationError{Code: CodeAPI, Message: msg, Retryable: retryable}
}

func NewTimeoutError(msg string) *GenerationError {
	return &GenerationError{
		Code:       CodeTimeout,
		Message:    msg,
		Suggestion: "try again; the service may be under load",
		Retryable:  true,
	}
}

func NewCancellationRejected(msg string) *GenerationError {
	return &GenerationError{Code: CodeCancellationRejected, Message: msg}
}

func NewContentPolicyError(msg string) *GenerationError {
	return &GenerationError{
		Code:       CodeContentPolicy,
		Message:    msg,
		Suggestion: "rewrite the prompt to comply with the content policy",
	}
}
