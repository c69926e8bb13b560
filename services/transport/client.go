package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBackendUnavailable is returned when a backend cannot be reached
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrModelNotServed is returned when a backend rejects the model name
	ErrModelNotServed = errors.New("model not served by backend")
)

// GenerateRequest is the unified shape of a generation call. The exact wire
// format is backend-specific; clients translate it.
type GenerateRequest struct {
	// Model is the model name as reported by the backend's model list
	Model string `json:"model"`

	// Prompt is the task text
	Prompt string `json:"prompt"`

	// Temperature is the sampling temperature
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens limits the generation budget
	MaxTokens int `json:"max_tokens,omitempty"`
}

// GenerateResponse is the unified shape of a generation result
type GenerateResponse struct {
	// Text is the generated output
	Text string `json:"text"`

	// PromptTokens counts tokens consumed by the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens counts generated tokens
	CompletionTokens int `json:"completion_tokens"`

	// Duration is the backend-reported (or measured) wall time
	Duration time.Duration `json:"duration"`

	// TokensPerSecond is the observed generation throughput
	TokensPerSecond float64 `json:"tokens_per_second"`
}

// Client is the pluggable wire contract to a backend. Implementations must
// be safe for concurrent use; every call must honor the context deadline.
type Client interface {
	// ListModels returns the model names served at baseURL
	ListModels(ctx context.Context, baseURL string) ([]string, error)

	// Generate runs one generation call at baseURL
	Generate(ctx context.Context, baseURL string, req *GenerateRequest) (*GenerateResponse, error)
}

// BackendError carries failure detail from a backend call
type BackendError struct {
	// Backend is the base URL or name of the failing backend
	Backend string

	// Op is the failing operation ("list_models", "generate")
	Op string

	// StatusCode is the HTTP status, when one was received
	StatusCode int

	// Retryable indicates whether the call may succeed elsewhere or later
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *BackendError) Error() string {
	msg := e.Op + " failed for " + e.Backend
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether an error may be retried on another attempt
// or another backend. Timeouts and connection errors are retryable; model
// rejections are not.
func IsRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}
