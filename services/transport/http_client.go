package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPClient speaks the ollama-style HTTP protocol: GET /api/tags for the
// model list and POST /api/generate for non-streaming generation.
type HTTPClient struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClient creates an HTTP transport client. The http.Client carries
// no global timeout; every call is bounded by its context.
func NewHTTPClient(logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{},
		logger: logger,
	}
}

// tagsResponse is the /api/tags payload
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the model names served at baseURL
func (c *HTTPClient) ListModels(ctx context.Context, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &BackendError{Backend: baseURL, Op: "list_models", Retryable: false, Cause: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &BackendError{Backend: baseURL, Op: "list_models", Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{
			Backend:    baseURL,
			Op:         "list_models",
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500,
			Cause:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var payload tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &BackendError{Backend: baseURL, Op: "list_models", Retryable: false, Cause: err}
	}

	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// generateRequest is the /api/generate request payload
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// generateResponse is the /api/generate response payload
type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	EvalDuration    int64  `json:"eval_duration"`  // nanoseconds
	TotalDuration   int64  `json:"total_duration"` // nanoseconds
}

// Generate runs one non-streaming generation call
func (c *HTTPClient) Generate(ctx context.Context, baseURL string, req *GenerateRequest) (*GenerateResponse, error) {
	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	body, err := json.Marshal(generateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Stream:  false,
		Options: options,
	})
	if err != nil {
		return nil, &BackendError{Backend: baseURL, Op: "generate", Retryable: false, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &BackendError{Backend: baseURL, Op: "generate", Retryable: false, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &BackendError{Backend: baseURL, Op: "generate", Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("backend rejected generation request",
			zap.String("backend", baseURL),
			zap.String("model", req.Model),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", msg))
		return nil, &BackendError{
			Backend:    baseURL,
			Op:         "generate",
			StatusCode: resp.StatusCode,
			Retryable:  false,
			Cause:      ErrModelNotServed,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{
			Backend:    baseURL,
			Op:         "generate",
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500,
			Cause:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &BackendError{Backend: baseURL, Op: "generate", Retryable: false, Cause: err}
	}

	duration := time.Duration(payload.TotalDuration)
	if duration <= 0 {
		duration = time.Since(start)
	}

	out := &GenerateResponse{
		Text:             payload.Response,
		PromptTokens:     payload.PromptEvalCount,
		CompletionTokens: payload.EvalCount,
		Duration:         duration,
	}
	if payload.EvalDuration > 0 && payload.EvalCount > 0 {
		out.TokensPerSecond = float64(payload.EvalCount) / (float64(payload.EvalDuration) / float64(time.Second))
	} else if duration > 0 && payload.EvalCount > 0 {
		out.TokensPerSecond = float64(payload.EvalCount) / duration.Seconds()
	}

	return out, nil
}
