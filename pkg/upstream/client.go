// Package upstream wraps the external OpenAI-compatible completion API
// with timeouts, bounded retries, and a typed error taxonomy. Expected
// operational failures are always returned as *Error values, never panics.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codelens-ai/codelens/pkg/config"
	"github.com/codelens-ai/codelens/pkg/models"
	"github.com/codelens-ai/codelens/pkg/prompt"
)

// ErrorKind classifies an upstream failure.
type ErrorKind string

const (
	ErrTimeout           ErrorKind = "timeout"
	ErrRateLimited       ErrorKind = "rate_limited"
	ErrAuthFailed        ErrorKind = "auth_failed"
	ErrUnavailable       ErrorKind = "unavailable"
	ErrMalformedResponse ErrorKind = "malformed_response"
)

// Error is a typed upstream failure.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

// Retryable reports whether the failure is transient and worth retrying.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrTimeout, ErrRateLimited, ErrUnavailable:
		return true
	}
	return false
}

// Result holds a successful completion from the upstream service.
type Result struct {
	Text    string
	Model   string
	Latency time.Duration
	Usage   *models.Usage
}

// Client calls the external completion service.
type Client struct {
	cfg        config.UpstreamConfig
	httpClient *http.Client
}

// New creates a Client from the given upstream configuration.
func New(cfg config.UpstreamConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Configured reports whether an API credential is set. Without one the
// orchestrator runs in fallback-only mode.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Complete sends the prompt upstream and returns the raw completion.
// Transient failures are retried with exponential backoff and jitter up to
// MaxRetries; non-transient failures return immediately. Each attempt is
// bounded by the configured per-call timeout, and ctx cancellation is
// honored both between and during attempts.
func (c *Client) Complete(ctx context.Context, p prompt.Prompt) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		result, err := c.doComplete(ctx, p)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var upErr *Error
		if !errors.As(err, &upErr) || !upErr.Retryable() {
			return nil, err
		}
		if attempt >= c.cfg.MaxRetries {
			break
		}
		if err := sleepBackoff(ctx, c.cfg, attempt); err != nil {
			return nil, &Error{Kind: ErrTimeout, Message: err.Error()}
		}
	}
	return nil, lastErr
}

func (c *Client) doComplete(ctx context.Context, p prompt.Prompt) (*Result, error) {
	temp := p.Temperature
	maxTokens := p.MaxTokens
	body, err := json.Marshal(models.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []models.ChatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	url := strings.TrimSuffix(c.cfg.URL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			return nil, &Error{Kind: ErrTimeout, Message: "request exceeded per-call timeout"}
		}
		if ctx.Err() != nil {
			return nil, &Error{Kind: ErrTimeout, Message: ctx.Err().Error()}
		}
		return nil, &Error{Kind: ErrUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrUnavailable, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, respBody)
	}

	var completion models.ChatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, &Error{Kind: ErrMalformedResponse, Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(completion.Choices) == 0 {
		return nil, &Error{Kind: ErrMalformedResponse, Status: resp.StatusCode, Message: "no choices in response"}
	}

	return &Result{
		Text:    completion.Choices[0].Message.Content,
		Model:   completion.Model,
		Latency: time.Since(start),
		Usage:   completion.Usage,
	}, nil
}

func classifyStatus(status int, body []byte) *Error {
	msg := upstreamMessage(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: ErrAuthFailed, Status: status, Message: msg}
	case status == http.StatusTooManyRequests:
		return &Error{Kind: ErrRateLimited, Status: status, Message: msg}
	case status >= 500:
		return &Error{Kind: ErrUnavailable, Status: status, Message: msg}
	default:
		// 4xx other than auth/rate-limit means we sent something the
		// API could not accept.
		return &Error{Kind: ErrMalformedResponse, Status: status, Message: msg}
	}
}

func upstreamMessage(body []byte) string {
	var envelope models.UpstreamErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
