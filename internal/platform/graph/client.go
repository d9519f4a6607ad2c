// Package graph is a thin client for the Meta Graph API messaging endpoints.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client posts message payloads to graph.facebook.com. Transient failures
// (transport errors and 5xx responses) are retried once.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	logger     *slog.Logger
}

// APIError is a non-2xx Graph API response.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

// acceptedError wraps a failure that happened after the platform returned a
// 2xx. The message was already delivered, so retrying would deliver it twice.
type acceptedError struct {
	err error
}

func (e *acceptedError) Error() string { return e.err.Error() }
func (e *acceptedError) Unwrap() error { return e.err }

// NewClient creates a Graph API client. Zero timeout defaults to 10s.
func NewClient(log *slog.Logger, baseURL, version string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		version:    strings.TrimSpace(version),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("component", "graph_client")),
	}
}

// Post sends body as JSON to /{version}/{path} with a bearer token and
// decodes the JSON response into out. A transport error or 5xx status is
// retried once before giving up.
func (c *Client) Post(ctx context.Context, path, accessToken string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, strings.TrimLeft(path, "/"))

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		lastErr = c.post(ctx, url, accessToken, payload, out)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
		c.logger.Warn("graph request retrying",
			slog.String("path", path),
			slog.Any("error", lastErr),
		)
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, url, accessToken string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &acceptedError{err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func isRetryable(err error) bool {
	var accepted *acceptedError
	if errors.As(err, &accepted) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	// Transport-level failures are retryable.
	return true
}
