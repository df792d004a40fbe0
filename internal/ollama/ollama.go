// Package ollama is a minimal client for the Ollama REST API: health,
// installed-model listing, model pull, and non-streaming generation.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxRetries = 3

// APIError represents a non-2xx HTTP response from the Ollama server.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ollama: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout for non-streaming calls.
// Generation can legitimately take minutes on small hardware; size accordingly.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries sets the connection attempt count for WaitForServer.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRateLimit caps generate calls at rps requests per second. 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// Client talks to one Ollama server.
type Client struct {
	host       string
	httpClient *http.Client
	maxRetries int
	limiter    *rate.Limiter
}

// New creates a Client for the given host (e.g. "http://localhost:11434").
func New(host string, opts ...Option) *Client {
	c := &Client{
		host:       strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping checks server reachability via GET /api/version.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping %s: %w", c.host, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}

// WaitForServer pings the server until it responds, sleeping with exponential
// backoff (1s, 2s, 4s, ...) between attempts. Returns the last error after
// maxRetries failed attempts.
func (c *Client) WaitForServer(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		if err := c.Ping(ctx); err != nil {
			lastErr = err
			slog.Warn("ollama server not ready",
				"attempt", attempt+1, "max", c.maxRetries, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("ollama: server unreachable after %d attempts: %w", c.maxRetries, lastErr)
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// List returns the names of installed models via GET /api/tags.
func (c *Client) List(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: list models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: list models: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("ollama: decode tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// EnsureModel checks that the named model is installed and pulls it if not.
func (c *Client) EnsureModel(ctx context.Context, name string) error {
	installed, err := c.List(ctx)
	if err != nil {
		return err
	}
	for _, m := range installed {
		if m == name {
			slog.Info("model already available", "model", name)
			return nil
		}
	}

	slog.Info("pulling model", "model", name)
	if err := c.Pull(ctx, name); err != nil {
		return err
	}
	slog.Info("model pulled", "model", name)
	return nil
}

type pullStatus struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
}

// Pull downloads a model via POST /api/pull, consuming the streamed NDJSON
// status lines. Server-reported errors abort the pull.
func (c *Client) Pull(ctx context.Context, name string) error {
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/pull", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// Pulls run far longer than the regular timeout.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: pull %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lastStatus := ""
	for scanner.Scan() {
		var st pullStatus
		if err := json.Unmarshal(scanner.Bytes(), &st); err != nil {
			continue // tolerate malformed progress lines
		}
		if st.Error != "" {
			return fmt.Errorf("ollama: pull %s: %s", name, st.Error)
		}
		if st.Status != lastStatus {
			slog.Debug("pull progress", "model", name, "status", st.Status)
			lastStatus = st.Status
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("ollama: pull %s: read stream: %w", name, err)
	}
	return nil
}

// Options are per-request model parameters, mapped to Ollama's options object.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

// GenerateRequest is a non-streaming completion request.
type GenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

// GenerateResponse carries the completion and evaluation stats.
type GenerateResponse struct {
	Model         string `json:"model"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	TotalDuration int64  `json:"total_duration"`
	EvalCount     int    `json:"eval_count"`
}

// Generate runs a completion via POST /api/generate with stream=false.
// Retries on 5xx with exponential backoff (1s, 2s, 4s). Rate-limited when
// the client was built with WithRateLimit.
func (c *Client) Generate(ctx context.Context, greq GenerateRequest) (*GenerateResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	greq.Stream = false
	payload, err := json.Marshal(greq)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("ollama: generate: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("ollama: generate: read response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var gr GenerateResponse
			if err := json.Unmarshal(body, &gr); err != nil {
				return nil, fmt.Errorf("ollama: decode generate response: %w", err)
			}
			return &gr, nil
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
		if resp.StatusCode >= 500 {
			lastErr = apiErr
			continue
		}
		return nil, apiErr
	}
	return nil, lastErr
}

func truncateBody(b []byte) string {
	s := string(b)
	if len(s) > 512 {
		return s[:512]
	}
	return s
}
