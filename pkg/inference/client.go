package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/lookout/pkg/frame"
)

// Client talks to any OpenAI-compatible server (LM Studio, llama.cpp, Ollama, vLLM).
type Client struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a new inference client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("inference: max tokens must be positive, got %d", cfg.MaxTokens)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = DefaultConfig().HTTPClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		config: cfg,
		http:   cfg.HTTPClient,
		logger: cfg.Logger.With("component", "inference.client"),
	}, nil
}

// Send performs one round trip and returns the first completion's text, or
// a description of what went wrong. It never panics on bad input.
func (c *Client) Send(ctx context.Context, endpoint, instruction string, img frame.Image) string {
	start := time.Now()

	text, err := c.complete(ctx, endpoint, instruction, img)
	if err != nil {
		c.logger.Warn("completion failed",
			"endpoint", endpoint,
			"latency_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return Describe(err)
	}

	c.logger.Debug("completion received",
		"endpoint", endpoint,
		"latency_ms", time.Since(start).Milliseconds(),
		"chars", len(text),
	)
	return text
}

// complete does the work of Send with explicit errors.
func (c *Client) complete(ctx context.Context, endpoint, instruction string, img frame.Image) (string, error) {
	base, err := baseURL(endpoint)
	if err != nil {
		return "", err
	}

	payload := NewVisionRequest(c.config.Model, c.config.MaxTokens, instruction, img)
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+CompletionsPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.parseError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("decode response: body is not valid JSON")
	}

	content, ok := firstContent(data)
	if !ok {
		return "", ErrInvalidResponse
	}
	return content, nil
}

// Health checks that the endpoint answers GET /v1/models.
func (c *Client) Health(ctx context.Context, endpoint string) error {
	base, err := baseURL(endpoint)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+ModelsPath, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// parseError reads a bounded excerpt of an error response.
func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(c.config.MaxErrorBody)))
	return &APIError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func baseURL(endpoint string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if base == "" {
		return "", ErrEmptyEndpoint
	}
	return base, nil
}

// Verify Client implements Sender at compile time.
var _ Sender = (*Client)(nil)
