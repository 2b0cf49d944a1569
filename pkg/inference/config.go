package inference

import (
	"log/slog"
	"net/http"

	"github.com/teslashibe/lookout/internal/httpc"
	"github.com/teslashibe/lookout/internal/log"
)

// Config holds client configuration.
type Config struct {
	// Model is sent when set. Single-model local servers ignore it.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// MaxErrorBody caps how much of an error body is kept.
	MaxErrorBody int

	// HTTPClient performs requests. The default has no overall timeout:
	// the sampling loop's skip-if-busy policy is the only backpressure.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithMaxTokens sets max_tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithMaxErrorBody sets how many bytes of an error body are reported.
func WithMaxErrorBody(n int) Option {
	return func(c *Config) { c.MaxErrorBody = n }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the defaults used by the original app.
func DefaultConfig() *Config {
	return &Config{
		MaxTokens:    100,
		MaxErrorBody: 512,
		HTTPClient:   httpc.NewClient(0),
		Logger:       log.L(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
