package http

import (
	"context"
	"net/http"
	"os"
	"time"

	commonshttp "github.com/flanksource/commons/http"
	"github.com/flanksource/commons/logger"
	"golang.org/x/oauth2"
)

// ClientOption configures the HTTP client
type ClientOption func(*clientConfig)

type clientConfig struct {
	timeout      time.Duration
	headerLevel  logger.LogLevel
	bodyLevel    logger.LogLevel
	enableLogger bool
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithHttpLogging enables HTTP logging with specified levels
func WithHttpLogging(headerLevel, bodyLevel logger.LogLevel) ClientOption {
	return func(c *clientConfig) {
		c.headerLevel = headerLevel
		c.bodyLevel = bodyLevel
		c.enableLogger = true
	}
}

// GetHttpClient returns a configured HTTP client suitable for general use.
// It uses flanksource/commons/http for consistent logging and middleware
// support.
func GetHttpClient(opts ...ClientOption) *http.Client {
	cfg := &clientConfig{
		timeout:      30 * time.Second,
		headerLevel:  logger.Trace1,
		bodyLevel:    logger.Trace2,
		enableLogger: logger.IsTraceEnabled(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	client := commonshttp.NewClient().
		Timeout(cfg.timeout)

	if cfg.enableLogger {
		client = client.WithHttpLogging(cfg.headerLevel, cfg.bodyLevel)
	}

	return &http.Client{
		Transport: client,
		Timeout:   cfg.timeout,
	}
}

// GetGithubClient returns an HTTP client that authenticates against the
// GitHub API when GITHUB_TOKEN or GH_TOKEN is set; anonymous otherwise
func GetGithubClient(opts ...ClientOption) *http.Client {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GH_TOKEN")
	}
	if token == "" {
		return GetHttpClient(opts...)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, GetHttpClient(opts...))
	return oauth2.NewClient(ctx, ts)
}
