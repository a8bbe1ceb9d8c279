package authapi

import (
	"log/slog"
	"net/http"
	"time"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client for making requests.
// Useful for testing, proxying, or custom transport configurations.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP request timeout. Defaults to 10 seconds.
// Refresh and login calls are not retried or cancelled by the client itself;
// the timeout is the only bound on them.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the structured logger for request diagnostics.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCredentialedRequests puts the client in the web-platform cookie model:
// a cookie jar is attached so the browser-style HTTP-only refresh cookie is
// stored and replayed automatically, and the refresh request body omits the
// credential.
func WithCredentialedRequests() Option {
	return func(c *Client) {
		c.credentialed = true
	}
}
