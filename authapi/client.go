// Package authapi is the client for the backend authentication API. It
// consumes the login, refresh, and logout endpoints; it implements none of
// them.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripmate/authkit/session"
)

const defaultTimeout = 10 * time.Second

// Client talks to the backend auth API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	logger       *slog.Logger
	credentialed bool
}

var _ session.Refresher = (*Client)(nil)

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("API base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing API base URL: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.credentialed && c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// apiEnvelope is the backend's response envelope.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    *apiMeta        `json:"meta,omitempty"`
	Error   *apiError       `json:"error,omitempty"`
}

type apiMeta struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
}

type apiError struct {
	Code    string            `json:"code"`
	Details []json.RawMessage `json:"details,omitempty"`
}

// Refresh exchanges the refresh credential for fresh session credentials.
// An empty refreshToken omits the body field and relies on the cookie jar
// (web model). Any non-2xx response is a refresh failure.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.Credentials, error) {
	body := map[string]string{}
	if refreshToken != "" {
		body["refreshToken"] = refreshToken
	}

	env, status, err := c.doRequest(ctx, http.MethodPost, "/auth/refresh", body, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRefreshFailed, status, env.Message)
	}
	return decodeCredentials(env)
}

// Logout notifies the backend that the session is ending, presenting the
// access credential as a bearer token when available. The caller is expected
// to proceed with local logout regardless of the result.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	env, status, err := c.doRequest(ctx, http.MethodPost, "/auth/logout", struct{}{}, accessToken)
	if err != nil {
		return fmt.Errorf("notifying logout: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("notifying logout: status %d: %s", status, env.Message)
	}
	return nil
}

// ExchangeCode forwards an authorization code (plus PKCE verifier) obtained
// from the provider consent flow to the backend's token exchange endpoint.
func (c *Client) ExchangeCode(ctx context.Context, provider, code, verifier string) (*session.Credentials, error) {
	body := map[string]string{
		"code":         code,
		"codeVerifier": verifier,
	}
	return c.login(ctx, "/auth/"+url.PathEscape(provider)+"/exchange", body)
}

// LoginWithIDToken forwards a provider-issued identity token to the backend.
// Both login protocols converge on the same credentials shape.
func (c *Client) LoginWithIDToken(ctx context.Context, provider, idToken string) (*session.Credentials, error) {
	body := map[string]string{"idToken": idToken}
	return c.login(ctx, "/auth/"+url.PathEscape(provider)+"/token", body)
}

func (c *Client) login(ctx context.Context, path string, body any) (*session.Credentials, error) {
	env, status, err := c.doRequest(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if status < 200 || status >= 300 {
		loginErr := &LoginError{Status: status, Message: env.Message}
		if env.Error != nil {
			loginErr.Code = env.Error.Code
		}
		return nil, loginErr
	}
	return decodeCredentials(env)
}

func decodeCredentials(env *apiEnvelope) (*session.Credentials, error) {
	var creds session.Credentials
	if err := json.Unmarshal(env.Data, &creds); err != nil {
		return nil, fmt.Errorf("decoding credentials payload: %w", err)
	}
	if creds.User == nil {
		return nil, fmt.Errorf("credentials payload has no user")
	}
	return &creds, nil
}

// doRequest performs one JSON request against the API and decodes the
// response envelope. HTTP error statuses are returned to the caller, not
// turned into errors here; only transport failures are.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, bearer string) (*apiEnvelope, int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	c.logger.Debug("auth api request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}

	env := &apiEnvelope{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, env); err != nil {
			// Non-JSON bodies (proxies, plain-text errors) still carry a
			// meaningful status; keep the text as the message.
			env.Message = strings.TrimSpace(string(data))
		}
	}

	c.logger.Debug("auth api response", "path", path, "status", resp.StatusCode, "request_id", requestID)
	return env, resp.StatusCode, nil
}
