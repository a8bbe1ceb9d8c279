// Package auth orchestrates the authentication lifecycle above the session
// store: app-start hydration, interactive login flows, and logout. Network
// failures here never block the user from reaching a stable authenticated or
// unauthenticated state; the only error surfaced to callers is a failed
// interactive login.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/oauth2"

	"github.com/tripmate/authkit/session"
)

// APIClient is the backend auth API surface the manager depends on.
// Satisfied by *authapi.Client.
type APIClient interface {
	Refresh(ctx context.Context, refreshToken string) (*session.Credentials, error)
	Logout(ctx context.Context, accessToken string) error
	ExchangeCode(ctx context.Context, provider, code, verifier string) (*session.Credentials, error)
	LoginWithIDToken(ctx context.Context, provider, idToken string) (*session.Credentials, error)
}

// Manager coordinates login, logout, and hydration across the session store,
// the backend API, and the OAuth provider.
type Manager struct {
	store  *session.Store
	api    APIClient
	logger *slog.Logger

	oauth      *oauth2.Config
	listenAddr string
	openURL    func(url string) error

	bootstrapOnce sync.Once
	ready         chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger for diagnostics.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithOAuthConfig sets the provider OAuth configuration used by the
// redirect-based login flow. Required for LoginWithProvider.
func WithOAuthConfig(cfg *oauth2.Config) ManagerOption {
	return func(m *Manager) {
		m.oauth = cfg
	}
}

// WithListenAddr sets the loopback address for the OAuth redirect listener.
// Defaults to 127.0.0.1:0 (an ephemeral port).
func WithListenAddr(addr string) ManagerOption {
	return func(m *Manager) {
		m.listenAddr = addr
	}
}

// WithURLOpener sets the function that presents the provider consent URL to
// the user (e.g. opening a browser). The default prints it to stdout.
func WithURLOpener(open func(url string) error) ManagerOption {
	return func(m *Manager) {
		m.openURL = open
	}
}

// NewManager creates a Manager over the given store and API client.
func NewManager(store *session.Store, api APIClient, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		api:        api,
		listenAddr: "127.0.0.1:0",
		ready:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if m.openURL == nil {
		m.openURL = func(url string) error {
			_, err := fmt.Fprintf(os.Stdout, "Open this URL to sign in:\n\n  %s\n\n", url)
			return err
		}
	}
	return m
}

// Bootstrap runs the app-start hydration exactly once. Hydration failures are
// logged and resolved to the unauthenticated state; either way the Ready
// channel is closed so startup gating (splash screen, first render) can end.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.bootstrapOnce.Do(func() {
		defer close(m.ready)
		if err := m.store.HydrateFromRefreshToken(ctx); err != nil {
			m.logger.Warn("session hydration failed, continuing unauthenticated", "error", err)
		}
	})
}

// Ready is closed once Bootstrap has finished, whatever the outcome.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// LoginWithIDToken performs the direct-credential login protocol: the
// provider-issued identity token is forwarded to the backend and the
// resulting session is adopted.
func (m *Manager) LoginWithIDToken(ctx context.Context, provider, idToken string) error {
	creds, err := m.api.LoginWithIDToken(ctx, provider, idToken)
	if err != nil {
		return err
	}
	return m.store.Login(ctx, creds.User, creds.AccessToken, creds.RefreshToken)
}

// Logout notifies the backend best-effort, then unconditionally clears the
// local session. The user can always leave the authenticated state even when
// the server is unreachable.
func (m *Manager) Logout(ctx context.Context) error {
	state := m.store.State()
	if err := m.api.Logout(ctx, state.AccessToken); err != nil {
		m.logger.Warn("logout notification failed, proceeding with local logout", "error", err)
	}
	return m.store.Logout(ctx)
}
