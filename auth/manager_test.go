package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tripmate/authkit/session"
	"github.com/tripmate/authkit/storage"
	"github.com/tripmate/authkit/storage/memory"
	"github.com/tripmate/authkit/vault"
)

type fakeAPI struct {
	refreshCreds  *session.Credentials
	refreshErr    error
	refreshCalls  int
	gotRefresh    string
	logoutErr     error
	logoutCalls   int
	gotBearer     string
	exchangeCreds *session.Credentials
	exchangeErr   error
	gotCode       string
	gotVerifier   string
	idTokenCreds  *session.Credentials
	idTokenErr    error
}

func (f *fakeAPI) Refresh(ctx context.Context, refreshToken string) (*session.Credentials, error) {
	f.refreshCalls++
	f.gotRefresh = refreshToken
	return f.refreshCreds, f.refreshErr
}

func (f *fakeAPI) Logout(ctx context.Context, accessToken string) error {
	f.logoutCalls++
	f.gotBearer = accessToken
	return f.logoutErr
}

func (f *fakeAPI) ExchangeCode(ctx context.Context, provider, code, verifier string) (*session.Credentials, error) {
	f.gotCode = code
	f.gotVerifier = verifier
	return f.exchangeCreds, f.exchangeErr
}

func (f *fakeAPI) LoginWithIDToken(ctx context.Context, provider, idToken string) (*session.Credentials, error) {
	return f.idTokenCreds, f.idTokenErr
}

func newTestManager(t *testing.T, api *fakeAPI, opts ...ManagerOption) (*Manager, *session.Store) {
	t.Helper()
	adapter := storage.NewSecureAdapter(memory.NewStore(), vault.NewMemory())
	store := session.NewStore(adapter, api)
	return NewManager(store, api, opts...), store
}

func TestBootstrap_RunsHydrationOnceAndSignalsReady(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, store := newTestManager(t, api)

	select {
	case <-m.Ready():
		t.Fatal("ready before bootstrap")
	default:
	}

	m.Bootstrap(ctx)
	m.Bootstrap(ctx)

	select {
	case <-m.Ready():
	default:
		t.Fatal("ready not signalled after bootstrap")
	}

	assert.True(t, store.Hydrated())
	assert.Zero(t, api.refreshCalls, "no stored credential, no network call")
}

func TestBootstrap_HydrationFailureStillSignalsReady(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{refreshErr: errors.New("backend down")}
	m, store := newTestManager(t, api)

	// Seed a stored credential so hydration attempts the exchange.
	require.NoError(t, store.Login(ctx, &session.User{ID: "u0"}, "at-0", "rt-0"))

	m.Bootstrap(ctx)

	select {
	case <-m.Ready():
	default:
		t.Fatal("ready not signalled despite hydration failure")
	}
	assert.False(t, store.State().IsAuthenticated)
}

func TestLogout_SwallowsServerFailure(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{logoutErr: errors.New("server unreachable")}
	m, store := newTestManager(t, api)

	require.NoError(t, store.Login(ctx, &session.User{ID: "u1"}, "at-1", "rt-1"))
	require.NoError(t, m.Logout(ctx))

	assert.Equal(t, 1, api.logoutCalls)
	assert.Equal(t, "at-1", api.gotBearer)
	assert.False(t, store.State().IsAuthenticated)
	assert.Nil(t, store.State().User)
}

func TestLoginWithIDToken_Success(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{idTokenCreds: &session.Credentials{
		User:         &session.User{ID: "u1"},
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
	}}
	m, store := newTestManager(t, api)

	require.NoError(t, m.LoginWithIDToken(ctx, "google", "id-token"))

	state := store.State()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "u1", state.User.ID)
}

func TestLoginWithIDToken_FailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{idTokenErr: errors.New("invalid token")}
	m, store := newTestManager(t, api)

	err := m.LoginWithIDToken(ctx, "google", "bad")
	assert.Error(t, err)
	assert.False(t, store.State().IsAuthenticated)
}

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(expiresIn).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestRefreshIfNeeded_SkipsWhenTokenStillValid(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, store := newTestManager(t, api)
	require.NoError(t, store.Login(ctx, &session.User{ID: "u1"}, signedToken(t, time.Hour), "rt-1"))

	require.NoError(t, m.RefreshIfNeeded(ctx))
	assert.Zero(t, api.refreshCalls)
}

func TestRefreshIfNeeded_RefreshesExpiringToken(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{refreshCreds: &session.Credentials{
		User:        &session.User{ID: "u1"},
		AccessToken: "at-2",
	}}
	m, store := newTestManager(t, api)
	require.NoError(t, store.Login(ctx, &session.User{ID: "u1"}, signedToken(t, 5*time.Second), "rt-1"))

	require.NoError(t, m.RefreshIfNeeded(ctx))

	assert.Equal(t, 1, api.refreshCalls)
	assert.Equal(t, "rt-1", api.gotRefresh)
	state := store.State()
	assert.Equal(t, "at-2", state.AccessToken)
	assert.Equal(t, "rt-1", state.RefreshToken, "unrotated credential is kept")
}

func TestRefreshIfNeeded_AdoptsRotatedCredential(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{refreshCreds: &session.Credentials{
		User:         &session.User{ID: "u1"},
		AccessToken:  "at-2",
		RefreshToken: "rt-2",
	}}
	m, store := newTestManager(t, api)
	require.NoError(t, store.Login(ctx, &session.User{ID: "u1"}, "", "rt-1"))

	require.NoError(t, m.RefreshIfNeeded(ctx))

	state := store.State()
	assert.Equal(t, "at-2", state.AccessToken)
	assert.Equal(t, "rt-2", state.RefreshToken)
}

func TestRefreshIfNeeded_NoOpWhenUnauthenticated(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestManager(t, api)

	require.NoError(t, m.RefreshIfNeeded(context.Background()))
	assert.Zero(t, api.refreshCalls)
}

func TestLoginWithProvider_FullLoopbackFlow(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{exchangeCreds: &session.Credentials{
		User:         &session.User{ID: "u1"},
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
	}}

	consentURLs := make(chan string, 1)
	m, store := newTestManager(t, api,
		WithOAuthConfig(&oauth2.Config{
			ClientID: "client-1",
			Endpoint: oauth2.Endpoint{AuthURL: "https://provider.example/o/auth"},
			Scopes:   []string{"openid", "email"},
		}),
		WithURLOpener(func(u string) error {
			consentURLs <- u
			return nil
		}),
	)

	done := make(chan error, 1)
	go func() {
		done <- m.LoginWithProvider(ctx, "google")
	}()

	consentURL := <-consentURLs
	parsed, err := url.Parse(consentURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("state"))
	redirectURI := q.Get("redirect_uri")
	require.NotEmpty(t, redirectURI)

	// Simulate the provider redirecting the browser back.
	resp, err := http.Get(redirectURI + "?code=code-1&state=" + url.QueryEscape(q.Get("state")))
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, <-done)

	assert.Equal(t, "code-1", api.gotCode)
	assert.NotEmpty(t, api.gotVerifier)
	assert.True(t, store.State().IsAuthenticated)
}

func TestLoginWithProvider_StateMismatchRejected(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}

	consentURLs := make(chan string, 1)
	m, store := newTestManager(t, api,
		WithOAuthConfig(&oauth2.Config{
			ClientID: "client-1",
			Endpoint: oauth2.Endpoint{AuthURL: "https://provider.example/o/auth"},
		}),
		WithURLOpener(func(u string) error {
			consentURLs <- u
			return nil
		}),
	)

	done := make(chan error, 1)
	go func() {
		done <- m.LoginWithProvider(ctx, "google")
	}()

	consentURL := <-consentURLs
	parsed, err := url.Parse(consentURL)
	require.NoError(t, err)
	redirectURI := parsed.Query().Get("redirect_uri")

	resp, err := http.Get(redirectURI + "?code=code-1&state=forged")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Error(t, <-done)
	assert.False(t, store.State().IsAuthenticated)
}

func TestLoginWithProvider_ProviderErrorSurfaced(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}

	consentURLs := make(chan string, 1)
	m, _ := newTestManager(t, api,
		WithOAuthConfig(&oauth2.Config{
			ClientID: "client-1",
			Endpoint: oauth2.Endpoint{AuthURL: "https://provider.example/o/auth"},
		}),
		WithURLOpener(func(u string) error {
			consentURLs <- u
			return nil
		}),
	)

	done := make(chan error, 1)
	go func() {
		done <- m.LoginWithProvider(ctx, "google")
	}()

	consentURL := <-consentURLs
	parsed, err := url.Parse(consentURL)
	require.NoError(t, err)
	redirectURI := parsed.Query().Get("redirect_uri")

	resp, err := http.Get(redirectURI + "?error=access_denied&error_description=user+cancelled")
	require.NoError(t, err)
	resp.Body.Close()

	err = <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user cancelled")
}

func TestLoginWithProvider_RequiresOAuthConfig(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newTestManager(t, api)
	assert.Error(t, m.LoginWithProvider(context.Background(), "google"))
}
