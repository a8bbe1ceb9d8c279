package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// callbackPath is the route the provider redirects back to on the loopback
// listener.
const callbackPath = "/auth/callback"

// LoginWithProvider performs the redirect-based login protocol: it opens the
// provider consent URL, receives the authorization code on a loopback
// listener, forwards code and PKCE verifier to the backend exchange endpoint,
// and adopts the resulting session.
func (m *Manager) LoginWithProvider(ctx context.Context, provider string) error {
	if m.oauth == nil {
		return fmt.Errorf("no OAuth configuration; use WithOAuthConfig")
	}

	srv, err := newCallbackServer(m.listenAddr)
	if err != nil {
		return fmt.Errorf("starting redirect listener: %w", err)
	}
	defer srv.Close()

	cfg := *m.oauth
	cfg.RedirectURL = srv.RedirectURL()

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()
	consentURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)

	if err := m.openURL(consentURL); err != nil {
		return fmt.Errorf("presenting consent URL: %w", err)
	}

	cb, err := srv.Wait(ctx)
	if err != nil {
		return err
	}
	if cb.state != state {
		return errors.New("authorization response state mismatch")
	}

	creds, err := m.api.ExchangeCode(ctx, provider, cb.code, verifier)
	if err != nil {
		return err
	}
	return m.store.Login(ctx, creds.User, creds.AccessToken, creds.RefreshToken)
}

type callbackResult struct {
	code  string
	state string
}

// callbackServer is a short-lived loopback HTTP server receiving the OAuth
// redirect. It accepts exactly one callback.
type callbackServer struct {
	ln      net.Listener
	srv     *http.Server
	results chan callbackResult
	errs    chan error
}

func newCallbackServer(addr string) (*callbackServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &callbackServer{
		ln:      ln,
		results: make(chan callbackResult, 1),
		errs:    make(chan error, 1),
	}

	r := chi.NewRouter()
	r.Get(callbackPath, s.handleCallback)
	s.srv = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go s.srv.Serve(ln)

	return s, nil
}

// RedirectURL returns the listener's callback URL to register as the OAuth
// redirect URI.
func (s *callbackServer) RedirectURL() string {
	return fmt.Sprintf("http://%s%s", s.ln.Addr().String(), callbackPath)
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		desc := q.Get("error_description")
		if desc == "" {
			desc = errCode
		}
		select {
		case s.errs <- fmt.Errorf("provider rejected the login: %s", desc):
		default:
		}
		http.Error(w, "Sign-in failed. You can close this window.", http.StatusBadRequest)
		return
	}

	select {
	case s.results <- callbackResult{code: q.Get("code"), state: q.Get("state")}:
	default:
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><p>Signed in. You can close this window.</p></body></html>")
}

// Wait blocks until the provider redirect arrives or ctx ends.
func (s *callbackServer) Wait(ctx context.Context) (callbackResult, error) {
	select {
	case res := <-s.results:
		return res, nil
	case err := <-s.errs:
		return callbackResult{}, err
	case <-ctx.Done():
		return callbackResult{}, ctx.Err()
	}
}

func (s *callbackServer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.srv.Shutdown(ctx)
}
