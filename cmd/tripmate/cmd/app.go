package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"

	"github.com/tripmate/authkit/auth"
	"github.com/tripmate/authkit/authapi"
	"github.com/tripmate/authkit/config"
	"github.com/tripmate/authkit/session"
	"github.com/tripmate/authkit/storage"
	"github.com/tripmate/authkit/storage/bolt"
	"github.com/tripmate/authkit/vault"
)

// app wires the component graph from configuration: storage, vault, session
// store, API client, and auth manager.
type app struct {
	cfg     *config.Config
	store   *session.Store
	manager *auth.Manager
	closers []func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	apiOpts := []authapi.Option{authapi.WithLogger(logger)}
	if cfg.IsWeb() {
		apiOpts = append(apiOpts, authapi.WithCredentialedRequests())
	}
	api, err := authapi.New(cfg.APIBaseURL, apiOpts...)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	// Platform capability selection: the native vault seals the refresh
	// credential at rest; on web the server-side cookie replaces it.
	var tv vault.TokenVault = vault.Noop{}
	if !cfg.IsWeb() {
		secret, err := config.EnsureDeviceSecret(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		fv, err := vault.NewFileVault(cfg.VaultPath(), secret)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, fv.Close)
		tv = fv
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		a.Close()
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	kv, err := bolt.NewStoreFromFile(cfg.StoragePath())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, kv.Close)

	adapter := storage.NewSecureAdapter(kv, tv, storage.WithLogger(logger))

	storeOpts := []session.StoreOption{session.WithLogger(logger)}
	if cfg.IsWeb() {
		storeOpts = append(storeOpts, session.WithCookieMode())
	}
	a.store = session.NewStore(adapter, api, storeOpts...)

	a.manager = auth.NewManager(a.store, api,
		auth.WithLogger(logger),
		auth.WithListenAddr(cfg.RedirectAddr),
		auth.WithOAuthConfig(&oauth2.Config{
			ClientID: cfg.OAuthClientID,
			Endpoint: oauth2.Endpoint{AuthURL: cfg.OAuthAuthURL},
			Scopes:   []string{"openid", "email", "profile"},
		}),
	)
	return a, nil
}

func (a *app) Close() {
	for _, close := range a.closers {
		if err := close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
	}
}

func logLevel() slog.Level {
	if os.Getenv("TRIPMATE_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
