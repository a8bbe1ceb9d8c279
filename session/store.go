// Package session holds the process-wide authentication session: the current
// user, the in-memory access credential, and the durably persisted refresh
// credential. All mutations go through the Store's methods; consumers read
// immutable snapshots.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tripmate/authkit/storage"
)

// StoreName is the fixed key under which the session envelope is persisted.
const StoreName = "auth-storage"

// envelopeVersion is the persisted envelope schema version.
const envelopeVersion = 0

// Refresher exchanges a refresh credential for fresh session credentials.
// It is satisfied by the authapi client; an empty refreshToken means the
// transport carries the credential itself (HTTP-only cookie).
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
}

// State is an immutable snapshot of the session.
//
// Invariant: IsAuthenticated implies User != nil. AccessToken lives only in
// memory and is never persisted.
type State struct {
	User            *User
	AccessToken     string
	RefreshToken    string
	IsAuthenticated bool
}

// Store is the single process-wide session state container. Construct one at
// process start and inject it into consumers; do not create more than one per
// running application instance.
type Store struct {
	mu    sync.RWMutex
	state State

	// hydrated flips true once the app-start restore has completed.
	// Consumers must not trust IsAuthenticated before then.
	hydrated bool

	storage    storage.KeyValue
	refresher  Refresher
	logger     *slog.Logger
	cookieMode bool

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the structured logger for diagnostics.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCookieMode puts the store in the web-platform persistence policy: the
// refresh credential is never persisted client-side (the server manages it
// via an HTTP-only cookie) and hydration relies on the credentialed transport
// instead of a stored token.
func WithCookieMode() StoreOption {
	return func(s *Store) {
		s.cookieMode = true
	}
}

// NewStore creates a Store persisting through kv (normally a
// storage.SecureAdapter) and refreshing through refresher.
func NewStore(kv storage.KeyValue, refresher Refresher, opts ...StoreOption) *Store {
	s := &Store{
		storage:   kv,
		refresher: refresher,
		subs:      make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return s
}

// persistedState is the subset of State selected for persistence. The access
// credential is deliberately absent.
type persistedState struct {
	User            *User  `json:"user,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated,omitempty"`
	RefreshToken    string `json:"refreshToken,omitempty"`
}

type persistedEnvelope struct {
	State   persistedState `json:"state"`
	Version int            `json:"version"`
}

// State returns an immutable snapshot of the current session.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	snap := s.state
	if s.state.User != nil {
		u := *s.state.User
		snap.User = &u
	}
	return snap
}

// Hydrated reports whether the app-start restore has completed. Until it
// returns true, IsAuthenticated must not be trusted.
func (s *Store) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Subscribe registers fn to be called with a snapshot after every state
// change. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snap State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Login sets the session from credentials already obtained by a successful
// exchange. No network call happens here; orchestration lives in the auth
// manager.
func (s *Store) Login(ctx context.Context, user *User, accessToken, refreshToken string) error {
	if user == nil {
		return fmt.Errorf("login requires a user")
	}

	s.mu.Lock()
	s.state = State{
		User:            user,
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		IsAuthenticated: true,
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	if err := s.persist(ctx, snap); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

// Logout clears the session and deletes all persisted state, both the general
// storage envelope and the vault entry behind it. Safe to call when already
// logged out.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.state = State{}
	snap := s.state
	s.mu.Unlock()

	s.notify(snap)
	if err := s.storage.RemoveItem(ctx, StoreName); err != nil {
		return fmt.Errorf("clearing persisted session: %w", err)
	}
	return nil
}

// UpdateAccessToken replaces only the access credential after a mid-session
// silent refresh.
func (s *Store) UpdateAccessToken(ctx context.Context, token string) error {
	s.mu.Lock()
	s.state.AccessToken = token
	s.state.IsAuthenticated = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	if err := s.persist(ctx, snap); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

// HydrateFromRefreshToken restores the session at app start. It reads the
// persisted refresh credential, exchanges it for fresh credentials, and
// adopts the result. Any failure resolves to the unauthenticated state with
// all persisted state wiped; there is no retry. The hydrated flag flips true
// regardless of outcome.
func (s *Store) HydrateFromRefreshToken(ctx context.Context) error {
	defer s.markHydrated()

	refreshToken, resume := s.readPersisted(ctx)
	if refreshToken == "" && !resume {
		// Nothing to restore. Clear any stale storage and stay offline.
		if err := s.reset(ctx); err != nil {
			s.logger.Warn("clearing stale session storage failed", "error", err)
		}
		return nil
	}

	creds, err := s.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		if resetErr := s.reset(ctx); resetErr != nil {
			s.logger.Warn("clearing session storage after failed refresh failed", "error", resetErr)
		}
		return fmt.Errorf("refreshing session: %w", err)
	}

	s.mu.Lock()
	s.state = State{
		User:            creds.User,
		AccessToken:     creds.AccessToken,
		RefreshToken:    creds.RefreshToken,
		IsAuthenticated: creds.User != nil,
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)

	// Re-persist so a rotated refresh credential replaces the stored one
	// before hydration is considered complete.
	if err := s.persist(ctx, snap); err != nil {
		return fmt.Errorf("persisting refreshed session: %w", err)
	}
	return nil
}

// readPersisted returns the stored refresh credential and, in cookie mode,
// whether a previous session exists worth resuming via the cookie transport.
// Malformed stored JSON is treated as absence.
func (s *Store) readPersisted(ctx context.Context) (refreshToken string, resume bool) {
	raw, err := s.storage.GetItem(ctx, StoreName)
	if err != nil {
		s.logger.Warn("reading persisted session failed", "error", err)
		return "", false
	}
	if raw == "" {
		return "", false
	}

	var env persistedEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		s.logger.Warn("persisted session is malformed, treating as absent", "error", err)
		return "", false
	}
	if s.cookieMode {
		return "", env.State.IsAuthenticated
	}
	return env.State.RefreshToken, false
}

func (s *Store) markHydrated() {
	s.mu.Lock()
	s.hydrated = true
	s.mu.Unlock()
}

// reset wipes in-memory state and all persisted state.
func (s *Store) reset(ctx context.Context) error {
	s.mu.Lock()
	s.state = State{}
	snap := s.state
	s.mu.Unlock()

	s.notify(snap)
	return s.storage.RemoveItem(ctx, StoreName)
}

// persist writes the persisted subset of the snapshot through the storage
// adapter as a single atomic envelope write.
func (s *Store) persist(ctx context.Context, snap State) error {
	env := persistedEnvelope{
		State: persistedState{
			User:            snap.User,
			IsAuthenticated: snap.IsAuthenticated,
		},
		Version: envelopeVersion,
	}
	if !s.cookieMode {
		env.State.RefreshToken = snap.RefreshToken
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.storage.SetItem(ctx, StoreName, string(data))
}
