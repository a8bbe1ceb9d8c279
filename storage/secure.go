package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/tripmate/authkit/vault"
)

// SecureAdapter decorates a KeyValue so that the refresh credential never
// lands in general-purpose storage. On write it strips state.refreshToken
// from the JSON envelope and routes it to the vault; on read it re-injects
// the vaulted credential before returning the reconstituted envelope.
//
// General persistence on native targets is not guaranteed encrypted at rest,
// while the vault is. On web the vault is a no-op and the split collapses.
type SecureAdapter struct {
	inner  KeyValue
	vault  vault.TokenVault
	logger *slog.Logger
}

var _ KeyValue = (*SecureAdapter)(nil)

// SecureAdapterOption configures a SecureAdapter.
type SecureAdapterOption func(*SecureAdapter)

// WithLogger sets the structured logger for diagnostics.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) SecureAdapterOption {
	return func(a *SecureAdapter) {
		a.logger = logger
	}
}

// NewSecureAdapter composes a SecureAdapter over the given inner store and
// vault.
func NewSecureAdapter(inner KeyValue, tv vault.TokenVault, opts ...SecureAdapterOption) *SecureAdapter {
	a := &SecureAdapter{inner: inner, vault: tv}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return a
}

func (a *SecureAdapter) GetItem(ctx context.Context, key string) (string, error) {
	value, err := a.inner.GetItem(ctx, key)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", nil
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		// Corrupt envelopes are handled by the session layer as absence;
		// return the stored value untouched.
		return value, nil
	}
	state, ok := stateObject(parsed)
	if !ok {
		return value, nil
	}

	if hasToken(state) {
		return value, nil
	}

	token, err := a.vault.Get(ctx)
	if err != nil {
		a.logger.Warn("reading vault credential failed", "error", err)
		return value, nil
	}
	if token == "" {
		return value, nil
	}

	rawToken, err := json.Marshal(token)
	if err != nil {
		return value, nil
	}
	state["refreshToken"] = rawToken
	return marshalEnvelope(parsed, state, value), nil
}

func (a *SecureAdapter) SetItem(ctx context.Context, key, value string) error {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		return fmt.Errorf("parsing storage envelope: %w", err)
	}
	state, ok := stateObject(parsed)
	if !ok {
		return a.inner.SetItem(ctx, key, value)
	}

	if rawToken, ok := state["refreshToken"]; ok {
		var token string
		if err := json.Unmarshal(rawToken, &token); err != nil {
			return fmt.Errorf("parsing refresh credential: %w", err)
		}
		if token != "" {
			if err := a.vault.Save(ctx, token); err != nil {
				return fmt.Errorf("saving credential to vault: %w", err)
			}
		}
		delete(state, "refreshToken")
	}

	return a.inner.SetItem(ctx, key, marshalEnvelope(parsed, state, value))
}

func (a *SecureAdapter) RemoveItem(ctx context.Context, key string) error {
	if err := a.vault.Clear(ctx); err != nil {
		return fmt.Errorf("clearing vault: %w", err)
	}
	return a.inner.RemoveItem(ctx, key)
}

// stateObject extracts the envelope's state object, reporting false when the
// envelope carries no parseable state.
func stateObject(parsed map[string]json.RawMessage) (map[string]json.RawMessage, bool) {
	raw, ok := parsed["state"]
	if !ok {
		return nil, false
	}
	var state map[string]json.RawMessage
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false
	}
	return state, true
}

// marshalEnvelope re-assembles the envelope around a modified state object.
// On marshalling failure the original value is returned unchanged.
func marshalEnvelope(parsed, state map[string]json.RawMessage, original string) string {
	rawState, err := json.Marshal(state)
	if err != nil {
		return original
	}
	parsed["state"] = rawState
	out, err := json.Marshal(parsed)
	if err != nil {
		return original
	}
	return string(out)
}

func hasToken(state map[string]json.RawMessage) bool {
	raw, ok := state["refreshToken"]
	if !ok {
		return false
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return false
	}
	return token != ""
}
