// Package vault provides platform secure storage for a single long-lived
// refresh credential. Implementations differ by platform capability: native
// targets seal the credential into an encrypted store, while the web target
// is a no-op because the browser holds the credential in an HTTP-only cookie
// that application code never sees.
package vault

import "context"

// KeyID is the fixed identifier under which the refresh credential is stored.
const KeyID = "refreshToken"

// TokenVault stores a single refresh credential. A missing credential is a
// normal state, not an error: Get returns ("", nil) when nothing is stored.
type TokenVault interface {
	// Save persists the credential, replacing any previous value.
	Save(ctx context.Context, token string) error
	// Get returns the stored credential, or "" if none is stored.
	Get(ctx context.Context) (string, error)
	// Clear removes the stored credential. Clearing an empty vault is not
	// an error.
	Clear(ctx context.Context) error
}

// Noop is the web-platform vault. The refresh credential on web is managed
// server-side via an HTTP-only cookie, so every operation succeeds without
// touching anything.
type Noop struct{}

var _ TokenVault = Noop{}

func (Noop) Save(ctx context.Context, token string) error { return nil }

func (Noop) Get(ctx context.Context) (string, error) { return "", nil }

func (Noop) Clear(ctx context.Context) error { return nil }
