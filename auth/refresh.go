package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshLeeway is how close to expiry the access credential may get before a
// silent refresh is performed.
const refreshLeeway = 30 * time.Second

// RefreshIfNeeded silently refreshes the access credential when it is absent
// or about to expire. On rotation the whole session is re-adopted so the new
// refresh credential is re-persisted; otherwise only the access credential is
// replaced. A no-op when unauthenticated.
func (m *Manager) RefreshIfNeeded(ctx context.Context) error {
	state := m.store.State()
	if !state.IsAuthenticated {
		return nil
	}
	if state.AccessToken != "" && !expiringSoon(state.AccessToken, refreshLeeway) {
		return nil
	}

	creds, err := m.api.Refresh(ctx, state.RefreshToken)
	if err != nil {
		return fmt.Errorf("silent refresh: %w", err)
	}

	if creds.RefreshToken != "" && creds.RefreshToken != state.RefreshToken {
		return m.store.Login(ctx, creds.User, creds.AccessToken, creds.RefreshToken)
	}
	return m.store.UpdateAccessToken(ctx, creds.AccessToken)
}

// expiringSoon inspects the token's exp claim without verifying the
// signature; validation is the backend's job. Opaque tokens and tokens
// without an exp claim are assumed valid.
func expiringSoon(token string, leeway time.Duration) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < leeway
}
