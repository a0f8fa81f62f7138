package shared

import (
	"context"
	"strings"
	"time"
)

// Principal is the operator signed in to the console. Token is the upstream
// bearer token issued at login.
type Principal struct {
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the upstream token has passed its expiry. A zero
// ExpiresAt never expires.
func (p Principal) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// HasAnyRole reports whether the principal's role matches one of roles,
// ignoring case.
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), p.Role) {
			return true
		}
	}
	return false
}

// DisplayName prefers the full name and falls back to the username.
func (p Principal) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return p.Username
}

// CurrentPrincipal returns the signed-in operator attached to ctx's session.
func CurrentPrincipal(ctx context.Context) (Principal, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return Principal{}, false
	}
	p := sess.Principal()
	if p == nil {
		return Principal{}, false
	}
	return *p, true
}
