package rbac

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jetwayz/admin-console/internal/platform/httpx"
	"github.com/jetwayz/admin-console/internal/shared"
)

// DefaultLoginPath receives operators without a valid session.
const DefaultLoginPath = "/auth/login"

// Middleware wires role checks against the signed-in principal.
type Middleware struct {
	Logger    *slog.Logger
	LoginPath string
	// Now is the clock used for token expiry; nil means time.Now.
	Now func() time.Time
}

// RequirePrincipal lets the request through only when an operator is signed
// in with an unexpired token. Browsers are redirected to the login page, JSON
// clients get 401.
func (m Middleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			m.deny(w, r, shared.ErrSessionExpired)
			return
		}
		p := sess.Principal()
		if p == nil {
			m.deny(w, r, httpx.ErrUnauthorized)
			return
		}
		if p.Expired(m.now()) {
			m.logger().Info("operator token expired", slog.String("username", p.Username))
			sess.ClearPrincipal()
			sess.AddFlash(shared.FlashMessage{Kind: "error", Title: "Session expired", Message: shared.UserSafeMessage(shared.ErrSessionExpired)})
			m.deny(w, r, shared.ErrSessionExpired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAny ensures the current principal holds at least one of roles.
func (m Middleware) RequireAny(roles ...string) func(http.Handler) http.Handler {
	normalized := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return m.RequirePrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			p, _ := shared.CurrentPrincipal(r.Context())
			if p.HasAnyRole(normalized...) {
				next.ServeHTTP(w, r)
				return
			}
			m.logger().Warn("rbac require any", slog.String("username", p.Username), slog.String("role", p.Role))
			if wantsJSON(r) {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		}))
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, err error) {
	if wantsJSON(r) {
		httpx.RespondError(w, err)
		return
	}
	login := m.LoginPath
	if login == "" {
		login = DefaultLoginPath
	}
	http.Redirect(w, r, login, http.StatusSeeOther)
}

func (m Middleware) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func normalizeRoles(roles []string) []string {
	unique := make(map[string]struct{}, len(roles))
	normalized := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		if _, seen := unique[role]; seen {
			continue
		}
		unique[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
