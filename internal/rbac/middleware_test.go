package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jetwayz/admin-console/internal/shared"
)

func requestWith(path string, p *shared.Principal) (*http.Request, *shared.Session) {
	sess := &shared.Session{}
	if p != nil {
		sess.SetPrincipal(*p)
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return req.WithContext(shared.ContextWithSession(context.Background(), sess)), sess
}

func TestRequireAny(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mw := Middleware{Now: func() time.Time { return now }}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name      string
		path      string
		principal *shared.Principal
		status    int
		location  string
	}{
		{name: "admin allowed", path: "/users", principal: &shared.Principal{Username: "root", Role: "ADMIN"}, status: http.StatusNoContent},
		{name: "anonymous redirected", path: "/users", status: http.StatusSeeOther, location: DefaultLoginPath},
		{name: "anonymous api", path: "/api/users", status: http.StatusUnauthorized},
		{name: "wrong role", path: "/users", principal: &shared.Principal{Username: "ann", Role: "user"}, status: http.StatusForbidden},
		{name: "expired token", path: "/users", principal: &shared.Principal{Username: "root", Role: "admin", ExpiresAt: now.Add(-time.Minute)},
			status: http.StatusSeeOther, location: DefaultLoginPath},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := requestWith(tc.path, tc.principal)
			rr := httptest.NewRecorder()
			mw.RequireAny("admin", " ", "Admin")(ok).ServeHTTP(rr, req)

			assert.Equal(t, tc.status, rr.Code)
			if tc.location != "" {
				assert.Equal(t, tc.location, rr.Header().Get("Location"))
			}
		})
	}
}

func TestExpiredPrincipalIsClearedWithFlash(t *testing.T) {
	now := time.Now()
	mw := Middleware{Now: func() time.Time { return now }}
	req, sess := requestWith("/", &shared.Principal{Username: "root", Role: "admin", ExpiresAt: now})

	mw.RequirePrincipal(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), req)

	assert.Nil(t, sess.Principal())
	flashes := sess.PopFlashes()
	if assert.Len(t, flashes, 1) {
		assert.Equal(t, "error", flashes[0].Kind)
	}
}

func TestNormalizeRoles(t *testing.T) {
	assert.Equal(t, []string{"admin", "auditor"}, normalizeRoles([]string{"Admin", "", "admin", " AUDITOR "}))
}
