package users_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetwayz/admin-console/internal/directory"
	"github.com/jetwayz/admin-console/internal/rbac"
	"github.com/jetwayz/admin-console/internal/shared"
	"github.com/jetwayz/admin-console/internal/upstream"
	"github.com/jetwayz/admin-console/internal/users"
	"github.com/jetwayz/admin-console/internal/view"
	"github.com/jetwayz/admin-console/jobs"
	_ "github.com/jetwayz/admin-console/testing"
)

type fakeUpstream struct {
	mu       sync.Mutex
	users    []directory.UserRecord
	requests []string
	updates  []directory.UserRecord
	deletes  []string
	status   int
	// listStatus fails only the list and search calls.
	listStatus int
}

func newFakeUpstream(n int) *fakeUpstream {
	f := &fakeUpstream{}
	for i := 1; i <= n; i++ {
		f.users = append(f.users, directory.UserRecord{
			ID:         strconv.Itoa(i),
			Username:   fmt.Sprintf("user-%02d", i),
			Name:       fmt.Sprintf("User %02d", i),
			Email:      fmt.Sprintf("user%02d@example.com", i),
			AccessRole: "user",
		})
	}
	return f
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := r.URL.Query()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path+"?page="+q.Get("page"))
	status := f.status
	if status == 0 && r.Method == http.MethodGet {
		status = f.listStatus
	}
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"upstream says no"}`))
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/get-all-users-pagewise":
		writePage(w, f.users, q)
	case r.Method == http.MethodGet && r.URL.Path == "/search-users":
		term := strings.ToLower(q.Get("searchTerm"))
		var hits []directory.UserRecord
		for _, u := range f.users {
			if strings.Contains(strings.ToLower(u.Name+" "+u.Username+" "+u.Email), term) {
				hits = append(hits, u)
			}
		}
		writePage(w, hits, q)
	case r.Method == http.MethodPut && r.URL.Path == "/update-user":
		var u directory.UserRecord
		_ = json.NewDecoder(r.Body).Decode(&u)
		f.updates = append(f.updates, u)
		for i := range f.users {
			if f.users[i].Username == u.Username {
				f.users[i] = u
			}
		}
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/delete-user/"):
		name := strings.TrimPrefix(r.URL.Path, "/delete-user/")
		f.deletes = append(f.deletes, name)
		kept := f.users[:0]
		for _, u := range f.users {
			if u.Username != name {
				kept = append(kept, u)
			}
		}
		f.users = kept
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeUpstream) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func writePage(w http.ResponseWriter, all []directory.UserRecord, q url.Values) {
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	start := min(page*size, len(all))
	end := min(start+size, len(all))
	_ = json.NewEncoder(w).Encode(directory.PageResult{
		Content:       all[start:end],
		TotalElements: len(all),
		TotalPages:    (len(all) + size - 1) / size,
		Size:          size,
		Number:        page,
	})
}

type auditSpy struct {
	mu     sync.Mutex
	events []jobs.AuditPayload
}

func (a *auditSpy) PublishAudit(_ context.Context, p jobs.AuditPayload) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, p)
	return nil
}

type harness struct {
	t        *testing.T
	router   chi.Router
	sessions *shared.SessionManager
	upstream *fakeUpstream
	audit    *auditSpy
	cookie   string
}

func newHarness(t *testing.T, upstreamUsers int, principal *shared.Principal) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	fake := newFakeUpstream(upstreamUsers)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client := upstream.NewClient(upstream.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})

	spy := &auditSpy{}
	service := users.NewService(users.UpstreamBackend(client), nil, "user", 10)
	handler := users.NewHandler(nil, service, templates, shared.NewCSRFManager("csrfsecret"), rbac.Middleware{}, []string{"admin"}, spy)
	r := chi.NewRouter()
	r.Route("/users", handler.MountRoutes)
	r.Route("/api/users", handler.MountAPIRoutes)

	h := &harness{t: t, router: r, sessions: sessions, upstream: fake, audit: spy}
	if principal != nil {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		sess, err := sessions.Load(context.Background(), req)
		require.NoError(t, err)
		sess.SetPrincipal(*principal)
		require.NoError(t, sessions.Commit(context.Background(), httptest.NewRecorder(), req, sess))
		h.cookie = sess.ID
	}
	return h
}

func admin() *shared.Principal {
	return &shared.Principal{Username: "root", Name: "Root Admin", Role: "admin", Token: "tkn"}
}

func (h *harness) do(req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	h.t.Helper()
	if h.cookie != "" {
		req.AddCookie(&http.Cookie{Name: h.sessions.CookieName(), Value: h.cookie})
	}
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(h.t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.NoError(h.t, h.sessions.Commit(ctx, rec, req, sess))
	h.cookie = sess.ID
	return rec, sess
}

func (h *harness) get(target string) (*httptest.ResponseRecorder, *shared.Session) {
	return h.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (h *harness) post(target string, values url.Values) (*httptest.ResponseRecorder, *shared.Session) {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

func (h *harness) getJSON(target string) listBody {
	h.t.Helper()
	res, _ := h.get(target)
	require.Equal(h.t, http.StatusOK, res.Code, res.Body.String())
	var body listBody
	require.NoError(h.t, json.Unmarshal(res.Body.Bytes(), &body))
	return body
}

type listBody struct {
	View          directory.ViewModel      `json:"view"`
	Notifications []directory.Notification `json:"notifications"`
}

func TestListUsersRendersFirstPage(t *testing.T) {
	h := newHarness(t, 23, admin())

	res, _ := h.get("/users")

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "user-01")
	assert.Contains(t, body, "user-10")
	assert.NotContains(t, body, "user-11")
	assert.Contains(t, body, "Showing 1 to 10 of 23 users")
	assert.Equal(t, []string{"GET /get-all-users-pagewise?page=0"}, h.upstream.seen())
}

func TestPageIntentFollowsSearchMode(t *testing.T) {
	h := newHarness(t, 40, admin())

	body := h.getJSON("/api/users?q=user-&scope=global")
	assert.True(t, body.View.Searching)
	assert.Equal(t, 4, body.View.TotalPages)

	body = h.getJSON("/api/users?page=3")
	assert.True(t, body.View.Searching)
	assert.Equal(t, 2, body.View.PageIndex)
	assert.Equal(t, "user-21", body.View.Users[0].Username)
	assert.Equal(t, []string{
		"GET /search-users?page=0",
		"GET /search-users?page=2",
	}, h.upstream.seen())
}

func TestPageSizeIntentRestartsFromFirstPage(t *testing.T) {
	h := newHarness(t, 23, admin())
	h.getJSON("/api/users?page=2")

	body := h.getJSON("/api/users?size=5")

	assert.Equal(t, 0, body.View.PageIndex)
	assert.Equal(t, 5, body.View.PageSize)
	assert.Equal(t, 5, body.View.TotalPages)
	assert.Len(t, body.View.Users, 5)
}

func TestLocalFilterDoesNotCallUpstream(t *testing.T) {
	h := newHarness(t, 23, admin())
	h.getJSON("/api/users")

	body := h.getJSON("/api/users?q=user-07&scope=local")

	assert.False(t, body.View.Searching)
	assert.Equal(t, "user-07", body.View.FilterTerm)
	require.Len(t, body.View.Users, 1)
	assert.Equal(t, "user-07", body.View.Users[0].Username)
	assert.Equal(t, 10, body.View.Loaded)
	assert.Len(t, h.upstream.seen(), 1)
}

func TestResetIntentLeavesSearch(t *testing.T) {
	h := newHarness(t, 23, admin())
	h.getJSON("/api/users?q=user-2")

	body := h.getJSON("/api/users?reset=1")

	assert.False(t, body.View.Searching)
	assert.Empty(t, body.View.SearchTerm)
	assert.Equal(t, 23, body.View.TotalUsers)
}

func TestFetchFailureIsReportedAsNotification(t *testing.T) {
	h := newHarness(t, 23, admin())
	h.upstream.status = http.StatusInternalServerError

	body := h.getJSON("/api/users")

	assert.Equal(t, []directory.Notification{{Kind: directory.KindError, Title: "Error!", Message: "Failed to fetch users."}}, body.Notifications)
	assert.Empty(t, body.View.Users)
}

func TestRejectedTokenSignsOperatorOut(t *testing.T) {
	h := newHarness(t, 23, admin())
	h.upstream.status = http.StatusUnauthorized

	res, sess := h.get("/users")

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	assert.Nil(t, sess.Principal())
	flashes := sess.PopFlashes()
	require.Len(t, flashes, 1)
	assert.Equal(t, "Session expired", flashes[0].Title)
}

func TestListFetchFailureIsFlashed(t *testing.T) {
	h := newHarness(t, 23, admin())
	h.upstream.status = http.StatusInternalServerError

	res, sess := h.get("/users")

	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Failed to fetch users.")
	assert.Empty(t, sess.PopFlashes())
}

func TestDeleteIsAuditedWhenReloadIsRejected(t *testing.T) {
	h := newHarness(t, 12, admin())
	h.get("/users")
	h.upstream.listStatus = http.StatusUnauthorized

	res, sess := h.post("/users/user-03/delete", url.Values{"confirm": {"yes"}})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
	assert.Equal(t, []string{"user-03"}, h.upstream.deletes)
	require.Len(t, h.audit.events, 1)
	assert.Equal(t, jobs.ActionDelete, h.audit.events[0].Action)
	assert.Equal(t, "root", h.audit.events[0].Actor)
	assert.Nil(t, sess.Principal())
	flashes := sess.PopFlashes()
	require.Len(t, flashes, 1)
	assert.Equal(t, "Session expired", flashes[0].Title)
}

func TestDirectoryRequiresAdminRole(t *testing.T) {
	h := newHarness(t, 3, &shared.Principal{Username: "ann", Role: "user", Token: "t"})

	res, _ := h.get("/users")
	assert.Equal(t, http.StatusForbidden, res.Code)

	anon := newHarness(t, 3, nil)
	res, _ = anon.get("/users")
	assert.Equal(t, http.StatusSeeOther, res.Code)
	res, _ = anon.get("/api/users")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Empty(t, anon.upstream.seen())
}

func TestShowUser(t *testing.T) {
	h := newHarness(t, 12, admin())
	h.get("/users")

	res, _ := h.get("/users/user-04")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "user04@example.com")
	assert.Contains(t, res.Body.String(), "Active")

	res, _ = h.get("/users/user-12")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Contains(t, res.Body.String(), `href="/users"`)
}

func TestDeleteUserAfterConfirmation(t *testing.T) {
	h := newHarness(t, 12, admin())
	h.get("/users")

	prompt, _ := h.get("/users/user-03/delete")
	require.Equal(t, http.StatusOK, prompt.Code)
	assert.Contains(t, prompt.Body.String(), "Are you sure you want to delete User 03?")
	assert.Empty(t, h.upstream.deletes)

	res, sess := h.post("/users/user-03/delete", url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/users", res.Header().Get("Location"))
	assert.Equal(t, []string{"user-03"}, h.upstream.deletes)
	flashes := sess.PopFlashes()
	require.Len(t, flashes, 1)
	assert.Equal(t, "User Deleted", flashes[0].Title)
	require.Len(t, h.audit.events, 1)
	assert.Equal(t, jobs.ActionDelete, h.audit.events[0].Action)
	assert.Equal(t, "root", h.audit.events[0].Actor)

	body := h.getJSON("/api/users")
	assert.Equal(t, 11, body.View.TotalUsers)
}

func TestDeleteWithoutConfirmationDoesNothing(t *testing.T) {
	h := newHarness(t, 5, admin())
	h.get("/users")

	res, _ := h.post("/users/user-02/delete", url.Values{})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Empty(t, h.upstream.deletes)
	assert.Empty(t, h.audit.events)
}

func TestEditUser(t *testing.T) {
	h := newHarness(t, 5, admin())
	h.get("/users")

	form, _ := h.get("/users/user-02/edit")
	require.Equal(t, http.StatusOK, form.Code)
	assert.Contains(t, form.Body.String(), `value="User 02"`)

	res, _ := h.post("/users/user-02/edit", url.Values{
		"name": {"Ann Lee"}, "email": {"ann@example.com"}, "accessRole": {"admin"},
	})

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/users/user-02", res.Header().Get("Location"))
	require.Len(t, h.upstream.updates, 1)
	assert.Equal(t, "user-02", h.upstream.updates[0].Username)
	assert.Equal(t, "Ann Lee", h.upstream.updates[0].Name)
	assert.Equal(t, "admin", h.upstream.updates[0].AccessRole)
	require.Len(t, h.audit.events, 1)
	assert.Equal(t, jobs.ActionUpdate, h.audit.events[0].Action)

	detail, _ := h.get("/users/user-02")
	assert.Contains(t, detail.Body.String(), "User Updated")
	assert.Contains(t, detail.Body.String(), "ann@example.com")
}

func TestEditUserValidation(t *testing.T) {
	h := newHarness(t, 5, admin())
	h.get("/users")

	res, _ := h.post("/users/user-02/edit", url.Values{"name": {"Ann"}, "email": {"nope"}, "accessRole": {"admin"}})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Enter a valid email address.")
	assert.Empty(t, h.upstream.updates)
}

func TestEditUserUpstreamFailure(t *testing.T) {
	h := newHarness(t, 5, admin())
	h.get("/users")
	h.upstream.status = http.StatusConflict

	res, _ := h.post("/users/user-02/edit", url.Values{"name": {"Ann"}, "email": {"ann@example.com"}, "accessRole": {"user"}})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Update Failed")
	assert.Contains(t, res.Body.String(), "upstream says no")
	assert.Empty(t, h.audit.events)
}
