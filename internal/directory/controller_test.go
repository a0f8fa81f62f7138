package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu          sync.Mutex
	total       int
	listErr     error
	searchErr   error
	deleteErr   error
	listCalls   []PageQuery
	searchCalls []SearchQuery
	deleted     []string
	started     chan int
	gates       map[int]chan struct{}
}

func newFakeService(total int) *fakeService {
	return &fakeService{total: total, gates: map[int]chan struct{}{}}
}

func (f *fakeService) page(prefix string, page, size int) PageResult {
	var content []UserRecord
	for i := page * size; i < min((page+1)*size, f.total); i++ {
		content = append(content, UserRecord{
			ID:       fmt.Sprintf("%s-%d", prefix, i),
			Name:     fmt.Sprintf("User %d", i),
			Username: fmt.Sprintf("%s%d", prefix, i),
			Email:    fmt.Sprintf("%s%d@example.com", prefix, i),
		})
	}
	pages := (f.total + size - 1) / size
	return PageResult{Content: content, TotalElements: f.total, TotalPages: pages, Size: size, Number: page}
}

func (f *fakeService) ListUsersPage(ctx context.Context, q PageQuery) (PageResult, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, q)
	gate := f.gates[q.Page]
	err := f.listErr
	started := f.started
	f.mu.Unlock()
	if started != nil {
		started <- q.Page
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return PageResult{}, err
	}
	return f.page("user", q.Page, q.Size), nil
}

func (f *fakeService) SearchUsers(ctx context.Context, q SearchQuery) (PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, q)
	if f.searchErr != nil {
		return PageResult{}, f.searchErr
	}
	return f.page("match", q.Page, q.Size), nil
}

func (f *fakeService) UpdateUser(ctx context.Context, user UserRecord) error { return nil }

func (f *fakeService) DeleteUser(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, username)
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

type answer bool

func (a answer) Confirm(ctx context.Context, p Prompt) (bool, error) { return bool(a), nil }

type editFunc func(ctx context.Context, u UserRecord) (bool, error)

func (f editFunc) Edit(ctx context.Context, u UserRecord) (bool, error) { return f(ctx, u) }

type messageErr struct{ msg string }

func (e messageErr) Error() string         { return "server: " + e.msg }
func (e messageErr) PublicMessage() string { return e.msg }

func newTestController(svc *fakeService) (*Controller, *recordingNotifier) {
	n := &recordingNotifier{}
	return NewController(Config{Service: svc, Notifier: n, Role: "user", PageSize: 10}), n
}

func TestLoadPage(t *testing.T) {
	svc := newFakeService(35)
	c, n := newTestController(svc)

	require.NoError(t, c.LoadPage(context.Background(), 1, 10))

	vm := c.View()
	assert.Len(t, vm.Users, 10)
	assert.Equal(t, "user10", vm.Users[0].Username)
	assert.Equal(t, 35, vm.TotalUsers)
	assert.Equal(t, 4, vm.TotalPages)
	assert.Equal(t, 1, vm.PageIndex)
	assert.Equal(t, 11, vm.From)
	assert.Equal(t, 20, vm.To)
	assert.False(t, vm.IsLoading)
	assert.Empty(t, n.all())
	assert.Equal(t, []PageQuery{{Page: 1, Size: 10, Role: "user"}}, svc.listCalls)
}

func TestLoadPageFailureKeepsPreviousRecords(t *testing.T) {
	svc := newFakeService(35)
	c, n := newTestController(svc)
	require.NoError(t, c.LoadPage(context.Background(), 0, 10))
	before := c.View().Users

	netErr := errors.New("dial tcp: connection refused")
	svc.listErr = netErr
	applied, err := c.ChangePage(context.Background(), 1)

	assert.True(t, applied)
	assert.ErrorIs(t, err, netErr)
	vm := c.View()
	assert.False(t, vm.IsLoading)
	assert.Equal(t, before, vm.Users)
	assert.Equal(t, 35, vm.TotalUsers)
	notes := n.all()
	require.Len(t, notes, 1)
	assert.Equal(t, KindError, notes[0].Kind)
	assert.Equal(t, "Failed to fetch users.", notes[0].Message)
}

func TestChangePageOutOfRangeIsIgnored(t *testing.T) {
	svc := newFakeService(25)
	c, n := newTestController(svc)
	require.NoError(t, c.LoadPage(context.Background(), 0, 10))
	before := c.State()

	for _, idx := range []int{-1, 3, 99} {
		applied, err := c.ChangePage(context.Background(), idx)
		assert.False(t, applied)
		assert.NoError(t, err)
	}

	assert.Equal(t, before, c.State())
	assert.Len(t, svc.listCalls, 1)
	assert.Empty(t, n.all())
}

func TestChangePageFollowsSearchMode(t *testing.T) {
	svc := newFakeService(42)
	c, _ := newTestController(svc)
	require.NoError(t, c.GlobalSearch(context.Background(), "  match  "))

	applied, err := c.ChangePage(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, applied)

	assert.Equal(t, []SearchQuery{{Term: "match", Page: 0, Size: 10}, {Term: "match", Page: 2, Size: 10}}, svc.searchCalls)
	assert.Empty(t, svc.listCalls)
	assert.Equal(t, Searching{Term: "match", PageIndex: 2, PageSize: 10}, c.Mode())
}

func TestChangePageSizeRestartsCurrentMode(t *testing.T) {
	svc := newFakeService(42)
	c, _ := newTestController(svc)
	require.NoError(t, c.LoadPage(context.Background(), 3, 10))

	require.NoError(t, c.ChangePageSize(context.Background(), 25))
	assert.Equal(t, Paginated{PageIndex: 0, PageSize: 25}, c.Mode())
	assert.Equal(t, PageQuery{Page: 0, Size: 25, Role: "user"}, svc.listCalls[len(svc.listCalls)-1])

	require.NoError(t, c.GlobalSearch(context.Background(), "ann"))
	require.NoError(t, c.ChangePageSize(context.Background(), 5))
	assert.Equal(t, Searching{Term: "ann", PageIndex: 0, PageSize: 5}, c.Mode())
}

func TestLocalFilter(t *testing.T) {
	c, _ := newTestController(newFakeService(0))
	c.Restore(State{
		Mode:       modePaginated,
		PageIndex:  2,
		PageSize:   10,
		TotalUsers: 23,
		TotalPages: 3,
		Users: []UserRecord{
			{Name: "Alice Smith", Username: "asmith", Email: "alice@corp.io"},
			{Name: "Bob Stone", Username: "bstone", Email: "bob@Example.com"},
			{Name: "Carol", Username: "carol.k", Email: "ck@corp.io"},
		},
	})

	c.LocalFilter("SMITH")
	assert.Equal(t, []string{"asmith"}, usernames(c.View().Users))
	assert.Equal(t, 2, c.View().PageIndex)

	c.LocalFilter("example")
	assert.Equal(t, []string{"bstone"}, usernames(c.View().Users))

	c.LocalFilter("CAROL.")
	assert.Equal(t, []string{"carol.k"}, usernames(c.View().Users))

	c.LocalFilter("   ")
	assert.Equal(t, []string{"asmith", "bstone", "carol.k"}, usernames(c.View().Users))
	assert.Equal(t, 2, c.View().PageIndex)
	assert.Equal(t, Paginated{PageIndex: 2, PageSize: 10}, c.Mode())
	assert.Equal(t, 23, c.View().TotalUsers)
}

func TestGlobalSearchBlankLoadsFirstPage(t *testing.T) {
	svc := newFakeService(30)
	c, _ := newTestController(svc)
	require.NoError(t, c.GlobalSearch(context.Background(), "bob"))
	_, err := c.ChangePage(context.Background(), 2)
	require.NoError(t, err)

	require.NoError(t, c.GlobalSearch(context.Background(), "   "))

	assert.Equal(t, Paginated{PageIndex: 0, PageSize: 10}, c.Mode())
	assert.Equal(t, []PageQuery{{Page: 0, Size: 10, Role: "user"}}, svc.listCalls)
	assert.Equal(t, "user0", c.View().Users[0].Username)
}

func TestGlobalSearchFailureUsesServerMessage(t *testing.T) {
	svc := newFakeService(30)
	svc.searchErr = messageErr{msg: "Search term too short"}
	c, n := newTestController(svc)

	err := c.GlobalSearch(context.Background(), "a")
	require.Error(t, err)
	assert.False(t, c.IsLoading())
	notes := n.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Search term too short", notes[0].Message)
}

func TestRequestDelete(t *testing.T) {
	ctx := context.Background()
	victim := UserRecord{Name: "User 3", Username: "user3"}

	t.Run("confirmed", func(t *testing.T) {
		svc := newFakeService(25)
		c, n := newTestController(svc)
		require.NoError(t, c.LoadPage(ctx, 0, 10))

		deleted, err := c.RequestDelete(ctx, victim, answer(true))
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.Equal(t, []string{"user3"}, svc.deleted)
		assert.Len(t, svc.listCalls, 2)
		notes := n.all()
		require.Len(t, notes, 1)
		assert.Equal(t, KindSuccess, notes[0].Kind)
		assert.Equal(t, "User 3 has been successfully deleted.", notes[0].Message)
	})

	t.Run("cancelled", func(t *testing.T) {
		svc := newFakeService(25)
		c, n := newTestController(svc)
		require.NoError(t, c.LoadPage(ctx, 0, 10))

		deleted, err := c.RequestDelete(ctx, victim, answer(false))
		require.NoError(t, err)
		assert.False(t, deleted)
		assert.Empty(t, svc.deleted)
		assert.Len(t, svc.listCalls, 1)
		assert.Empty(t, n.all())
	})

	t.Run("failed", func(t *testing.T) {
		svc := newFakeService(25)
		c, n := newTestController(svc)
		require.NoError(t, c.LoadPage(ctx, 0, 10))
		before := c.State()
		svc.deleteErr = errors.New("boom")

		deleted, err := c.RequestDelete(ctx, victim, answer(true))
		require.Error(t, err)
		assert.False(t, deleted)
		assert.Equal(t, before, c.State())
		assert.Len(t, svc.listCalls, 1)
		notes := n.all()
		require.Len(t, notes, 1)
		assert.Equal(t, KindError, notes[0].Kind)
		assert.Equal(t, "An error occurred while deleting User 3.", notes[0].Message)
	})
}

func TestRequestEdit(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(12)
	c, _ := newTestController(svc)
	require.NoError(t, c.LoadPage(ctx, 1, 10))
	original, ok := c.Find("user11")
	require.True(t, ok)

	saved, err := c.RequestEdit(ctx, original, editFunc(func(ctx context.Context, u UserRecord) (bool, error) {
		u.Name = "changed"
		return false, nil
	}))
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Len(t, svc.listCalls, 1)
	still, _ := c.Find("user11")
	assert.Equal(t, original, still)

	saved, err = c.RequestEdit(ctx, original, editFunc(func(ctx context.Context, u UserRecord) (bool, error) {
		return true, nil
	}))
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, PageQuery{Page: 1, Size: 10, Role: "user"}, svc.listCalls[len(svc.listCalls)-1])
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(50)
	c, n := newTestController(svc)
	require.NoError(t, c.LoadPage(ctx, 0, 10))

	gate := make(chan struct{})
	svc.mu.Lock()
	svc.gates[1] = gate
	svc.started = make(chan int, 4)
	svc.mu.Unlock()

	slow := make(chan error, 1)
	go func() {
		_, err := c.ChangePage(ctx, 1)
		slow <- err
	}()
	require.Equal(t, 1, <-svc.started)
	assert.True(t, c.IsLoading())

	_, err := c.ChangePage(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, <-svc.started)
	assert.False(t, c.IsLoading())

	close(gate)
	assert.ErrorIs(t, <-slow, ErrStale)

	vm := c.View()
	assert.Equal(t, 2, vm.PageIndex)
	assert.Equal(t, "user20", vm.Users[0].Username)
	assert.False(t, vm.IsLoading)
	assert.Empty(t, n.all())
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(40)
	c, _ := newTestController(svc)
	require.NoError(t, c.GlobalSearch(ctx, "match"))
	_, err := c.ChangePage(ctx, 1)
	require.NoError(t, err)
	c.LocalFilter("user 15")

	restored, _ := newTestController(svc)
	restored.Restore(c.State())

	assert.Equal(t, c.Mode(), restored.Mode())
	assert.Equal(t, c.View(), restored.View())
	assert.Equal(t, []int{1, 2, 3, 4}, restored.VisiblePageWindow())
}

func TestResetSearch(t *testing.T) {
	ctx := context.Background()
	svc := newFakeService(40)
	c, _ := newTestController(svc)
	require.NoError(t, c.GlobalSearch(ctx, "match"))
	c.LocalFilter("3")

	require.NoError(t, c.ResetSearch(ctx))
	vm := c.View()
	assert.False(t, vm.Searching)
	assert.Empty(t, vm.FilterTerm)
	assert.Equal(t, 0, vm.PageIndex)
	assert.Len(t, vm.Users, 10)
}

func usernames(users []UserRecord) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}
