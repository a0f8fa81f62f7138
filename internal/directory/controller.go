package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// DefaultPageSize is used when no positive page size is configured.
const DefaultPageSize = 10

// ErrStale is returned when a response arrives after a newer request was
// issued; the response is dropped.
var ErrStale = errors.New("directory: response superseded by a newer request")

// publicMessenger is implemented by errors that carry a message meant for the
// operator, such as the upstream's error payload.
type publicMessenger interface {
	PublicMessage() string
}

// Config wires a Controller.
type Config struct {
	Service  Service
	Notifier Notifier
	Logger   *slog.Logger
	// Role is the role tag sent to the paginated listing.
	Role     string
	PageSize int
}

// Controller keeps pagination and search state for a server-paginated user
// collection. It is safe for concurrent use; when requests overlap only the
// most recently issued one is applied.
type Controller struct {
	service  Service
	notifier Notifier
	logger   *slog.Logger
	role     string
	pageSize int

	mu         sync.Mutex
	mode       Mode
	seq        uint64
	loading    bool
	users      []UserRecord
	filtered   []UserRecord
	filterTerm string
	totalUsers int
	totalPages int
}

// NewController builds a Controller positioned on the first page.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, Notification) {})
	}
	size := cfg.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Controller{
		service:  cfg.Service,
		notifier: notifier,
		logger:   logger,
		role:     cfg.Role,
		pageSize: size,
		mode:     Paginated{PageIndex: 0, PageSize: size},
		users:    []UserRecord{},
		filtered: []UserRecord{},
	}
}

// Mode returns the current retrieval mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// LoadPage fetches one page of the role-filtered listing and leaves search mode.
func (c *Controller) LoadPage(ctx context.Context, pageIndex, pageSize int) error {
	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageSize <= 0 {
		pageSize = c.currentSize()
	}
	return c.dispatch(ctx, Paginated{PageIndex: pageIndex, PageSize: pageSize})
}

// LocalFilter narrows the loaded page by name, username or email. It never
// touches the network and keeps the page index.
func (c *Controller) LocalFilter(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filterTerm = strings.TrimSpace(term)
	c.filtered = FilterUsers(c.users, c.filterTerm)
}

// GlobalSearch searches the whole collection from the first page. A blank term
// returns to the paginated listing.
func (c *Controller) GlobalSearch(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)
	size := c.currentSize()
	if term == "" {
		return c.LoadPage(ctx, 0, size)
	}
	return c.dispatch(ctx, Searching{Term: term, PageIndex: 0, PageSize: size})
}

// ChangePage moves to pageIndex within the current mode. Indexes outside
// [0, totalPages) are ignored and reported as not applied.
func (c *Controller) ChangePage(ctx context.Context, pageIndex int) (bool, error) {
	c.mu.Lock()
	if pageIndex < 0 || pageIndex >= c.totalPages {
		c.mu.Unlock()
		return false, nil
	}
	_, size := c.mode.page()
	next := withPage(c.mode, pageIndex, size)
	c.mu.Unlock()
	return true, c.dispatch(ctx, next)
}

// ChangePageSize restarts the current mode from the first page with a new size.
func (c *Controller) ChangePageSize(ctx context.Context, pageSize int) error {
	if pageSize <= 0 {
		pageSize = c.pageSize
	}
	c.mu.Lock()
	next := withPage(c.mode, 0, pageSize)
	c.mu.Unlock()
	return c.dispatch(ctx, next)
}

// Refresh re-fetches the current page in the current mode.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.dispatch(ctx, c.Mode())
}

// ResetSearch clears any search and filter and loads the first page.
func (c *Controller) ResetSearch(ctx context.Context) error {
	c.mu.Lock()
	c.filterTerm = ""
	c.filtered = c.users
	c.mu.Unlock()
	return c.LoadPage(ctx, 0, c.currentSize())
}

// VisiblePageWindow returns the page navigation window for the current state.
func (c *Controller) VisiblePageWindow() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	index, _ := c.mode.page()
	return PageWindow(index, c.totalPages)
}

// RequestDelete deletes user after confirmation and reloads the current page.
// The returned flag reports whether the delete went through.
func (c *Controller) RequestDelete(ctx context.Context, user UserRecord, confirmer Confirmer) (bool, error) {
	ok, err := confirmer.Confirm(ctx, Prompt{
		Title:   "Delete User",
		Message: fmt.Sprintf("Are you sure you want to delete %s? This action cannot be undone.", user.Name),
		Confirm: "Yes, delete user",
		Cancel:  "Cancel",
	})
	if err != nil || !ok {
		return false, err
	}
	if err := c.service.DeleteUser(ctx, user.Username); err != nil {
		c.logger.ErrorContext(ctx, "delete user", slog.String("username", user.Username), slog.Any("error", err))
		c.notifier.Notify(ctx, Notification{
			Kind:    KindError,
			Title:   "Error",
			Message: fmt.Sprintf("An error occurred while deleting %s.", user.Name),
		})
		return false, err
	}
	c.notifier.Notify(ctx, Notification{
		Kind:    KindSuccess,
		Title:   "User Deleted",
		Message: fmt.Sprintf("%s has been successfully deleted.", user.Name),
	})
	return true, c.Refresh(ctx)
}

// RequestEdit hands a copy of user to surface and reloads when the edit is saved.
func (c *Controller) RequestEdit(ctx context.Context, user UserRecord, surface EditSurface) (bool, error) {
	saved, err := surface.Edit(ctx, user)
	if err != nil || !saved {
		return false, err
	}
	return true, c.Refresh(ctx)
}

// Find looks a username up in the loaded page.
func (c *Controller) Find(username string) (UserRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.users {
		if u.Username == username {
			return u, true
		}
	}
	return UserRecord{}, false
}

// IsLoading reports whether the latest request is still in flight.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// dispatch issues a fetch for m. The mode is committed immediately; the
// response is applied only if no newer dispatch happened meanwhile.
func (c *Controller) dispatch(ctx context.Context, m Mode) error {
	c.mu.Lock()
	c.mode = m
	c.seq++
	seq := c.seq
	c.loading = true
	c.mu.Unlock()

	res, err := c.fetch(ctx, m)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "discard stale directory response", slog.Uint64("seq", seq))
		return ErrStale
	}
	c.loading = false
	if err != nil {
		c.mu.Unlock()
		c.notifyFetchFailure(ctx, m, err)
		return err
	}
	users := res.Content
	if users == nil {
		users = []UserRecord{}
	}
	c.users = users
	c.filtered = users
	c.filterTerm = ""
	c.totalUsers = res.TotalElements
	c.totalPages = res.TotalPages
	c.mu.Unlock()
	return nil
}

func (c *Controller) fetch(ctx context.Context, m Mode) (PageResult, error) {
	switch m := m.(type) {
	case Searching:
		return c.service.SearchUsers(ctx, SearchQuery{Term: m.Term, Page: m.PageIndex, Size: m.PageSize})
	case Paginated:
		return c.service.ListUsersPage(ctx, PageQuery{Page: m.PageIndex, Size: m.PageSize, Role: c.role})
	default:
		return PageResult{}, fmt.Errorf("directory: unknown mode %T", m)
	}
}

func (c *Controller) notifyFetchFailure(ctx context.Context, m Mode, err error) {
	message := "Failed to fetch users."
	if _, ok := m.(Searching); ok {
		message = "Failed to search users."
		var pm publicMessenger
		if errors.As(err, &pm) && pm.PublicMessage() != "" {
			message = pm.PublicMessage()
		}
	}
	c.logger.ErrorContext(ctx, "fetch users", slog.String("mode", modeName(m)), slog.Any("error", err))
	c.notifier.Notify(ctx, Notification{Kind: KindError, Title: "Error!", Message: message})
}

func (c *Controller) currentSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, size := c.mode.page()
	if size <= 0 {
		return c.pageSize
	}
	return size
}

func modeName(m Mode) string {
	if _, ok := m.(Searching); ok {
		return modeSearching
	}
	return modePaginated
}
