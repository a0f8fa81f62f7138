package directory

// ViewModel is what a presentation layer renders for the directory.
type ViewModel struct {
	Users      []UserRecord `json:"users"`
	Loaded     int          `json:"loaded"`
	TotalUsers int          `json:"totalUsers"`
	TotalPages int          `json:"totalPages"`
	PageIndex  int          `json:"pageIndex"`
	PageSize   int          `json:"pageSize"`
	SearchTerm string       `json:"searchTerm,omitempty"`
	FilterTerm string       `json:"filterTerm,omitempty"`
	Searching  bool         `json:"searching"`
	IsLoading  bool         `json:"isLoading"`
	From       int          `json:"from"`
	To         int          `json:"to"`
	Window     []WindowItem `json:"window"`
}

// HasPrev reports whether a previous page exists.
func (v ViewModel) HasPrev() bool { return v.PageIndex > 0 }

// HasNext reports whether a next page exists.
func (v ViewModel) HasNext() bool { return v.PageIndex+1 < v.TotalPages }

// View snapshots the controller for rendering.
func (c *Controller) View() ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	index, size := c.mode.page()
	vm := ViewModel{
		Users:      append([]UserRecord(nil), c.filtered...),
		Loaded:     len(c.users),
		TotalUsers: c.totalUsers,
		TotalPages: c.totalPages,
		PageIndex:  index,
		PageSize:   size,
		FilterTerm: c.filterTerm,
		IsLoading:  c.loading,
		Window:     WindowItems(index, c.totalPages),
	}
	if s, ok := c.mode.(Searching); ok {
		vm.Searching = true
		vm.SearchTerm = s.Term
	}
	if c.totalUsers > 0 && len(c.users) > 0 {
		vm.From = index*size + 1
		vm.To = min(index*size+len(c.users), c.totalUsers)
	}
	return vm
}

// State snapshots the controller for persistence.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	index, size := c.mode.page()
	st := State{
		Mode:       modeName(c.mode),
		PageIndex:  index,
		PageSize:   size,
		FilterTerm: c.filterTerm,
		Users:      append([]UserRecord(nil), c.users...),
		TotalUsers: c.totalUsers,
		TotalPages: c.totalPages,
	}
	if s, ok := c.mode.(Searching); ok {
		st.Term = s.Term
	}
	return st
}

// Restore replaces the controller state with a snapshot taken by State.
func (c *Controller) Restore(st State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = st.mode(c.pageSize)
	c.users = st.Users
	if c.users == nil {
		c.users = []UserRecord{}
	}
	c.totalUsers = st.TotalUsers
	c.totalPages = st.TotalPages
	c.filterTerm = st.FilterTerm
	c.filtered = FilterUsers(c.users, c.filterTerm)
	c.loading = false
}
