package directory

import "strings"

// Mode is the retrieval strategy currently driving the directory: either
// Paginated or Searching.
type Mode interface {
	page() (index, size int)
	isMode()
}

// Paginated fetches the role-filtered listing.
type Paginated struct {
	PageIndex int
	PageSize  int
}

// Searching fetches from the search endpoint with a non-empty term.
type Searching struct {
	Term      string
	PageIndex int
	PageSize  int
}

func (m Paginated) page() (int, int) { return m.PageIndex, m.PageSize }
func (Paginated) isMode()            {}

func (m Searching) page() (int, int) { return m.PageIndex, m.PageSize }
func (Searching) isMode()            {}

func withPage(m Mode, index, size int) Mode {
	switch m := m.(type) {
	case Searching:
		return Searching{Term: m.Term, PageIndex: index, PageSize: size}
	default:
		return Paginated{PageIndex: index, PageSize: size}
	}
}

const (
	modePaginated = "paginated"
	modeSearching = "searching"
)

// State is a serialisable snapshot of the directory, suitable for keeping in a
// session between requests.
type State struct {
	Mode       string       `json:"mode"`
	Term       string       `json:"term,omitempty"`
	PageIndex  int          `json:"page"`
	PageSize   int          `json:"size"`
	FilterTerm string       `json:"filter,omitempty"`
	Users      []UserRecord `json:"users,omitempty"`
	TotalUsers int          `json:"total_users"`
	TotalPages int          `json:"total_pages"`
}

func (s State) mode(defaultSize int) Mode {
	size := s.PageSize
	if size <= 0 {
		size = defaultSize
	}
	index := s.PageIndex
	if index < 0 {
		index = 0
	}
	term := strings.TrimSpace(s.Term)
	if s.Mode == modeSearching && term != "" {
		return Searching{Term: term, PageIndex: index, PageSize: size}
	}
	return Paginated{PageIndex: index, PageSize: size}
}
