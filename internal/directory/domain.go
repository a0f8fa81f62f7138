package directory

import "time"

// UserRecord is a flat user account as returned by the user-management service.
type UserRecord struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	AccessRole    string `json:"accessRole"`
	Gender        string `json:"gender,omitempty"`
	ContactNumber string `json:"contactNumber,omitempty"`
	Address       string `json:"address,omitempty"`
	PinCode       string `json:"pinCode,omitempty"`
	DOB           string `json:"dob,omitempty"`
	ProfileImage  string `json:"profileImage,omitempty"`
	Status        string `json:"status,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

// BirthDate parses DOB, accepting plain dates and RFC 3339 timestamps.
func (u UserRecord) BirthDate() (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, u.DOB); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PageResult is the server page envelope. Number is the zero-based page index.
type PageResult struct {
	Content       []UserRecord `json:"content"`
	TotalElements int          `json:"totalElements"`
	TotalPages    int          `json:"totalPages"`
	Size          int          `json:"size"`
	Number        int          `json:"number"`
}

// PageQuery selects one page of the role-filtered listing.
type PageQuery struct {
	Page int
	Size int
	Role string
}

// SearchQuery selects one page of the free-text search endpoint.
type SearchQuery struct {
	Term string
	Page int
	Size int
}
