package directory

import "strings"

// FilterUsers keeps users whose name, username or email contains term,
// case-insensitively. A blank term returns users unchanged.
func FilterUsers(users []UserRecord, term string) []UserRecord {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return users
	}
	filtered := make([]UserRecord, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), term) ||
			strings.Contains(strings.ToLower(u.Username), term) ||
			strings.Contains(strings.ToLower(u.Email), term) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}
