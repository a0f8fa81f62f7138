package shared

import (
	"net/url"
	"strconv"
	"strings"
)

// MaxPageSize caps page sizes requested through query strings.
const MaxPageSize = 100

// PageSizeOptions are offered by list pages.
var PageSizeOptions = []int{5, 10, 25, 50}

// ParsePageNumber reads a 1-based page number from values and returns the
// 0-based index. ok is false when the key is missing or malformed.
func ParsePageNumber(values url.Values, key string) (index int, ok bool) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// ParsePageSize reads a positive page size no larger than MaxPageSize.
func ParsePageSize(values url.Values, key string) (size int, ok bool) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > MaxPageSize {
		n = MaxPageSize
	}
	return n, true
}
