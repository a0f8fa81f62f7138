package shared

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

type publicErr string

func (e publicErr) Error() string         { return "internal: " + string(e) }
func (e publicErr) PublicMessage() string { return string(e) }

func TestUserSafeMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not found", err: fmt.Errorf("lookup: %w", ErrNotFound), want: "The requested record was not found."},
		{name: "csrf", err: ErrCSRFTokenMismatch, want: "Your form expired. Please reload the page and try again."},
		{name: "timeout", err: context.DeadlineExceeded, want: "The request timed out. Please try again."},
		{name: "public message", err: fmt.Errorf("wrap: %w", publicErr("Username taken")), want: "Username taken"},
		{name: "blank public message", err: publicErr(" "), want: genericFailure},
		{name: "internal", err: errors.New("pq: relation missing"), want: genericFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UserSafeMessage(tc.err))
		})
	}
}

func TestParsePagination(t *testing.T) {
	idx, ok := ParsePageNumber(url.Values{"page": {"3"}}, "page")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = ParsePageNumber(url.Values{"page": {"0"}}, "page")
	assert.False(t, ok)
	_, ok = ParsePageNumber(url.Values{}, "page")
	assert.False(t, ok)

	size, ok := ParsePageSize(url.Values{"size": {"500"}}, "size")
	assert.True(t, ok)
	assert.Equal(t, MaxPageSize, size)
	_, ok = ParsePageSize(url.Values{"size": {"x"}}, "size")
	assert.False(t, ok)
}
