package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetwayz/admin-console/internal/upstream"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{name: "not found", err: ErrNotFound, status: http.StatusNotFound, detail: "resource not found"},
		{name: "network", err: &upstream.NetworkError{Op: "captcha", Err: errors.New("dial tcp")}, status: http.StatusBadGateway,
			detail: "The user service could not be reached. Please try again."},
		{name: "server", err: fmt.Errorf("list: %w", &upstream.ServerError{Op: "search-users", Status: 400, Message: "Bad term"}),
			status: http.StatusBadGateway, detail: "Bad term"},
		{name: "upstream unauthorized", err: &upstream.ServerError{Op: "delete-user", Status: 401, Message: "Token expired"},
			status: http.StatusUnauthorized, detail: "Token expired"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body.Status)
			assert.Equal(t, tc.detail, body.Detail)
		})
	}
}

func TestJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusCreated, map[string]int{"n": 1})
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"n":1}`, rr.Body.String())
}
