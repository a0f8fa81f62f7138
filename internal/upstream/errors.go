package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("upstream: network failure")
	// ErrServer matches every *ServerError.
	ErrServer = errors.New("upstream: server error")
	// ErrUnauthorized is matched by server errors with status 401 or 403.
	ErrUnauthorized = errors.New("upstream: unauthorized")
)

// NetworkError reports a transport-level failure: connection, DNS, timeout.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNetwork) true.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// PublicMessage is shown to operators instead of the transport detail.
func (e *NetworkError) PublicMessage() string {
	return "The user service could not be reached. Please try again."
}

// ServerError is a non-2xx response. Message comes from the payload's
// "message" field when present.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("upstream %s: status %d: %s", e.Op, e.Status, e.Message)
}

// Is makes errors.Is match ErrServer and, for 401/403, ErrUnauthorized.
func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrServer:
		return true
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// PublicMessage returns the upstream message.
func (e *ServerError) PublicMessage() string { return e.Message }
