package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken means the caller has no bearer token; the request was
	// short-circuited before any network I/O.
	ErrNoToken = errors.New("not authenticated")

	// ErrUnauthorized means the backend rejected the bearer token.
	// The caller's session must be invalidated.
	ErrUnauthorized = errors.New("backend rejected token")

	ErrNotFound = errors.New("not found")
)

// TransientError wraps failures worth retrying: network errors and 5xx
// responses. During status polling these are swallowed; one-shot mutations
// surface them to the user without an automatic retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient backend error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable backend failure
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// APIError is a terminal business rejection from the backend
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}
