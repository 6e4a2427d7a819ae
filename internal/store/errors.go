package store

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUser is returned when POST /users reports an existing email.
	ErrDuplicateUser = errors.New("user already exists")
)

// StatusError is a non-2xx answer from the store.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("store %s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
}

// Unwrap maps well-known status codes onto sentinel errors.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusNotFound:
		return ErrNotFound
	case e.Code == http.StatusConflict && e.Method == http.MethodPost && e.Path == "/users":
		return ErrDuplicateUser
	}
	return nil
}
