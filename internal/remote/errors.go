package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrRefNotFound  = errors.New("remote: ref not found")
	ErrNotFound     = errors.New("remote: not found")
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrForbidden    = errors.New("remote: forbidden")
	ErrInvalidRepo  = errors.New("remote: invalid repository, expected owner/repo")

	// ErrTreeTruncated means the host returned a partial recursive listing.
	ErrTreeTruncated = errors.New("remote: tree listing truncated")
)

// APIError is a non-2xx response from the git host.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	DocURL  string `json:"documentation_url,omitempty"`
}

func NewAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

// Is maps status codes onto the package sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	}
	return false
}

// StatusCode extracts the HTTP status of an APIError anywhere in the chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
