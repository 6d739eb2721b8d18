package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"

	"github.com/cellarsync/cellarsync/internal/remote"
)

var (
	ErrNoToken = errors.New("github: personal access token missing")
)

// handleAPIError converts a failed request or a non-2xx response into an error.
// The returned error wraps *remote.APIError so callers can match remote sentinels.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*remote.APIError); ok && apiErr != nil {
			apiErr.Status = resp.StatusCode
			return fmt.Errorf("%s: %w", operation, apiErr)
		}
		return fmt.Errorf("%s: %w", operation, remote.NewAPIError(resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	return nil
}

// isRefMissing reports whether a ref lookup failed because the branch or the
// whole repository history does not exist. GitHub answers 404 for an unknown
// branch and 409 for an empty repository.
func isRefMissing(err error) bool {
	status := remote.StatusCode(err)
	return status == http.StatusNotFound || status == http.StatusConflict
}
