package gitsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/cellarsync/cellarsync/internal/remote"
)

const (
	msgInvalidToken     = "Invalid Personal Access Token."
	msgRepoNotFound     = "Repository not found. Check the owner/repo format and ensure the repo exists."
	msgReadOnlyToken    = "Insufficient permissions: PAT does not have write access to this repository."
	connectionErrPrefix = "Connection failed"
)

// ConnectionResult is the outcome of validating the configured credentials.
type ConnectionResult struct {
	OK         bool
	Message    string
	Repository *remote.Repository
}

// TestConnection verifies that the repository exists and the token may push to it.
func (e *Engine) TestConnection(ctx context.Context) ConnectionResult {
	repo, err := e.client.GetRepository(ctx)
	switch {
	case errors.Is(err, remote.ErrUnauthorized):
		return ConnectionResult{Message: msgInvalidToken}
	case errors.Is(err, remote.ErrNotFound):
		return ConnectionResult{Message: msgRepoNotFound}
	case err != nil:
		return ConnectionResult{Message: fmt.Sprintf("%s: %s", connectionErrPrefix, err)}
	}

	if !repo.CanPush {
		return ConnectionResult{Message: msgReadOnlyToken, Repository: repo}
	}

	return ConnectionResult{
		OK:         true,
		Message:    fmt.Sprintf("Connected to %s (default branch %s).", repo.FullName, repo.DefaultBranch),
		Repository: repo,
	}
}
