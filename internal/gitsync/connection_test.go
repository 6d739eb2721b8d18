package gitsync

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cellarsync/cellarsync/internal/remote"
)

// repoOnlyClient answers GetRepository and nothing else.
type repoOnlyClient struct {
	remote.Client
	repo *remote.Repository
	err  error
}

func (c *repoOnlyClient) GetRepository(ctx context.Context) (*remote.Repository, error) {
	return c.repo, c.err
}

func TestTestConnection(t *testing.T) {
	tests := []struct {
		name   string
		client *repoOnlyClient
		ok     bool
		msg    string
	}{
		{"bad token", &repoOnlyClient{err: remote.NewAPIError(http.StatusUnauthorized, "Bad credentials")}, false, "Invalid Personal Access Token."},
		{"missing repo", &repoOnlyClient{err: remote.NewAPIError(http.StatusNotFound, "Not Found")}, false, "Repository not found. Check the owner/repo format and ensure the repo exists."},
		{"read only", &repoOnlyClient{repo: &remote.Repository{FullName: "a/b", DefaultBranch: "main"}}, false, "Insufficient permissions: PAT does not have write access to this repository."},
		{"ok", &repoOnlyClient{repo: &remote.Repository{FullName: "a/b", DefaultBranch: "main", CanPush: true}}, true, "Connected to a/b (default branch main)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(tt.client).TestConnection(context.Background())
			assert.Equal(t, tt.ok, res.OK)
			assert.Equal(t, tt.msg, res.Message)
		})
	}
}
