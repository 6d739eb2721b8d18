package syncmgr

import (
	"time"

	"github.com/cellarsync/cellarsync/internal/config"
	"github.com/cellarsync/cellarsync/internal/remote"
	"github.com/cellarsync/cellarsync/internal/remote/github"
	"github.com/cellarsync/cellarsync/internal/remote/gitlocal"
)

const (
	remoteTimeout    = 30 * time.Second
	remoteRetryCount = 2
)

// NewRemoteClient builds the client for the configured repository: a bare git
// repository on disk for file:// settings, GitHub otherwise.
func NewRemoteClient(cfg *config.Config) (remote.Client, error) {
	if !cfg.Configured() {
		return nil, config.ErrNoRepo
	}
	if cfg.IsLocal() {
		repo, err := gitlocal.Open(cfg.LocalRepoPath(), cfg.Branch)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	client, err := github.New(&github.Config{
		BaseURL:    cfg.BaseURL,
		Repo:       cfg.Repo,
		Token:      cfg.Token,
		Timeout:    remoteTimeout,
		RetryCount: remoteRetryCount,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
