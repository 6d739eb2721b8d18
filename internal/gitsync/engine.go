// Package gitsync mirrors a cellar snapshot into a git-hosted repository.
//
// Every operation works on full snapshots: a push recomputes the desired
// contents of the managed namespace from all local bottles and commits the
// difference against the remote tree in a single commit.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cellarsync/cellarsync/internal/remote"
)

const (
	// DefaultPullBatchSize bounds concurrent blob fetches during a pull.
	DefaultPullBatchSize = 10
)

// Engine runs sync operations against one remote repository.
type Engine struct {
	client    remote.Client
	batchSize int
	now       func() time.Time
}

type Option func(*Engine)

// WithPullBatchSize overrides the number of blobs fetched concurrently per batch.
func WithPullBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithClock sets the clock used for conflict branch names.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func New(client remote.Client, opts ...Option) *Engine {
	e := &Engine{
		client:    client,
		batchSize: DefaultPullBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// head is the state of the default branch at the start of an operation.
type head struct {
	branch string
	// commit is empty when the repository has no commits yet
	commit string
	tree   string
}

func (h *head) empty() bool {
	return h.commit == ""
}

// resolveHead finds the default branch and its head commit and root tree.
func (e *Engine) resolveHead(ctx context.Context) (*head, error) {
	repo, err := e.client.GetRepository(ctx)
	if err != nil {
		return nil, err
	}

	h := &head{branch: repo.DefaultBranch}
	sha, err := e.client.GetRef(ctx, repo.DefaultBranch)
	if errors.Is(err, remote.ErrRefNotFound) {
		return h, nil
	}
	if err != nil {
		return nil, err
	}

	commit, err := e.client.GetCommit(ctx, sha)
	if err != nil {
		return nil, err
	}
	h.commit = commit.SHA
	h.tree = commit.TreeSHA
	if h.commit == "" {
		h.commit = sha
	}
	return h, nil
}

// listTree returns the blob entries of the head tree, or none for an empty repository.
func (e *Engine) listTree(ctx context.Context, h *head) ([]remote.TreeEntry, error) {
	if h.empty() {
		return nil, nil
	}
	entries, err := e.client.GetTree(ctx, h.tree)
	if err != nil {
		return nil, fmt.Errorf("list tree %s: %w", h.tree, err)
	}
	blobs := make([]remote.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Type == remote.TypeBlob {
			blobs = append(blobs, entry)
		}
	}
	return blobs, nil
}
