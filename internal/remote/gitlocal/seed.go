package gitlocal

import (
	"context"
	"errors"
	"fmt"

	"github.com/cellarsync/cellarsync/internal/remote"
)

// CommitFiles writes files on top of branch in one commit, creating the branch
// when it does not exist yet, and returns the new head.
func (r *Repo) CommitFiles(ctx context.Context, branch string, message string, files map[string][]byte) (string, error) {
	var parents []string
	base := ""

	head, err := r.GetRef(ctx, branch)
	switch {
	case errors.Is(err, remote.ErrRefNotFound):
	case err != nil:
		return "", err
	default:
		commit, err := r.GetCommit(ctx, head)
		if err != nil {
			return "", err
		}
		parents = []string{head}
		base = commit.TreeSHA
	}

	changes := make([]remote.TreeChange, 0, len(files))
	for p, content := range files {
		changes = append(changes, remote.TreeChange{Path: p, Content: content, Delete: content == nil})
	}

	tree, err := r.CreateTree(ctx, base, changes)
	if err != nil {
		return "", err
	}
	sha, err := r.CreateCommit(ctx, message, tree, parents)
	if err != nil {
		return "", err
	}

	if len(parents) == 0 {
		err = r.CreateRef(ctx, branch, sha)
	} else {
		err = r.UpdateRef(ctx, branch, sha)
	}
	if err != nil {
		return "", fmt.Errorf("move %s: %w", branch, err)
	}
	return sha, nil
}
