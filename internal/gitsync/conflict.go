package gitsync

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cellarsync/cellarsync/internal/remote"
)

// CheckConflict reports whether the remote head moved away from lastSynced.
//
// A cellar that was never synced (empty lastSynced) cannot conflict and the
// remote is not contacted. An empty or unreachable repository has nothing to
// conflict with; if the remote is down the push that follows reports the error.
func (e *Engine) CheckConflict(ctx context.Context, lastSynced string) ConflictCheck {
	if lastSynced == "" {
		return ConflictCheck{}
	}

	repo, err := e.client.GetRepository(ctx)
	if err != nil {
		slog.Debug("conflict check skipped", "error", err)
		return ConflictCheck{}
	}

	sha, err := e.client.GetRef(ctx, repo.DefaultBranch)
	if err != nil {
		if !errors.Is(err, remote.ErrRefNotFound) {
			slog.Debug("conflict check skipped", "error", err)
		}
		return ConflictCheck{}
	}

	if sha != lastSynced {
		return ConflictCheck{Conflict: true, RemoteSHA: sha}
	}
	return ConflictCheck{}
}
