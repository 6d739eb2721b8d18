package gitsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/remote"
)

const (
	conflictBranchPrefix = "conflict/"
	conflictBranchLayout = "2006-01-02-150405"
	prFailedPrefix       = "PR creation failed"
	msgNothingToPropose  = "Nothing to propose: local bottles already match the remote."
)

// ConflictBranchName returns conflict/YYYY-MM-DD-HHMMSS for the given clock reading (UTC).
func (e *Engine) ConflictBranchName() string {
	return conflictBranchPrefix + e.now().UTC().Format(conflictBranchLayout)
}

// ProposeMerge commits the full local snapshot to a new conflict branch built on
// the current remote head and opens a pull request into the default branch.
// The default branch and local state are left alone.
func (e *Engine) ProposeMerge(ctx context.Context, bottles []*cellar.Bottle) Result {
	h, err := e.resolveHead(ctx)
	if err != nil {
		return errorResult(prFailedPrefix, err)
	}

	branch := e.ConflictBranchName()
	res, err := e.commitSnapshot(ctx, h, branch, bottles)
	if err != nil {
		return errorResult(prFailedPrefix, err)
	}
	if res.Changes == nil {
		return Result{Status: StatusSuccess, Message: msgNothingToPropose, CommitSHA: res.CommitSHA}
	}

	if err := e.client.CreateRef(ctx, branch, res.CommitSHA); err != nil {
		return errorResult(prFailedPrefix, fmt.Errorf("create branch %s: %w", branch, err))
	}

	timestamp := branch[len(conflictBranchPrefix):]
	pr, err := e.client.CreatePullRequest(ctx, &remote.PullRequestParams{
		Title: "Resolve sync conflict - " + timestamp,
		Body:  proposalBody(len(bottles), res.Changes),
		Head:  branch,
		Base:  h.branch,
	})
	if err != nil {
		return errorResult(prFailedPrefix, err)
	}

	slog.Info("proposed merge", "branch", branch, "commit", res.CommitSHA, "pr", pr.Number, "url", pr.HTMLURL)
	return Result{
		Status:         StatusSuccess,
		Message:        "Pull request created: " + pr.HTMLURL,
		CommitSHA:      res.CommitSHA,
		Changes:        res.Changes,
		PullRequestURL: pr.HTMLURL,
	}
}

func proposalBody(count int, changes *Changes) string {
	return fmt.Sprintf(`## Sync Conflict

The remote repository changed after this device last synced. This branch contains the full local cellar (%s) on top of the current remote head.

Changes against the remote: %d added, %d updated, %d removed.

Review the diff and merge to keep the local version, or close this pull request and accept the remote version on the device.
`, plural(count, "bottle", "bottles"), len(changes.Added), len(changes.Modified), len(changes.Deleted))
}

// LocalState is the part of the local store that accept-remote overwrites.
type LocalState interface {
	ReplaceAll(ctx context.Context, bottles []*cellar.Bottle) error
	ResetPending(ctx context.Context) error
	SetVersionMarker(ctx context.Context, sha string) error
}

// AcceptRemote discards local bottles in favor of the remote ones. Nothing local
// is touched unless the pull succeeds.
func (e *Engine) AcceptRemote(ctx context.Context, local LocalState) PullResult {
	res := e.Pull(ctx)
	if !res.OK() {
		return res
	}

	if err := ApplyPull(ctx, local, &res); err != nil {
		return PullResult{Status: StatusError, Message: fmt.Sprintf("Accept remote failed: %s", err)}
	}

	slog.Info("accepted remote", "head", res.CommitSHA, "bottles", len(res.Bottles))
	return res
}

// ApplyPull replaces the local snapshot with a successful pull and records its head.
func ApplyPull(ctx context.Context, local LocalState, res *PullResult) error {
	if err := local.ReplaceAll(ctx, res.Bottles); err != nil {
		return fmt.Errorf("replace bottles: %w", err)
	}
	if err := local.ResetPending(ctx); err != nil {
		return fmt.Errorf("reset pending count: %w", err)
	}
	if res.CommitSHA != "" {
		if err := local.SetVersionMarker(ctx, res.CommitSHA); err != nil {
			return fmt.Errorf("set version marker: %w", err)
		}
	}
	return nil
}
