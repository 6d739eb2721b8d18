package gitsync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cellarsync/cellarsync/internal/cellar"
)

const (
	msgNoChanges      = "No changes to push."
	msgRemoteChanged  = "Remote repository has changed since last sync. Pull the remote changes or propose a merge."
	pushFailedPrefix  = "Push failed"
	defaultCommitBody = "Sync cellar"
)

// PushOptions controls the optimistic concurrency check that precedes a push.
type PushOptions struct {
	// CheckConflict compares LastSyncedSHA with the remote head before writing.
	CheckConflict bool
	// LastSyncedSHA is the head recorded by the last successful sync; empty when
	// the cellar has never been synced.
	LastSyncedSHA string
}

// Push makes the managed namespace of the default branch match bottles in one commit.
// Foreign paths are preserved. An unchanged snapshot performs no writes.
func (e *Engine) Push(ctx context.Context, bottles []*cellar.Bottle, opts PushOptions) Result {
	if opts.CheckConflict {
		if check := e.CheckConflict(ctx, opts.LastSyncedSHA); check.Conflict {
			slog.Warn("push conflict", "lastSynced", opts.LastSyncedSHA, "remote", check.RemoteSHA)
			return Result{Status: StatusConflict, Message: msgRemoteChanged, RemoteSHA: check.RemoteSHA}
		}
	}

	start := time.Now()
	h, err := e.resolveHead(ctx)
	if err != nil {
		return errorResult(pushFailedPrefix, err)
	}

	res, err := e.commitSnapshot(ctx, h, h.branch, bottles)
	if err != nil {
		return errorResult(pushFailedPrefix, err)
	}
	if res.Changes == nil {
		slog.Info("push", "status", "no changes", "head", res.CommitSHA, "took", time.Since(start))
		res.Message = msgNoChanges
		return res
	}

	if h.empty() {
		err = e.client.CreateRef(ctx, h.branch, res.CommitSHA)
	} else {
		err = e.client.UpdateRef(ctx, h.branch, res.CommitSHA)
	}
	if err != nil {
		return errorResult(pushFailedPrefix, fmt.Errorf("move %s: %w", h.branch, err))
	}

	total := res.Changes.Total()
	slog.Info("push",
		"branch", h.branch,
		"commit", res.CommitSHA,
		"added", len(res.Changes.Added),
		"modified", len(res.Changes.Modified),
		"deleted", len(res.Changes.Deleted),
		"took", time.Since(start),
	)
	res.Message = fmt.Sprintf("Pushed %s to GitHub.", plural(total, "change", "changes"))
	return res
}

// commitSnapshot diffs bottles against h and writes a tree and commit on top of it.
// It does not move any ref. When nothing changed it returns h's commit and nil Changes.
func (e *Engine) commitSnapshot(ctx context.Context, h *head, label string, bottles []*cellar.Bottle) (Result, error) {
	local, err := serializeSnapshot(bottles)
	if err != nil {
		return Result{}, err
	}

	entries, err := e.listTree(ctx, h)
	if err != nil {
		return Result{}, err
	}

	changes := diffSnapshot(local, managedEntries(entries))
	if changes.Empty() {
		return Result{Status: StatusSuccess, CommitSHA: h.commit}, nil
	}

	tree, err := e.client.CreateTree(ctx, h.tree, treeChanges(changes, local))
	if err != nil {
		return Result{}, fmt.Errorf("create tree: %w", err)
	}

	var parents []string
	if !h.empty() {
		parents = []string{h.commit}
	}

	message := changes.CommitMessage()
	if message == "" {
		message = defaultCommitBody
	}
	commit, err := e.client.CreateCommit(ctx, message, tree, parents)
	if err != nil {
		return Result{}, fmt.Errorf("create commit: %w", err)
	}

	slog.Debug("commit", "target", label, "commit", commit, "tree", tree, "message", message)
	return Result{Status: StatusSuccess, CommitSHA: commit, Changes: changes}, nil
}
