package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/remote"
)

const pullFailedPrefix = "Pull failed"

// PullResult carries the bottles read from the remote. Callers decide whether
// to apply them; the engine never touches local state.
type PullResult struct {
	Status    Status
	Message   string
	Bottles   []*cellar.Bottle
	CommitSHA string
	// Failures lists files that were skipped because they did not parse.
	Failures []FileFailure
}

func (r PullResult) OK() bool {
	return r.Status == StatusSuccess
}

// fetched is the outcome for one blob, stored by index so batch order is preserved.
type fetched struct {
	bottle *cellar.Bottle
	reason string
}

// Pull reads every bottle file from the default branch. Blobs are fetched in
// batches of at most batchSize concurrent requests; batches run one after the
// other. A file that fails to parse is skipped and reported; a transport error
// aborts the pull.
func (e *Engine) Pull(ctx context.Context) PullResult {
	start := time.Now()

	h, err := e.resolveHead(ctx)
	if err != nil {
		return PullResult{Status: StatusError, Message: fmt.Sprintf("%s: %s", pullFailedPrefix, err)}
	}
	if h.empty() {
		return PullResult{Status: StatusSuccess, Message: pulledMessage(0), Bottles: []*cellar.Bottle{}}
	}

	entries, err := e.listTree(ctx, h)
	if err != nil {
		return PullResult{Status: StatusError, Message: fmt.Sprintf("%s: %s", pullFailedPrefix, err)}
	}
	entries = bottleEntries(entries)

	results := make([]fetched, len(entries))
	for i := 0; i < len(entries); i += e.batchSize {
		end := min(i+e.batchSize, len(entries))
		if err := e.fetchBatch(ctx, entries[i:end], results[i:end]); err != nil {
			return PullResult{Status: StatusError, Message: fmt.Sprintf("%s: %s", pullFailedPrefix, err)}
		}
	}

	bottles := make([]*cellar.Bottle, 0, len(entries))
	var failures []FileFailure
	for i, r := range results {
		if r.bottle != nil {
			bottles = append(bottles, r.bottle)
			continue
		}
		failures = append(failures, FileFailure{Path: entries[i].Path, Reason: r.reason})
	}

	slog.Info("pull", "head", h.commit, "files", len(entries), "bottles", len(bottles), "skipped", len(failures), "took", time.Since(start))

	if len(bottles) == 0 && len(failures) > 0 {
		return PullResult{
			Status:   StatusError,
			Message:  fmt.Sprintf("%s: all %d file(s) failed to parse: %s", pullFailedPrefix, len(failures), joinFailures(failures, "; ")),
			Failures: failures,
		}
	}

	msg := pulledMessage(len(bottles))
	if len(failures) > 0 {
		paths := make([]string, 0, len(failures))
		for _, f := range failures {
			paths = append(paths, f.Path)
		}
		msg = fmt.Sprintf("%s %d file(s) skipped: %s", msg, len(failures), strings.Join(paths, ", "))
	}

	return PullResult{
		Status:    StatusSuccess,
		Message:   msg,
		Bottles:   bottles,
		CommitSHA: h.commit,
		Failures:  failures,
	}
}

// fetchBatch fetches and parses one batch concurrently. The first transport
// error cancels the rest of the batch.
func (e *Engine) fetchBatch(ctx context.Context, entries []remote.TreeEntry, out []fetched) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range entries {
		i := i
		entry := entries[i]
		g.Go(func() error {
			data, err := e.client.GetBlob(gctx, entry.SHA)
			if err != nil {
				return fmt.Errorf("get blob %s: %w", entry.Path, err)
			}
			b, err := cellar.Deserialize(data)
			if err != nil {
				out[i] = fetched{reason: failureReason(err)}
				return nil
			}
			out[i] = fetched{bottle: b}
			return nil
		})
	}
	return g.Wait()
}

// bottleEntries keeps the blob entries that look like bottle files.
func bottleEntries(entries []remote.TreeEntry) []remote.TreeEntry {
	out := make([]remote.TreeEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type != remote.TypeBlob || e.SHA == "" {
			continue
		}
		if ok, _ := doublestar.Match(cellar.ManagedPattern, e.Path); ok {
			out = append(out, e)
		}
	}
	return out
}

func failureReason(err error) string {
	var verr *cellar.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}

func joinFailures(failures []FileFailure, sep string) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, sep)
}

func pulledMessage(n int) string {
	return fmt.Sprintf("Pulled %s from GitHub.", plural(n, "bottle", "bottles"))
}
