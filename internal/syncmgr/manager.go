// Package syncmgr coordinates sync operations for one local cellar.
//
// The Manager is the single entry point for push, pull and conflict
// resolution. At most one of them runs at a time; a request that arrives while
// another is in flight is skipped, not queued. Every outcome is reported as a
// Status and broadcast to subscribers.
package syncmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/gitsync"
)

const msgNotConfigured = "Sync is not configured."

var ErrSyncInFlight = errors.New("sync already in flight")

// Store is the local persistence the manager reads snapshots from and writes pulls to.
type Store interface {
	gitsync.LocalState
	AllBottles(ctx context.Context) ([]*cellar.Bottle, error)
	IncrementPending(ctx context.Context) (int, error)
	PendingCount(ctx context.Context) (int, error)
	VersionMarker(ctx context.Context) (string, error)
	ClearVersionMarker(ctx context.Context) error
	LastSyncedAt(ctx context.Context) (time.Time, error)
}

// Outcome is what a sync operation reports back to its caller.
type Outcome struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	// Skipped is set when another operation was in flight and nothing ran.
	Skipped        bool                  `json:"skipped,omitempty"`
	CommitSHA      string                `json:"commitSha,omitempty"`
	PullRequestURL string                `json:"pullRequestUrl,omitempty"`
	Bottles        int                   `json:"bottles,omitempty"`
	Failures       []gitsync.FileFailure `json:"failures,omitempty"`
	// RetryIn is the delay before an automatic retry of a failed push, if one was scheduled.
	RetryIn time.Duration `json:"retryIn,omitempty"`
}

// Report is the full status shown by `cellarsync status` and the control plane.
type Report struct {
	Event
	LastSyncedSHA string     `json:"lastSyncedSha,omitempty"`
	LastSyncedAt  *time.Time `json:"lastSyncedAt,omitempty"`
	RetryPending  bool       `json:"retryPending,omitempty"`
}

type Option func(*Manager)

// WithAutoRetry retries failed pushes with exponential backoff.
func WithAutoRetry(policy RetryPolicy) Option {
	return func(m *Manager) {
		m.retryPolicy = &policy
	}
}

type Manager struct {
	store  Store
	events broadcaster

	// muSync is held for the whole of push, pull, propose-merge and accept-remote.
	muSync sync.Mutex

	mu      sync.RWMutex
	engine  *gitsync.Engine
	status  Status
	message string

	retryPolicy *RetryPolicy
	retry       *retryScheduler

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a manager. A nil engine means sync is not configured and every
// sync operation is a no-op.
func New(store Store, engine *gitsync.Engine, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:  store,
		engine: engine,
		status: StatusConnected,
		ctx:    ctx,
		cancel: cancel,
	}
	if engine == nil {
		m.status = StatusNotConfigured
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.retryPolicy != nil {
		m.retry = newRetryScheduler(*m.retryPolicy, m.retryPush)
	}
	return m
}

// Close cancels any scheduled retry and closes all subscriptions.
func (m *Manager) Close() {
	m.cancelRetry()
	m.cancel()
	m.events.closeAll()
}

// Subscribe returns a channel of status events. Slow readers miss events.
func (m *Manager) Subscribe() <-chan Event {
	return m.events.subscribe()
}

func (m *Manager) Unsubscribe(ch <-chan Event) {
	m.events.unsubscribe(ch)
}

// Status returns the current status and pending count.
func (m *Manager) Status(ctx context.Context) Event {
	m.mu.RLock()
	ev := Event{Status: m.status, Message: m.message}
	m.mu.RUnlock()

	n, err := m.store.PendingCount(ctx)
	if err != nil {
		slog.Warn("read pending count", "error", err)
	}
	ev.PendingCount = n
	return ev
}

// Report adds the version marker and last sync time to Status.
func (m *Manager) Report(ctx context.Context) (*Report, error) {
	r := &Report{Event: m.Status(ctx)}

	marker, err := m.store.VersionMarker(ctx)
	if err != nil {
		return nil, err
	}
	r.LastSyncedSHA = marker

	at, err := m.store.LastSyncedAt(ctx)
	if err != nil {
		return nil, err
	}
	if !at.IsZero() {
		r.LastSyncedAt = &at
	}

	if m.retry != nil {
		r.RetryPending = m.retry.pending()
	}
	return r, nil
}

func (m *Manager) setStatus(ctx context.Context, status Status, message string) {
	m.mu.Lock()
	m.status = status
	m.message = message
	m.mu.Unlock()

	m.events.publish(m.Status(ctx))
}

func (m *Manager) currentStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) currentEngine() *gitsync.Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engine
}

// RecordMutation counts a local change and re-broadcasts the status. It never
// touches the network.
func (m *Manager) RecordMutation(ctx context.Context, description string) (Event, error) {
	n, err := m.store.IncrementPending(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("record mutation: %w", err)
	}
	slog.Debug("mutation recorded", "change", description, "pending", n)

	m.mu.RLock()
	ev := Event{Status: m.status, PendingCount: n, Message: m.message}
	m.mu.RUnlock()

	m.events.publish(ev)
	return ev, nil
}

// run executes op under the in-flight guard and converts panics to an error status.
func (m *Manager) run(ctx context.Context, op string, fn func(ctx context.Context, engine *gitsync.Engine) Outcome) (out Outcome) {
	engine := m.currentEngine()
	if engine == nil {
		return Outcome{Status: StatusNotConfigured, Message: msgNotConfigured}
	}

	if !m.muSync.TryLock() {
		slog.Info("sync skipped", "op", op, "reason", ErrSyncInFlight)
		return Outcome{Status: StatusSyncing, Message: ErrSyncInFlight.Error(), Skipped: true}
	}
	defer m.muSync.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("sync panic", "op", op, "panic", r, "stack", string(debug.Stack()))
			out = m.fail(ctx, fmt.Sprintf("Unexpected error during %s: %v", op, r))
		}
	}()

	start := time.Now()
	m.setStatus(ctx, StatusSyncing, "")
	out = fn(ctx, engine)
	slog.Info("sync", "op", op, "status", out.Status, "took", time.Since(start))
	return out
}

func (m *Manager) fail(ctx context.Context, message string) Outcome {
	m.setStatus(ctx, StatusError, message)
	return Outcome{Status: StatusError, Message: message}
}

// markSynced zeroes the pending counter and records sha as the version marker.
// An empty sha (empty repository) leaves the marker alone.
func (m *Manager) markSynced(ctx context.Context, sha string) error {
	if err := m.store.ResetPending(ctx); err != nil {
		return fmt.Errorf("reset pending count: %w", err)
	}
	if sha == "" {
		return nil
	}
	if err := m.store.SetVersionMarker(ctx, sha); err != nil {
		return fmt.Errorf("set version marker: %w", err)
	}
	return nil
}

// Push sends the full local snapshot. A diverged remote yields StatusConflict
// and leaves the pending count and version marker untouched.
func (m *Manager) Push(ctx context.Context) Outcome {
	return m.run(ctx, "push", m.push)
}

func (m *Manager) push(ctx context.Context, engine *gitsync.Engine) Outcome {
	bottles, err := m.store.AllBottles(ctx)
	if err != nil {
		return m.failPush(ctx, fmt.Sprintf("Push failed: %s", err))
	}
	marker, err := m.store.VersionMarker(ctx)
	if err != nil {
		return m.failPush(ctx, fmt.Sprintf("Push failed: %s", err))
	}

	res := engine.Push(ctx, bottles, gitsync.PushOptions{CheckConflict: true, LastSyncedSHA: marker})
	switch res.Status {
	case gitsync.StatusConflict:
		m.cancelRetry()
		m.setStatus(ctx, StatusConflict, res.Message)
		return Outcome{Status: StatusConflict, Message: res.Message}
	case gitsync.StatusError:
		return m.failPush(ctx, res.Message)
	}

	if err := m.markSynced(ctx, res.CommitSHA); err != nil {
		return m.failPush(ctx, fmt.Sprintf("Push failed: %s", err))
	}
	m.cancelRetry()
	m.setStatus(ctx, StatusConnected, "")
	return Outcome{Status: StatusConnected, Message: res.Message, CommitSHA: res.CommitSHA}
}

func (m *Manager) failPush(ctx context.Context, message string) Outcome {
	out := m.fail(ctx, message)
	if m.retry != nil {
		if delay, ok := m.retry.schedule(); ok {
			out.RetryIn = delay
		}
	}
	return out
}

// Pull reads the remote snapshot. Local bottles are replaced only when the
// remote returned some.
func (m *Manager) Pull(ctx context.Context) Outcome {
	return m.run(ctx, "pull", m.pull)
}

func (m *Manager) pull(ctx context.Context, engine *gitsync.Engine) Outcome {
	res := engine.Pull(ctx)
	if !res.OK() {
		return m.fail(ctx, res.Message)
	}

	var err error
	if len(res.Bottles) > 0 {
		err = gitsync.ApplyPull(ctx, m.store, &res)
	} else {
		err = m.markSynced(ctx, res.CommitSHA)
	}
	if err != nil {
		return m.fail(ctx, fmt.Sprintf("Pull failed: %s", err))
	}

	m.cancelRetry()
	message := ""
	if len(res.Failures) > 0 {
		message = res.Message
	}
	m.setStatus(ctx, StatusConnected, message)
	return Outcome{
		Status:    StatusConnected,
		Message:   res.Message,
		CommitSHA: res.CommitSHA,
		Bottles:   len(res.Bottles),
		Failures:  res.Failures,
	}
}

// ProposeMerge pushes the local snapshot to a conflict branch and opens a pull
// request. Neither the default branch nor local state change, so a conflict
// stays a conflict.
func (m *Manager) ProposeMerge(ctx context.Context) Outcome {
	prev := m.currentStatus()
	return m.run(ctx, "propose-merge", func(ctx context.Context, engine *gitsync.Engine) Outcome {
		bottles, err := m.store.AllBottles(ctx)
		if err != nil {
			return m.fail(ctx, fmt.Sprintf("PR creation failed: %s", err))
		}

		res := engine.ProposeMerge(ctx, bottles)
		if !res.OK() {
			return m.fail(ctx, res.Message)
		}

		status := StatusConnected
		if prev == StatusConflict {
			status = StatusConflict
		}
		m.setStatus(ctx, status, res.Message)
		return Outcome{Status: status, Message: res.Message, CommitSHA: res.CommitSHA, PullRequestURL: res.PullRequestURL}
	})
}

// AcceptRemote replaces every local bottle with the remote snapshot. Callers
// must confirm with the user first; nothing local changes if the pull fails.
func (m *Manager) AcceptRemote(ctx context.Context) Outcome {
	return m.run(ctx, "accept-remote", func(ctx context.Context, engine *gitsync.Engine) Outcome {
		res := engine.AcceptRemote(ctx, m.store)
		if !res.OK() {
			return m.fail(ctx, res.Message)
		}

		m.cancelRetry()
		m.setStatus(ctx, StatusConnected, "")
		return Outcome{
			Status:    StatusConnected,
			Message:   res.Message,
			CommitSHA: res.CommitSHA,
			Bottles:   len(res.Bottles),
			Failures:  res.Failures,
		}
	})
}

// TestConnection checks the configured credentials without taking the sync lock.
func (m *Manager) TestConnection(ctx context.Context) gitsync.ConnectionResult {
	engine := m.currentEngine()
	if engine == nil {
		return gitsync.ConnectionResult{Message: msgNotConfigured}
	}
	return engine.TestConnection(ctx)
}

// Disconnect detaches the remote and forgets the version marker. It waits for
// an in-flight operation to finish.
func (m *Manager) Disconnect(ctx context.Context) error {
	if err := m.Reconfigure(ctx, nil, true); err != nil {
		return err
	}
	slog.Info("sync disconnected")
	return nil
}

// Reconfigure swaps the engine after the settings changed, waiting for an
// in-flight operation to finish. A nil engine leaves sync not configured.
// resetMarker forgets the version marker, which belongs to the old repository.
func (m *Manager) Reconfigure(ctx context.Context, engine *gitsync.Engine, resetMarker bool) error {
	m.cancelRetry()

	m.muSync.Lock()
	defer m.muSync.Unlock()

	m.mu.Lock()
	m.engine = engine
	m.mu.Unlock()

	if resetMarker {
		if err := m.store.ClearVersionMarker(ctx); err != nil {
			return err
		}
	}

	if engine == nil {
		m.setStatus(ctx, StatusNotConfigured, "")
	} else {
		m.setStatus(ctx, StatusConnected, "")
	}
	return nil
}

func (m *Manager) cancelRetry() {
	if m.retry != nil {
		m.retry.cancel()
	}
}

func (m *Manager) retryPush() {
	if m.ctx.Err() != nil {
		return
	}
	out := m.Push(m.ctx)
	slog.Info("retry push", "status", out.Status, "skipped", out.Skipped, "message", out.Message)
}
