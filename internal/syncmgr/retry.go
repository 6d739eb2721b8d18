package syncmgr

import (
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultRetryBase        = time.Second
	DefaultRetryMax         = 60 * time.Second
	DefaultRetryMaxAttempts = 10
)

// RetryPolicy is the exponential backoff applied to failed pushes.
type RetryPolicy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: DefaultRetryBase, Max: DefaultRetryMax, MaxAttempts: DefaultRetryMaxAttempts}
}

// Delay returns min(Base·2^attempt, Max).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	return min(d, p.Max)
}

// retryScheduler owns at most one pending timer.
type retryScheduler struct {
	policy RetryPolicy
	fire   func()

	mu      sync.Mutex
	attempt int
	timer   *time.Timer
}

func newRetryScheduler(policy RetryPolicy, fire func()) *retryScheduler {
	return &retryScheduler{policy: policy, fire: fire}
}

// schedule arms the next retry. It returns false once the attempts are used up.
func (r *retryScheduler) schedule() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attempt >= r.policy.MaxAttempts {
		slog.Warn("retry gave up", "attempts", r.attempt)
		return 0, false
	}
	if r.timer != nil {
		r.timer.Stop()
	}

	delay := r.policy.Delay(r.attempt)
	r.attempt++
	r.timer = time.AfterFunc(delay, r.run)
	slog.Info("retry scheduled", "attempt", r.attempt, "in", delay)
	return delay, true
}

func (r *retryScheduler) run() {
	r.mu.Lock()
	r.timer = nil
	r.mu.Unlock()
	r.fire()
}

// cancel stops any pending retry and resets the attempt counter.
func (r *retryScheduler) cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.attempt = 0
}

func (r *retryScheduler) pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil
}
