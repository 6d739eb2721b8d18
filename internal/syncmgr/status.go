package syncmgr

import (
	"sync"
)

const eventBufferSize = 16

// Status is the sync state surfaced to the UI. It is never persisted.
type Status string

const (
	StatusNotConfigured Status = "not-configured"
	StatusConnected     Status = "connected"
	StatusSyncing       Status = "syncing"
	StatusConflict      Status = "conflict"
	StatusError         Status = "error"
)

// Event is broadcast on every status change and every recorded mutation.
type Event struct {
	Status       Status `json:"status"`
	PendingCount int    `json:"pendingCount"`
	Message      string `json:"message,omitempty"`
}

// broadcaster fans events out to subscribers without blocking the publisher.
// A subscriber that falls behind loses events.
type broadcaster struct {
	mu   sync.RWMutex
	subs []chan Event
}

func (b *broadcaster) subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, eventBufferSize)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *broadcaster) unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			close(sub)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}
