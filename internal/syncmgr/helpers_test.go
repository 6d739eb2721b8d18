package syncmgr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/db"
	"github.com/cellarsync/cellarsync/internal/gitsync"
	"github.com/cellarsync/cellarsync/internal/remote"
	"github.com/cellarsync/cellarsync/internal/remote/gitlocal"
	"github.com/cellarsync/cellarsync/internal/store"
)

// gatedClient counts commits and can hold GetRepository until released or fail it.
type gatedClient struct {
	remote.Client

	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
	repoErr error

	repoCalls   atomic.Int32
	commitCalls atomic.Int32
}

func (c *gatedClient) hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = make(chan struct{})
	c.entered = make(chan struct{}, 1)
}

func (c *gatedClient) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.gate)
	c.gate = nil
}

func (c *gatedClient) failWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repoErr = err
}

func (c *gatedClient) GetRepository(ctx context.Context) (*remote.Repository, error) {
	c.repoCalls.Add(1)

	c.mu.Lock()
	gate, entered, err := c.gate, c.entered, c.repoErr
	c.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return c.Client.GetRepository(ctx)
}

func (c *gatedClient) CreateCommit(ctx context.Context, message string, tree string, parents []string) (string, error) {
	c.commitCalls.Add(1)
	return c.Client.CreateCommit(ctx, message, tree, parents)
}

type fixture struct {
	repo   *gitlocal.Repo
	client *gatedClient
	store  *store.Store
	mgr    *Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	repo, err := gitlocal.NewMemory("alice/cellar", "main")
	require.NoError(t, err)
	client := &gatedClient{Client: repo}

	st, err := store.Open(context.Background(), db.MemoryPath)
	require.NoError(t, err)

	mgr := New(st, gitsync.New(client), opts...)
	t.Cleanup(func() {
		mgr.Close()
		st.Close()
	})
	return &fixture{repo: repo, client: client, store: st, mgr: mgr}
}

func (f *fixture) addBottle(t *testing.T, id string) *cellar.Bottle {
	t.Helper()
	b := &cellar.Bottle{
		ID:           id,
		Name:         "Wine " + id,
		Vintage:      2020,
		Type:         cellar.WineTypeRed,
		Country:      "Spain",
		Region:       "Rioja",
		GrapeVariety: []string{"Tempranillo"},
		History:      []cellar.HistoryEntry{{Date: "2024-05-01T00:00:00Z", Action: cellar.ActionAdded, Quantity: 1}},
	}
	ctx := context.Background()
	require.NoError(t, f.store.PutBottle(ctx, b))
	_, err := f.mgr.RecordMutation(ctx, "add "+id)
	require.NoError(t, err)
	return b
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func statuses(events []Event) []Status {
	out := make([]Status, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Status)
	}
	return out
}
