package gitsync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/remote"
	"github.com/cellarsync/cellarsync/internal/remote/gitlocal"
)

// countingClient records every call and can inject failures per method.
type countingClient struct {
	remote.Client

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error

	blobDelay     time.Duration
	inflightBlobs atomic.Int32
	maxInflight   atomic.Int32
}

func newCountingClient(inner remote.Client) *countingClient {
	return &countingClient{Client: inner, calls: map[string]int{}, failures: map[string]error{}}
}

func (c *countingClient) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	return c.failures[method]
}

func (c *countingClient) failOn(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method] = err
}

func (c *countingClient) count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *countingClient) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *countingClient) writes() int {
	return c.count("CreateRef") + c.count("UpdateRef") + c.count("CreateCommit") +
		c.count("CreateTree") + c.count("CreatePullRequest")
}

func (c *countingClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = map[string]int{}
}

func (c *countingClient) GetRepository(ctx context.Context) (*remote.Repository, error) {
	if err := c.record("GetRepository"); err != nil {
		return nil, err
	}
	return c.Client.GetRepository(ctx)
}

func (c *countingClient) GetRef(ctx context.Context, branch string) (string, error) {
	if err := c.record("GetRef"); err != nil {
		return "", err
	}
	return c.Client.GetRef(ctx, branch)
}

func (c *countingClient) CreateRef(ctx context.Context, branch string, sha string) error {
	if err := c.record("CreateRef"); err != nil {
		return err
	}
	return c.Client.CreateRef(ctx, branch, sha)
}

func (c *countingClient) UpdateRef(ctx context.Context, branch string, sha string) error {
	if err := c.record("UpdateRef"); err != nil {
		return err
	}
	return c.Client.UpdateRef(ctx, branch, sha)
}

func (c *countingClient) GetCommit(ctx context.Context, sha string) (*remote.Commit, error) {
	if err := c.record("GetCommit"); err != nil {
		return nil, err
	}
	return c.Client.GetCommit(ctx, sha)
}

func (c *countingClient) CreateCommit(ctx context.Context, message string, tree string, parents []string) (string, error) {
	if err := c.record("CreateCommit"); err != nil {
		return "", err
	}
	return c.Client.CreateCommit(ctx, message, tree, parents)
}

func (c *countingClient) GetTree(ctx context.Context, sha string) ([]remote.TreeEntry, error) {
	if err := c.record("GetTree"); err != nil {
		return nil, err
	}
	return c.Client.GetTree(ctx, sha)
}

func (c *countingClient) CreateTree(ctx context.Context, base string, changes []remote.TreeChange) (string, error) {
	if err := c.record("CreateTree"); err != nil {
		return "", err
	}
	return c.Client.CreateTree(ctx, base, changes)
}

func (c *countingClient) GetBlob(ctx context.Context, sha string) ([]byte, error) {
	if err := c.record("GetBlob"); err != nil {
		return nil, err
	}

	n := c.inflightBlobs.Add(1)
	defer c.inflightBlobs.Add(-1)
	for {
		peak := c.maxInflight.Load()
		if n <= peak || c.maxInflight.CompareAndSwap(peak, n) {
			break
		}
	}
	if c.blobDelay > 0 {
		time.Sleep(c.blobDelay)
	}
	return c.Client.GetBlob(ctx, sha)
}

func (c *countingClient) CreatePullRequest(ctx context.Context, params *remote.PullRequestParams) (*remote.PullRequest, error) {
	if err := c.record("CreatePullRequest"); err != nil {
		return nil, err
	}
	return c.Client.CreatePullRequest(ctx, params)
}

func newTestRemote(t *testing.T) (*gitlocal.Repo, *countingClient) {
	t.Helper()
	repo, err := gitlocal.NewMemory("alice/cellar", "main")
	require.NoError(t, err)
	return repo, newCountingClient(repo)
}

func makeBottle(id string, name string) *cellar.Bottle {
	return &cellar.Bottle{
		ID:           id,
		Name:         name,
		Vintage:      2018,
		Type:         cellar.WineTypeRed,
		Country:      "France",
		Region:       "Rhône",
		GrapeVariety: []string{"Syrah"},
		History: []cellar.HistoryEntry{
			{Date: "2024-01-01T00:00:00Z", Action: cellar.ActionAdded, Quantity: 2},
		},
	}
}

func mustSerialize(t *testing.T, b *cellar.Bottle) []byte {
	t.Helper()
	data, err := cellar.Serialize(b)
	require.NoError(t, err)
	return data
}

func headTreePaths(t *testing.T, repo *gitlocal.Repo) map[string]string {
	t.Helper()
	ctx := context.Background()
	head, err := repo.GetRef(ctx, "main")
	require.NoError(t, err)
	commit, err := repo.GetCommit(ctx, head)
	require.NoError(t, err)
	entries, err := repo.GetTree(ctx, commit.TreeSHA)
	require.NoError(t, err)

	out := map[string]string{}
	for _, e := range entries {
		if e.Type == remote.TypeBlob {
			out[e.Path] = e.SHA
		}
	}
	return out
}

func fixedClock() time.Time {
	return time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)
}

func bottlesNamed(n int) []*cellar.Bottle {
	out := make([]*cellar.Bottle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, makeBottle(fmt.Sprintf("id-%02d", i), fmt.Sprintf("Wine %02d", i)))
	}
	return out
}
