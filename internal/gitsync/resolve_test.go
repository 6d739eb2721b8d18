package gitsync

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarsync/cellarsync/internal/cellar"
)

func TestProposeMerge(t *testing.T) {
	ctx := context.Background()
	repo, client := newTestRemote(t)

	remoteBottle := makeBottle("r", "Remote Wine")
	head, err := repo.CommitFiles(ctx, "main", "remote edit", map[string][]byte{
		cellar.PathFor(remoteBottle): mustSerialize(t, remoteBottle),
	})
	require.NoError(t, err)

	engine := New(client, WithClock(fixedClock))
	res := engine.ProposeMerge(ctx, []*cellar.Bottle{makeBottle("a", "Wine A")})
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "Pull request created: memory://alice/cellar/pull/1", res.Message)

	prs := repo.PullRequests()
	require.Len(t, prs, 1)
	pr := prs[0]
	assert.Regexp(t, regexp.MustCompile(`^conflict/\d{4}-\d{2}-\d{2}-\d{6}$`), pr.Head)
	assert.Equal(t, "conflict/2025-06-07-080910", pr.Head)
	assert.Equal(t, "main", pr.Base)
	assert.Equal(t, "Resolve sync conflict - 2025-06-07-080910", pr.Title)
	assert.Contains(t, pr.Body, "Sync Conflict")
	assert.Contains(t, pr.Body, "1 bottle")

	// the default branch is untouched and the proposal builds on it
	mainHead, err := repo.GetRef(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, head, mainHead)

	branchHead, err := repo.GetRef(ctx, pr.Head)
	require.NoError(t, err)
	commit, err := repo.GetCommit(ctx, branchHead)
	require.NoError(t, err)
	assert.Equal(t, []string{head}, commit.Parents)
	assert.Equal(t, 0, client.count("UpdateRef"))
}

func TestProposeMerge_MultipleBottlesInBody(t *testing.T) {
	ctx := context.Background()
	repo, client := newTestRemote(t)
	_, err := repo.CommitFiles(ctx, "main", "seed", map[string][]byte{"README.md": []byte("x")})
	require.NoError(t, err)

	res := New(client).ProposeMerge(ctx, bottlesNamed(2))
	require.True(t, res.OK(), res.Message)
	assert.Contains(t, repo.PullRequests()[0].Body, "2 bottles")
}

func TestProposeMerge_Failure(t *testing.T) {
	_, client := newTestRemote(t)
	client.failOn("GetRepository", errors.New("Network error"))

	res := New(client).ProposeMerge(context.Background(), bottlesNamed(1))
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "PR creation failed")
	assert.Zero(t, client.writes())
}

type fakeLocal struct {
	bottles  []*cellar.Bottle
	pending  int
	marker   string
	failWith error
}

func (f *fakeLocal) ReplaceAll(ctx context.Context, bottles []*cellar.Bottle) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.bottles = bottles
	return nil
}

func (f *fakeLocal) ResetPending(ctx context.Context) error {
	f.pending = 0
	return nil
}

func (f *fakeLocal) SetVersionMarker(ctx context.Context, sha string) error {
	f.marker = sha
	return nil
}

func TestAcceptRemote(t *testing.T) {
	ctx := context.Background()
	repo, client := newTestRemote(t)

	a := makeBottle("a", "Wine A")
	head, err := repo.CommitFiles(ctx, "main", "seed", map[string][]byte{cellar.PathFor(a): mustSerialize(t, a)})
	require.NoError(t, err)

	local := &fakeLocal{bottles: bottlesNamed(3), pending: 4, marker: "old"}
	res := New(client).AcceptRemote(ctx, local)
	require.True(t, res.OK(), res.Message)

	require.Len(t, local.bottles, 1)
	assert.Equal(t, "a", local.bottles[0].ID)
	assert.Zero(t, local.pending)
	assert.Equal(t, head, local.marker)
}

func TestAcceptRemote_PullFailureLeavesLocalAlone(t *testing.T) {
	_, client := newTestRemote(t)
	client.failOn("GetRepository", errors.New("offline"))

	original := bottlesNamed(2)
	local := &fakeLocal{bottles: original, pending: 2, marker: "old"}
	res := New(client).AcceptRemote(context.Background(), local)

	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "Pull failed")
	assert.Equal(t, original, local.bottles)
	assert.Equal(t, 2, local.pending)
	assert.Equal(t, "old", local.marker)
}
