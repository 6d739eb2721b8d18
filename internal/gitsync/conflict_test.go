package gitsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("never synced makes no calls", func(t *testing.T) {
		_, client := newTestRemote(t)
		check := New(client).CheckConflict(ctx, "")
		assert.False(t, check.Conflict)
		assert.Zero(t, client.total())
	})

	t.Run("empty repository", func(t *testing.T) {
		_, client := newTestRemote(t)
		check := New(client).CheckConflict(ctx, "abc")
		assert.False(t, check.Conflict)
	})

	t.Run("unreachable remote", func(t *testing.T) {
		_, client := newTestRemote(t)
		client.failOn("GetRef", errors.New("timeout"))
		check := New(client).CheckConflict(ctx, "abc")
		assert.False(t, check.Conflict)
	})

	t.Run("head matches", func(t *testing.T) {
		repo, client := newTestRemote(t)
		head, err := repo.CommitFiles(ctx, "main", "one", map[string][]byte{"a": []byte("a")})
		require.NoError(t, err)

		check := New(client).CheckConflict(ctx, head)
		assert.False(t, check.Conflict)
	})

	t.Run("head moved", func(t *testing.T) {
		repo, client := newTestRemote(t)
		first, err := repo.CommitFiles(ctx, "main", "one", map[string][]byte{"a": []byte("a")})
		require.NoError(t, err)
		second, err := repo.CommitFiles(ctx, "main", "two", map[string][]byte{"b": []byte("b")})
		require.NoError(t, err)

		check := New(client).CheckConflict(ctx, first)
		assert.True(t, check.Conflict)
		assert.Equal(t, second, check.RemoteSHA)
	})
}
