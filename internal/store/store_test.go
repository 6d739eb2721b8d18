package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarsync/cellarsync/internal/cellar"
	"github.com/cellarsync/cellarsync/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	return s
}

func bottle(id string, typ cellar.WineType) *cellar.Bottle {
	return &cellar.Bottle{
		ID:           id,
		Name:         "Wine " + id,
		Vintage:      2019,
		Type:         typ,
		Country:      "Italy",
		Region:       "Piedmont",
		GrapeVariety: []string{"Nebbiolo"},
		History:      []cellar.HistoryEntry{{Date: "2024-01-01T00:00:00Z", Action: cellar.ActionAdded, Quantity: 3}},
	}
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b := bottle("a", cellar.WineTypeRed)
	require.NoError(t, s.PutBottle(ctx, b))

	got, err := s.GetBottle(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	updated := b.Clone()
	updated.Type = cellar.WineTypeWhite
	require.NoError(t, s.PutBottle(ctx, updated))

	all, err := s.AllBottles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, cellar.WineTypeWhite, all[0].Type)

	require.NoError(t, s.DeleteBottle(ctx, "a"))
	_, err = s.GetBottle(ctx, "a")
	assert.ErrorIs(t, err, ErrBottleNotFound)
	assert.ErrorIs(t, s.DeleteBottle(ctx, "a"), ErrBottleNotFound)
}

func TestStore_PutRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	b := bottle("a/../b", cellar.WineTypeRed)
	assert.Error(t, s.PutBottle(context.Background(), b))
}

func TestStore_NegativeQuantity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b := bottle("neg", cellar.WineTypeRed)
	b.History = append(b.History, cellar.HistoryEntry{Date: "2024-02-01T00:00:00Z", Action: cellar.ActionConsumed, Quantity: -1})

	var verr *cellar.ValidationError
	require.ErrorAs(t, s.PutBottle(ctx, b), &verr)
	assert.Equal(t, cellar.KindNotInteger, verr.Kind)

	// pulled snapshots are stored as the remote has them
	require.NoError(t, s.ReplaceAll(ctx, []*cellar.Bottle{b}))
	got, err := s.GetBottle(ctx, "neg")
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.PutBottle(ctx, bottle("old", cellar.WineTypeRed)))
	require.NoError(t, s.ReplaceAll(ctx, []*cellar.Bottle{
		bottle("b", cellar.WineTypeWhite),
		bottle("a", cellar.WineTypeRed),
	}))

	all, err := s.AllBottles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// ordered by path
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	require.NoError(t, s.ReplaceAll(ctx, nil))
	all, err = s.AllBottles(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_ReplaceAllRejectsInvalidSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.PutBottle(ctx, bottle("keep", cellar.WineTypeRed)))

	err := s.ReplaceAll(ctx, []*cellar.Bottle{
		bottle("x", cellar.WineTypeRed),
		{ID: "bad", Name: "Bad", Type: "orange"},
	})
	require.Error(t, err)

	all, err := s.AllBottles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "keep", all[0].ID)
}

func TestStore_PendingCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 1; i <= 3; i++ {
		n, err = s.IncrementPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	require.NoError(t, s.ResetPending(ctx))
	n, err = s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_VersionMarker(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	marker, err := s.VersionMarker(ctx)
	require.NoError(t, err)
	assert.Empty(t, marker)

	at, err := s.LastSyncedAt(ctx)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	require.NoError(t, s.SetVersionMarker(ctx, "abc123"))
	marker, err = s.VersionMarker(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", marker)

	at, err = s.LastSyncedAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.now(), at)

	require.NoError(t, s.ClearVersionMarker(ctx))
	marker, err = s.VersionMarker(ctx)
	require.NoError(t, err)
	assert.Empty(t, marker)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cellar.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.PutBottle(ctx, bottle("a", cellar.WineTypeSparkling)))
	_, err = s.IncrementPending(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SetVersionMarker(ctx, "sha"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.AllBottles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	n, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	marker, err := s.VersionMarker(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sha", marker)
}
