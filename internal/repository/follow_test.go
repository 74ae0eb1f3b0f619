package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRepository_InsertIsIdempotent(t *testing.T) {
	t.Parallel()
	repo := NewFollowRepository(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Insert(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Insert(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created, "second insert of the same edge must be a no-op")

	exists, err := repo.Exists(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFollowRepository_EdgeIsDirected(t *testing.T) {
	t.Parallel()
	repo := NewFollowRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Insert(ctx, 1, 2)
	require.NoError(t, err)

	exists, err := repo.Exists(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, exists, "reverse edge must not exist")

	created, err := repo.Insert(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, created, "reverse edge is a distinct row")
}

func TestFollowRepository_Remove(t *testing.T) {
	t.Parallel()
	repo := NewFollowRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Insert(ctx, 1, 2)
	require.NoError(t, err)

	removed, err := repo.Remove(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Remove(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, removed, "removing a missing edge reports false")
}

func TestFollowRepository_ListsBothSides(t *testing.T) {
	t.Parallel()
	repo := NewFollowRepository(newTestDB(t))
	ctx := context.Background()

	// 2 and 3 follow 1; 1 follows 3.
	for _, edge := range [][2]uint{{2, 1}, {3, 1}, {1, 3}} {
		_, err := repo.Insert(ctx, edge[0], edge[1])
		require.NoError(t, err)
	}

	followers, err := repo.Followers(ctx, 1)
	require.NoError(t, err)
	ids := make([]uint, 0, len(followers))
	for _, f := range followers {
		ids = append(ids, f.UserID)
	}
	assert.ElementsMatch(t, []uint{2, 3}, ids)

	following, err := repo.Following(ctx, 1)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, uint(3), following[0].UserID)
}
