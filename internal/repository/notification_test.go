package repository

import (
	"context"
	"testing"
	"time"

	"tidepool/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLikeNotification(creatorID, recipientID, postID, replyID uint) *models.Notification {
	return &models.Notification{
		RecipientID: recipientID,
		Type:        models.NotificationTypeLike,
		Title:       "liked your post",
		PostID:      postID,
		ReplyID:     replyID,
		Creator:     snapshot(creatorID, "creator"),
	}
}

func TestNotificationRepository_CreateAndList(t *testing.T) {
	t.Parallel()
	repo := NewNotificationRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newLikeNotification(2, 1, 10, 0)))
	require.NoError(t, repo.Create(ctx, newLikeNotification(3, 1, 11, 0)))
	require.NoError(t, repo.Create(ctx, newLikeNotification(2, 5, 12, 0)))

	list, err := repo.ListByRecipient(ctx, 1, 50, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, n := range list {
		assert.Equal(t, uint(1), n.RecipientID)
		assert.Equal(t, models.NotificationStatusUnread, n.Status)
	}
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	t.Parallel()
	repo := NewNotificationRepository(newTestDB(t))
	ctx := context.Background()

	n := newLikeNotification(2, 1, 10, 0)
	require.NoError(t, repo.Create(ctx, n))

	got, err := repo.MarkRead(ctx, n.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationStatusRead, got.Status)

	// Another recipient cannot consume it.
	_, err = repo.MarkRead(ctx, n.ID, 99)
	assert.Error(t, err)
}

func TestNotificationRepository_DeleteMatching(t *testing.T) {
	t.Parallel()
	repo := NewNotificationRepository(newTestDB(t))
	ctx := context.Background()

	// Two likes by the same creator on different targets of the same
	// recipient; undo must remove only the matching one.
	require.NoError(t, repo.Create(ctx, newLikeNotification(2, 1, 10, 0)))
	require.NoError(t, repo.Create(ctx, newLikeNotification(2, 1, 10, 7)))

	require.NoError(t, repo.DeleteMatching(ctx, 2, 1, models.NotificationTypeLike, 10, 0))

	list, err := repo.ListByRecipient(ctx, 1, 50, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint(7), list[0].ReplyID)
}

func TestNotificationRepository_DeleteReadOlderThan(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	oldRead := newLikeNotification(2, 1, 10, 0)
	require.NoError(t, repo.Create(ctx, oldRead))
	_, err := repo.MarkRead(ctx, oldRead.ID, 1)
	require.NoError(t, err)

	freshRead := newLikeNotification(3, 1, 11, 0)
	require.NoError(t, repo.Create(ctx, freshRead))
	_, err = repo.MarkRead(ctx, freshRead.ID, 1)
	require.NoError(t, err)

	unread := newLikeNotification(4, 1, 12, 0)
	require.NoError(t, repo.Create(ctx, unread))

	// Age the first read notification past the cutoff.
	aged := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.Notification{}).
		Where("id = ?", oldRead.ID).
		Update("updated_at", aged).Error)

	deleted, err := repo.DeleteReadOlderThan(ctx, time.Now().Add(-30*24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	list, err := repo.ListByRecipient(ctx, 1, 50, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2, "fresh read and unread notifications survive the sweep")
}
