package repository

import (
	"context"
	"errors"
	"time"

	"tidepool/internal/cache"
	"tidepool/internal/models"
	"tidepool/internal/observability"

	"gorm.io/gorm"
)

// NotificationRepository persists the notification lifecycle. Undo
// matching deletes by the exact (creator, recipient, type, target)
// tuple the originating action wrote.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, recipientID uint) (*models.Notification, error)
	DeleteMatching(ctx context.Context, creatorID, recipientID uint, typ models.NotificationType, postID, replyID uint) error
	DeleteForPost(ctx context.Context, postID uint) error
	// DeleteReadOlderThan removes read notifications older than cutoff in
	// batches, returning the total number deleted.
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository returns a new NotificationRepository implementation.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	defer observability.TrackQuery("create", "notifications")()
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return models.NewInternalError(err)
	}
	observability.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	cache.InvalidateNotifications(ctx, n.RecipientID)
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	fetch := func(dest *[]models.Notification) error {
		if err := r.db.WithContext(ctx).
			Where("recipient_id = ?", recipientID).
			Order("created_at DESC").
			Limit(limit).Offset(offset).
			Find(dest).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	}

	list := []models.Notification{}
	if offset == 0 {
		err := cache.Aside(ctx, cache.NotificationsKey(recipientID), &list, cache.NotificationsTTL, func() error {
			return fetch(&list)
		})
		if err != nil {
			return nil, err
		}
		return list, nil
	}

	if err := fetch(&list); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkRead flips the notification to read. Scoped to the recipient so
// one user cannot consume another's notifications.
func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Notification", id)
		}
		return nil, models.NewInternalError(err)
	}

	if n.Status != models.NotificationStatusRead {
		n.Status = models.NotificationStatusRead
		if err := r.db.WithContext(ctx).Model(&n).Update("status", n.Status).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	cache.InvalidateNotifications(ctx, recipientID)
	return &n, nil
}

func (r *notificationRepository) DeleteMatching(ctx context.Context, creatorID, recipientID uint, typ models.NotificationType, postID, replyID uint) error {
	res := r.db.WithContext(ctx).
		Where("creator_user_id = ? AND recipient_id = ? AND type = ? AND post_id = ? AND reply_id = ?",
			creatorID, recipientID, typ, postID, replyID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidateNotifications(ctx, recipientID)
	}
	return nil
}

func (r *notificationRepository) DeleteForPost(ctx context.Context, postID uint) error {
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Delete(&models.Notification{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *notificationRepository) DeleteReadOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var total int64
	for {
		var ids []uint
		if err := r.db.WithContext(ctx).Model(&models.Notification{}).
			Where("status = ? AND updated_at < ?", models.NotificationStatusRead, cutoff).
			Limit(batchSize).
			Pluck("id", &ids).Error; err != nil {
			return total, models.NewInternalError(err)
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := r.db.WithContext(ctx).Delete(&models.Notification{}, ids)
		if res.Error != nil {
			return total, models.NewInternalError(res.Error)
		}
		total += res.RowsAffected
		if res.RowsAffected < int64(batchSize) {
			return total, nil
		}
	}
}
