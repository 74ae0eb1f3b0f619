package service

import (
	"context"

	"tidepool/internal/models"
	"tidepool/internal/repository"
)

// NotificationService is the read side of the notification lifecycle;
// creation and withdrawal happen inside the engagement and follow
// services.
type NotificationService struct {
	notifRepo repository.NotificationRepository
}

func NewNotificationService(notifRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifRepo: notifRepo}
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error) {
	return s.notifRepo.ListByRecipient(ctx, recipientID, limit, offset)
}

// MarkRead marks one of the caller's notifications as read and returns
// it. Read notifications stay listed until the retention sweep removes
// them.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID uint) (*models.Notification, error) {
	return s.notifRepo.MarkRead(ctx, id, recipientID)
}
