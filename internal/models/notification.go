package models

import "time"

// NotificationType identifies the social action that produced a
// notification.
type NotificationType string

const (
	// NotificationTypeLike is emitted when someone likes a post or reply.
	NotificationTypeLike NotificationType = "Like"
	// NotificationTypeFollow is emitted when someone follows a user.
	NotificationTypeFollow NotificationType = "Follow"
	// NotificationTypeReply is emitted when someone replies to a post or reply.
	NotificationTypeReply NotificationType = "Reply"
)

// NotificationStatus is the read/unread lifecycle state.
type NotificationStatus string

const (
	// NotificationStatusUnread is the initial state.
	NotificationStatusUnread NotificationStatus = "unread"
	// NotificationStatusRead marks a notification the recipient has seen.
	NotificationStatusRead NotificationStatus = "read"
)

// Notification is an ephemeral event record addressed to a single user.
// It exists only while the triggering like/follow stands, or until the
// retention sweep removes it after it has been read.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"_id"`
	RecipientID uint             `gorm:"not null;index" json:"userId"`
	Type        NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Title       string           `gorm:"type:text" json:"title"`

	// PostID/ReplyID scope the notification to its triggering target so
	// an undo can find exactly the record it created. Zero when unused.
	PostID  uint `gorm:"not null;default:0;index" json:"postId,omitempty"`
	ReplyID uint `gorm:"not null;default:0" json:"replyId,omitempty"`

	Creator UserSnapshot `gorm:"embedded;embeddedPrefix:creator_" json:"creator"`

	Status NotificationStatus `gorm:"type:varchar(10);default:'unread'" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
