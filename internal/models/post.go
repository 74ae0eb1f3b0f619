package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxReplyDepth caps reply nesting: replies to posts (depth 1) and
// replies to replies (depth 2). The recursive shape supports more, the
// engine refuses it.
const MaxReplyDepth = 2

// Post represents a top-level piece of content. The author snapshot is
// a copy of the author's display fields at creation time; likes and the
// reply tree are assembled from their own tables at read time.
type Post struct {
	ID    uint   `gorm:"primaryKey" json:"_id"`
	Title string `gorm:"type:text" json:"title"`

	ImageID  string `json:"-"`
	ImageURL string `json:"image,omitempty"`

	AuthorID uint         `gorm:"not null;index" json:"-"`
	Author   UserSnapshot `gorm:"embedded;embeddedPrefix:author_" json:"user"`

	Likes   []Like  `gorm:"-" json:"likes"`
	Replies []Reply `gorm:"-" json:"replies"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Reply is a lightweight post attached to a parent post or to another
// reply. ParentID is 0 for first-level replies. Each reply carries its
// own like set; nested replies live in Replies (serialized as "reply",
// matching the wire shape clients expect).
type Reply struct {
	ID       uint `gorm:"primaryKey" json:"_id"`
	PostID   uint `gorm:"not null;index" json:"-"`
	ParentID uint `gorm:"not null;default:0;index" json:"-"`
	Depth    int  `gorm:"not null" json:"-"`

	Title    string `gorm:"type:text" json:"title"`
	ImageID  string `json:"-"`
	ImageURL string `json:"image,omitempty"`

	Author UserSnapshot `gorm:"embedded;embeddedPrefix:author_" json:"user"`

	Likes   []Like  `gorm:"-" json:"likes"`
	Replies []Reply `gorm:"-" json:"reply"`

	CreatedAt time.Time `json:"createdAt"`
}

// Like is one user's membership in a likeable target's like set.
// ReplyID is 0 when the target is the post itself. The composite unique
// index guarantees at most one row per (target, user), which is what
// makes toggling idempotent under concurrent writers.
type Like struct {
	ID      uint `gorm:"primaryKey" json:"-"`
	PostID  uint `gorm:"not null;uniqueIndex:idx_like_target" json:"-"`
	ReplyID uint `gorm:"not null;default:0;uniqueIndex:idx_like_target" json:"-"`
	UserID  uint `gorm:"not null;uniqueIndex:idx_like_target" json:"userId"`

	// Liker display snapshot, denormalized into the row.
	Name     string `json:"name"`
	Username string `json:"userName"`
	Avatar   string `json:"userAvatar"`

	CreatedAt time.Time `json:"-"`
}

// TableName specifies the table name for GORM
func (Like) TableName() string {
	return "likes"
}
