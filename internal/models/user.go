// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account in Tidepool.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"_id"`
	Name     string `gorm:"not null" json:"name"`
	Username string `gorm:"unique;not null" json:"userName"`
	Email    string `gorm:"unique;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	Bio        string `json:"bio"`
	Location   string `json:"location"`
	Occupation string `json:"occupation"`

	// Profile and cover images are references into the external object
	// store: an opaque storage id plus the public retrieval URL.
	AvatarID  string `json:"avatarId"`
	AvatarURL string `json:"avatarUrl"`
	CoverID   string `json:"coverId"`
	CoverURL  string `json:"coverUrl"`

	Role   string `gorm:"type:varchar(20);default:'user'" json:"role"`
	Active bool   `gorm:"default:true" json:"active"`

	// Followers/Following are assembled from the follows table at read
	// time; the edge row is the single source of truth for both sides.
	Followers []UserRef `gorm:"-" json:"followers"`
	Following []UserRef `gorm:"-" json:"following"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// UserRef is a bare user reference inside a follower/following list.
type UserRef struct {
	UserID uint `json:"userId"`
}

// Friend is the trimmed profile card returned by the friends listing.
// Unlike a snapshot it is hydrated from the live user row, so it tracks
// profile edits.
type Friend struct {
	UserID     uint   `json:"userId"`
	Name       string `json:"name"`
	Occupation string `json:"occupation"`
	Location   string `json:"location"`
	AvatarURL  string `json:"avatarUrl"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Snapshot captures the user's display fields as an embedded copy.
// Snapshots are taken at write time and never updated afterwards.
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		UserID:   u.ID,
		Name:     u.Name,
		Username: u.Username,
		Avatar:   u.AvatarURL,
	}
}

// UserSnapshot is a denormalized copy of a user's display attributes,
// embedded in posts, replies, likes, and notifications. It does not
// track later profile changes.
type UserSnapshot struct {
	UserID   uint   `json:"userId"`
	Name     string `json:"name"`
	Username string `json:"userName"`
	Avatar   string `json:"userAvatar"`
}

// Follow is a directed edge in the social graph: follower follows
// followee. The composite unique index makes edge toggling idempotent.
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_edge" json:"followerId"`
	FolloweeID uint      `gorm:"not null;uniqueIndex:idx_follow_edge" json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}
