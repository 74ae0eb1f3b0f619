package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix          = "user:%d"
	PostKeyPrefix          = "post:%d"
	PostsListKey           = "posts:all"
	UserPostsKeyPrefix     = "posts:user:%d"
	FollowersKeyPrefix     = "user:%d:followers"
	FollowingKeyPrefix     = "user:%d:following"
	NotificationsKeyPrefix = "notifications:%d"
)

const (
	UserTTL          = 5 * time.Minute
	PostTTL          = 30 * time.Minute
	ListTTL          = 1 * time.Minute
	FollowTTL        = 5 * time.Minute
	NotificationsTTL = 1 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func UserPostsKey(userID uint) string {
	return fmt.Sprintf(UserPostsKeyPrefix, userID)
}

func FollowersKey(userID uint) string {
	return fmt.Sprintf(FollowersKeyPrefix, userID)
}

func FollowingKey(userID uint) string {
	return fmt.Sprintf(FollowingKeyPrefix, userID)
}

func NotificationsKey(userID uint) string {
	return fmt.Sprintf(NotificationsKeyPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidatePost drops the single-post entry plus the list entries that
// embed it.
func InvalidatePost(ctx context.Context, postID, authorID uint) {
	Invalidate(ctx, PostKey(postID))
	Invalidate(ctx, PostsListKey)
	Invalidate(ctx, UserPostsKey(authorID))
}

// InvalidatePostsList drops the global feed entry only. Used when the
// author is unknown or unchanged.
func InvalidatePostsList(ctx context.Context) {
	Invalidate(ctx, PostsListKey)
}

// InvalidateFollowGraph drops the cached edge lists on both sides of a
// follow toggle.
func InvalidateFollowGraph(ctx context.Context, followerID, followeeID uint) {
	Invalidate(ctx, FollowingKey(followerID))
	Invalidate(ctx, FollowersKey(followeeID))
}

func InvalidateNotifications(ctx context.Context, userID uint) {
	Invalidate(ctx, NotificationsKey(userID))
}
