package seed

import (
	"fmt"
	"sync/atomic"
	"testing"

	"tidepool/internal/database"
	"tidepool/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seedTestDBSeq atomic.Int64

func newSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:seedtest%d?mode=memory&cache=shared", seedTestDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func TestSeeder_EndToEnd(t *testing.T) {
	t.Parallel()

	db := newSeedTestDB(t)
	s := NewSeeder(db)

	users, err := s.SeedUsers(8)
	require.NoError(t, err)
	require.Len(t, users, 8)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
	assert.True(t, users[0].Active)

	require.NoError(t, s.SeedFollows(users))
	require.NoError(t, s.SeedPosts(users, 10))

	var postCount int64
	db.Model(&models.Post{}).Count(&postCount)
	assert.EqualValues(t, 10, postCount)

	// No self-follow edges.
	var selfFollows int64
	db.Model(&models.Follow{}).Where("follower_id = followee_id").Count(&selfFollows)
	assert.Zero(t, selfFollows)

	// No self-directed notifications.
	var selfNotifs int64
	db.Model(&models.Notification{}).Where("creator_user_id = recipient_id").Count(&selfNotifs)
	assert.Zero(t, selfNotifs)

	// Every reply belongs to an existing post.
	var orphanReplies int64
	db.Model(&models.Reply{}).
		Where("post_id NOT IN (SELECT id FROM posts)").
		Count(&orphanReplies)
	assert.Zero(t, orphanReplies)

	// ClearAll leaves nothing behind.
	require.NoError(t, s.ClearAll())
	var userCount int64
	db.Model(&models.User{}).Count(&userCount)
	assert.Zero(t, userCount)
}
