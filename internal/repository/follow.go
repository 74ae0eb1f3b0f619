package repository

import (
	"context"

	"tidepool/internal/cache"
	"tidepool/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository manages directed follow edges. Toggling is split
// into Insert and Remove so the service can decide which side of the
// toggle it is on from the row count alone.
type FollowRepository interface {
	// Insert adds the edge and reports whether it was newly created.
	// Inserting an existing edge is a no-op returning false.
	Insert(ctx context.Context, followerID, followeeID uint) (bool, error)
	// Remove deletes the edge and reports whether it existed.
	Remove(ctx context.Context, followerID, followeeID uint) (bool, error)
	Exists(ctx context.Context, followerID, followeeID uint) (bool, error)
	Followers(ctx context.Context, userID uint) ([]models.UserRef, error)
	Following(ctx context.Context, userID uint) ([]models.UserRef, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a new FollowRepository implementation.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Insert(ctx context.Context, followerID, followeeID uint) (bool, error) {
	edge := models.Follow{FollowerID: followerID, FolloweeID: followeeID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edge)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidateFollowGraph(ctx, followerID, followeeID)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) Remove(ctx context.Context, followerID, followeeID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidateFollowGraph(ctx, followerID, followeeID)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) Followers(ctx context.Context, userID uint) ([]models.UserRef, error) {
	refs := []models.UserRef{}
	key := cache.FollowersKey(userID)

	err := cache.Aside(ctx, key, &refs, cache.FollowTTL, func() error {
		if err := r.db.WithContext(ctx).Model(&models.Follow{}).
			Select("follower_id AS user_id").
			Where("followee_id = ?", userID).
			Order("created_at ASC").
			Scan(&refs).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *followRepository) Following(ctx context.Context, userID uint) ([]models.UserRef, error) {
	refs := []models.UserRef{}
	key := cache.FollowingKey(userID)

	err := cache.Aside(ctx, key, &refs, cache.FollowTTL, func() error {
		if err := r.db.WithContext(ctx).Model(&models.Follow{}).
			Select("followee_id AS user_id").
			Where("follower_id = ?", userID).
			Order("created_at ASC").
			Scan(&refs).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
