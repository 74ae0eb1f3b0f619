package service

import (
	"context"
	"errors"

	"tidepool/internal/models"
	"tidepool/internal/repository"
)

// FollowService toggles directed follow edges and keeps the follow
// notification lifecycle in step with them.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	notifRepo  repository.NotificationRepository
}

func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	notifRepo repository.NotificationRepository,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		notifRepo:  notifRepo,
	}
}

type ToggleFollowInput struct {
	FollowerID uint
	FolloweeID uint
}

// ToggleFollow flips the follower→followee edge. Creating the edge
// notifies the followee; removing it withdraws that notification.
// Following yourself is rejected outright. Returns the follower with
// refreshed edge lists.
func (s *FollowService) ToggleFollow(ctx context.Context, in ToggleFollowInput) (*models.User, error) {
	if in.FollowerID == in.FolloweeID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}

	follower, err := s.userRepo.GetByID(ctx, in.FollowerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, in.FolloweeID); err != nil {
		return nil, err
	}

	created, err := s.followRepo.Insert(ctx, in.FollowerID, in.FolloweeID)
	if err != nil {
		return nil, err
	}

	if created {
		n := &models.Notification{
			RecipientID: in.FolloweeID,
			Type:        models.NotificationTypeFollow,
			Title:       "started following you",
			Creator:     follower.Snapshot(),
		}
		if err := s.notifRepo.Create(ctx, n); err != nil {
			return nil, err
		}
	} else {
		// Edge already existed: this call is the unfollow side.
		if _, err := s.followRepo.Remove(ctx, in.FollowerID, in.FolloweeID); err != nil {
			return nil, err
		}
		if err := s.notifRepo.DeleteMatching(ctx, in.FollowerID, in.FolloweeID, models.NotificationTypeFollow, 0, 0); err != nil {
			return nil, err
		}
	}

	return s.withEdges(ctx, follower)
}

// Followers returns the users following userID.
func (s *FollowService) Followers(ctx context.Context, userID uint) ([]models.UserRef, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.Followers(ctx, userID)
}

// Following returns the users userID follows.
func (s *FollowService) Following(ctx context.Context, userID uint) ([]models.UserRef, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.Following(ctx, userID)
}

// Friends returns profile cards for the accounts userID follows.
// Accounts deleted since the edge was created are skipped.
func (s *FollowService) Friends(ctx context.Context, userID uint) ([]models.Friend, error) {
	refs, err := s.Following(ctx, userID)
	if err != nil {
		return nil, err
	}

	friends := make([]models.Friend, 0, len(refs))
	for _, ref := range refs {
		user, err := s.userRepo.GetByID(ctx, ref.UserID)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
				continue
			}
			return nil, err
		}
		friends = append(friends, models.Friend{
			UserID:     user.ID,
			Name:       user.Name,
			Occupation: user.Occupation,
			Location:   user.Location,
			AvatarURL:  user.AvatarURL,
		})
	}
	return friends, nil
}

func (s *FollowService) withEdges(ctx context.Context, user *models.User) (*models.User, error) {
	followers, err := s.followRepo.Followers(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	following, err := s.followRepo.Following(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Followers = followers
	user.Following = following
	return user, nil
}
