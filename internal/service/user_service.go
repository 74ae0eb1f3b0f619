package service

import (
	"context"
	"log/slog"

	"tidepool/internal/middleware"
	"tidepool/internal/models"
	"tidepool/internal/repository"
)

// UserService owns profile reads and updates. Display-field changes do
// not rewrite historical snapshots embedded in posts and likes; those
// stay as they were at write time.
type UserService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	images     ImageStore
	isAdmin    func(ctx context.Context, userID uint) (bool, error)
}

func NewUserService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	images ImageStore,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		followRepo: followRepo,
		images:     images,
		isAdmin:    isAdmin,
	}
}

type UpdateProfileInput struct {
	UserID     uint
	Name       *string
	Bio        *string
	Location   *string
	Occupation *string

	AvatarName    string
	AvatarType    string
	AvatarContent []byte
	CoverName     string
	CoverType     string
	CoverContent  []byte
}

// GetUser returns the profile with its follower/following lists
// attached.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withEdges(ctx, user)
}

// UpdateProfile applies partial profile changes for the caller.
// Replacing an avatar or cover uploads the new object first, then
// best-effort deletes the old one.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, models.NewValidationError("Name cannot be empty")
		}
		user.Name = *in.Name
	}
	if in.Bio != nil {
		user.Bio = *in.Bio
	}
	if in.Location != nil {
		user.Location = *in.Location
	}
	if in.Occupation != nil {
		user.Occupation = *in.Occupation
	}

	if len(in.AvatarContent) > 0 {
		obj, err := s.images.Upload(ctx, UploadImageInput{
			UserID:      in.UserID,
			Filename:    in.AvatarName,
			ContentType: in.AvatarType,
			Content:     in.AvatarContent,
		})
		if err != nil {
			return nil, err
		}
		s.reclaim(ctx, user.AvatarID)
		user.AvatarID = obj.ID
		user.AvatarURL = obj.URL
	}

	if len(in.CoverContent) > 0 {
		obj, err := s.images.Upload(ctx, UploadImageInput{
			UserID:      in.UserID,
			Filename:    in.CoverName,
			ContentType: in.CoverType,
			Content:     in.CoverContent,
		})
		if err != nil {
			return nil, err
		}
		s.reclaim(ctx, user.CoverID)
		user.CoverID = obj.ID
		user.CoverURL = obj.URL
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.withEdges(ctx, user)
}

// ChangePassword verifies nothing; callers authenticate first. The new
// password only has to pass the account policy.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, hashed string) error {
	return s.userRepo.UpdatePassword(ctx, userID, hashed)
}

// ListUsers is the admin directory listing.
func (s *UserService) ListUsers(ctx context.Context, callerID uint, limit, offset int) ([]models.User, error) {
	admin, err := s.isAdmin(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, models.NewForbiddenError("Admin access required")
	}
	return s.userRepo.List(ctx, limit, offset)
}

// SetSuspended toggles the account's active flag. Admin only; an admin
// cannot suspend themselves.
func (s *UserService) SetSuspended(ctx context.Context, callerID, targetID uint, suspended bool) error {
	admin, err := s.isAdmin(ctx, callerID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError("Admin access required")
	}
	if callerID == targetID {
		return models.NewValidationError("You cannot suspend your own account")
	}
	return s.userRepo.SetActive(ctx, targetID, !suspended)
}

// DeleteUser removes an account. Allowed for the account owner or an
// admin. Profile images are reclaimed best-effort.
func (s *UserService) DeleteUser(ctx context.Context, callerID, targetID uint) error {
	if callerID != targetID {
		admin, err := s.isAdmin(ctx, callerID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own account")
		}
	}

	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, targetID); err != nil {
		return err
	}

	s.reclaim(ctx, user.AvatarID)
	s.reclaim(ctx, user.CoverID)
	return nil
}

func (s *UserService) reclaim(ctx context.Context, imageID string) {
	if imageID == "" {
		return
	}
	if err := s.images.Delete(ctx, imageID); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to delete stored image",
			slog.String("image_id", imageID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *UserService) withEdges(ctx context.Context, user *models.User) (*models.User, error) {
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

// IsAdminFunc builds the admin predicate services get injected.
func IsAdminFunc(userRepo repository.UserRepository) func(ctx context.Context, userID uint) (bool, error) {
	return func(ctx context.Context, userID uint) (bool, error) {
		user, err := userRepo.GetByID(ctx, userID)
		if err != nil {
			return false, err
		}
		return user.IsAdmin(), nil
	}
}
