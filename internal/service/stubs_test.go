package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tidepool/internal/models"
	"tidepool/internal/storage"

	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn       func(context.Context, *models.Post) error
	getByIDFn      func(context.Context, uint) (*models.Post, error)
	listFn         func(context.Context, int, int) ([]models.Post, error)
	listByAuthorFn func(context.Context, uint, int, int) ([]models.Post, error)
	deleteFn       func(context.Context, uint) error
	createReplyFn  func(context.Context, *models.Reply) error
	getReplyFn     func(context.Context, uint) (*models.Reply, error)
	addLikeFn      func(context.Context, *models.Like) (bool, error)
	removeLikeFn   func(context.Context, uint, uint, uint) (bool, error)
}

func (s *postRepoStub) Create(ctx context.Context, p *models.Post) error { return s.createFn(ctx, p) }
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]models.Post, error) {
	return s.listByAuthorFn(ctx, authorID, limit, offset)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error { return s.deleteFn(ctx, id) }
func (s *postRepoStub) CreateReply(ctx context.Context, r *models.Reply) error {
	return s.createReplyFn(ctx, r)
}
func (s *postRepoStub) GetReply(ctx context.Context, id uint) (*models.Reply, error) {
	return s.getReplyFn(ctx, id)
}
func (s *postRepoStub) AddLike(ctx context.Context, l *models.Like) (bool, error) {
	return s.addLikeFn(ctx, l)
}
func (s *postRepoStub) RemoveLike(ctx context.Context, postID, replyID, userID uint) (bool, error) {
	return s.removeLikeFn(ctx, postID, replyID, userID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, AuthorID: 1, Author: models.UserSnapshot{UserID: 1}}, nil
		},
		listFn: func(_ context.Context, _, _ int) ([]models.Post, error) { return nil, nil },
		listByAuthorFn: func(_ context.Context, _ uint, _, _ int) ([]models.Post, error) {
			return nil, nil
		},
		deleteFn:      func(_ context.Context, _ uint) error { return nil },
		createReplyFn: func(_ context.Context, _ *models.Reply) error { return nil },
		getReplyFn: func(_ context.Context, id uint) (*models.Reply, error) {
			return &models.Reply{ID: id, PostID: 1, Depth: 1, Author: models.UserSnapshot{UserID: 1}}, nil
		},
		addLikeFn:    func(_ context.Context, _ *models.Like) (bool, error) { return true, nil },
		removeLikeFn: func(_ context.Context, _, _, _ uint) (bool, error) { return false, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
	updatePwdFn     func(context.Context, uint, string) error
	setActiveFn     func(context.Context, uint, bool) error
	deleteFn        func(context.Context, uint) error
	listFn          func(context.Context, int, int) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, u *models.User) error { return s.createFn(ctx, u) }
func (s *userRepoStub) Update(ctx context.Context, u *models.User) error { return s.updateFn(ctx, u) }
func (s *userRepoStub) UpdatePassword(ctx context.Context, id uint, hashed string) error {
	return s.updatePwdFn(ctx, id, hashed)
}
func (s *userRepoStub) SetActive(ctx context.Context, id uint, active bool) error {
	return s.setActiveFn(ctx, id, active)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error { return s.deleteFn(ctx, id) }
func (s *userRepoStub) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.listFn(ctx, limit, offset)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Name: "User", Username: "user", Active: true, Role: models.RoleUser}, nil
		},
		getByEmailFn: func(_ context.Context, _ string) (*models.User, error) {
			return nil, models.NewNotFoundError("User", "email")
		},
		getByUsernameFn: func(_ context.Context, _ string) (*models.User, error) {
			return nil, models.NewNotFoundError("User", "username")
		},
		createFn:    func(_ context.Context, _ *models.User) error { return nil },
		updateFn:    func(_ context.Context, _ *models.User) error { return nil },
		updatePwdFn: func(_ context.Context, _ uint, _ string) error { return nil },
		setActiveFn: func(_ context.Context, _ uint, _ bool) error { return nil },
		deleteFn:    func(_ context.Context, _ uint) error { return nil },
		listFn:      func(_ context.Context, _, _ int) ([]models.User, error) { return nil, nil },
	}
}

// followRepoStub is a stub for repository.FollowRepository.
type followRepoStub struct {
	insertFn    func(context.Context, uint, uint) (bool, error)
	removeFn    func(context.Context, uint, uint) (bool, error)
	existsFn    func(context.Context, uint, uint) (bool, error)
	followersFn func(context.Context, uint) ([]models.UserRef, error)
	followingFn func(context.Context, uint) ([]models.UserRef, error)
}

func (s *followRepoStub) Insert(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.insertFn(ctx, followerID, followeeID)
}
func (s *followRepoStub) Remove(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.removeFn(ctx, followerID, followeeID)
}
func (s *followRepoStub) Exists(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.existsFn(ctx, followerID, followeeID)
}
func (s *followRepoStub) Followers(ctx context.Context, userID uint) ([]models.UserRef, error) {
	return s.followersFn(ctx, userID)
}
func (s *followRepoStub) Following(ctx context.Context, userID uint) ([]models.UserRef, error) {
	return s.followingFn(ctx, userID)
}

func noopFollowRepo() *followRepoStub {
	return &followRepoStub{
		insertFn:    func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		removeFn:    func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		existsFn:    func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		followersFn: func(_ context.Context, _ uint) ([]models.UserRef, error) { return nil, nil },
		followingFn: func(_ context.Context, _ uint) ([]models.UserRef, error) { return nil, nil },
	}
}

// notifRepoStub is a stub for repository.NotificationRepository.
type notifRepoStub struct {
	createFn          func(context.Context, *models.Notification) error
	listByRecipientFn func(context.Context, uint, int, int) ([]models.Notification, error)
	markReadFn        func(context.Context, uint, uint) (*models.Notification, error)
	deleteMatchingFn  func(context.Context, uint, uint, models.NotificationType, uint, uint) error
	deleteForPostFn   func(context.Context, uint) error
	deleteReadFn      func(context.Context, time.Time, int) (int64, error)
}

func (s *notifRepoStub) Create(ctx context.Context, n *models.Notification) error {
	return s.createFn(ctx, n)
}
func (s *notifRepoStub) ListByRecipient(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error) {
	return s.listByRecipientFn(ctx, recipientID, limit, offset)
}
func (s *notifRepoStub) MarkRead(ctx context.Context, id, recipientID uint) (*models.Notification, error) {
	return s.markReadFn(ctx, id, recipientID)
}
func (s *notifRepoStub) DeleteMatching(ctx context.Context, creatorID, recipientID uint, typ models.NotificationType, postID, replyID uint) error {
	return s.deleteMatchingFn(ctx, creatorID, recipientID, typ, postID, replyID)
}
func (s *notifRepoStub) DeleteForPost(ctx context.Context, postID uint) error {
	return s.deleteForPostFn(ctx, postID)
}
func (s *notifRepoStub) DeleteReadOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	return s.deleteReadFn(ctx, cutoff, batchSize)
}

func noopNotifRepo() *notifRepoStub {
	return &notifRepoStub{
		createFn: func(_ context.Context, _ *models.Notification) error { return nil },
		listByRecipientFn: func(_ context.Context, _ uint, _, _ int) ([]models.Notification, error) {
			return nil, nil
		},
		markReadFn: func(_ context.Context, id, recipientID uint) (*models.Notification, error) {
			return &models.Notification{ID: id, RecipientID: recipientID, Status: models.NotificationStatusRead}, nil
		},
		deleteMatchingFn: func(_ context.Context, _, _ uint, _ models.NotificationType, _, _ uint) error {
			return nil
		},
		deleteForPostFn: func(_ context.Context, _ uint) error { return nil },
		deleteReadFn:    func(_ context.Context, _ time.Time, _ int) (int64, error) { return 0, nil },
	}
}

// imageStoreStub is a stub for ImageStore.
type imageStoreStub struct {
	uploadFn func(context.Context, UploadImageInput) (storage.Object, error)
	deleteFn func(context.Context, string) error
}

func (s *imageStoreStub) Upload(ctx context.Context, in UploadImageInput) (storage.Object, error) {
	return s.uploadFn(ctx, in)
}
func (s *imageStoreStub) Delete(ctx context.Context, id string) error { return s.deleteFn(ctx, id) }

func noopImageStore() *imageStoreStub {
	return &imageStoreStub{
		uploadFn: func(_ context.Context, _ UploadImageInput) (storage.Object, error) {
			return storage.Object{ID: "obj-1", URL: "https://cdn.example.com/obj-1"}, nil
		},
		deleteFn: func(_ context.Context, _ string) error { return nil },
	}
}

func adminFunc(admins ...uint) func(ctx context.Context, userID uint) (bool, error) {
	set := map[uint]bool{}
	for _, id := range admins {
		set[id] = true
	}
	return func(_ context.Context, userID uint) (bool, error) {
		return set[userID], nil
	}
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, models.CodeValidation, appErr.Code)
}

// assertNotFoundError asserts that err is an AppError with code NOT_FOUND.
func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, models.CodeNotFound, appErr.Code)
}

// assertForbiddenError asserts that err is an AppError with code FORBIDDEN.
func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, models.CodeForbidden, appErr.Code)
}
