package service

import (
	"context"
	"log/slog"

	"tidepool/internal/middleware"
	"tidepool/internal/models"
	"tidepool/internal/repository"
	"tidepool/internal/storage"
)

const maxTitleLen = 10000

// ImageStore is the slice of ImageService the content services need.
type ImageStore interface {
	Upload(ctx context.Context, in UploadImageInput) (storage.Object, error)
	Delete(ctx context.Context, id string) error
}

// PostService owns post lifecycle: creation with optional image,
// reads, and author-or-admin deletion.
type PostService struct {
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	notifRepo repository.NotificationRepository
	images    ImageStore
	isAdmin   func(ctx context.Context, userID uint) (bool, error)
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	notifRepo repository.NotificationRepository,
	images ImageStore,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *PostService {
	return &PostService{
		postRepo:  postRepo,
		userRepo:  userRepo,
		notifRepo: notifRepo,
		images:    images,
		isAdmin:   isAdmin,
	}
}

type CreatePostInput struct {
	UserID       uint
	Title        string
	ImageName    string
	ImageType    string
	ImageContent []byte

	// Replies seeds first-level replies created together with the post,
	// all authored by the post's creator.
	Replies []ReplySeed
}

// ReplySeed is a pre-populated reply carried on post creation. Its
// optional image is uploaded in the same before-persistence phase as
// the post's own image.
type ReplySeed struct {
	Title        string
	ImageName    string
	ImageType    string
	ImageContent []byte
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// CreatePost runs every upload (the post's image and each seeded
// reply's image) before anything is persisted, so a failed upload
// aborts the whole operation and no row ever references a missing
// object. Already-uploaded objects are reclaimed on abort.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.Title == "" && len(in.ImageContent) == 0 {
		return nil, models.NewValidationError("Post needs a title or an image")
	}
	if len(in.Title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 10000 characters)")
	}

	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	var uploaded []string
	reclaim := func() {
		for _, id := range uploaded {
			if delErr := s.images.Delete(ctx, id); delErr != nil {
				middleware.Logger.WarnContext(ctx, "orphaned image after aborted post create",
					slog.String("image_id", id),
					slog.String("error", delErr.Error()),
				)
			}
		}
	}
	upload := func(name, contentType string, content []byte) (storage.Object, error) {
		obj, err := s.images.Upload(ctx, UploadImageInput{
			UserID:      in.UserID,
			Filename:    name,
			ContentType: contentType,
			Content:     content,
		})
		if err != nil {
			reclaim()
			return storage.Object{}, err
		}
		uploaded = append(uploaded, obj.ID)
		return obj, nil
	}

	post := &models.Post{
		Title:    in.Title,
		AuthorID: author.ID,
		Author:   author.Snapshot(),
	}
	if len(in.ImageContent) > 0 {
		obj, err := upload(in.ImageName, in.ImageType, in.ImageContent)
		if err != nil {
			return nil, err
		}
		post.ImageID = obj.ID
		post.ImageURL = obj.URL
	}

	var replies []*models.Reply
	for _, seed := range in.Replies {
		if seed.Title == "" && len(seed.ImageContent) == 0 {
			continue
		}
		reply := &models.Reply{
			Depth:  1,
			Title:  seed.Title,
			Author: author.Snapshot(),
		}
		if len(seed.ImageContent) > 0 {
			obj, err := upload(seed.ImageName, seed.ImageType, seed.ImageContent)
			if err != nil {
				return nil, err
			}
			reply.ImageID = obj.ID
			reply.ImageURL = obj.URL
		}
		replies = append(replies, reply)
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		reclaim()
		return nil, err
	}

	for _, reply := range replies {
		reply.PostID = post.ID
		if err := s.postRepo.CreateReply(ctx, reply); err != nil {
			return nil, err
		}
	}
	if len(replies) > 0 {
		return s.postRepo.GetByID(ctx, post.ID)
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

// ListFeed returns the global feed, newest first.
func (s *PostService) ListFeed(ctx context.Context, limit, offset int) ([]models.Post, error) {
	return s.postRepo.List(ctx, limit, offset)
}

// ListUserPosts returns a single author's posts, newest first.
func (s *PostService) ListUserPosts(ctx context.Context, authorID uint, limit, offset int) ([]models.Post, error) {
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		return nil, err
	}
	return s.postRepo.ListByAuthor(ctx, authorID, limit, offset)
}

// DeletePost removes a post. Only the author or an admin may delete.
// Stored images (the post's and every reply's) and the post's
// notifications are cleaned up best-effort after the database delete
// succeeds.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}

	if post.AuthorID != in.UserID {
		admin, err := s.isAdmin(ctx, in.UserID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own posts")
		}
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return err
	}

	if err := s.notifRepo.DeleteForPost(ctx, in.PostID); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to clear notifications for deleted post",
			slog.Uint64("post_id", uint64(in.PostID)),
			slog.String("error", err.Error()),
		)
	}

	for _, id := range collectImageIDs(post) {
		if err := s.images.Delete(ctx, id); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to delete image for removed post",
				slog.String("image_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// collectImageIDs gathers the storage ids referenced by a post and its
// whole reply tree.
func collectImageIDs(post *models.Post) []string {
	var ids []string
	if post.ImageID != "" {
		ids = append(ids, post.ImageID)
	}
	var walk func(replies []models.Reply)
	walk = func(replies []models.Reply) {
		for _, r := range replies {
			if r.ImageID != "" {
				ids = append(ids, r.ImageID)
			}
			walk(r.Replies)
		}
	}
	walk(post.Replies)
	return ids
}
