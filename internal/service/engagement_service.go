package service

import (
	"context"

	"tidepool/internal/models"
	"tidepool/internal/repository"
)

// EngagementService implements the like toggle and reply insertion at
// any nesting depth, keeping the notification lifecycle coupled to both.
type EngagementService struct {
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	notifRepo repository.NotificationRepository
	images    ImageStore
}

func NewEngagementService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	notifRepo repository.NotificationRepository,
	images ImageStore,
) *EngagementService {
	return &EngagementService{
		postRepo:  postRepo,
		userRepo:  userRepo,
		notifRepo: notifRepo,
		images:    images,
	}
}

type ToggleLikeInput struct {
	UserID  uint
	PostID  uint
	ReplyID uint // 0 targets the post itself
}

type AddReplyInput struct {
	UserID       uint
	PostID       uint
	ParentID     uint // 0 attaches to the post
	Title        string
	ImageName    string
	ImageType    string
	ImageContent []byte
}

// likeTarget resolves who gets notified and what the notification says.
type likeTarget struct {
	authorID uint
	title    string
	fallback string
}

// resolveTarget validates that the liked or replied-to target exists
// and belongs to the post.
func (s *EngagementService) resolveTarget(ctx context.Context, postID, replyID uint) (*models.Post, likeTarget, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, likeTarget{}, err
	}

	if replyID == 0 {
		return post, likeTarget{authorID: post.AuthorID, title: post.Title, fallback: "your post"}, nil
	}

	reply, err := s.postRepo.GetReply(ctx, replyID)
	if err != nil {
		return nil, likeTarget{}, err
	}
	// A reply under a different post means the addressed target does
	// not exist on this path.
	if reply.PostID != postID {
		return nil, likeTarget{}, models.NewNotFoundError("Reply", replyID)
	}
	return post, likeTarget{authorID: reply.Author.UserID, title: reply.Title, fallback: "your reply"}, nil
}

// ToggleLike flips the caller's membership in the target's like set.
// Removal also withdraws the notification the original like created;
// insertion notifies the target's author unless the caller is liking
// their own content. Returns the refreshed post.
func (s *EngagementService) ToggleLike(ctx context.Context, in ToggleLikeInput) (*models.Post, error) {
	_, target, err := s.resolveTarget(ctx, in.PostID, in.ReplyID)
	if err != nil {
		return nil, err
	}

	removed, err := s.postRepo.RemoveLike(ctx, in.PostID, in.ReplyID, in.UserID)
	if err != nil {
		return nil, err
	}

	if removed {
		if err := s.notifRepo.DeleteMatching(ctx, in.UserID, target.authorID, models.NotificationTypeLike, in.PostID, in.ReplyID); err != nil {
			return nil, err
		}
		return s.postRepo.GetByID(ctx, in.PostID)
	}

	liker, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	like := &models.Like{
		PostID:   in.PostID,
		ReplyID:  in.ReplyID,
		UserID:   liker.ID,
		Name:     liker.Name,
		Username: liker.Username,
		Avatar:   liker.AvatarURL,
	}
	created, err := s.postRepo.AddLike(ctx, like)
	if err != nil {
		return nil, err
	}

	// A concurrent toggle may have inserted first; the membership row is
	// the source of truth, so a lost race simply skips the notification.
	if created && target.authorID != in.UserID {
		title := target.title
		if title == "" {
			title = target.fallback
		}
		n := &models.Notification{
			RecipientID: target.authorID,
			Type:        models.NotificationTypeLike,
			Title:       title,
			PostID:      in.PostID,
			ReplyID:     in.ReplyID,
			Creator:     liker.Snapshot(),
		}
		if err := s.notifRepo.Create(ctx, n); err != nil {
			return nil, err
		}
	}

	return s.postRepo.GetByID(ctx, in.PostID)
}

// AddReply inserts a reply under the post or under another reply.
// Nesting is capped; replies to a reply at maximum depth are rejected.
// The parent's author is always notified unless they replied to
// themselves. Returns the refreshed post.
func (s *EngagementService) AddReply(ctx context.Context, in AddReplyInput) (*models.Post, error) {
	if in.Title == "" && len(in.ImageContent) == 0 {
		return nil, models.NewValidationError("Reply needs a title or an image")
	}
	if len(in.Title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 10000 characters)")
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	depth := 1
	recipientID := post.AuthorID
	notifTitle := post.Title
	notifFallback := "your post"
	if in.ParentID != 0 {
		parent, err := s.postRepo.GetReply(ctx, in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, models.NewNotFoundError("Reply", in.ParentID)
		}
		if parent.Depth >= models.MaxReplyDepth {
			return nil, models.NewValidationError("Replies are nested too deeply")
		}
		depth = parent.Depth + 1
		recipientID = parent.Author.UserID
		notifTitle = parent.Title
		notifFallback = "your reply"
	}

	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	reply := &models.Reply{
		PostID:   in.PostID,
		ParentID: in.ParentID,
		Depth:    depth,
		Title:    in.Title,
		Author:   author.Snapshot(),
	}

	if len(in.ImageContent) > 0 {
		obj, err := s.images.Upload(ctx, UploadImageInput{
			UserID:      in.UserID,
			Filename:    in.ImageName,
			ContentType: in.ImageType,
			Content:     in.ImageContent,
		})
		if err != nil {
			return nil, err
		}
		reply.ImageID = obj.ID
		reply.ImageURL = obj.URL
	}

	if err := s.postRepo.CreateReply(ctx, reply); err != nil {
		return nil, err
	}

	if recipientID != in.UserID {
		title := notifTitle
		if title == "" {
			title = notifFallback
		}
		n := &models.Notification{
			RecipientID: recipientID,
			Type:        models.NotificationTypeReply,
			Title:       title,
			PostID:      in.PostID,
			ReplyID:     reply.ID,
			Creator:     author.Snapshot(),
		}
		if err := s.notifRepo.Create(ctx, n); err != nil {
			return nil, err
		}
	}

	return s.postRepo.GetByID(ctx, in.PostID)
}
