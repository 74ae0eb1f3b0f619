package repository

import (
	"context"
	"errors"
	"sort"

	"tidepool/internal/cache"
	"tidepool/internal/models"
	"tidepool/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository is the content store: posts, their reply trees, and
// the like sets hanging off both.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]models.Post, error)
	Delete(ctx context.Context, id uint) error

	CreateReply(ctx context.Context, reply *models.Reply) error
	GetReply(ctx context.Context, id uint) (*models.Reply, error)

	// AddLike inserts the membership row and reports whether it was new.
	AddLike(ctx context.Context, like *models.Like) (bool, error)
	// RemoveLike deletes the membership row and reports whether it existed.
	RemoveLike(ctx context.Context, postID, replyID, userID uint) (bool, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	post.Likes = []models.Like{}
	post.Replies = []models.Reply{}
	cache.InvalidatePostsList(ctx)
	cache.Invalidate(ctx, cache.UserPostsKey(post.AuthorID))
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	key := cache.PostKey(id)

	err := cache.Aside(ctx, key, &post, cache.PostTTL, func() error {
		if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return models.NewInternalError(err)
		}
		return r.attachEngagement(ctx, []*models.Post{&post})
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	fetch := func(dest *[]models.Post) error {
		if err := r.db.WithContext(ctx).
			Order("created_at DESC").
			Limit(limit).Offset(offset).
			Find(dest).Error; err != nil {
			return models.NewInternalError(err)
		}
		ptrs := make([]*models.Post, len(*dest))
		for i := range *dest {
			ptrs[i] = &(*dest)[i]
		}
		return r.attachEngagement(ctx, ptrs)
	}

	posts := []models.Post{}
	// Only the first default page is worth caching; deeper pages churn.
	if offset == 0 {
		err := cache.Aside(ctx, cache.PostsListKey, &posts, cache.ListTTL, func() error {
			return fetch(&posts)
		})
		if err != nil {
			return nil, err
		}
		return posts, nil
	}

	if err := fetch(&posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	fetch := func(dest *[]models.Post) error {
		if err := r.db.WithContext(ctx).
			Where("author_id = ?", authorID).
			Order("created_at DESC").
			Limit(limit).Offset(offset).
			Find(dest).Error; err != nil {
			return models.NewInternalError(err)
		}
		ptrs := make([]*models.Post, len(*dest))
		for i := range *dest {
			ptrs[i] = &(*dest)[i]
		}
		return r.attachEngagement(ctx, ptrs)
	}

	posts := []models.Post{}
	if offset == 0 {
		err := cache.Aside(ctx, cache.UserPostsKey(authorID), &posts, cache.ListTTL, func() error {
			return fetch(&posts)
		})
		if err != nil {
			return nil, err
		}
		return posts, nil
	}

	if err := fetch(&posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Delete removes the post and everything hanging off it: replies, like
// rows, and the post row itself.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "posts")()

	var authorID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return models.NewInternalError(err)
		}
		authorID = post.AuthorID

		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Reply{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Delete(&models.Post{}, id).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cache.InvalidatePost(ctx, id, authorID)
	return nil
}

func (r *postRepository) CreateReply(ctx context.Context, reply *models.Reply) error {
	defer observability.TrackQuery("create", "replies")()
	if err := r.db.WithContext(ctx).Create(reply).Error; err != nil {
		return models.NewInternalError(err)
	}
	reply.Likes = []models.Like{}
	reply.Replies = []models.Reply{}
	cache.InvalidatePostsList(ctx)
	cache.Invalidate(ctx, cache.PostKey(reply.PostID))
	return nil
}

func (r *postRepository) GetReply(ctx context.Context, id uint) (*models.Reply, error) {
	var reply models.Reply
	if err := r.db.WithContext(ctx).First(&reply, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Reply", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &reply, nil
}

func (r *postRepository) AddLike(ctx context.Context, like *models.Like) (bool, error) {
	defer observability.TrackQuery("create", "likes")()
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(like)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidatePostsList(ctx)
		cache.Invalidate(ctx, cache.PostKey(like.PostID))
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) RemoveLike(ctx context.Context, postID, replyID, userID uint) (bool, error) {
	defer observability.TrackQuery("delete", "likes")()
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND reply_id = ? AND user_id = ?", postID, replyID, userID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidatePostsList(ctx)
		cache.Invalidate(ctx, cache.PostKey(postID))
	}
	return res.RowsAffected > 0, nil
}

// attachEngagement loads likes and replies for the given posts in two
// batched queries and assembles the nested reply tree in memory.
func (r *postRepository) attachEngagement(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]uint, len(posts))
	byID := make(map[uint]*models.Post, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Likes = []models.Like{}
		p.Replies = []models.Reply{}
	}

	var likes []models.Like
	if err := r.db.WithContext(ctx).
		Where("post_id IN ?", ids).
		Order("created_at ASC").
		Find(&likes).Error; err != nil {
		return models.NewInternalError(err)
	}

	var replies []models.Reply
	if err := r.db.WithContext(ctx).
		Where("post_id IN ?", ids).
		Order("created_at ASC").
		Find(&replies).Error; err != nil {
		return models.NewInternalError(err)
	}

	// Partition reply likes from post likes up front.
	replyLikes := make(map[uint][]models.Like)
	for _, l := range likes {
		if l.ReplyID == 0 {
			p := byID[l.PostID]
			if p != nil {
				p.Likes = append(p.Likes, l)
			}
			continue
		}
		replyLikes[l.ReplyID] = append(replyLikes[l.ReplyID], l)
	}

	// Assemble deepest-first so children are complete before they are
	// copied into their parents.
	nodes := make(map[uint]*models.Reply, len(replies))
	for i := range replies {
		rep := replies[i]
		rep.Likes = replyLikes[rep.ID]
		if rep.Likes == nil {
			rep.Likes = []models.Like{}
		}
		rep.Replies = []models.Reply{}
		nodes[rep.ID] = &rep
	}

	ordered := make([]*models.Reply, 0, len(nodes))
	for _, n := range nodes {
		ordered = append(ordered, n)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Depth != ordered[j].Depth {
			return ordered[i].Depth > ordered[j].Depth
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	for _, n := range ordered {
		if n.ParentID == 0 {
			continue
		}
		if parent, ok := nodes[n.ParentID]; ok {
			parent.Replies = append(parent.Replies, *n)
		}
	}
	for _, n := range ordered {
		if n.ParentID != 0 {
			continue
		}
		if p, ok := byID[n.PostID]; ok {
			p.Replies = append(p.Replies, *n)
		}
	}

	return nil
}
