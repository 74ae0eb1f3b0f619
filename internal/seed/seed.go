// Package seed populates the database with demo data for development.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"tidepool/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account gets.
const DefaultPassword = "password123"

// Seeder builds and persists demo data.
type Seeder struct {
	db  *gorm.DB
	rng *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:  db,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll wipes every seeded table.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	for _, table := range []string{"notifications", "likes", "replies", "posts", "follows", "users"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// SeedUsers creates n activated accounts, the first one an admin.
func (s *Seeder) SeedUsers(n int) ([]*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		name := gofakeit.Name()
		user := &models.User{
			Name:       name,
			Username:   fmt.Sprintf("%s%d", strings.ReplaceAll(name, " ", ""), s.rng.Intn(1000)),
			Email:      fmt.Sprintf("%d.%s", i, strings.ToLower(gofakeit.Email())),
			Password:   string(hash),
			Bio:        gofakeit.Sentence(8),
			Location:   gofakeit.City(),
			Occupation: gofakeit.JobTitle(),
			AvatarURL:  fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
			Role:       models.RoleUser,
			Active:     true,
		}
		if i == 0 {
			user.Role = models.RoleAdmin
		}
		if err := s.db.Create(user).Error; err != nil {
			return nil, fmt.Errorf("creating user: %w", err)
		}
		users = append(users, user)
	}
	log.Printf("✓ %d users created (first one is an admin)", len(users))
	return users, nil
}

// SeedFollows wires a sparse follow graph and the matching
// notifications.
func (s *Seeder) SeedFollows(users []*models.User) error {
	edges := 0
	for _, follower := range users {
		for _, followee := range users {
			if follower.ID == followee.ID || s.rng.Intn(5) != 0 {
				continue
			}
			follow := &models.Follow{FollowerID: follower.ID, FolloweeID: followee.ID}
			if err := s.db.Create(follow).Error; err != nil {
				return fmt.Errorf("creating follow: %w", err)
			}
			n := &models.Notification{
				RecipientID: followee.ID,
				Type:        models.NotificationTypeFollow,
				Title:       "started following you",
				Creator:     follower.Snapshot(),
			}
			if err := s.db.Create(n).Error; err != nil {
				return fmt.Errorf("creating follow notification: %w", err)
			}
			edges++
		}
	}
	log.Printf("✓ %d follow edges created", edges)
	return nil
}

// SeedPosts creates numPosts posts with replies, nested replies, and
// likes at every level, plus the notifications those actions produce.
func (s *Seeder) SeedPosts(users []*models.User, numPosts int) error {
	if len(users) == 0 {
		return fmt.Errorf("no users to author posts")
	}

	for i := 0; i < numPosts; i++ {
		author := users[s.rng.Intn(len(users))]
		post := &models.Post{
			Title:     gofakeit.Sentence(s.rng.Intn(12) + 3),
			AuthorID:  author.ID,
			Author:    author.Snapshot(),
			CreatedAt: s.pastTime(90),
		}
		if s.rng.Intn(3) == 0 {
			post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
		}
		if err := s.db.Create(post).Error; err != nil {
			return fmt.Errorf("creating post: %w", err)
		}

		if err := s.seedLikes(users, post.ID, 0, author.ID, post.Title); err != nil {
			return err
		}
		if err := s.seedReplies(users, post, author); err != nil {
			return err
		}
	}
	log.Printf("✓ %d posts created with replies and likes", numPosts)
	return nil
}

func (s *Seeder) seedReplies(users []*models.User, post *models.Post, postAuthor *models.User) error {
	for r := 0; r < s.rng.Intn(4); r++ {
		replier := users[s.rng.Intn(len(users))]
		reply := &models.Reply{
			PostID:    post.ID,
			Depth:     1,
			Title:     gofakeit.Sentence(s.rng.Intn(8) + 2),
			Author:    replier.Snapshot(),
			CreatedAt: s.pastTime(30),
		}
		if err := s.db.Create(reply).Error; err != nil {
			return fmt.Errorf("creating reply: %w", err)
		}
		if err := s.notify(replier, postAuthor.ID, models.NotificationTypeReply, post.Title, post.ID, reply.ID); err != nil {
			return err
		}
		if err := s.seedLikes(users, post.ID, reply.ID, replier.ID, reply.Title); err != nil {
			return err
		}

		// Occasionally nest one level deeper.
		if s.rng.Intn(3) == 0 {
			nester := users[s.rng.Intn(len(users))]
			nested := &models.Reply{
				PostID:    post.ID,
				ParentID:  reply.ID,
				Depth:     2,
				Title:     gofakeit.Sentence(s.rng.Intn(6) + 2),
				Author:    nester.Snapshot(),
				CreatedAt: s.pastTime(14),
			}
			if err := s.db.Create(nested).Error; err != nil {
				return fmt.Errorf("creating nested reply: %w", err)
			}
			if err := s.notify(nester, replier.ID, models.NotificationTypeReply, reply.Title, post.ID, nested.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) seedLikes(users []*models.User, postID, replyID, contentAuthorID uint, title string) error {
	for _, liker := range users {
		if s.rng.Intn(6) != 0 {
			continue
		}
		like := &models.Like{
			PostID:   postID,
			ReplyID:  replyID,
			UserID:   liker.ID,
			Name:     liker.Name,
			Username: liker.Username,
			Avatar:   liker.AvatarURL,
		}
		if err := s.db.Create(like).Error; err != nil {
			return fmt.Errorf("creating like: %w", err)
		}
		if err := s.notify(liker, contentAuthorID, models.NotificationTypeLike, title, postID, replyID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) notify(creator *models.User, recipientID uint, typ models.NotificationType, title string, postID, replyID uint) error {
	if creator.ID == recipientID {
		return nil
	}
	n := &models.Notification{
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		PostID:      postID,
		ReplyID:     replyID,
		Creator:     creator.Snapshot(),
	}
	if err := s.db.Create(n).Error; err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

func (s *Seeder) pastTime(maxDays int) time.Time {
	return time.Now().
		Add(-time.Duration(s.rng.Intn(maxDays*24)) * time.Hour).
		Add(-time.Duration(s.rng.Intn(60)) * time.Minute)
}
