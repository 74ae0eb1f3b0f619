package server

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"tidepool/internal/models"
	"tidepool/internal/service"

	"github.com/gofiber/fiber/v2"
)

// replySeedPayload is one entry of the "replies" field on post
// creation: either a bare title string or an object carrying a title
// and an optional inline image.
type replySeedPayload struct {
	Title string `json:"title"`
	Image string `json:"image"`
}

func (p *replySeedPayload) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &p.Title)
	}
	type plain replySeedPayload
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = replySeedPayload(v)
	return nil
}

// decodeInlineImage decodes a base64 image payload, accepting both raw
// base64 and data URIs ("data:image/png;base64,...").
func decodeInlineImage(s string) (contentType string, content []byte, err error) {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return "", nil, models.NewValidationError("Invalid image payload")
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		s = data
	}
	content, decErr := base64.StdEncoding.DecodeString(s)
	if decErr != nil {
		return "", nil, models.NewValidationError("Invalid image payload")
	}
	return contentType, content, nil
}

func replySeeds(payloads []replySeedPayload) ([]service.ReplySeed, error) {
	seeds := make([]service.ReplySeed, 0, len(payloads))
	for _, p := range payloads {
		seed := service.ReplySeed{Title: p.Title}
		if p.Image != "" {
			contentType, content, err := decodeInlineImage(p.Image)
			if err != nil {
				return nil, err
			}
			seed.ImageType = contentType
			seed.ImageContent = content
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// CreatePost handles POST /create. Multipart form with an optional
// "image" file, or JSON with an optional base64 "image". The optional
// "replies" field seeds first-level replies; each entry is a title or
// an object with its own inline image.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	in := service.CreatePostInput{UserID: currentUserID(c)}

	if strings.HasPrefix(c.Get("Content-Type"), "multipart/form-data") {
		in.Title = c.FormValue("title")

		var ferr error
		if in.ImageName, in.ImageType, in.ImageContent, ferr = formFile(c, "image"); ferr != nil {
			return models.Respond(c, ferr)
		}

		if raw := c.FormValue("replies"); raw != "" {
			var payloads []replySeedPayload
			if err := json.Unmarshal([]byte(raw), &payloads); err != nil {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("Field 'replies' must be a JSON array"))
			}
			if in.Replies, ferr = replySeeds(payloads); ferr != nil {
				return models.Respond(c, ferr)
			}
		}
	} else {
		var req struct {
			Title   string             `json:"title"`
			Image   string             `json:"image"`
			Replies []replySeedPayload `json:"replies"`
		}
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		in.Title = req.Title
		if req.Image != "" {
			contentType, content, err := decodeInlineImage(req.Image)
			if err != nil {
				return models.Respond(c, err)
			}
			in.ImageType = contentType
			in.ImageContent = content
		}
		var err error
		if in.Replies, err = replySeeds(req.Replies); err != nil {
			return models.Respond(c, err)
		}
	}

	post, err := s.postService.CreatePost(c.Context(), in)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"post":    post,
	})
}

// GetPosts handles GET /get-posts: the global feed, newest first.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	p := parsePagination(c, 50)
	posts, err := s.postService.ListFeed(c.Context(), p.Limit, p.Offset)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"posts":   posts,
	})
}

// GetUserPosts handles GET /get-user-posts/:userId
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	p := parsePagination(c, 50)
	posts, err := s.postService.ListUserPosts(c.Context(), userID, p.Limit, p.Offset)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"posts":   posts,
	})
}

// GetPost handles GET /get-post/:postId
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.Context(), postID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"post":    post,
	})
}

// DeletePost handles DELETE /delete/:id (author or admin)
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.Context(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: postID,
	}); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post deleted",
	})
}
