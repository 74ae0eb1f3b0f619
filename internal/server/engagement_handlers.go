package server

import (
	"strconv"
	"strings"

	"tidepool/internal/models"
	"tidepool/internal/service"

	"github.com/gofiber/fiber/v2"
)

// The engagement endpoints keep the wire surface clients already speak:
// one endpoint per nesting level, all collapsing onto the same toggle
// and insert operations underneath.

type likeRequest struct {
	PostID        uint `json:"postId"`
	ReplyID       uint `json:"replyId"`
	SingleReplyID uint `json:"singleReplyId"`
}

// UpdateLikes handles PUT /update-likes: like toggle on a post.
func (s *Server) UpdateLikes(c *fiber.Ctx) error {
	var req likeRequest
	if err := c.BodyParser(&req); err != nil || req.PostID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Field 'postId' is required"))
	}
	return s.toggleLike(c, req.PostID, 0)
}

// UpdateRepliesReact handles PUT /update-replies-react: like toggle on a
// first-level reply.
func (s *Server) UpdateRepliesReact(c *fiber.Ctx) error {
	var req likeRequest
	if err := c.BodyParser(&req); err != nil || req.PostID == 0 || req.ReplyID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Fields 'postId' and 'replyId' are required"))
	}
	return s.toggleLike(c, req.PostID, req.ReplyID)
}

// UpdateReplyReact handles PUT /update-reply-react: like toggle on a
// nested reply. The parent replyId is validated as part of the path.
func (s *Server) UpdateReplyReact(c *fiber.Ctx) error {
	var req likeRequest
	if err := c.BodyParser(&req); err != nil || req.PostID == 0 || req.ReplyID == 0 || req.SingleReplyID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Fields 'postId', 'replyId' and 'singleReplyId' are required"))
	}

	nested, err := s.postRepo.GetReply(c.Context(), req.SingleReplyID)
	if err != nil {
		return models.Respond(c, err)
	}
	if nested.ParentID != req.ReplyID {
		return models.Respond(c, models.NewNotFoundError("Reply", req.SingleReplyID))
	}

	return s.toggleLike(c, req.PostID, req.SingleReplyID)
}

func (s *Server) toggleLike(c *fiber.Ctx, postID, replyID uint) error {
	post, err := s.engagementService.ToggleLike(c.Context(), service.ToggleLikeInput{
		UserID:  currentUserID(c),
		PostID:  postID,
		ReplyID: replyID,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"post":    post,
	})
}

// AddReplies handles PUT /add-replies: a first-level reply to a post.
func (s *Server) AddReplies(c *fiber.Ctx) error {
	in, err := s.replyInput(c)
	if err != nil {
		return models.Respond(c, err)
	}
	return s.addReply(c, in)
}

// AddReply handles PUT /add-reply: a reply to a reply.
func (s *Server) AddReply(c *fiber.Ctx) error {
	in, err := s.replyInput(c)
	if err != nil {
		return models.Respond(c, err)
	}
	if in.ParentID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Field 'replyId' is required"))
	}
	return s.addReply(c, in)
}

func (s *Server) addReply(c *fiber.Ctx, in service.AddReplyInput) error {
	if in.PostID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Field 'postId' is required"))
	}

	post, err := s.engagementService.AddReply(c.Context(), in)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"post":    post,
	})
}

// replyInput parses a reply request from multipart form data (optional
// image) or plain JSON.
func (s *Server) replyInput(c *fiber.Ctx) (service.AddReplyInput, error) {
	in := service.AddReplyInput{UserID: currentUserID(c)}

	if strings.HasPrefix(c.Get("Content-Type"), "multipart/form-data") {
		in.Title = c.FormValue("title")
		in.PostID = formUint(c, "postId")
		in.ParentID = formUint(c, "replyId")

		var ferr error
		if in.ImageName, in.ImageType, in.ImageContent, ferr = formFile(c, "image"); ferr != nil {
			return in, ferr
		}
		return in, nil
	}

	var req struct {
		PostID  uint   `json:"postId"`
		ReplyID uint   `json:"replyId"`
		Title   string `json:"title"`
	}
	if err := c.BodyParser(&req); err != nil {
		return in, models.NewValidationError("Invalid request body")
	}
	in.PostID = req.PostID
	in.ParentID = req.ReplyID
	in.Title = req.Title
	return in, nil
}

func formUint(c *fiber.Ctx, field string) uint {
	v, err := strconv.ParseUint(c.FormValue(field), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}
