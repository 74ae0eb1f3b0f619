package server

import (
	"io"
	"mime/multipart"
	"strings"

	"tidepool/internal/models"
	"tidepool/internal/service"
	"tidepool/internal/validation"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// formFile reads an optional multipart file field. A missing field is
// not an error; an unreadable one is.
func formFile(c *fiber.Ctx, field string) (name, contentType string, content []byte, err error) {
	file, ferr := c.FormFile(field)
	if ferr != nil {
		return "", "", nil, nil
	}
	content, err = readFormFile(file)
	if err != nil {
		return "", "", nil, err
	}
	return file.Filename, file.Header.Get("Content-Type"), content, nil
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	return content, nil
}

// GetMe handles GET /me
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.Context(), currentUserID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// GetUser handles GET /get-user/:userId
func (s *Server) GetUser(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUser(c.Context(), userID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// UpdateProfile handles PUT /update-user-profile. Accepts multipart
// form data (for picture/cover uploads) or plain JSON; only fields
// present in the request are changed.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	in := service.UpdateProfileInput{UserID: currentUserID(c)}

	if strings.HasPrefix(c.Get("Content-Type"), "multipart/form-data") {
		form, err := c.MultipartForm()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid form data"))
		}
		pick := func(field string) *string {
			if vals, ok := form.Value[field]; ok && len(vals) > 0 {
				v := vals[0]
				return &v
			}
			return nil
		}
		in.Name = pick("name")
		in.Bio = pick("bio")
		in.Location = pick("location")
		in.Occupation = pick("occupation")

		var ferr error
		if in.AvatarName, in.AvatarType, in.AvatarContent, ferr = formFile(c, "picture"); ferr != nil {
			return models.Respond(c, ferr)
		}
		if in.CoverName, in.CoverType, in.CoverContent, ferr = formFile(c, "cover"); ferr != nil {
			return models.Respond(c, ferr)
		}
	} else {
		var req struct {
			Name       *string `json:"name"`
			Bio        *string `json:"bio"`
			Location   *string `json:"location"`
			Occupation *string `json:"occupation"`
		}
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		in.Name = req.Name
		in.Bio = req.Bio
		in.Location = req.Location
		in.Occupation = req.Occupation
	}

	user, err := s.userService.UpdateProfile(c.Context(), in)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// GetFriends handles GET /friends/:id: trimmed profile cards for the
// accounts the user follows.
func (s *Server) GetFriends(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	friends, err := s.followService.Friends(c.Context(), userID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"friends": friends,
	})
}

// UpdatePassword handles PUT /update-password: an authenticated
// password change guarded by the current password.
func (s *Server) UpdatePassword(c *fiber.Ctx) error {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.BodyParser(&req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Please enter old and new password"))
	}

	user, err := s.userRepo.GetByID(c.Context(), currentUserID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); cmpErr != nil {
		return models.Respond(c, models.NewValidationError("Invalid old password"))
	}
	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		return models.Respond(c, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.Respond(c, models.NewInternalError(err))
	}
	if err := s.userService.ChangePassword(c.Context(), user.ID, string(hash)); err != nil {
		return models.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// FollowUnfollow handles PUT /follow-unfollow/:id
func (s *Server) FollowUnfollow(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.followService.ToggleFollow(c.Context(), service.ToggleFollowInput{
		FollowerID: currentUserID(c),
		FolloweeID: targetID,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// GetUsers handles GET /get-users (admin)
func (s *Server) GetUsers(c *fiber.Ctx) error {
	p := parsePagination(c, 50)
	users, err := s.userService.ListUsers(c.Context(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"users":   users,
	})
}

// UpdateUserStatus handles PUT /update-user-status/:id (admin): toggles
// the account's active flag.
func (s *Server) UpdateUserStatus(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil || req.Active == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Field 'active' is required"))
	}

	if err := s.userService.SetSuspended(c.Context(), currentUserID(c), targetID, !*req.Active); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}

// DeleteUser handles DELETE /delete-user/:id (admin, or the account owner)
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userService.DeleteUser(c.Context(), currentUserID(c), targetID); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "User deleted",
	})
}
