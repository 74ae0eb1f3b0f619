package server

import (
	"tidepool/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /get-notifications: the caller's
// notifications, newest first.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	p := parsePagination(c, 50)
	items, err := s.notificationService.List(c.Context(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"notifications": items,
	})
}

// UpdateNotification handles PUT /update-notification/:id: marks one of
// the caller's notifications as read.
func (s *Server) UpdateNotification(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	n, err := s.notificationService.MarkRead(c.Context(), id, currentUserID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"notification": n,
	})
}
