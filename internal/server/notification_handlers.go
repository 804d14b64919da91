package server

import (
	"errors"

	"kollektiv/internal/models"
	"kollektiv/internal/store"

	"github.com/gofiber/fiber/v2"
)

// ListNotifications returns the authenticated user's notifications, newest
// first.
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	notifs, err := s.notifs.ListForRecipient(c.UserContext(), currentUserID(c), parseLimit(c, 50, 200))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"notifications": notifs})
}

// MarkNotificationRead marks one of the user's notifications as read.
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	notif, err := s.ownedNotification(c)
	if err != nil {
		return serviceError(c, err)
	}
	if err := s.notifs.MarkRead(c.UserContext(), notif.ID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"read": true})
}

// MarkAllNotificationsRead marks every unread notification of the user.
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	if err := s.notifs.MarkAllRead(c.UserContext(), currentUserID(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"read": true})
}

// DeleteNotification removes one of the user's notifications.
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	notif, err := s.ownedNotification(c)
	if err != nil {
		return serviceError(c, err)
	}
	if err := s.notifs.Delete(c.UserContext(), notif.ID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// DeleteAllNotifications clears the user's notification feed.
func (s *Server) DeleteAllNotifications(c *fiber.Ctx) error {
	if err := s.notifs.DeleteAll(c.UserContext(), currentUserID(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// ownedNotification loads the notification from the id route param and
// verifies it belongs to the authenticated user.
func (s *Server) ownedNotification(c *fiber.Ctx) (*models.Notification, error) {
	id := c.Params("id")
	var notif models.Notification
	if err := s.store.Get(c.UserContext(), store.ColNotifications, id, &notif); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("Notification", id)
		}
		return nil, err
	}
	if notif.RecipientID != currentUserID(c) {
		return nil, models.NewPermissionDeniedError("Notification belongs to another user")
	}
	return &notif, nil
}
