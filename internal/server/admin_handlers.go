package server

import (
	"github.com/gofiber/fiber/v2"
)

// AllUsers lists every user on the platform.
func (s *Server) AllUsers(c *fiber.Ctx) error {
	users, err := s.admin.AllUsers(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// PendingUsers lists accounts awaiting approval, newest first.
func (s *Server) PendingUsers(c *fiber.Ctx) error {
	users, err := s.admin.PendingUsers(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// ApproveUser approves a pending account, notifying the user in-app and by
// email.
func (s *Server) ApproveUser(c *fiber.Ctx) error {
	targetID := c.Params("id")
	if err := s.admin.ApproveUser(c.UserContext(), targetID); err != nil {
		return serviceError(c, err)
	}

	s.publishRealtimeEvent(c, targetID, "system", fiber.Map{"approved": true})
	return c.JSON(fiber.Map{"approved": true})
}

// RejectUser deletes a pending account.
func (s *Server) RejectUser(c *fiber.Ctx) error {
	if err := s.admin.RejectUser(c.UserContext(), c.Params("id")); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"rejected": true})
}

// DeleteUser removes a user and cascades over their content.
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	msg, err := s.admin.DeleteUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": msg})
}

// SetAdminRole grants or revokes the platform admin flag.
func (s *Server) SetAdminRole(c *fiber.Ctx) error {
	var req struct {
		IsAdmin bool `json:"isAdmin"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := s.admin.SetAdminRole(c.UserContext(), c.Params("id"), req.IsAdmin); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"isAdmin": req.IsAdmin})
}

// PlatformStats returns platform-wide collection counts.
func (s *Server) PlatformStats(c *fiber.Ctx) error {
	stats, err := s.admin.Stats(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(stats)
}
