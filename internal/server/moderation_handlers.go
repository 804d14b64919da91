package server

import (
	"github.com/gofiber/fiber/v2"
)

type moderationRequest struct {
	Reason       string `json:"reason"`
	DurationDays int    `json:"durationDays"`
}

// BlockUser blocks a user for the given number of days (0 = permanent),
// records the action and notifies the target.
func (s *Server) BlockUser(c *fiber.Ctx) error {
	var req moderationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	targetID := c.Params("id")
	actionID, err := s.moderation.BlockUser(c.UserContext(), targetID,
		currentUserID(c), s.currentAdminName(c), req.Reason, req.DurationDays)
	if err != nil {
		return serviceError(c, err)
	}

	s.publishRealtimeEvent(c, targetID, "moderation", fiber.Map{"actionId": actionID})
	return c.JSON(fiber.Map{"actionId": actionID})
}

// UnblockUser lifts a block and records the action.
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	var req moderationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	actionID, err := s.moderation.UnblockUser(c.UserContext(), c.Params("id"),
		currentUserID(c), s.currentAdminName(c), req.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"actionId": actionID})
}

// WarnUser issues a warning, bumping the target's warning counter.
func (s *Server) WarnUser(c *fiber.Ctx) error {
	var req moderationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	targetID := c.Params("id")
	actionID, err := s.moderation.WarnUser(c.UserContext(), targetID,
		currentUserID(c), s.currentAdminName(c), req.Reason)
	if err != nil {
		return serviceError(c, err)
	}

	s.publishRealtimeEvent(c, targetID, "moderation", fiber.Map{"actionId": actionID})
	return c.JSON(fiber.Map{"actionId": actionID})
}

// DeletePostWithReason removes a post on moderation grounds, keeping an audit
// record with a content snapshot and notifying the author.
func (s *Server) DeletePostWithReason(c *fiber.Ctx) error {
	var req moderationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	actionID, err := s.moderation.DeletePostWithReason(c.UserContext(), c.Params("id"),
		currentUserID(c), s.currentAdminName(c), req.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"actionId": actionID})
}

// DeleteCommentWithReason removes a comment on moderation grounds.
func (s *Server) DeleteCommentWithReason(c *fiber.Ctx) error {
	var req moderationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	actionID, err := s.moderation.DeleteCommentWithReason(c.UserContext(), c.Params("id"),
		currentUserID(c), s.currentAdminName(c), req.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"actionId": actionID})
}

// ModerationHistory lists every moderation action against a user, newest
// first.
func (s *Server) ModerationHistory(c *fiber.Ctx) error {
	actions, err := s.moderation.UserHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"actions": actions})
}
