package server

import (
	"kollektiv/internal/middleware"
	"kollektiv/internal/models"
	"kollektiv/internal/service"
	"kollektiv/internal/store"

	"github.com/gofiber/fiber/v2"
)

// currentUserID returns the authenticated user's id from locals. Empty only
// if the auth middleware did not run, which is a routing bug.
func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.LocalUserID).(string)
	return id
}

// currentActor loads the authenticated user and returns the snapshot used for
// notification sender fields.
func (s *Server) currentActor(c *fiber.Ctx) (service.Actor, error) {
	id := currentUserID(c)
	var u models.User
	if err := s.store.Get(c.UserContext(), store.ColUsers, id, &u); err != nil {
		return service.Actor{}, models.NewUnauthorizedError("Account no longer exists")
	}
	return service.Actor{ID: u.ID, Name: u.DisplayName, PhotoURL: u.PhotoURL}, nil
}

// currentAdminName resolves the display name of the acting admin for audit
// records; falls back to the token email when the document is missing.
func (s *Server) currentAdminName(c *fiber.Ctx) string {
	var u models.User
	if err := s.store.Get(c.UserContext(), store.ColUsers, currentUserID(c), &u); err == nil && u.DisplayName != "" {
		return u.DisplayName
	}
	name, _ := c.Locals(middleware.LocalEmail).(string)
	return name
}

// serviceError maps a service-layer error onto the HTTP response.
func serviceError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.HTTPStatus(err), err)
}

// parseLimit reads the limit query parameter, clamped to [1, max].
func parseLimit(c *fiber.Ctx, def, max int) int {
	limit := c.QueryInt("limit", def)
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}

// badRequest responds 400 with an INVALID_ARGUMENT body.
func badRequest(c *fiber.Ctx, message string) error {
	return models.RespondWithError(c, fiber.StatusBadRequest, models.NewInvalidArgumentError(message))
}
