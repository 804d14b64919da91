package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
)

// GetUser returns a user document by id.
func (s *Server) GetUser(c *fiber.Ctx) error {
	user, err := s.users.ByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(user)
}

// SearchUsers performs a substring search over display names and emails.
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	term := c.Query("q")
	if term == "" {
		return badRequest(c, "Query parameter q is required")
	}
	users, err := s.users.Search(c.UserContext(), term)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// UpdateProfile patches the authenticated user's own profile fields. Absent
// fields are left untouched.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		DisplayName *string `json:"displayName"`
		Bio         *string `json:"bio"`
		PhotoURL    *string `json:"photoURL"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	err := s.users.UpdateProfile(c.UserContext(), currentUserID(c), req.DisplayName, req.Bio, req.PhotoURL)
	if err != nil {
		return serviceError(c, err)
	}
	return s.Me(c)
}

// Follow adds the authenticated user to the target's followers.
func (s *Server) Follow(c *fiber.Ctx) error {
	actor, err := s.currentActor(c)
	if err != nil {
		return serviceError(c, err)
	}

	targetID := c.Params("id")
	if err := s.users.Follow(c.UserContext(), actor, targetID); err != nil {
		return serviceError(c, err)
	}

	s.publishRealtimeEvent(c, targetID, "follow", fiber.Map{"senderId": actor.ID})
	return c.JSON(fiber.Map{"following": true})
}

// Unfollow removes the follow relation in both directions.
func (s *Server) Unfollow(c *fiber.Ctx) error {
	if err := s.users.Unfollow(c.UserContext(), currentUserID(c), c.Params("id")); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"following": false})
}

// Followers lists the resolvable follower documents of a user.
func (s *Server) Followers(c *fiber.Ctx) error {
	users, err := s.users.Followers(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// Following lists who a user follows.
func (s *Server) Following(c *fiber.Ctx) error {
	users, err := s.users.Following(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// publishRealtimeEvent pushes a small JSON event onto the recipient's
// notification channel. Best-effort; failures are ignored, the document in
// the notifications collection is the source of truth.
func (s *Server) publishRealtimeEvent(c *fiber.Ctx, recipientID, eventType string, payload fiber.Map) {
	payload["type"] = eventType
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = s.notifier.PublishUser(c.UserContext(), recipientID, string(raw))
}
