// Package middleware provides authentication and request middleware.
package middleware

import (
	"strings"

	"kollektiv/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the auth middleware.
const (
	LocalUserID  = "userID"
	LocalEmail   = "email"
	LocalIsAdmin = "isAdmin"
)

// AuthRequired enforces a valid Bearer session token on protected routes.
func AuthRequired(provider *auth.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		return authenticate(c, provider, token)
	}
}

// WebSocketAuthRequired validates tokens from the token query parameter,
// falling back to the Authorization header. Browsers cannot set headers on
// websocket upgrade requests.
func WebSocketAuthRequired(provider *auth.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			var err error
			token, err = bearerToken(c.Get("Authorization"))
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
			}
		}
		return authenticate(c, provider, token)
	}
}

// AdminRequired allows only platform admins through. It must run after
// AuthRequired.
func AdminRequired(c *fiber.Ctx) error {
	isAdmin, _ := c.Locals(LocalIsAdmin).(bool)
	if !isAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Admin access required"})
	}
	return c.Next()
}

func authenticate(c *fiber.Ctx, provider *auth.Provider, token string) error {
	claims, err := provider.VerifySession(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	c.Locals(LocalUserID, claims.UserID)
	c.Locals(LocalEmail, claims.Email)
	c.Locals(LocalIsAdmin, claims.IsAdmin)
	return c.Next()
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Authorization header required")
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format")
	}
	return parts[1], nil
}
