package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kollektiv/internal/auth"
	"kollektiv/internal/models"
	"kollektiv/internal/store"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account pending admin approval. The new user cannot log
// in until an admin approves them.
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Email == "" || req.DisplayName == "" {
		return badRequest(c, "Display name and email are required")
	}
	if len(req.Password) < 8 {
		return badRequest(c, "Password must be at least 8 characters")
	}

	ctx := c.UserContext()

	var existing []models.User
	err := s.store.Query(ctx, store.ColUsers, store.Query{
		Predicates: []store.Predicate{store.Where("email", store.OpEq, req.Email)},
		Limit:      1,
	}, &existing)
	if err != nil {
		return serviceError(c, err)
	}
	if len(existing) > 0 {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewAlreadyInStateError("Email is already registered"))
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return serviceError(c, models.NewInternalError(err))
	}

	user := models.User{
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		PasswordHash: hash,
		Approved:     false,
		CreatedAt:    time.Now().UTC(),
	}
	id, err := s.store.Create(ctx, store.ColUsers, &user)
	if err != nil {
		return serviceError(c, err)
	}
	user.ID = id

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":    user,
		"message": "Account created, awaiting administrator approval",
	})
}

// Login authenticates by email and password. Unapproved and blocked accounts
// are rejected with 403; expired temporary blocks let the user back in but do
// not clear the block fields.
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ctx := c.UserContext()

	var found []models.User
	err := s.store.Query(ctx, store.ColUsers, store.Query{
		Predicates: []store.Predicate{
			store.Where("email", store.OpEq, strings.ToLower(strings.TrimSpace(req.Email))),
		},
		Limit: 1,
	}, &found)
	if err != nil {
		return serviceError(c, err)
	}
	if len(found) == 0 || !auth.CheckPassword(found[0].PasswordHash, req.Password) {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid email or password"))
	}
	user := found[0]

	if !user.Approved {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewPermissionDeniedError("Account is awaiting administrator approval"))
	}
	if user.Blocked && !user.BlockExpired(time.Now().UTC()) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewPermissionDeniedError(blockMessage(&user)))
	}

	token, err := s.auth.IssueSession(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return serviceError(c, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// blockMessage renders the human-readable block status shown on login.
func blockMessage(u *models.User) string {
	msg := "Ваш аккаунт заблокирован"
	if u.BlockedReason != "" {
		msg += ". Причина: " + u.BlockedReason
	}
	if u.BlockedUntil == nil {
		return msg + ". Блокировка постоянная"
	}
	return msg + fmt.Sprintf(". Блокировка до %s", u.BlockedUntil.Format("02.01.2006"))
}

// Me returns the authenticated user's own document.
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.users.ByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(user)
}

// RequestPasswordReset emails a reset token. Always responds 200 so the
// endpoint does not reveal which emails have accounts.
func (s *Server) RequestPasswordReset(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ctx := c.UserContext()
	respond := func() error {
		return c.JSON(fiber.Map{"message": "If the account exists, a reset email has been sent"})
	}

	var found []models.User
	err := s.store.Query(ctx, store.ColUsers, store.Query{
		Predicates: []store.Predicate{
			store.Where("email", store.OpEq, strings.ToLower(strings.TrimSpace(req.Email))),
		},
		Limit: 1,
	}, &found)
	if err != nil || len(found) == 0 {
		return respond()
	}
	user := found[0]

	token, err := s.auth.IssuePasswordReset(user.ID, user.Email)
	if err != nil {
		slog.Error("password reset token issue failed", "userId", user.ID, "error", err)
		return respond()
	}

	body := "Для сброса пароля используйте код: " + token
	if !s.mailer.Send(ctx, user.Email, "Сброс пароля", body, "Kollektiv") {
		slog.Warn("password reset email failed", "userId", user.ID)
	}
	return respond()
}

// ConfirmPasswordReset sets a new password given a valid reset token.
func (s *Server) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.NewPassword) < 8 {
		return badRequest(c, "Password must be at least 8 characters")
	}

	claims, err := s.auth.VerifyPasswordReset(req.Token)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired reset token"))
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return serviceError(c, models.NewInternalError(err))
	}
	if err := s.store.Update(c.UserContext(), store.ColUsers, claims.UserID,
		map[string]any{"passwordHash": hash}); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Password updated"})
}
