package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kollektiv/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthApp(t *testing.T, provider *auth.Provider) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Get("/me", AuthRequired(provider), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"userId":  c.Locals(LocalUserID),
			"isAdmin": c.Locals(LocalIsAdmin),
		})
	})
	app.Get("/admin", AuthRequired(provider), AdminRequired, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/ws", WebSocketAuthRequired(provider), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	provider := auth.NewProvider("test-secret", time.Hour)
	app := newAuthApp(t, provider)

	token, err := provider.IssueSession("u1", "anna@corp.ru", false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "missing header is rejected")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "scheme must be Bearer")
}

func TestAdminRequired(t *testing.T) {
	provider := auth.NewProvider("test-secret", time.Hour)
	app := newAuthApp(t, provider)

	userToken, err := provider.IssueSession("u1", "anna@corp.ru", false)
	require.NoError(t, err)
	adminToken, err := provider.IssueSession("u2", "root@corp.ru", true)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocketAuthRequired_QueryToken(t *testing.T) {
	provider := auth.NewProvider("test-secret", time.Hour)
	app := newAuthApp(t, provider)

	token, err := provider.IssueSession("u1", "anna@corp.ru", false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
