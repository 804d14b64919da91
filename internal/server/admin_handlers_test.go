package server

import (
	"context"
	"net/http"
	"testing"

	"kollektiv/internal/models"
	"kollektiv/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalWorkflowEndpoints(t *testing.T) {
	srv, app := newTestServer(t)
	_, adminToken := seedAccount(t, srv, models.User{
		DisplayName: "Admin", Email: "admin@corp.ru", Approved: true, IsAdmin: true,
	})
	pending, _ := seedAccount(t, srv, models.User{
		DisplayName: "Boris", Email: "boris@corp.ru",
	})
	rejected, _ := seedAccount(t, srv, models.User{
		DisplayName: "Vera", Email: "vera@corp.ru",
	})

	resp := doJSON(t, app, http.MethodGet, "/api/admin/users/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Users []models.User `json:"users"`
	}
	decodeBody(t, resp, &listing)
	require.Len(t, listing.Users, 2)

	resp = doJSON(t, app, http.MethodPost, "/api/admin/users/"+pending.ID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var approved models.User
	require.NoError(t, srv.store.Get(context.Background(), store.ColUsers, pending.ID, &approved))
	assert.True(t, approved.Approved)

	resp = doJSON(t, app, http.MethodPost, "/api/admin/users/"+rejected.ID+"/reject", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var gone models.User
	err := srv.store.Get(context.Background(), store.ColUsers, rejected.ID, &gone)
	require.ErrorIs(t, err, store.ErrNotFound)

	resp = doJSON(t, app, http.MethodGet, "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		TotalUsers   int64 `json:"totalUsers"`
		PendingUsers int64 `json:"pendingUsers"`
		TotalAdmins  int64 `json:"totalAdmins"`
	}
	decodeBody(t, resp, &stats)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(0), stats.PendingUsers)
	assert.Equal(t, int64(1), stats.TotalAdmins)
}

func TestSetAdminRoleEndpoint(t *testing.T) {
	srv, app := newTestServer(t)
	_, adminToken := seedAccount(t, srv, models.User{
		DisplayName: "Admin", Email: "admin@corp.ru", Approved: true, IsAdmin: true,
	})
	boris, _ := seedAccount(t, srv, models.User{
		DisplayName: "Boris", Email: "boris@corp.ru", Approved: true,
	})

	resp := doJSON(t, app, http.MethodPut, "/api/admin/users/"+boris.ID+"/role", adminToken,
		map[string]bool{"isAdmin": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var promoted models.User
	require.NoError(t, srv.store.Get(context.Background(), store.ColUsers, boris.ID, &promoted))
	assert.True(t, promoted.IsAdmin)
}

func TestModerationEndpoints(t *testing.T) {
	srv, app := newTestServer(t)
	admin, adminToken := seedAccount(t, srv, models.User{
		DisplayName: "Admin", Email: "admin@corp.ru", Approved: true, IsAdmin: true,
	})
	boris, _ := seedAccount(t, srv, models.User{
		DisplayName: "Boris", Email: "boris@corp.ru", Approved: true,
	})

	// Blocking requires a reason.
	resp := doJSON(t, app, http.MethodPost, "/api/admin/moderation/users/"+boris.ID+"/block", adminToken,
		map[string]any{"durationDays": 3})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/admin/moderation/users/"+boris.ID+"/block", adminToken,
		map[string]any{"reason": "спам", "durationDays": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var blocked models.User
	require.NoError(t, srv.store.Get(context.Background(), store.ColUsers, boris.ID, &blocked))
	require.True(t, blocked.Blocked)
	require.NotNil(t, blocked.BlockedUntil)

	// Admins cannot be blocked.
	resp = doJSON(t, app, http.MethodPost, "/api/admin/moderation/users/"+admin.ID+"/block", adminToken,
		map[string]any{"reason": "самоблокировка", "durationDays": 1})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/admin/moderation/users/"+boris.ID+"/warn", adminToken,
		map[string]any{"reason": "тон"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/admin/moderation/users/"+boris.ID+"/unblock", adminToken,
		map[string]any{"reason": "амнистия"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/admin/moderation/users/"+boris.ID+"/history", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history struct {
		Actions []models.ModerationAction `json:"actions"`
	}
	decodeBody(t, resp, &history)
	require.Len(t, history.Actions, 3)
}

func TestModerationContentDeletionEndpoints(t *testing.T) {
	srv, app := newTestServer(t)
	_, adminToken := seedAccount(t, srv, models.User{
		DisplayName: "Admin", Email: "admin@corp.ru", Approved: true, IsAdmin: true,
	})
	boris, _ := seedAccount(t, srv, models.User{
		DisplayName: "Boris", Email: "boris@corp.ru", Approved: true,
	})

	postID, err := srv.store.Create(context.Background(), store.ColPosts, &models.Post{
		AuthorID: boris.ID, AuthorName: "Boris", Content: "оффтоп",
	})
	require.NoError(t, err)

	resp := doJSON(t, app, http.MethodDelete, "/api/admin/moderation/posts/"+postID, adminToken,
		map[string]string{"reason": "не по теме"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var gone models.Post
	err = srv.store.Get(context.Background(), store.ColPosts, postID, &gone)
	require.ErrorIs(t, err, store.ErrNotFound)

	// The author got a moderation notification despite the post being gone.
	var notifs []models.Notification
	err = srv.store.Query(context.Background(), store.ColNotifications, store.Query{
		Predicates: []store.Predicate{store.Where("recipientId", store.OpEq, boris.ID)},
	}, &notifs)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, models.NotificationModeration, notifs[0].Type)
}
