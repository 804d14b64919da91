package server

import (
	"net/http"
	"testing"

	"kollektiv/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupChatLifecycle(t *testing.T) {
	srv, app := newTestServer(t)
	anna, annaToken := seedAccount(t, srv, models.User{
		DisplayName: "Anna", Email: "anna@corp.ru", Approved: true,
	})
	boris, borisToken := seedAccount(t, srv, models.User{
		DisplayName: "Boris", Email: "boris@corp.ru", Approved: true,
	})
	vera, _ := seedAccount(t, srv, models.User{
		DisplayName: "Vera", Email: "vera@corp.ru", Approved: true,
	})

	resp := doJSON(t, app, http.MethodPost, "/api/chats/group", annaToken, map[string]any{
		"name":         "Релизная команда",
		"participants": []string{boris.ID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ChatID string `json:"chatId"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ChatID)

	resp = doJSON(t, app, http.MethodGet, "/api/chats/"+created.ChatID, annaToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var chat models.Chat
	decodeBody(t, resp, &chat)
	assert.ElementsMatch(t, []string{anna.ID, boris.ID}, chat.Participants)
	assert.Equal(t, []string{anna.ID}, chat.Admins)

	// Non-admin participants cannot add users.
	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+created.ChatID+"/participants", borisToken,
		map[string]string{"userId": vera.ID})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+created.ChatID+"/participants", annaToken,
		map[string]string{"userId": vera.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Adding the same user again conflicts.
	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+created.ChatID+"/participants", annaToken,
		map[string]string{"userId": vera.ID})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+created.ChatID+"/admins/"+boris.ID, annaToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/api/chats/"+created.ChatID+"/participants/"+vera.ID, annaToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+created.ChatID+"/leave", borisToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/chats/"+created.ChatID, annaToken, nil)
	decodeBody(t, resp, &chat)
	assert.Equal(t, []string{anna.ID}, chat.Participants)
	assert.Equal(t, []string{anna.ID}, chat.Admins)

	// The membership churn is narrated by system messages.
	resp = doJSON(t, app, http.MethodGet, "/api/chats/"+created.ChatID+"/messages", annaToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var messageBody struct {
		Messages []models.Message `json:"messages"`
	}
	decodeBody(t, resp, &messageBody)
	require.NotEmpty(t, messageBody.Messages)
	texts := make([]string, 0, len(messageBody.Messages))
	for _, m := range messageBody.Messages {
		assert.Equal(t, models.SystemSenderID, m.SenderID)
		texts = append(texts, m.Text)
	}
	assert.Contains(t, texts, "Team создан")
	assert.Contains(t, texts, "Anna добавил(а) Vera в чат")
	assert.Contains(t, texts, "Boris покинул(а) чат")
}

func TestMessagingEndpoints(t *testing.T) {
	srv, app := newTestServer(t)
	anna, annaToken := seedAccount(t, srv, models.User{
		DisplayName: "Anna", Email: "anna@corp.ru", Approved: true,
	})
	boris, borisToken := seedAccount(t, srv, models.User{
		DisplayName: "Boris", Email: "boris@corp.ru", Approved: true,
	})
	_, veraToken := seedAccount(t, srv, models.User{
		DisplayName: "Vera", Email: "vera@corp.ru", Approved: true,
	})

	resp := doJSON(t, app, http.MethodPost, "/api/chats/private", annaToken, map[string]string{
		"userId": boris.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ChatID string `json:"chatId"`
	}
	decodeBody(t, resp, &created)

	// Opening the same pair again returns the existing chat.
	resp = doJSON(t, app, http.MethodPost, "/api/chats/private", borisToken, map[string]string{
		"userId": anna.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var again struct {
		ChatID string `json:"chatId"`
	}
	decodeBody(t, resp, &again)
	assert.Equal(t, created.ChatID, again.ChatID)

	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+created.ChatID+"/messages", annaToken,
		map[string]string{"text": "Привет"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg models.Message
	decodeBody(t, resp, &msg)
	require.NotEmpty(t, msg.ID)

	// Outsiders can neither read nor write.
	resp = doJSON(t, app, http.MethodGet, "/api/chats/"+created.ChatID+"/messages", veraToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+created.ChatID+"/messages", veraToken,
		map[string]string{"text": "???"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Only the sender can edit.
	resp = doJSON(t, app, http.MethodPut, "/api/messages/"+msg.ID, borisToken,
		map[string]string{"text": "изменено"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = doJSON(t, app, http.MethodPut, "/api/messages/"+msg.ID, annaToken,
		map[string]string{"text": "Привет, Boris"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/chats/", annaToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var chatsBody struct {
		Chats []models.Chat `json:"chats"`
	}
	decodeBody(t, resp, &chatsBody)
	require.Len(t, chatsBody.Chats, 1)
	assert.Equal(t, "Привет", chatsBody.Chats[0].LastMessage.Text)
}
