package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"kollektiv/internal/middleware"
	"kollektiv/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// wsIncoming is the envelope clients send over the chat socket.
type wsIncoming struct {
	Type     string `json:"type"`
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

// WebSocketNotifications upgrades the connection and streams the user's
// notification events until the client disconnects.
func (s *Server) WebSocketNotifications() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals(middleware.LocalUserID).(string)
		if !ok || userID == "" {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			slog.Warn("notification socket rejected", "userId", userID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// WebSocketChat upgrades the connection and handles the chat protocol:
// clients join and leave rooms and signal typing; message fan-out arrives
// through the redis wiring.
func (s *Server) WebSocketChat() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals(middleware.LocalUserID).(string)
		if !ok || userID == "" {
			_ = conn.Close()
			return
		}

		ctx := context.Background()
		displayName := ""
		if user, err := s.users.ByID(ctx, userID); err == nil {
			displayName = user.DisplayName
		}

		client, err := s.chatHub.Register(userID, conn)
		if err != nil {
			slog.Warn("chat socket rejected", "userId", userID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		client.IncomingHandler = func(cl *notifications.Client, raw []byte) {
			var msg wsIncoming
			if err := json.Unmarshal(raw, &msg); err != nil || msg.ChatID == "" {
				return
			}

			switch msg.Type {
			case "join":
				if !s.isChatParticipant(ctx, userID, msg.ChatID) {
					cl.TrySend([]byte(`{"error":"not a participant"}`))
					return
				}
				s.chatHub.JoinChat(msg.ChatID, cl)
				confirmation, _ := json.Marshal(notifications.ChatEvent{
					Type:   "joined",
					ChatID: msg.ChatID,
					UserID: userID,
				})
				cl.TrySend(confirmation)
			case "leave":
				s.chatHub.LeaveChat(msg.ChatID, cl)
			case "typing":
				if !s.isChatParticipant(ctx, userID, msg.ChatID) {
					return
				}
				_ = s.notifier.PublishTyping(ctx, msg.ChatID, userID, displayName, msg.IsTyping)
			}
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// isChatParticipant reports whether userID is in the chat's participants
// array. Missing chats count as not-a-participant.
func (s *Server) isChatParticipant(ctx context.Context, userID, chatID string) bool {
	chat, err := s.chats.ChatInfo(ctx, chatID)
	if err != nil {
		return false
	}
	return chat.HasParticipant(userID)
}
