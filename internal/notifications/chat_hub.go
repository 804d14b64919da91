package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// ChatHub manages websocket connections for chats. Unlike Hub, which is
// user-centric, ChatHub is room-centric: clients join the chats they are
// viewing and receive messages and typing indicators for those rooms.
type ChatHub struct {
	mu sync.RWMutex

	// chatID -> userID -> client set
	rooms map[string]map[string]map[*Client]struct{}

	// userID -> chatIDs the user has joined
	userRooms map[string]map[string]struct{}

	// userID -> open clients
	userConns map[string]map[*Client]struct{}
}

// ChatEvent is the envelope broadcast to chat room subscribers.
type ChatEvent struct {
	Type        string `json:"type"`
	ChatID      string `json:"chatId,omitempty"`
	UserID      string `json:"userId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Payload     any    `json:"payload,omitempty"`
}

// NewChatHub creates a ChatHub.
func NewChatHub() *ChatHub {
	return &ChatHub{
		rooms:     make(map[string]map[string]map[*Client]struct{}),
		userRooms: make(map[string]map[string]struct{}),
		userConns: make(map[string]map[*Client]struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *ChatHub) Name() string { return "chat hub" }

// Register adds a user's websocket connection.
func (h *ChatHub) Register(userID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[*Client]struct{})
	}
	if len(h.userConns[userID]) >= maxConnsPerUser {
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	h.userConns[userID][client] = struct{}{}
	return client, nil
}

// UnregisterClient removes a connection. When the user's last connection
// closes, their room memberships are cleaned up too.
func (h *ChatHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.userConns[client.UserID]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) > 0 {
		return
	}
	delete(h.userConns, client.UserID)

	for chatID := range h.userRooms[client.UserID] {
		if users, ok := h.rooms[chatID]; ok {
			delete(users, client.UserID)
			if len(users) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
	delete(h.userRooms, client.UserID)
}

// JoinChat subscribes a client to a chat room.
func (h *ChatHub) JoinChat(chatID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[string]map[*Client]struct{})
	}
	if h.rooms[chatID][client.UserID] == nil {
		h.rooms[chatID][client.UserID] = make(map[*Client]struct{})
	}
	h.rooms[chatID][client.UserID][client] = struct{}{}

	if h.userRooms[client.UserID] == nil {
		h.userRooms[client.UserID] = make(map[string]struct{})
	}
	h.userRooms[client.UserID][chatID] = struct{}{}
}

// LeaveChat unsubscribes a client from a chat room.
func (h *ChatHub) LeaveChat(chatID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if users, ok := h.rooms[chatID]; ok {
		if clients, ok := users[client.UserID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(users, client.UserID)
			}
		}
		if len(users) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// BroadcastToChat sends an event to everyone viewing the chat.
func (h *ChatHub) BroadcastToChat(chatID string, event ChatEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("marshaling chat event", "chat_id", chatID, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.rooms[chatID] {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// IsUserOnline reports whether the user has at least one open chat
// connection.
func (h *ChatHub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.userConns[userID]
	return ok && len(clients) > 0
}

// StartWiring forwards Redis chat and typing events to local room
// subscribers.
func (h *ChatHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartChatSubscriber(ctx, func(channel, payload string) {
		if chatID, ok := strings.CutPrefix(channel, chatChannelPrefix); ok && chatID != "" {
			h.BroadcastToChat(chatID, ChatEvent{Type: "message", ChatID: chatID, Payload: json.RawMessage(payload)})
			return
		}
		if chatID, ok := strings.CutPrefix(channel, "typing:chat:"); ok && chatID != "" {
			h.BroadcastToChat(chatID, ChatEvent{Type: "typing", ChatID: chatID, Payload: json.RawMessage(payload)})
			return
		}
		slog.Warn("invalid chat channel", "channel", channel)
	})
}

// Shutdown closes every websocket connection.
func (h *ChatHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.userConns {
		for client := range clients {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				slog.Warn("writing close message", "user_id", userID, "err", err)
			}
			_ = client.Conn.Close()
		}
	}
	h.rooms = make(map[string]map[string]map[*Client]struct{})
	h.userRooms = make(map[string]map[string]struct{})
	h.userConns = make(map[string]map[*Client]struct{})
	return nil
}
