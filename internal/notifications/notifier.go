// Package notifications delivers real-time events to connected clients:
// Redis pub/sub fan-out between instances and websocket hubs per instance.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"kollektiv/internal/models"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes events into Redis channels. A nil Redis client turns
// every publish into a no-op so single-instance deployments run without
// Redis.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier using the provided Redis client, which may
// be nil.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishNotification sends a stored notification to its recipient's channel.
func (n *Notifier) PublishNotification(ctx context.Context, notif models.Notification) error {
	payload, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.PublishUser(ctx, notif.RecipientID, string(payload))
}

// PublishUser sends a payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends a payload to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, broadcastChannel, payload).Err()
}

// PublishChatMessage sends a chat message payload to the chat's channel.
func (n *Notifier) PublishChatMessage(ctx context.Context, chatID string, msg models.Message) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return n.rdb.Publish(ctx, ChatChannel(chatID), string(payload)).Err()
}

// PublishTyping sends a typing indicator to the chat's typing channel.
func (n *Notifier) PublishTyping(ctx context.Context, chatID, userID, displayName string, isTyping bool) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]any{
		"userId":      userID,
		"displayName": displayName,
		"isTyping":    isTyping,
		"expiresInMs": 5000,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, "typing:chat:"+chatID, string(payload)).Err()
}

// StartPatternSubscriber subscribes to the per-user and broadcast channels
// and calls onMessage for each incoming message until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notifications:user:*", broadcastChannel)
	n.pump(ctx, sub, "notification subscriber", onMessage)
	return nil
}

// StartChatSubscriber subscribes to the chat and typing channels.
func (n *Notifier) StartChatSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "chat:room:*", "typing:chat:*")
	n.pump(ctx, sub, "chat subscriber", onMessage)
	return nil
}

func (n *Notifier) pump(ctx context.Context, sub *redis.PubSub, name string, onMessage func(channel, payload string)) {
	ch := sub.Channel()
	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("panic in subscriber callback",
								"subscriber", name, "panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()
}

const (
	userChannelPrefix = "notifications:user:"
	chatChannelPrefix = "chat:room:"
	broadcastChannel  = "notifications:broadcast"
)

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// ChatChannel derives the Redis channel name for a chat.
func ChatChannel(chatID string) string {
	return chatChannelPrefix + chatID
}
