package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kollektiv/internal/models"
	"kollektiv/internal/store"
)

// fallbackDisplayName is used in system messages when a user document is
// missing or carries no display name. Never an error.
const fallbackDisplayName = "Пользователь"

// ChatService manages private chats, group chat membership and messages.
//
// Membership mutations go through the store's ArrayUnion/ArrayRemove
// primitives, never whole-array overwrite, so concurrent admins editing the
// same group do not clobber each other.
type ChatService struct {
	store  store.Store
	notifs *NotificationService
	now    func() time.Time
}

// NewChatService returns a new ChatService. notifs may be nil; message
// notifications are then skipped.
func NewChatService(st store.Store, notifs *NotificationService) *ChatService {
	return &ChatService{
		store:  st,
		notifs: notifs,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreatePrivateChat returns the id of the private chat between the two users,
// reusing an existing one when present.
func (s *ChatService) CreatePrivateChat(ctx context.Context, currentUserID, otherUserID string) (string, error) {
	var chats []models.Chat
	err := s.store.Query(ctx, store.ColChats, store.Query{
		Predicates: []store.Predicate{
			store.Where("participants", store.OpArrayContains, currentUserID),
			store.Where("type", store.OpEq, string(models.ChatPrivate)),
		},
	}, &chats)
	if err != nil {
		return "", err
	}
	for _, chat := range chats {
		if chat.HasParticipant(otherUserID) {
			return chat.ID, nil
		}
	}

	return s.store.Create(ctx, store.ColChats, &models.Chat{
		Type:         models.ChatPrivate,
		Participants: []string{currentUserID, otherUserID},
		CreatedAt:    s.now(),
		LastMessage:  models.LastMessage{Timestamp: s.now()},
	})
}

// CreateGroupChat creates a group chat with the creator as its only admin and
// announces it with a system message.
func (s *ChatService) CreateGroupChat(ctx context.Context, creatorID, name string, participantIDs []string, photoURL string) (string, error) {
	if name == "" {
		return "", models.NewInvalidArgumentError("Group chats require a name")
	}

	participants := dedupeIDs(participantIDs)
	if !containsString(participants, creatorID) {
		participants = append(participants, creatorID)
	}

	chatID, err := s.store.Create(ctx, store.ColChats, &models.Chat{
		Type:         models.ChatGroup,
		Name:         name,
		PhotoURL:     photoURL,
		Participants: participants,
		Admins:       []string{creatorID},
		CreatedBy:    creatorID,
		CreatedAt:    s.now(),
		LastMessage:  models.LastMessage{Timestamp: s.now()},
	})
	if err != nil {
		return "", err
	}

	if err := s.systemMessage(ctx, chatID, fmt.Sprintf("%s создан", name)); err != nil {
		return "", err
	}
	return chatID, nil
}

// AddUserToGroupChat adds a participant; only group admins may do so, and
// adding a user who is already present fails.
func (s *ChatService) AddUserToGroupChat(ctx context.Context, chatID, userID, byAdminID string) error {
	chat, err := s.groupChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasAdmin(byAdminID) {
		return models.NewPermissionDeniedError("Only chat admins can add participants")
	}
	if chat.HasParticipant(userID) {
		return models.NewAlreadyInStateError("User is already in the chat")
	}

	if err := s.store.ArrayUnion(ctx, store.ColChats, chatID, "participants", userID); err != nil {
		return err
	}

	added := s.displayName(ctx, userID)
	by := s.displayName(ctx, byAdminID)
	return s.systemMessage(ctx, chatID, fmt.Sprintf("%s добавил(а) %s в чат", by, added))
}

// RemoveUserFromGroupChat removes a participant. Allowed for self-leave or
// for group admins. An admin leaving is also removed from the admins array;
// nothing prevents a group from ending up with zero admins.
func (s *ChatService) RemoveUserFromGroupChat(ctx context.Context, chatID, userID, byID string, isLeaving bool) error {
	chat, err := s.groupChat(ctx, chatID)
	if err != nil {
		return err
	}
	if userID != byID && !chat.HasAdmin(byID) {
		return models.NewPermissionDeniedError("Only chat admins can remove participants")
	}
	if !chat.HasParticipant(userID) {
		return models.NewNotFoundError("Chat participant", userID)
	}

	if err := s.store.ArrayRemove(ctx, store.ColChats, chatID, "participants", userID); err != nil {
		return err
	}
	if chat.HasAdmin(userID) {
		if err := s.store.ArrayRemove(ctx, store.ColChats, chatID, "admins", userID); err != nil {
			return err
		}
	}

	removed := s.displayName(ctx, userID)
	text := fmt.Sprintf("%s покинул(а) чат", removed)
	if !isLeaving {
		by := s.displayName(ctx, byID)
		text = fmt.Sprintf("%s удалил(а) %s из чата", by, removed)
	}
	return s.systemMessage(ctx, chatID, text)
}

// MakeUserAdmin promotes a participant to group admin.
func (s *ChatService) MakeUserAdmin(ctx context.Context, chatID, userID, byAdminID string) error {
	chat, err := s.groupChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasAdmin(byAdminID) {
		return models.NewPermissionDeniedError("Only chat admins can promote participants")
	}
	if !chat.HasParticipant(userID) {
		return models.NewNotFoundError("Chat participant", userID)
	}
	if chat.HasAdmin(userID) {
		return models.NewAlreadyInStateError("User is already a chat admin")
	}

	if err := s.store.ArrayUnion(ctx, store.ColChats, chatID, "admins", userID); err != nil {
		return err
	}

	promoted := s.displayName(ctx, userID)
	by := s.displayName(ctx, byAdminID)
	return s.systemMessage(ctx, chatID, fmt.Sprintf("%s назначил(а) %s администратором", by, promoted))
}

// GroupChatUpdate carries the updatable group chat fields. A nil PhotoURL
// means "not provided", as opposed to clearing the photo.
type GroupChatUpdate struct {
	Name     string
	PhotoURL *string
}

// UpdateGroupChat applies only the fields that actually changed versus
// current state. When nothing changed it returns false and writes nothing,
// including no system message. When both name and photo changed the system
// message reports the name change.
func (s *ChatService) UpdateGroupChat(ctx context.Context, chatID, byAdminID string, updates GroupChatUpdate) (bool, error) {
	chat, err := s.groupChat(ctx, chatID)
	if err != nil {
		return false, err
	}
	if !chat.HasAdmin(byAdminID) {
		return false, models.NewPermissionDeniedError("Only chat admins can update the chat")
	}

	fields := map[string]any{}
	summary := ""
	if updates.Name != "" && updates.Name != chat.Name {
		fields["name"] = updates.Name
		summary = fmt.Sprintf("Название чата изменено на %q", updates.Name)
	}
	if updates.PhotoURL != nil && *updates.PhotoURL != chat.PhotoURL {
		fields["photoURL"] = *updates.PhotoURL
		if summary == "" {
			summary = "Аватар чата был обновлен"
		}
	}
	if len(fields) == 0 {
		return false, nil
	}

	if err := s.store.Update(ctx, store.ColChats, chatID, fields); err != nil {
		return false, err
	}

	by := s.displayName(ctx, byAdminID)
	if err := s.systemMessage(ctx, chatID, fmt.Sprintf("%s %s", by, summary)); err != nil {
		return false, err
	}
	return true, nil
}

// SendMessageInput is the input for sending a chat message.
type SendMessageInput struct {
	ChatID   string
	Sender   Actor
	Text     string
	FileURL  string
	FileType string
}

// SendMessage appends a message and refreshes the chat's lastMessage
// snapshot. The two writes are independent; the snapshot can drift from the
// messages collection if the second write fails. Message notifications to the
// other participants are best-effort.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if in.Text == "" && in.FileURL == "" {
		return nil, models.NewInvalidArgumentError("Message text or file is required")
	}

	var chat models.Chat
	if err := s.store.Get(ctx, store.ColChats, in.ChatID, &chat); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("Chat", in.ChatID)
		}
		return nil, err
	}
	if !chat.HasParticipant(in.Sender.ID) {
		return nil, models.NewPermissionDeniedError("You are not a participant in this chat")
	}

	msg := &models.Message{
		ChatID:    in.ChatID,
		SenderID:  in.Sender.ID,
		Text:      in.Text,
		FileURL:   in.FileURL,
		FileType:  in.FileType,
		Timestamp: s.now(),
	}
	id, err := s.store.Create(ctx, store.ColMessages, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = id

	if err := s.store.Update(ctx, store.ColChats, in.ChatID, map[string]any{
		"lastMessage": models.LastMessage{
			Text:      in.Text,
			SenderID:  in.Sender.ID,
			Timestamp: msg.Timestamp,
		},
	}); err != nil {
		return nil, err
	}

	if s.notifs != nil {
		for _, participant := range chat.Participants {
			if participant == in.Sender.ID {
				continue
			}
			if _, err := s.notifs.CreateMessage(ctx, in.Sender, participant); err != nil {
				slog.Warn("creating message notification", "chat_id", in.ChatID, "recipient", participant, "err", err)
			}
		}
	}
	return msg, nil
}

// EditMessage mutates a message's text and marks it edited. Only the sender
// may edit, and system messages are immutable.
func (s *ChatService) EditMessage(ctx context.Context, messageID, editorID, text string) error {
	if text == "" {
		return models.NewInvalidArgumentError("Message text is required")
	}

	var msg models.Message
	if err := s.store.Get(ctx, store.ColMessages, messageID, &msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.NewNotFoundError("Message", messageID)
		}
		return err
	}
	if msg.IsSystemMessage {
		return models.NewInvalidArgumentError("System messages cannot be edited")
	}
	if msg.SenderID != editorID {
		return models.NewPermissionDeniedError("You can only edit your own messages")
	}

	return s.store.Update(ctx, store.ColMessages, messageID, map[string]any{
		"text":   text,
		"edited": true,
	})
}

// ChatInfo returns a chat by id.
func (s *ChatService) ChatInfo(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	if err := s.store.Get(ctx, store.ColChats, chatID, &chat); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("Chat", chatID)
		}
		return nil, err
	}
	return &chat, nil
}

// UserChats returns the chats the user participates in, ordered by the
// lastMessage snapshot, newest first.
func (s *ChatService) UserChats(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := s.store.Query(ctx, store.ColChats, store.Query{
		Predicates: []store.Predicate{
			store.Where("participants", store.OpArrayContains, userID),
		},
		OrderField: "lastMessage.timestamp",
		OrderDesc:  true,
	}, &chats)
	return chats, err
}

// ChatMessages returns a chat's messages, oldest first, participant-gated.
func (s *ChatService) ChatMessages(ctx context.Context, chatID, userID string, limit int) ([]models.Message, error) {
	var chat models.Chat
	if err := s.store.Get(ctx, store.ColChats, chatID, &chat); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("Chat", chatID)
		}
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, models.NewPermissionDeniedError("You are not a participant in this chat")
	}

	var messages []models.Message
	err := s.store.Query(ctx, store.ColMessages, store.Query{
		Predicates: []store.Predicate{
			store.Where("chatId", store.OpEq, chatID),
		},
		OrderField: "timestamp",
		Limit:      limit,
	}, &messages)
	return messages, err
}

// groupChat loads a chat and verifies it is a group chat.
func (s *ChatService) groupChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	if err := s.store.Get(ctx, store.ColChats, chatID, &chat); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("Chat", chatID)
		}
		return nil, err
	}
	if chat.Type != models.ChatGroup {
		return nil, models.NewInvalidArgumentError("Not a group chat")
	}
	return &chat, nil
}

// systemMessage writes a synthetic message narrating a membership or
// configuration change. System messages are created already read.
func (s *ChatService) systemMessage(ctx context.Context, chatID, text string) error {
	_, err := s.store.Create(ctx, store.ColMessages, &models.Message{
		ChatID:          chatID,
		SenderID:        models.SystemSenderID,
		Text:            text,
		Read:            true,
		IsSystemMessage: true,
		Timestamp:       s.now(),
	})
	return err
}

// displayName resolves a user's display name for system messages, falling
// back to a generic name when the document is missing.
func (s *ChatService) displayName(ctx context.Context, userID string) string {
	var user models.User
	if err := s.store.Get(ctx, store.ColUsers, userID, &user); err != nil || user.DisplayName == "" {
		return fallbackDisplayName
	}
	return user.DisplayName
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
