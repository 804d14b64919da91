// Package service provides application business logic (notifications,
// moderation, chats, posts, users, admin).
package service

import (
	"context"
	"time"

	"kollektiv/internal/models"
	"kollektiv/internal/store"
)

// Actor identifies who triggered a notifiable event. Name and PhotoURL are
// denormalized into the notification as a snapshot.
type Actor struct {
	ID       string
	Name     string
	PhotoURL string
}

// NotificationService creates, dedupes, reads and deletes notification
// documents for a recipient.
type NotificationService struct {
	store store.Store
	now   func() time.Time
}

// NewNotificationService returns a new NotificationService.
func NewNotificationService(st store.Store) *NotificationService {
	return &NotificationService{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// NotificationInput is the input for creating a notification document.
type NotificationInput struct {
	Type           models.NotificationType
	Sender         Actor
	RecipientID    string
	PostID         string
	CommentID      string
	Message        string
	Title          string
	Reason         string
	AdditionalInfo string
}

// Create inserts a notification with read=false and a server-assigned
// timestamp. Self-notifications are silently dropped (empty id, nil error)
// unless the type is moderation: an admin may notify a user about themselves
// administratively.
func (s *NotificationService) Create(ctx context.Context, in NotificationInput) (string, error) {
	if in.Sender.ID == in.RecipientID && in.Type != models.NotificationModeration {
		return "", nil
	}
	return s.store.Create(ctx, store.ColNotifications, &models.Notification{
		Type:           in.Type,
		SenderID:       in.Sender.ID,
		SenderName:     in.Sender.Name,
		SenderPhotoURL: in.Sender.PhotoURL,
		RecipientID:    in.RecipientID,
		PostID:         in.PostID,
		CommentID:      in.CommentID,
		Message:        in.Message,
		Title:          in.Title,
		Reason:         in.Reason,
		AdditionalInfo: in.AdditionalInfo,
		Read:           false,
		CreatedAt:      s.now(),
	})
}

// CreateLike records a like notification. Repeated like/unlike cycles by the
// same actor on the same post refresh the existing notification (timestamp
// bumped, read cleared) instead of inserting a new row.
func (s *NotificationService) CreateLike(ctx context.Context, sender Actor, recipientID, postID string) (string, error) {
	existing, err := s.latestMatching(ctx, []store.Predicate{
		store.Where("type", store.OpEq, string(models.NotificationLike)),
		store.Where("senderId", store.OpEq, sender.ID),
		store.Where("recipientId", store.OpEq, recipientID),
		store.Where("postId", store.OpEq, postID),
	})
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, s.store.Update(ctx, store.ColNotifications, existing, map[string]any{
			"createdAt": s.now(),
			"read":      false,
		})
	}
	return s.Create(ctx, NotificationInput{
		Type:        models.NotificationLike,
		Sender:      sender,
		RecipientID: recipientID,
		PostID:      postID,
	})
}

// CreateFollow records a follow notification, deduplicated per (sender,
// recipient) pair the same way CreateLike is.
func (s *NotificationService) CreateFollow(ctx context.Context, sender Actor, recipientID string) (string, error) {
	existing, err := s.latestMatching(ctx, []store.Predicate{
		store.Where("type", store.OpEq, string(models.NotificationFollow)),
		store.Where("senderId", store.OpEq, sender.ID),
		store.Where("recipientId", store.OpEq, recipientID),
	})
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, s.store.Update(ctx, store.ColNotifications, existing, map[string]any{
			"createdAt": s.now(),
			"read":      false,
		})
	}
	return s.Create(ctx, NotificationInput{
		Type:        models.NotificationFollow,
		Sender:      sender,
		RecipientID: recipientID,
	})
}

// CreateMessage records a new-message notification. While an unread one from
// the same sender exists only its timestamp is bumped, so a recipient holds
// at most one outstanding "new message from X" entry until they read it.
func (s *NotificationService) CreateMessage(ctx context.Context, sender Actor, recipientID string) (string, error) {
	existing, err := s.latestMatching(ctx, []store.Predicate{
		store.Where("type", store.OpEq, string(models.NotificationMessage)),
		store.Where("senderId", store.OpEq, sender.ID),
		store.Where("recipientId", store.OpEq, recipientID),
		store.Where("read", store.OpEq, false),
	})
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, s.store.Update(ctx, store.ColNotifications, existing, map[string]any{
			"createdAt": s.now(),
		})
	}
	return s.Create(ctx, NotificationInput{
		Type:        models.NotificationMessage,
		Sender:      sender,
		RecipientID: recipientID,
		Message:     "Новое сообщение",
	})
}

// CreateComment records a comment notification. Every comment is a distinct
// notifiable event, so there is no dedup; the comment text is truncated to a
// 50-character preview.
func (s *NotificationService) CreateComment(ctx context.Context, sender Actor, recipientID, postID, commentID, text string) (string, error) {
	return s.Create(ctx, NotificationInput{
		Type:        models.NotificationComment,
		Sender:      sender,
		RecipientID: recipientID,
		PostID:      postID,
		CommentID:   commentID,
		Message:     truncatePreview(text),
	})
}

// CreateModeration records an administrative notification addressed to the
// subject of a moderation action.
func (s *NotificationService) CreateModeration(ctx context.Context, admin Actor, recipientID, title, reason, additionalInfo string) (string, error) {
	return s.Create(ctx, NotificationInput{
		Type:           models.NotificationModeration,
		Sender:         admin,
		RecipientID:    recipientID,
		Title:          title,
		Reason:         reason,
		AdditionalInfo: additionalInfo,
	})
}

// CreateApproval notifies a user that an admin approved their account.
func (s *NotificationService) CreateApproval(ctx context.Context, recipientID string) (string, error) {
	return s.Create(ctx, NotificationInput{
		Type:        models.NotificationSystem,
		Sender:      Actor{ID: models.SystemSenderID, Name: "Система"},
		RecipientID: recipientID,
		Message:     "Ваш аккаунт подтвержден администратором. Добро пожаловать в корпоративную сеть!",
	})
}

// latestMatching returns the id of the most recent notification matching the
// predicates, or "" when none exists.
func (s *NotificationService) latestMatching(ctx context.Context, preds []store.Predicate) (string, error) {
	var found []models.Notification
	err := s.store.Query(ctx, store.ColNotifications, store.Query{
		Predicates: preds,
		OrderField: "createdAt",
		OrderDesc:  true,
		Limit:      1,
	}, &found)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", nil
	}
	return found[0].ID, nil
}

// ListForRecipient returns a user's notifications, newest first.
func (s *NotificationService) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	var notifs []models.Notification
	err := s.store.Query(ctx, store.ColNotifications, store.Query{
		Predicates: []store.Predicate{
			store.Where("recipientId", store.OpEq, recipientID),
		},
		OrderField: "createdAt",
		OrderDesc:  true,
		Limit:      limit,
	}, &notifs)
	return notifs, err
}

// MarkRead marks a single notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	return s.store.Update(ctx, store.ColNotifications, id, map[string]any{"read": true})
}

// MarkAllRead marks every unread notification of the recipient as read.
// The fan-out is not atomic: a failure mid-way leaves a partially updated
// set, reported only at whole-batch granularity.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) error {
	var unread []models.Notification
	err := s.store.Query(ctx, store.ColNotifications, store.Query{
		Predicates: []store.Predicate{
			store.Where("recipientId", store.OpEq, recipientID),
			store.Where("read", store.OpEq, false),
		},
	}, &unread)
	if err != nil {
		return err
	}
	for _, n := range unread {
		if err := s.store.Update(ctx, store.ColNotifications, n.ID, map[string]any{"read": true}); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a single notification.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, store.ColNotifications, id)
}

// DeleteAll removes every notification of the recipient. Same whole-batch
// failure granularity as MarkAllRead.
func (s *NotificationService) DeleteAll(ctx context.Context, recipientID string) error {
	var notifs []models.Notification
	err := s.store.Query(ctx, store.ColNotifications, store.Query{
		Predicates: []store.Predicate{
			store.Where("recipientId", store.OpEq, recipientID),
		},
	}, &notifs)
	if err != nil {
		return err
	}
	for _, n := range notifs {
		if err := s.store.Delete(ctx, store.ColNotifications, n.ID); err != nil {
			return err
		}
	}
	return nil
}

const previewLimit = 50

// truncatePreview caps user content at 50 characters for notification
// previews, rune-aware so Cyrillic text does not get split mid-character.
func truncatePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
