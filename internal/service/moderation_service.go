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

// ModerationService performs administrative block/unblock/warn/delete
// workflows. Every operation appends an immutable audit record and notifies
// the subject; the writes are sequential with no joint rollback, so a crash
// mid-workflow leaves a partial state (an accepted inconsistency window).
type ModerationService struct {
	store  store.Store
	notifs *NotificationService
	now    func() time.Time
}

// NewModerationService returns a new ModerationService.
func NewModerationService(st store.Store, notifs *NotificationService) *ModerationService {
	return &ModerationService{
		store:  st,
		notifs: notifs,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// BlockUser blocks a user for durationDays days (0 = permanent). Admins are
// unblockable. Returns the id of the audit record.
func (s *ModerationService) BlockUser(ctx context.Context, userID, adminID, adminName, reason string, durationDays int) (string, error) {
	if reason == "" {
		return "", models.NewInvalidArgumentError("A block reason is required")
	}

	var user models.User
	if err := s.store.Get(ctx, store.ColUsers, userID, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", models.NewNotFoundError("User", userID)
		}
		return "", err
	}
	if user.IsAdmin {
		return "", models.NewPermissionDeniedError("Administrators cannot be blocked")
	}

	now := s.now()
	var until *time.Time
	if durationDays > 0 {
		t := now.Add(time.Duration(durationDays) * 24 * time.Hour)
		until = &t
	}

	fields := map[string]any{
		"blocked":       true,
		"blockedAt":     now,
		"blockedBy":     adminID,
		"blockedReason": reason,
		"adminName":     adminName,
	}
	if until != nil {
		fields["blockedUntil"] = *until
	} else {
		fields["blockedUntil"] = nil
	}
	if err := s.store.Update(ctx, store.ColUsers, userID, fields); err != nil {
		return "", err
	}

	actionID, err := s.store.Create(ctx, store.ColModerationActions, &models.ModerationAction{
		Type:      models.ModerationBlock,
		UserID:    userID,
		AdminID:   adminID,
		AdminName: adminName,
		Reason:    reason,
		CreatedAt: now,
		ExpiresAt: until,
	})
	if err != nil {
		return "", err
	}

	info := "Блокировка постоянная"
	if durationDays > 0 {
		info = fmt.Sprintf("Срок блокировки: %d дней", durationDays)
	}
	admin := s.adminActor(ctx, adminID, adminName)
	if _, err := s.notifs.CreateModeration(ctx, admin, userID, "Ваш аккаунт заблокирован", reason, info); err != nil {
		return "", err
	}
	return actionID, nil
}

// UnblockUser clears the block fields. Anyone may be unblocked.
func (s *ModerationService) UnblockUser(ctx context.Context, userID, adminID, adminName, reason string) (string, error) {
	var user models.User
	if err := s.store.Get(ctx, store.ColUsers, userID, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", models.NewNotFoundError("User", userID)
		}
		return "", err
	}

	if err := s.store.Update(ctx, store.ColUsers, userID, map[string]any{
		"blocked":       false,
		"blockedAt":     nil,
		"blockedBy":     nil,
		"blockedReason": nil,
		"blockedUntil":  nil,
	}); err != nil {
		return "", err
	}

	actionID, err := s.store.Create(ctx, store.ColModerationActions, &models.ModerationAction{
		Type:      models.ModerationUnblock,
		UserID:    userID,
		AdminID:   adminID,
		AdminName: adminName,
		Reason:    reason,
		CreatedAt: s.now(),
	})
	if err != nil {
		return "", err
	}

	admin := s.adminActor(ctx, adminID, adminName)
	if _, err := s.notifs.CreateModeration(ctx, admin, userID, "Ваш аккаунт разблокирован", reason, ""); err != nil {
		return "", err
	}
	return actionID, nil
}

// WarnUser increments the user's warnings counter and records the warning.
// Admins cannot be warned.
func (s *ModerationService) WarnUser(ctx context.Context, userID, adminID, adminName, reason string) (string, error) {
	if reason == "" {
		return "", models.NewInvalidArgumentError("A warning reason is required")
	}

	var user models.User
	if err := s.store.Get(ctx, store.ColUsers, userID, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", models.NewNotFoundError("User", userID)
		}
		return "", err
	}
	if user.IsAdmin {
		return "", models.NewPermissionDeniedError("Administrators cannot be warned")
	}

	now := s.now()
	if err := s.store.Update(ctx, store.ColUsers, userID, map[string]any{
		"warnings":          user.Warnings + 1,
		"lastWarningAt":     now,
		"lastWarningBy":     adminID,
		"lastWarningReason": reason,
	}); err != nil {
		return "", err
	}

	actionID, err := s.store.Create(ctx, store.ColModerationActions, &models.ModerationAction{
		Type:      models.ModerationWarning,
		UserID:    userID,
		AdminID:   adminID,
		AdminName: adminName,
		Reason:    reason,
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}

	admin := s.adminActor(ctx, adminID, adminName)
	if _, err := s.notifs.CreateModeration(ctx, admin, userID, "Вы получили предупреждение", reason,
		"Повторные нарушения могут привести к блокировке аккаунта"); err != nil {
		return "", err
	}
	return actionID, nil
}

// DeletePostWithReason removes a post administratively. The audit record is
// written first with a full snapshot of the post, the author is notified with
// a truncated preview, and only then is the post deleted. A crash between the
// last two steps leaves the post alive but its author already notified; the
// ordering favors never destroying content without an audit trail.
func (s *ModerationService) DeletePostWithReason(ctx context.Context, postID, adminID, adminName, reason string) (string, error) {
	if reason == "" {
		return "", models.NewInvalidArgumentError("A deletion reason is required")
	}

	var post models.Post
	if err := s.store.Get(ctx, store.ColPosts, postID, &post); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", models.NewNotFoundError("Post", postID)
		}
		return "", err
	}

	var author models.User
	if err := s.store.Get(ctx, store.ColUsers, post.AuthorID, &author); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", models.NewNotFoundError("Post author", post.AuthorID)
		}
		return "", err
	}

	preview := "содержимое недоступно"
	if post.Content != "" {
		preview = truncatePreview(post.Content)
	}

	actionID, err := s.store.Create(ctx, store.ColModerationActions, &models.ModerationAction{
		Type:            models.ModerationPostDeletion,
		UserID:          post.AuthorID,
		AdminID:         adminID,
		AdminName:       adminName,
		Reason:          reason,
		ContentID:       postID,
		ContentSnapshot: post,
		CreatedAt:       s.now(),
	})
	if err != nil {
		return "", err
	}

	admin := s.adminActor(ctx, adminID, adminName)
	info := fmt.Sprintf("Текст поста: %q. Повторные нарушения могут привести к блокировке аккаунта.", preview)
	if _, err := s.notifs.CreateModeration(ctx, admin, post.AuthorID, "Ваш пост был удален администратором", reason, info); err != nil {
		return "", err
	}

	if err := s.store.Delete(ctx, store.ColPosts, postID); err != nil {
		return "", err
	}
	return actionID, nil
}

// DeleteCommentWithReason removes a comment administratively, with the same
// audit-notify-delete ordering as DeletePostWithReason.
func (s *ModerationService) DeleteCommentWithReason(ctx context.Context, commentID, adminID, adminName, reason string) (string, error) {
	if reason == "" {
		return "", models.NewInvalidArgumentError("A deletion reason is required")
	}

	var comment models.Comment
	if err := s.store.Get(ctx, store.ColComments, commentID, &comment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", models.NewNotFoundError("Comment", commentID)
		}
		return "", err
	}

	var author models.User
	if err := s.store.Get(ctx, store.ColUsers, comment.AuthorID, &author); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", models.NewNotFoundError("Comment author", comment.AuthorID)
		}
		return "", err
	}

	preview := "содержимое недоступно"
	if comment.Text != "" {
		preview = truncatePreview(comment.Text)
	}

	actionID, err := s.store.Create(ctx, store.ColModerationActions, &models.ModerationAction{
		Type:            models.ModerationCommentDeletion,
		UserID:          comment.AuthorID,
		AdminID:         adminID,
		AdminName:       adminName,
		Reason:          reason,
		ContentID:       commentID,
		ContentSnapshot: comment,
		CreatedAt:       s.now(),
	})
	if err != nil {
		return "", err
	}

	admin := s.adminActor(ctx, adminID, adminName)
	info := fmt.Sprintf("Текст комментария: %q. Повторные нарушения могут привести к блокировке аккаунта.", preview)
	if _, err := s.notifs.CreateModeration(ctx, admin, comment.AuthorID, "Ваш комментарий был удален администратором", reason, info); err != nil {
		return "", err
	}

	if err := s.store.Delete(ctx, store.ColComments, commentID); err != nil {
		return "", err
	}
	return actionID, nil
}

// UserHistory returns all moderation actions recorded against a user, newest
// first.
func (s *ModerationService) UserHistory(ctx context.Context, userID string) ([]models.ModerationAction, error) {
	var actions []models.ModerationAction
	err := s.store.Query(ctx, store.ColModerationActions, store.Query{
		Predicates: []store.Predicate{
			store.Where("userId", store.OpEq, userID),
		},
		OrderField: "createdAt",
		OrderDesc:  true,
	}, &actions)
	return actions, err
}

// adminActor resolves the admin's photo for the notification sender snapshot.
// A missing admin document is tolerated, never an error.
func (s *ModerationService) adminActor(ctx context.Context, adminID, adminName string) Actor {
	actor := Actor{ID: adminID, Name: adminName}
	var admin models.User
	if err := s.store.Get(ctx, store.ColUsers, adminID, &admin); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("loading admin profile for notification", "admin_id", adminID, "err", err)
		}
		return actor
	}
	actor.PhotoURL = admin.PhotoURL
	return actor
}
