package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kollektiv/internal/email"
	"kollektiv/internal/models"
	"kollektiv/internal/store"
)

// AdminService implements the account approval workflow and platform-wide
// admin views.
type AdminService struct {
	store  store.Store
	notifs *NotificationService
	mailer email.Sender

	// removeAuthAccount deletes the user from the auth provider. Optional;
	// failures are logged and never block the document-side cleanup.
	removeAuthAccount func(ctx context.Context, userID string) error
}

// NewAdminService returns a new AdminService. mailer may be nil.
func NewAdminService(st store.Store, notifs *NotificationService, mailer email.Sender,
	removeAuthAccount func(ctx context.Context, userID string) error) *AdminService {
	if mailer == nil {
		mailer = email.Noop{}
	}
	return &AdminService{
		store:             st,
		notifs:            notifs,
		mailer:            mailer,
		removeAuthAccount: removeAuthAccount,
	}
}

// AllUsers returns every user document.
func (s *AdminService) AllUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.store.Query(ctx, store.ColUsers, store.Query{}, &users)
	return users, err
}

// PendingUsers returns unapproved registrations, newest first.
func (s *AdminService) PendingUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.store.Query(ctx, store.ColUsers, store.Query{
		Predicates: []store.Predicate{
			store.Where("approved", store.OpEq, false),
		},
		OrderField: "createdAt",
		OrderDesc:  true,
	}, &users)
	return users, err
}

// ApproveUser marks a registration approved, notifies the user in-app and
// sends a best-effort email. Email failure never fails the approval.
func (s *AdminService) ApproveUser(ctx context.Context, userID string) error {
	var user models.User
	if err := s.store.Get(ctx, store.ColUsers, userID, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.NewNotFoundError("User", userID)
		}
		return err
	}

	if err := s.store.Update(ctx, store.ColUsers, userID, map[string]any{"approved": true}); err != nil {
		return err
	}

	if _, err := s.notifs.CreateApproval(ctx, userID); err != nil {
		slog.Warn("creating approval notification", "user_id", userID, "err", err)
	}

	if user.Email != "" {
		subject := "Ваша учетная запись подтверждена"
		body := "Мы рады сообщить, что администратор подтвердил вашу учетную запись. " +
			"Теперь вы можете полноценно использовать нашу корпоративную социальную сеть. " +
			"Вы можете войти в систему, используя свой email и пароль."
		if !s.mailer.Send(ctx, user.Email, subject, body, "Администратор") {
			slog.Warn("approval email not sent", "user_id", userID, "email", user.Email)
		}
	}
	return nil
}

// RejectUser removes a pending registration: auth account first
// (best-effort), then the user document.
func (s *AdminService) RejectUser(ctx context.Context, userID string) error {
	if s.removeAuthAccount != nil {
		if err := s.removeAuthAccount(ctx, userID); err != nil {
			slog.Warn("removing auth account", "user_id", userID, "err", err)
		}
	}
	return s.store.Delete(ctx, store.ColUsers, userID)
}

// DeleteUser removes a user and everything tied to them: their posts and
// comments, notifications addressed to them, chats they participate in, and
// finally the user document. The fan-out deletes are independent writes with
// no joint rollback; failure granularity is the whole batch.
func (s *AdminService) DeleteUser(ctx context.Context, userID string) (string, error) {
	var user models.User
	if err := s.store.Get(ctx, store.ColUsers, userID, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", models.NewNotFoundError("User", userID)
		}
		return "", err
	}

	if s.removeAuthAccount != nil {
		if err := s.removeAuthAccount(ctx, userID); err != nil {
			slog.Warn("removing auth account", "user_id", userID, "err", err)
		}
	}

	var posts []models.Post
	if err := s.store.Query(ctx, store.ColPosts, store.Query{
		Predicates: []store.Predicate{store.Where("authorId", store.OpEq, userID)},
	}, &posts); err != nil {
		return "", err
	}
	for _, p := range posts {
		if err := s.store.Delete(ctx, store.ColPosts, p.ID); err != nil {
			return "", err
		}
	}

	var comments []models.Comment
	if err := s.store.Query(ctx, store.ColComments, store.Query{
		Predicates: []store.Predicate{store.Where("authorId", store.OpEq, userID)},
	}, &comments); err != nil {
		return "", err
	}
	for _, c := range comments {
		if err := s.store.Delete(ctx, store.ColComments, c.ID); err != nil {
			return "", err
		}
	}

	if err := s.notifs.DeleteAll(ctx, userID); err != nil {
		return "", err
	}

	var chats []models.Chat
	if err := s.store.Query(ctx, store.ColChats, store.Query{
		Predicates: []store.Predicate{store.Where("participants", store.OpArrayContains, userID)},
	}, &chats); err != nil {
		return "", err
	}
	for _, c := range chats {
		if err := s.store.Delete(ctx, store.ColChats, c.ID); err != nil {
			return "", err
		}
	}

	if err := s.store.Delete(ctx, store.ColUsers, userID); err != nil {
		return "", err
	}

	name := user.DisplayName
	if name == "" {
		name = user.Email
	}
	if name == "" {
		name = userID
	}
	return fmt.Sprintf("Пользователь %s успешно удален", name), nil
}

// SetAdminRole grants or revokes the platform admin role.
func (s *AdminService) SetAdminRole(ctx context.Context, userID string, isAdmin bool) error {
	err := s.store.Update(ctx, store.ColUsers, userID, map[string]any{"isAdmin": isAdmin})
	if errors.Is(err, store.ErrNotFound) {
		return models.NewNotFoundError("User", userID)
	}
	return err
}

// PlatformStats aggregates collection counts for the admin dashboard.
type PlatformStats struct {
	TotalUsers    int64 `json:"totalUsers"`
	PendingUsers  int64 `json:"pendingUsers"`
	TotalAdmins   int64 `json:"totalAdmins"`
	TotalPosts    int64 `json:"totalPosts"`
	TotalMessages int64 `json:"totalMessages"`
}

// Stats returns platform-wide counts.
func (s *AdminService) Stats(ctx context.Context) (*PlatformStats, error) {
	stats := &PlatformStats{}
	var err error
	if stats.TotalUsers, err = s.store.Count(ctx, store.ColUsers); err != nil {
		return nil, err
	}
	if stats.PendingUsers, err = s.store.Count(ctx, store.ColUsers,
		store.Where("approved", store.OpEq, false)); err != nil {
		return nil, err
	}
	if stats.TotalAdmins, err = s.store.Count(ctx, store.ColUsers,
		store.Where("isAdmin", store.OpEq, true)); err != nil {
		return nil, err
	}
	if stats.TotalPosts, err = s.store.Count(ctx, store.ColPosts); err != nil {
		return nil, err
	}
	if stats.TotalMessages, err = s.store.Count(ctx, store.ColMessages); err != nil {
		return nil, err
	}
	return stats, nil
}
