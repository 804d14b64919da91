package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"kollektiv/internal/models"
	"kollektiv/internal/store"
)

// UserService provides user lookup, search and the follow graph.
type UserService struct {
	store  store.Store
	notifs *NotificationService
}

// NewUserService returns a new UserService.
func NewUserService(st store.Store, notifs *NotificationService) *UserService {
	return &UserService{store: st, notifs: notifs}
}

// ByID returns a user by id.
func (s *UserService) ByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.store.Get(ctx, store.ColUsers, userID, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("User", userID)
		}
		return nil, err
	}
	return &user, nil
}

// Search returns users whose display name or email contains the term. The
// store cannot express substring matches, so a capped page is fetched and
// filtered here, the same trade-off the client used to make.
func (s *UserService) Search(ctx context.Context, term string) ([]models.User, error) {
	var users []models.User
	if err := s.store.Query(ctx, store.ColUsers, store.Query{Limit: 100}, &users); err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	matched := make([]models.User, 0)
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.DisplayName), term) ||
			strings.Contains(strings.ToLower(u.Email), term) {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

// Follow adds follower to the target's followers and the target to the
// follower's following, both via atomic array union, then notifies the target
// through the deduplicated follow-notification path.
func (s *UserService) Follow(ctx context.Context, follower Actor, targetID string) error {
	if follower.ID == targetID {
		return models.NewInvalidArgumentError("You cannot follow yourself")
	}
	if _, err := s.ByID(ctx, targetID); err != nil {
		return err
	}

	if err := s.store.ArrayUnion(ctx, store.ColUsers, targetID, "followers", follower.ID); err != nil {
		return err
	}
	if err := s.store.ArrayUnion(ctx, store.ColUsers, follower.ID, "following", targetID); err != nil {
		return err
	}

	if s.notifs != nil {
		if _, err := s.notifs.CreateFollow(ctx, follower, targetID); err != nil {
			slog.Warn("creating follow notification", "target_id", targetID, "err", err)
		}
	}
	return nil
}

// Unfollow removes the follow edge in both directions.
func (s *UserService) Unfollow(ctx context.Context, followerID, targetID string) error {
	if err := s.store.ArrayRemove(ctx, store.ColUsers, targetID, "followers", followerID); err != nil {
		return err
	}
	return s.store.ArrayRemove(ctx, store.ColUsers, followerID, "following", targetID)
}

// Followers resolves the user's followers to full documents, skipping stale
// ids whose documents no longer exist.
func (s *UserService) Followers(ctx context.Context, userID string) ([]models.User, error) {
	user, err := s.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, user.Followers), nil
}

// Following resolves the users this user follows, skipping stale ids.
func (s *UserService) Following(ctx context.Context, userID string) ([]models.User, error) {
	user, err := s.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, user.Following), nil
}

func (s *UserService) resolve(ctx context.Context, ids []string) []models.User {
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		var u models.User
		if err := s.store.Get(ctx, store.ColUsers, id, &u); err != nil {
			continue
		}
		users = append(users, u)
	}
	return users
}

// UpdateProfile applies a partial profile edit. Only the caller's own
// document may be edited; block and role fields are not reachable this way.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, displayName, bio, photoURL *string) error {
	fields := map[string]any{}
	if displayName != nil {
		if *displayName == "" {
			return models.NewInvalidArgumentError("Display name cannot be empty")
		}
		fields["displayName"] = *displayName
	}
	if bio != nil {
		fields["bio"] = *bio
	}
	if photoURL != nil {
		fields["photoURL"] = *photoURL
	}
	if len(fields) == 0 {
		return nil
	}
	err := s.store.Update(ctx, store.ColUsers, userID, fields)
	if errors.Is(err, store.ErrNotFound) {
		return models.NewNotFoundError("User", userID)
	}
	return err
}
