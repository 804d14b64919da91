package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"kollektiv/internal/models"
	"kollektiv/internal/store"
)

// PostService provides post reads, like toggling and commenting.
type PostService struct {
	store  store.Store
	notifs *NotificationService
	now    func() time.Time
}

// NewPostService returns a new PostService.
func NewPostService(st store.Store, notifs *NotificationService) *PostService {
	return &PostService{
		store:  st,
		notifs: notifs,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ByID returns a post by id.
func (s *PostService) ByID(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	if err := s.store.Get(ctx, store.ColPosts, postID, &post); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, err
	}
	return &post, nil
}

// CreatePostInput is the input for creating a post. Author fields are
// snapshotted onto the document at write time.
type CreatePostInput struct {
	Author    Actor
	Content   string
	Tags      []string
	FileURLs  []string
	FileTypes []string
}

// Create inserts a post authored by the given actor. Tags are lowercased so
// tag search stays case-insensitive.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.Content == "" && len(in.FileURLs) == 0 {
		return nil, models.NewInvalidArgumentError("Post content or attachments required")
	}
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags = append(tags, t)
		}
	}
	post := &models.Post{
		AuthorID:       in.Author.ID,
		AuthorName:     in.Author.Name,
		AuthorPhotoURL: in.Author.PhotoURL,
		Content:        in.Content,
		Tags:           tags,
		FileURLs:       in.FileURLs,
		FileTypes:      in.FileTypes,
		CreatedAt:      s.now(),
	}
	id, err := s.store.Create(ctx, store.ColPosts, post)
	if err != nil {
		return nil, err
	}
	post.ID = id
	return post, nil
}

// Feed returns a page of posts, newest first. A zero cursor starts at the
// top; otherwise only posts older than the cursor are returned.
func (s *PostService) Feed(ctx context.Context, cursor time.Time, pageSize int) ([]models.Post, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	q := store.Query{
		OrderField: "createdAt",
		OrderDesc:  true,
		Limit:      pageSize,
	}
	if !cursor.IsZero() {
		q.Predicates = append(q.Predicates, store.Where("createdAt", store.OpLt, cursor))
	}
	var posts []models.Post
	err := s.store.Query(ctx, store.ColPosts, q, &posts)
	return posts, err
}

// SearchByTag returns the newest posts carrying the tag.
func (s *PostService) SearchByTag(ctx context.Context, tag string) ([]models.Post, error) {
	var posts []models.Post
	err := s.store.Query(ctx, store.ColPosts, store.Query{
		Predicates: []store.Predicate{
			store.Where("tags", store.OpArrayContains, strings.ToLower(tag)),
		},
		OrderField: "createdAt",
		OrderDesc:  true,
		Limit:      20,
	}, &posts)
	return posts, err
}

// PostFilters narrows a filtered listing. Popular re-sorts the page by like
// count; WithAttachments drops posts without files after the query, the way
// the store cannot express it.
type PostFilters struct {
	DateFrom        *time.Time
	DateTo          *time.Time
	AuthorID        string
	Popular         bool
	WithAttachments bool
	Limit           int
}

// Filter returns posts matching the filters, newest first (or most liked
// first when Popular is set).
func (s *PostService) Filter(ctx context.Context, f PostFilters) ([]models.Post, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	q := store.Query{
		OrderField: "createdAt",
		OrderDesc:  true,
		Limit:      limit,
	}
	if f.DateFrom != nil {
		q.Predicates = append(q.Predicates, store.Where("createdAt", store.OpGte, *f.DateFrom))
	}
	if f.DateTo != nil {
		q.Predicates = append(q.Predicates, store.Where("createdAt", store.OpLte, *f.DateTo))
	}
	if f.AuthorID != "" {
		q.Predicates = append(q.Predicates, store.Where("authorId", store.OpEq, f.AuthorID))
	}

	var posts []models.Post
	if err := s.store.Query(ctx, store.ColPosts, q, &posts); err != nil {
		return nil, err
	}

	if f.WithAttachments {
		kept := posts[:0]
		for _, p := range posts {
			if p.HasAttachments() {
				kept = append(kept, p)
			}
		}
		posts = kept
	}
	if f.Popular {
		sortByLikes(posts)
	}
	return posts, nil
}

func sortByLikes(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return len(posts[i].Likes) > len(posts[j].Likes)
	})
}

// ToggleLike flips the actor's membership in the post's likes array via
// atomic array mutation and reports the resulting state. A like (not an
// unlike) notifies the author through the deduplicated like-notification
// path.
func (s *PostService) ToggleLike(ctx context.Context, postID string, actor Actor) (liked bool, err error) {
	var post models.Post
	if err := s.store.Get(ctx, store.ColPosts, postID, &post); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, models.NewNotFoundError("Post", postID)
		}
		return false, err
	}

	for _, id := range post.Likes {
		if id == actor.ID {
			return false, s.store.ArrayRemove(ctx, store.ColPosts, postID, "likes", actor.ID)
		}
	}

	if err := s.store.ArrayUnion(ctx, store.ColPosts, postID, "likes", actor.ID); err != nil {
		return false, err
	}
	if s.notifs != nil {
		if _, err := s.notifs.CreateLike(ctx, actor, post.AuthorID, postID); err != nil {
			slog.Warn("creating like notification", "post_id", postID, "err", err)
		}
	}
	return true, nil
}

// AddComment appends a comment, bumps the post's comment counter and notifies
// the author. The counter is a read-modify-write, not an atomic increment:
// last-writer-wins under contention, as with every non-array field.
func (s *PostService) AddComment(ctx context.Context, postID string, author Actor, text string) (*models.Comment, error) {
	if text == "" {
		return nil, models.NewInvalidArgumentError("Comment text is required")
	}

	var post models.Post
	if err := s.store.Get(ctx, store.ColPosts, postID, &post); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, err
	}

	comment := &models.Comment{
		PostID:         postID,
		AuthorID:       author.ID,
		AuthorName:     author.Name,
		AuthorPhotoURL: author.PhotoURL,
		Text:           text,
		CreatedAt:      s.now(),
	}
	id, err := s.store.Create(ctx, store.ColComments, comment)
	if err != nil {
		return nil, err
	}
	comment.ID = id

	if err := s.store.Update(ctx, store.ColPosts, postID, map[string]any{
		"commentsCount": post.CommentsCount + 1,
	}); err != nil {
		return nil, err
	}

	if s.notifs != nil {
		if _, err := s.notifs.CreateComment(ctx, author, post.AuthorID, postID, id, text); err != nil {
			slog.Warn("creating comment notification", "post_id", postID, "err", err)
		}
	}
	return comment, nil
}

// Comments returns a post's comments, oldest first.
func (s *PostService) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.store.Query(ctx, store.ColComments, store.Query{
		Predicates: []store.Predicate{
			store.Where("postId", store.OpEq, postID),
		},
		OrderField: "createdAt",
	}, &comments)
	return comments, err
}

// DeleteOwn removes a post if the caller authored it. Admin deletions with an
// audit trail go through the moderation workflow instead.
func (s *PostService) DeleteOwn(ctx context.Context, postID, userID string) error {
	var post models.Post
	if err := s.store.Get(ctx, store.ColPosts, postID, &post); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.NewNotFoundError("Post", postID)
		}
		return err
	}
	if post.AuthorID != userID {
		return models.NewPermissionDeniedError("You can only delete your own posts")
	}
	return s.store.Delete(ctx, store.ColPosts, postID)
}
