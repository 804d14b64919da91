package server

import (
	"time"

	"kollektiv/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost inserts a post authored by the authenticated user.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Content   string   `json:"content"`
		Tags      []string `json:"tags"`
		FileURLs  []string `json:"fileUrls"`
		FileTypes []string `json:"fileTypes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	actor, err := s.currentActor(c)
	if err != nil {
		return serviceError(c, err)
	}

	post, err := s.posts.Create(c.UserContext(), service.CreatePostInput{
		Author:    actor,
		Content:   req.Content,
		Tags:      req.Tags,
		FileURLs:  req.FileURLs,
		FileTypes: req.FileTypes,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// Feed returns the newest posts before the cursor timestamp. The cursor is
// the createdAt of the last post from the previous page, RFC 3339.
func (s *Server) Feed(c *fiber.Ctx) error {
	var cursor time.Time
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return badRequest(c, "Invalid cursor")
		}
		cursor = parsed
	}

	posts, err := s.posts.Feed(c.UserContext(), cursor, parseLimit(c, 20, 100))
	if err != nil {
		return serviceError(c, err)
	}

	next := ""
	if len(posts) > 0 {
		next = posts[len(posts)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	return c.JSON(fiber.Map{"posts": posts, "nextCursor": next})
}

// GetPost returns a post by id.
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.posts.ByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(post)
}

// SearchPostsByTag finds posts carrying the given tag, case-insensitive.
func (s *Server) SearchPostsByTag(c *fiber.Ctx) error {
	tag := c.Query("tag")
	if tag == "" {
		return badRequest(c, "Query parameter tag is required")
	}
	posts, err := s.posts.SearchByTag(c.UserContext(), tag)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// FilterPosts returns a filtered listing: author, date bounds, popularity
// ordering and attachment presence.
func (s *Server) FilterPosts(c *fiber.Ctx) error {
	filters := service.PostFilters{
		AuthorID:        c.Query("authorId"),
		Popular:         c.QueryBool("popular"),
		WithAttachments: c.QueryBool("withAttachments"),
		Limit:           parseLimit(c, 20, 100),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return badRequest(c, "Invalid from timestamp")
		}
		filters.DateFrom = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return badRequest(c, "Invalid to timestamp")
		}
		filters.DateTo = &t
	}

	posts, err := s.posts.Filter(c.UserContext(), filters)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// ToggleLike flips the authenticated user's like on a post. Liking notifies
// the author through the dedup-refresh path.
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	actor, err := s.currentActor(c)
	if err != nil {
		return serviceError(c, err)
	}

	postID := c.Params("id")
	liked, err := s.posts.ToggleLike(c.UserContext(), postID, actor)
	if err != nil {
		return serviceError(c, err)
	}

	if liked {
		if post, err := s.posts.ByID(c.UserContext(), postID); err == nil {
			s.publishRealtimeEvent(c, post.AuthorID, "like", fiber.Map{
				"senderId": actor.ID,
				"postId":   postID,
			})
		}
	}
	return c.JSON(fiber.Map{"liked": liked})
}

// AddComment appends a comment and bumps the post's comment counter.
func (s *Server) AddComment(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	actor, err := s.currentActor(c)
	if err != nil {
		return serviceError(c, err)
	}

	postID := c.Params("id")
	comment, err := s.posts.AddComment(c.UserContext(), postID, actor, req.Text)
	if err != nil {
		return serviceError(c, err)
	}

	if post, err := s.posts.ByID(c.UserContext(), postID); err == nil {
		s.publishRealtimeEvent(c, post.AuthorID, "comment", fiber.Map{
			"senderId":  actor.ID,
			"postId":    postID,
			"commentId": comment.ID,
		})
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// PostComments lists a post's comments, oldest first.
func (s *Server) PostComments(c *fiber.Ctx) error {
	comments, err := s.posts.Comments(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

// DeletePost lets an author remove their own post. Moderation deletes go
// through the admin moderation endpoint instead.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.posts.DeleteOwn(c.UserContext(), c.Params("id"), currentUserID(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}
