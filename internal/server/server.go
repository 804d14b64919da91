// Package server wires the HTTP and WebSocket surface onto the service layer.
package server

import (
	"context"
	"log/slog"
	"time"

	"kollektiv/internal/auth"
	"kollektiv/internal/blob"
	"kollektiv/internal/config"
	"kollektiv/internal/email"
	"kollektiv/internal/middleware"
	"kollektiv/internal/notifications"
	"kollektiv/internal/service"
	"kollektiv/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

// wireableHub is a websocket hub that can be attached to the redis notifier
// and shut down gracefully.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds the application dependencies shared by all handlers.
type Server struct {
	cfg   *config.Config
	store store.Store
	redis *redis.Client
	auth  *auth.Provider

	users      *service.UserService
	posts      *service.PostService
	chats      *service.ChatService
	notifs     *service.NotificationService
	moderation *service.ModerationService
	admin      *service.AdminService

	mailer  email.Sender
	uploads blob.Storage

	notifier *notifications.Notifier
	hub      *notifications.Hub
	chatHub  *notifications.ChatHub
}

// NewServer builds a Server from its external dependencies. rdb may be nil;
// real-time fan-out degrades to a no-op.
func NewServer(cfg *config.Config, st store.Store, rdb *redis.Client) *Server {
	var mailer email.Sender
	if cfg.SMTPAddr != "" {
		mailer = email.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	} else {
		mailer = email.Noop{}
	}

	notifs := service.NewNotificationService(st)

	return &Server{
		cfg:        cfg,
		store:      st,
		redis:      rdb,
		auth:       auth.NewProvider(cfg.JWTSecret, 24*time.Hour),
		users:      service.NewUserService(st, notifs),
		posts:      service.NewPostService(st, notifs),
		chats:      service.NewChatService(st, notifs),
		notifs:     notifs,
		moderation: service.NewModerationService(st, notifs),
		admin:      service.NewAdminService(st, notifs, mailer, nil),
		mailer:     mailer,
		uploads:    blob.NewDisk(cfg.UploadDir, cfg.UploadBaseURL),
		notifier:   notifications.NewNotifier(rdb),
		hub:        notifications.NewHub(),
		chatHub:    notifications.NewChatHub(),
	}
}

// SetupMiddleware registers the global middleware chain. CORS must run before
// the rate limiter so preflight requests are never throttled.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.StructuredLogger())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: s.cfg.AllowedOrigins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later",
			})
		},
	}))
}

// SetupRoutes registers every route. Specific routes are registered before
// parameterized ones so fiber matches them first.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.LivenessCheck)

	api := app.Group("/api")
	api.Get("/health/live", s.LivenessCheck)
	api.Get("/health/ready", s.ReadinessCheck)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", s.Register)
	authGroup.Post("/login", s.Login)
	authGroup.Post("/password-reset/request", s.RequestPasswordReset)
	authGroup.Post("/password-reset/confirm", s.ConfirmPasswordReset)

	protected := api.Group("", middleware.AuthRequired(s.auth))

	protected.Get("/me", s.Me)
	protected.Put("/me", s.UpdateProfile)

	users := protected.Group("/users")
	users.Get("/search", s.SearchUsers)
	users.Get("/:id/followers", s.Followers)
	users.Get("/:id/following", s.Following)
	users.Post("/:id/follow", s.Follow)
	users.Delete("/:id/follow", s.Unfollow)
	users.Get("/:id", s.GetUser)

	posts := protected.Group("/posts")
	posts.Get("/search", s.SearchPostsByTag)
	posts.Get("/filter", s.FilterPosts)
	posts.Post("/", s.CreatePost)
	posts.Get("/", s.Feed)
	posts.Post("/:id/like", s.ToggleLike)
	posts.Get("/:id/comments", s.PostComments)
	posts.Post("/:id/comments", s.AddComment)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", s.DeletePost)

	notifs := protected.Group("/notifications")
	notifs.Put("/read-all", s.MarkAllNotificationsRead)
	notifs.Get("/", s.ListNotifications)
	notifs.Delete("/", s.DeleteAllNotifications)
	notifs.Put("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/:id", s.DeleteNotification)

	chats := protected.Group("/chats")
	chats.Post("/private", s.CreatePrivateChat)
	chats.Post("/group", s.CreateGroupChat)
	chats.Get("/", s.UserChats)
	chats.Get("/:id/messages", s.ChatMessages)
	chats.Post("/:id/messages", s.SendMessage)
	chats.Post("/:id/participants", s.AddChatParticipant)
	chats.Delete("/:id/participants/:userId", s.RemoveChatParticipant)
	chats.Post("/:id/leave", s.LeaveChat)
	chats.Post("/:id/admins/:userId", s.MakeChatAdmin)
	chats.Put("/:id", s.UpdateGroupChat)
	chats.Get("/:id", s.ChatInfo)

	protected.Put("/messages/:id", s.EditMessage)

	protected.Post("/uploads", s.UploadFile)

	ws := api.Group("/ws", middleware.WebSocketAuthRequired(s.auth), upgradeRequired)
	ws.Get("/notifications", s.WebSocketNotifications())
	ws.Get("/chat", s.WebSocketChat())

	admin := protected.Group("/admin", middleware.AdminRequired)
	admin.Get("/users/pending", s.PendingUsers)
	admin.Get("/users", s.AllUsers)
	admin.Post("/users/:id/approve", s.ApproveUser)
	admin.Post("/users/:id/reject", s.RejectUser)
	admin.Put("/users/:id/role", s.SetAdminRole)
	admin.Delete("/users/:id", s.DeleteUser)
	admin.Get("/stats", s.PlatformStats)

	moderation := admin.Group("/moderation")
	moderation.Post("/users/:id/block", s.BlockUser)
	moderation.Post("/users/:id/unblock", s.UnblockUser)
	moderation.Post("/users/:id/warn", s.WarnUser)
	moderation.Get("/users/:id/history", s.ModerationHistory)
	moderation.Delete("/posts/:id", s.DeletePostWithReason)
	moderation.Delete("/comments/:id", s.DeleteCommentWithReason)
}

// upgradeRequired rejects plain HTTP requests on websocket routes.
func upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// StartRealtime attaches the websocket hubs to the redis notifier. Safe to
// call with a nil redis client; the hubs then serve connected clients on this
// instance only.
func (s *Server) StartRealtime(ctx context.Context) {
	for _, hub := range []wireableHub{s.hub, s.chatHub} {
		if err := hub.StartWiring(ctx, s.notifier); err != nil {
			slog.Error("hub wiring failed", "hub", hub.Name(), "error", err)
		}
	}
}

// Shutdown closes websocket connections and releases hub state.
func (s *Server) Shutdown(ctx context.Context) {
	for _, hub := range []wireableHub{s.hub, s.chatHub} {
		if err := hub.Shutdown(ctx); err != nil {
			slog.Error("hub shutdown failed", "hub", hub.Name(), "error", err)
		}
	}
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports dependency health. Redis being down degrades the
// report but the store being unreachable makes the instance not ready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if _, err := s.store.Count(ctx, store.ColUsers); err != nil {
		storeStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if storeStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}
