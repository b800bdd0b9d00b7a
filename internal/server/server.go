// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	_ "jnestagram/docs" // swagger docs
	"jnestagram/internal/bootstrap"
	"jnestagram/internal/cache"
	"jnestagram/internal/config"
	"jnestagram/internal/counters"
	"jnestagram/internal/crypto"
	"jnestagram/internal/featureflags"
	"jnestagram/internal/media"
	"jnestagram/internal/middleware"
	"jnestagram/internal/models"
	"jnestagram/internal/notifications"
	"jnestagram/internal/repository"
	"jnestagram/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	notifier *notifications.Notifier
	hub      *notifications.Hub
	flags    *featureflags.Manager
	gate     *featureflags.Gate
	counters *counters.Engine

	likeService    *service.LikeService
	commentService *service.CommentService
	replyService   *service.ReplyService
	postService    *service.PostService
	inboxService   *service.InboxService
	profileService *service.ProfileService
	authService    *service.AuthService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{
		ApplyCatalogue: !cfg.IsProduction(),
	})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with SQLite and miniredis. redisClient may be nil, in which
// case caching, notifications and WebSocket tickets are disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	cipher, err := crypto.FromHexKey(cfg.MessageKey)
	if err != nil {
		return nil, fmt.Errorf("message key: %w", err)
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("jnestagram-api"),
		flags:          featureflags.NewManager(cfg.FeatureFlags),
		counters:       counters.New(),
	}
	server.gate = featureflags.NewGate(repository.NewFeatureRepository(db), server.flags, cfg.Staging)

	if redisClient != nil {
		cache.SetClient(redisClient)
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
	}

	store := media.NewStore(cfg.MediaDir)
	server.likeService = service.NewLikeService(db, server.counters, server.notifier)
	server.commentService = service.NewCommentService(db, server.counters, server.notifier)
	server.replyService = service.NewReplyService(db, server.counters)
	server.postService = service.NewPostService(db, store)
	server.inboxService = service.NewInboxService(db, cipher, server.notifier)
	server.profileService = service.NewProfileService(db, store, cfg.AvatarSize, cfg.AvatarQuality)
	server.authService = service.NewAuthService(db, cfg.JWTSecret)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Uploaded images are served to the frontend origin.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(middleware.Maintenance(s.gate.MaintenanceActive))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	app.Get("/robots.txt", s.Robots)
	app.Static("/media", s.config.MediaDir, fiber.Static{MaxAge: 3600})

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Jnestagram Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Public reads. A bearer token, when present, fills in is_liked.
	public := api.Group("", s.OptionalAuth())
	public.Get("/tags", s.GetTags)
	public.Get("/posts", s.GetPosts)
	public.Get("/posts/top", s.GetTopPosts)
	public.Get("/posts/:id/comments", s.GetComments)
	public.Get("/posts/:id", s.GetPost)
	public.Get("/comments/:id/replies", s.GetReplies)
	public.Get("/users/:username", s.GetPublicProfile)
	public.Get("/countries", s.GetCountries)
	public.Get("/features", s.GetFeatures)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Get("/me", s.AuthRequired(), s.Me)

	// Registered ahead of the protected group so a ticket is consumed once.
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	api.Get("/ws/inbox", s.AuthRequired(), s.InboxSocket())

	protected := api.Group("", s.AuthRequired())

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/comments", middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	comments := protected.Group("/comments")
	// Specific routes before /:id.
	comments.Get("/pending", s.GetPendingComments)
	comments.Get("/pending/count", s.GetPendingCount)
	comments.Post("/:id/approve", s.ApproveComment)
	comments.Post("/:id/replies", middleware.RateLimit(s.redis, 20, time.Minute, "create_reply"), s.CreateReply)
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	protected.Delete("/replies/:id", s.DeleteReply)
	protected.Post("/likes/:kind/:id", middleware.RateLimit(s.redis, 60, time.Minute, "like"), s.ToggleLike)

	inbox := protected.Group("/inbox")
	inbox.Get("/", s.GetConversations)
	inbox.Get("/unread", s.GetUnreadCount)
	inbox.Get("/search", s.SearchUsers)
	inbox.Post("/users/:userId/messages", middleware.RateLimit(s.redis, 15, time.Minute, "send_message"), s.SendMessageToUser)
	inbox.Get("/:id", s.GetConversation)
	inbox.Post("/:id/messages", middleware.RateLimit(s.redis, 15, time.Minute, "send_message"), s.SendMessage)
	inbox.Post("/:id/seen", s.MarkSeen)

	profile := protected.Group("/profile")
	profile.Get("/", s.GetOwnProfile)
	profile.Put("/", s.UpdateProfile)
	profile.Post("/avatar", s.UploadAvatar)

	admin := protected.Group("/admin", s.StaffRequired())
	admin.Get("/features", s.GetAdminFeatures)
	admin.Put("/features", s.SaveFeature)
	admin.Get("/landing-pages", s.GetLandingPages)
	admin.Put("/landing-pages/:name", s.SetLandingPage)
	admin.Post("/counters/recount", s.RecountCounters)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Robots serves a permissive robots.txt. It stays reachable in maintenance.
func (s *Server) Robots(c *fiber.Ctx) error {
	c.Type("txt")
	return c.SendString("User-agent: *\nDisallow: /api/admin/\n")
}

func (s *Server) authenticate(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, userID))
}

// AuthRequired returns the authentication middleware. WebSocket routes accept
// a single-use ticket from POST /api/ws/ticket; every other route needs a
// bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws/") && c.Path() != "/api/ws/ticket"

		if ticket := c.Query("ticket"); ticket != "" && s.redis != nil {
			userIDStr, err := s.redis.GetDel(c.Context(), cache.WSTicketKey(ticket)).Result()
			if err == nil {
				if userID, parseErr := strconv.ParseUint(userIDStr, 10, 32); parseErr == nil && userID > 0 {
					s.authenticate(c, uint(userID))
					return c.Next()
				}
			}
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		token, err := middleware.BearerToken(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		userID, err := middleware.ParseToken(s.config.JWTSecret, token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		s.authenticate(c, userID)
		return c.Next()
	}
}

// OptionalAuth resolves the viewer from a bearer token when one is sent.
// Bad tokens are ignored and the request continues anonymously.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, ok := s.optionalUserID(c); ok {
			s.authenticate(c, userID)
		}
		return c.Next()
	}
}

func (s *Server) optionalUserID(c *fiber.Ctx) (uint, bool) {
	token, err := middleware.BearerToken(c)
	if err != nil {
		return 0, false
	}
	userID, err := middleware.ParseToken(s.config.JWTSecret, token)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// StaffRequired rejects users that cannot moderate. Must be placed after
// AuthRequired.
func (s *Server) StaffRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.authService.CurrentUser(c.UserContext(), viewerID(c))
		if err != nil {
			return respondError(c, err)
		}
		if !user.CanModerate() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Staff access required"))
		}
		return c.Next()
	}
}

// App builds the Fiber app with middleware and routes but does not listen.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "jnestagram",
		BodyLimit: 12 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, err)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", s.hub.Name(), err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
