// Package server contains the HTTP handlers of the blog API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "realblog/docs" // swagger docs
	"realblog/internal/auth"
	"realblog/internal/cache"
	"realblog/internal/config"
	"realblog/internal/database"
	"realblog/internal/featureflags"
	"realblog/internal/mailer"
	"realblog/internal/media"
	"realblog/internal/middleware"
	"realblog/internal/models"
	"realblog/internal/observability"
	"realblog/internal/search"
	"realblog/internal/service"

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
	authn          *auth.JWTAuthenticator
	featureFlags   *featureflags.Manager
	mediaStore     *media.Store
	ranker         search.Ranker

	identity   *service.IdentityService
	accounts   *service.AccountService
	profiles   *service.ProfileService
	posts      *service.PostService
	categories *service.CategoryService
	likes      *service.LikeService
	comments   *service.CommentService
	feeds      *service.FeedService
	search     *service.SearchService
	images     *media.ImageService
}

// NewServer connects the database and Redis described by cfg and builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient(), mailer.New(cfg))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redis client disables caching and Redis-backed rate limits.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, mail mailer.Sender) (*Server, error) {
	if mail == nil {
		mail = mailer.NewLogSender(middleware.Logger)
	}
	if cache.GetClient() != redisClient {
		cache.SetClient(redisClient)
	}

	tokenTTL := time.Duration(cfg.TokenTTLHours) * time.Hour
	authn := auth.NewJWTAuthenticator(cfg.JWTSecret, tokenTTL)
	flags := featureflags.NewManager(cfg.FeatureFlags)
	if rules := flags.Raw(); len(rules) > 0 {
		middleware.Logger.Info("feature flags loaded", slog.Any("flags", rules))
	}
	store := media.NewStore(cfg.MediaDir, cfg.MediaURLPrefix)
	ranker := search.NewRanker(db, search.OptionsFromConfig(cfg))

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(observability.ServiceName),
		authn:          authn,
		featureFlags:   flags,
		mediaStore:     store,
		ranker:         ranker,

		identity:   service.NewIdentityService(db, authn),
		accounts:   service.NewAccountService(db, mail, cfg),
		profiles:   service.NewProfileService(db, media.NewAvatarNormalizer(store, cfg.AvatarMaxSide)),
		posts:      service.NewPostService(db, flags),
		categories: service.NewCategoryService(db),
		likes:      service.NewLikeService(db),
		comments:   service.NewCommentService(db, cfg.CommentOrder),
		feeds:      service.NewFeedService(db, cfg.PageSize),
		search:     service.NewSearchService(db, ranker, cfg.PageSize),
		images:     media.NewImageService(store, cfg.MediaMaxUploadMB),
	}
	return s, nil
}

// NewApp returns a fiber app with the middleware chain and every route mounted.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "realblog API",
		BodyLimit: (s.uploadLimitMB() + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, errors.New(fe.Message))
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) uploadLimitMB() int {
	if s.config.MediaMaxUploadMB > 0 {
		return s.config.MediaMaxUploadMB
	}
	return media.DefaultMaxUploadMB
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

	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	prefix := s.mediaStore.URLPrefix
	if prefix == "" {
		prefix = "/media"
	}
	app.Static(prefix, s.mediaStore.Root, fiber.Static{ByteRange: true, MaxAge: 3600})

	api := app.Group("/api", middleware.OptionalAuth(s.authn))
	required := middleware.AuthRequired(s.authn)

	api.Get("/", s.ReadinessCheck)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "realblog metrics"}))
	api.Get("/feature-flags", s.GetFeatureFlags)
	api.Get("/swagger/*", swagger.HandlerDefault)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	authGroup.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.Post("/password-change", required, middleware.RateLimit(s.redis, 5, 15*time.Minute, "password_change"), s.ChangePassword)
	authGroup.Post("/password-reset", middleware.RateLimit(s.redis, 5, 15*time.Minute, "password_reset"), s.RequestPasswordReset)
	authGroup.Post("/password-reset/confirm", middleware.RateLimit(s.redis, 10, 15*time.Minute, "password_reset_confirm"), s.ConfirmPasswordReset)
	authGroup.Post("/verify-email", required, middleware.RateLimit(s.redis, 5, 15*time.Minute, "verify_email"), s.RequestEmailVerification)
	authGroup.Post("/verify-email/:code", s.ConfirmEmailVerification)

	api.Get("/me", required, s.GetMe)
	api.Put("/me", required, s.UpdateMe)

	profiles := api.Group("/profiles")
	profiles.Get("/:slug/posts", s.GetProfilePosts)
	profiles.Get("/:slug/followers", s.GetFollowers)
	profiles.Get("/:slug/following", s.GetFollowing)
	profiles.Get("/:slug/follow", required, s.GetFollowStatus)
	profiles.Post("/:slug/follow", required, s.Follow)
	profiles.Delete("/:slug/follow", required, s.Unfollow)
	profiles.Get("/:slug", s.GetProfile)

	api.Get("/feed/following", required, s.GetFollowingFeed)

	// fixed paths before /:slug
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.SearchPosts)
	posts.Get("/latest", s.GetLatestPosts)
	posts.Get("/most-commented", s.GetMostCommentedPosts)
	posts.Get("/drafts", required, s.GetDrafts)
	posts.Post("/", required, middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:slug/like", required, s.ToggleLike)
	posts.Get("/:slug/similar", s.GetSimilarPosts)
	posts.Get("/:slug/comments", s.GetComments)
	posts.Post("/:slug/comments", required, middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:slug", s.GetPost)
	posts.Put("/:slug", required, s.UpdatePost)
	posts.Delete("/:slug", required, s.DeletePost)

	comments := api.Group("/comments", required)
	comments.Patch("/:id/parent", s.MoveComment)
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	api.Post("/uploads/images", required, middleware.RateLimit(s.redis, 20, time.Minute, "upload_image"), s.UploadImage)

	categories := api.Group("/categories")
	categories.Get("/", s.GetCategories)
	categories.Post("/", required, s.CreateCategory)
	categories.Get("/:slug/posts", s.GetCategoryPosts)
	categories.Delete("/:slug", required, s.DeleteCategory)

	api.Get("/tags/:slug/posts", s.GetTagPosts)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and cache health. Redis is optional: when
// it is not configured the service still serves, uncached.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"search": s.ranker.Engine(),
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
