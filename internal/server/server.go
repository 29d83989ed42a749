// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "guildhall/docs" // swagger docs
	"guildhall/internal/auth"
	"guildhall/internal/cache"
	"guildhall/internal/config"
	"guildhall/internal/database"
	"guildhall/internal/featureflags"
	"guildhall/internal/middleware"
	"guildhall/internal/models"
	"guildhall/internal/notifications"
	"guildhall/internal/reminders"
	"guildhall/internal/repository"
	"guildhall/internal/service"

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

var createReferralQuota = middleware.Quota{Name: "create_referral", Limit: 10, Window: time.Hour}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	profileRepo     repository.ProfileRepository
	referralRepo    repository.ReferralRepository
	applicationRepo repository.ApplicationRepository
	auditRepo       repository.AuditLogRepository

	guard        *auth.Guard
	mailer       service.EmailSender
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	referrals        *service.ReferralService
	lifecycle        *service.ReferralLifecycle
	referralNotifier *service.ReferralNotifier
	review           *service.ApplicationReview
	reminders        *reminders.Runner
}

// Option customizes a Server built by NewServerWithDeps.
type Option func(*Server)

// WithMailer replaces the configured email gateway.
func WithMailer(m service.EmailSender) Option {
	return func(s *Server) { s.mailer = m }
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	server := &Server{
		config:          cfg,
		db:              db,
		redis:           redisClient,
		promMiddleware:  middleware.InitMetrics("guildhall-api"),
		profileRepo:     repository.NewProfileRepository(db),
		referralRepo:    repository.NewReferralRepository(db),
		applicationRepo: repository.NewApplicationRepository(db),
		auditRepo:       repository.NewAuditLogRepository(db),
		featureFlags:    featureflags.NewManager(cfg.FeatureFlags),
	}
	for _, opt := range opts {
		opt(server)
	}

	if server.mailer == nil {
		mailer, err := notifications.NewMailerFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("email gateway: %w", err)
		}
		server.mailer = mailer
	}

	server.guard = auth.NewGuard(auth.Config{
		Secret:        cfg.AuthJWTSecret,
		Issuer:        cfg.AuthJWTIssuer,
		Audience:      cfg.AuthJWTAudience,
		LookupTimeout: cfg.ProfileLookupTimeout(),
	}, server.profileRepo, redisClient)

	// realtime needs pub/sub; without Redis the WS route answers "realtime unavailable"
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
	}

	server.referrals = service.NewReferralService(server.referralRepo)
	server.lifecycle = service.NewReferralLifecycle(server.referralRepo, server.profileRepo, server.auditRepo)
	server.referralNotifier = service.NewReferralNotifier(server.referralRepo, server.profileRepo,
		server.mailer, server.notifier, server.featureFlags, cfg.AdminNotificationEmail)
	server.review = service.NewApplicationReview(server.applicationRepo, server.profileRepo, server.auditRepo,
		server.mailer, server.notifier, server.featureFlags, cfg.AdminNotificationEmail)
	server.reminders = reminders.NewRunner(server.applicationRepo, server.auditRepo, server.mailer, cfg.ReminderSendRate)

	return server, nil
}

// Reminders exposes the reminder runner so the binary can schedule it in-process.
func (s *Server) Reminders() *reminders.Runner {
	return s.reminders
}

const (
	defaultDevOrigins       = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	corsAllowHeaders        = "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version"
	globalRequestsPerMinute = 100
)

// SetupMiddleware installs the shared chain. Order matters: request ids and
// context come before logging, and CORS comes before the limiter so that 429s
// still carry CORS headers.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(
		recover.New(),
		requestid.New(),
		middleware.ContextMiddleware(),
		middleware.TracingMiddleware(),
	)
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New(), middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultDevOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     corsAllowHeaders,
		AllowCredentials: true,
		MaxAge:           int((24 * time.Hour).Seconds()),
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        globalRequestsPerMinute,
		Expiration: time.Minute,
		Next:       func(c *fiber.Ctx) bool { return c.Method() == fiber.MethodOptions },
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests, &models.AppError{
				Code:    middleware.CodeRateLimited,
				Message: "Too many requests, please try again later",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Guildhall Backend Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	member := s.guard.RequireRole(auth.RoleAuthenticated)
	admin := s.guard.RequireRole(auth.RoleAdmin)

	// Public member directory
	api.Get("/members", s.GetPublicMembers)

	// Referral routes. Role checks for the notify endpoints live in the services,
	// so a member calling an admin operation gets a 403 with the operation's message.
	referrals := api.Group("/referrals", member)
	referrals.Post("/", middleware.RateLimit(s.redis, createReferralQuota), s.CreateReferral)
	referrals.Get("/me", s.GetMyReferrals)
	referrals.Post("/notify-submitter", s.NotifyReferralSubmitter)
	referrals.Post("/notify-admin", s.NotifyReferralAdmin)
	referrals.Post("/notify-member", s.NotifyReferralMember)
	referrals.Post("/notify-status-update", s.NotifyReferralStatusUpdate)
	referrals.Post("/notify-completed", s.NotifyReferralCompleted)
	// after the literal paths above
	referrals.Get("/:id", s.GetReferral)

	// Application routes
	applications := api.Group("/applications", member)
	applications.Post("/", s.SubmitApplication)
	applications.Get("/me", s.GetMyApplication)
	applications.Post("/approve", s.ApproveApplication)
	applications.Post("/reject", s.RejectApplication)
	applications.Post("/notify-submission", s.NotifyApplicationSubmission)

	// Scheduler-triggered reminder pass
	cron := api.Group("/cron", middleware.CronSecretRequired(s.config.CronSecret))
	cron.Get("/application-reminders", s.RunApplicationReminders)
	cron.Post("/application-reminders", s.RunApplicationReminders)

	// WebSocket ticket issuance and upgrade
	api.Post("/ws/ticket", member, s.IssueWSTicket)
	api.Get("/ws", s.guard.RequireWSTicket(), s.WebsocketHandler())

	// Admin routes
	adminGroup := api.Group("/admin", admin)
	adminGroup.Get("/feature-flags", s.GetFeatureFlags)
	adminGroup.Get("/referrals", s.AdminListReferrals)
	adminGroup.Post("/referrals/:id/transition", s.AdminTransitionReferral)
	adminGroup.Post("/send-single-reminder", s.SendSingleReminder)
}

// Start serves HTTP until Shutdown. With Redis present it also relays
// pub/sub events to the local websocket hub.
func (s *Server) Start() error {
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())
	s.app = s.newApp()

	if s.hub != nil && s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("realtime relay stopped", slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// newApp builds the Fiber app with middleware and routes.
func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Guildhall API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok && fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Shutdown stops the relay, drains HTTP, closes websockets and then the
// DB and Redis handles. Individual failures are logged and do not stop the rest.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"http", func() error {
			if s.app == nil {
				return nil
			}
			return s.app.ShutdownWithContext(ctx)
		}},
		{"websocket hub", func() error {
			if s.hub == nil {
				return nil
			}
			return s.hub.Shutdown(ctx)
		}},
		{"database", func() error {
			sqlDB, err := s.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}},
		{"redis", func() error {
			if s.redis == nil {
				return nil
			}
			return s.redis.Close()
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			middleware.Logger.Error("shutdown step failed",
				slog.String("step", step.name), slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
