package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvalencia/agentbook/config"
	"github.com/nvalencia/agentbook/pkg/agency"
	"github.com/nvalencia/agentbook/pkg/api/handlers"
	custommw "github.com/nvalencia/agentbook/pkg/api/middleware"
	"github.com/nvalencia/agentbook/pkg/assistant"
	"github.com/nvalencia/agentbook/pkg/audit"
	"github.com/nvalencia/agentbook/pkg/auth"
	"github.com/nvalencia/agentbook/pkg/cache"
	"github.com/nvalencia/agentbook/pkg/clients"
	"github.com/nvalencia/agentbook/pkg/database"
	"github.com/nvalencia/agentbook/pkg/deals"
	"github.com/nvalencia/agentbook/pkg/email"
	"github.com/nvalencia/agentbook/pkg/export"
	"github.com/nvalencia/agentbook/pkg/hierarchy"
	"github.com/nvalencia/agentbook/pkg/jobs"
	"github.com/nvalencia/agentbook/pkg/logger"
	"github.com/nvalencia/agentbook/pkg/metrics"
	custommiddleware "github.com/nvalencia/agentbook/pkg/middleware"
	"github.com/nvalencia/agentbook/pkg/notify"
)

func main() {
	// .env is optional; real deployments use the environment
	_ = godotenv.Load()

	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize database
	db, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Initialize rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	authRateLimiter := custommiddleware.NewRateLimiter(5, 2)       // login brute force protection
	assistantRateLimiter := custommiddleware.NewRateLimiter(10, 3) // LLM calls are expensive

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Public status endpoints
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "Agentbook API",
			"version":     "0.1.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}
		if _, err := redisClient.Redis.Ping(c.Request().Context()).Result(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Initialize JWT blacklist
	tokenBlacklist := auth.NewTokenBlacklist(redisClient)

	// Initialize audit logger
	auditLogger := audit.NewService(db.DB)
	log.Printf("✅ Audit logging initialized")

	// Initialize email service
	emailService := email.NewService(
		cfg.EmailFrom,
		cfg.EmailFromName,
		cfg.PortalURL,
		cfg.SendGridAPIKey,
	)

	// Initialize services
	agencyService := agency.NewService(db.DB, redisClient)
	notifier := notify.NewNotifier(appLogger, prometheusMetrics)
	hierarchyService := hierarchy.NewService(db.DB, appLogger, prometheusMetrics)
	clientService := clients.NewService(db.DB, emailService, appLogger, prometheusMetrics)
	dealService := deals.NewService(db.DB, redisClient, agencyService, hierarchyService, clientService, notifier, appLogger, prometheusMetrics)
	exportService := export.NewService(dealService, appLogger)
	assistantService := assistant.NewService(cfg.OpenAIAPIKey, cfg.OpenAIModel, db.DB, hierarchyService, appLogger, prometheusMetrics)
	if cfg.OpenAIAPIKey == "" {
		log.Printf("ℹ️  Assistant disabled (no OpenAI API key configured)")
	} else {
		log.Printf("✅ Assistant initialized (model: %s)", cfg.OpenAIModel)
	}

	// Initialize cron manager
	cronManager := jobs.NewCronManager(db.DB, clientService, log.Default())
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()
	log.Printf("✅ Cron jobs started successfully")

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db.DB, cfg, tokenBlacklist, auditLogger, prometheusMetrics)
	dealHandler := handlers.NewDealHandler(dealService, hierarchyService, auditLogger)
	clientHandler := handlers.NewClientHandler(clientService, auditLogger)
	agentHandler := handlers.NewAgentHandler(db.DB, hierarchyService, emailService)
	agencyHandler := handlers.NewAgencyHandler(agencyService, auditLogger)
	adminHandler := handlers.NewAdminHandler(db.DB, auditLogger)
	assistantHandler := handlers.NewAssistantHandler(assistantService)
	auditHandler := handlers.NewAuditHandler(auditLogger)
	exportHandler := handlers.NewExportHandler(exportService)

	v1 := e.Group("/api/v1")

	// Authentication routes
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login, authRateLimiter.RateLimitMiddleware())
		authRoutes.GET("/me", authHandler.Me, custommw.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist, db.DB))
		authRoutes.POST("/logout", authHandler.Logout, custommw.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist, db.DB))
	}

	// Client portal onboarding (public, token is the credential)
	v1.POST("/clients/setup-complete", clientHandler.SetupComplete)

	// Protected routes
	protected := v1.Group("")
	protected.Use(custommw.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist, db.DB))
	{
		// Deal routes (agents and admins)
		dealsGroup := protected.Group("/deals")
		dealsGroup.Use(custommiddleware.RequireAgent(db.DB))
		{
			dealsGroup.POST("", dealHandler.Submit)
			dealsGroup.GET("/form-data", dealHandler.FormData)
			dealsGroup.GET("/products-by-carrier", dealHandler.ProductsByCarrier)
			dealsGroup.GET("/book-of-business", dealHandler.BookOfBusiness)
			dealsGroup.GET("/book-of-business/export", exportHandler.BookOfBusiness)
			dealsGroup.GET("/:id", dealHandler.Get)
			dealsGroup.GET("/:id/commission-chain", dealHandler.CommissionChain)
		}

		// Client invitation (agents and admins)
		protected.POST("/clients/invite", clientHandler.Invite, custommiddleware.RequireAgent(db.DB))

		// Agent hierarchy routes
		agentsGroup := protected.Group("/agents")
		agentsGroup.Use(custommiddleware.RequireAgent(db.DB))
		{
			agentsGroup.GET("/check-positions", agentHandler.CheckPositions)
			agentsGroup.GET("/downline", agentHandler.Downline)
		}
		protected.POST("/agents/invite", agentHandler.Invite, custommiddleware.RequireAdmin(db.DB))

		// Assistant (agents and admins, tighter rate limit)
		protected.POST("/assistant/chat", assistantHandler.Chat,
			custommiddleware.RequireAgent(db.DB), assistantRateLimiter.RateLimitMiddleware())

		// Agency settings (admin only)
		agencyGroup := protected.Group("/agency")
		agencyGroup.Use(custommiddleware.RequireAdmin(db.DB))
		{
			agencyGroup.GET("/settings", agencyHandler.GetSettings)
			agencyGroup.PATCH("/settings", agencyHandler.UpdateSettings)
		}

		// User routes
		protected.GET("/user/audit-logs", auditHandler.UserLogs)

		// Admin routes
		adminGroup := protected.Group("/admin")
		adminGroup.Use(custommiddleware.RequireAdmin(db.DB))
		{
			adminGroup.GET("/users", adminHandler.ListUsers)
			adminGroup.PATCH("/users/:id", adminHandler.UpdateUser)
			adminGroup.GET("/audit-logs", auditHandler.RecentLogs)
		}
	}

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 Agentbook API starting on %s", address)
	log.Printf("📝 Log level: %s, Log format: %s", cfg.LogLevel, cfg.LogFormat)
	log.Printf("🔐 JWT expiration: %d hours", cfg.JWTExpirationHours)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d)", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
