package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"voiceboard-backend/internal/agents"
	"voiceboard-backend/internal/auth"
	"voiceboard-backend/internal/config"
	"voiceboard-backend/internal/database"
	"voiceboard-backend/internal/health"
	"voiceboard-backend/internal/metrics"
	"voiceboard-backend/internal/middleware"
	"voiceboard-backend/internal/models"
	"voiceboard-backend/internal/secrets"
	"voiceboard-backend/internal/webhooks"
	"voiceboard-backend/internal/workspaces"
	"voiceboard-backend/pkg/utils"
)

func main() {
	log.Println("🚀 Starting Voiceboard API Server")

	// Initialize Sentry before other subsystems so we capture initialization errors
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		env := os.Getenv("SENTRY_ENVIRONMENT")
		release := os.Getenv("SENTRY_RELEASE")
		if release == "" {
			release = os.Getenv("GIT_COMMIT")
		}
		host, _ := os.Hostname()

		opts := sentry.ClientOptions{
			Dsn:         dsn,
			Environment: env,
			Release:     release,
		}
		if host != "" {
			opts.ServerName = host
		}

		if err := sentry.Init(opts); err != nil {
			log.Printf("Sentry initialization failed: %v", err)
		} else {
			sentry.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("service", "voiceboard-backend")
			})
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Credential encryption must be ready before any request handling
	if err := secrets.Init(); err != nil {
		log.Fatalf("Failed to initialize credential encryption: %v", err)
	}

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := database.RunMigrations(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Agent{},
	); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// Initialize auth components
	auth.InitJWT()

	// Set up router
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	}))
	router.Use(gin.Logger())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		utils.CaptureSentryPanic(c.FullPath(), recovered)
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	router.Use(middleware.RequestID())

	if os.Getenv("ENABLE_SENTRY_DEBUG_ENDPOINT") == "true" {
		router.GET("/internal/sentry-test", func(c *gin.Context) {
			const msg = "Sentry debug endpoint hit"
			utils.CaptureSentryError(c, nil, msg, nil)
			_ = sentry.Flush(2 * time.Second)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	// CORS - MUST be first to handle OPTIONS requests
	corsConfig := middleware.SecureCORSConfig()
	router.Use(cors.New(corsConfig))

	// Health check and telemetry endpoints
	router.GET("/health", health.HandleHealthCheck)
	router.GET("/ready", health.HandleSystemReady)
	router.GET("/metrics", metrics.Handler())

	// API routes
	api := router.Group("/api/v1")
	{
		// Identity provider webhook (signature-verified, not session-authed)
		api.POST("/webhooks/identity", webhooks.HandleIdentityEvent)

		// Public routes for the anonymous agent tester page
		public := api.Group("/public")
		{
			public.GET("/workspaces/:slug", workspaces.HandleGetWorkspaceBySlug)
			public.GET("/workspaces/:slug/agents/:agentId", agents.HandleGetPublicAgent)
			public.POST("/agents/:agentId/web-call", agents.HandleCreatePublicWebCall)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(auth.Middleware(database.DB))
		{
			// Workspace and provider credential
			protected.GET("/workspace", workspaces.HandleGetWorkspace)
			protected.POST("/workspace/api-key", workspaces.HandleSetAPIKey)

			// Imported agent mirrors
			protected.GET("/agents", agents.HandleListAgents)
			protected.POST("/agents/import", agents.HandleImportAgent)

			// Provider passthrough
			protected.GET("/retell/agents", agents.HandleListRemoteAgents)
			protected.GET("/retell/agents/:id", agents.HandleGetRemoteAgent)
			protected.PATCH("/retell/agents/:id", agents.HandleUpdateRemoteAgent)
			protected.POST("/retell/agents/:id/web-call", agents.HandleCreateWebCall)
			protected.GET("/retell/llms/:id", agents.HandleGetLLM)
			protected.PATCH("/retell/llms/:id", agents.HandleUpdateLLM)
		}
	}

	port := config.GetEnv("PORT", "8080")

	log.Printf("✅ Voiceboard API listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
