package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/pdv-manager/internal/api/handlers"
	"github.com/yourusername/pdv-manager/internal/api/middleware"
	"github.com/yourusername/pdv-manager/internal/auth"
	"github.com/yourusername/pdv-manager/internal/backup"
	"github.com/yourusername/pdv-manager/internal/config"
	"github.com/yourusername/pdv-manager/internal/kvstore"
	"github.com/yourusername/pdv-manager/internal/websocket"
)

// SetupRouter configures and returns the HTTP router
func SetupRouter(
	cfg *config.Config,
	store kvstore.Store,
	engine *backup.Engine,
	hub *websocket.Hub,
) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.Security.CORS))
	router.Use(middleware.RateLimit(cfg.Security.RateLimit.Enabled, cfg.Security.RateLimit.RequestsPerMinute))

	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		parseDuration(cfg.Auth.AccessTokenDuration),
	)

	authHandler := handlers.NewAuthHandler(store, jwtManager)
	backupHandler := handlers.NewBackupHandler(engine, store)
	wsHandler := handlers.NewWSHandler(hub)

	// Public routes
	public := router.Group("/api/v1")
	{
		public.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.Auth(jwtManager))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		backupHandler.RegisterRoutes(protected)

		// WebSocket route (token accepted via query for browser clients)
		protected.GET("/ws/backups", wsHandler.HandleBackupEvents)
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}

// parseDuration is a helper to parse duration strings
func parseDuration(duration string) time.Duration {
	d, err := time.ParseDuration(duration)
	if err != nil {
		return 15 * time.Minute // Default fallback
	}
	return d
}
