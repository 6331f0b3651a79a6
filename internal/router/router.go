package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/handler"
	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Test   *handler.TestHandler
	Exam   *handler.ExamHandler
	Result *handler.ResultHandler
	WS     *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by the router, such as limiter cleanup.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for admin login (10 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	go authLimiter.Run(ctx)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/admin/login", handlers.Auth.AdminLogin)
	}

	// ─── 2. Public Catalogue ───────────────────────────────────────────
	public := router.Group("/api/v1/tests")
	{
		public.GET("", middleware.CacheControl(30), handlers.Test.ListTests)
		public.GET("/:id", middleware.CacheControl(30), handlers.Test.GetTest)
		public.POST("/:id/attempts", handlers.Exam.StartAttempt)
	}

	// ─── 3. Attempt Group (Attempt Token) ──────────────────────────────
	attempts := router.Group("/api/v1/attempts/:attempt_id")
	attempts.Use(middleware.RequireAttemptToken(authService), middleware.NoStore())
	{
		attempts.GET("/state", handlers.Exam.GetState)
		attempts.POST("/navigate", handlers.Exam.Navigate)
		attempts.POST("/stage", handlers.Exam.Stage)
		attempts.POST("/commit", handlers.Exam.Commit)
		attempts.POST("/mark", handlers.Exam.Mark)
		attempts.POST("/clear", handlers.Exam.Clear)
		attempts.POST("/zoom", handlers.Exam.Zoom)
		attempts.POST("/submit", handlers.Exam.Submit)
		attempts.DELETE("/session", handlers.Exam.EndSession)

		attempts.GET("/result", handlers.Result.GetResult)
		attempts.GET("/solutions", handlers.Result.GetSolutions)
	}

	// ─── 4. WebSocket Group (Attempt Token via ?token=) ────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAttemptToken(authService))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 5. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.POST("/tests/import", handlers.Test.ImportTest)
		adminAPI.GET("/tests/:id/questions", handlers.Test.ListQuestions)
		adminAPI.DELETE("/tests/:id", handlers.Test.DeleteTest)
		adminAPI.GET("/tests/:id/results", handlers.Result.ListTestResults)
	}

	return router
}
