package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	QuizAttempt   *handler.QuizAttemptHandler
	SessionStream *handler.SessionStreamHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// attemptLimiter throttles attempt creation per user; nil disables it.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	attemptLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.TestMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Question lists carry every option text; compress them for browsers.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── Quiz Taker API (JWT: student or tutor) ────────────────────────
	api := router.Group("/api/v1/quizzes/:slug")
	api.Use(middleware.RequireQuizTakerJWT(authService))
	{
		qa := handlers.QuizAttempt

		api.GET("/questions", middleware.CacheControl(60), qa.ListQuestions)

		live := api.Group("")
		live.Use(middleware.NoStore())
		{
			live.GET("/current-attempt", qa.CurrentAttempt)

			create := []gin.HandlerFunc{qa.CreateAttempt}
			if attemptLimiter != nil {
				create = append([]gin.HandlerFunc{attemptLimiter.Middleware()}, create...)
			}
			live.POST("/attempts", create...)
			live.GET("/attempts", qa.ListAttempts)

			live.GET("/attempts/session/:public_id", qa.ResolveSession)

			attempt := live.Group("/attempts/:attempt_id")
			{
				attempt.POST("/session", qa.StartSession)
				attempt.GET("/session", qa.GetSession)
				attempt.PUT("/session", qa.UpdateSession)
				attempt.POST("/answers", qa.SubmitAnswer)
				attempt.POST("/complete", qa.CompleteAttempt)
				attempt.GET("/result", qa.Result)
			}
		}
	}

	// ─── WebSocket (token via query param) ─────────────────────────────
	wsGroup := router.Group("/ws/v1/quizzes/:slug")
	wsGroup.Use(middleware.RequireQuizTakerWSAuth(authService))
	{
		wsGroup.GET("/attempts/:attempt_id/session/stream", handlers.SessionStream.Stream)
	}

	return router
}
