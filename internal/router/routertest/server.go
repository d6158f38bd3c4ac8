// Package routertest runs the full HTTP API over in-memory stores.
package routertest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/router"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/service/servicetest"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// Server is the API engine plus the stack behind it.
type Server struct {
	*servicetest.Stack
	Engine *gin.Engine
	Auth   *service.AuthService
	Config *config.Config
}

// Option tweaks the config before the router is built.
type Option func(*config.Config)

// WithAttemptRate sets the attempt creation rate limit per minute.
func WithAttemptRate(n int) Option {
	return func(c *config.Config) { c.AttemptRatePerMinute = n }
}

// New builds the router in gin test mode. A zero attempt rate disables the limiter.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	cfg := &config.Config{
		GinMode:   gin.TestMode,
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	validator.Setup()

	st := servicetest.NewStack(t)
	log := zerolog.Nop()
	auth := service.NewAuthService(cfg)

	handlers := &router.Handlers{
		QuizAttempt:   handler.NewQuizAttemptHandler(st.Quizzes, st.Attempts, st.Sessions, log),
		SessionStream: handler.NewSessionStreamHandler(st.Sessions, log, cfg.AllowedOrigins),
	}

	var limiter *middleware.RateLimiter
	if cfg.AttemptRatePerMinute > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		limiter = middleware.NewRateLimiter(ctx, cfg.AttemptRatePerMinute, time.Minute)
	}

	return &Server{
		Stack:  st,
		Engine: router.SetupRouter(auth, handlers, limiter, cfg),
		Auth:   auth,
		Config: cfg,
	}
}

// Token signs a bearer token for user.
func (s *Server) Token(t testing.TB, user string, role service.Role) string {
	t.Helper()
	token, err := s.Auth.GenerateToken(user, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

// Listen serves the engine on a real socket, needed for WebSocket tests.
func (s *Server) Listen(t testing.TB) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.Engine)
	t.Cleanup(srv.Close)
	return srv
}
