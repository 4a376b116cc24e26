// Package devserver is an in-memory stand-in for the production
// backend: the full REST surface the client consumes, with real JWT
// issuing and bcrypt credential checks, and nothing durable.
package devserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kindra-app/kindra-client/config"
	"github.com/kindra-app/kindra-client/pkg/jwt"
	"golang.org/x/time/rate"
)

// Server bundles the router, token manager and in-memory store
type Server struct {
	engine *gin.Engine
	store  *Store
	tokens *jwt.TokenManager
}

// New builds a dev server from configuration
func New(cfg config.DevServerConfig) *Server {
	tm := jwt.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTLMinutes, cfg.RefreshTTLHours)

	s := &Server{
		engine: gin.New(),
		store:  NewStore(),
		tokens: tm,
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	limiter := NewRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	s.registerRoutes(limiter)
	return s
}

func (s *Server) registerRoutes(limiter *RateLimiter) {
	v1 := s.engine.Group("/api/v1")
	v1.Use(limiter.Middleware())

	v1.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := v1.Group("/auth")
	auth.POST("/register", s.handleRegister)
	auth.POST("/login", s.handleLogin)
	auth.POST("/refresh", s.handleRefresh)

	users := v1.Group("/users")
	users.Use(AuthMiddleware(s.tokens))
	users.GET("/me", s.handleMe)
	users.PUT("/me/personal-info", s.handleUpdatePersonalInfo)
	users.POST("/me/profile-picture/upload", s.handleUploadPicture)
	users.POST("/me/profile-picture", s.handleAddPictureURL)
	users.GET("/:id", s.handleGetUser)

	chats := v1.Group("/chats")
	chats.Use(AuthMiddleware(s.tokens))
	chats.GET("/:id/messages", s.handleChatHistory)
	chats.POST("/:id/messages", s.handleChatSend)
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Store exposes the in-memory store for test seeding
func (s *Server) Store() *Store {
	return s.store
}

// Run serves on the given address until the process exits
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}
