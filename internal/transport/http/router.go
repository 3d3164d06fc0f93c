package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/internal/transport/http/middleware"
)

type RouterConfig struct {
	AllowedOrigins   []string
	Production       bool
	RateLimitWindow  time.Duration
	RateLimitMax     int
	AuthRateLimitMax int
}

type Handlers struct {
	Auth        *AuthHandler
	User        *UserHandler
	Admin       *AdminHandler
	Translation *TranslationHandler
	Health      *HealthHandler
	WebSocket   gin.HandlerFunc
}

func NewRouter(cfg RouterConfig, gate *middleware.Gate, h Handlers, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeadersMiddleware(cfg.Production))
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins, logger))

	router.GET("/health", h.Health.Health)
	if h.WebSocket != nil {
		router.GET("/ws", h.WebSocket)
	}

	apiLimiter := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, 0, nil)
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimitMax, cfg.RateLimitWindow, 0, nil)
	authLimit := middleware.RateLimitMiddleware(authLimiter, "Too many auth attempts, please try again later.", logger)

	api := router.Group("/api")
	api.Use(middleware.RateLimitMiddleware(apiLimiter, "Too many requests from this IP, please try again later.", logger))

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authLimit, h.Auth.Register)
		authRoutes.POST("/login", authLimit, h.Auth.Login)
		authRoutes.POST("/refresh", h.Auth.Refresh)
		authRoutes.POST("/logout", h.Auth.Logout)
		authRoutes.GET("/me", gate.Authenticate(), h.Auth.Me)
	}

	user := api.Group("/user", gate.Authenticate())
	{
		user.GET("/profile", h.User.GetProfile)
		user.PUT("/profile", h.User.UpdateProfile)
		user.PUT("/api-key", h.User.SaveAPIKey)
		user.DELETE("/api-key", h.User.DeleteAPIKey)
		user.GET("/providers", h.User.ListProviders)
		user.PUT("/password", h.User.ChangePassword)
		user.DELETE("/account", h.User.DeleteAccount)
	}

	translate := api.Group("/translate", gate.Authenticate())
	{
		translate.GET("/languages", h.Translation.Languages)
		translate.POST("/text", h.Translation.TranslateText)
		translate.GET("/history", h.Translation.History)
		translate.DELETE("/history/:id", h.Translation.Delete)
	}

	admin := api.Group("/admin", gate.Authenticate(), middleware.RequireRole(domain.RoleAdmin))
	{
		admin.POST("/users/:id/revoke-sessions", h.Admin.RevokeSessions)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	return router
}
