package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/polkauth/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig holds transport level settings
type RouterConfig struct {
	CookieSecure bool
	Logger       zerolog.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, guard *service.SessionGuard, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Logger))

	// Create handlers
	handlers := NewAuthHandlers(authService, guard, cfg.CookieSecure, cfg.Logger)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes
	auth := router.Group("/auth")
	auth.Use(SessionMiddleware(guard))
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/signin", handlers.SignIn)
		auth.POST("/logout", handlers.Logout)
	}

	// Session aware API routes
	api := router.Group("/api")
	api.Use(SessionMiddleware(guard))
	{
		api.GET("/session", handlers.Session)
		api.GET("/me", RequireSession(), handlers.Me)
		api.GET("/premium", RequireSubscription(guard), handlers.Premium)
	}

	return router
}
