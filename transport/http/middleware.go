package http

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/polkauth/core"
	"github.com/layer-3/polkauth/service"
	"github.com/rs/zerolog"
)

const sessionContextKey = "session"

// SessionMiddleware resolves the session cookie. It never rejects a request;
// handlers and the Require middlewares decide what an absent session means.
func SessionMiddleware(guard *service.SessionGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if session, ok := guard.CurrentSession(sessionToken(c)); ok {
			c.Set(sessionContextKey, session)
		}
		c.Next()
	}
}

// RequireSession redirects unauthenticated requests to the home page
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentSession(c) == nil {
			redirect(c, service.RedirectHome, service.ReasonUnauthenticated)
			return
		}
		c.Next()
	}
}

// RequireSubscription redirects requests without an active subscription
func RequireSubscription(guard *service.SessionGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := guard.RequireSubscription(currentSession(c))
		if !decision.Allowed {
			redirect(c, decision.RedirectTo, decision.Reason)
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

func currentSession(c *gin.Context) *core.Session {
	value, exists := c.Get(sessionContextKey)
	if !exists {
		return nil
	}
	session, _ := value.(*core.Session)
	return session
}

func redirect(c *gin.Context, target, reason string) {
	location := target
	if reason != "" {
		location += "?error=" + url.QueryEscape(reason)
	}
	c.Redirect(http.StatusSeeOther, location)
	c.Abort()
}
