package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/polkauth/core"
	"github.com/layer-3/polkauth/service"
	"github.com/rs/zerolog"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService  *service.AuthService
	guard        *service.SessionGuard
	cookieSecure bool
	logger       zerolog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, guard *service.SessionGuard, cookieSecure bool, logger zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService:  authService,
		guard:        guard,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type challengeRequest struct {
	Identity string `json:"identity"`
}

type signInRequest struct {
	Identity      string             `json:"identity"`
	Signature     string             `json:"signature"`
	SignedMessage core.SignedMessage `json:"signedMessage"`
	DisplayName   string             `json:"displayName"`
}

type sessionResponse struct {
	IsAuth                 bool   `json:"isAuth"`
	Identity               string `json:"identity,omitempty"`
	DisplayName            string `json:"displayName,omitempty"`
	SubscriptionValidUntil *int64 `json:"subscriptionValidUntil"` // unix milliseconds
}

func newSessionResponse(session *core.Session) sessionResponse {
	if session == nil {
		return sessionResponse{}
	}
	resp := sessionResponse{
		IsAuth:      true,
		Identity:    session.Identity,
		DisplayName: session.DisplayName,
	}
	if session.SubscriptionValidUntil != nil {
		ms := session.SubscriptionValidUntil.UnixMilli()
		resp.SubscriptionValidUntil = &ms
	}
	return resp
}

// Challenge issues a challenge for the requested identity
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	nonce, err := h.authService.RequestChallenge(c.Request.Context(), req.Identity)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
			return
		}
		h.logger.Error().Err(err).Msg("failed to issue challenge")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge": nonce})
}

// SignIn verifies a signed challenge and sets the session cookie
func (h *AuthHandlers) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.SignIn(c.Request.Context(), core.SignInRequest{
		Identity:      req.Identity,
		Signature:     req.Signature,
		SignedMessage: req.SignedMessage,
		DisplayName:   req.DisplayName,
	})
	if err != nil {
		var verr *core.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
		case errors.Is(err, core.ErrInvalidChallenge):
			c.JSON(http.StatusUnauthorized, gin.H{"errors": gin.H{core.FieldSignature: []string{"Invalid or expired challenge"}}})
		case errors.Is(err, core.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"errors": gin.H{core.FieldSignature: []string{"Invalid signature"}}})
		default:
			h.logger.Error().Err(err).Msg("sign-in failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		}
		return
	}

	setSessionCookie(c, result.Token, result.Session.ExpiresAt, h.cookieSecure)
	c.JSON(http.StatusOK, gin.H{
		"identity":    result.Session.Identity,
		"displayName": result.Session.DisplayName,
		"expiresAt":   result.Session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout clears the session cookie. Calling it without a session is fine.
func (h *AuthHandlers) Logout(c *gin.Context) {
	h.guard.Logout(c.Request.Context(), currentSession(c))
	clearSessionCookie(c, h.cookieSecure)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Session reports the current session and slides its expiry forward
func (h *AuthHandlers) Session(c *gin.Context) {
	session := currentSession(c)
	if session == nil {
		c.JSON(http.StatusOK, newSessionResponse(nil))
		return
	}

	refreshed, err := h.guard.Refresh(session)
	if err != nil {
		h.logger.Warn().Err(err).Str("identity", session.Identity).Msg("failed to refresh session")
	} else {
		setSessionCookie(c, refreshed.Token, refreshed.Session.ExpiresAt, h.cookieSecure)
	}

	c.JSON(http.StatusOK, newSessionResponse(session))
}

// Me returns the authenticated identity
func (h *AuthHandlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, newSessionResponse(currentSession(c)))
}

// Premium is only reachable with an active subscription
func (h *AuthHandlers) Premium(c *gin.Context) {
	session := currentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"identity":               session.Identity,
		"subscriptionValidUntil": session.SubscriptionValidUntil.UnixMilli(),
	})
}
