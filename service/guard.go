package service

import (
	"context"
	"errors"

	"github.com/layer-3/polkauth/core"
	"github.com/layer-3/polkauth/ports"
)

// Redirect targets and reasons returned by RequireSubscription
const (
	RedirectSubscribe     = "/subscribe"
	RedirectHome          = "/"
	ReasonSubscribe       = "Please subscribe to the service"
	ReasonUnauthenticated = "Not authorized"
)

// Decision is the outcome of an access policy check
type Decision struct {
	Allowed    bool
	RedirectTo string
	Reason     string
}

// SessionGuard resolves session tokens and applies access policies
type SessionGuard struct {
	codec ports.SessionCodec
	options
}

// NewSessionGuard creates a guard decoding tokens with codec
func NewSessionGuard(codec ports.SessionCodec, opts ...Option) *SessionGuard {
	g := &SessionGuard{
		codec:   codec,
		options: defaultOptions(),
	}
	for _, opt := range opts {
		opt(&g.options)
	}
	return g
}

// CurrentSession decodes token. Missing, malformed and expired tokens all
// yield an unauthenticated result.
func (g *SessionGuard) CurrentSession(token string) (*core.Session, bool) {
	if token == "" {
		return nil, false
	}
	session, err := g.codec.Decode(token)
	if err != nil {
		event := g.logger.Debug().Err(err)
		if errors.Is(err, core.ErrTokenExpired) {
			event.Msg("session expired")
		} else {
			event.Msg("session rejected")
		}
		return nil, false
	}
	return session, true
}

// RequireSubscription allows sessions whose subscription has not ended yet
func (g *SessionGuard) RequireSubscription(session *core.Session) Decision {
	if session == nil {
		return Decision{RedirectTo: RedirectHome, Reason: ReasonUnauthenticated}
	}
	if !session.HasSubscriptionAt(g.now()) {
		return Decision{RedirectTo: RedirectSubscribe, Reason: ReasonSubscribe}
	}
	return Decision{Allowed: true}
}

// Refresh re-issues session with a fresh expiry, keeping its ID
func (g *SessionGuard) Refresh(session *core.Session) (*SessionResult, error) {
	if session == nil {
		return nil, core.ErrInvalidToken
	}
	refreshed := *session
	token, err := g.codec.Encode(&refreshed)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: &refreshed, Token: token}, nil
}

// Logout ends session. It never fails; a nil session is a no-op.
func (g *SessionGuard) Logout(ctx context.Context, session *core.Session) {
	if session == nil || g.events == nil {
		return
	}
	if err := g.events.PublishLogout(ctx, session.Identity, session.ID); err != nil {
		g.logger.Warn().Err(err).Str("identity", session.Identity).Msg("failed to publish logout event")
	}
}
