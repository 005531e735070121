package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/polkauth/core"
	"github.com/layer-3/polkauth/internal/metrics"
	"github.com/layer-3/polkauth/ports"
)

// AudienceSession marks tokens minted as session cookies
const AudienceSession = "polkauth:session"

// CurrentVersion is the claim set version written into new tokens.
// Tokens without a version are read as version 1.
const CurrentVersion = 1

// DefaultSessionTTL is how long a session token is accepted
const DefaultSessionTTL = 7 * 24 * time.Hour

// MinSecretLength is the shortest accepted HMAC key
const MinSecretLength = 32

// ErrWeakSecret is returned when the signing secret is missing or too short
var ErrWeakSecret = fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)

// JWTCodec implements the SessionCodec interface using HS256 JWTs
type JWTCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a JWTCodec
type Option func(*JWTCodec)

// WithTTL overrides DefaultSessionTTL
func WithTTL(ttl time.Duration) Option {
	return func(c *JWTCodec) { c.ttl = ttl }
}

// WithClock sets the time source for issuing and validating tokens
func WithClock(now func() time.Time) Option {
	return func(c *JWTCodec) { c.now = now }
}

// NewJWTCodec creates a new session codec signing with secret
func NewJWTCodec(secret []byte, opts ...Option) (*JWTCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	c := &JWTCodec{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultSessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ ports.SessionCodec = (*JWTCodec)(nil)

// Encode stamps session with a fresh ID, issue and expiry time and returns
// it as a signed token. Caller supplied times are overwritten.
func (c *JWTCodec) Encode(session *core.Session) (string, error) {
	if session == nil || session.Identity == "" {
		return "", fmt.Errorf("%w: session has no identity", core.ErrInvalidToken)
	}

	now := c.now().Truncate(jwt.TimePrecision)
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.IssuedAt = now
	session.ExpiresAt = now.Add(c.ttl)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Identity,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Version:  CurrentVersion,
		UserName: session.DisplayName,
	}
	if session.SubscriptionValidUntil != nil {
		ms := session.SubscriptionValidUntil.UnixMilli()
		claims.SubscriptionValidUntil = &ms
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	metrics.SessionsCreated.Inc()
	return signedToken, nil
}

// Decode verifies tokenStr and returns the session it carries. Errors wrap
// core.ErrTokenExpired or core.ErrInvalidToken.
func (c *JWTCodec) Decode(tokenStr string) (*core.Session, error) {
	session, err := c.decode(tokenStr)
	switch {
	case err == nil:
		metrics.SessionDecodes.WithLabelValues("ok").Inc()
	case errors.Is(err, core.ErrTokenExpired):
		metrics.SessionDecodes.WithLabelValues("expired").Inc()
	default:
		metrics.SessionDecodes.WithLabelValues("invalid").Inc()
	}
	return session, err
}

func (c *JWTCodec) decode(tokenStr string) (*core.Session, error) {
	if tokenStr == "" {
		return nil, fmt.Errorf("%w: empty token", core.ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(AudienceSession),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", core.ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", core.ErrInvalidToken)
	}
	if claims.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: unsupported claims version %d", core.ErrInvalidToken, claims.Version)
	}

	session := &core.Session{
		ID:          claims.ID,
		Identity:    claims.Subject,
		DisplayName: claims.UserName,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.SubscriptionValidUntil != nil {
		validUntil := time.UnixMilli(*claims.SubscriptionValidUntil)
		session.SubscriptionValidUntil = &validUntil
	}

	return session, nil
}
