package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with session specific ones
type SessionClaims struct {
	jwt.RegisteredClaims
	Version                int    `json:"ver"`
	UserName               string `json:"userName,omitempty"`
	SubscriptionValidUntil *int64 `json:"subscriptionValidUntil,omitempty"` // unix milliseconds
}
