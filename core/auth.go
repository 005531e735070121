package core

import (
	"bytes"
	"encoding/json"
	"time"
)

// Challenge represents an authentication challenge issued to an identity
type Challenge struct {
	Identity string    // SS58 address the challenge was issued to
	Nonce    string    // Random value the client must embed in its signed message
	IssuedAt time.Time // When the challenge was created
}

// SignedMessage is the payload the client signs with its private key.
// Field order matters: it is serialized in declaration order.
type SignedMessage struct {
	Statement string `json:"statement"`
	URI       string `json:"uri"`
	Version   int    `json:"version"`
	Challenge string `json:"challenge"`
}

// CanonicalBytes returns the exact bytes the client signed: compact JSON with
// fields in declaration order and without HTML escaping.
func (m SignedMessage) CanonicalBytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// SignInRequest carries everything the client submits to sign in
type SignInRequest struct {
	Identity      string
	Signature     string // hex encoded, optionally 0x prefixed
	SignedMessage SignedMessage
	DisplayName   string
}

// Session represents an authenticated user session
type Session struct {
	ID                     string     // Unique session identifier
	Identity               string     // SS58 address of the user
	DisplayName            string     // Optional account name chosen in the wallet
	SubscriptionValidUntil *time.Time // Nil when the identity has no subscription
	IssuedAt               time.Time  // When the session was created
	ExpiresAt              time.Time  // When the session stops being accepted
}

// HasSubscriptionAt reports whether the session carries a subscription valid at t
func (s *Session) HasSubscriptionAt(t time.Time) bool {
	if s == nil || s.SubscriptionValidUntil == nil {
		return false
	}
	return !s.SubscriptionValidUntil.Before(t)
}
