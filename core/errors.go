package core

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidChallenge  = errors.New("invalid or expired challenge")
	ErrInvalidIdentity   = errors.New("invalid identity")
	ErrCryptoUnavailable = errors.New("signature verification unavailable")
)

// Field names used as keys in ValidationError.Fields
const (
	FieldIdentity      = "identity"
	FieldSignature     = "signature"
	FieldSignedMessage = "signedMessage"
	FieldDisplayName   = "displayName"
)

// ValidationError carries field level messages for a malformed request
type ValidationError struct {
	Fields map[string][]string
}

// Add appends a message for field
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no field has failed
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
