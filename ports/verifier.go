package ports

import "context"

// SignatureVerifier checks that signature over message was produced by identity's key.
// Malformed input yields false; an error means verification could not run at all.
type SignatureVerifier interface {
	Verify(ctx context.Context, message, signature []byte, identity string) (bool, error)
}
