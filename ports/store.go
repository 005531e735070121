package ports

import "context"

// ChallengeStore keeps at most one live challenge per identity
type ChallengeStore interface {
	// Issue creates a fresh nonce for identity, replacing any previous one
	Issue(ctx context.Context, identity string) (string, error)

	// Consume removes the challenge for identity and reports whether nonce matched.
	// The challenge is gone after the call whatever the result.
	Consume(ctx context.Context, identity, nonce string) (bool, error)
}
