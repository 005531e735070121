package store

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/layer-3/polkauth/core"
	"github.com/layer-3/polkauth/internal/metrics"
	"github.com/layer-3/polkauth/ports"
)

// DefaultChallengeTTL is how long an unconsumed challenge stays valid
const DefaultChallengeTTL = 5 * time.Minute

// nonceBytes of entropy encode to a 22 character URL-safe nonce
const nonceBytes = 16

// MemoryStore is an in-memory implementation of the ChallengeStore interface
type MemoryStore struct {
	challenges map[string]core.Challenge
	mu         sync.Mutex

	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// Option configures a challenge store
type Option func(*options)

type options struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
	prefix string
}

// WithTTL overrides DefaultChallengeTTL
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithClock sets the time source used for issue times and expiry
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRandom sets the entropy source nonces are drawn from
func WithRandom(r io.Reader) Option {
	return func(o *options) { o.random = r }
}

// WithKeyPrefix sets the key namespace used by RedisStore
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

func buildOptions(opts []Option) options {
	o := options{
		ttl:    DefaultChallengeTTL,
		now:    time.Now,
		random: rand.Reader,
		prefix: "polkauth:challenge:",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewMemoryStore creates a new in-memory challenge store
func NewMemoryStore(opts ...Option) ports.ChallengeStore {
	o := buildOptions(opts)
	return &MemoryStore{
		challenges: make(map[string]core.Challenge),
		ttl:        o.ttl,
		now:        o.now,
		random:     o.random,
	}
}

// Issue stores a fresh nonce for identity, replacing any previous one,
// and drops every challenge older than the TTL
func (s *MemoryStore) Issue(ctx context.Context, identity string) (string, error) {
	nonce, err := generateNonce(s.random)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.challenges[identity] = core.Challenge{Identity: identity, Nonce: nonce, IssuedAt: now}
	s.sweepLocked(now)

	metrics.ChallengesIssued.Inc()
	return nonce, nil
}

// Consume removes the challenge for identity before comparing it, so a
// challenge only ever answers one attempt
func (s *MemoryStore) Consume(ctx context.Context, identity, nonce string) (bool, error) {
	s.mu.Lock()
	entry, ok := s.challenges[identity]
	if ok {
		delete(s.challenges, identity)
	}
	now := s.now()
	s.mu.Unlock()

	if !ok || s.expired(entry, now) {
		metrics.ChallengesConsumed.WithLabelValues("missing").Inc()
		return false, nil
	}

	match := subtle.ConstantTimeCompare([]byte(entry.Nonce), []byte(nonce)) == 1
	if match {
		metrics.ChallengesConsumed.WithLabelValues("match").Inc()
	} else {
		metrics.ChallengesConsumed.WithLabelValues("mismatch").Inc()
	}
	return match, nil
}

// Pending returns the live challenge for identity without consuming it
func (s *MemoryStore) Pending(identity string) (core.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.challenges[identity]
	if !ok || s.expired(entry, s.now()) {
		return core.Challenge{}, false
	}
	return entry, true
}

// Len returns the number of stored challenges, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// sweepLocked removes expired challenges. Caller must hold mu.
func (s *MemoryStore) sweepLocked(now time.Time) {
	for identity, entry := range s.challenges {
		if s.expired(entry, now) {
			delete(s.challenges, identity)
			metrics.ChallengesSwept.Inc()
		}
	}
}

func (s *MemoryStore) expired(entry core.Challenge, now time.Time) bool {
	return now.Sub(entry.IssuedAt) > s.ttl
}

// generateNonce draws a URL-safe nonce from r
func generateNonce(r io.Reader) (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
