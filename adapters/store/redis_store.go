package store

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/layer-3/polkauth/internal/metrics"
	"github.com/layer-3/polkauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the ChallengeStore interface.
// Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	random io.Reader
}

// NewRedisStore creates a new Redis challenge store
func NewRedisStore(client redis.UniversalClient, opts ...Option) ports.ChallengeStore {
	o := buildOptions(opts)
	return &RedisStore{
		client: client,
		prefix: o.prefix,
		ttl:    o.ttl,
		random: o.random,
	}
}

// Issue stores a fresh nonce for identity, replacing any previous one
func (s *RedisStore) Issue(ctx context.Context, identity string) (string, error) {
	nonce, err := generateNonce(s.random)
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, s.key(identity), nonce, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}

	metrics.ChallengesIssued.Inc()
	return nonce, nil
}

// Consume atomically fetches and deletes the challenge, then compares it
func (s *RedisStore) Consume(ctx context.Context, identity, nonce string) (bool, error) {
	stored, err := s.client.GetDel(ctx, s.key(identity)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.ChallengesConsumed.WithLabelValues("missing").Inc()
			return false, nil
		}
		return false, fmt.Errorf("failed to consume challenge: %w", err)
	}

	match := subtle.ConstantTimeCompare([]byte(stored), []byte(nonce)) == 1
	if match {
		metrics.ChallengesConsumed.WithLabelValues("match").Inc()
	} else {
		metrics.ChallengesConsumed.WithLabelValues("mismatch").Inc()
	}
	return match, nil
}

func (s *RedisStore) key(identity string) string {
	return s.prefix + identity
}
