package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/polkauth/ports"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultKeyPrefix namespaces the per-identity transfer keys
const DefaultKeyPrefix = "polkauth:transfers:"

// RedisTransferSource reads transfers an indexer recorded for each identity.
// A sorted set holds transfer ids scored by unix milliseconds and a hash
// beside it maps each id to its amount.
type RedisTransferSource struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisTransferSource creates a transfer source backed by client
func NewRedisTransferSource(client redis.UniversalClient) *RedisTransferSource {
	return &RedisTransferSource{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
	}
}

var _ ports.TransferSource = (*RedisTransferSource)(nil)

func (s *RedisTransferSource) timesKey(identity string) string {
	return s.keyPrefix + identity
}

func (s *RedisTransferSource) amountsKey(identity string) string {
	return s.keyPrefix + identity + ":amounts"
}

// Record stores a transfer under id. Recording an id again replaces its
// time and amount.
func (s *RedisTransferSource) Record(ctx context.Context, identity, id string, transfer ports.Transfer) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.timesKey(identity), redis.Z{
			Score:  float64(transfer.At.UnixMilli()),
			Member: id,
		})
		pipe.HSet(ctx, s.amountsKey(identity), id, transfer.Amount.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}

// Transfers lists the transfers of identity, oldest first
func (s *RedisTransferSource) Transfers(ctx context.Context, identity string) ([]ports.Transfer, error) {
	entries, err := s.client.ZRangeWithScores(ctx, s.timesKey(identity), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read transfers: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]string, len(entries))
	for i, entry := range entries {
		id, ok := entry.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected transfer member type %T", entry.Member)
		}
		ids[i] = id
	}

	amounts, err := s.client.HMGet(ctx, s.amountsKey(identity), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer amounts: %w", err)
	}

	transfers := make([]ports.Transfer, 0, len(entries))
	for i, entry := range entries {
		raw, ok := amounts[i].(string)
		if !ok {
			return nil, fmt.Errorf("transfer %s has no amount", ids[i])
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode amount of transfer %s: %w", ids[i], err)
		}
		transfers = append(transfers, ports.Transfer{
			Amount: amount,
			At:     time.UnixMilli(int64(entry.Score)),
		})
	}
	return transfers, nil
}
