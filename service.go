// Package polkauth assembles challenge-response authentication for Substrate
// keypairs into a ready to serve HTTP service.
package polkauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/polkauth/adapters/events"
	"github.com/layer-3/polkauth/adapters/store"
	"github.com/layer-3/polkauth/adapters/subscription"
	"github.com/layer-3/polkauth/adapters/tokenizer"
	"github.com/layer-3/polkauth/adapters/verifier"
	"github.com/layer-3/polkauth/internal/config"
	"github.com/layer-3/polkauth/internal/logging"
	"github.com/layer-3/polkauth/ports"
	"github.com/layer-3/polkauth/service"
	transport "github.com/layer-3/polkauth/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Service wires the configured components behind one HTTP router
type Service struct {
	logger    zerolog.Logger
	verifier  *verifier.Verifier
	auth      *service.AuthService
	guard     *service.SessionGuard
	router    *gin.Engine
	publisher message.Publisher
	redis     redis.UniversalClient
}

// NewService builds the component graph described by cfg. With a Redis URL
// challenges, events and transfers live in Redis; without one everything
// stays in process.
func NewService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	s := &Service{logger: logger}

	schemes, err := verifier.SchemesByName(cfg.Identity.Schemes)
	if err != nil {
		return nil, err
	}
	s.verifier = verifier.New(verifier.WithSchemes(schemes...), verifier.WithLogger(logger))

	codec, err := tokenizer.NewJWTCodec([]byte(cfg.Session.Secret), tokenizer.WithTTL(cfg.Session.TTL))
	if err != nil {
		return nil, err
	}

	var (
		challenges ports.ChallengeStore
		transfers  ports.TransferSource
	)
	wmLogger := logging.NewWatermillAdapter(logger)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		s.redis = redis.NewClient(opts)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.redis.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		s.publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: s.redis,
			},
			wmLogger,
		)
		if err != nil {
			s.redis.Close()
			return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
		}

		challenges = store.NewRedisStore(s.redis, store.WithTTL(cfg.Challenge.TTL))
		transfers = subscription.NewRedisTransferSource(s.redis)
	} else {
		logger.Warn().Msg("no Redis configured, challenges are kept in memory")
		s.publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		challenges = store.NewMemoryStore(store.WithTTL(cfg.Challenge.TTL))
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithEventPublisher(events.NewWatermillPublisher(s.publisher)),
		service.WithIdentityRules(service.IdentityRules{
			Length: cfg.Identity.Length,
			Prefix: cfg.Identity.SS58Prefix,
		}),
	}
	if cfg.SubscriptionEnabled() {
		if transfers == nil {
			logger.Warn().Msg("subscription lookup needs Redis, sessions will carry no subscription")
		} else {
			calc, err := subscription.NewCalculator(transfers, cfg.SubscriptionPrice(), subscription.WithPeriod(cfg.Subscription.Period))
			if err != nil {
				s.Close()
				return nil, err
			}
			opts = append(opts, service.WithSubscriptionLookup(calc, cfg.Subscription.Timeout))
		}
	}

	s.auth = service.NewAuthService(challenges, s.verifier, codec, opts...)
	s.guard = service.NewSessionGuard(codec, opts...)
	s.router = transport.SetupRouter(s.auth, s.guard, transport.RouterConfig{
		CookieSecure: cfg.Session.CookieSecure,
		Logger:       logger,
	})

	return s, nil
}

// Warmup initializes signature verification ahead of the first sign-in
func (s *Service) Warmup(ctx context.Context) error {
	return s.verifier.Warmup(ctx)
}

// Router returns the HTTP handler
func (s *Service) Router() *gin.Engine {
	return s.router
}

// AuthService exposes the sign-in flow for embedding without HTTP
func (s *Service) AuthService() *service.AuthService {
	return s.auth
}

// Guard exposes session checks for embedding without HTTP
func (s *Service) Guard() *service.SessionGuard {
	return s.guard
}

// Close releases the event publisher and the Redis connection
func (s *Service) Close() error {
	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}
