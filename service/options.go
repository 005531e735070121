package service

import (
	"time"

	"github.com/layer-3/polkauth/ports"
	"github.com/rs/zerolog"
)

// DefaultLookupTimeout bounds the subscription lookup made during sign-in
const DefaultLookupTimeout = 3 * time.Second

type options struct {
	logger        zerolog.Logger
	events        ports.EventPublisher
	subscriptions ports.SubscriptionLookup
	lookupTimeout time.Duration
	rules         IdentityRules
	now           func() time.Time
}

func defaultOptions() options {
	return options{
		logger:        zerolog.Nop(),
		lookupTimeout: DefaultLookupTimeout,
		rules:         DefaultIdentityRules(),
		now:           time.Now,
	}
}

// Option configures AuthService and SessionGuard
type Option func(*options)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEventPublisher enables sign-in and logout events
func WithEventPublisher(events ports.EventPublisher) Option {
	return func(o *options) { o.events = events }
}

// WithSubscriptionLookup enriches new sessions with the subscription expiry.
// A non-positive timeout keeps DefaultLookupTimeout.
func WithSubscriptionLookup(lookup ports.SubscriptionLookup, timeout time.Duration) Option {
	return func(o *options) {
		o.subscriptions = lookup
		if timeout > 0 {
			o.lookupTimeout = timeout
		}
	}
}

// WithIdentityRules overrides DefaultIdentityRules
func WithIdentityRules(rules IdentityRules) Option {
	return func(o *options) { o.rules = rules }
}

// WithClock sets the time source used for subscription checks
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
