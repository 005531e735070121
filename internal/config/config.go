package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Prefix is prepended to every environment variable name
const Prefix = "polkauth"

// MinSecretLength is the shortest accepted HMAC secret, in bytes
const MinSecretLength = 32

// SessionConfig controls session tokens and the cookie carrying them
type SessionConfig struct {
	Secret       string        `envconfig:"SECRET" required:"true"`
	TTL          time.Duration `envconfig:"TTL" default:"168h"`
	CookieSecure bool          `envconfig:"COOKIE_SECURE" default:"true"`
}

// ChallengeConfig controls challenge issuance
type ChallengeConfig struct {
	TTL time.Duration `envconfig:"TTL" default:"5m"`
}

// IdentityConfig controls which addresses are accepted
type IdentityConfig struct {
	Length     int      `envconfig:"LENGTH" default:"48"`
	SS58Prefix int      `envconfig:"SS58_PREFIX" default:"-1"`
	Schemes    []string `envconfig:"SIGNATURE_SCHEMES" default:"sr25519,ed25519,ecdsa"`
}

// SubscriptionConfig controls the optional subscription lookup at sign-in
type SubscriptionConfig struct {
	Price   string        `envconfig:"PRICE"`
	Period  time.Duration `envconfig:"PERIOD" default:"720h"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"3s"`
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Pretty bool   `envconfig:"PRETTY" default:"false"`
}

// Config is the complete process configuration
type Config struct {
	HTTPAddr     string             `envconfig:"HTTP_ADDR" default:":9000"`
	RedisURL     string             `envconfig:"REDIS_URL"`
	Session      SessionConfig      `envconfig:"SESSION"`
	Challenge    ChallengeConfig    `envconfig:"CHALLENGE"`
	Identity     IdentityConfig     `envconfig:"IDENTITY"`
	Subscription SubscriptionConfig `envconfig:"SUBSCRIPTION"`
	Logging      LoggingConfig      `envconfig:"LOG"`
}

// LoadFile loads a .env file into the process environment if it exists
func LoadFile(filename string) error {
	if filename == "" {
		filename = ".env"
	}
	err := godotenv.Load(filename)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot express
func (c *Config) Validate() error {
	if len(c.Session.Secret) < MinSecretLength {
		return fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Challenge.TTL <= 0 {
		return errors.New("challenge ttl must be positive")
	}
	if c.Identity.Length <= 0 {
		return errors.New("identity length must be positive")
	}
	if c.Identity.SS58Prefix < -1 || c.Identity.SS58Prefix > 16383 {
		return fmt.Errorf("ss58 prefix %d out of range", c.Identity.SS58Prefix)
	}
	if len(c.Identity.Schemes) == 0 {
		return errors.New("at least one signature scheme is required")
	}
	for i, s := range c.Identity.Schemes {
		c.Identity.Schemes[i] = strings.ToLower(strings.TrimSpace(s))
	}
	if c.Subscription.Price != "" {
		price, err := decimal.NewFromString(c.Subscription.Price)
		if err != nil {
			return fmt.Errorf("invalid subscription price: %w", err)
		}
		if !price.IsPositive() {
			return errors.New("subscription price must be positive")
		}
		if c.Subscription.Period <= 0 {
			return errors.New("subscription period must be positive")
		}
	}
	return nil
}

// SubscriptionEnabled reports whether sign-in should look up subscriptions
func (c *Config) SubscriptionEnabled() bool {
	return c.Subscription.Price != ""
}

// SubscriptionPrice returns the configured price per period
func (c *Config) SubscriptionPrice() decimal.Decimal {
	price, _ := decimal.NewFromString(c.Subscription.Price)
	return price
}
