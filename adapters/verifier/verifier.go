package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/polkauth/core"
	"github.com/layer-3/polkauth/internal/lazy"
	"github.com/layer-3/polkauth/internal/metrics"
	"github.com/layer-3/polkauth/internal/ss58"
	"github.com/layer-3/polkauth/ports"
	"github.com/rs/zerolog"
)

// Verifier checks signatures made by the key behind an SS58 identity,
// trying each configured scheme in order
type Verifier struct {
	schemes []Scheme
	ready   *lazy.Value[struct{}]
	logger  zerolog.Logger
}

// Option configures a Verifier
type Option func(*Verifier)

// WithSchemes replaces the default scheme list
func WithSchemes(schemes ...Scheme) Option {
	return func(v *Verifier) { v.schemes = schemes }
}

// WithLogger sets the logger used for warm-up reporting
func WithLogger(logger zerolog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// DefaultSchemes returns the schemes Substrate accounts use, most common first
func DefaultSchemes() []Scheme {
	return []Scheme{Sr25519{}, Ed25519{}, Ecdsa{}}
}

// New creates a Verifier. Cryptographic warm-up runs on first use.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		schemes: DefaultSchemes(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.ready = lazy.New(v.warmup)
	return v
}

var _ ports.SignatureVerifier = (*Verifier)(nil)

// Warmup runs the one-time initialization now instead of on the first Verify
func (v *Verifier) Warmup(ctx context.Context) error {
	if _, err := v.ready.Get(ctx); err != nil {
		return fmt.Errorf("%w: %v", core.ErrCryptoUnavailable, err)
	}
	return nil
}

// Verify reports whether signature over message was made by identity.
// Malformed identities or signatures yield false, never an error.
func (v *Verifier) Verify(ctx context.Context, message, signature []byte, identity string) (bool, error) {
	if err := v.Warmup(ctx); err != nil {
		return false, err
	}

	_, accountID, err := ss58.Decode(identity)
	if err != nil {
		return false, nil
	}

	candidates := [][]byte{message, wrapBytes(message)}
	for _, scheme := range v.schemes {
		start := time.Now()
		ok := verifyAny(scheme, candidates, signature, accountID)
		metrics.SignatureVerifyDuration.WithLabelValues(scheme.Name()).Observe(time.Since(start).Seconds())
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func verifyAny(scheme Scheme, candidates [][]byte, signature, accountID []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	for _, msg := range candidates {
		if scheme.Verify(msg, signature, accountID) {
			return true
		}
	}
	return false
}

func (v *Verifier) warmup() (struct{}, error) {
	start := time.Now()
	for _, scheme := range v.schemes {
		tester, ok := scheme.(SelfTester)
		if !ok {
			continue
		}
		if err := tester.SelfTest(); err != nil {
			v.logger.Error().Err(err).Str("scheme", scheme.Name()).Msg("signature scheme self-test failed")
			return struct{}{}, fmt.Errorf("%s self-test: %w", scheme.Name(), err)
		}
	}
	v.logger.Info().Dur("took", time.Since(start)).Int("schemes", len(v.schemes)).Msg("signature verification ready")
	return struct{}{}, nil
}
