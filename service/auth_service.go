package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/polkauth/core"
	"github.com/layer-3/polkauth/internal/metrics"
	"github.com/layer-3/polkauth/ports"
)

// SessionResult is a minted session together with its token
type SessionResult struct {
	Session *core.Session
	Token   string
}

// AuthService handles authentication business logic
type AuthService struct {
	store    ports.ChallengeStore
	verifier ports.SignatureVerifier
	codec    ports.SessionCodec
	options
}

// NewAuthService creates a new authentication service
func NewAuthService(
	store ports.ChallengeStore,
	verifier ports.SignatureVerifier,
	codec ports.SessionCodec,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		store:    store,
		verifier: verifier,
		codec:    codec,
		options:  defaultOptions(),
	}
	for _, opt := range opts {
		opt(&s.options)
	}
	return s
}

// RequestChallenge issues a fresh challenge for identity, superseding any
// challenge issued before
func (s *AuthService) RequestChallenge(ctx context.Context, identity string) (string, error) {
	verr := &core.ValidationError{}
	identity = s.rules.validateIdentity(identity, verr)
	if !verr.Empty() {
		return "", verr
	}

	nonce, err := s.store.Issue(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("failed to issue challenge: %w", err)
	}
	return nonce, nil
}

// SignIn authenticates req and mints a session. The challenge is consumed
// before the signature is checked, so a failed attempt always burns it.
//
// Errors are *core.ValidationError, core.ErrInvalidChallenge,
// core.ErrInvalidSignature, or an internal error.
func (s *AuthService) SignIn(ctx context.Context, req core.SignInRequest) (*SessionResult, error) {
	result, err := s.signIn(ctx, req)
	metrics.SignInAttempts.WithLabelValues(signInOutcome(err)).Inc()
	return result, err
}

func (s *AuthService) signIn(ctx context.Context, req core.SignInRequest) (*SessionResult, error) {
	// 1. Validate shape
	if verr := validateSignInRequest(s.rules, &req); verr != nil {
		return nil, verr
	}
	logger := s.logger.With().Str("identity", req.Identity).Logger()

	// 2. Consume challenge
	ok, err := s.store.Consume(ctx, req.Identity, req.SignedMessage.Challenge)
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !ok {
		logger.Debug().Msg("challenge rejected")
		return nil, core.ErrInvalidChallenge
	}

	// 3. Verify the signature over the exact signed bytes
	message, err := req.SignedMessage.CanonicalBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signed message: %w", err)
	}
	signature, err := decodeSignature(req.Signature)
	if err != nil {
		logger.Debug().Err(err).Msg("undecodable signature")
		return nil, core.ErrInvalidSignature
	}
	valid, err := s.verifier.Verify(ctx, message, signature, req.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}
	if !valid {
		logger.Debug().Msg("signature rejected")
		return nil, core.ErrInvalidSignature
	}

	// 4. Optional enrichment
	session := &core.Session{
		Identity:               req.Identity,
		DisplayName:            req.DisplayName,
		SubscriptionValidUntil: s.lookupSubscription(ctx, req.Identity),
	}

	// 5. Mint
	token, err := s.codec.Encode(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishSignedIn(ctx, session.Identity, session.ID); err != nil {
			logger.Warn().Err(err).Msg("failed to publish sign-in event")
		}
	}

	logger.Info().Str("session_id", session.ID).Msg("signed in")
	return &SessionResult{Session: session, Token: token}, nil
}

// lookupSubscription never fails: errors and timeouts mean no subscription
func (s *AuthService) lookupSubscription(ctx context.Context, identity string) *time.Time {
	if s.subscriptions == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	type lookupResult struct {
		validUntil *time.Time
		err        error
	}
	done := make(chan lookupResult, 1)
	go func() {
		validUntil, err := s.subscriptions.LookupSubscription(ctx, identity)
		done <- lookupResult{validUntil: validUntil, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			s.logger.Warn().Err(res.err).Str("identity", identity).Msg("subscription lookup failed")
			return nil
		}
		return res.validUntil
	case <-ctx.Done():
		s.logger.Warn().Err(ctx.Err()).Str("identity", identity).Msg("subscription lookup timed out")
		return nil
	}
}

// decodeSignature accepts hex with or without the 0x prefix
func decodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	return hexutil.Decode(signature)
}

func signInOutcome(err error) string {
	var verr *core.ValidationError
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.As(err, &verr):
		return metrics.ResultValidation
	case errors.Is(err, core.ErrInvalidChallenge):
		return metrics.ResultInvalidChallenge
	case errors.Is(err, core.ErrInvalidSignature):
		return metrics.ResultInvalidSignature
	default:
		return metrics.ResultInternal
	}
}
