package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/polkauth/adapters/store"
	"github.com/layer-3/polkauth/adapters/tokenizer"
	"github.com/layer-3/polkauth/adapters/verifier"
	"github.com/layer-3/polkauth/core"
	"github.com/layer-3/polkauth/internal/testkeys"
	"github.com/layer-3/polkauth/ports"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishSignedIn(ctx context.Context, identity string, sessionID string) error {
	args := m.Called(ctx, identity, sessionID)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishLogout(ctx context.Context, identity string, sessionID string) error {
	args := m.Called(ctx, identity, sessionID)
	return args.Error(0)
}

// MockSubscriptionLookup is a mock implementation of ports.SubscriptionLookup
type MockSubscriptionLookup struct {
	mock.Mock
}

func (m *MockSubscriptionLookup) LookupSubscription(ctx context.Context, identity string) (*time.Time, error) {
	args := m.Called(ctx, identity)
	if got := args.Get(0); got != nil {
		return got.(*time.Time), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockVerifier is a mock implementation of ports.SignatureVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, message, signature []byte, identity string) (bool, error) {
	args := m.Called(ctx, message, signature, identity)
	return args.Bool(0), args.Error(1)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// AuthServiceTestSuite runs sign-in flows against the real store, verifier and codec
type AuthServiceTestSuite struct {
	suite.Suite
	verifier *verifier.Verifier

	clock  *fakeClock
	store  ports.ChallengeStore
	codec  *tokenizer.JWTCodec
	events *MockEventPublisher
	svc    *AuthService
	guard  *SessionGuard
}

func (suite *AuthServiceTestSuite) SetupSuite() {
	suite.verifier = verifier.New()
	suite.Require().NoError(suite.verifier.Warmup(context.Background()))
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.clock = &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	suite.store = store.NewMemoryStore(store.WithClock(suite.clock.Now))

	codec, err := tokenizer.NewJWTCodec([]byte(testSecret), tokenizer.WithClock(suite.clock.Now))
	suite.Require().NoError(err)
	suite.codec = codec

	suite.events = new(MockEventPublisher)
	suite.svc = NewAuthService(suite.store, suite.verifier, suite.codec, WithEventPublisher(suite.events))
	suite.guard = NewSessionGuard(suite.codec, WithEventPublisher(suite.events), WithClock(suite.clock.Now))
}

func (suite *AuthServiceTestSuite) signedRequest(key testkeys.Key, nonce string) core.SignInRequest {
	msg := core.SignedMessage{
		Statement: "Sign in to polkauth",
		URI:       "https://x",
		Version:   1,
		Challenge: nonce,
	}
	raw, err := msg.CanonicalBytes()
	suite.Require().NoError(err)

	return core.SignInRequest{
		Identity:      key.Address(),
		Signature:     testkeys.SignHex(key, raw),
		SignedMessage: msg,
		DisplayName:   "main account",
	}
}

func (suite *AuthServiceTestSuite) requestChallenge(key testkeys.Key) string {
	nonce, err := suite.svc.RequestChallenge(context.Background(), key.Address())
	suite.Require().NoError(err)
	suite.Require().NotEmpty(nonce)
	return nonce
}

func (suite *AuthServiceTestSuite) TestSignIn_Success() {
	ctx := context.Background()
	key := testkeys.NewSr25519()
	suite.events.On("PublishSignedIn", mock.Anything, key.Address(), mock.AnythingOfType("string")).Return(nil)

	nonce := suite.requestChallenge(key)
	result, err := suite.svc.SignIn(ctx, suite.signedRequest(key, nonce))

	suite.Require().NoError(err)
	suite.Equal(key.Address(), result.Session.Identity)
	suite.Equal("main account", result.Session.DisplayName)
	suite.Nil(result.Session.SubscriptionValidUntil)
	suite.True(suite.clock.Now().Add(tokenizer.DefaultSessionTTL).Equal(result.Session.ExpiresAt))

	session, ok := suite.guard.CurrentSession(result.Token)
	suite.Require().True(ok)
	suite.Equal(key.Address(), session.Identity)
	suite.Equal(result.Session.ID, session.ID)
	suite.events.AssertCalled(suite.T(), "PublishSignedIn", mock.Anything, key.Address(), result.Session.ID)
}

func (suite *AuthServiceTestSuite) TestSignIn_EachScheme() {
	suite.events.On("PublishSignedIn", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	for _, key := range []testkeys.Key{testkeys.NewSr25519(), testkeys.NewEd25519(), testkeys.NewEcdsa()} {
		nonce := suite.requestChallenge(key)
		_, err := suite.svc.SignIn(context.Background(), suite.signedRequest(key, nonce))
		suite.NoError(err)
	}
}

func (suite *AuthServiceTestSuite) TestSignIn_WrongKeyBurnsChallenge() {
	ctx := context.Background()
	alice := testkeys.NewSr25519()
	mallory := testkeys.NewSr25519()

	nonce := suite.requestChallenge(alice)
	req := suite.signedRequest(alice, nonce)
	forged := suite.signedRequest(mallory, nonce)
	req.Signature = forged.Signature

	result, err := suite.svc.SignIn(ctx, req)
	suite.ErrorIs(err, core.ErrInvalidSignature)
	suite.Nil(result)

	// A correct retry needs a new challenge
	result, err = suite.svc.SignIn(ctx, suite.signedRequest(alice, nonce))
	suite.ErrorIs(err, core.ErrInvalidChallenge)
	suite.Nil(result)
	suite.events.AssertNotCalled(suite.T(), "PublishSignedIn", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *AuthServiceTestSuite) TestSignIn_UnknownChallenge() {
	key := testkeys.NewEd25519()
	suite.requestChallenge(key)

	_, err := suite.svc.SignIn(context.Background(), suite.signedRequest(key, "not-the-nonce"))
	suite.ErrorIs(err, core.ErrInvalidChallenge)
}

func (suite *AuthServiceTestSuite) TestSignIn_NoChallengeIssued() {
	key := testkeys.NewEd25519()

	_, err := suite.svc.SignIn(context.Background(), suite.signedRequest(key, "anything"))
	suite.ErrorIs(err, core.ErrInvalidChallenge)
}

func (suite *AuthServiceTestSuite) TestSignIn_ExpiredChallenge() {
	key := testkeys.NewEd25519()
	nonce := suite.requestChallenge(key)
	suite.clock.Advance(store.DefaultChallengeTTL + time.Second)

	_, err := suite.svc.SignIn(context.Background(), suite.signedRequest(key, nonce))
	suite.ErrorIs(err, core.ErrInvalidChallenge)
}

func (suite *AuthServiceTestSuite) TestSignIn_ReissueSupersedes() {
	key := testkeys.NewEd25519()
	first := suite.requestChallenge(key)
	suite.requestChallenge(key)

	_, err := suite.svc.SignIn(context.Background(), suite.signedRequest(key, first))
	suite.ErrorIs(err, core.ErrInvalidChallenge)
}

func (suite *AuthServiceTestSuite) TestSignIn_BadURILeavesChallenge() {
	ctx := context.Background()
	suite.events.On("PublishSignedIn", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	key := testkeys.NewEd25519()
	nonce := suite.requestChallenge(key)

	req := suite.signedRequest(key, nonce)
	req.SignedMessage.URI = "ftp://x"

	_, err := suite.svc.SignIn(ctx, req)
	var verr *core.ValidationError
	suite.Require().ErrorAs(err, &verr)
	suite.Equal([]string{"URI must start with http or https"}, verr.Fields[core.FieldSignedMessage])
	suite.NotContains(verr.Fields, core.FieldIdentity)

	// The challenge is still live
	_, err = suite.svc.SignIn(ctx, suite.signedRequest(key, nonce))
	suite.NoError(err)
}

func (suite *AuthServiceTestSuite) TestSignIn_ValidationErrors() {
	key := testkeys.NewEd25519()
	valid := key.Address()
	badChecksum := valid[:len(valid)-1] + string(flip(valid[len(valid)-1]))

	tests := []struct {
		name   string
		modify func(*core.SignInRequest)
		field  string
		msg    string
	}{
		{
			name:   "short identity",
			modify: func(r *core.SignInRequest) { r.Identity = "5Grw" },
			field:  core.FieldIdentity,
			msg:    "Identity must be 48 characters long.",
		},
		{
			name:   "bad checksum",
			modify: func(r *core.SignInRequest) { r.Identity = badChecksum },
			field:  core.FieldIdentity,
			msg:    "Invalid SS58 address",
		},
		{
			name:   "missing signature",
			modify: func(r *core.SignInRequest) { r.Signature = "  " },
			field:  core.FieldSignature,
			msg:    "Signature is required",
		},
		{
			name:   "missing challenge",
			modify: func(r *core.SignInRequest) { r.SignedMessage.Challenge = "" },
			field:  core.FieldSignedMessage,
			msg:    "Challenge is required",
		},
		{
			name:   "schemeless uri",
			modify: func(r *core.SignInRequest) { r.SignedMessage.URI = "example.com" },
			field:  core.FieldSignedMessage,
			msg:    "URI must start with http or https",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			req := suite.signedRequest(key, "nonce")
			tt.modify(&req)

			_, err := suite.svc.SignIn(context.Background(), req)
			var verr *core.ValidationError
			suite.Require().ErrorAs(err, &verr)
			suite.Contains(verr.Fields[tt.field], tt.msg)
		})
	}
}

func (suite *AuthServiceTestSuite) TestSignIn_TrimsIdentity() {
	suite.events.On("PublishSignedIn", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	key := testkeys.NewEd25519()
	nonce := suite.requestChallenge(key)

	req := suite.signedRequest(key, nonce)
	req.Identity = " " + req.Identity + "\n"

	result, err := suite.svc.SignIn(context.Background(), req)
	suite.Require().NoError(err)
	suite.Equal(key.Address(), result.Session.Identity)
}

func (suite *AuthServiceTestSuite) TestSignIn_SignatureWithoutPrefix() {
	suite.events.On("PublishSignedIn", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	key := testkeys.NewEd25519()
	nonce := suite.requestChallenge(key)

	req := suite.signedRequest(key, nonce)
	req.Signature = req.Signature[2:]

	_, err := suite.svc.SignIn(context.Background(), req)
	suite.NoError(err)
}

func (suite *AuthServiceTestSuite) TestSignIn_UndecodableSignatureBurnsChallenge() {
	ctx := context.Background()
	key := testkeys.NewEd25519()
	nonce := suite.requestChallenge(key)

	req := suite.signedRequest(key, nonce)
	req.Signature = "0xzz"

	_, err := suite.svc.SignIn(ctx, req)
	suite.ErrorIs(err, core.ErrInvalidSignature)

	_, err = suite.svc.SignIn(ctx, suite.signedRequest(key, nonce))
	suite.ErrorIs(err, core.ErrInvalidChallenge)
}

func (suite *AuthServiceTestSuite) TestSignIn_PublishFailureIsIgnored() {
	suite.events.On("PublishSignedIn", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	key := testkeys.NewEd25519()
	nonce := suite.requestChallenge(key)

	result, err := suite.svc.SignIn(context.Background(), suite.signedRequest(key, nonce))
	suite.Require().NoError(err)
	suite.NotEmpty(result.Token)
}

func (suite *AuthServiceTestSuite) TestSignIn_SubscriptionEnrichment() {
	ctx := context.Background()
	suite.events.On("PublishSignedIn", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	key := testkeys.NewEd25519()
	validUntil := suite.clock.Now().Add(10 * 24 * time.Hour)

	lookup := new(MockSubscriptionLookup)
	lookup.On("LookupSubscription", mock.Anything, key.Address()).Return(&validUntil, nil)
	svc := NewAuthService(suite.store, suite.verifier, suite.codec,
		WithEventPublisher(suite.events),
		WithSubscriptionLookup(lookup, time.Second),
	)

	nonce, err := svc.RequestChallenge(ctx, key.Address())
	suite.Require().NoError(err)
	result, err := svc.SignIn(ctx, suite.signedRequest(key, nonce))
	suite.Require().NoError(err)

	session, ok := suite.guard.CurrentSession(result.Token)
	suite.Require().True(ok)
	suite.Require().NotNil(session.SubscriptionValidUntil)
	suite.True(validUntil.Equal(*session.SubscriptionValidUntil))
	suite.True(suite.guard.RequireSubscription(session).Allowed)
	lookup.AssertExpectations(suite.T())
}

func (suite *AuthServiceTestSuite) TestSignIn_SubscriptionLookupFailure() {
	ctx := context.Background()
	suite.events.On("PublishSignedIn", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	key := testkeys.NewEd25519()

	lookup := new(MockSubscriptionLookup)
	lookup.On("LookupSubscription", mock.Anything, key.Address()).Return(nil, errors.New("indexer offline"))
	svc := NewAuthService(suite.store, suite.verifier, suite.codec,
		WithEventPublisher(suite.events),
		WithSubscriptionLookup(lookup, time.Second),
	)

	nonce, err := svc.RequestChallenge(ctx, key.Address())
	suite.Require().NoError(err)
	result, err := svc.SignIn(ctx, suite.signedRequest(key, nonce))
	suite.Require().NoError(err)
	suite.Nil(result.Session.SubscriptionValidUntil)
}

type blockingLookup struct {
	release chan struct{}
}

func (l blockingLookup) LookupSubscription(context.Context, string) (*time.Time, error) {
	<-l.release
	validUntil := time.Now()
	return &validUntil, nil
}

func (suite *AuthServiceTestSuite) TestSignIn_SubscriptionLookupTimeout() {
	ctx := context.Background()
	suite.events.On("PublishSignedIn", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	key := testkeys.NewEd25519()

	lookup := blockingLookup{release: make(chan struct{})}
	defer close(lookup.release)
	svc := NewAuthService(suite.store, suite.verifier, suite.codec,
		WithEventPublisher(suite.events),
		WithSubscriptionLookup(lookup, 20*time.Millisecond),
	)

	nonce, err := svc.RequestChallenge(ctx, key.Address())
	suite.Require().NoError(err)
	result, err := svc.SignIn(ctx, suite.signedRequest(key, nonce))
	suite.Require().NoError(err)
	suite.Nil(result.Session.SubscriptionValidUntil)
}

func (suite *AuthServiceTestSuite) TestSignIn_CryptoUnavailable() {
	ctx := context.Background()
	key := testkeys.NewEd25519()

	v := new(MockVerifier)
	v.On("Verify", mock.Anything, mock.Anything, mock.Anything, key.Address()).Return(false, core.ErrCryptoUnavailable)
	svc := NewAuthService(suite.store, v, suite.codec)

	nonce, err := svc.RequestChallenge(ctx, key.Address())
	suite.Require().NoError(err)
	_, err = svc.SignIn(ctx, suite.signedRequest(key, nonce))
	suite.ErrorIs(err, core.ErrCryptoUnavailable)
	suite.NotErrorIs(err, core.ErrInvalidSignature)
}

func (suite *AuthServiceTestSuite) TestSignIn_VerifiesCanonicalMessage() {
	ctx := context.Background()
	key := testkeys.NewEd25519()
	nonce := suite.requestChallenge(key)
	req := suite.signedRequest(key, nonce)

	v := new(MockVerifier)
	expected := []byte(`{"statement":"Sign in to polkauth","uri":"https://x","version":1,"challenge":"` + nonce + `"}`)
	v.On("Verify", mock.Anything, expected, mock.Anything, key.Address()).Return(false, nil)
	svc := NewAuthService(suite.store, v, suite.codec)

	_, err := svc.SignIn(ctx, req)
	suite.ErrorIs(err, core.ErrInvalidSignature)
	v.AssertExpectations(suite.T())
}

func (suite *AuthServiceTestSuite) TestRequestChallenge_Validation() {
	_, err := suite.svc.RequestChallenge(context.Background(), "not-an-address")
	var verr *core.ValidationError
	suite.Require().ErrorAs(err, &verr)
	suite.Contains(verr.Fields, core.FieldIdentity)
}

func (suite *AuthServiceTestSuite) TestRequestChallenge_PrefixRule() {
	svc := NewAuthService(suite.store, suite.verifier, suite.codec,
		WithIdentityRules(IdentityRules{Length: 48, Prefix: 0}),
	)

	// Generic substrate addresses use prefix 42
	_, err := svc.RequestChallenge(context.Background(), testkeys.NewEd25519().Address())
	var verr *core.ValidationError
	suite.Require().ErrorAs(err, &verr)
	suite.Equal([]string{"Identity must use network prefix 0"}, verr.Fields[core.FieldIdentity])
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

// flip returns a different base58 character
func flip(c byte) byte {
	if c == 'z' {
		return 'y'
	}
	return 'z'
}
