package service

import (
	"context"
	"errors"
	"time"

	"github.com/layer-3/polkauth/core"
	"github.com/layer-3/polkauth/internal/testkeys"
	"github.com/stretchr/testify/mock"
)

func (suite *AuthServiceTestSuite) mint(session *core.Session) string {
	token, err := suite.codec.Encode(session)
	suite.Require().NoError(err)
	return token
}

func (suite *AuthServiceTestSuite) TestCurrentSession_Unauthenticated() {
	for _, token := range []string{"", "garbage", "a.b.c"} {
		session, ok := suite.guard.CurrentSession(token)
		suite.False(ok)
		suite.Nil(session)
	}
}

func (suite *AuthServiceTestSuite) TestCurrentSession_ExpiresAfterSevenDays() {
	token := suite.mint(&core.Session{Identity: testkeys.NewEd25519().Address()})

	suite.clock.Advance(6 * 24 * time.Hour)
	_, ok := suite.guard.CurrentSession(token)
	suite.True(ok)

	suite.clock.Advance(2 * 24 * time.Hour)
	session, ok := suite.guard.CurrentSession(token)
	suite.False(ok)
	suite.Nil(session)
}

func (suite *AuthServiceTestSuite) TestRequireSubscription() {
	now := suite.clock.Now()
	justExpired := now.Add(-time.Millisecond)
	endsNow := now
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		session *core.Session
		want    Decision
	}{
		{
			name: "unauthenticated",
			want: Decision{RedirectTo: RedirectHome, Reason: ReasonUnauthenticated},
		},
		{
			name:    "no subscription",
			session: &core.Session{Identity: "x"},
			want:    Decision{RedirectTo: RedirectSubscribe, Reason: ReasonSubscribe},
		},
		{
			name:    "expired one millisecond ago",
			session: &core.Session{Identity: "x", SubscriptionValidUntil: &justExpired},
			want:    Decision{RedirectTo: RedirectSubscribe, Reason: ReasonSubscribe},
		},
		{
			name:    "ends right now",
			session: &core.Session{Identity: "x", SubscriptionValidUntil: &endsNow},
			want:    Decision{Allowed: true},
		},
		{
			name:    "active",
			session: &core.Session{Identity: "x", SubscriptionValidUntil: &future},
			want:    Decision{Allowed: true},
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.Equal(tt.want, suite.guard.RequireSubscription(tt.session))
		})
	}
}

func (suite *AuthServiceTestSuite) TestRefresh_SlidesExpiry() {
	original := &core.Session{Identity: testkeys.NewEd25519().Address(), DisplayName: "main"}
	token := suite.mint(original)

	suite.clock.Advance(5 * 24 * time.Hour)
	session, ok := suite.guard.CurrentSession(token)
	suite.Require().True(ok)

	refreshed, err := suite.guard.Refresh(session)
	suite.Require().NoError(err)
	suite.Equal(original.ID, refreshed.Session.ID)
	suite.Equal("main", refreshed.Session.DisplayName)
	suite.True(refreshed.Session.ExpiresAt.After(original.ExpiresAt))

	// The old token would be gone by now, the refreshed one is not
	suite.clock.Advance(4 * 24 * time.Hour)
	_, ok = suite.guard.CurrentSession(token)
	suite.False(ok)
	_, ok = suite.guard.CurrentSession(refreshed.Token)
	suite.True(ok)
}

func (suite *AuthServiceTestSuite) TestRefresh_NilSession() {
	_, err := suite.guard.Refresh(nil)
	suite.ErrorIs(err, core.ErrInvalidToken)
}

func (suite *AuthServiceTestSuite) TestLogout() {
	ctx := context.Background()
	session := &core.Session{ID: "session-1", Identity: "alice"}
	suite.events.On("PublishLogout", mock.Anything, "alice", "session-1").Return(nil).Once()

	suite.guard.Logout(ctx, session)
	suite.guard.Logout(ctx, nil)

	suite.events.AssertExpectations(suite.T())
}

func (suite *AuthServiceTestSuite) TestLogout_PublishFailureIsIgnored() {
	suite.events.On("PublishLogout", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	suite.NotPanics(func() {
		suite.guard.Logout(context.Background(), &core.Session{ID: "session-1", Identity: "alice"})
	})
}

func (suite *AuthServiceTestSuite) TestLogout_WithoutPublisher() {
	guard := NewSessionGuard(suite.codec)

	suite.NotPanics(func() {
		guard.Logout(context.Background(), &core.Session{ID: "session-1", Identity: "alice"})
	})
}
