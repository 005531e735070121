package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Challenge metrics
	ChallengesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polkauth_challenges_issued_total",
			Help: "Total number of challenges issued",
		},
	)

	ChallengesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polkauth_challenges_consumed_total",
			Help: "Total number of challenge consumption attempts",
		},
		[]string{"result"}, // match or mismatch
	)

	ChallengesSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polkauth_challenges_swept_total",
			Help: "Total number of expired challenges removed by the sweep",
		},
	)

	// Sign-in metrics
	SignInAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polkauth_signin_attempts_total",
			Help: "Total number of sign-in attempts",
		},
		[]string{"result"},
	)

	SignatureVerifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polkauth_signature_verify_seconds",
			Help:    "Duration of signature verification in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scheme"},
	)

	// Session metrics
	SessionDecodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polkauth_session_decodes_total",
			Help: "Total number of session token decodes",
		},
		[]string{"result"}, // ok, expired or invalid
	)

	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polkauth_sessions_created_total",
			Help: "Total number of sessions minted",
		},
	)
)

// Sign-in results
const (
	ResultSuccess          = "success"
	ResultValidation       = "validation_error"
	ResultInvalidChallenge = "invalid_challenge"
	ResultInvalidSignature = "invalid_signature"
	ResultInternal         = "internal_error"
)
