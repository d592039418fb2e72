package goPasskey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goPasskey/ceremony"
	"github.com/MrEthical07/goPasskey/internal/rate"
	"github.com/MrEthical07/goPasskey/internal/stores"
	"github.com/MrEthical07/goPasskey/jwt"
)

// Engine defines a public type used by goPasskey APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	verifier    *ceremony.Verifier
	challenges  *stores.ChallengeStore
	rateLimiter *rate.Limiter
	audit       *auditDispatcher
	metrics     *Metrics
	tokens      *jwt.Manager
	provider    CredentialProvider
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// UsernameExists describes the usernameexists operation and its observable behavior.
//
// UsernameExists may return an error when input validation, dependency calls, or security checks fail.
// UsernameExists does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UsernameExists(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, ErrUsernameRequired
	}

	_, err := e.provider.GetIdentityByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return false, nil
		}
		return false, e.providerErr(err)
	}
	return true, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// providerErr passes through the provider's sentinel errors and wraps
// everything else as a backend failure so raw storage errors never reach
// callers.
func (e *Engine) providerErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrIdentityNotFound),
		errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrUnknownCredential),
		errors.Is(err, ErrReplayDetected):
		return err
	default:
		return errors.Join(ErrProviderUnavailable, err)
	}
}

// ceremonyError normalizes a verifier failure. The diagnostic suffix names
// which check failed (challenge, origin, RP-ID hash, signature) without
// exposing the library's error types.
func ceremonyError(err error) error {
	return fmt.Errorf("%w: %s", ErrCeremonyFailed, ceremony.Reason(err))
}

// consumeChallenge atomically redeems a pending ceremony of the expected
// kind. Every failure mode collapses to ErrInvalidChallenge except backend
// unavailability.
func (e *Engine) consumeChallenge(
	ctx context.Context,
	challenge string,
	kind stores.CeremonyKind,
) (*stores.PendingCeremony, error) {
	record, err := e.challenges.Consume(ctx, challenge)
	if err != nil {
		if errors.Is(err, stores.ErrChallengeBackend) {
			return nil, errors.Join(ErrChallengeUnavailable, err)
		}
		e.metricInc(MetricChallengeInvalid)
		return nil, ErrInvalidChallenge
	}
	if record.Kind != kind {
		e.metricInc(MetricChallengeInvalid)
		return nil, ErrInvalidChallenge
	}
	return record, nil
}
