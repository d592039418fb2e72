package goPasskey

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goPasskey/internal/rate"
)

// ValidateSession describes the validatesession operation and its observable behavior.
//
// ValidateSession may return an error when input validation, dependency calls, or security checks fail.
// ValidateSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*SessionInfo, error) {
	if token == "" {
		e.metricInc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	claims, err := e.tokens.Validate(token)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, err
	}

	e.metricInc(MetricValidateSuccess)
	if !start.IsZero() {
		e.metricObserve(MetricValidateLatency, time.Since(start))
	}

	return &SessionInfo{
		UserID:   claims.UID,
		Username: claims.Username,
	}, nil
}

// RefreshSession describes the refreshsession operation and its observable behavior.
//
// RefreshSession may return an error when input validation, dependency calls, or security checks fail.
// RefreshSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RefreshSession(ctx context.Context, token string) (string, error) {
	// An expired token cannot mint its successor; the holder goes back
	// through a full ceremony instead.
	claims, err := e.tokens.Validate(token)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, nil)
		return "", err
	}

	if err := e.rateLimiter.CheckRefresh(ctx, claims.UID); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			e.emitRateLimit(ctx, "refresh", claims.Username, nil)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, claims.UID, claims.Username, ErrRefreshRateLimited, nil)
			return "", ErrRefreshRateLimited
		}
		return "", errors.Join(ErrRateLimiterUnavailable, err)
	}

	newToken, err := e.tokens.Mint(claims.UID, claims.Username)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UID, claims.Username, err, nil)
		return "", err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.UID, claims.Username, nil, nil)

	return newToken, nil
}
