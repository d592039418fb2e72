package goPasskey

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegistrationChallenge   = "registration_challenge_issued"
	auditEventRegistrationSuccess     = "registration_success"
	auditEventRegistrationFailure     = "registration_failure"
	auditEventRegistrationRateLimited = "registration_rate_limited"
	auditEventLoginChallenge          = "login_challenge_issued"
	auditEventLoginSuccess            = "login_success"
	auditEventLoginFailure            = "login_failure"
	auditEventLoginReplayDetected     = "login_replay_detected"
	auditEventLoginRateLimited        = "login_rate_limited"
	auditEventRefreshSuccess          = "refresh_success"
	auditEventRefreshInvalid          = "refresh_invalid"
	auditEventRefreshRateLimited      = "refresh_rate_limited"
	auditEventRateLimitTriggered      = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by goPasskey APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrValidation       AuditErrorCode = "validation"
	auditErrDuplicate        AuditErrorCode = "duplicate"
	auditErrIdentityNotFound AuditErrorCode = "identity_not_found"
	auditErrUnknownCred      AuditErrorCode = "unknown_credential"
	auditErrInvalidChallenge AuditErrorCode = "invalid_challenge"
	auditErrCeremonyFailed   AuditErrorCode = "ceremony_failed"
	auditErrReplay           AuditErrorCode = "replay_detected"
	auditErrRateLimited      AuditErrorCode = "rate_limited"
	auditErrTokenExpired     AuditErrorCode = "token_expired"
	auditErrInvalidToken     AuditErrorCode = "invalid_token"
	auditErrUnavailable      AuditErrorCode = "backend_unavailable"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	username string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Username:  username,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	username string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", username, nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUsernameRequired),
		errors.Is(err, ErrCredentialRequired):
		return auditErrValidation
	case errors.Is(err, ErrUsernameTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrIdentityNotFound):
		return auditErrIdentityNotFound
	case errors.Is(err, ErrUnknownCredential):
		return auditErrUnknownCred
	case errors.Is(err, ErrInvalidChallenge):
		return auditErrInvalidChallenge
	case errors.Is(err, ErrReplayDetected):
		return auditErrReplay
	case errors.Is(err, ErrCeremonyFailed):
		return auditErrCeremonyFailed
	case errors.Is(err, ErrRegistrationRateLimited),
		errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrChallengeUnavailable),
		errors.Is(err, ErrRateLimiterUnavailable),
		errors.Is(err, ErrProviderUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
