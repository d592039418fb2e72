package goPasskey

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/MrEthical07/goPasskey/ceremony"
	"github.com/MrEthical07/goPasskey/internal"
	"github.com/MrEthical07/goPasskey/internal/rate"
	"github.com/MrEthical07/goPasskey/internal/stores"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// BeginRegistration describes the beginregistration operation and its observable behavior.
//
// BeginRegistration may return an error when input validation, dependency calls, or security checks fail.
// BeginRegistration does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BeginRegistration(ctx context.Context, username string) (*protocol.CredentialCreation, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}

	ip := clientIPFromContext(ctx)
	if err := e.rateLimiter.CheckCeremony(ctx, username, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRegistrationRateLimited)
			e.emitRateLimit(ctx, "registration", username, nil)
			e.emitAudit(ctx, auditEventRegistrationRateLimited, false, "", username, ErrRegistrationRateLimited, nil)
			return nil, ErrRegistrationRateLimited
		}
		return nil, errors.Join(ErrRateLimiterUnavailable, err)
	}

	_, err := e.provider.GetIdentityByUsername(ctx, username)
	if err == nil {
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", username, ErrUsernameTaken, nil)
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return nil, e.providerErr(err)
	}

	userID := uuid.NewString()
	user := ceremony.User{
		ID:          []byte(userID),
		Name:        username,
		DisplayName: username,
	}

	creation, session, err := e.verifier.BeginRegistration(user)
	if err != nil {
		return nil, err
	}

	if err := e.saveChallenge(ctx, stores.KindRegistration, username, session); err != nil {
		return nil, err
	}

	e.metricInc(MetricChallengeIssued)
	e.emitAudit(ctx, auditEventRegistrationChallenge, true, userID, username, nil, nil)

	return creation, nil
}

// FinishRegistration describes the finishregistration operation and its observable behavior.
//
// FinishRegistration may return an error when input validation, dependency calls, or security checks fail.
// FinishRegistration does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) FinishRegistration(
	ctx context.Context,
	challenge string,
	username string,
	credentialJSON []byte,
) (*CeremonyResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if strings.TrimSpace(challenge) == "" {
		return nil, ErrInvalidChallenge
	}
	if len(credentialJSON) == 0 {
		return nil, ErrCredentialRequired
	}

	record, err := e.consumeChallenge(ctx, internal.CanonicalBase64URL(challenge), stores.KindRegistration)
	if err != nil {
		return nil, e.registrationFailed(ctx, "", username, err)
	}
	if record.Username != username {
		e.metricInc(MetricChallengeInvalid)
		return nil, e.registrationFailed(ctx, "", username, ErrInvalidChallenge)
	}

	var session webauthn.SessionData
	if err := json.Unmarshal(record.SessionData, &session); err != nil {
		return nil, e.registrationFailed(ctx, "", username, ErrInvalidChallenge)
	}
	userID := string(session.UserID)

	parsed, err := ceremony.ParseAttestation(credentialJSON)
	if err != nil {
		return nil, e.registrationFailed(ctx, userID, username, ceremonyError(err))
	}

	user := ceremony.User{
		ID:          session.UserID,
		Name:        username,
		DisplayName: username,
	}
	cred, err := e.verifier.FinishRegistration(user, session, parsed)
	if err != nil {
		return nil, e.registrationFailed(ctx, userID, username, ceremonyError(err))
	}

	identity := Identity{
		ID:               userID,
		Username:         username,
		CredentialID:     cred.ID,
		PublicKey:        cred.PublicKey,
		SignatureCounter: cred.Authenticator.SignCount,
	}
	if err := e.provider.CreateIdentity(ctx, identity); err != nil {
		return nil, e.registrationFailed(ctx, userID, username, e.providerErr(err))
	}

	token, err := e.tokens.Mint(userID, username)
	if err != nil {
		return nil, e.registrationFailed(ctx, userID, username, err)
	}

	if err := e.rateLimiter.ResetCeremony(ctx, username, clientIPFromContext(ctx)); err != nil {
		log.Print("goPasskey: ceremony limiter reset failed: ", err)
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistrationSuccess, true, userID, username, nil, func() map[string]string {
		return map[string]string{
			"credential_id": internal.EncodeBase64URL(cred.ID),
		}
	})

	return &CeremonyResult{
		Token:    token,
		UserID:   userID,
		Username: username,
	}, nil
}

// saveChallenge persists the verifier session keyed by its challenge. The
// session expiry is aligned with the store TTL so that both sides agree on
// when the ceremony dies.
func (e *Engine) saveChallenge(
	ctx context.Context,
	kind stores.CeremonyKind,
	username string,
	session *webauthn.SessionData,
) error {
	expiresAt := time.Now().Add(e.config.Challenge.TTL)
	session.Expires = expiresAt

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return err
	}

	record := &stores.PendingCeremony{
		Kind:        kind,
		Username:    username,
		ExpiresAt:   expiresAt.Unix(),
		SessionData: sessionJSON,
	}
	if err := e.challenges.Save(ctx, session.Challenge, record, e.config.Challenge.TTL); err != nil {
		return errors.Join(ErrChallengeUnavailable, err)
	}
	return nil
}

func (e *Engine) registrationFailed(ctx context.Context, userID, username string, err error) error {
	e.metricInc(MetricRegistrationFailure)
	if incErr := e.rateLimiter.IncrementCeremony(ctx, username, clientIPFromContext(ctx)); incErr != nil && !errors.Is(incErr, rate.ErrRateLimited) {
		log.Print("goPasskey: ceremony limiter increment failed: ", incErr)
	}
	e.emitAudit(ctx, auditEventRegistrationFailure, false, userID, username, err, nil)
	return err
}
