package goPasskey

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/MrEthical07/goPasskey/ceremony"
	"github.com/MrEthical07/goPasskey/internal"
	"github.com/MrEthical07/goPasskey/internal/rate"
	"github.com/MrEthical07/goPasskey/internal/stores"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// BeginLogin describes the beginlogin operation and its observable behavior.
//
// BeginLogin may return an error when input validation, dependency calls, or security checks fail.
// BeginLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BeginLogin(ctx context.Context, username string) (*protocol.CredentialAssertion, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}

	ip := clientIPFromContext(ctx)
	if err := e.rateLimiter.CheckCeremony(ctx, username, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, "login", username, nil)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", username, ErrLoginRateLimited, nil)
			return nil, ErrLoginRateLimited
		}
		return nil, errors.Join(ErrRateLimiterUnavailable, err)
	}

	identity, err := e.provider.GetIdentityByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", username, ErrIdentityNotFound, nil)
			return nil, ErrIdentityNotFound
		}
		return nil, e.providerErr(err)
	}

	// Discoverable assertion: the allow-list stays empty and the
	// authenticator picks the resident credential for this RP.
	assertion, session, err := e.verifier.BeginLogin()
	if err != nil {
		return nil, err
	}

	if err := e.saveChallenge(ctx, stores.KindLogin, username, session); err != nil {
		return nil, err
	}

	e.metricInc(MetricChallengeIssued)
	e.emitAudit(ctx, auditEventLoginChallenge, true, identity.ID, username, nil, nil)

	return assertion, nil
}

// FinishLogin describes the finishlogin operation and its observable behavior.
//
// FinishLogin may return an error when input validation, dependency calls, or security checks fail.
// FinishLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) FinishLogin(ctx context.Context, credentialJSON []byte) (*CeremonyResult, error) {
	if len(credentialJSON) == 0 {
		return nil, ErrCredentialRequired
	}

	parsed, err := ceremony.ParseAssertion(credentialJSON)
	if err != nil {
		return nil, e.loginFailed(ctx, "", "", ceremonyError(err))
	}

	// The challenge the client signed over is the store key; consuming it
	// proves this server issued it and that it has not been redeemed before.
	challenge := internal.CanonicalBase64URL(parsed.Response.CollectedClientData.Challenge)
	record, err := e.consumeChallenge(ctx, challenge, stores.KindLogin)
	if err != nil {
		return nil, e.loginFailed(ctx, "", "", err)
	}

	identity, err := e.provider.GetIdentityByCredentialID(ctx, parsed.RawID)
	if err != nil {
		if errors.Is(err, ErrUnknownCredential) || errors.Is(err, ErrIdentityNotFound) {
			return nil, e.loginFailed(ctx, "", record.Username, ErrUnknownCredential)
		}
		return nil, e.providerErr(err)
	}

	var session webauthn.SessionData
	if err := json.Unmarshal(record.SessionData, &session); err != nil {
		return nil, e.loginFailed(ctx, identity.ID, identity.Username, ErrInvalidChallenge)
	}

	resolve := func(rawID, userHandle []byte) (webauthn.User, error) {
		return ceremony.User{
			ID:   []byte(identity.ID),
			Name: identity.Username,
			Credentials: []webauthn.Credential{{
				ID:        identity.CredentialID,
				PublicKey: identity.PublicKey,
				Authenticator: webauthn.Authenticator{
					SignCount: identity.SignatureCounter,
				},
			}},
		}, nil
	}

	cred, err := e.verifier.FinishLogin(resolve, session, parsed)
	if err != nil {
		return nil, e.loginFailed(ctx, identity.ID, identity.Username, ceremonyError(err))
	}

	if cred.Authenticator.CloneWarning {
		return nil, e.loginReplayed(ctx, identity, cred.Authenticator.SignCount)
	}

	if err := e.provider.UpdateSignatureCounter(ctx, identity.ID, cred.Authenticator.SignCount); err != nil {
		if errors.Is(err, ErrReplayDetected) {
			return nil, e.loginReplayed(ctx, identity, cred.Authenticator.SignCount)
		}
		return nil, e.loginFailed(ctx, identity.ID, identity.Username, e.providerErr(err))
	}

	token, err := e.tokens.Mint(identity.ID, identity.Username)
	if err != nil {
		return nil, e.loginFailed(ctx, identity.ID, identity.Username, err)
	}

	if err := e.rateLimiter.ResetCeremony(ctx, identity.Username, clientIPFromContext(ctx)); err != nil {
		log.Print("goPasskey: ceremony limiter reset failed: ", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, identity.ID, identity.Username, nil, func() map[string]string {
		return map[string]string{
			"sign_count": strconv.FormatUint(uint64(cred.Authenticator.SignCount), 10),
		}
	})

	return &CeremonyResult{
		Token:    token,
		UserID:   identity.ID,
		Username: identity.Username,
	}, nil
}

func (e *Engine) loginFailed(ctx context.Context, userID, username string, err error) error {
	e.metricInc(MetricLoginFailure)
	if username != "" {
		if incErr := e.rateLimiter.IncrementCeremony(ctx, username, clientIPFromContext(ctx)); incErr != nil && !errors.Is(incErr, rate.ErrRateLimited) {
			log.Print("goPasskey: ceremony limiter increment failed: ", incErr)
		}
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, username, err, nil)
	return err
}

// loginReplayed records a clone-detection hit. The stored counter is left
// untouched so a later genuine assertion from the real authenticator still
// trips the same check.
func (e *Engine) loginReplayed(ctx context.Context, identity Identity, assertedCount uint32) error {
	e.metricInc(MetricReplayDetected)
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginReplayDetected, false, identity.ID, identity.Username, ErrReplayDetected, func() map[string]string {
		return map[string]string{
			"stored_count":   strconv.FormatUint(uint64(identity.SignatureCounter), 10),
			"asserted_count": strconv.FormatUint(uint64(assertedCount), 10),
		}
	})
	return ErrReplayDetected
}
