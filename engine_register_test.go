package goPasskey

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/descope/virtualwebauthn"
)

func TestRegistrationRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := newMemoryProvider()
	engine, done := buildTestEngine(t, passkeyTestConfig(), provider, nil)
	defer done()

	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	result := registerTestIdentity(t, ctx, engine, &cred, "alice")

	if result.Token == "" {
		t.Fatal("expected a session token")
	}
	if result.Username != "alice" {
		t.Fatalf("unexpected username: %q", result.Username)
	}

	identity, ok := provider.identity(result.UserID)
	if !ok {
		t.Fatal("expected identity to be persisted")
	}
	if identity.Username != "alice" {
		t.Fatalf("unexpected persisted username: %q", identity.Username)
	}
	if len(identity.CredentialID) == 0 || len(identity.PublicKey) == 0 {
		t.Fatal("expected credential ID and public key to be persisted")
	}

	info, err := engine.ValidateSession(ctx, result.Token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if info.UserID != result.UserID || info.Username != "alice" {
		t.Fatalf("unexpected session info: %+v", info)
	}
}

func TestBeginRegistrationEmptyUsername(t *testing.T) {
	ctx := context.Background()
	engine, done := buildTestEngine(t, passkeyTestConfig(), newMemoryProvider(), nil)
	defer done()

	if _, err := engine.BeginRegistration(ctx, "   "); !errors.Is(err, ErrUsernameRequired) {
		t.Fatalf("expected ErrUsernameRequired, got %v", err)
	}
}

func TestBeginRegistrationDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	provider := newMemoryProvider()
	engine, done := buildTestEngine(t, passkeyTestConfig(), provider, nil)
	defer done()

	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerTestIdentity(t, ctx, engine, &cred, "alice")

	if _, err := engine.BeginRegistration(ctx, "alice"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestBeginRegistrationIssuesDistinctChallenges(t *testing.T) {
	ctx := context.Background()
	engine, done := buildTestEngine(t, passkeyTestConfig(), newMemoryProvider(), nil)
	defer done()

	first, err := engine.BeginRegistration(ctx, "alice")
	if err != nil {
		t.Fatalf("first BeginRegistration failed: %v", err)
	}
	second, err := engine.BeginRegistration(ctx, "alice")
	if err != nil {
		t.Fatalf("second BeginRegistration failed: %v", err)
	}

	if first.Response.Challenge.String() == second.Response.Challenge.String() {
		t.Fatal("expected successive registrations to issue distinct challenges")
	}
}

func TestFinishRegistrationMissingCredential(t *testing.T) {
	ctx := context.Background()
	engine, done := buildTestEngine(t, passkeyTestConfig(), newMemoryProvider(), nil)
	defer done()

	if _, err := engine.FinishRegistration(ctx, "some-challenge", "alice", nil); !errors.Is(err, ErrCredentialRequired) {
		t.Fatalf("expected ErrCredentialRequired, got %v", err)
	}
}

func TestFinishRegistrationUnknownChallenge(t *testing.T) {
	ctx := context.Background()
	engine, done := buildTestEngine(t, passkeyTestConfig(), newMemoryProvider(), nil)
	defer done()

	_, err := engine.FinishRegistration(ctx, "bm90LWEtcmVhbC1jaGFsbGVuZ2U", "alice", []byte(`{}`))
	if !errors.Is(err, ErrInvalidChallenge) {
		t.Fatalf("expected ErrInvalidChallenge, got %v", err)
	}
}

func TestFinishRegistrationChallengeSingleUse(t *testing.T) {
	ctx := context.Background()
	provider := newMemoryProvider()
	engine, done := buildTestEngine(t, passkeyTestConfig(), provider, nil)
	defer done()

	creation, err := engine.BeginRegistration(ctx, "alice")
	if err != nil {
		t.Fatalf("BeginRegistration failed: %v", err)
	}

	optionsJSON, err := json.Marshal(creation.Response)
	if err != nil {
		t.Fatalf("marshal creation options failed: %v", err)
	}
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	if err != nil {
		t.Fatalf("ParseAttestationOptions failed: %v", err)
	}

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	attestation := virtualwebauthn.CreateAttestationResponse(testRelyingParty(), auth, cred, *parsedOptions)
	challenge := creation.Response.Challenge.String()

	if _, err := engine.FinishRegistration(ctx, challenge, "alice", []byte(attestation)); err != nil {
		t.Fatalf("first FinishRegistration failed: %v", err)
	}

	_, err = engine.FinishRegistration(ctx, challenge, "alice", []byte(attestation))
	if !errors.Is(err, ErrInvalidChallenge) {
		t.Fatalf("expected ErrInvalidChallenge on reuse, got %v", err)
	}
	if provider.count() != 1 {
		t.Fatalf("expected exactly one persisted identity, got %d", provider.count())
	}
}

func TestFinishRegistrationUsernameMismatch(t *testing.T) {
	ctx := context.Background()
	engine, done := buildTestEngine(t, passkeyTestConfig(), newMemoryProvider(), nil)
	defer done()

	creation, err := engine.BeginRegistration(ctx, "alice")
	if err != nil {
		t.Fatalf("BeginRegistration failed: %v", err)
	}

	_, err = engine.FinishRegistration(ctx, creation.Response.Challenge.String(), "bob", []byte(`{}`))
	if !errors.Is(err, ErrInvalidChallenge) {
		t.Fatalf("expected ErrInvalidChallenge, got %v", err)
	}
}

func TestFinishRegistrationRejectsWrongOrigin(t *testing.T) {
	ctx := context.Background()
	provider := newMemoryProvider()
	engine, done := buildTestEngine(t, passkeyTestConfig(), provider, nil)
	defer done()

	creation, err := engine.BeginRegistration(ctx, "alice")
	if err != nil {
		t.Fatalf("BeginRegistration failed: %v", err)
	}

	optionsJSON, err := json.Marshal(creation.Response)
	if err != nil {
		t.Fatalf("marshal creation options failed: %v", err)
	}
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	if err != nil {
		t.Fatalf("ParseAttestationOptions failed: %v", err)
	}

	// Attestation minted for a different origin must fail verification.
	evilRP := virtualwebauthn.RelyingParty{
		Name:   "evil",
		ID:     "localhost",
		Origin: "http://evil.example",
	}
	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	attestation := virtualwebauthn.CreateAttestationResponse(evilRP, auth, cred, *parsedOptions)

	_, err = engine.FinishRegistration(ctx, creation.Response.Challenge.String(), "alice", []byte(attestation))
	if !errors.Is(err, ErrCeremonyFailed) {
		t.Fatalf("expected ErrCeremonyFailed, got %v", err)
	}
	if provider.count() != 0 {
		t.Fatal("expected no identity to be persisted after failed attestation")
	}
}

func TestFinishRegistrationRejectsMismatchedChallenge(t *testing.T) {
	ctx := context.Background()
	provider := newMemoryProvider()
	engine, done := buildTestEngine(t, passkeyTestConfig(), provider, nil)
	defer done()

	first, err := engine.BeginRegistration(ctx, "alice")
	if err != nil {
		t.Fatalf("first BeginRegistration failed: %v", err)
	}
	second, err := engine.BeginRegistration(ctx, "alice")
	if err != nil {
		t.Fatalf("second BeginRegistration failed: %v", err)
	}

	// The client data embeds the second challenge; redeeming it against the
	// first pending ceremony must fail verification.
	optionsJSON, err := json.Marshal(second.Response)
	if err != nil {
		t.Fatalf("marshal creation options failed: %v", err)
	}
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	if err != nil {
		t.Fatalf("ParseAttestationOptions failed: %v", err)
	}

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	attestation := virtualwebauthn.CreateAttestationResponse(testRelyingParty(), auth, cred, *parsedOptions)

	_, err = engine.FinishRegistration(ctx, first.Response.Challenge.String(), "alice", []byte(attestation))
	if !errors.Is(err, ErrCeremonyFailed) {
		t.Fatalf("expected ErrCeremonyFailed, got %v", err)
	}
	if provider.count() != 0 {
		t.Fatal("expected no identity to be persisted after mismatched challenge")
	}
}

func TestRegistrationRateLimited(t *testing.T) {
	ctx := context.Background()
	cfg := passkeyTestConfig()
	cfg.Security.MaxCeremonyAttempts = 1

	engine, done := buildTestEngine(t, cfg, newMemoryProvider(), nil)
	defer done()

	// Two failed redemptions push the counter past the budget.
	for i := 0; i < 2; i++ {
		_, err := engine.FinishRegistration(ctx, "bm90LWEtcmVhbC1jaGFsbGVuZ2U", "alice", []byte(`{}`))
		if !errors.Is(err, ErrInvalidChallenge) {
			t.Fatalf("expected ErrInvalidChallenge, got %v", err)
		}
	}

	if _, err := engine.BeginRegistration(ctx, "alice"); !errors.Is(err, ErrRegistrationRateLimited) {
		t.Fatalf("expected ErrRegistrationRateLimited, got %v", err)
	}
}
