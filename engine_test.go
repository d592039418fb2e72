package goPasskey

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/descope/virtualwebauthn"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func passkeyTestConfig() Config {
	cfg := DefaultConfig()
	cfg.RelyingParty.ID = "localhost"
	cfg.RelyingParty.DisplayName = "goPasskey test"
	cfg.RelyingParty.Origins = []string{"http://localhost:8080"}
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.Issuer = "gopasskey-test"
	return cfg
}

func testRelyingParty() virtualwebauthn.RelyingParty {
	return virtualwebauthn.RelyingParty{
		Name:   "goPasskey test",
		ID:     "localhost",
		Origin: "http://localhost:8080",
	}
}

func buildTestEngine(t *testing.T, cfg Config, provider CredentialProvider, sink AuditSink) (*Engine, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialProvider(provider).
		WithMetricsEnabled(true)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		mr.Close()
	}
}

// registerTestIdentity drives a full attestation ceremony against the engine
// with a virtual authenticator and returns the issued result.
func registerTestIdentity(
	t *testing.T,
	ctx context.Context,
	engine *Engine,
	cred *virtualwebauthn.Credential,
	username string,
) *CeremonyResult {
	t.Helper()

	creation, err := engine.BeginRegistration(ctx, username)
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
	attestation := virtualwebauthn.CreateAttestationResponse(testRelyingParty(), auth, *cred, *parsedOptions)

	result, err := engine.FinishRegistration(ctx, creation.Response.Challenge.String(), username, []byte(attestation))
	if err != nil {
		t.Fatalf("FinishRegistration failed: %v", err)
	}
	return result
}

// assertTestLogin drives a discoverable assertion ceremony for an already
// registered credential. The caller controls cred.Counter.
func assertTestLogin(
	t *testing.T,
	ctx context.Context,
	engine *Engine,
	cred *virtualwebauthn.Credential,
	username string,
	userID string,
) (*CeremonyResult, error) {
	t.Helper()

	assertion, err := engine.BeginLogin(ctx, username)
	if err != nil {
		return nil, err
	}

	optionsJSON, err := json.Marshal(assertion.Response)
	if err != nil {
		t.Fatalf("marshal assertion options failed: %v", err)
	}

	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	if err != nil {
		t.Fatalf("ParseAssertionOptions failed: %v", err)
	}

	auth := virtualwebauthn.NewAuthenticatorWithOptions(virtualwebauthn.AuthenticatorOptions{
		UserHandle: []byte(userID),
	})
	auth.AddCredential(*cred)

	response := virtualwebauthn.CreateAssertionResponse(testRelyingParty(), auth, *cred, *parsedOptions)
	return engine.FinishLogin(ctx, []byte(response))
}

// memoryProvider is an in-memory CredentialProvider with the compare-and-swap
// counter semantics the interface requires.
type memoryProvider struct {
	mu         sync.RWMutex
	byID       map[string]Identity
	byUsername map[string]string
	byCredID   map[string]string
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{
		byID:       make(map[string]Identity),
		byUsername: make(map[string]string),
		byCredID:   make(map[string]string),
	}
}

func (p *memoryProvider) GetIdentityByUsername(_ context.Context, username string) (Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byUsername[username]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	return p.byID[id], nil
}

func (p *memoryProvider) GetIdentityByCredentialID(_ context.Context, credentialID []byte) (Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byCredID[string(credentialID)]
	if !ok {
		return Identity{}, ErrUnknownCredential
	}
	return p.byID[id], nil
}

func (p *memoryProvider) CreateIdentity(_ context.Context, identity Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byUsername[identity.Username]; ok {
		return ErrUsernameTaken
	}
	p.byID[identity.ID] = identity
	p.byUsername[identity.Username] = identity.ID
	p.byCredID[string(identity.CredentialID)] = identity.ID
	return nil
}

func (p *memoryProvider) UpdateSignatureCounter(_ context.Context, userID string, newCount uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	identity, ok := p.byID[userID]
	if !ok {
		return ErrIdentityNotFound
	}
	if newCount == 0 && identity.SignatureCounter == 0 {
		return nil
	}
	if newCount <= identity.SignatureCounter {
		return ErrReplayDetected
	}
	identity.SignatureCounter = newCount
	p.byID[userID] = identity
	return nil
}

func (p *memoryProvider) identity(userID string) (Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	identity, ok := p.byID[userID]
	return identity, ok
}

func (p *memoryProvider) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.byID)
}
