package goPasskey

import (
	"context"
)

// Identity is the persisted account record managed by the host application.
// One identity owns exactly one passkey credential.
//
//	Docs: docs/provider.md
type Identity struct {
	ID               string
	Username         string
	CredentialID     []byte
	PublicKey        []byte
	SignatureCounter uint32
}

// CredentialProvider is the primary interface that callers must implement to
// integrate goPasskey with their user database. It covers identity lookup,
// atomic identity creation, and the guarded signature-counter update used for
// clone detection.
//
// UpdateSignatureCounter must be serialized per identity: the write succeeds
// only when newCount is greater than the stored counter, or when both are
// zero. A non-increasing write must return [ErrReplayDetected] and leave the
// stored counter unchanged.
//
//	Docs: docs/provider.md, docs/engine.md
type CredentialProvider interface {
	GetIdentityByUsername(ctx context.Context, username string) (Identity, error)
	GetIdentityByCredentialID(ctx context.Context, credentialID []byte) (Identity, error)
	CreateIdentity(ctx context.Context, identity Identity) error
	UpdateSignatureCounter(ctx context.Context, userID string, newCount uint32) error
}

// CeremonyResult is returned by [Engine.FinishRegistration] and
// [Engine.FinishLogin] after a successful ceremony. Token is a signed session
// token whose claims identify the authenticated identity.
type CeremonyResult struct {
	Token    string
	UserID   string
	Username string
}

// SessionInfo is returned by [Engine.ValidateSession]. It carries the
// identity claims decoded from a valid session token.
type SessionInfo struct {
	UserID   string
	Username string
}
