package ceremony

import (
	"errors"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Config identifies the relying party. Origins must list every web origin
// ceremonies are accepted from, scheme included.
type Config struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
}

// User adapts an identity to the verifier's user model. ID is the opaque
// user handle written into resident credentials at registration and returned
// by the authenticator on discoverable login.
type User struct {
	ID          []byte
	Name        string
	DisplayName string
	Credentials []webauthn.Credential
}

func (u User) WebAuthnID() []byte { return u.ID }

func (u User) WebAuthnName() string { return u.Name }

func (u User) WebAuthnDisplayName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

func (u User) WebAuthnIcon() string { return "" }

func (u User) WebAuthnCredentials() []webauthn.Credential { return u.Credentials }

// Verifier runs WebAuthn ceremonies for a single relying party.
type Verifier struct {
	wa *webauthn.WebAuthn
}

// New validates the relying-party configuration and builds a Verifier.
func New(cfg Config) (*Verifier, error) {
	if cfg.RPID == "" {
		return nil, errors.New("ceremony: RPID required")
	}
	if len(cfg.RPOrigins) == 0 {
		return nil, errors.New("ceremony: at least one RP origin required")
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = cfg.RPID
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, err
	}

	return &Verifier{wa: wa}, nil
}

// BeginRegistration produces attestation options for a new resident
// credential on a platform authenticator. The returned session must be
// persisted until FinishRegistration.
func (v *Verifier) BeginRegistration(user User) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	return v.wa.BeginRegistration(user,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			RequireResidentKey:      protocol.ResidentKeyRequired(),
			ResidentKey:             protocol.ResidentKeyRequirementRequired,
			UserVerification:        protocol.VerificationPreferred,
		}),
	)
}

// FinishRegistration verifies the attestation response against the stored
// session and returns the new credential.
func (v *Verifier) FinishRegistration(
	user User,
	session webauthn.SessionData,
	parsed *protocol.ParsedCredentialCreationData,
) (*webauthn.Credential, error) {
	return v.wa.CreateCredential(user, session, parsed)
}

// BeginLogin produces assertion options with an empty allow-list so any
// resident credential for this relying party may answer.
func (v *Verifier) BeginLogin() (*protocol.CredentialAssertion, *webauthn.SessionData, error) {
	return v.wa.BeginDiscoverableLogin(
		webauthn.WithUserVerification(protocol.VerificationPreferred),
	)
}

// FinishLogin verifies a discoverable assertion. resolve maps the asserted
// credential ID and user handle to the owning user; the returned credential
// carries the asserted signature counter and the clone-warning flag.
func (v *Verifier) FinishLogin(
	resolve webauthn.DiscoverableUserHandler,
	session webauthn.SessionData,
	parsed *protocol.ParsedCredentialAssertionData,
) (*webauthn.Credential, error) {
	return v.wa.ValidateDiscoverableLogin(resolve, session, parsed)
}

// ParseAttestation decodes a raw attestation response body.
func ParseAttestation(body []byte) (*protocol.ParsedCredentialCreationData, error) {
	return protocol.ParseCredentialCreationResponseBytes(body)
}

// ParseAssertion decodes a raw assertion response body.
func ParseAssertion(body []byte) (*protocol.ParsedCredentialAssertionData, error) {
	return protocol.ParseCredentialRequestResponseBytes(body)
}

// Reason extracts the most specific diagnostic string from a verifier error.
// Used to annotate normalized ceremony failures without leaking the library's
// error types across the engine boundary.
func Reason(err error) string {
	if err == nil {
		return ""
	}

	var pe *protocol.Error
	if errors.As(err, &pe) {
		if pe.DevInfo != "" {
			return pe.DevInfo
		}
		if pe.Details != "" {
			return pe.Details
		}
	}
	return err.Error()
}
