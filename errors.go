package goPasskey

import (
	"errors"

	"github.com/MrEthical07/goPasskey/jwt"
)

var (
	// ErrUsernameRequired is an exported constant or variable used by the authentication engine.
	ErrUsernameRequired = errors.New("username required")
	// ErrCredentialRequired is an exported constant or variable used by the authentication engine.
	ErrCredentialRequired = errors.New("credential payload required")
	// ErrUsernameTaken is an exported constant or variable used by the authentication engine.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrIdentityNotFound is an exported constant or variable used by the authentication engine.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrUnknownCredential is an exported constant or variable used by the authentication engine.
	ErrUnknownCredential = errors.New("credential not registered")
	// ErrInvalidChallenge is an exported constant or variable used by the authentication engine.
	ErrInvalidChallenge = errors.New("challenge invalid, expired, or already used")
	// ErrCeremonyFailed is an exported constant or variable used by the authentication engine.
	ErrCeremonyFailed = errors.New("ceremony verification failed")
	// ErrReplayDetected is an exported constant or variable used by the authentication engine.
	ErrReplayDetected = errors.New("signature counter replay detected")
	// ErrRegistrationRateLimited is an exported constant or variable used by the authentication engine.
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	// ErrLoginRateLimited is an exported constant or variable used by the authentication engine.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is an exported constant or variable used by the authentication engine.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrChallengeUnavailable is an exported constant or variable used by the authentication engine.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
	// ErrRateLimiterUnavailable is an exported constant or variable used by the authentication engine.
	ErrRateLimiterUnavailable = errors.New("rate limiter backend unavailable")
	// ErrProviderUnavailable is an exported constant or variable used by the authentication engine.
	ErrProviderUnavailable = errors.New("credential provider unavailable")
)

// Token errors are shared with the jwt subpackage so that errors.Is works
// on both import paths.
var (
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = jwt.ErrTokenExpired
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = jwt.ErrTokenInvalid
)
