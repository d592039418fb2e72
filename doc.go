// Package goPasskey provides a passkey (WebAuthn) authentication engine with
// one-time Redis-backed ceremony challenges, signed session tokens, and
// signature-counter clone detection.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goPasskey is the public surface. It exposes [Engine], [Builder], [Config], and value
// types (CeremonyResult, SessionInfo, MetricsSnapshot, etc.). All internal coordination —
// challenge storage, rate limiting, audit dispatch — lives under internal/ and is never
// exported. Credential persistence is owned by the host application through
// [CredentialProvider].
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Leak raw verifier errors across the engine boundary; ceremony failures surface as
//     [ErrCeremonyFailed] with a diagnostic suffix.
//
// # Performance contract
//
// ValidateSession is the hot path. It must not allocate beyond the returned SessionInfo
// struct and must complete without Redis round-trips. Begin/Finish ceremony operations
// are allowed one Redis round-trip per challenge-store access.
package goPasskey
