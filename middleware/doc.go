// Package middleware exposes an HTTP session guard built on top of
// goPasskey.Engine validation.
//
// [Guard] reads the Authorization header, calls Engine.ValidateSession, and
// injects the decoded [goPasskey.SessionInfo] into the request context, where
// protected handlers retrieve it with [SessionFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.ValidateSession.
//
// # What this package must NOT do
//
//   - Parse or create session tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from ValidateSession.
package middleware
