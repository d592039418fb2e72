// Package internal holds small shared helpers (base64url tolerance) used by
// the engine and its subpackages. Nothing here is part of the public API.
package internal
