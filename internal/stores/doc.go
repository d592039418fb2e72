// Package stores contains the Redis-backed ephemeral stores used by the
// engine. Records are encoded in a compact versioned binary format; values
// carry their own expiry so that reads after TTL drift are still rejected.
package stores
