// Package jwt mints and validates the signed session tokens issued after a
// successful passkey ceremony. Tokens carry {uid, username, iat, exp} and a
// fixed lifetime; expiry is reported distinctly from every other validation
// failure.
package jwt
