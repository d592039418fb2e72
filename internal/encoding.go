package internal

import (
	"encoding/base64"
	"strings"
)

// DecodeBase64URL decodes a base64url value that may arrive with or without
// trailing padding. Browser WebAuthn payloads strip padding; some clients
// re-add it. Missing '=' characters are restored before decoding.
func DecodeBase64URL(value string) ([]byte, error) {
	value = strings.TrimRight(value, "=")
	if rem := len(value) % 4; rem != 0 {
		value += strings.Repeat("=", 4-rem)
	}
	return base64.URLEncoding.DecodeString(value)
}

// CanonicalBase64URL re-encodes a base64url value into the unpadded form used
// as the challenge-store key. Returns the input unchanged when it does not
// decode.
func CanonicalBase64URL(value string) string {
	raw, err := DecodeBase64URL(value)
	if err != nil {
		return value
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// EncodeBase64URL encodes raw bytes in the unpadded base64url form used on
// the wire.
func EncodeBase64URL(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
