// Package ceremony wraps the go-webauthn verifier behind the small surface
// the engine needs: begin/finish for attestation (registration) and
// discoverable assertion (login) ceremonies. Challenge, origin, RP-ID hash,
// and signature checks all happen inside the wrapped library; this package
// only shapes its inputs and outputs.
package ceremony
