package internaldefs

import (
	goPasskey "github.com/MrEthical07/goPasskey"
)

// CounterDef defines a public type used by goPasskey APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goPasskey.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goPasskey APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goPasskey.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: goPasskey.MetricRegistrationSuccess, Name: "gopasskey_registration_success_total", Help: "Successful registration ceremonies."},
	{ID: goPasskey.MetricRegistrationFailure, Name: "gopasskey_registration_failure_total", Help: "Failed registration ceremonies."},
	{ID: goPasskey.MetricRegistrationRateLimited, Name: "gopasskey_registration_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: goPasskey.MetricLoginSuccess, Name: "gopasskey_login_success_total", Help: "Successful login ceremonies."},
	{ID: goPasskey.MetricLoginFailure, Name: "gopasskey_login_failure_total", Help: "Failed login ceremonies."},
	{ID: goPasskey.MetricLoginRateLimited, Name: "gopasskey_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goPasskey.MetricReplayDetected, Name: "gopasskey_replay_detected_total", Help: "Signature-counter replay detections."},
	{ID: goPasskey.MetricChallengeIssued, Name: "gopasskey_challenge_issued_total", Help: "Ceremony challenges issued."},
	{ID: goPasskey.MetricChallengeInvalid, Name: "gopasskey_challenge_invalid_total", Help: "Challenge redemptions rejected as unknown, expired, or reused."},
	{ID: goPasskey.MetricRefreshSuccess, Name: "gopasskey_refresh_success_total", Help: "Successful token refreshes."},
	{ID: goPasskey.MetricRefreshFailure, Name: "gopasskey_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: goPasskey.MetricRefreshRateLimited, Name: "gopasskey_refresh_rate_limited_total", Help: "Rate-limited token refresh attempts."},
	{ID: goPasskey.MetricValidateSuccess, Name: "gopasskey_validate_success_total", Help: "Successful session validations."},
	{ID: goPasskey.MetricValidateFailure, Name: "gopasskey_validate_failure_total", Help: "Failed session validations."},
	{ID: goPasskey.MetricRateLimitHit, Name: "gopasskey_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: goPasskey.MetricValidateLatency, Name: "gopasskey_validate_latency_seconds", Help: "Session validation latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
