package internaldefs

import (
	sessionjwt "github.com/rkhaya/express-session-jwt"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   sessionjwt.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   sessionjwt.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "sessionjwt_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: sessionjwt.MetricLoginSuccess, Name: "sessionjwt_login_success_total", Help: "Successful logins."},
	{ID: sessionjwt.MetricLoginFailure, Name: "sessionjwt_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: sessionjwt.MetricLoginRateLimited, Name: "sessionjwt_login_rate_limited_total", Help: "Logins rejected by the failed-attempt limiter."},
	{ID: sessionjwt.MetricRotateSuccess, Name: "sessionjwt_rotate_success_total", Help: "Successful renewal credential rotations."},
	{ID: sessionjwt.MetricRotateRejected, Name: "sessionjwt_rotate_rejected_total", Help: "Rotations rejected for an invalid renewal credential."},
	{ID: sessionjwt.MetricRotateReplay, Name: "sessionjwt_rotate_replay_total", Help: "Rotations rejected because the marker was already gone."},
	{ID: sessionjwt.MetricRotateStranded, Name: "sessionjwt_rotate_stranded_total", Help: "Rotations that revoked the old credential without storing a successor."},
	{ID: sessionjwt.MetricStoreUnavailable, Name: "sessionjwt_store_unavailable_total", Help: "Operations failed by a store fault or timeout."},
	{ID: sessionjwt.MetricLogout, Name: "sessionjwt_logout_total", Help: "Logout operations."},
	{ID: sessionjwt.MetricRevokeAll, Name: "sessionjwt_revoke_all_total", Help: "Administrative revoke-all operations."},
	{ID: sessionjwt.MetricValidateSuccess, Name: "sessionjwt_validate_success_total", Help: "Accepted access credentials."},
	{ID: sessionjwt.MetricValidateFailure, Name: "sessionjwt_validate_failure_total", Help: "Rejected access credentials."},
	{ID: sessionjwt.MetricSessionCreated, Name: "sessionjwt_session_created_total", Help: "Created cookie sessions."},
	{ID: sessionjwt.MetricSessionDestroyed, Name: "sessionjwt_session_destroyed_total", Help: "Destroyed cookie sessions."},
}

var HistogramDefs = []HistogramDef{
	{ID: sessionjwt.MetricValidateLatency, Name: "sessionjwt_validate_latency_seconds", Help: "Access credential validation latency."},
	{ID: sessionjwt.MetricRotateLatency, Name: "sessionjwt_rotate_latency_seconds", Help: "Renewal credential rotation latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds; the engine's
// eighth bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

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

// NormalizeBuckets pads or truncates raw to the engine's eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
