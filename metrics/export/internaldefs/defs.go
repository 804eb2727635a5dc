package internaldefs

import (
	sessionguard "github.com/gearbooks/sessionguard"
)

// CounterDef binds a counter MetricID to its exported name and help text.
type CounterDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name and help text.
type HistogramDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: sessionguard.MetricSessionCreated, Name: "sessionguard_session_created_total", Help: "Created sessions."},
	{ID: sessionguard.MetricSessionLimitRejected, Name: "sessionguard_session_limit_rejected_total", Help: "Session creations rejected by the per-user cap."},
	{ID: sessionguard.MetricRotationSuccess, Name: "sessionguard_rotation_success_total", Help: "Rotations that minted a new refresh token."},
	{ID: sessionguard.MetricRotationRetried, Name: "sessionguard_rotation_retried_total", Help: "Grace-window duplicate rotations accepted without a new token."},
	{ID: sessionguard.MetricRotationInvalid, Name: "sessionguard_rotation_invalid_total", Help: "Rotations rejected as invalid."},
	{ID: sessionguard.MetricRotationConflict, Name: "sessionguard_rotation_conflict_total", Help: "Version-guard conflicts that forced a re-read."},
	{ID: sessionguard.MetricReplayDetected, Name: "sessionguard_replay_detected_total", Help: "Detected refresh token replays."},
	{ID: sessionguard.MetricRefreshRateLimited, Name: "sessionguard_refresh_rate_limited_total", Help: "Rotations denied by the refresh throttle."},
	{ID: sessionguard.MetricSessionRevoked, Name: "sessionguard_session_revoked_total", Help: "Sessions transitioned to revoked."},
	{ID: sessionguard.MetricRevokeAll, Name: "sessionguard_revoke_all_total", Help: "Revoke-all-user-sessions operations."},
	{ID: sessionguard.MetricSessionExpired, Name: "sessionguard_session_expired_total", Help: "Sessions lazily transitioned to expired."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: sessionguard.MetricRotateLatency, Name: "sessionguard_rotate_latency_seconds", Help: "Rotation latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, rendered the way
// Prometheus expects them in the le label.
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

// HistogramBoundSuffix mirrors HistogramBounds with characters legal in OTel
// instrument names.
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

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form used
// by both exposition formats.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
