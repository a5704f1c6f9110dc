package internaldefs

import (
	"github.com/solidcore-labs/authcore"
)

// CounterDef binds a stable exposition name to one snapshot counter.
//
// CounterDef instances are intended to be configured during initialization and
// then treated as immutable.
type CounterDef struct {
	Name  string
	Help  string
	Value func(authcore.MetricsSnapshot) uint64
}

// CounterDefs enumerates every exported counter. Both exporters iterate this
// slice, so metric names stay identical across exposition formats.
var CounterDefs = []CounterDef{
	{
		Name:  "authcore_registrations_total",
		Help:  "Completed registrations.",
		Value: func(s authcore.MetricsSnapshot) uint64 { return s.Registrations },
	},
	{
		Name:  "authcore_login_success_total",
		Help:  "Successful login attempts.",
		Value: func(s authcore.MetricsSnapshot) uint64 { return s.Logins },
	},
	{
		Name:  "authcore_login_failure_total",
		Help:  "Failed login attempts.",
		Value: func(s authcore.MetricsSnapshot) uint64 { return s.LoginFailures },
	},
	{
		Name:  "authcore_refresh_total",
		Help:  "Successful refresh-token rotations.",
		Value: func(s authcore.MetricsSnapshot) uint64 { return s.Refreshes },
	},
	{
		Name:  "authcore_token_reuse_detected_total",
		Help:  "Refresh-token reuse detections.",
		Value: func(s authcore.MetricsSnapshot) uint64 { return s.ReuseDetections },
	},
	{
		Name:  "authcore_logout_total",
		Help:  "Completed logouts.",
		Value: func(s authcore.MetricsSnapshot) uint64 { return s.Logouts },
	},
	{
		Name:  "authcore_password_change_total",
		Help:  "Completed password changes.",
		Value: func(s authcore.MetricsSnapshot) uint64 { return s.PasswordChanges },
	},
	{
		Name:  "authcore_password_reset_total",
		Help:  "Completed password resets.",
		Value: func(s authcore.MetricsSnapshot) uint64 { return s.PasswordResets },
	},
	{
		Name:  "authcore_email_verified_total",
		Help:  "Completed email verifications.",
		Value: func(s authcore.MetricsSnapshot) uint64 { return s.EmailVerifications },
	},
	{
		Name:  "authcore_audit_dropped_total",
		Help:  "Dropped audit events due to dispatcher backpressure.",
		Value: func(s authcore.MetricsSnapshot) uint64 { return s.AuditEventsDropped },
	},
}
