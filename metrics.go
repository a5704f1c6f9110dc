package authcore

import "sync/atomic"

// MetricsSnapshot is a point-in-time copy of the Engine's flow counters.
type MetricsSnapshot struct {
	Registrations      uint64
	Logins             uint64
	LoginFailures      uint64
	Refreshes          uint64
	ReuseDetections    uint64
	Logouts            uint64
	PasswordChanges    uint64
	PasswordResets     uint64
	EmailVerifications uint64
	AuditEventsDropped uint64
}

// engineMetrics tracks flow counters with atomics so the hot paths never take
// a lock for observability.
type engineMetrics struct {
	registrations      atomic.Uint64
	logins             atomic.Uint64
	loginFailures      atomic.Uint64
	refreshes          atomic.Uint64
	reuseDetections    atomic.Uint64
	logouts            atomic.Uint64
	passwordChanges    atomic.Uint64
	passwordResets     atomic.Uint64
	emailVerifications atomic.Uint64
}

func (m *engineMetrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Registrations:      m.registrations.Load(),
		Logins:             m.logins.Load(),
		LoginFailures:      m.loginFailures.Load(),
		Refreshes:          m.refreshes.Load(),
		ReuseDetections:    m.reuseDetections.Load(),
		Logouts:            m.logouts.Load(),
		PasswordChanges:    m.passwordChanges.Load(),
		PasswordResets:     m.passwordResets.Load(),
		EmailVerifications: m.emailVerifications.Load(),
	}
}
