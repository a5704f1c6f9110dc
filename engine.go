package authcore

import (
	"context"
	"log/slog"
	"time"

	"github.com/solidcore-labs/authcore/email"
	"github.com/solidcore-labs/authcore/password"
	"github.com/solidcore-labs/authcore/storage"
	"github.com/solidcore-labs/authcore/token"
)

// Engine is the authentication core. It orchestrates the password policy,
// hasher, token service, and storage adapter behind a flat method surface.
// Safe for concurrent use; construct it through [Builder].
type Engine struct {
	config  Config
	adapter storage.Adapter
	hasher  *password.Hasher
	policy  *password.Policy
	tokens  *token.Service
	limiter RateLimiter
	sender  email.Sender
	audit   *auditDispatcher
	metrics *engineMetrics
	logger  *slog.Logger

	// dummyHash keeps login work roughly constant when the email is unknown.
	dummyHash string
}

// Close flushes and stops the audit dispatcher. The Engine must not be used
// after Close.
func (e *Engine) Close() {
	e.audit.Close()
}

// Metrics returns a point-in-time snapshot of the Engine's counters.
func (e *Engine) Metrics() MetricsSnapshot {
	snapshot := e.metrics.snapshot()
	snapshot.AuditEventsDropped = e.audit.Dropped()
	return snapshot
}

func (e *Engine) emit(ctx context.Context, eventType, userID, emailAddr string, success bool, opErr error, metadata map[string]string) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Email:     emailAddr,
		Success:   success,
		Metadata:  metadata,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	e.audit.Emit(ctx, event)
}

// checkLimit consults the rate limiter, treating a nil limiter as unlimited.
func (e *Engine) checkLimit(ctx context.Context, op, identifier string) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Check(ctx, op, identifier)
}

// recordAttempt counts a failed attempt. Limiter errors are logged, not
// surfaced: a broken limiter must not turn auth failures into 500s.
func (e *Engine) recordAttempt(ctx context.Context, op, identifier string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.Record(ctx, op, identifier); err != nil {
		e.logger.WarnContext(ctx, "rate limiter record failed", "op", op, "error", err)
	}
}

// resetLimit clears the counter after a success.
func (e *Engine) resetLimit(ctx context.Context, op, identifier string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.Reset(ctx, op, identifier); err != nil {
		e.logger.WarnContext(ctx, "rate limiter reset failed", "op", op, "error", err)
	}
}

// sendMail renders the template and delivers it through the injected sender.
// Without a sender the mail is silently skipped.
func (e *Engine) sendMail(ctx context.Context, to string, tpl email.Template, vars map[string]string) error {
	if e.sender == nil {
		return nil
	}
	msg := tpl.Render(vars)
	msg.To = to
	msg.From = e.config.Email.From
	return e.sender.Send(ctx, msg)
}

// validatePassword runs the strength policy and wraps violations in a
// [*PolicyError].
func (e *Engine) validatePassword(candidate string) error {
	if violations := e.policy.Validate(candidate); len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
