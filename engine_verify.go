package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/solidcore-labs/authcore/storage"
	"github.com/solidcore-labs/authcore/token"
)

// VerifyEmail consumes a single-use verification token and marks the account's
// email verified. Returns the updated user.
func (e *Engine) VerifyEmail(ctx context.Context, verificationToken string) (*User, error) {
	userID, err := e.tokens.ConsumePurposeToken(ctx, verificationToken, token.PurposeEmailVerification)
	if err != nil {
		return nil, err
	}

	verified := true
	user, err := e.adapter.UpdateUser(ctx, userID, storage.UserUpdate{EmailVerified: &verified})
	if err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}

	e.metrics.emailVerifications.Add(1)
	e.emit(ctx, EventEmailVerified, user.ID, user.Email, true, nil, nil)
	return toUser(user), nil
}

// ResendVerification mails a fresh verification token. Like [Engine.ResetPassword]
// it returns uniform success for unknown and already-verified addresses.
func (e *Engine) ResendVerification(ctx context.Context, emailAddr string) error {
	emailAddr = storage.CanonicalEmail(emailAddr)

	if err := e.checkLimit(ctx, OpVerification, emailAddr); err != nil {
		return err
	}
	e.recordAttempt(ctx, OpVerification, emailAddr)

	user, err := e.adapter.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}

	return e.sendVerificationMail(ctx, user.ID, user.Email)
}
