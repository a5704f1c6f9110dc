package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/solidcore-labs/authcore/storage"
	"github.com/solidcore-labs/authcore/token"
)

// ChangePassword updates the password of an authenticated user after
// re-verifying the current one. Outstanding sessions stay valid: the user
// proved possession of the current password, so this is not a recovery from
// compromise. Use [Engine.InvalidateUserSessions] for that.
func (e *Engine) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	user, err := e.adapter.GetUserByID(ctx, input.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	ok, err := e.hasher.Verify(input.CurrentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		e.emit(ctx, EventPasswordChange, user.ID, user.Email, false, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if input.NewPassword == input.CurrentPassword {
		return ErrSamePassword
	}
	if err := e.validatePassword(input.NewPassword); err != nil {
		return err
	}

	hash, err := e.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := e.adapter.UpdateUser(ctx, user.ID, storage.UserUpdate{PasswordHash: &hash}); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	e.metrics.passwordChanges.Add(1)
	e.emit(ctx, EventPasswordChange, user.ID, user.Email, true, nil, nil)
	return nil
}

// ResetPassword starts the forgotten-password flow. The outcome is uniform
// whether or not the email is registered: the only place the answer shows up
// is the recipient's inbox.
func (e *Engine) ResetPassword(ctx context.Context, emailAddr string) error {
	emailAddr = storage.CanonicalEmail(emailAddr)

	if err := e.checkLimit(ctx, OpPasswordReset, emailAddr); err != nil {
		return err
	}
	e.recordAttempt(ctx, OpPasswordReset, emailAddr)

	user, err := e.adapter.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.emit(ctx, EventPasswordResetRequest, "", emailAddr, true, nil, nil)
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	resetToken, err := e.tokens.IssuePurposeToken(user.ID, token.PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	if err := e.sendMail(ctx, user.Email, e.config.Email.ResetTemplate, map[string]string{
		"token": resetToken,
		"email": user.Email,
	}); err != nil {
		// stay uniform toward the caller; the failure is operational, not
		// an existence signal
		e.logger.WarnContext(ctx, "reset mail failed", "user_id", user.ID, "error", err)
	}

	e.emit(ctx, EventPasswordResetRequest, user.ID, user.Email, true, nil, nil)
	return nil
}

// ResetPasswordConfirm completes the reset: it consumes the single-use reset
// token, stores the new password, and revokes every outstanding refresh token
// for the account. Returns the updated user.
func (e *Engine) ResetPasswordConfirm(ctx context.Context, input ResetPasswordConfirmInput) (*User, error) {
	if err := e.validatePassword(input.Password); err != nil {
		return nil, err
	}

	userID, err := e.tokens.ConsumePurposeToken(ctx, input.Token, token.PurposePasswordReset)
	if err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := e.adapter.UpdateUser(ctx, userID, storage.UserUpdate{
		PasswordHash:     &hash,
		BumpTokenVersion: true,
	})
	if err != nil {
		return nil, fmt.Errorf("store password: %w", err)
	}

	e.resetLimit(ctx, OpPasswordReset, user.Email)
	e.metrics.passwordResets.Add(1)
	e.emit(ctx, EventPasswordReset, user.ID, user.Email, true, nil, nil)
	return toUser(user), nil
}
