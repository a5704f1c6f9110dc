package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestChangePassword(t *testing.T) {
	engine, _ := newTestEngine(t)
	result := mustRegister(t, engine, "chg@example.com")
	userID := result.User.ID

	if err := engine.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:          userID,
		CurrentPassword: "WrongPassw0rd",
		NewPassword:     "N3wSecretLonger",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: err = %v, want ErrInvalidCredentials", err)
	}

	if err := engine.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:          userID,
		CurrentPassword: "Sup3rSecret",
		NewPassword:     "Sup3rSecret",
	}); !errors.Is(err, ErrSamePassword) {
		t.Fatalf("same password: err = %v, want ErrSamePassword", err)
	}

	if err := engine.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:          userID,
		CurrentPassword: "Sup3rSecret",
		NewPassword:     "weak",
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("weak new password: err = %v, want ErrValidation", err)
	}

	if err := engine.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:          userID,
		CurrentPassword: "Sup3rSecret",
		NewPassword:     "N3wSecretLonger",
	}); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := engine.Login(context.Background(), LoginInput{
		Email:    "chg@example.com",
		Password: "Sup3rSecret",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password after change: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := engine.Login(context.Background(), LoginInput{
		Email:    "chg@example.com",
		Password: "N3wSecretLonger",
	}); err != nil {
		t.Fatalf("new password after change: %v", err)
	}
}

func TestChangePasswordKeepsSessionsAlive(t *testing.T) {
	engine, _ := newTestEngine(t)
	result := mustRegister(t, engine, "keep@example.com")

	if err := engine.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:          result.User.ID,
		CurrentPassword: "Sup3rSecret",
		NewPassword:     "N3wSecretLonger",
	}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), result.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh after password change: %v", err)
	}
}

func TestResetPasswordEndToEnd(t *testing.T) {
	engine, recorder := newTestEngine(t)
	result := mustRegister(t, engine, "rst@example.com")
	oldRefresh := result.Tokens.RefreshToken

	if err := engine.ResetPassword(context.Background(), "RST@example.com"); err != nil {
		t.Fatalf("reset request: %v", err)
	}
	resetToken := recorder.lastToken(t)

	user, err := engine.ResetPasswordConfirm(context.Background(), ResetPasswordConfirmInput{
		Token:    resetToken,
		Password: "Fr3shSecret",
	})
	if err != nil {
		t.Fatalf("reset confirm: %v", err)
	}
	if user.ID != result.User.ID {
		t.Fatalf("reset confirm returned user %q, want %q", user.ID, result.User.ID)
	}

	if _, err := engine.Login(context.Background(), LoginInput{
		Email:    "rst@example.com",
		Password: "Fr3shSecret",
	}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := engine.Login(context.Background(), LoginInput{
		Email:    "rst@example.com",
		Password: "Sup3rSecret",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password: err = %v, want ErrInvalidCredentials", err)
	}

	// every pre-reset session is revoked
	if _, err := engine.Refresh(context.Background(), oldRefresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("pre-reset refresh token: err = %v, want ErrTokenInvalid", err)
	}

	// the reset token is single-use
	if _, err := engine.ResetPasswordConfirm(context.Background(), ResetPasswordConfirmInput{
		Token:    resetToken,
		Password: "An0therSecret",
	}); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("replayed reset token: err = %v, want ErrTokenInvalid", err)
	}
}

func TestResetPasswordUnknownEmailIsUniform(t *testing.T) {
	engine, recorder := newTestEngine(t)
	mustRegister(t, engine, "known@example.com")
	before := recorder.count()

	if err := engine.ResetPassword(context.Background(), "unknown@example.com"); err != nil {
		t.Fatalf("reset for unknown email: %v", err)
	}
	if recorder.count() != before {
		t.Fatal("no mail should be sent for an unknown email")
	}
}

func TestResetPasswordConfirmRejectsWrongTokenPurpose(t *testing.T) {
	engine, recorder := newTestEngine(t)
	mustRegister(t, engine, "prp@example.com")
	verificationToken := recorder.lastToken(t)

	if _, err := engine.ResetPasswordConfirm(context.Background(), ResetPasswordConfirmInput{
		Token:    verificationToken,
		Password: "Fr3shSecret",
	}); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("verification token for reset: err = %v, want ErrTokenInvalid", err)
	}

	// the mismatch must not burn the token for its real purpose
	if _, err := engine.VerifyEmail(context.Background(), verificationToken); err != nil {
		t.Fatalf("verify email after purpose mismatch: %v", err)
	}
}

func TestResetPasswordConfirmValidatesPolicyBeforeConsuming(t *testing.T) {
	engine, recorder := newTestEngine(t)
	mustRegister(t, engine, "pol@example.com")

	if err := engine.ResetPassword(context.Background(), "pol@example.com"); err != nil {
		t.Fatalf("reset request: %v", err)
	}
	resetToken := recorder.lastToken(t)

	if _, err := engine.ResetPasswordConfirm(context.Background(), ResetPasswordConfirmInput{
		Token:    resetToken,
		Password: "weak",
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("weak password: err = %v, want ErrValidation", err)
	}

	// the token survives the rejected attempt
	if _, err := engine.ResetPasswordConfirm(context.Background(), ResetPasswordConfirmInput{
		Token:    resetToken,
		Password: "Fr3shSecret",
	}); err != nil {
		t.Fatalf("reset confirm after policy failure: %v", err)
	}
}
