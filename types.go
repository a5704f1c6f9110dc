package authcore

import (
	"context"
	"time"

	"github.com/solidcore-labs/authcore/storage"
	"github.com/solidcore-labs/authcore/token"
)

// User is the caller-facing account view. It never carries the password hash
// or the token version.
type User struct {
	ID            string
	Email         string
	Profile       map[string]any
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLoginAt   time.Time
}

// TokenPair is an access/refresh token pair issued together.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterInput carries the fields accepted by [Engine.Register].
type RegisterInput struct {
	Email    string
	Password string
	Profile  map[string]any
	// AutoVerify marks the email verified at creation, skipping the
	// verification mail. Intended for trusted provisioning paths.
	AutoVerify bool
}

// RegisterResult is returned by [Engine.Register]. Tokens is nil unless
// auto-login is enabled in [RegistrationConfig].
type RegisterResult struct {
	User   *User
	Tokens *TokenPair
}

// LoginInput carries the credentials for [Engine.Login].
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	User   *User
	Tokens TokenPair
}

// ChangePasswordInput carries the fields for [Engine.ChangePassword].
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// ResetPasswordConfirmInput carries the fields for [Engine.ResetPasswordConfirm].
type ResetPasswordConfirmInput struct {
	Token    string
	Password string
}

// RateLimiter is the admission-control contract consulted before sensitive
// operations. A nil limiter disables limiting. The rate package provides a
// Redis-backed fixed-window implementation.
type RateLimiter interface {
	// Check reports whether the operation+identifier pair is within budget.
	Check(ctx context.Context, op, identifier string) error
	// Record counts a failed attempt.
	Record(ctx context.Context, op, identifier string) error
	// Reset clears the counter after a success.
	Reset(ctx context.Context, op, identifier string) error
}

// Rate limiter operation names used by the Engine.
const (
	OpLogin         = "login"
	OpRegister      = "register"
	OpPasswordReset = "password_reset"
	OpVerification  = "verification"
)

func toUser(u *storage.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:            u.ID,
		Email:         u.Email,
		Profile:       storage.MergeProfile(u.Profile, nil),
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
}

func toTokenPair(p token.Pair) TokenPair {
	return TokenPair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}
