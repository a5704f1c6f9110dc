package authcore

import (
	"errors"
	"time"

	"github.com/solidcore-labs/authcore/email"
	"github.com/solidcore-labs/authcore/password"
)

// Config groups all Engine settings. Instances are configured during
// initialization and treated as immutable after [Builder.Build].
type Config struct {
	JWT          JWTConfig
	Password     PasswordConfig
	Registration RegistrationConfig
	Email        EmailConfig
	Audit        AuditConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the signing secret and token lifetimes. The secret is loaded
// once at process start and read-only thereafter.
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	PurposeTTL time.Duration
	Leeway     time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig combines strength policy options with Argon2id cost
// parameters.
type PasswordConfig struct {
	Policy password.Options

	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// UpgradeOnLogin re-hashes the stored password transparently after a
	// successful login when the stored hash used weaker parameters.
	UpgradeOnLogin bool
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig tunes the register flow.
type RegistrationConfig struct {
	// AutoLogin issues a token pair directly from Register.
	AutoLogin bool
}

/*
====================================
EMAIL CONFIG
====================================
*/

// EmailConfig holds the sender address and the purpose-token mail templates.
// Templates recognize the {token} and {email} placeholders.
type EmailConfig struct {
	From                 string
	ResetTemplate        email.Template
	VerificationTemplate email.Template
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig tunes the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the auth flow when the
	// buffer is saturated.
	DropIfFull bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:     "authcore",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			PurposeTTL: time.Hour,
		},
		Password: PasswordConfig{
			Policy: password.Options{
				MinLength:        8,
				RequireUppercase: true,
				RequireLowercase: true,
				RequireNumbers:   true,
			},
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Email: EmailConfig{
			From: "no-reply@localhost",
			ResetTemplate: email.Template{
				Subject: "Password reset",
				Text:    "Use this token to reset your password: {token}",
			},
			VerificationTemplate: email.Template{
				Subject: "Verify your email",
				Text:    "Use this token to verify your email address: {token}",
			},
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.JWT.Secret) < 32 {
		return errors.New("JWT secret must be at least 32 bytes")
	}
	if cfg.JWT.AccessTTL <= 0 {
		return errors.New("access token TTL must be positive")
	}
	if cfg.JWT.RefreshTTL <= cfg.JWT.AccessTTL {
		return errors.New("refresh token TTL must exceed access token TTL")
	}
	if cfg.JWT.PurposeTTL <= 0 {
		return errors.New("purpose token TTL must be positive")
	}
	if cfg.Password.Policy.MinLength < 0 {
		return errors.New("password minimum length must not be negative")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	clone := cfg
	clone.JWT.Secret = append([]byte(nil), cfg.JWT.Secret...)
	return clone
}
