package authcore

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	Secret     string        `env:"AUTHCORE_JWT_SECRET"`
	Issuer     string        `env:"AUTHCORE_JWT_ISSUER"`
	AccessTTL  time.Duration `env:"AUTHCORE_ACCESS_TTL"`
	RefreshTTL time.Duration `env:"AUTHCORE_REFRESH_TTL"`
	PurposeTTL time.Duration `env:"AUTHCORE_PURPOSE_TTL"`

	PasswordMinLength     int  `env:"AUTHCORE_PASSWORD_MIN_LENGTH"`
	RequireUppercase      bool `env:"AUTHCORE_PASSWORD_REQUIRE_UPPERCASE"`
	RequireLowercase      bool `env:"AUTHCORE_PASSWORD_REQUIRE_LOWERCASE"`
	RequireNumbers        bool `env:"AUTHCORE_PASSWORD_REQUIRE_NUMBERS"`
	RequireSpecialChars   bool `env:"AUTHCORE_PASSWORD_REQUIRE_SPECIAL"`
	PasswordPolicyFromEnv bool `env:"AUTHCORE_PASSWORD_POLICY_OVERRIDE"`

	AutoLogin bool `env:"AUTHCORE_REGISTRATION_AUTO_LOGIN"`

	EmailFrom string `env:"AUTHCORE_EMAIL_FROM"`

	AuditEnabled bool `env:"AUTHCORE_AUDIT_ENABLED"`
}

// FromEnv builds a [Config] from AUTHCORE_* environment variables layered over
// the package defaults. Unset variables keep their default; the password
// policy is replaced wholesale only when AUTHCORE_PASSWORD_POLICY_OVERRIDE is
// set, so partial policy env vars cannot silently weaken the default rules.
func FromEnv() (Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()

	if raw.Secret != "" {
		cfg.JWT.Secret = []byte(raw.Secret)
	}
	if raw.Issuer != "" {
		cfg.JWT.Issuer = raw.Issuer
	}
	if raw.AccessTTL > 0 {
		cfg.JWT.AccessTTL = raw.AccessTTL
	}
	if raw.RefreshTTL > 0 {
		cfg.JWT.RefreshTTL = raw.RefreshTTL
	}
	if raw.PurposeTTL > 0 {
		cfg.JWT.PurposeTTL = raw.PurposeTTL
	}

	if raw.PasswordPolicyFromEnv {
		cfg.Password.Policy.MinLength = raw.PasswordMinLength
		cfg.Password.Policy.RequireUppercase = raw.RequireUppercase
		cfg.Password.Policy.RequireLowercase = raw.RequireLowercase
		cfg.Password.Policy.RequireNumbers = raw.RequireNumbers
		cfg.Password.Policy.RequireSpecialChars = raw.RequireSpecialChars
	}

	cfg.Registration.AutoLogin = raw.AutoLogin

	if raw.EmailFrom != "" {
		cfg.Email.From = raw.EmailFrom
	}

	cfg.Audit.Enabled = raw.AuditEnabled

	return cfg, nil
}
