package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/solidcore-labs/authcore/storage"
	"github.com/solidcore-labs/authcore/token"
)

// Register creates a new account. The email is canonicalized before the
// uniqueness check, the password is validated against the strength policy and
// stored only as an Argon2id hash. Unless AutoVerify is set, a single-use
// verification token is mailed through the configured sender. With
// auto-login enabled the result carries a fresh token pair.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	emailAddr := storage.CanonicalEmail(input.Email)
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if err := e.validatePassword(input.Password); err != nil {
		return nil, err
	}

	if err := e.checkLimit(ctx, OpRegister, emailAddr); err != nil {
		return nil, err
	}
	e.recordAttempt(ctx, OpRegister, emailAddr)

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := e.adapter.CreateUser(ctx, storage.NewUser{
		Email:         emailAddr,
		PasswordHash:  hash,
		Profile:       input.Profile,
		EmailVerified: input.AutoVerify,
	})
	if err != nil {
		e.emit(ctx, EventRegister, "", emailAddr, false, err, nil)
		return nil, err
	}

	if !input.AutoVerify {
		if err := e.sendVerificationMail(ctx, user.ID, user.Email); err != nil {
			// account exists; the token can be re-sent later
			e.logger.WarnContext(ctx, "verification mail failed", "user_id", user.ID, "error", err)
		}
	}

	result := &RegisterResult{User: toUser(user)}
	if e.config.Registration.AutoLogin {
		pair, err := e.tokens.IssuePair(user.ID, user.TokenVersion)
		if err != nil {
			return nil, fmt.Errorf("issue tokens: %w", err)
		}
		tokens := toTokenPair(pair)
		result.Tokens = &tokens
	}

	e.metrics.registrations.Add(1)
	e.emit(ctx, EventRegister, user.ID, user.Email, true, nil, nil)
	return result, nil
}

func (e *Engine) sendVerificationMail(ctx context.Context, userID, emailAddr string) error {
	verifyToken, err := e.tokens.IssuePurposeToken(userID, token.PurposeEmailVerification)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	return e.sendMail(ctx, emailAddr, e.config.Email.VerificationTemplate, map[string]string{
		"token": verifyToken,
		"email": emailAddr,
	})
}
