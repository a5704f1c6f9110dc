package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solidcore-labs/authcore/storage"
)

// Login verifies credentials and issues a token pair. Unknown email and wrong
// password both fail with [ErrInvalidCredentials]; the dummy verification on
// the unknown-email path keeps the two failures indistinguishable by timing
// as well as by error.
func (e *Engine) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	emailAddr := storage.CanonicalEmail(input.Email)

	if err := e.checkLimit(ctx, OpLogin, emailAddr); err != nil {
		return nil, err
	}

	user, err := e.adapter.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_, _ = e.hasher.Verify(input.Password, e.dummyHash)
			return nil, e.loginFailed(ctx, emailAddr)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	ok, err := e.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, e.loginFailed(ctx, emailAddr)
	}

	update := storage.UserUpdate{}
	now := time.Now()
	update.LastLoginAt = &now

	if e.config.Password.UpgradeOnLogin {
		if stale, err := e.hasher.NeedsRehash(user.PasswordHash); err == nil && stale {
			if rehashed, err := e.hasher.Hash(input.Password); err == nil {
				update.PasswordHash = &rehashed
			} else {
				e.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
			}
		}
	}

	updated, err := e.adapter.UpdateUser(ctx, user.ID, update)
	if err != nil {
		// login already succeeded; a failed bookkeeping write is not fatal
		e.logger.WarnContext(ctx, "post-login update failed", "user_id", user.ID, "error", err)
		updated = user
	}

	pair, err := e.tokens.IssuePair(updated.ID, updated.TokenVersion)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	e.resetLimit(ctx, OpLogin, emailAddr)
	e.metrics.logins.Add(1)
	e.emit(ctx, EventLoginSuccess, updated.ID, updated.Email, true, nil, nil)

	return &LoginResult{
		User:   toUser(updated),
		Tokens: toTokenPair(pair),
	}, nil
}

func (e *Engine) loginFailed(ctx context.Context, emailAddr string) error {
	e.recordAttempt(ctx, OpLogin, emailAddr)
	e.metrics.loginFailures.Add(1)
	e.emit(ctx, EventLoginFailure, "", emailAddr, false, ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}
