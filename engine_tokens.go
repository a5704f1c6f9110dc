package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/solidcore-labs/authcore/storage"
	"github.com/solidcore-labs/authcore/token"
)

// Refresh rotates a refresh token and returns a brand-new pair. The presented
// token is consumed atomically: under concurrent calls with the same token
// exactly one succeeds and the rest fail with [ErrTokenReuse]. Reuse is a
// security signal and is audited as such, never downgraded to a generic
// invalid-token failure.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	pair, err := e.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrReuse) {
			e.metrics.reuseDetections.Add(1)
			e.emit(ctx, EventTokenReuse, "", "", false, err, nil)
		}
		return TokenPair{}, err
	}

	e.metrics.refreshes.Add(1)
	e.emit(ctx, EventRefresh, "", "", true, nil, nil)
	return toTokenPair(pair), nil
}

// Logout invalidates the given refresh token. Logging out an already
// invalidated or expired token succeeds silently.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.tokens.Logout(ctx, refreshToken); err != nil {
		return err
	}
	e.metrics.logouts.Add(1)
	e.emit(ctx, EventLogout, "", "", true, nil, nil)
	return nil
}

// VerifyAccessToken checks signature and expiry and returns the user id. No
// storage access: access tokens are valid until they expire.
func (e *Engine) VerifyAccessToken(accessToken string) (string, error) {
	return e.tokens.VerifyAccessToken(accessToken)
}

// InvalidateUserSessions revokes every outstanding refresh token for the user
// by bumping the account's token version. Already issued access tokens remain
// valid until their short expiry.
func (e *Engine) InvalidateUserSessions(ctx context.Context, userID string) error {
	user, err := e.adapter.UpdateUser(ctx, userID, storage.UserUpdate{BumpTokenVersion: true})
	if err != nil {
		return fmt.Errorf("invalidate sessions: %w", err)
	}
	e.emit(ctx, EventSessionsInvalidated, user.ID, user.Email, true, nil, nil)
	return nil
}
