package authcore

import (
	"context"
	"fmt"

	"github.com/solidcore-labs/authcore/storage"
)

// GetProfile returns the caller-facing view of an account.
func (e *Engine) GetProfile(ctx context.Context, userID string) (*User, error) {
	user, err := e.adapter.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUser(user), nil
}

// UpdateProfile deep-merges the given entries into the stored profile: nested
// maps merge key by key, scalar values overwrite. Returns the updated user.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, profile map[string]any) (*User, error) {
	user, err := e.adapter.UpdateUser(ctx, userID, storage.UserUpdate{Profile: profile})
	if err != nil {
		return nil, err
	}
	return toUser(user), nil
}

// DeleteAccount removes the account. Outstanding refresh tokens die with it:
// rotation requires the stored account record.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	deleted, err := e.adapter.DeleteUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !deleted {
		return ErrUserNotFound
	}
	e.emit(ctx, EventAccountDeleted, userID, "", true, nil, nil)
	return nil
}
