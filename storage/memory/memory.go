// Package memory provides the reference in-memory [storage.Adapter]. It is the
// behavioral baseline for the contract suite and the default backend for tests
// and examples. State lives in process memory and is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solidcore-labs/authcore/storage"
)

// Adapter is a mutex-guarded in-memory implementation of [storage.Adapter].
// The zero value is not usable; construct with [New].
type Adapter struct {
	mu          sync.Mutex
	users       map[string]*storage.User // id -> record
	emails      map[string]string        // canonical email -> id
	invalidated map[string]time.Time     // token -> expiry
	now         func() time.Time
}

// New returns an empty adapter.
func New() *Adapter {
	return &Adapter{
		users:       make(map[string]*storage.User),
		emails:      make(map[string]string),
		invalidated: make(map[string]time.Time),
		now:         time.Now,
	}
}

// CreateUser implements [storage.Adapter]. Uniqueness is enforced under the
// adapter mutex, so concurrent creations of the same canonical email yield
// exactly one success.
func (a *Adapter) CreateUser(ctx context.Context, input storage.NewUser) (*storage.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	email := storage.CanonicalEmail(input.Email)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, taken := a.emails[email]; taken {
		return nil, storage.ErrConflict
	}

	now := a.now().UTC()
	user := &storage.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  input.PasswordHash,
		Profile:       storage.MergeProfile(input.Profile, nil),
		EmailVerified: input.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	a.users[user.ID] = user
	a.emails[email] = user.ID

	return storage.CloneUser(user), nil
}

// GetUserByID implements [storage.Adapter].
func (a *Adapter) GetUserByID(ctx context.Context, id string) (*storage.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	user, ok := a.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.CloneUser(user), nil
}

// GetUserByEmail implements [storage.Adapter].
func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id, ok := a.emails[storage.CanonicalEmail(email)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.CloneUser(a.users[id]), nil
}

// UpdateUser implements [storage.Adapter]. Mutations on the same record are
// serialized by the adapter mutex.
func (a *Adapter) UpdateUser(ctx context.Context, id string, update storage.UserUpdate) (*storage.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	user, ok := a.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	if update.Profile != nil {
		user.Profile = storage.MergeProfile(user.Profile, update.Profile)
	}
	if update.EmailVerified != nil {
		user.EmailVerified = *update.EmailVerified
	}
	if update.LastLoginAt != nil {
		user.LastLoginAt = update.LastLoginAt.UTC()
	}
	if update.BumpTokenVersion {
		user.TokenVersion++
	}
	user.UpdatedAt = a.now().UTC()

	return storage.CloneUser(user), nil
}

// DeleteUser implements [storage.Adapter].
func (a *Adapter) DeleteUser(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	user, ok := a.users[id]
	if !ok {
		return false, nil
	}

	delete(a.emails, user.Email)
	delete(a.users, id)
	return true, nil
}

// InvalidateToken implements [storage.Adapter]. The map check and insert happen
// under one mutex hold, which provides the compare-and-set the refresh rotation
// race requires. Expired entries are pruned opportunistically on write.
func (a *Adapter) InvalidateToken(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.pruneLocked()

	if _, exists := a.invalidated[token]; exists {
		return false, nil
	}
	a.invalidated[token] = expiresAt
	return true, nil
}

// IsTokenInvalidated implements [storage.Adapter].
func (a *Adapter) IsTokenInvalidated(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	_, exists := a.invalidated[token]
	return exists, nil
}

// pruneLocked drops registry entries whose tokens are past their own expiry.
// Only such entries may be removed: the registry is otherwise append-only.
func (a *Adapter) pruneLocked() {
	now := a.now()
	for token, expiry := range a.invalidated {
		if now.After(expiry) {
			delete(a.invalidated, token)
		}
	}
}
