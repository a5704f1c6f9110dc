package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrConflict is returned by CreateUser when the canonical email is already taken.
	ErrConflict = errors.New("email already registered")
	// ErrNotFound is returned when no user matches the given id or email.
	ErrNotFound = errors.New("user not found")
	// ErrUnavailable wraps backend failures (connection loss, query errors).
	ErrUnavailable = errors.New("storage unavailable")
)

// User is the persisted account record. Email is always stored in canonical
// (lowercased, trimmed) form. PasswordHash is the PHC-encoded hasher output and
// must never reach end clients.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	Profile       map[string]any
	EmailVerified bool
	TokenVersion  uint32
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLoginAt   time.Time
}

// NewUser carries the fields required to create an account. The adapter assigns
// the ID and timestamps.
type NewUser struct {
	Email         string
	PasswordHash  string
	Profile       map[string]any
	EmailVerified bool
}

// UserUpdate is a partial update. Nil pointer fields are left untouched.
// Profile entries deep-merge into the existing profile instead of replacing it.
// BumpTokenVersion atomically increments the user's token version, revoking all
// outstanding refresh tokens at verification time.
type UserUpdate struct {
	PasswordHash     *string
	Profile          map[string]any
	EmailVerified    *bool
	LastLoginAt      *time.Time
	BumpTokenVersion bool
}

// Adapter is the pluggable identity-storage boundary. Implementations must be
// safe for concurrent use and must keep the semantics below identical so the
// Engine behaves the same regardless of backend.
type Adapter interface {
	// CreateUser persists a new account. It fails with [ErrConflict] when the
	// canonical email already exists, including under concurrent creation
	// attempts (uniqueness must be race-safe, not check-then-write).
	CreateUser(ctx context.Context, input NewUser) (*User, error)

	// GetUserByID returns the user or [ErrNotFound].
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail canonicalizes the email before lookup and returns the
	// user or [ErrNotFound].
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateUser applies a partial update, refreshes UpdatedAt, and returns
	// the updated record, or [ErrNotFound] for an unknown id.
	UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error)

	// DeleteUser removes the account. The bool reports whether a record existed.
	DeleteUser(ctx context.Context, id string) (bool, error)

	// InvalidateToken adds a token identifier to the append-only invalidation
	// registry. It is idempotent: invalidating twice is not an error. The bool
	// reports whether THIS call performed the invalidation, which makes the
	// operation a compare-and-set — under N concurrent calls for the same token,
	// exactly one observes true. expiresAt is the token's own expiry; entries
	// past it may be pruned, since the token could no longer verify anyway.
	InvalidateToken(ctx context.Context, token string, expiresAt time.Time) (bool, error)

	// IsTokenInvalidated reports whether the token identifier is in the registry.
	IsTokenInvalidated(ctx context.Context, token string) (bool, error)
}

// CanonicalEmail lowercases and trims an email address. All uniqueness checks
// and lookups operate on this form.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MergeProfile deep-merges src into dst and returns the result. Nested maps
// merge recursively; scalar values (including nil) overwrite. Neither input is
// mutated.
func MergeProfile(dst, src map[string]any) map[string]any {
	if dst == nil && src == nil {
		return nil
	}

	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = cloneValue(v)
	}

	for k, v := range src {
		existing, ok := out[k]
		if ok {
			dstMap, dstOK := existing.(map[string]any)
			srcMap, srcOK := v.(map[string]any)
			if dstOK && srcOK {
				out[k] = MergeProfile(dstMap, srcMap)
				continue
			}
		}
		out[k] = cloneValue(v)
	}

	return out
}

// CloneUser returns a deep copy so adapter-internal records never alias
// caller-held ones.
func CloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Profile = MergeProfile(u.Profile, nil)
	return &clone
}

func cloneValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		return MergeProfile(m, nil)
	}
	return v
}
