// Package redisstore implements [storage.Adapter] on Redis.
//
// # Key layout
//
//	<prefix>user:<id>      JSON-encoded user record
//	<prefix>email:<email>  canonical email -> user id (uniqueness guard)
//	<prefix>deny:<token>   invalidation registry entry, TTL = token expiry
//
// Email uniqueness relies on SETNX of the email index key, and the invalidation
// registry on SETNX of the deny key, so both race-critical operations are single
// atomic Redis commands. Registry entries expire with the token they reference,
// which keeps the denylist bounded without violating its append-only contract.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/solidcore-labs/authcore/storage"
)

const defaultPrefix = "ac:"

// updateRetries bounds the optimistic WATCH loop in UpdateUser.
const updateRetries = 5

// Adapter is a Redis-backed [storage.Adapter].
type Adapter struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures the adapter.
type Option func(*Adapter)

// WithPrefix overrides the default "ac:" key prefix.
func WithPrefix(prefix string) Option {
	return func(a *Adapter) {
		if prefix != "" {
			a.prefix = prefix
		}
	}
}

// New returns an adapter using the given Redis client.
func New(rdb redis.UniversalClient, opts ...Option) *Adapter {
	a := &Adapter{
		rdb:    rdb,
		prefix: defaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type userRecord struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	PasswordHash  string         `json:"password_hash"`
	Profile       map[string]any `json:"profile,omitempty"`
	EmailVerified bool           `json:"email_verified"`
	TokenVersion  uint32         `json:"token_version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	LastLoginAt   time.Time      `json:"last_login_at,omitempty"`
}

func (a *Adapter) userKey(id string) string     { return a.prefix + "user:" + id }
func (a *Adapter) emailKey(email string) string { return a.prefix + "email:" + email }
func (a *Adapter) denyKey(token string) string  { return a.prefix + "deny:" + token }

// CreateUser implements [storage.Adapter]. SETNX on the email index key is the
// race-safe uniqueness check: the second concurrent writer loses the SETNX and
// observes [storage.ErrConflict].
func (a *Adapter) CreateUser(ctx context.Context, input storage.NewUser) (*storage.User, error) {
	email := storage.CanonicalEmail(input.Email)
	id := uuid.NewString()

	claimed, err := a.rdb.SetNX(ctx, a.emailKey(email), id, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	if !claimed {
		return nil, storage.ErrConflict
	}

	now := a.now().UTC()
	record := userRecord{
		ID:            id,
		Email:         email,
		PasswordHash:  input.PasswordHash,
		Profile:       storage.MergeProfile(input.Profile, nil),
		EmailVerified: input.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := a.saveRecord(ctx, &record); err != nil {
		// roll back the email claim so the address is not leaked forever
		_ = a.rdb.Del(ctx, a.emailKey(email)).Err()
		return nil, err
	}

	return record.toUser(), nil
}

// GetUserByID implements [storage.Adapter].
func (a *Adapter) GetUserByID(ctx context.Context, id string) (*storage.User, error) {
	record, err := a.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return record.toUser(), nil
}

// GetUserByEmail implements [storage.Adapter].
func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	id, err := a.rdb.Get(ctx, a.emailKey(storage.CanonicalEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return a.GetUserByID(ctx, id)
}

// UpdateUser implements [storage.Adapter]. The read-merge-write cycle runs in a
// WATCH transaction so concurrent updates of the same record serialize instead
// of losing writes.
func (a *Adapter) UpdateUser(ctx context.Context, id string, update storage.UserUpdate) (*storage.User, error) {
	key := a.userKey(id)

	var updated *storage.User
	apply := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return storage.ErrNotFound
			}
			return err
		}

		var record userRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}

		if update.PasswordHash != nil {
			record.PasswordHash = *update.PasswordHash
		}
		if update.Profile != nil {
			record.Profile = storage.MergeProfile(record.Profile, update.Profile)
		}
		if update.EmailVerified != nil {
			record.EmailVerified = *update.EmailVerified
		}
		if update.LastLoginAt != nil {
			record.LastLoginAt = update.LastLoginAt.UTC()
		}
		if update.BumpTokenVersion {
			record.TokenVersion++
		}
		record.UpdatedAt = a.now().UTC()

		encoded, err := json.Marshal(&record)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}

		updated = record.toUser()
		return nil
	}

	for attempt := 0; attempt < updateRetries; attempt++ {
		err := a.rdb.Watch(ctx, apply, key)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, storage.ErrNotFound):
			return nil, storage.ErrNotFound
		default:
			return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
		}
	}

	return nil, fmt.Errorf("%w: update contention on user %s", storage.ErrUnavailable, id)
}

// DeleteUser implements [storage.Adapter].
func (a *Adapter) DeleteUser(ctx context.Context, id string) (bool, error) {
	record, err := a.loadRecord(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := a.rdb.Del(ctx, a.userKey(id), a.emailKey(record.Email)).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return true, nil
}

// InvalidateToken implements [storage.Adapter]. SETNX makes the registry insert
// a compare-and-set: exactly one of N concurrent callers observes first=true.
func (a *Adapter) InvalidateToken(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(a.now())
	if ttl <= 0 {
		// the token can no longer verify, but keep the entry briefly so
		// repeated invalidation still reports first=false
		ttl = time.Minute
	}

	first, err := a.rdb.SetNX(ctx, a.denyKey(token), a.now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return first, nil
}

// IsTokenInvalidated implements [storage.Adapter].
func (a *Adapter) IsTokenInvalidated(ctx context.Context, token string) (bool, error) {
	n, err := a.rdb.Exists(ctx, a.denyKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return n > 0, nil
}

func (a *Adapter) saveRecord(ctx context.Context, record *userRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := a.rdb.Set(ctx, a.userKey(record.ID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

func (a *Adapter) loadRecord(ctx context.Context, id string) (*userRecord, error) {
	data, err := a.rdb.Get(ctx, a.userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	var record userRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: corrupt user record: %v", storage.ErrUnavailable, err)
	}
	return &record, nil
}

func (r *userRecord) toUser() *storage.User {
	return &storage.User{
		ID:            r.ID,
		Email:         r.Email,
		PasswordHash:  r.PasswordHash,
		Profile:       storage.MergeProfile(r.Profile, nil),
		EmailVerified: r.EmailVerified,
		TokenVersion:  r.TokenVersion,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		LastLoginAt:   r.LastLoginAt,
	}
}
