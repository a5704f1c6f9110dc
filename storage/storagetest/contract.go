// Package storagetest provides the black-box contract suite every
// [storage.Adapter] implementation must pass. Substitutability is enforced by
// these tests, not by convention: an adapter that passes RunContract is safe to
// plug into the Engine.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/solidcore-labs/authcore/storage"
)

// Factory returns a fresh, empty adapter for one subtest. Implementations
// should register cleanup via t.Cleanup.
type Factory func(t *testing.T) storage.Adapter

// RunContract executes the shared adapter contract against the given factory.
func RunContract(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("CreateUserAssignsIdentity", testCreateUserAssignsIdentity(factory))
	t.Run("CreateUserDuplicateEmail", testCreateUserDuplicateEmail(factory))
	t.Run("CreateUserConcurrentSingleWinner", testCreateUserConcurrent(factory))
	t.Run("GetUserByEmailCanonicalizes", testGetUserByEmailCanonicalizes(factory))
	t.Run("GetUserNotFound", testGetUserNotFound(factory))
	t.Run("UpdateUserMergesProfile", testUpdateUserMergesProfile(factory))
	t.Run("UpdateUserPartialFields", testUpdateUserPartialFields(factory))
	t.Run("UpdateUserBumpsTokenVersion", testUpdateUserBumpsTokenVersion(factory))
	t.Run("UpdateUserNotFound", testUpdateUserNotFound(factory))
	t.Run("DeleteUser", testDeleteUser(factory))
	t.Run("InvalidateTokenIdempotentCAS", testInvalidateTokenCAS(factory))
	t.Run("InvalidateTokenConcurrentSingleFirst", testInvalidateTokenConcurrent(factory))
}

func testCreateUserAssignsIdentity(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)

		user, err := adapter.CreateUser(ctx, storage.NewUser{
			Email:        "Alice@Example.com",
			PasswordHash: "$argon2id$stub",
			Profile:      map[string]any{"name": "Alice"},
		})
		if err != nil {
			t.Fatalf("CreateUser error: %v", err)
		}

		if user.ID == "" {
			t.Fatal("expected a generated user id")
		}
		if user.Email != "alice@example.com" {
			t.Fatalf("expected canonical email, got %q", user.Email)
		}
		if user.EmailVerified {
			t.Fatal("expected EmailVerified to default to false")
		}
		if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
			t.Fatal("expected CreatedAt and UpdatedAt to be set")
		}
		if !user.LastLoginAt.IsZero() {
			t.Fatal("expected LastLoginAt to be zero before first login")
		}
	}
}

func testCreateUserDuplicateEmail(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)

		if _, err := adapter.CreateUser(ctx, storage.NewUser{Email: "a@x.com", PasswordHash: "h"}); err != nil {
			t.Fatalf("CreateUser error: %v", err)
		}

		// case-insensitive duplicate
		_, err := adapter.CreateUser(ctx, storage.NewUser{Email: "A@X.com", PasswordHash: "h"})
		if !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("expected ErrConflict for duplicate canonical email, got %v", err)
		}
	}
}

func testCreateUserConcurrent(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)

		const workers = 8
		start := make(chan struct{})
		results := make(chan error, workers)
		var wg sync.WaitGroup
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				<-start
				_, err := adapter.CreateUser(ctx, storage.NewUser{Email: "race@x.com", PasswordHash: "h"})
				results <- err
			}()
		}

		close(start)
		wg.Wait()
		close(results)

		success := 0
		for err := range results {
			switch {
			case err == nil:
				success++
			case errors.Is(err, storage.ErrConflict):
			default:
				t.Fatalf("unexpected CreateUser error: %v", err)
			}
		}
		if success != 1 {
			t.Fatalf("expected exactly one successful creation, got %d", success)
		}
	}
}

func testGetUserByEmailCanonicalizes(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)

		created, err := adapter.CreateUser(ctx, storage.NewUser{Email: "bob@x.com", PasswordHash: "h"})
		if err != nil {
			t.Fatalf("CreateUser error: %v", err)
		}

		got, err := adapter.GetUserByEmail(ctx, "  BOB@X.com ")
		if err != nil {
			t.Fatalf("GetUserByEmail error: %v", err)
		}
		if got.ID != created.ID {
			t.Fatalf("expected id %q, got %q", created.ID, got.ID)
		}
	}
}

func testGetUserNotFound(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)

		if _, err := adapter.GetUserByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("GetUserByID: expected ErrNotFound, got %v", err)
		}
		if _, err := adapter.GetUserByEmail(ctx, "missing@x.com"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("GetUserByEmail: expected ErrNotFound, got %v", err)
		}
	}
}

func testUpdateUserMergesProfile(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)

		created, err := adapter.CreateUser(ctx, storage.NewUser{
			Email:        "carol@x.com",
			PasswordHash: "h",
			Profile: map[string]any{
				"name":  "Carol",
				"prefs": map[string]any{"theme": "dark", "lang": "en"},
			},
		})
		if err != nil {
			t.Fatalf("CreateUser error: %v", err)
		}

		updated, err := adapter.UpdateUser(ctx, created.ID, storage.UserUpdate{
			Profile: map[string]any{
				"prefs": map[string]any{"lang": "fr"},
				"plan":  "pro",
			},
		})
		if err != nil {
			t.Fatalf("UpdateUser error: %v", err)
		}

		if updated.Profile["name"] != "Carol" {
			t.Fatalf("expected untouched key to survive merge, got %#v", updated.Profile)
		}
		if updated.Profile["plan"] != "pro" {
			t.Fatalf("expected new key after merge, got %#v", updated.Profile)
		}
		prefs, ok := updated.Profile["prefs"].(map[string]any)
		if !ok {
			t.Fatalf("expected nested prefs map, got %#v", updated.Profile["prefs"])
		}
		if prefs["theme"] != "dark" || prefs["lang"] != "fr" {
			t.Fatalf("expected deep merge of nested map, got %#v", prefs)
		}
	}
}

func testUpdateUserPartialFields(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)

		created, err := adapter.CreateUser(ctx, storage.NewUser{Email: "dave@x.com", PasswordHash: "h1"})
		if err != nil {
			t.Fatalf("CreateUser error: %v", err)
		}

		newHash := "h2"
		verified := true
		loginAt := time.Now().UTC().Truncate(time.Second)
		updated, err := adapter.UpdateUser(ctx, created.ID, storage.UserUpdate{
			PasswordHash:  &newHash,
			EmailVerified: &verified,
			LastLoginAt:   &loginAt,
		})
		if err != nil {
			t.Fatalf("UpdateUser error: %v", err)
		}

		if updated.PasswordHash != "h2" {
			t.Fatalf("expected updated hash, got %q", updated.PasswordHash)
		}
		if !updated.EmailVerified {
			t.Fatal("expected EmailVerified true")
		}
		if !updated.LastLoginAt.Equal(loginAt) {
			t.Fatalf("expected LastLoginAt %v, got %v", loginAt, updated.LastLoginAt)
		}
		if updated.Email != "dave@x.com" {
			t.Fatalf("expected email untouched, got %q", updated.Email)
		}
		if updated.UpdatedAt.Before(created.UpdatedAt) {
			t.Fatal("expected UpdatedAt to be refreshed")
		}
	}
}

func testUpdateUserBumpsTokenVersion(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)

		created, err := adapter.CreateUser(ctx, storage.NewUser{Email: "erin@x.com", PasswordHash: "h"})
		if err != nil {
			t.Fatalf("CreateUser error: %v", err)
		}

		updated, err := adapter.UpdateUser(ctx, created.ID, storage.UserUpdate{BumpTokenVersion: true})
		if err != nil {
			t.Fatalf("UpdateUser error: %v", err)
		}
		if updated.TokenVersion != created.TokenVersion+1 {
			t.Fatalf("expected token version %d, got %d", created.TokenVersion+1, updated.TokenVersion)
		}
	}
}

func testUpdateUserNotFound(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)

		_, err := adapter.UpdateUser(ctx, "missing", storage.UserUpdate{BumpTokenVersion: true})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
}

func testDeleteUser(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)

		created, err := adapter.CreateUser(ctx, storage.NewUser{Email: "frank@x.com", PasswordHash: "h"})
		if err != nil {
			t.Fatalf("CreateUser error: %v", err)
		}

		deleted, err := adapter.DeleteUser(ctx, created.ID)
		if err != nil {
			t.Fatalf("DeleteUser error: %v", err)
		}
		if !deleted {
			t.Fatal("expected DeleteUser to report an existing record")
		}

		if _, err := adapter.GetUserByID(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if _, err := adapter.GetUserByEmail(ctx, "frank@x.com"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected email index cleared after delete, got %v", err)
		}

		// deleting again is not an error, just false
		deleted, err = adapter.DeleteUser(ctx, created.ID)
		if err != nil {
			t.Fatalf("DeleteUser (second) error: %v", err)
		}
		if deleted {
			t.Fatal("expected second DeleteUser to report no record")
		}

		// the email becomes available again
		if _, err := adapter.CreateUser(ctx, storage.NewUser{Email: "frank@x.com", PasswordHash: "h"}); err != nil {
			t.Fatalf("expected re-registration after delete, got %v", err)
		}
	}
}

func testInvalidateTokenCAS(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)
		expiry := time.Now().Add(time.Hour)

		invalidated, err := adapter.IsTokenInvalidated(ctx, "tok-1")
		if err != nil {
			t.Fatalf("IsTokenInvalidated error: %v", err)
		}
		if invalidated {
			t.Fatal("expected unknown token to not be invalidated")
		}

		first, err := adapter.InvalidateToken(ctx, "tok-1", expiry)
		if err != nil {
			t.Fatalf("InvalidateToken error: %v", err)
		}
		if !first {
			t.Fatal("expected first invalidation to report first=true")
		}

		first, err = adapter.InvalidateToken(ctx, "tok-1", expiry)
		if err != nil {
			t.Fatalf("InvalidateToken (second) error: %v", err)
		}
		if first {
			t.Fatal("expected repeated invalidation to report first=false")
		}

		invalidated, err = adapter.IsTokenInvalidated(ctx, "tok-1")
		if err != nil {
			t.Fatalf("IsTokenInvalidated error: %v", err)
		}
		if !invalidated {
			t.Fatal("expected token to be invalidated")
		}
	}
}

func testInvalidateTokenConcurrent(factory Factory) func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		adapter := factory(t)
		expiry := time.Now().Add(time.Hour)

		const workers = 16
		start := make(chan struct{})
		firsts := make(chan bool, workers)
		var wg sync.WaitGroup
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				<-start
				first, err := adapter.InvalidateToken(ctx, "tok-race", expiry)
				if err != nil {
					t.Errorf("InvalidateToken error: %v", err)
					firsts <- false
					return
				}
				firsts <- first
			}()
		}

		close(start)
		wg.Wait()
		close(firsts)

		winners := 0
		for first := range firsts {
			if first {
				winners++
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one first invalidation, got %d", winners)
		}
	}
}
