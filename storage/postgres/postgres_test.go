package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/solidcore-labs/authcore/storage"
)

func newAdapterWithMock(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}

	adapter := New(db)
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return fixed }

	return adapter, mock, db
}

func userRows(id, email string, tokenVersion uint32) *sqlmock.Rows {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	profile, _ := json.Marshal(map[string]any{"name": "Alice"})
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "profile", "email_verified",
		"token_version", "created_at", "updated_at", "last_login_at",
	}).AddRow(id, email, "$argon2id$stub", profile, false, tokenVersion, now, now, nil)
}

func TestCreateUser_Success(t *testing.T) {
	adapter, mock, db := newAdapterWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT INTO authcore_users .*VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)$`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := adapter.CreateUser(context.Background(), storage.NewUser{
		Email:        "Alice@Example.com",
		PasswordHash: "$argon2id$stub",
	})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected canonical email, got %q", user.Email)
	}
	if user.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	adapter, mock, db := newAdapterWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^INSERT INTO authcore_users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "authcore_users_email_uq"})

	_, err := adapter.CreateUser(context.Background(), storage.NewUser{Email: "a@x.com", PasswordHash: "h"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	adapter, mock, db := newAdapterWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT .* FROM authcore_users WHERE id = \$1$`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := adapter.GetUserByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserByEmail_Canonicalizes(t *testing.T) {
	adapter, mock, db := newAdapterWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT .* FROM authcore_users WHERE lower\(email\) = \$1$`).
		WithArgs("bob@x.com").
		WillReturnRows(userRows("u1", "bob@x.com", 0))

	user, err := adapter.GetUserByEmail(context.Background(), "  BOB@X.com ")
	if err != nil {
		t.Fatalf("GetUserByEmail error: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.Profile["name"] != "Alice" {
		t.Fatalf("expected decoded profile, got %#v", user.Profile)
	}
}

func TestUpdateUser_MergesAndBumpsVersion(t *testing.T) {
	adapter, mock, db := newAdapterWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`^SELECT .* FROM authcore_users WHERE id = \$1 FOR UPDATE$`).
		WithArgs("u1").
		WillReturnRows(userRows("u1", "bob@x.com", 2))
	mock.ExpectExec(`(?s)^UPDATE authcore_users.*WHERE id = \$1$`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	newHash := "h2"
	user, err := adapter.UpdateUser(context.Background(), "u1", storage.UserUpdate{
		PasswordHash:     &newHash,
		Profile:          map[string]any{"plan": "pro"},
		BumpTokenVersion: true,
	})
	if err != nil {
		t.Fatalf("UpdateUser error: %v", err)
	}
	if user.TokenVersion != 3 {
		t.Fatalf("expected token version 3, got %d", user.TokenVersion)
	}
	if user.PasswordHash != "h2" {
		t.Fatalf("expected new hash, got %q", user.PasswordHash)
	}
	if user.Profile["name"] != "Alice" || user.Profile["plan"] != "pro" {
		t.Fatalf("expected merged profile, got %#v", user.Profile)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateUser_NotFoundRollsBack(t *testing.T) {
	adapter, mock, db := newAdapterWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`^SELECT .* FROM authcore_users WHERE id = \$1 FOR UPDATE$`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := adapter.UpdateUser(context.Background(), "missing", storage.UserUpdate{BumpTokenVersion: true})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteUser(t *testing.T) {
	adapter, mock, db := newAdapterWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM authcore_users WHERE id = \$1$`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE FROM authcore_users WHERE id = \$1$`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := adapter.DeleteUser(context.Background(), "u1")
	if err != nil || !deleted {
		t.Fatalf("expected deleted=true, got %v / %v", deleted, err)
	}

	deleted, err = adapter.DeleteUser(context.Background(), "u1")
	if err != nil || deleted {
		t.Fatalf("expected deleted=false on second call, got %v / %v", deleted, err)
	}
}

func TestInvalidateToken_FirstWriterWins(t *testing.T) {
	adapter, mock, db := newAdapterWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT INTO authcore_invalidated_tokens.*ON CONFLICT \(token\) DO NOTHING$`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT INTO authcore_invalidated_tokens.*ON CONFLICT \(token\) DO NOTHING$`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	expiry := time.Now().Add(time.Hour)

	first, err := adapter.InvalidateToken(context.Background(), "tok", expiry)
	if err != nil {
		t.Fatalf("InvalidateToken error: %v", err)
	}
	if !first {
		t.Fatal("expected first=true when the row was inserted")
	}

	first, err = adapter.InvalidateToken(context.Background(), "tok", expiry)
	if err != nil {
		t.Fatalf("InvalidateToken (second) error: %v", err)
	}
	if first {
		t.Fatal("expected first=false when the row already existed")
	}
}

func TestIsTokenInvalidated(t *testing.T) {
	adapter, mock, db := newAdapterWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT EXISTS`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	invalidated, err := adapter.IsTokenInvalidated(context.Background(), "tok")
	if err != nil {
		t.Fatalf("IsTokenInvalidated error: %v", err)
	}
	if !invalidated {
		t.Fatal("expected invalidated=true")
	}
}

func TestPruneExpired(t *testing.T) {
	adapter, mock, db := newAdapterWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM authcore_invalidated_tokens WHERE expires_at < \$1$`).
		WillReturnResult(sqlmock.NewResult(0, 7))

	pruned, err := adapter.PruneExpired(context.Background())
	if err != nil {
		t.Fatalf("PruneExpired error: %v", err)
	}
	if pruned != 7 {
		t.Fatalf("expected 7 pruned entries, got %d", pruned)
	}
}
