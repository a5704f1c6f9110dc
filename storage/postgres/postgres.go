// Package postgres implements [storage.Adapter] on PostgreSQL via database/sql
// and the pgx stdlib driver.
//
// Email uniqueness is enforced by a unique index on lower(email) and the
// invalidation registry by the token primary key with
// INSERT ... ON CONFLICT DO NOTHING, so both race-critical operations resolve
// inside the database. Schema management is embedded: call [Migrate] once at
// startup.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/solidcore-labs/authcore/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

// Adapter is a PostgreSQL-backed [storage.Adapter].
type Adapter struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps an existing database handle. The schema must already be in place
// (see [Migrate]).
func New(db *sql.DB) *Adapter {
	return &Adapter{db: db, now: time.Now}
}

// Open connects to the given DSN using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("%w: migrate: %v", storage.ErrUnavailable, err)
	}
	return nil
}

const userColumns = `id, email, password_hash, profile, email_verified, token_version, created_at, updated_at, last_login_at`

// CreateUser implements [storage.Adapter]. The unique index on lower(email)
// resolves concurrent creations: the loser surfaces [storage.ErrConflict].
func (a *Adapter) CreateUser(ctx context.Context, input storage.NewUser) (*storage.User, error) {
	email := storage.CanonicalEmail(input.Email)
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

	profile, err := encodeProfile(user.Profile)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO authcore_users (id, email, password_hash, profile, email_verified, token_version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = a.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, profile, user.EmailVerified, user.TokenVersion, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	return user, nil
}

// GetUserByID implements [storage.Adapter].
func (a *Adapter) GetUserByID(ctx context.Context, id string) (*storage.User, error) {
	query := `SELECT ` + userColumns + ` FROM authcore_users WHERE id = $1`
	return scanUser(a.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail implements [storage.Adapter].
func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	query := `SELECT ` + userColumns + ` FROM authcore_users WHERE lower(email) = $1`
	return scanUser(a.db.QueryRowContext(ctx, query, storage.CanonicalEmail(email)))
}

// UpdateUser implements [storage.Adapter]. The row is locked FOR UPDATE for the
// duration of the read-merge-write cycle so concurrent updates serialize.
func (a *Adapter) UpdateUser(ctx context.Context, id string, update storage.UserUpdate) (*storage.User, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + userColumns + ` FROM authcore_users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
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

	profile, err := encodeProfile(user.Profile)
	if err != nil {
		return nil, err
	}

	var lastLogin sql.NullTime
	if !user.LastLoginAt.IsZero() {
		lastLogin = sql.NullTime{Time: user.LastLoginAt, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE authcore_users
		 SET password_hash = $2, profile = $3, email_verified = $4, token_version = $5, updated_at = $6, last_login_at = $7
		 WHERE id = $1`,
		user.ID, user.PasswordHash, profile, user.EmailVerified, user.TokenVersion, user.UpdatedAt, lastLogin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	return user, nil
}

// DeleteUser implements [storage.Adapter].
func (a *Adapter) DeleteUser(ctx context.Context, id string) (bool, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM authcore_users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return affected > 0, nil
}

// InvalidateToken implements [storage.Adapter]. ON CONFLICT DO NOTHING turns
// the insert into a compare-and-set: exactly one concurrent caller inserts the
// row and observes first=true.
func (a *Adapter) InvalidateToken(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	res, err := a.db.ExecContext(ctx,
		`INSERT INTO authcore_invalidated_tokens (token, invalidated_at, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (token) DO NOTHING`,
		token, a.now().UTC(), expiresAt.UTC())
	if err != nil {
		return false, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return affected > 0, nil
}

// IsTokenInvalidated implements [storage.Adapter].
func (a *Adapter) IsTokenInvalidated(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := a.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM authcore_invalidated_tokens WHERE token = $1)`,
		token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return exists, nil
}

// PruneExpired removes registry entries whose tokens are past their own expiry.
// Intended for a periodic maintenance job; only such entries may ever be
// removed from the registry.
func (a *Adapter) PruneExpired(ctx context.Context) (int64, error) {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM authcore_invalidated_tokens WHERE expires_at < $1`, a.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*storage.User, error) {
	var (
		user      storage.User
		profile   []byte
		lastLogin sql.NullTime
	)

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &profile,
		&user.EmailVerified, &user.TokenVersion, &user.CreatedAt, &user.UpdatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &user.Profile); err != nil {
			return nil, fmt.Errorf("%w: corrupt profile: %v", storage.ErrUnavailable, err)
		}
	}
	if lastLogin.Valid {
		user.LastLoginAt = lastLogin.Time
	}

	return &user, nil
}

func encodeProfile(profile map[string]any) ([]byte, error) {
	if profile == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("profile not serializable: %w", err)
	}
	return encoded, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
