package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalid is returned for malformed, unsigned, wrong-type, wrong-purpose,
	// or version-revoked tokens.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned for well-formed tokens past their expiry.
	ErrExpired = errors.New("token expired")
	// ErrReuse is returned when an already-rotated or invalidated refresh token
	// is presented again. Callers should treat repeated occurrences as a signal
	// to force full re-authentication for the user.
	ErrReuse = errors.New("refresh token reuse detected")
)

// Purpose scopes a single-use token to one operation.
type Purpose string

const (
	// PurposePasswordReset authorizes exactly one password reset confirmation.
	PurposePasswordReset Purpose = "password-reset"
	// PurposeEmailVerification authorizes exactly one email verification.
	PurposeEmailVerification Purpose = "email-verification"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
	typePurpose = "purpose"
)

// Store is the slice of the storage adapter the token service needs: the
// invalidation registry plus the user's current token version.
type Store interface {
	InvalidateToken(ctx context.Context, token string, expiresAt time.Time) (bool, error)
	IsTokenInvalidated(ctx context.Context, token string) (bool, error)
	TokenVersion(ctx context.Context, userID string) (uint32, error)
}

// Config holds the signing secret and token lifetimes. The secret is loaded
// once and read-only thereafter.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	PurposeTTL time.Duration
	Leeway     time.Duration
}

// Pair is an access/refresh token pair issued together.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Claims is the signed token payload. TokenType discriminates access, refresh,
// and purpose tokens so one kind can never stand in for another.
type Claims struct {
	TokenType string  `json:"typ"`
	Purpose   Purpose `json:"prp,omitempty"`
	Version   uint32  `json:"tv,omitempty"`
	jwt.RegisteredClaims
}

// Service issues, verifies, rotates, and invalidates tokens. Safe for
// concurrent use after construction.
type Service struct {
	config Config
	store  Store
	now    func() time.Time
}

// NewService validates the configuration and returns a service.
func NewService(cfg Config, store Store) (*Service, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("signing secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.PurposeTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if store == nil {
		return nil, errors.New("token store is required")
	}

	return &Service{
		config: cfg,
		store:  store,
		now:    time.Now,
	}, nil
}

// IssueAccessToken signs a short-lived, stateless access token for the user.
func (s *Service) IssueAccessToken(userID string) (string, error) {
	return s.sign(Claims{
		TokenType:        typeAccess,
		RegisteredClaims: s.registered(userID, s.config.AccessTTL),
	})
}

// IssueRefreshToken signs a long-lived refresh token carrying the user's
// current token version.
func (s *Service) IssueRefreshToken(userID string, version uint32) (string, error) {
	return s.sign(Claims{
		TokenType:        typeRefresh,
		Version:          version,
		RegisteredClaims: s.registered(userID, s.config.RefreshTTL),
	})
}

// IssuePair issues a fresh access/refresh pair.
func (s *Service) IssuePair(userID string, version uint32) (Pair, error) {
	access, err := s.IssueAccessToken(userID)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.IssueRefreshToken(userID, version)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssuePurposeToken signs a short-lived, single-use token scoped to one
// operation.
func (s *Service) IssuePurposeToken(userID string, purpose Purpose) (string, error) {
	return s.sign(Claims{
		TokenType:        typePurpose,
		Purpose:          purpose,
		RegisteredClaims: s.registered(userID, s.config.PurposeTTL),
	})
}

// VerifyAccessToken checks signature and expiry and returns the user id.
// Validity is fully determined by the signed payload — no storage lookup.
func (s *Service) VerifyAccessToken(tokenStr string) (string, error) {
	claims, err := s.parse(tokenStr, typeAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// VerifyRefreshToken checks a refresh token without consuming it: signature,
// expiry, token version, and the invalidation registry. A token that was
// already rotated or logged out fails with [ErrReuse]. Returns the user id.
func (s *Service) VerifyRefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.parse(refreshToken, typeRefresh)
	if err != nil {
		return "", err
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if invalidated {
		return "", ErrReuse
	}

	current, err := s.store.TokenVersion(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	if claims.Version != current {
		return "", ErrInvalid
	}

	return claims.Subject, nil
}

// Refresh rotates a refresh token: it verifies signature, expiry, and token
// version, consumes the presented token through the registry's compare-and-set,
// and issues a brand-new pair. A token that was already rotated or logged out
// fails with [ErrReuse] — under concurrent calls exactly one succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	claims, err := s.parse(refreshToken, typeRefresh)
	if err != nil {
		return Pair{}, err
	}

	current, err := s.store.TokenVersion(ctx, claims.Subject)
	if err != nil {
		return Pair{}, err
	}
	if claims.Version != current {
		// revoked wholesale (password reset or forced logout), not reuse
		return Pair{}, ErrInvalid
	}

	first, err := s.store.InvalidateToken(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return Pair{}, err
	}
	if !first {
		return Pair{}, ErrReuse
	}

	return s.IssuePair(claims.Subject, current)
}

// Logout unconditionally invalidates the given refresh token. Logging out an
// already invalidated or expired token is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.parse(refreshToken, typeRefresh)
	if err != nil {
		if errors.Is(err, ErrExpired) {
			return nil
		}
		return err
	}

	_, err = s.store.InvalidateToken(ctx, claims.ID, claims.ExpiresAt.Time)
	return err
}

// ConsumePurposeToken verifies a purpose token and marks it used. A second
// consumption, or a token with the wrong purpose, fails with [ErrInvalid].
// Returns the user id the token was issued for.
func (s *Service) ConsumePurposeToken(ctx context.Context, tokenStr string, purpose Purpose) (string, error) {
	claims, err := s.parse(tokenStr, typePurpose)
	if err != nil {
		return "", err
	}
	if claims.Purpose != purpose {
		return "", ErrInvalid
	}

	first, err := s.store.InvalidateToken(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return "", err
	}
	if !first {
		return "", ErrInvalid
	}

	return claims.Subject, nil
}

func (s *Service) registered(userID string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.config.Issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *Service) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(tokenStr, expectedType string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.TokenType != expectedType {
		return nil, ErrInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}
