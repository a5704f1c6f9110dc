package authcore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/solidcore-labs/authcore/password"
	"github.com/solidcore-labs/authcore/rate"
	"github.com/solidcore-labs/authcore/storage"
	"github.com/solidcore-labs/authcore/token"
)

var (
	// ErrValidation is returned for malformed or policy-violating input,
	// rejected before any storage access. Policy failures carry detail via
	// [*PolicyError].
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is the uniform login failure: unknown email and
	// wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSamePassword is returned when a password change supplies the current
	// password as the new one.
	ErrSamePassword = errors.New("new password must be different from current password")

	// ErrEmailTaken aliases [storage.ErrConflict]: the canonical email is
	// already registered.
	ErrEmailTaken = storage.ErrConflict
	// ErrUserNotFound aliases [storage.ErrNotFound].
	ErrUserNotFound = storage.ErrNotFound
	// ErrStorageUnavailable aliases [storage.ErrUnavailable]: adapter failures
	// surface wrapped with context, never silently swallowed.
	ErrStorageUnavailable = storage.ErrUnavailable

	// ErrTokenInvalid aliases [token.ErrInvalid].
	ErrTokenInvalid = token.ErrInvalid
	// ErrTokenExpired aliases [token.ErrExpired].
	ErrTokenExpired = token.ErrExpired
	// ErrTokenReuse aliases [token.ErrReuse]. Security-significant: never
	// downgraded to a generic invalid-token response.
	ErrTokenReuse = token.ErrReuse

	// ErrRateLimited aliases [rate.ErrRateLimited].
	ErrRateLimited = rate.ErrRateLimited
)

// PolicyError reports which strength rules a candidate password violated.
// It matches [ErrValidation] under [errors.Is].
type PolicyError struct {
	Violations []password.Violation
}

// Error implements the error interface without echoing the password.
func (e *PolicyError) Error() string {
	reasons := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		reasons[i] = string(v)
	}
	return fmt.Sprintf("password policy violation: %s", strings.Join(reasons, ", "))
}

// Is reports membership in the validation error class.
func (e *PolicyError) Is(target error) bool {
	return target == ErrValidation
}
