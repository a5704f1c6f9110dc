// Package authcore provides an embeddable authentication core: credential
// registration and login, password policy enforcement, and a full token
// lifecycle — JWT access tokens, rotating refresh tokens with reuse detection,
// and single-use purpose tokens — on top of a pluggable identity-storage
// adapter.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy, and value types (User, TokenPair, MetricsSnapshot).
// Hashing lives in password/, token mechanics in token/, and persistence
// behind the storage.Adapter contract with interchangeable backends under
// storage/ (memory, redisstore, postgres). Substitutability is enforced by
// the shared contract suite in storage/storagetest, not by convention.
//
// # What this package must NOT do
//
//   - Perform authorization or permission checks beyond identity verification.
//   - Manage UI sessions, cookies, or any wire transport.
//   - Return or log raw reset/verification tokens to anything other than the
//     injected email sender.
//
// # Security contract
//
// Login failures are uniform: an unknown email and a wrong password yield the
// same [ErrInvalidCredentials], so callers cannot enumerate accounts. Refresh
// token reuse surfaces as [ErrTokenReuse] and is never downgraded — callers
// should treat repeated occurrences as a stolen-token signal and force
// re-authentication via [Engine.InvalidateUserSessions].
package authcore
