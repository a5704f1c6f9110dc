// Package token implements the token lifecycle: stateless JWT access tokens,
// rotating refresh tokens with reuse detection, and single-use purpose tokens
// for password reset and email verification.
//
// # Lifecycle
//
// A refresh token moves through three states:
//
//	Issued --(Refresh)--> Rotated      old jti invalidated, new pair issued
//	Issued --(Logout)---> Invalidated
//	Rotated/Invalidated --(presented again)--> reuse: fails with ErrReuse
//
// Rotation is serialized by the storage registry's compare-and-set: of N
// concurrent Refresh calls presenting the same token, exactly one wins and the
// rest observe [ErrReuse]. ErrReuse is security-significant and is never
// downgraded to ErrInvalid.
//
// Access tokens are verified by signature and expiry alone — no storage
// round-trip. Refresh and purpose tokens additionally consult the invalidation
// registry, keyed by the token's jti claim, and refresh tokens carry the user's
// token version so a single version bump revokes every outstanding session.
//
// # What this package must NOT do
//
//   - Look up credentials or touch password hashes.
//   - Log or return signing material.
//   - Import authcore (the Engine depends on token, never the reverse).
package token
