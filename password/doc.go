// Package password implements password strength policy and Argon2id hashing.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Every Hash call draws a fresh random salt, so two hashes of the same input
// differ while both verify. Verification compares derived keys with
// [crypto/subtle.ConstantTimeCompare]. The [Hasher] supports transparent
// parameter upgrades: if a stored hash was produced with weaker parameters,
// [Hasher.NeedsRehash] returns true so the caller can re-hash on the next
// successful login.
//
// # Architecture boundaries
//
// [Policy] is a pure function over strings: no I/O, total over all inputs
// including the empty string. The Engine decides when to enforce it.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords.
package password
