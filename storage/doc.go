// Package storage defines the identity-storage adapter contract shared by every
// backend implementation.
//
// # Contract
//
// All implementations (memory, redisstore, postgres, or user-supplied) must expose
// identical observable behavior: case-insensitive email uniqueness under concurrent
// creation, deep-merging profile updates, and an idempotent, first-writer-wins
// token invalidation registry. The black-box suite in storage/storagetest encodes
// the contract; every implementation must pass it.
//
// # Architecture boundaries
//
// This package owns the [Adapter] interface, the storage error sentinels, and the
// canonicalization/merge helpers implementations share.
//
// # What this package must NOT do
//
//   - Perform I/O or hold connections (implementations live in sub-packages).
//   - Import authcore, token, or any backend driver.
package storage
