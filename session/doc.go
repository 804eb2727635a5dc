// Package session provides Redis-backed persistence for refresh-session records
// and their compact binary encoding.
//
// # Binary encoding
//
// Records are stored as a versioned binary blob. The rotation counter sits at a
// fixed byte offset immediately after the format version so the conditional-update
// Lua script can read it without a full decode. The encoder is append-only: new
// versions add fields but never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] (record CRUD, the version-guarded conditional
// update, and the per-user directory index) and the [Record] model. It does NOT
// mint tokens, compare hashes, or decide rotation outcomes; that is the
// Manager's job in the root package.
//
// # What this package must NOT do
//
//   - Import sessionguard (no upward imports).
//   - Interpret a hash mismatch as anything; it only swaps blobs under a
//     version precondition.
//   - Store plaintext secrets in [Record] fields.
package session
