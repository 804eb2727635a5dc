// Package sessionguard implements server-side session lifecycle management with
// rotating opaque refresh tokens, grace-window retry tolerance, and replay-attack
// detection.
//
// The package is designed for concurrent server workloads: Manager methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// sessionguard is the public surface. It exposes [Manager], [Builder], [Config], and
// value types (RotationResult, SessionSummary, AuditEvent, MetricsSnapshot). The
// Redis record store and binary codec live in the session subpackage; token
// generation and rate limiting live under internal/ and are never exported.
//
// sessionguard deliberately does NOT own HTTP transport, cookies, password hashing,
// OAuth exchange, or access-token signing. Callers hand it normalized
// (sessionID, refreshToken) pairs and transport the returned plaintext token
// however they see fit (typically an HttpOnly cookie).
//
// # Security contract
//
// Refresh tokens are disclosed exactly once, at creation or rotation. Only their
// SHA-256 hashes are persisted. A presented token that matches neither the current
// hash nor a within-grace-window previous hash is treated as theft: the session is
// revoked and a revoke-all for the owning user is triggered. Infrastructure
// failures are never interpreted as compromise.
package sessionguard
