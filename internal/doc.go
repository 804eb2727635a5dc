// Package internal holds the token codec for sessionguard: cryptographically
// random session IDs and refresh secrets, their one-way hashes, and the opaque
// string encoding handed to callers. Nothing here touches Redis or interprets
// rotation policy.
package internal
