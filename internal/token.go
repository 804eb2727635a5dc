package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

// SessionID is a 16-byte random identifier. Its string form (unpadded
// base64url) is the only session credential that may appear in URLs or logs.
type SessionID [16]byte

const refreshSecretSize = 32

// NewSessionID generates a random session identifier.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// NewUUIDSessionID generates a random RFC 4122 UUID session identifier, for
// deployments that want conventional-looking IDs.
func NewUUIDSessionID() string {
	return uuid.NewString()
}

// NewRefreshSecret generates the random secret behind a refresh token.
func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashRefreshSecret derives the one-way digest persisted in session records.
// The plaintext secret is never stored.
func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshSecret renders a secret as the opaque token string returned to
// callers.
func EncodeRefreshSecret(secret [refreshSecretSize]byte) string {
	return base64.RawURLEncoding.EncodeToString(secret[:])
}

// DecodeRefreshSecret parses a presented token string back into secret bytes.
// A structural failure here is a malformed credential, not evidence of reuse.
func DecodeRefreshSecret(token string) ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return secret, err
	}
	if len(raw) != refreshSecretSize {
		return secret, errors.New("invalid refresh token size")
	}

	copy(secret[:], raw)
	return secret, nil
}
