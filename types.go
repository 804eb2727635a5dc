package sessionguard

import "time"

// Metadata carries descriptive attributes captured at session creation: the
// identity provider, the user agent string, and the originating address.
// Metadata is never used for authorization decisions.
type Metadata struct {
	Provider  string
	UserAgent string
	IP        string
}

// CreateResult is the outcome of a successful CreateSession call. RefreshToken
// is the single plaintext disclosure of the session's refresh secret; it cannot
// be recovered afterward.
type CreateResult struct {
	SessionID    string
	RefreshToken string
	ExpiresAt    time.Time
}

// RotationOutcome classifies the result of a RotateRefreshToken call.
type RotationOutcome uint8

const (
	// RotationRotated means the presented token matched the current hash and a
	// new refresh token was minted. The caller must discard the old token.
	RotationRotated RotationOutcome = iota
	// RotationRetried means the presented token matched the previous hash inside
	// the grace window: a benign duplicate of an already-completed rotation.
	// No new token is disclosed; the caller keeps whatever token it already holds.
	RotationRetried
	// RotationInvalid means the session is absent, expired, or revoked, or the
	// presented token was structurally malformed. The caller should require a
	// fresh login. Not a security verdict.
	RotationInvalid
	// RotationCompromised means the presented token was superseded more than one
	// generation ago: reuse of stolen material. The session and all other sessions
	// of the owning user have been revoked.
	RotationCompromised
)

func (o RotationOutcome) String() string {
	switch o {
	case RotationRotated:
		return "rotated"
	case RotationRetried:
		return "retried"
	case RotationInvalid:
		return "invalid"
	case RotationCompromised:
		return "compromised"
	default:
		return "unknown"
	}
}

// Rotation invalid/compromise reasons surfaced in RotationResult.Reason.
const (
	ReasonMalformedToken  = "malformed_token"
	ReasonSessionNotFound = "session_not_found"
	ReasonSessionExpired  = "session_expired"
	ReasonSessionRevoked  = "session_revoked"
	ReasonReplayDetected  = "replay_detected"
)

// Revocation reasons written by the compromise cascade.
const (
	RevokeReasonReplay     = "replay_detected"
	RevokeReasonCompromise = "compromised_session_detected"
)

// RotationResult carries the outcome of a rotation attempt. RefreshToken is
// populated only when Outcome is [RotationRotated]. Reason is populated for
// [RotationInvalid] and [RotationCompromised].
type RotationResult struct {
	Outcome       RotationOutcome
	RefreshToken  string
	Reason        string
	SessionID     string
	UserID        string
	RotationCount uint32
}

// SessionSummary exposes the non-secret view of an active session, suitable
// for device lists. It never contains token material or hashes.
type SessionSummary struct {
	SessionID string
	Provider  string
	UserAgent string
	IP        string
	CreatedAt time.Time
	RotatedAt time.Time // zero when the session has never rotated
	ExpiresAt time.Time
}

// SessionIDFormat selects how session identifiers are generated.
type SessionIDFormat int

const (
	// IDOpaque generates 16-byte random identifiers encoded as unpadded
	// base64url. This is the default.
	IDOpaque SessionIDFormat = iota
	// IDUUID generates RFC 4122 random UUIDs.
	IDUUID
)
