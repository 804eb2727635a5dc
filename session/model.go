package session

// Status is the lifecycle state of a session record. Transitions are
// one-directional: active records become revoked or expired and never return.
type Status uint8

const (
	// StatusActive marks a live session whose current token can rotate.
	StatusActive Status = iota
	// StatusRevoked marks a session terminated by an explicit revocation.
	StatusRevoked
	// StatusExpired marks a session whose absolute lifetime elapsed.
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRevoked:
		return "revoked"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Record is the persisted state of one refresh session. Timestamps are unix
// seconds. RotatedAt and RevokedAt are zero when unset; PreviousTokenHash is
// meaningful only when HasPrevious is true.
type Record struct {
	SessionID string // set by the store on read; not part of the encoded blob
	UserID    string

	CurrentTokenHash  [32]byte
	PreviousTokenHash [32]byte
	HasPrevious       bool

	RotationCount uint32
	Status        Status

	CreatedAt int64
	ExpiresAt int64
	RotatedAt int64

	RevokedAt     int64
	RevokedReason string

	Provider  string
	UserAgent string
	IP        string
}

// Terminal reports whether the record reached a final state.
func (r *Record) Terminal() bool {
	return r.Status != StatusActive
}

// ExpiredBy reports whether the absolute lifetime elapsed at the given unix
// time. Expiry is evaluated lazily on access; there is no timer.
func (r *Record) ExpiredBy(nowUnix int64) bool {
	return nowUnix >= r.ExpiresAt
}

// Clone returns a deep copy. Mutating rotation state on a copy keeps the
// loaded record usable for conflict re-evaluation.
func (r *Record) Clone() *Record {
	out := *r
	return &out
}
