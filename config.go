package sessionguard

import (
	"errors"
	"time"
)

// Config groups all Manager tuning parameters. Zero values are filled with
// defaults by [New]; explicit configs passed to [Builder.WithConfig] are
// validated during [Builder.Build].
type Config struct {
	Session   SessionConfig
	Rotation  RotationConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session identity, lifetime, and store namespacing.
type SessionConfig struct {
	// RedisPrefix namespaces all session keys. Default "sg".
	RedisPrefix string

	// Lifetime is the absolute session bound measured from creation. Rotation
	// never extends it. Default 7 days.
	Lifetime time.Duration

	// TerminalRetention is how long revoked or expired records stay readable
	// after the session's absolute lifetime, so audits and device lists can
	// observe terminal state. Physical removal is delegated to the record TTL.
	// Default 24 hours.
	TerminalRetention time.Duration

	// MaxSessionsPerUser caps concurrently active sessions per user.
	// Zero means unlimited.
	MaxSessionsPerUser int

	// IDFormat selects the session identifier format. Default IDOpaque.
	IDFormat SessionIDFormat
}

/*
====================================
ROTATION CONFIG
====================================
*/

// RotationConfig controls the refresh rotation protocol.
type RotationConfig struct {
	// GraceWindow is the interval after a rotation during which the
	// immediately-prior token is still accepted as a benign retry.
	// Default 30 seconds.
	GraceWindow time.Duration

	// MaxConflictRetries bounds how many times a rotation re-reads and
	// re-evaluates after losing the version race. Default 4.
	MaxConflictRetries int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls the optional per-session refresh throttle.
type RateLimitConfig struct {
	EnableRefreshThrottle bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking: events beyond the buffer are counted
	// as dropped instead of applying backpressure to the request path.
	DropIfFull bool
}

// MetricsConfig controls the in-process atomic metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration a Manager starts from when the
// caller supplies none. Every field can be overridden through WithConfig.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:        "sg",
			Lifetime:           7 * 24 * time.Hour,
			TerminalRetention:  24 * time.Hour,
			MaxSessionsPerUser: 0,
			IDFormat:           IDOpaque,
		},
		Rotation: RotationConfig{
			GraceWindow:        30 * time.Second,
			MaxConflictRetries: 4,
		},
		RateLimit: RateLimitConfig{
			EnableRefreshThrottle: false,
			MaxRefreshAttempts:    20,
			RefreshCooldown:       time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internal consistency. Build calls it;
// it is exported so callers assembling configs from the environment can fail early.
func (c *Config) Validate() error {
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}
	if c.Session.TerminalRetention < 0 {
		return errors.New("Session TerminalRetention must be >= 0")
	}
	if c.Session.MaxSessionsPerUser < 0 {
		return errors.New("Session MaxSessionsPerUser must be >= 0")
	}
	switch c.Session.IDFormat {
	case IDOpaque, IDUUID:
		// valid
	default:
		return errors.New("Session IDFormat is invalid")
	}

	if c.Rotation.GraceWindow < 0 {
		return errors.New("Rotation GraceWindow must be >= 0")
	}
	if c.Rotation.GraceWindow >= c.Session.Lifetime {
		return errors.New("Rotation GraceWindow must be shorter than Session Lifetime")
	}
	if c.Rotation.MaxConflictRetries < 1 {
		return errors.New("Rotation MaxConflictRetries must be >= 1")
	}

	if c.RateLimit.EnableRefreshThrottle {
		if c.RateLimit.MaxRefreshAttempts <= 0 {
			return errors.New("RateLimit MaxRefreshAttempts must be > 0 when throttling is enabled")
		}
		if c.RateLimit.RefreshCooldown <= 0 {
			return errors.New("RateLimit RefreshCooldown must be > 0 when throttling is enabled")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
