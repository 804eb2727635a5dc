package sessionguard

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gearbooks/sessionguard/internal/rate"
	"github.com/gearbooks/sessionguard/session"

	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Manager]. Construction is allocation-only; no I/O
// happens until the first Manager method call.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	auditSink AuditSink
	logger    *zerolog.Logger

	built bool
}

// New returns a Builder preloaded with defaults: 7-day sessions, 30-second
// grace window, audit and metrics disabled.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the full configuration. Validation happens in Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the session store, directory, and
// refresh throttle. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the destination for audit events. Ignored unless
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for warn-path diagnostics (lazy-expiry write
// failures, directory cleanup failures). Defaults to a disabled logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithMetricsEnabled toggles in-process metrics collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the rotation latency histogram. Implies
// nothing unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Manager.
// A Builder must not be reused after a successful Build.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	m := &Manager{
		config: b.config,
		store:  session.NewStore(b.redis, b.config.Session.RedisPrefix),
		limiter: rate.New(b.redis, rate.Config{
			EnableRefreshThrottle: b.config.RateLimit.EnableRefreshThrottle,
			MaxRefreshAttempts:    b.config.RateLimit.MaxRefreshAttempts,
			RefreshCooldown:       b.config.RateLimit.RefreshCooldown,
		}),
		audit:   newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics: NewMetrics(b.config.Metrics),
		logger:  logger,
		now:     time.Now,
	}

	b.built = true
	return m, nil
}
