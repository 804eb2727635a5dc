package sessionguard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gearbooks/sessionguard/internal"
	"github.com/gearbooks/sessionguard/internal/rate"
	"github.com/gearbooks/sessionguard/session"
)

// Manager is the session lifecycle state machine. It owns session creation,
// refresh rotation with replay detection, revocation, and the per-user
// directory. Construct it through [Builder.Build]; all methods are safe for
// concurrent use afterwards.
type Manager struct {
	config  Config
	store   *session.Store
	limiter *rate.Limiter
	audit   *auditDispatcher
	metrics *Metrics
	logger  zerolog.Logger

	// injectable clock; tests replace it to drive grace-window boundaries
	now func() time.Time
}

// Close drains and stops the audit dispatcher. The Manager must not be used
// after Close.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	if m.audit != nil {
		m.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under
// backpressure since the Manager was built.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters and histograms.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

// Ping probes store availability and reports round-trip latency.
func (m *Manager) Ping(ctx context.Context) (time.Duration, error) {
	if m == nil || m.store == nil {
		return 0, ErrManagerNotReady
	}
	return m.store.Ping(ctx)
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

// CreateSession opens a new refresh session for userID and returns the session
// ID together with the plaintext refresh token. The token is disclosed exactly
// here and cannot be recovered afterward; only its hash is persisted.
//
// Metadata fields left empty are filled from context values attached via
// [WithProvider], [WithUserAgent], and [WithClientIP].
func (m *Manager) CreateSession(ctx context.Context, userID string, meta Metadata) (CreateResult, error) {
	if m == nil || m.store == nil {
		return CreateResult{}, ErrManagerNotReady
	}
	if userID == "" {
		return CreateResult{}, ErrUserIDRequired
	}

	if meta.Provider == "" {
		meta.Provider = providerFromContext(ctx)
	}
	if meta.UserAgent == "" {
		meta.UserAgent = userAgentFromContext(ctx)
	}
	if meta.IP == "" {
		meta.IP = clientIPFromContext(ctx)
	}

	if max := m.config.Session.MaxSessionsPerUser; max > 0 {
		count, err := m.store.DirectorySize(ctx, userID)
		if err != nil {
			return CreateResult{}, err
		}
		if count >= max {
			m.metricInc(MetricSessionLimitRejected)
			m.emit(ctx, AuditEvent{
				EventType: AuditSessionLimitRejected,
				UserID:    userID,
				IP:        meta.IP,
				Success:   false,
			})
			return CreateResult{}, ErrSessionLimitExceeded
		}
	}

	sessionID, err := m.newSessionID()
	if err != nil {
		return CreateResult{}, err
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return CreateResult{}, err
	}

	now := m.now()
	expiresAt := now.Add(m.config.Session.Lifetime)

	rec := &session.Record{
		SessionID:        sessionID,
		UserID:           userID,
		CurrentTokenHash: internal.HashRefreshSecret(secret),
		RotationCount:    0,
		Status:           session.StatusActive,
		CreatedAt:        now.Unix(),
		ExpiresAt:        expiresAt.Unix(),
		Provider:         clip(meta.Provider),
		UserAgent:        clip(meta.UserAgent),
		IP:               clip(meta.IP),
	}

	ttl := m.config.Session.Lifetime + m.config.Session.TerminalRetention
	if err := m.store.Save(ctx, rec, ttl); err != nil {
		return CreateResult{}, err
	}

	m.metricInc(MetricSessionCreated)
	m.emit(ctx, AuditEvent{
		EventType: AuditSessionCreated,
		UserID:    userID,
		SessionID: sessionID,
		IP:        rec.IP,
		Success:   true,
	})

	return CreateResult{
		SessionID:    sessionID,
		RefreshToken: internal.EncodeRefreshSecret(secret),
		ExpiresAt:    expiresAt,
	}, nil
}

// GetUserSessions returns the non-secret view of every non-terminal session a
// user holds, for device lists and "log out everywhere" UIs. Hashes and token
// material are never included.
func (m *Manager) GetUserSessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	if m == nil || m.store == nil {
		return nil, ErrManagerNotReady
	}
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	ids, err := m.store.DirectorySessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := m.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	nowUnix := m.now().Unix()
	summaries := make([]SessionSummary, 0, len(records))
	for _, rec := range records {
		if rec.Terminal() || rec.ExpiredBy(nowUnix) {
			continue
		}
		summary := SessionSummary{
			SessionID: rec.SessionID,
			Provider:  rec.Provider,
			UserAgent: rec.UserAgent,
			IP:        rec.IP,
			CreatedAt: time.Unix(rec.CreatedAt, 0),
			ExpiresAt: time.Unix(rec.ExpiresAt, 0),
		}
		if rec.RotatedAt > 0 {
			summary.RotatedAt = time.Unix(rec.RotatedAt, 0)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (m *Manager) newSessionID() (string, error) {
	if m.config.Session.IDFormat == IDUUID {
		return internal.NewUUIDSessionID(), nil
	}
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

// clip bounds metadata fields to the record codec's string limit.
func clip(s string) string {
	if len(s) > 255 {
		return s[:255]
	}
	return s
}
