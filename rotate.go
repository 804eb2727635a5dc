package sessionguard

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/gearbooks/sessionguard/internal"
	"github.com/gearbooks/sessionguard/internal/rate"
	"github.com/gearbooks/sessionguard/session"
)

// RotateRefreshToken exchanges a presented refresh token for a new one.
//
// The returned error is reserved for operational failures (store unavailable,
// rate limit, retry budget exhausted); security verdicts are expressed through
// RotationResult.Outcome. When the outcome is [RotationCompromised] the
// revocation cascade has already run; a non-nil error alongside it means part
// of the cascade hit the store and should be retried; the system is left more
// restrictive than intended, never less.
//
// The update is a conditional swap guarded by the record's rotation counter.
// Losing the race against a concurrent rotation triggers a re-read: a retry
// carrying the same token then lands in the grace-window path and still
// succeeds, while a genuinely superseded token is flagged as reuse.
func (m *Manager) RotateRefreshToken(ctx context.Context, sessionID, presentedToken string) (RotationResult, error) {
	if m == nil || m.store == nil {
		return RotationResult{}, ErrManagerNotReady
	}
	if sessionID == "" {
		return RotationResult{}, ErrSessionIDRequired
	}

	start := time.Now()

	if err := m.limiter.CheckRefresh(ctx, sessionID); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			m.metricInc(MetricRefreshRateLimited)
			return RotationResult{}, ErrRefreshRateLimited
		}
		return RotationResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	secret, err := internal.DecodeRefreshSecret(presentedToken)
	if err != nil {
		return m.invalidResult(ctx, sessionID, "", ReasonMalformedToken), nil
	}
	presentedHash := internal.HashRefreshSecret(secret)

	for attempt := 0; attempt < m.config.Rotation.MaxConflictRetries; attempt++ {
		rec, err := m.store.Get(ctx, sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return m.invalidResult(ctx, sessionID, "", ReasonSessionNotFound), nil
			}
			return RotationResult{}, err
		}

		if rec.Status == session.StatusRevoked {
			return m.invalidResult(ctx, sessionID, rec.UserID, ReasonSessionRevoked), nil
		}

		now := m.now()
		if rec.Status == session.StatusExpired || rec.ExpiredBy(now.Unix()) {
			m.lazilyExpire(ctx, rec)
			return m.invalidResult(ctx, sessionID, rec.UserID, ReasonSessionExpired), nil
		}

		switch {
		case hashEqual(presentedHash, rec.CurrentTokenHash):
			nextSecret, err := internal.NewRefreshSecret()
			if err != nil {
				return RotationResult{}, err
			}

			upd := rec.Clone()
			upd.PreviousTokenHash = rec.CurrentTokenHash
			upd.HasPrevious = true
			upd.CurrentTokenHash = internal.HashRefreshSecret(nextSecret)
			upd.RotationCount = rec.RotationCount + 1
			upd.RotatedAt = now.Unix()

			err = m.store.PutIfVersion(ctx, upd, rec.RotationCount)
			switch {
			case err == nil:
				m.metricInc(MetricRotationSuccess)
				m.observeRotateLatency(start)
				m.emit(ctx, AuditEvent{
					EventType: AuditSessionRotated,
					UserID:    rec.UserID,
					SessionID: sessionID,
					Success:   true,
				})
				return RotationResult{
					Outcome:       RotationRotated,
					RefreshToken:  internal.EncodeRefreshSecret(nextSecret),
					SessionID:     sessionID,
					UserID:        rec.UserID,
					RotationCount: upd.RotationCount,
				}, nil
			case errors.Is(err, session.ErrVersionConflict):
				m.metricInc(MetricRotationConflict)
				continue
			case errors.Is(err, session.ErrNotFound):
				return m.invalidResult(ctx, sessionID, rec.UserID, ReasonSessionNotFound), nil
			default:
				return RotationResult{}, err
			}

		case rec.HasPrevious &&
			hashEqual(presentedHash, rec.PreviousTokenHash) &&
			m.withinGraceWindow(rec, now):
			// Benign duplicate of the immediately preceding rotation. The new
			// token minted then was already disclosed to the original caller
			// and is not re-issued; the retrying caller keeps what it holds.
			m.metricInc(MetricRotationRetried)
			m.emit(ctx, AuditEvent{
				EventType: AuditRotationRetried,
				UserID:    rec.UserID,
				SessionID: sessionID,
				Success:   true,
			})
			return RotationResult{
				Outcome:       RotationRetried,
				SessionID:     sessionID,
				UserID:        rec.UserID,
				RotationCount: rec.RotationCount,
			}, nil

		default:
			return m.handleCompromise(ctx, rec)
		}
	}

	return RotationResult{}, ErrRotationContended
}

func (m *Manager) withinGraceWindow(rec *session.Record, now time.Time) bool {
	if rec.RotatedAt == 0 {
		return false
	}
	return now.Sub(time.Unix(rec.RotatedAt, 0)) <= m.config.Rotation.GraceWindow
}

// handleCompromise runs the fail-safe cascade: revoke the presented session
// first, then every other session of the owner. A crash between the two steps
// leaves a single session revoked, more restrictive than intended, never less.
func (m *Manager) handleCompromise(ctx context.Context, rec *session.Record) (RotationResult, error) {
	m.metricInc(MetricReplayDetected)

	var revErr error
	if err := m.RevokeSession(ctx, rec.SessionID, RevokeReasonReplay); err != nil && !errors.Is(err, ErrSessionNotFound) {
		revErr = err
	}
	if _, err := m.RevokeAllUserSessions(ctx, rec.UserID, RevokeReasonCompromise, ""); err != nil {
		revErr = errors.Join(revErr, err)
	}

	m.emit(ctx, AuditEvent{
		EventType: AuditReplayDetected,
		UserID:    rec.UserID,
		SessionID: rec.SessionID,
		Success:   false,
		Metadata:  map[string]string{"reason": ReasonReplayDetected},
	})

	return RotationResult{
		Outcome:       RotationCompromised,
		Reason:        ReasonReplayDetected,
		SessionID:     rec.SessionID,
		UserID:        rec.UserID,
		RotationCount: rec.RotationCount,
	}, revErr
}

// lazilyExpire flips an active record whose absolute lifetime elapsed to
// expired and detaches it from the directory. Best effort: losing the version
// race means someone else already transitioned it.
func (m *Manager) lazilyExpire(ctx context.Context, rec *session.Record) {
	if rec.Terminal() {
		return
	}

	upd := rec.Clone()
	upd.Status = session.StatusExpired

	err := m.store.PutIfVersion(ctx, upd, rec.RotationCount)
	if err != nil && !errors.Is(err, session.ErrVersionConflict) && !errors.Is(err, session.ErrNotFound) {
		m.logger.Warn().Err(err).Str("session_id", rec.SessionID).Msg("sessionguard: lazy expiry write failed")
		return
	}

	if err := m.store.Detach(ctx, rec.UserID, rec.SessionID); err != nil {
		m.logger.Warn().Err(err).Str("session_id", rec.SessionID).Msg("sessionguard: directory detach failed")
	}
	m.metricInc(MetricSessionExpired)
}

func (m *Manager) invalidResult(ctx context.Context, sessionID, userID, reason string) RotationResult {
	m.metricInc(MetricRotationInvalid)
	m.emit(ctx, AuditEvent{
		EventType: AuditRotationInvalid,
		UserID:    userID,
		SessionID: sessionID,
		Success:   false,
		Metadata:  map[string]string{"reason": reason},
	})
	return RotationResult{
		Outcome:   RotationInvalid,
		Reason:    reason,
		SessionID: sessionID,
		UserID:    userID,
	}
}

func (m *Manager) observeRotateLatency(start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.Observe(MetricRotateLatency, time.Since(start))
}

func hashEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
