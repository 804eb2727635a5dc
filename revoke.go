package sessionguard

import (
	"context"
	"errors"
	"strconv"

	"github.com/gearbooks/sessionguard/session"
)

// RevokeSession terminates a single session. Idempotent: revoking an
// already-terminal session is a no-op, so retrying after a crash is always
// safe. Returns [ErrSessionNotFound] when no record exists under sessionID.
func (m *Manager) RevokeSession(ctx context.Context, sessionID, reason string) error {
	if m == nil || m.store == nil {
		return ErrManagerNotReady
	}
	if sessionID == "" {
		return ErrSessionIDRequired
	}

	transitioned, err := m.revokeOne(ctx, sessionID, reason)
	if err != nil {
		return err
	}
	if transitioned {
		m.metricInc(MetricSessionRevoked)
	}
	return nil
}

// RevokeAllUserSessions revokes every non-terminal session of a user except
// exceptSessionID (empty means none), and returns how many sessions actually
// transitioned. The operation is not atomic across sessions: partial progress
// is possible on store failure, each individual revoke is idempotent, and the
// whole call is safely retriable.
func (m *Manager) RevokeAllUserSessions(ctx context.Context, userID, reason, exceptSessionID string) (int, error) {
	if m == nil || m.store == nil {
		return 0, ErrManagerNotReady
	}
	if userID == "" {
		return 0, ErrUserIDRequired
	}

	ids, err := m.store.DirectorySessionIDs(ctx, userID)
	if err != nil {
		return 0, err
	}

	revoked := 0
	var errs error
	for _, id := range ids {
		if id == exceptSessionID {
			continue
		}

		transitioned, err := m.revokeOne(ctx, id, reason)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				// Record TTL fired before the directory entry was cleaned up.
				if derr := m.store.Detach(ctx, userID, id); derr != nil {
					errs = errors.Join(errs, derr)
				}
				continue
			}
			errs = errors.Join(errs, err)
			continue
		}
		if transitioned {
			revoked++
			m.metricInc(MetricSessionRevoked)
		}
	}

	m.metricInc(MetricRevokeAll)
	m.emit(ctx, AuditEvent{
		EventType: AuditSessionsRevokedAll,
		UserID:    userID,
		Success:   errs == nil,
		Metadata: map[string]string{
			"reason":  reason,
			"revoked": strconv.Itoa(revoked),
		},
	})

	return revoked, errs
}

// revokeOne transitions a single record to revoked under the version guard and
// detaches it from the directory. Reports whether this call performed the
// transition; already-terminal records return false with no error.
func (m *Manager) revokeOne(ctx context.Context, sessionID, reason string) (bool, error) {
	for attempt := 0; attempt < m.config.Rotation.MaxConflictRetries; attempt++ {
		rec, err := m.store.Get(ctx, sessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return false, ErrSessionNotFound
			}
			return false, err
		}

		if rec.Terminal() {
			// Repair the directory in case a previous detach never landed.
			if derr := m.store.Detach(ctx, rec.UserID, sessionID); derr != nil {
				m.logger.Warn().Err(derr).Str("session_id", sessionID).Msg("sessionguard: directory detach failed")
			}
			return false, nil
		}

		upd := rec.Clone()
		upd.Status = session.StatusRevoked
		upd.RevokedAt = m.now().Unix()
		upd.RevokedReason = clip(reason)

		err = m.store.PutIfVersion(ctx, upd, rec.RotationCount)
		switch {
		case err == nil:
			if derr := m.store.Detach(ctx, rec.UserID, sessionID); derr != nil {
				// Terminal status is already durable; the stale directory
				// member is repaired on the next revoke or list.
				m.logger.Warn().Err(derr).Str("session_id", sessionID).Msg("sessionguard: directory detach failed")
			}
			m.emit(ctx, AuditEvent{
				EventType: AuditSessionRevoked,
				UserID:    rec.UserID,
				SessionID: sessionID,
				Success:   true,
				Metadata:  map[string]string{"reason": reason},
			})
			return true, nil
		case errors.Is(err, session.ErrVersionConflict):
			// A rotation slipped in between read and write; re-evaluate.
			continue
		case errors.Is(err, session.ErrNotFound):
			return false, ErrSessionNotFound
		default:
			return false, err
		}
	}

	return false, ErrRotationContended
}
