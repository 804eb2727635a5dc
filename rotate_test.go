package sessionguard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gearbooks/sessionguard/internal"
	"github.com/gearbooks/sessionguard/session"
)

func TestRotateMintsNewTokenAndBumpsCount(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()
	ctx := context.Background()

	created, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if res.Outcome != RotationRotated {
		t.Fatalf("expected rotated, got %s (%s)", res.Outcome, res.Reason)
	}
	if res.RefreshToken == "" || res.RefreshToken == created.RefreshToken {
		t.Fatal("rotation must mint a fresh token")
	}
	if res.RotationCount != 1 {
		t.Fatalf("expected rotation count 1, got %d", res.RotationCount)
	}

	rec, err := manager.store.Get(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !rec.HasPrevious {
		t.Fatal("rotated record must retain the previous hash")
	}
	if rec.RotatedAt == 0 {
		t.Fatal("rotated record must stamp RotatedAt")
	}
}

func TestRotateChainOverMultipleGenerations(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()
	ctx := context.Background()

	created, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	token := created.RefreshToken
	for i := 1; i <= 5; i++ {
		res, err := manager.RotateRefreshToken(ctx, created.SessionID, token)
		if err != nil {
			t.Fatalf("rotate %d: %v", i, err)
		}
		if res.Outcome != RotationRotated {
			t.Fatalf("rotate %d: expected rotated, got %s", i, res.Outcome)
		}
		if res.RotationCount != uint32(i) {
			t.Fatalf("rotate %d: expected count %d, got %d", i, i, res.RotationCount)
		}
		token = res.RefreshToken
	}
}

func TestRotateDuplicateWithinGraceWindowSucceedsWithoutNewToken(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()
	ctx := context.Background()

	created, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("first rotate: %v", err)
	}
	if first.Outcome != RotationRotated {
		t.Fatalf("expected rotated, got %s", first.Outcome)
	}

	// Same token again, e.g. a network retry that never saw the response.
	dup, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("duplicate rotate: %v", err)
	}
	if dup.Outcome != RotationRetried {
		t.Fatalf("expected retried, got %s (%s)", dup.Outcome, dup.Reason)
	}
	if dup.RefreshToken != "" {
		t.Fatal("grace path must not re-disclose token material")
	}
	if dup.RotationCount != first.RotationCount {
		t.Fatalf("grace path must not advance the counter: %d vs %d", dup.RotationCount, first.RotationCount)
	}

	// The token the first caller received is still live.
	next, err := manager.RotateRefreshToken(ctx, created.SessionID, first.RefreshToken)
	if err != nil {
		t.Fatalf("followup rotate: %v", err)
	}
	if next.Outcome != RotationRotated || next.RotationCount != 2 {
		t.Fatalf("expected rotated count 2, got %s count %d", next.Outcome, next.RotationCount)
	}
}

func TestRotateOldTokenAfterGraceWindowIsCompromise(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()
	ctx := context.Background()

	start := time.Now()
	setClock(manager, start)

	created, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	if _, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	setClock(manager, start.Add(31*time.Second))

	res, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("replay rotate: %v", err)
	}
	if res.Outcome != RotationCompromised {
		t.Fatalf("expected compromised, got %s (%s)", res.Outcome, res.Reason)
	}
	if res.Reason != ReasonReplayDetected {
		t.Fatalf("expected replay reason, got %q", res.Reason)
	}

	// The cascade revokes the presented session and every other session of
	// the owner.
	for _, sid := range []string{created.SessionID, other.SessionID} {
		rec, err := manager.store.Get(ctx, sid)
		if err != nil {
			t.Fatalf("get %s: %v", sid, err)
		}
		if rec.Status != session.StatusRevoked {
			t.Fatalf("session %s: expected revoked, got %s", sid, rec.Status)
		}
	}

	sessions, err := manager.GetUserSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected zero active sessions after compromise, got %d", len(sessions))
	}

	if got := manager.MetricsSnapshot().Counters[MetricReplayDetected]; got != 1 {
		t.Fatalf("expected replay counter 1, got %d", got)
	}
}

func TestRotateStaleTokenTwoGenerationsBackIsCompromise(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()
	ctx := context.Background()

	created, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("first rotate: %v", err)
	}
	if _, err := manager.RotateRefreshToken(ctx, created.SessionID, first.RefreshToken); err != nil {
		t.Fatalf("second rotate: %v", err)
	}

	// The original token is now two generations old: reuse even inside the
	// grace window.
	res, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("replay rotate: %v", err)
	}
	if res.Outcome != RotationCompromised {
		t.Fatalf("expected compromised, got %s (%s)", res.Outcome, res.Reason)
	}
}

func TestRotateCompromisePreservesOtherUsersSessions(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()
	ctx := context.Background()

	victim, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create victim: %v", err)
	}
	bystander, err := manager.CreateSession(ctx, "u2", Metadata{})
	if err != nil {
		t.Fatalf("create bystander: %v", err)
	}

	first, err := manager.RotateRefreshToken(ctx, victim.SessionID, victim.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := manager.RotateRefreshToken(ctx, victim.SessionID, first.RefreshToken); err != nil {
		t.Fatalf("second rotate: %v", err)
	}

	res, err := manager.RotateRefreshToken(ctx, victim.SessionID, victim.RefreshToken)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Outcome != RotationCompromised {
		t.Fatalf("expected compromised, got %s", res.Outcome)
	}

	rec, err := manager.store.Get(ctx, bystander.SessionID)
	if err != nil {
		t.Fatalf("get bystander: %v", err)
	}
	if rec.Status != session.StatusActive {
		t.Fatalf("cascade must stay within the owning user, got %s", rec.Status)
	}
}

func TestRotateUnknownSessionIsInvalid(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()

	created, err := manager.CreateSession(context.Background(), "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := manager.RotateRefreshToken(context.Background(), "no-such-session", created.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if res.Outcome != RotationInvalid || res.Reason != ReasonSessionNotFound {
		t.Fatalf("expected invalid/session_not_found, got %s/%s", res.Outcome, res.Reason)
	}
}

func TestRotateMalformedTokenIsInvalid(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()

	created, err := manager.CreateSession(context.Background(), "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := manager.RotateRefreshToken(context.Background(), created.SessionID, "!!not-a-token!!")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if res.Outcome != RotationInvalid || res.Reason != ReasonMalformedToken {
		t.Fatalf("expected invalid/malformed_token, got %s/%s", res.Outcome, res.Reason)
	}

	// A malformed credential must not trip the replay cascade.
	rec, err := manager.store.Get(context.Background(), created.SessionID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Status != session.StatusActive {
		t.Fatalf("expected session untouched, got %s", rec.Status)
	}
}

func TestRotateRevokedSessionIsInvalid(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()
	ctx := context.Background()

	created, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := manager.RevokeSession(ctx, created.SessionID, "user_logout"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	res, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if res.Outcome != RotationInvalid || res.Reason != ReasonSessionRevoked {
		t.Fatalf("expected invalid/session_revoked, got %s/%s", res.Outcome, res.Reason)
	}
}

func TestRevocationWinsAgainstInFlightRotationWrite(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()
	ctx := context.Background()

	created, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Snapshot the record the way an in-flight rotation does, then let a
	// revocation land before the rotation's conditional write fires.
	rec, err := manager.store.Get(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if err := manager.RevokeSession(ctx, created.SessionID, "user_logout"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	upd := rec.Clone()
	upd.PreviousTokenHash = rec.CurrentTokenHash
	upd.HasPrevious = true
	upd.CurrentTokenHash = internal.HashRefreshSecret(nextSecret)
	upd.RotationCount = rec.RotationCount + 1
	upd.RotatedAt = manager.now().Unix()

	// The counter still matches, but the record turned terminal in between.
	err = manager.store.PutIfVersion(ctx, upd, rec.RotationCount)
	if !errors.Is(err, session.ErrVersionConflict) {
		t.Fatalf("expected stale rotation write to be rejected, got %v", err)
	}

	after, err := manager.store.Get(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if after.Status != session.StatusRevoked {
		t.Fatalf("revoked session resurrected: status=%s", after.Status)
	}
	if after.RotationCount != rec.RotationCount {
		t.Fatalf("rotation count advanced on revoked record: %d", after.RotationCount)
	}

	// And the full rotation path must agree once the record is terminal.
	res, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if res.Outcome != RotationInvalid || res.Reason != ReasonSessionRevoked {
		t.Fatalf("expected invalid/session_revoked, got %s/%s", res.Outcome, res.Reason)
	}
}

func TestRotateExpiredSessionIsInvalidAndLazilyExpired(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()
	ctx := context.Background()

	start := time.Now()
	setClock(manager, start)

	created, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	setClock(manager, start.Add(manager.config.Session.Lifetime+time.Second))

	res, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if res.Outcome != RotationInvalid || res.Reason != ReasonSessionExpired {
		t.Fatalf("expected invalid/session_expired, got %s/%s", res.Outcome, res.Reason)
	}

	rec, err := manager.store.Get(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Status != session.StatusExpired {
		t.Fatalf("expected lazily expired record, got %s", rec.Status)
	}

	ids, err := manager.store.DirectorySessionIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expired session must be detached from the directory, got %v", ids)
	}
}

func TestRotateExpiryWinsOverReplayClassification(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()
	ctx := context.Background()

	start := time.Now()
	setClock(manager, start)

	created, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := manager.RotateRefreshToken(ctx, created.SessionID, first.RefreshToken); err != nil {
		t.Fatalf("second rotate: %v", err)
	}

	setClock(manager, start.Add(manager.config.Session.Lifetime+time.Second))

	// The stale token would be replay on a live session, but an expired
	// session yields the expiry verdict with no cascade.
	res, err := manager.RotateRefreshToken(ctx, created.SessionID, created.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if res.Outcome != RotationInvalid || res.Reason != ReasonSessionExpired {
		t.Fatalf("expected invalid/session_expired, got %s/%s", res.Outcome, res.Reason)
	}
}

func TestRotateThrottleDeniesBeforeStateRead(t *testing.T) {
	manager, _, done := newTestManager(t, func(cfg *Config) {
		cfg.RateLimit.EnableRefreshThrottle = true
		cfg.RateLimit.MaxRefreshAttempts = 2
		cfg.RateLimit.RefreshCooldown = time.Minute
	})
	defer done()
	ctx := context.Background()

	created, err := manager.CreateSession(ctx, "u1", Metadata{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	token := created.RefreshToken
	for i := 0; i < 2; i++ {
		res, err := manager.RotateRefreshToken(ctx, created.SessionID, token)
		if err != nil {
			t.Fatalf("rotate %d: %v", i, err)
		}
		token = res.RefreshToken
	}

	_, err = manager.RotateRefreshToken(ctx, created.SessionID, token)
	if !errors.Is(err, ErrRefreshRateLimited) {
		t.Fatalf("expected ErrRefreshRateLimited, got %v", err)
	}

	if got := manager.MetricsSnapshot().Counters[MetricRefreshRateLimited]; got != 1 {
		t.Fatalf("expected rate limited counter 1, got %d", got)
	}
}

func TestRotateRequiresSessionID(t *testing.T) {
	manager, _, done := newTestManager(t, nil)
	defer done()

	_, err := manager.RotateRefreshToken(context.Background(), "", "token")
	if !errors.Is(err, ErrSessionIDRequired) {
		t.Fatalf("expected ErrSessionIDRequired, got %v", err)
	}
}
