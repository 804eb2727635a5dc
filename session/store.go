package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable marks operational Redis failures: timeouts, connection
// errors, script failures. Never a security verdict.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrNotFound is returned when no record exists under the session ID.
var ErrNotFound = errors.New("session record not found")

// ErrVersionConflict is returned by PutIfVersion when the stored rotation
// counter no longer matches the expected value or the stored record already
// reached a terminal state: another writer got there first.
var ErrVersionConflict = errors.New("session version conflict")

// ErrCorrupt is returned when a stored blob fails structural validation.
var ErrCorrupt = errors.New("session record corrupt")

const (
	putStatusNotFound int64 = 0
	putStatusSwapped  int64 = 1
	putStatusConflict int64 = 2
	putStatusCorrupt  int64 = 3
)

// putIfVersionScript compares the rotation counter encoded at bytes 2..5 of
// the stored blob (big-endian uint32 after the format version byte) against
// the expected value and swaps the blob only on a match, preserving the key's
// TTL. The status byte at offset 6 must still read active: terminal records
// reject every write, so a revocation can never be overwritten by a racing
// rotation that read the record before it turned terminal. This is the single
// atomic mutation point of the rotation protocol.
const putIfVersionScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
if #data < 6 then
  return 3
end

local b1 = string.byte(data, 2)
local b2 = string.byte(data, 3)
local b3 = string.byte(data, 4)
local b4 = string.byte(data, 5)
local stored = ((b1 * 256 + b2) * 256 + b3) * 256 + b4

if stored ~= tonumber(ARGV[1]) then
  return 2
end

if string.byte(data, 6) ~= 0 then
  return 2
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`

var putIfVersionLua = redis.NewScript(putIfVersionScript)

// Store is the narrow persistence adapter for session records: get, put,
// conditional-update-by-version, and the per-user directory index. Expiry-based
// deletion is delegated to the record TTL set at Save time.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sg"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Save persists a new record and registers it in the owner's directory entry.
// ttl bounds the record's physical lifetime and must cover the session's
// absolute lifetime plus any terminal-state retention.
//
//	Performance: 2 Redis commands in one transaction (SET + SADD).
func (s *Store) Save(ctx context.Context, rec *Record, ttl time.Duration) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(rec.SessionID), data, ttl)
		pipe.SAdd(ctx, s.userKey(rec.UserID), rec.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Get fetches a record by session ID without mutating any Redis state.
// Lifecycle interpretation (expiry, terminal status) is the caller's job.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	rec.SessionID = sessionID

	return rec, nil
}

// GetMany fetches multiple records in one pipeline. Missing IDs are skipped,
// so the result may be shorter than the input.
func (s *Store) GetMany(ctx context.Context, sessionIDs []string) ([]*Record, error) {
	if len(sessionIDs) == 0 {
		return []*Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(sid))
	}

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	records := make([]*Record, 0, len(sessionIDs))
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, cmdErr)
		}

		rec, decErr := Decode(data)
		if decErr != nil {
			return nil, errors.Join(ErrCorrupt, decErr)
		}
		rec.SessionID = sessionIDs[i]
		records = append(records, rec)
	}

	return records, nil
}

// PutIfVersion writes the record only if the stored rotation counter still
// equals expectedCount and the stored record is still active. Terminal states
// are one-way: once a record reads revoked or expired, every conditional write
// fails with [ErrVersionConflict] regardless of the counter. The swap preserves
// the record's TTL. On conflict the caller must re-read and re-evaluate rather
// than overwrite.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
//	Security: the version guard is what distinguishes a concurrent
//	legitimate retry from token reuse; see the Manager's rotation loop.
func (s *Store) PutIfVersion(ctx context.Context, rec *Record, expectedCount uint32) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	result, err := putIfVersionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(rec.SessionID)},
		expectedCount,
		data,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch result {
	case putStatusSwapped:
		return nil
	case putStatusNotFound:
		return ErrNotFound
	case putStatusConflict:
		return ErrVersionConflict
	case putStatusCorrupt:
		return ErrCorrupt
	default:
		return fmt.Errorf("%w: unknown conditional-update status %d", ErrStoreUnavailable, result)
	}
}

// Detach removes a session from its owner's directory entry. Idempotent: a
// missing member is not an error. Records themselves are never deleted here;
// terminal state is a status flag and physical removal is the TTL's job.
func (s *Store) Detach(ctx context.Context, userID, sessionID string) error {
	if err := s.redis.SRem(ctx, s.userKey(userID), sessionID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DirectorySessionIDs returns the session IDs registered in a user's
// directory entry. Entries are maintained by the Manager: added on create,
// removed when a session turns terminal. Stale members can linger after a
// record's TTL fires; callers must treat a missing record as already gone.
func (s *Store) DirectorySessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// DirectorySize returns the number of directory members for a user.
func (s *Store) DirectorySize(ctx context.Context, userID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
