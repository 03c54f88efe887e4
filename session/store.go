package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRefreshHashMismatch means the presented refresh secret is not the
	// current one. The session has already been destroyed when this is returned.
	ErrRefreshHashMismatch = errors.New("refresh hash mismatch")
	ErrRedisUnavailable    = errors.New("redis unavailable")
	// ErrRefreshSessionNotFound is returned when the refresh target session does not exist.
	ErrRefreshSessionNotFound = errors.New("refresh session not found")
	ErrRefreshSessionExpired  = errors.New("refresh session expired")
	ErrRefreshSessionCorrupt  = errors.New("refresh session corrupt")
)

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// rotateRefreshScript parses the Encode layout: version, user length, user,
// status, 32-byte hash, createdAt, expiresAt.
const rotateRefreshScript = `
local function read_be64(s, i)
  local v = 0
  for k = 0, 7 do
    local b = string.byte(s, i + k)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local session_key = KEYS[1]
local session_id = ARGV[1]
local user_prefix = ARGV[2]
local provided_hash = ARGV[3]
local next_hash = ARGV[4]
local now_unix = tonumber(ARGV[5])

local data = redis.call("GET", session_key)
if not data then
  return {0}
end

if string.byte(data, 1) ~= 1 then
  return {4}
end
local user_len = string.byte(data, 2)
if not user_len or user_len == 0 or #data ~= 2 + user_len + 1 + 32 + 16 then
  return {4}
end
local user_id = string.sub(data, 3, 2 + user_len)
local hash_offset = 2 + user_len + 2
local stored_hash = string.sub(data, hash_offset, hash_offset + 31)
local expires_at = read_be64(data, hash_offset + 32 + 8)
if not expires_at then
  return {4}
end

local user_key = user_prefix .. user_id

if expires_at <= now_unix then
  redis.call("DEL", session_key)
  redis.call("SREM", user_key, session_id)
  return {1}
end

if stored_hash ~= provided_hash then
  redis.call("DEL", session_key)
  redis.call("SREM", user_key, session_id)
  return {2}
end

local ttl = redis.call("PTTL", session_key)
if ttl <= 0 then
  redis.call("DEL", session_key)
  redis.call("SREM", user_key, session_id)
  return {1}
end

local updated = string.sub(data, 1, hash_offset - 1) .. next_hash .. string.sub(data, hash_offset + 32)
redis.call("SET", session_key, updated, "PX", ttl)

return {3, updated}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Store is a Redis-backed refresh-session store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a Store. prefix namespaces every key the store writes.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sn"
	}
	return &Store{redis: rdb, prefix: prefix, now: time.Now}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userPrefix() string {
	return s.prefix + ":u:"
}

func (s *Store) userKey(userID string) string {
	return s.userPrefix() + userID
}

// Save persists sess with the given TTL and indexes it under its user.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	userKey := s.userKey(sess.UserID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, userKey, sess.SessionID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the session or redis.Nil when it is missing or expired.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrRefreshSessionCorrupt, err)
	}
	sess.SessionID = sessionID

	if s.now().Unix() >= sess.ExpiresAt {
		if err := s.deleteSessionAndIndex(ctx, sess.UserID, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}
	return sess, nil
}

// Delete removes one session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		if delErr := s.redis.Del(ctx, s.key(sessionID)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
		}
		return nil
	}

	return s.deleteSessionAndIndex(ctx, sess.UserID, sessionID)
}

// DeleteAllForUser removes every indexed session of userID.
//
// This is not atomic with concurrent logins: a session saved between the
// SMEMBERS read and the delete survives until its own TTL.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	return s.deleteForUser(ctx, userID, "")
}

// DeleteOthersForUser removes every indexed session of userID except keep.
// It has the same race with concurrent logins as DeleteAllForUser.
func (s *Store) DeleteOthersForUser(ctx context.Context, userID, keep string) error {
	return s.deleteForUser(ctx, userID, keep)
}

func (s *Store) deleteForUser(ctx context.Context, userID, keep string) error {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	members := make([]any, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		if id == keep {
			continue
		}
		keys = append(keys, s.key(id))
		members = append(members, id)
	}

	if keep == "" {
		keys = append(keys, userKey)
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}
	if len(keys) == 0 {
		return nil
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, userKey, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveSessionCount returns the number of indexed session IDs for userID.
// Expired sessions stay indexed until the user key itself expires or is
// cleaned up by a delete.
func (s *Store) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// RotateRefreshHash atomically swaps the stored refresh hash from providedHash
// to nextHash. A mismatch destroys the session and returns
// ErrRefreshHashMismatch; a missing or expired session returns an error that
// matches both redis.Nil and ErrRefreshSessionNotFound/Expired.
func (s *Store) RotateRefreshHash(ctx context.Context, sessionID string, providedHash, nextHash [32]byte) (*Session, error) {
	result, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		sessionID,
		s.userPrefix(),
		providedHash[:],
		nextHash[:],
		s.now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid refresh script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid refresh script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, errors.Join(redis.Nil, ErrRefreshSessionNotFound)
	case rotateStatusExpired:
		return nil, errors.Join(redis.Nil, ErrRefreshSessionExpired)
	case rotateStatusMismatch:
		return nil, ErrRefreshHashMismatch
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing updated session payload", ErrRedisUnavailable)
		}
		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid updated session payload", ErrRedisUnavailable)
		}
		sess, decErr := Decode(blob)
		if decErr != nil {
			return nil, errors.Join(ErrRefreshSessionCorrupt, decErr)
		}
		sess.SessionID = sessionID
		return sess, nil
	case rotateStatusInvalidBlob:
		return nil, ErrRefreshSessionCorrupt
	default:
		return nil, fmt.Errorf("%w: unknown refresh script status", ErrRedisUnavailable)
	}
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	_, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID), s.userKey(userID)}, sessionID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
