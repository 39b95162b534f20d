package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps each session in a hash at session:<id> that
// expires with the session, plus a per-user set of session ids.
type RedisSessionStore struct {
	Redis *redis.Client
}

var _ SessionStore = (*RedisSessionStore)(nil)

func sessionKey(id string) string {
	return "session:" + id
}

func userSessionsKey(userID string) string {
	return "user_sessions:" + userID
}

// hsetIfExists avoids resurrecting a session hash that expired between a
// read and a write.
var hsetIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

var renewIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], "expires", ARGV[1])
redis.call("PEXPIREAT", KEYS[1], ARGV[1])
return 1
`)

func (s *RedisSessionStore) CreateSession(ctx context.Context, sess Session) error {
	key := sessionKey(sess.ID)
	data := map[string]interface{}{
		"userId":            sess.UserID,
		"expires":           sess.ExpiresAt.UnixMilli(),
		"twoFactorVerified": sess.TwoFactorVerified,
	}

	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, key, data)
	pipe.PExpireAt(ctx, key, sess.ExpiresAt)
	pipe.SAdd(ctx, userSessionsKey(sess.UserID), sess.ID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSessionStore) GetSession(ctx context.Context, id string) (*Session, error) {
	vals, err := s.Redis.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}

	expMillis, _ := strconv.ParseInt(vals["expires"], 10, 64)
	return &Session{
		ID:                id,
		UserID:            vals["userId"],
		ExpiresAt:         time.UnixMilli(expMillis).UTC(),
		TwoFactorVerified: parseRedisBool(vals["twoFactorVerified"]),
	}, nil
}

func (s *RedisSessionStore) UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	return renewIfExists.Run(ctx, s.Redis, []string{sessionKey(id)}, expiresAt.UnixMilli()).Err()
}

func (s *RedisSessionStore) SetSessionTwoFactorVerified(ctx context.Context, id string, verified bool) error {
	return hsetIfExists.Run(ctx, s.Redis, []string{sessionKey(id)}, "twoFactorVerified", verified).Err()
}

func (s *RedisSessionStore) SetUserSessionsTwoFactorVerified(ctx context.Context, userID string, verified bool) error {
	ids, err := s.Redis.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := hsetIfExists.Run(ctx, s.Redis, []string{sessionKey(id)}, "twoFactorVerified", verified).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisSessionStore) DeleteSession(ctx context.Context, id string) error {
	key := sessionKey(id)
	userID, err := s.Redis.HGet(ctx, key, "userId").Result()
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := s.Redis.TxPipeline()
	pipe.Del(ctx, key)
	if userID != "" {
		pipe.SRem(ctx, userSessionsKey(userID), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteUserSessions removes only the ids it read from the index, so a
// session created concurrently stays indexed and can still be revoked.
func (s *RedisSessionStore) DeleteUserSessions(ctx context.Context, userID string) error {
	setKey := userSessionsKey(userID)
	ids, err := s.Redis.SMembers(ctx, setKey).Result()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	members := make([]interface{}, 0, len(ids))
	pipe := s.Redis.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, sessionKey(id))
		members = append(members, id)
	}
	pipe.SRem(ctx, setKey, members...)
	_, err = pipe.Exec(ctx)
	return err
}

// ListUserSessions also prunes ids whose hash has already expired.
func (s *RedisSessionStore) ListUserSessions(ctx context.Context, userID string) ([]Session, error) {
	setKey := userSessionsKey(userID)
	ids, err := s.Redis.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, err
	}

	var sessions []Session
	for _, id := range ids {
		sess, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			_ = s.Redis.SRem(ctx, setKey, id).Err()
			continue
		}
		sessions = append(sessions, *sess)
	}
	return sessions, nil
}

func parseRedisBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}
