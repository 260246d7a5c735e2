package util

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/redis/go-redis/v9"
)

// SessionKey is the Redis key that caches a session token as "<uid>:<rid>".
func SessionKey(token string) string {
	return "session:" + token
}

func userSetKey(userID uint) string {
	return fmt.Sprintf("user_sessions:%d", userID)
}

const removeTokenScript = `
	local removed = redis.call('SREM', KEYS[1], ARGV[1])
	if removed > 0 then
		local count = redis.call('SCARD', KEYS[1])
		if count == 0 then
			redis.call('DEL', KEYS[1])
		end
	end
	return removed
`

// CacheSession stores the session in Redis and registers it in the per-user set.
// It is a no-op without Redis.
func CacheSession(ctx context.Context, token string, userID uint, roleID uint32, ttl time.Duration) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	val := fmt.Sprintf("%d:%d", userID, roleID)
	if err := rdb.Set(ctx, SessionKey(token), val, ttl).Err(); err != nil {
		return err
	}
	return AddSessionToUserSet(ctx, userID, token, ttl)
}

// LookupSession returns the user and role cached for token. found is false on a
// cache miss or when Redis is not configured.
func LookupSession(ctx context.Context, token string) (userID uint, roleID uint32, found bool, err error) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return 0, 0, false, nil
	}
	val, err := rdb.Get(ctx, SessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	uidStr, ridStr, ok := strings.Cut(val, ":")
	if !ok {
		return 0, 0, false, fmt.Errorf("malformed session value %q", val)
	}
	uid, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("malformed session user: %w", err)
	}
	rid, err := strconv.ParseUint(ridStr, 10, 32)
	if err != nil {
		return 0, 0, false, fmt.Errorf("malformed session role: %w", err)
	}
	return uint(uid), uint32(rid), true, nil
}

// DropSession deletes one cached session and removes it from the user's set.
func DropSession(ctx context.Context, token string, userID uint) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	if err := rdb.Del(ctx, SessionKey(token)).Err(); err != nil {
		return err
	}
	if userID == 0 {
		return nil
	}
	return RemoveSessionTokenFromUserSet(ctx, userID, token)
}

// AddSessionToUserSet adds the session token to the per-user Redis set and
// extends the set's TTL to ttl so it never outlives the newest session.
func AddSessionToUserSet(ctx context.Context, userID uint, token string, ttl time.Duration) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	key := userSetKey(userID)
	if err := rdb.SAdd(ctx, key, token).Err(); err != nil {
		return err
	}
	return rdb.Expire(ctx, key, ttl).Err()
}

// RemoveSessionTokenFromUserSet removes a single session token from the per-user set.
// If the set becomes empty after removal, it is deleted.
func RemoveSessionTokenFromUserSet(ctx context.Context, userID uint, token string) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	return rdb.Eval(ctx, removeTokenScript, []string{userSetKey(userID)}, token).Err()
}

// InvalidateUserSessions deletes all session:<token> keys for the given user and
// removes the per-user set. Best-effort: it will return an error if Redis calls
// fail, but callers may choose to ignore it.
func InvalidateUserSessions(ctx context.Context, userID uint) error {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return nil
	}
	key := userSetKey(userID)
	members, err := rdb.SMembers(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, tok := range members {
		_ = rdb.Del(ctx, SessionKey(tok)).Err()
	}
	return rdb.Del(ctx, key).Err()
}
