package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
)

func withMockRedis(t *testing.T) redismock.ClientMock {
	t.Helper()
	db, mock := redismock.NewClientMock()
	config.SetRedisClientForTest(db)
	t.Cleanup(func() {
		config.SetRedisClientForTest(nil)
		_ = db.Close()
	})
	return mock
}

func TestSessionHelpersWithoutRedis(t *testing.T) {
	config.SetRedisClientForTest(nil)
	ctx := context.Background()

	assert.NoError(t, CacheSession(ctx, "tok", 1, 1, time.Hour))
	_, _, found, err := LookupSession(ctx, "tok")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, DropSession(ctx, "tok", 1))
	assert.NoError(t, InvalidateUserSessions(ctx, 1))
}

func TestCacheSession(t *testing.T) {
	mock := withMockRedis(t)
	ttl := 24 * time.Hour

	mock.ExpectSet("session:tok-1", "7:3", ttl).SetVal("OK")
	mock.ExpectSAdd("user_sessions:7", "tok-1").SetVal(1)
	mock.ExpectExpire("user_sessions:7", ttl).SetVal(true)

	require.NoError(t, CacheSession(context.Background(), "tok-1", 7, 3, ttl))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheSession_SetError(t *testing.T) {
	mock := withMockRedis(t)
	mock.ExpectSet("session:tok-1", "7:3", time.Hour).SetErr(errors.New("redis down"))

	err := CacheSession(context.Background(), "tok-1", 7, 3, time.Hour)
	assert.EqualError(t, err, "redis down")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSessionToUserSet_SAddError(t *testing.T) {
	mock := withMockRedis(t)
	mock.ExpectSAdd("user_sessions:123", "test-token-123").SetErr(errors.New("redis connection error"))

	err := AddSessionToUserSet(context.Background(), 123, "test-token-123", time.Hour)
	assert.EqualError(t, err, "redis connection error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupSession(t *testing.T) {
	mock := withMockRedis(t)
	ctx := context.Background()

	mock.ExpectGet("session:good").SetVal("42:1")
	uid, rid, found, err := LookupSession(ctx, "good")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint(42), uid)
	assert.Equal(t, uint32(1), rid)

	mock.ExpectGet("session:missing").RedisNil()
	_, _, found, err = LookupSession(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	mock.ExpectGet("session:broken").SetVal("garbage")
	_, _, found, err = LookupSession(ctx, "broken")
	assert.Error(t, err)
	assert.False(t, found)

	mock.ExpectGet("session:badrole").SetVal("4:x")
	_, _, _, err = LookupSession(ctx, "badrole")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropSession(t *testing.T) {
	mock := withMockRedis(t)
	ctx := context.Background()

	mock.ExpectDel("session:tok").SetVal(1)
	mock.ExpectEval(removeTokenScript, []string{"user_sessions:5"}, "tok").SetVal(int64(1))
	require.NoError(t, DropSession(ctx, "tok", 5))

	mock.ExpectDel("session:anon").SetVal(1)
	require.NoError(t, DropSession(ctx, "anon", 0))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateUserSessions(t *testing.T) {
	mock := withMockRedis(t)

	mock.ExpectSMembers("user_sessions:9").SetVal([]string{"a", "b"})
	mock.ExpectDel("session:a").SetVal(1)
	mock.ExpectDel("session:b").SetVal(1)
	mock.ExpectDel("user_sessions:9").SetVal(1)

	require.NoError(t, InvalidateUserSessions(context.Background(), 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateUserSessions_SMembersError(t *testing.T) {
	mock := withMockRedis(t)
	mock.ExpectSMembers("user_sessions:9").SetErr(errors.New("boom"))

	assert.EqualError(t, InvalidateUserSessions(context.Background(), 9), "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}
