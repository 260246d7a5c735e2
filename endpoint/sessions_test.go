package endpoint

import (
	"context"
	"testing"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeWarnings(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestInvalidateUserSessions(t *testing.T) {
	db := setupEndpointTestDB(t)
	user := seedUser(t, db, "maria@example.com", model.RoleClient)
	require.NoError(t, db.Create(&model.Session{SessionToken: "tok", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}).Error)

	t.Run("removes stored sessions", func(t *testing.T) {
		logs := observeWarnings(t)
		config.SetRedisClientForTest(nil)

		invalidateUserSessions(context.Background(), db, user.ID)

		var left int64
		require.NoError(t, db.Model(&model.Session{}).Where("user_id = ?", user.ID).Count(&left).Error)
		assert.Zero(t, left)
		assert.Zero(t, logs.Len())
	})

	t.Run("logs failures", func(t *testing.T) {
		logs := observeWarnings(t)
		rdb, _ := redismock.NewClientMock()
		config.SetRedisClientForTest(rdb)
		t.Cleanup(func() {
			config.SetRedisClientForTest(nil)
			_ = rdb.Close()
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		invalidateUserSessions(ctx, db, user.ID)

		dbLogs := logs.FilterMessage("failed to delete user sessions").All()
		require.Len(t, dbLogs, 1)
		assert.EqualValues(t, user.ID, dbLogs[0].ContextMap()["user_id"])
		assert.Len(t, logs.FilterMessage("failed to drop cached user sessions").All(), 1)
	})
}
