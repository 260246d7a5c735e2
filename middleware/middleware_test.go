package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newInMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb_mw_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Session{}))
	return db
}

type testSessionParams struct {
	roleID    uint32
	token     string
	expiresAt time.Time
}

// newTestDBWithUserSession seeds a user holding one session.
func newTestDBWithUserSession(t *testing.T, params testSessionParams) (*gorm.DB, model.User) {
	t.Helper()
	db := newInMemoryDB(t)
	user := model.User{Name: "Ana Torres", Email: "ana@dhermica.com", Password: "hashed", RoleID: params.roleID}
	require.NoError(t, db.Create(&user).Error)
	if params.expiresAt.IsZero() {
		params.expiresAt = time.Now().Add(time.Hour)
	}
	require.NoError(t, db.Create(&model.Session{
		SessionToken: params.token,
		UserID:       user.ID,
		ExpiresAt:    params.expiresAt,
		ClientIP:     "127.0.0.1",
		Browser:      "test-browser",
	}).Error)
	return db, user
}

func runValidateLoginTokenRequest(db *gorm.DB, token string, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	if db != nil {
		r.Use(DatabaseMiddleware(db))
	}
	r.GET("/test", ValidateLoginToken(), handler)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if token != "" {
		req.Header.Set(SessionHeader, token)
	}
	r.ServeHTTP(w, req)
	return w
}

func setupRedisMock(t *testing.T) redismock.ClientMock {
	rdb, mock := redismock.NewClientMock()
	config.SetRedisClientForTest(rdb)
	t.Cleanup(config.ResetRedisClientForTest)
	return mock
}

// identity is what ValidateLoginToken stored for the request.
type identity struct {
	userID  uint
	roleID  uint32
	session string
}

func captureIdentity(got *identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		got.userID, _ = GetUserID(c)
		got.roleID, _ = GetRoleID(c)
		got.session = GetSessionToken(c)
		c.Status(http.StatusOK)
	}
}

func TestValidateLoginToken_Redis(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("cached session", func(t *testing.T) {
		mock := setupRedisMock(t)
		mock.ExpectGet("session:valid-token").SetVal("123:1")

		var got identity
		w := runValidateLoginTokenRequest(&gorm.DB{}, "valid-token", captureIdentity(&got))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, identity{userID: 123, roleID: model.RoleAdmin, session: "valid-token"}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	// every unusable cache value falls back to the sessions table
	fallbacks := []struct {
		name   string
		cached string
		miss   bool
		roleID uint32
	}{
		{name: "non numeric user id", cached: "abc:1", roleID: model.RoleAdmin},
		{name: "missing separator", cached: "123", roleID: model.RoleProfessional},
		{name: "zero user id", cached: "0:1", roleID: model.RoleAdmin},
		{name: "non numeric role", cached: "456:xyz", roleID: model.RoleClient},
		{name: "key not found", miss: true, roleID: model.RoleClient},
	}
	for _, tt := range fallbacks {
		t.Run(tt.name, func(t *testing.T) {
			mock := setupRedisMock(t)
			token := "token-" + tt.name
			if tt.miss {
				mock.ExpectGet("session:" + token).RedisNil()
			} else {
				mock.ExpectGet("session:" + token).SetVal(tt.cached)
			}
			db, user := newTestDBWithUserSession(t, testSessionParams{roleID: tt.roleID, token: token})

			var got identity
			w := runValidateLoginTokenRequest(db, token, captureIdentity(&got))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, identity{userID: user.ID, roleID: tt.roleID, session: token}, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestValidateLoginToken_Database(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.ResetRedisClientForTest()
	t.Cleanup(config.ResetRedisClientForTest)
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	t.Run("missing token", func(t *testing.T) {
		w := runValidateLoginTokenRequest(&gorm.DB{}, "", ok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing database", func(t *testing.T) {
		w := runValidateLoginTokenRequest(nil, "some-token", ok)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("valid session", func(t *testing.T) {
		db, user := newTestDBWithUserSession(t, testSessionParams{roleID: model.RoleClient, token: "db-token"})
		var got identity
		w := runValidateLoginTokenRequest(db, "db-token", captureIdentity(&got))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, identity{userID: user.ID, roleID: model.RoleClient, session: "db-token"}, got)
	})

	t.Run("expired session", func(t *testing.T) {
		db, _ := newTestDBWithUserSession(t, testSessionParams{roleID: model.RoleClient, token: "old-token", expiresAt: time.Now().Add(-time.Hour)})
		w := runValidateLoginTokenRequest(db, "old-token", ok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		db, _ := newTestDBWithUserSession(t, testSessionParams{roleID: model.RoleClient, token: "real-token"})
		w := runValidateLoginTokenRequest(db, "forged-token", ok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/treatment", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/treatment", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Headers"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/treatment", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestAPITokenMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APITokenMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve := func(method, auth string) int {
		req := httptest.NewRequest(method, "/x", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	t.Setenv("APITOKEN", "")
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, ""), "no APITOKEN configured")

	t.Setenv("APITOKEN", "abc")
	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, ""))
	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "Bearer wrong"))
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "Bearer abc"))
}

func TestDatabaseMiddlewareAndGetDB(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := &gorm.DB{}
	r := gin.New()
	r.Use(DatabaseMiddleware(db))
	r.GET("/db", func(c *gin.Context) {
		assert.Same(t, db, GetDB(c))
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/db", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name    string
		roleID  uint32
		allowed []uint32
		code    int
	}{
		{"admin on admin route", model.RoleAdmin, []uint32{model.RoleAdmin}, http.StatusOK},
		{"professional on staff route", model.RoleProfessional, []uint32{model.RoleAdmin, model.RoleProfessional}, http.StatusOK},
		{"client on staff route", model.RoleClient, []uint32{model.RoleAdmin, model.RoleProfessional}, http.StatusForbidden},
		{"admin on client area", model.RoleAdmin, []uint32{model.RoleClient}, http.StatusForbidden},
		{"anonymous", 0, []uint32{model.RoleAdmin}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) {
				if tt.roleID != 0 {
					c.Set(UserIDKey, uint(1))
					c.Set(RoleIDKey, tt.roleID)
				}
			}, RequireRole(tt.allowed...), func(c *gin.Context) { c.Status(http.StatusOK) })
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestOptionalLoginToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.ResetRedisClientForTest()
	t.Cleanup(config.ResetRedisClientForTest)
	db, user := newTestDBWithUserSession(t, testSessionParams{roleID: model.RoleAdmin, token: "admin-token"})

	tests := []struct {
		name   string
		token  string
		admin  bool
		userID uint
	}{
		{"admin session", "admin-token", true, user.ID},
		{"no token", "", false, 0},
		{"unknown token is ignored", "bogus", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var admin bool
			var uid uint
			r := gin.New()
			r.Use(DatabaseMiddleware(db), OptionalLoginToken())
			r.GET("/treatment", func(c *gin.Context) {
				admin = IsAdmin(c)
				uid, _ = GetUserID(c)
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/treatment", nil)
			if tt.token != "" {
				req.Header.Set(SessionHeader, tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.admin, admin)
			assert.Equal(t, tt.userID, uid)
		})
	}
}
