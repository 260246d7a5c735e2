package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Context keys set by the middleware chain.
const (
	DBKey           = "db"
	UserIDKey       = "user_id"
	RoleIDKey       = "role_id"
	SessionTokenKey = "session_token"
)

// SessionHeader carries the login session token.
const SessionHeader = "session-token"

var (
	errMissingSession = errors.New("missing session token")
	errInvalidSession = errors.New("invalid or expired session")
)

func setCorsHeaders(c *gin.Context) {
	origin := os.Getenv("CORS_ALLOW_ORIGIN")
	if origin == "" {
		origin = "*"
	}
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
	h.Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Authorization, session-token")
	h.Set("Access-Control-Max-Age", "86400")
	h.Set("Access-Control-Allow-Credentials", "true")
}

// CORSMiddleware configures CORS headers for incoming requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		setCorsHeaders(c)

		// For preflight requests, respond with 204 and abort further processing.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// tokenValidator checks the Authorization header against expected. Preflight
// requests always pass. On mismatch the request is aborted with 401.
func tokenValidator(c *gin.Context, expected string) bool {
	if c.Request.Method == http.MethodOptions {
		return true
	}
	got := c.GetHeader("Authorization")
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Invalid API token",
			Err: fmt.Errorf("invalid api token"),
		})
		c.Abort()
		return false
	}
	return true
}

// APITokenMiddleware requires "Authorization: Bearer <APITOKEN>" when the
// APITOKEN environment variable is set.
func APITokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := os.Getenv("APITOKEN")
		if token == "" {
			c.Next()
			return
		}
		if !tokenValidator(c, "Bearer "+token) {
			return
		}
		c.Next()
	}
}

// DatabaseMiddleware makes db available to handlers through GetDB.
func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(DBKey, db)
		c.Next()
	}
}

// GetDB returns the request's database handle, or nil when none was set.
func GetDB(c *gin.Context) *gorm.DB {
	v, ok := c.Get(DBKey)
	if !ok {
		return nil
	}
	db, _ := v.(*gorm.DB)
	return db
}

func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

func GetRoleID(c *gin.Context) (uint32, bool) {
	v, ok := c.Get(RoleIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint32)
	return id, ok && id != 0
}

// GetSessionToken returns the validated session token of the request.
func GetSessionToken(c *gin.Context) string {
	return c.GetString(SessionTokenKey)
}

// IsAdmin reports whether the request was authenticated as an admin.
func IsAdmin(c *gin.Context) bool {
	rid, ok := GetRoleID(c)
	return ok && rid == model.RoleAdmin
}

// resolveSession maps a token to a user and role, trying Redis first and then
// the sessions table. Malformed cache entries are ignored.
func resolveSession(c *gin.Context, db *gorm.DB, token string) (uint, uint32, error) {
	uid, rid, found, err := util.LookupSession(c.Request.Context(), token)
	if err == nil && found && uid != 0 && rid != 0 {
		return uid, rid, nil
	}

	var session model.Session
	err = db.Where("session_token = ? AND expires_at > ?", token, time.Now()).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, errInvalidSession
		}
		return 0, 0, err
	}
	var user model.User
	if err := db.Select("id", "role_id").First(&user, session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, errInvalidSession
		}
		return 0, 0, err
	}
	return user.ID, user.RoleID, nil
}

func setIdentity(c *gin.Context, token string, uid uint, rid uint32) {
	c.Set(UserIDKey, uid)
	c.Set(RoleIDKey, rid)
	c.Set(SessionTokenKey, token)
}

// ValidateLoginToken rejects requests without a live session and stores the
// caller's user and role ids in the context.
func ValidateLoginToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(SessionHeader)
		if token == "" {
			util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Please login first", Err: errMissingSession})
			c.Abort()
			return
		}
		db := GetDB(c)
		if db == nil {
			util.CallServerError(c, util.APIErrorParams{Msg: "Database unavailable", Err: errors.New("database not found in context")})
			c.Abort()
			return
		}

		uid, rid, err := resolveSession(c, db, token)
		if err != nil {
			if errors.Is(err, errInvalidSession) {
				util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Session expired, please login again", Err: err})
			} else {
				util.CallServerError(c, util.APIErrorParams{Msg: "Failed to validate session", Err: err})
			}
			c.Abort()
			return
		}

		setIdentity(c, token, uid, rid)
		c.Next()
	}
}

// OptionalLoginToken identifies the caller when a valid session token is sent
// and lets anonymous requests through untouched.
func OptionalLoginToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(SessionHeader)
		db := GetDB(c)
		if token != "" && db != nil {
			if uid, rid, err := resolveSession(c, db, token); err == nil {
				setIdentity(c, token, uid, rid)
			}
		}
		c.Next()
	}
}

// RequireRole lets the request through only when the caller holds one of roles.
// It must run after ValidateLoginToken.
func RequireRole(roles ...uint32) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid, ok := GetRoleID(c)
		if !ok {
			util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Please login first", Err: errMissingSession})
			c.Abort()
			return
		}
		for _, r := range roles {
			if r == rid {
				c.Next()
				return
			}
		}

		uid, _ := GetUserID(c)
		util.LogUnauthorizedAccess(util.UnauthorizedAccessParams{
			UserID:   fmt.Sprintf("%d", uid),
			IP:       c.ClientIP(),
			Resource: c.Request.Method + " " + c.Request.URL.Path,
			Reason:   fmt.Sprintf("role %d not allowed", rid),
		})
		util.CallForbidden(c, util.APIErrorParams{
			Msg: "You are not allowed to access this resource",
			Err: errors.New("forbidden"),
		})
		c.Abort()
	}
}
