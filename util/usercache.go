package util

import (
	"os"
	"strconv"
	"time"

	cache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

const defaultUserEmailTTL = 10 * time.Minute

var userCache *cache.Cache

// InitUserEmailCache initializes the userID -> email cache. Entries live for ttl;
// ttl <= 0 uses ten minutes.
func InitUserEmailCache(ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultUserEmailTTL
	}
	userCache = cache.New(ttl, 2*ttl)
}

func userCacheKey(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// UserEmailCacheGet returns email and true if present in cache.
func UserEmailCacheGet(userID uint) (string, bool) {
	if userCache == nil {
		return "", false
	}
	v, ok := userCache.Get(userCacheKey(userID))
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}

// UserEmailCacheSet sets the email for a userID in the cache.
func UserEmailCacheSet(userID uint, email string) {
	if userCache == nil {
		return
	}
	userCache.SetDefault(userCacheKey(userID), email)
}

// UserEmailCacheDelete drops a cached email, e.g. after the user changed it.
func UserEmailCacheDelete(userID uint) {
	if userCache == nil {
		return
	}
	userCache.Delete(userCacheKey(userID))
}

// GetUserEmail returns the email for userID using cache, falling back to DB.
// If found in DB, caches the result.
func GetUserEmail(db *gorm.DB, userID uint) string {
	if userID == 0 {
		return ""
	}
	if email, ok := UserEmailCacheGet(userID); ok {
		return email
	}
	if db == nil {
		return ""
	}
	var u struct{ Email string }
	if err := db.Table("users").Select("email").Where("id = ?", userID).Take(&u).Error; err != nil {
		return ""
	}
	if u.Email != "" {
		UserEmailCacheSet(userID, u.Email)
	}
	return u.Email
}

// InitUserEmailCacheFromEnv initializes the cache using USER_EMAIL_CACHE_TTL, a
// Go duration string such as "5m".
func InitUserEmailCacheFromEnv() {
	ttl, err := time.ParseDuration(os.Getenv("USER_EMAIL_CACHE_TTL"))
	if err != nil {
		ttl = 0
	}
	InitUserEmailCache(ttl)
}
