package model

import (
	"time"

	"gorm.io/gorm"
)

// User is a login account. Clients and professionals may be linked to one.
type User struct {
	gorm.Model
	Name           string `json:"name" gorm:"type:varchar(191);not null"`
	Email          string `json:"email" gorm:"type:varchar(191);uniqueIndex;not null"`
	Password       string `json:"-" gorm:"type:varchar(255)"`
	PasswordSalt   string `json:"-" gorm:"type:varchar(64)"`
	RoleID         uint32 `json:"role_id" gorm:"not null;default:3"`
	FailedAttempts int    `json:"-" gorm:"default:0"`
	LockedUntil    *int64 `json:"-"`
}

type Session struct {
	gorm.Model
	SessionToken string    `json:"session_token" gorm:"type:varchar(512);index"`
	UserID       uint      `json:"user_id" gorm:"index"`
	ExpiresAt    time.Time `json:"expires_at"`
	ClientIP     string    `json:"client_ip" gorm:"type:varchar(45)"`
	Browser      string    `json:"browser" gorm:"type:varchar(512)"`
}
