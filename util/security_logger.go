package util

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SecurityEventType represents different types of security events
type SecurityEventType string

const (
	EventLoginSuccess        SecurityEventType = "LOGIN_SUCCESS"
	EventLoginFailure        SecurityEventType = "LOGIN_FAILURE"
	EventSignupSuccess       SecurityEventType = "SIGNUP_SUCCESS"
	EventLogout              SecurityEventType = "LOGOUT"
	EventAccountLocked       SecurityEventType = "ACCOUNT_LOCKED"
	EventPasswordChanged     SecurityEventType = "PASSWORD_CHANGED"
	EventUnauthorizedAccess  SecurityEventType = "UNAUTHORIZED_ACCESS"
	EventRateLimitExceeded   SecurityEventType = "RATE_LIMIT_EXCEEDED"
	EventSuspiciousActivity  SecurityEventType = "SUSPICIOUS_ACTIVITY"
	EventEndpointCall        SecurityEventType = "ENDPOINT_CALL"
	EventRestrictionOverride SecurityEventType = "RESTRICTION_OVERRIDE"
)

// SecurityEvent represents a security event to be logged
type SecurityEvent struct {
	EventType SecurityEventType
	UserID    string
	Email     string
	IP        string
	UserAgent string
	Message   string
	Details   map[string]interface{}
}

var securityLogger *log.Logger
var securityDB *gorm.DB

// SetSecurityLoggerDB sets a gorm DB instance used by the security logger.
// Call this during application startup after DB initialization.
func SetSecurityLoggerDB(db *gorm.DB) {
	securityDB = db
}

func init() {
	securityLogger = log.New(os.Stdout, "[SECURITY] ", log.LstdFlags|log.Lmsgprefix)
}

var logValueReplacer = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")

// sanitizeLogValue removes newlines and other characters that could break log parsing
func sanitizeLogValue(value string) string {
	value = logValueReplacer.Replace(value)
	if len(value) > 200 {
		value = value[:200] + "..."
	}
	return value
}

// LogSecurityEvent logs a security event
func LogSecurityEvent(event SecurityEvent) {
	msg := fmt.Sprintf("Event=%s UserID=%s Email=%s IP=%s UserAgent=%s Message=%s",
		sanitizeLogValue(string(event.EventType)),
		sanitizeLogValue(event.UserID),
		sanitizeLogValue(event.Email),
		sanitizeLogValue(event.IP),
		sanitizeLogValue(event.UserAgent),
		sanitizeLogValue(event.Message),
	)
	// details can carry user input, so only their count reaches the log line
	if len(event.Details) > 0 {
		msg = fmt.Sprintf("%s DetailsCount=%d", msg, len(event.Details))
	}

	securityLogger.Println(msg)

	if securityDB == nil {
		return
	}

	var details datatypes.JSON
	if event.Details != nil {
		if b, err := json.Marshal(event.Details); err == nil {
			details = datatypes.JSON(b)
		}
	}

	entry := model.SecurityLog{
		EventType: string(event.EventType),
		UserID:    event.UserID,
		Email:     sanitizeLogValue(event.Email),
		IP:        sanitizeLogValue(event.IP),
		Location:  sanitizeLogValue(GetIPLocation(event.IP).String()),
		UserAgent: sanitizeLogValue(event.UserAgent),
		Message:   sanitizeLogValue(event.Message),
		Details:   details,
	}
	if err := securityDB.Create(&entry).Error; err != nil {
		securityLogger.Printf("Failed to persist security event: %v", err)
	}
}

// LoginParams carries the fields logged for login, signup and logout events.
type LoginParams struct {
	UserID    uint
	Email     string
	IP        string
	UserAgent string
	Reason    string
}

// AccountLockParams describes a locked account.
type AccountLockParams struct {
	UserID uint
	Email  string
	IP     string
	Reason string
}

// UnauthorizedAccessParams describes a denied request.
type UnauthorizedAccessParams struct {
	UserID   string
	Email    string
	IP       string
	Resource string
	Reason   string
}

// RateLimitParams describes a throttled request.
type RateLimitParams struct {
	Email    string
	IP       string
	Endpoint string
}

// RestrictionOverrideParams describes an admin booking that ignored medical restrictions.
type RestrictionOverrideParams struct {
	AdminID     uint
	IP          string
	ClientID    uint
	TreatmentID uint
	Conditions  []string
}

// LogLoginSuccess logs a successful login event
func LogLoginSuccess(p LoginParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventLoginSuccess,
		UserID:    fmt.Sprintf("%d", p.UserID),
		Email:     p.Email,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		Message:   "User logged in successfully",
	})
}

// LogLoginFailure logs a failed login attempt
func LogLoginFailure(p LoginParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventLoginFailure,
		Email:     p.Email,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		Message:   fmt.Sprintf("Login failed: %s", p.Reason),
	})
}

// LogSignup logs a client self-registration.
func LogSignup(p LoginParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventSignupSuccess,
		UserID:    fmt.Sprintf("%d", p.UserID),
		Email:     p.Email,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		Message:   "Client account registered",
	})
}

// LogLogout logs a logout event
func LogLogout(p LoginParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventLogout,
		UserID:    fmt.Sprintf("%d", p.UserID),
		Email:     p.Email,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		Message:   "User logged out",
	})
}

// LogPasswordChanged logs a password update by the account owner.
func LogPasswordChanged(p LoginParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventPasswordChanged,
		UserID:    fmt.Sprintf("%d", p.UserID),
		Email:     p.Email,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		Message:   "Password changed",
	})
}

// LogAccountLocked logs when an account is locked
func LogAccountLocked(p AccountLockParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventAccountLocked,
		UserID:    fmt.Sprintf("%d", p.UserID),
		Email:     p.Email,
		IP:        p.IP,
		Message:   fmt.Sprintf("Account locked: %s", p.Reason),
	})
}

// LogUnauthorizedAccess logs unauthorized access attempts
func LogUnauthorizedAccess(p UnauthorizedAccessParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventUnauthorizedAccess,
		UserID:    p.UserID,
		Email:     p.Email,
		IP:        p.IP,
		Message:   fmt.Sprintf("Unauthorized access to %s: %s", p.Resource, p.Reason),
	})
}

// LogRateLimitExceeded logs when rate limit is exceeded
func LogRateLimitExceeded(p RateLimitParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventRateLimitExceeded,
		Email:     p.Email,
		IP:        p.IP,
		Message:   fmt.Sprintf("Rate limit exceeded for endpoint: %s", p.Endpoint),
	})
}

// LogRestrictionOverride records an admin booking a treatment despite the
// client's conflicting medical conditions.
func LogRestrictionOverride(p RestrictionOverrideParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventRestrictionOverride,
		UserID:    fmt.Sprintf("%d", p.AdminID),
		IP:        p.IP,
		Message:   fmt.Sprintf("Treatment %d booked for client %d despite restrictions", p.TreatmentID, p.ClientID),
		Details: map[string]interface{}{
			"client_id":    p.ClientID,
			"treatment_id": p.TreatmentID,
			"conditions":   p.Conditions,
		},
	})
}

// GetSecurityLoggerForTest returns the current security logger for testing purposes
func GetSecurityLoggerForTest() *log.Logger {
	return securityLogger
}

// SetSecurityLoggerForTest sets a custom logger for testing purposes
func SetSecurityLoggerForTest(logger *log.Logger) {
	securityLogger = logger
}
