package endpoint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	sessionTTL       = 24 * time.Hour
	maxFailedLogins  = 5
	lockoutDuration  = 15 * time.Minute
	signupTokenTTL   = time.Hour
	minPasswordChars = 8
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"user@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

type LoginResponse struct {
	Token    string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Role     string `json:"role" example:"Client"`
	UserID   uint   `json:"user_id" example:"1"`
	ClientID uint   `json:"client_id,omitempty" example:"4"`
}

// Login godoc
// @Summary      User login
// @Description  Authenticate user with email and password
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} util.APIResponse{data=LoginResponse} "Login successful"
// @Failure      400 {object} util.APIResponse "Invalid request payload"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /login [post]
func Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	a := loginAttempt{
		c:     c,
		db:    db,
		email: strings.ToLower(strings.TrimSpace(req.Email)),
		from:  clientInfo{IP: c.ClientIP(), Agent: c.Request.UserAgent()},
	}
	a.run(req.Password)
}

type clientInfo struct {
	IP    string
	Agent string
}

// loginAttempt carries one POST /login through lookup, lockout, password
// check and session creation. Each step writes the response when it fails.
type loginAttempt struct {
	c     *gin.Context
	db    *gorm.DB
	email string
	from  clientInfo
}

func (a loginAttempt) run(password string) {
	var user model.User
	err := a.db.Where("email = ?", a.email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		a.reject("user not found", "Invalid email or password")
		return
	case err != nil:
		a.fail("database error", "Database error", err)
		return
	}

	if until, locked := lockedUntil(user); locked {
		a.reject("account locked", fmt.Sprintf("Account is locked until %s due to multiple failed login attempts", until.Format(time.RFC3339)))
		return
	}

	match, err := util.VerifyPassword(password, user.Password, user.PasswordSalt)
	if err != nil {
		a.fail("password verification error", "Password verification failed", err)
		return
	}
	if !match {
		a.countFailure(&user)
		a.reject("invalid password", "Invalid email or password")
		return
	}

	a.clearFailures(&user)
	a.rehash(&user, password)
	a.openSession(user)
}

func (a loginAttempt) logFailure(reason string) {
	util.LogLoginFailure(util.LoginParams{Email: a.email, IP: a.from.IP, UserAgent: a.from.Agent, Reason: reason})
}

// reject answers 400 with msg.
func (a loginAttempt) reject(reason, msg string) {
	a.logFailure(reason)
	util.CallUserError(a.c, util.APIErrorParams{Msg: msg, Err: errors.New(reason)})
}

// fail answers 500 with msg.
func (a loginAttempt) fail(reason, msg string, err error) {
	a.logFailure(reason)
	util.CallServerError(a.c, util.APIErrorParams{Msg: msg, Err: err})
}

func (a loginAttempt) suspicious(user model.User, msg string) {
	util.LogSecurityEvent(util.SecurityEvent{EventType: util.EventSuspiciousActivity, UserID: fmt.Sprint(user.ID), Email: user.Email, IP: a.from.IP, Message: msg})
}

func lockedUntil(user model.User) (time.Time, bool) {
	if user.LockedUntil == nil {
		return time.Time{}, false
	}
	until := time.Unix(*user.LockedUntil, 0)
	return until, until.After(time.Now())
}

// countFailure locks the account for lockoutDuration on the maxFailedLogins-th miss.
func (a loginAttempt) countFailure(user *model.User) {
	user.FailedAttempts++
	if user.FailedAttempts >= maxFailedLogins {
		until := time.Now().Add(lockoutDuration).Unix()
		user.LockedUntil = &until
		util.LogAccountLocked(util.AccountLockParams{UserID: user.ID, Email: user.Email, IP: a.from.IP, Reason: "too many failed login attempts"})
	}
	if err := a.db.Model(user).Select("failed_attempts", "locked_until").Updates(user).Error; err != nil {
		a.logFailure("failed to update failed attempts")
	}
}

func (a loginAttempt) clearFailures(user *model.User) {
	if user.FailedAttempts == 0 && user.LockedUntil == nil {
		return
	}
	user.FailedAttempts, user.LockedUntil = 0, nil
	if err := a.db.Model(user).Select("failed_attempts", "locked_until").Updates(user).Error; err != nil {
		a.suspicious(*user, fmt.Sprintf("Failed to reset failed attempts: %v", err))
	}
}

// rehash moves accounts still on a legacy hash to Argon2. Failures only log.
func (a loginAttempt) rehash(user *model.User, password string) {
	if strings.HasPrefix(user.Password, util.Argon2PrefixV1) {
		return
	}
	if err := setPassword(user, password); err != nil {
		a.suspicious(*user, fmt.Sprintf("Failed to upgrade password hash: %v", err))
		return
	}
	if err := a.db.Model(user).Select("password", "password_salt").Updates(user).Error; err != nil {
		a.suspicious(*user, fmt.Sprintf("Failed to upgrade password hash: %v", err))
		return
	}
	util.LogSecurityEvent(util.SecurityEvent{EventType: util.EventPasswordChanged, UserID: fmt.Sprint(user.ID), Email: user.Email, IP: a.from.IP, Message: "Upgraded password hash to Argon2"})
}

func (a loginAttempt) openSession(user model.User) {
	var role model.Role
	if err := a.db.Where("id = ?", user.RoleID).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.reject("role not found", "Role not found")
			return
		}
		a.fail("role lookup failed", "Database error", err)
		return
	}

	token, err := signSessionToken(user, sessionTTL)
	if err != nil {
		a.fail("token generation failed", "Could not generate token", err)
		return
	}
	session := model.Session{
		UserID:       user.ID,
		SessionToken: token,
		ExpiresAt:    time.Now().Add(sessionTTL),
		ClientIP:     a.from.IP,
		Browser:      a.from.Agent,
	}
	if err := a.db.Create(&session).Error; err != nil {
		a.fail("session creation failed", "Failed to record session", err)
		return
	}

	// the sessions table stays authoritative when Redis is down
	_ = util.CacheSession(a.c.Request.Context(), token, user.ID, role.ID, time.Until(session.ExpiresAt))

	resp := LoginResponse{Token: token, Role: role.Name, UserID: user.ID}
	if user.RoleID == model.RoleClient {
		var client model.Client
		if a.db.Select("id").Where("user_id = ?", user.ID).Take(&client).Error == nil {
			resp.ClientID = client.ID
		}
	}

	util.LogLoginSuccess(util.LoginParams{UserID: user.ID, Email: user.Email, IP: a.from.IP, UserAgent: a.from.Agent})
	util.CallSuccessOK(a.c, util.APISuccessParams{Msg: "Login successful", Data: resp})
}

// emailTakenOrRespond answers 400 when email already belongs to an account.
func emailTakenOrRespond(c *gin.Context, db *gorm.DB, email string) bool {
	var n int64
	if err := db.Model(&model.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: err})
		return true
	}
	if n > 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "Email already exists", Err: ErrUserEmailAlreadyExists})
		return true
	}
	return false
}

// signSessionToken signs the opaque session token. The session row, not the
// claims, decides whether the token is still valid.
func signSessionToken(user model.User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"email": user.Email,
		"sub":   fmt.Sprint(user.ID),
		"role":  user.RoleID,
		"exp":   time.Now().Add(ttl).Unix(),
		"jti":   uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(util.GetJWTSecretByte())
}

// Logout godoc
// @Summary      User logout
// @Description  Invalidate the user session token
// @Tags         Authentication
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse "Logout successful"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      400 {object} util.APIResponse "Session not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /logout [delete]
func Logout(c *gin.Context) {
	sessionToken := c.GetHeader(middleware.SessionHeader)
	if sessionToken == "" {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "Session token not provided",
			Err: fmt.Errorf("session token not provided"),
		})
		c.Abort()
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var session model.Session
	if err := db.Where("session_token = ?", sessionToken).First(&session).Error; err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Session not found",
			Err: err,
		})
		return
	}

	var user model.User
	if err := db.First(&user, session.UserID).Error; err == nil {
		util.LogLogout(util.LoginParams{UserID: user.ID, Email: user.Email, IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})
	}

	if err := db.Where("session_token = ?", sessionToken).Delete(&session).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Failed to delete session",
			Err: err,
		})
		return
	}

	_ = util.DropSession(c.Request.Context(), sessionToken, session.UserID)

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Logout successful",
	})
}

// SignupRequest registers a client account. The optional profile fields fill
// the client record created alongside the user.
type SignupRequest struct {
	Name              string   `json:"name" binding:"required" example:"María López"`
	Email             string   `json:"email" binding:"required,email" example:"maria@example.com"`
	Password          string   `json:"password" binding:"required,min=8" example:"password123"`
	PhoneNumber       string   `json:"phone_number" example:"3515551234"`
	DateOfBirth       string   `json:"date_of_birth" binding:"omitempty,date" example:"1990-04-21"`
	Gender            string   `json:"gender" example:"Female"`
	MedicalConditions []string `json:"medical_conditions"`
	Allergies         []string `json:"allergies"`
	Medications       []string `json:"medications"`
}

type SignupResponse struct {
	Token    string `json:"token"`
	UserID   uint   `json:"user_id"`
	ClientID uint   `json:"client_id"`
}

// Signup godoc
// @Summary      Client self-registration
// @Description  Create a client account together with its client profile. An existing client record with the same email and no account is linked instead of duplicated.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request body SignupRequest true "Signup details"
// @Success      200 {object} util.APIResponse{data=SignupResponse} "Signup successful"
// @Failure      400 {object} util.APIResponse "Invalid request or email already exists"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /signup [post]
func Signup(c *gin.Context) {
	var req SignupRequest

	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = util.NormalizeName(req.Name)

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	if emailTakenOrRespond(c, db, req.Email) {
		return
	}
	req.MedicalConditions = normalizeCodenames(req.MedicalConditions)
	if !conditionsKnownOrRespond(c, db, req.MedicalConditions) {
		return
	}

	newUser := model.User{Name: req.Name, Email: req.Email, RoleID: model.RoleClient}
	if err := setPassword(&newUser, req.Password); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to hash password", Err: err})
		return
	}

	var client model.Client
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newUser).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		var err error
		client, err = linkOrCreateClient(tx, newUser, req)
		return err
	})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create new user", Err: err})
		return
	}

	util.LogSignup(util.LoginParams{UserID: newUser.ID, Email: newUser.Email, IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})

	tokenString, err := signSessionToken(newUser, signupTokenTTL)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Could not generate token", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Signup successful",
		Data: SignupResponse{Token: tokenString, UserID: newUser.ID, ClientID: client.ID},
	})
}

// linkOrCreateClient attaches user to the clinic's existing record for the
// same email, or creates a new client profile.
func linkOrCreateClient(tx *gorm.DB, user model.User, req SignupRequest) (model.Client, error) {
	var client model.Client
	err := tx.Where("email = ? AND user_id IS NULL", user.Email).First(&client).Error
	if err == nil {
		client.UserID = &user.ID
		if client.PhoneNumber == "" {
			client.PhoneNumber = req.PhoneNumber
		}
		if client.DateOfBirth == "" {
			client.DateOfBirth = req.DateOfBirth
		}
		if err := tx.Save(&client).Error; err != nil {
			return model.Client{}, fmt.Errorf("failed to link client: %w", err)
		}
		return client, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Client{}, err
	}

	code, err := nextClientCode(tx, user.Name)
	if err != nil {
		return model.Client{}, err
	}
	client = model.Client{
		UserID:            &user.ID,
		ClientCode:        code,
		FullName:          user.Name,
		Email:             user.Email,
		PhoneNumber:       strings.TrimSpace(req.PhoneNumber),
		DateOfBirth:       req.DateOfBirth,
		Gender:            req.Gender,
		MedicalConditions: util.JoinCSV(req.MedicalConditions),
		Allergies:         util.JoinCSV(req.Allergies),
		Medications:       util.JoinCSV(req.Medications),
		IsActive:          true,
	}
	if err := tx.Create(&client).Error; err != nil {
		return model.Client{}, fmt.Errorf("failed to create client profile: %w", err)
	}
	return client, nil
}

// VerifyPasswordRequest represents the request body for password verification
type VerifyPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// VerifyPassword godoc
// @Summary      Verify current user's password
// @Description  Validate the provided current password for the authenticated user
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body VerifyPasswordRequest true "Password to verify"
// @Success      200 {object} util.APIResponse "Password verified"
// @Failure      400 {object} util.APIResponse "Invalid request payload"
// @Failure      401 {object} util.APIResponse "Invalid password or unauthorized"
// @Failure      404 {object} util.APIResponse "User not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /verify-password [post]
func VerifyPassword(c *gin.Context) {
	var req VerifyPasswordRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	userID, ok := currentUserOrRespond(c)
	if !ok {
		return
	}

	var user model.User
	if !findByIDOrRespond(c, db, &user, userID, "User") {
		return
	}

	passwordMatch, err := util.VerifyPassword(req.Password, user.Password, user.PasswordSalt)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Password verification failed",
			Err: err,
		})
		return
	}

	if passwordMatch {
		util.CallSuccessOK(c, util.APISuccessParams{
			Msg:  "Password verified",
			Data: map[string]bool{"verified": true},
		})
		return
	}

	util.CallUserNotAuthorized(c, util.APIErrorParams{
		Msg: "Invalid password",
		Err: fmt.Errorf("provided password does not match"),
	})
}
