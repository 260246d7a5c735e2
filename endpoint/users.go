package endpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUserEmailAlreadyExists = errors.New("email already exists")
	ErrPasswordTooShort       = fmt.Errorf("password must be at least %d characters", minPasswordChars)
	ErrInvalidRole            = errors.New("invalid role")
)

type UpdateUserRequest struct {
	Name     string `json:"name" example:"María López"`
	Email    string `json:"email" binding:"omitempty,email" example:"maria@example.com"`
	Password string `json:"password" example:"newpassword123"`
	// RoleID is only honored on the admin endpoint.
	RoleID uint32 `json:"role_id,omitempty" example:"2"`
}

func (req UpdateUserRequest) empty() bool {
	return req.Name == "" && req.Email == "" && req.Password == "" && req.RoleID == 0
}

// userChanges records which sensitive fields an update touched.
type userChanges struct {
	email, password, role bool
}

// endsSessions is true when cached sessions no longer describe the account.
func (ch userChanges) endsSessions() bool { return ch.password || ch.role }

// setPassword stores a fresh salt and the Argon2 hash of plain.
func setPassword(user *model.User, plain string) error {
	salt, err := util.GenerateSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	hashed, err := util.HashPasswordArgon2(plain, salt)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password, user.PasswordSalt = hashed, salt
	return nil
}

// applyUserChanges copies req onto user without saving it. Errors other than
// the sentinels above are server failures.
func applyUserChanges(db *gorm.DB, user *model.User, req UpdateUserRequest) (userChanges, error) {
	var ch userChanges
	if req.RoleID != 0 {
		if !model.IsKnownRole(req.RoleID) {
			return ch, ErrInvalidRole
		}
		ch.role = req.RoleID != user.RoleID
		user.RoleID = req.RoleID
	}

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		var taken int64
		if err := db.Model(&model.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&taken).Error; err != nil {
			return ch, fmt.Errorf("check email: %w", err)
		}
		if taken > 0 {
			return ch, ErrUserEmailAlreadyExists
		}
		user.Email = email
		ch.email = true
	}

	if req.Name != "" {
		user.Name = util.NormalizeName(req.Name)
	}

	if req.Password != "" {
		if len(req.Password) < minPasswordChars {
			return ch, ErrPasswordTooShort
		}
		if err := setPassword(user, req.Password); err != nil {
			return ch, err
		}
		ch.password = true
	}
	return ch, nil
}

// invalidateUserSessions removes session records from both DB and Redis for a given user.
// Failures are logged; the user update has already been saved.
func invalidateUserSessions(ctx context.Context, db *gorm.DB, userID uint) {
	if err := db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Session{}).Error; err != nil {
		zap.L().Warn("failed to delete user sessions", zap.Uint("user_id", userID), zap.Error(err))
	}
	if err := util.InvalidateUserSessions(ctx, userID); err != nil {
		zap.L().Warn("failed to drop cached user sessions", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func saveUserUpdate(c *gin.Context, db *gorm.DB, user *model.User, req UpdateUserRequest) {
	ch, err := applyUserChanges(db, user, req)
	switch {
	case errors.Is(err, ErrInvalidRole):
		util.CallUserError(c, util.APIErrorParams{Msg: "Unknown role", Err: err})
		return
	case errors.Is(err, ErrUserEmailAlreadyExists), errors.Is(err, ErrPasswordTooShort):
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	case err != nil:
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update user fields", Err: err})
		return
	}

	if err := db.Save(user).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update user", Err: err})
		return
	}

	if ch.email {
		util.UserEmailCacheDelete(user.ID)
	}
	if ch.password {
		util.LogPasswordChanged(util.LoginParams{UserID: user.ID, Email: user.Email, IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})
	}
	// cached sessions carry the role id
	if ch.endsSessions() {
		invalidateUserSessions(c.Request.Context(), db, user.ID)
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "User updated successfully", Data: user})
}

// UpdateUser godoc
// @Summary      Update current user profile
// @Description  Update authenticated user's name, email, and/or password
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body UpdateUserRequest true "Update details"
// @Success      200 {object} util.APIResponse "Update successful"
// @Failure      400 {object} util.APIResponse "Invalid request or email already exists"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /user [patch]
func UpdateUser(c *gin.Context) {
	req, ok := bindUpdateUserRequest(c)
	if !ok {
		return
	}
	// users cannot change their own role
	req.RoleID = 0
	if !requireUpdateFields(c, req) {
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
	if findByIDOrRespond(c, db, &user, userID, "User") {
		saveUserUpdate(c, db, &user, req)
	}
}

// ListUsers godoc
// @Summary      List all users (admin only)
// @Description  Get a paginated list of users using cursor-based pagination. Admin-only access.
// @Tags         Users
// @Produce      json
// @Security     SessionToken
// @Param        limit query int false "Limit number of results (default 10, max 100)"
// @Param        cursor query int false "Cursor for pagination (User ID)"
// @Param        keyword query string false "Search keyword for name or email"
// @Param        role_id query int false "Only users with this role"
// @Success      200 {object} util.APIResponse{data=object} "Users retrieved with cursor pagination"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /user [get]
func ListUsers(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	filter := userListQuery{Keyword: strings.TrimSpace(c.Query("keyword")), RoleID: parseUintQuery(c, "role_id")}
	var total int64
	if err := filter.apply(db.Model(&model.User{})).Count(&total).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to count users", Err: err})
		return
	}

	page := parseIDCursor(c)
	var users []model.User
	if err := page.apply(filter.apply(db.Model(&model.User{}))).Find(&users).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve users", Err: err})
		return
	}
	users, next := trimCursorPage(users, page.Limit, func(u model.User) uint { return u.ID })

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Users retrieved",
		Data: map[string]interface{}{
			"users":         users,
			"total":         total,
			"total_fetched": len(users),
			"has_more":      next != nil,
			"next_cursor":   next,
		},
	})
}

type userListQuery struct {
	Keyword string
	RoleID  uint
}

func (q userListQuery) apply(db *gorm.DB) *gorm.DB {
	if q.Keyword != "" {
		kw := "%" + q.Keyword + "%"
		db = db.Where("name LIKE ? OR email LIKE ?", kw, kw)
	}
	if q.RoleID != 0 {
		db = db.Where("role_id = ?", q.RoleID)
	}
	return db
}

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required" example:"Lic. Ana Torres"`
	Email    string `json:"email" binding:"required,email" example:"ana@dhermica.com"`
	Password string `json:"password" binding:"required,min=8" example:"password123"`
	RoleID   uint32 `json:"role_id" binding:"required" example:"2"`
}

// AdminCreateUser godoc
// @Summary      Create a staff or client account (admin only)
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body CreateUserRequest true "Account details"
// @Success      201 {object} util.APIResponse{data=model.User} "User created"
// @Failure      400 {object} util.APIResponse "Invalid request or email already exists"
// @Router       /user [post]
func AdminCreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	if !model.IsKnownRole(req.RoleID) {
		util.CallUserError(c, util.APIErrorParams{Msg: "Unknown role", Err: ErrInvalidRole})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	if emailTakenOrRespond(c, db, req.Email) {
		return
	}

	user := model.User{Name: util.NormalizeName(req.Name), Email: req.Email, RoleID: req.RoleID}
	if err := setPassword(&user, req.Password); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to hash password", Err: err})
		return
	}
	if err := db.Create(&user).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create new user", Err: err})
		return
	}

	util.CallCreated(c, util.APISuccessParams{Msg: "User created", Data: user})
}

// AdminUpdateUser godoc
// @Summary      Update other user's profile (admin only)
// @Description  Admins can update another user's name, email, password and role
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "User ID"
// @Param        request body UpdateUserRequest true "Update details"
// @Success      200 {object} util.APIResponse "Update successful"
// @Failure      400 {object} util.APIResponse "Invalid request or email already exists"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /user/{id} [patch]
func AdminUpdateUser(c *gin.Context) {
	uid, err := parseIDParam(c)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}
	req, ok := bindUpdateUserRequest(c)
	if !ok {
		return
	}
	if !requireUpdateFields(c, req) {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var user model.User
	if findByIDOrRespond(c, db, &user, uid, "User") {
		saveUserUpdate(c, db, &user, req)
	}
}

// GetUserInfo godoc
// @Summary      Get user info (admin only)
// @Tags         Users
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "User ID"
// @Success      200 {object} util.APIResponse "User retrieved"
// @Failure      400 {object} util.APIResponse "Invalid user id"
// @Failure      404 {object} util.APIResponse "User not found"
// @Router       /user/{id} [get]
func GetUserInfo(c *gin.Context) {
	uid, err := parseIDParam(c)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var user model.User
	if findByIDOrRespond(c, db, &user, uid, "User") {
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "User retrieved", Data: user})
	}
}

// deleteUserWithSessions deletes a user and all their sessions atomically. A
// linked client or professional record is kept and unlinked.
func deleteUserWithSessions(db *gorm.DB, userID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		user := &model.User{}
		if err := tx.First(user, userID).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Client{}).Where("user_id = ?", userID).Update("user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Professional{}).Where("user_id = ?", userID).Update("user_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
}

// DeleteUser godoc
// @Summary      Delete user (admin only)
// @Description  Soft-delete a user by ID. Admin-only access.
// @Tags         Users
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "User ID"
// @Success      200 {object} util.APIResponse "User deleted"
// @Failure      400 {object} util.APIResponse "Invalid user id"
// @Failure      404 {object} util.APIResponse "User not found"
// @Router       /user/{id} [delete]
func DeleteUser(c *gin.Context) {
	uid, err := parseIDParam(c)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	if err := deleteUserWithSessions(db, uid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "User not found", Err: err})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete user", Err: err})
		return
	}

	_ = util.InvalidateUserSessions(c.Request.Context(), uid)
	util.UserEmailCacheDelete(uid)
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "User deleted"})
}

func bindUpdateUserRequest(c *gin.Context) (UpdateUserRequest, bool) {
	var req UpdateUserRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return UpdateUserRequest{}, false
	}
	return req, true
}

func requireUpdateFields(c *gin.Context, req UpdateUserRequest) bool {
	if !req.empty() {
		return true
	}
	util.CallUserError(c, util.APIErrorParams{
		Msg: "At least one field (name, email, or password) must be provided",
		Err: fmt.Errorf("no fields to update"),
	})
	return false
}
