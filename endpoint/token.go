package endpoint

import (
	"errors"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
)

// sessionInfo describes who owns a live session token.
type sessionInfo struct {
	UserID    uint      `json:"user_id" example:"7"`
	Name      string    `json:"name" example:"María López"`
	Email     string    `json:"email" example:"maria@example.com"`
	Role      string    `json:"role" example:"Client"`
	RoleID    uint32    `json:"role_id" example:"3"`
	ExpiresAt time.Time `json:"expires_at"`
	// ClientID is set when a client account is linked to a client record.
	ClientID *uint `json:"client_id,omitempty" example:"12"`
}

// ValidateToken godoc
// @Summary      Validate session token
// @Description  Report the account behind a live session token, including the linked client record for client accounts
// @Tags         Authentication
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=sessionInfo} "Valid session token"
// @Failure      401 {object} util.APIResponse "Invalid or expired session token"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /token/validate [get]
func ValidateToken(c *gin.Context) {
	token := c.GetHeader(middleware.SessionHeader)
	if token == "" {
		util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Invalid session token", Err: errors.New("session token not provided")})
		c.Abort()
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		c.Abort()
		return
	}

	// soft-deleted users or sessions never validate
	var info sessionInfo
	err := db.Table("sessions").
		Select("users.id AS user_id, users.name, users.email, roles.name AS role, users.role_id, sessions.expires_at").
		Joins("JOIN users ON sessions.user_id = users.id AND users.deleted_at IS NULL").
		Joins("JOIN roles ON users.role_id = roles.id").
		Where("sessions.session_token = ? AND sessions.expires_at > ? AND sessions.deleted_at IS NULL", token, time.Now()).
		Take(&info).Error
	if err != nil {
		util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "Session not found", Err: err})
		c.Abort()
		return
	}

	if info.RoleID == model.RoleClient {
		var client model.Client
		if db.Select("id").Where("user_id = ?", info.UserID).Take(&client).Error == nil {
			info.ClientID = &client.ID
		}
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Valid session token", Data: info})
}
