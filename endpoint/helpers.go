package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func init() {
	util.RegisterBindingValidators()
}

func bindJSONOrRespond(c *gin.Context, dst interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: msg, Err: err})
		return false
	}
	return true
}

func getDBOrRespond(c *gin.Context) (*gorm.DB, bool) {
	db := middleware.GetDB(c)
	if db == nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database connection not available", Err: fmt.Errorf("db is nil")})
		return nil, false
	}
	return db, true
}

// parseIDParam parses the "id" path parameter into a uint and returns an error if invalid.
func parseIDParam(c *gin.Context) (uint, error) {
	return parseNamedIDParam(c, "id")
}

func parseNamedIDParam(c *gin.Context, name string) (uint, error) {
	id, ok := util.ParseUintParam(c.Param(name))
	if !ok {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func idParamOrRespond(c *gin.Context, name string) (uint, bool) {
	id, err := parseNamedIDParam(c, name)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid " + strings.ReplaceAll(name, "_", " "), Err: err})
		return 0, false
	}
	return id, true
}

// currentUserOrRespond returns the authenticated user's id.
func currentUserOrRespond(c *gin.Context) (uint, bool) {
	uid, ok := middleware.GetUserID(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{Msg: "User not authenticated", Err: fmt.Errorf("user id not found in context")})
		return 0, false
	}
	return uid, true
}

// findByIDOrRespond loads the row with id into dst. what names the entity in
// error messages, e.g. "Client".
func findByIDOrRespond(c *gin.Context, db *gorm.DB, dst interface{}, id uint, what string) bool {
	if err := db.First(dst, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: what + " not found", Err: err})
			return false
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve " + strings.ToLower(what), Err: err})
		return false
	}
	return true
}

// listResponse is the common shape of paginated lists.
func listResponse(key string, items interface{}, total int64, page, limit, fetched int) map[string]interface{} {
	return map[string]interface{}{
		key:             items,
		"total":         total,
		"total_fetched": fetched,
		"page":          page,
		"limit":         limit,
	}
}

// orderDirection only lets asc/desc through.
func orderDirection(dir string) string {
	if strings.ToLower(dir) == "desc" {
		return "DESC"
	}
	return "ASC"
}

func boolValue(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// parseUintQuery returns 0 for a missing or malformed value.
func parseUintQuery(c *gin.Context, name string) uint {
	v, _ := util.ParseUintParam(c.Query(name))
	return v
}

// idCursor pages by ascending id. After wins over Offset when both are set.
type idCursor struct {
	Limit  int
	After  uint
	Offset int
}

// parseIDCursor reads limit (default 10, max 100), cursor and offset. Bad
// values fall back to the defaults.
func parseIDCursor(c *gin.Context) idCursor {
	p := idCursor{Limit: 10, After: parseUintQuery(c, "cursor")}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		p.Limit = min(n, 100)
	}
	if n, err := strconv.Atoi(c.Query("offset")); err == nil && n > 0 {
		p.Offset = n
	}
	return p
}

// apply fetches one row past Limit so trimCursorPage can tell whether more remain.
func (p idCursor) apply(db *gorm.DB) *gorm.DB {
	switch {
	case p.After > 0:
		db = db.Where("id > ?", p.After)
	case p.Offset > 0:
		db = db.Offset(p.Offset)
	}
	return db.Order("id ASC").Limit(p.Limit + 1)
}

// trimCursorPage drops the look-ahead row and returns the next cursor, nil on the last page.
func trimCursorPage[T any](rows []T, limit int, id func(T) uint) ([]T, *uint) {
	if len(rows) <= limit {
		return rows, nil
	}
	rows = rows[:limit]
	next := id(rows[limit-1])
	return rows, &next
}
