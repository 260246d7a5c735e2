package util

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Msg     string      `json:"msg"`
	Data    interface{} `json:"data"`
}

type APIErrorParams struct {
	Msg string
	Err error
	// Data is optional extra context for the client, such as conflicting items.
	Data interface{}
}

type APISuccessParams struct {
	Msg  string
	Data interface{}
}

// Contains function is to check item whether is exist or not in a list and will return bool
func Contains(d string, dl []string) bool {
	for _, v := range dl {
		if v == d {
			return true
		}
	}
	return false
}

func callError(c *gin.Context, status int, params APIErrorParams) {
	errMsg := ""
	if params.Err != nil {
		errMsg = params.Err.Error()
	}
	data := params.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	c.JSON(status, APIResponse{
		Success: false,
		Error:   errMsg,
		Msg:     params.Msg,
		Data:    data,
	})
}

// CallErrorNotFound is for return API response not found
func CallErrorNotFound(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusNotFound, params)
}

// CallUserError is for return error from user side
func CallUserError(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusBadRequest, params)
}

// CallServerError is for return API response server error
func CallServerError(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusInternalServerError, params)
}

// CallUserNotAuthorized is for return API response with status code 401
func CallUserNotAuthorized(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusUnauthorized, params)
}

// CallForbidden answers 403 for authenticated users lacking the required role.
func CallForbidden(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusForbidden, params)
}

// CallConflict answers 409, e.g. for a taken slot or a restricted treatment.
func CallConflict(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusConflict, params)
}

// CallTooManyRequests answers 429.
func CallTooManyRequests(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusTooManyRequests, params)
}

// CallServiceUnavailable answers 503 when an optional backend is not configured.
func CallServiceUnavailable(c *gin.Context, params APIErrorParams) {
	callError(c, http.StatusServiceUnavailable, params)
}

// CallSuccessOK is for return API response with status code 200, you need to specify msg, and data as function parameter
func CallSuccessOK(c *gin.Context, params APISuccessParams) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Msg:     params.Msg,
		Data:    params.Data,
	})
}

// CallCreated is CallSuccessOK with status 201.
func CallCreated(c *gin.Context, params APISuccessParams) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Msg:     params.Msg,
		Data:    params.Data,
	})
}

// NormalizeName normalizes a name by trimming leading/trailing whitespace
// and collapsing multiple internal spaces into single spaces.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// SplitCSV splits a comma separated column into trimmed, non-empty values.
func SplitCSV(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinCSV trims, drops empty and duplicate values and joins the rest with commas.
func JoinCSV(values []string) string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return strings.Join(out, ",")
}

// SplitCSVUint parses a comma separated list of ids, skipping anything that is not a positive integer.
func SplitCSVUint(s string) []uint {
	out := []uint{}
	for _, part := range SplitCSV(s) {
		if v, err := strconv.ParseUint(part, 10, 64); err == nil && v > 0 {
			out = append(out, uint(v))
		}
	}
	return out
}

// JoinCSVUint is the inverse of SplitCSVUint.
func JoinCSVUint(ids []uint) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			parts = append(parts, strconv.FormatUint(uint64(id), 10))
		}
	}
	return JoinCSV(parts)
}

// Intersect returns the values of a that also appear in b, in a's order.
func Intersect(a, b []string) []string {
	out := []string{}
	for _, v := range a {
		if Contains(v, b) && !Contains(v, out) {
			out = append(out, v)
		}
	}
	return out
}

// ParseUintParam parses a positive integer path or query value.
func ParseUintParam(s string) (uint, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// Pagination reads page/limit query values with defaults 1 and 20 and a max limit of 100.
func Pagination(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}
