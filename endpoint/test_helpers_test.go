package endpoint_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/router"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const testAPIToken = "test-api-token"

// frozenClinic is the default clinic with its clock stopped on Monday 2026-03-02 08:00.
func frozenClinic() *config.ClinicConfig {
	clinic := config.DefaultClinicConfig()
	clinic.Clock = func() time.Time {
		return time.Date(2026, time.March, 2, 8, 0, 0, 0, clinic.Location())
	}
	return clinic
}

// SetupTestServer initializes DB, migrates models, seeds roles and returns the
// full application router. Tables are dropped when the test ends.
func SetupTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := config.ConnectMySQL()
	if err != nil {
		t.Fatalf("failed to connect test DB: %v", err)
	}

	models := model.All()
	t.Cleanup(func() {
		if err := db.Migrator().DropTable(models...); err != nil {
			t.Errorf("failed to drop tables during cleanup: %v", err)
		}
	})
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	if err := model.SeedRoles(db); err != nil {
		t.Fatalf("seeding roles failed: %v", err)
	}

	r := router.SetupRouter(db, frozenClinic(), router.Options{
		AuthLimit: middleware.RateLimitConfig{Limit: 1000, Window: time.Minute},
	})
	return r, db
}

type SignupCreds struct {
	Name     string
	Email    string
	Password string
}

func headers(session string) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + testAPIToken}
	if session != "" {
		h["session-token"] = session
	}
	return h
}

// SignupClient registers a client account through /signup.
func SignupClient(t *testing.T, r http.Handler, creds SignupCreds) {
	t.Helper()
	b, _ := json.Marshal(map[string]string{"name": creds.Name, "email": creds.Email, "password": creds.Password})
	rr, err := doRequest(r, requestParams{method: "POST", path: "/signup", body: b, headers: headers("")})
	if err != nil {
		t.Fatalf("signup %s failed: %v", creds.Email, err)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("signup %s returned non-200: %d %s", creds.Email, rr.Code, rr.Body.String())
	}
}

// SeedAccount stores a user with roleID directly, the way the seed-admin command does.
func SeedAccount(t *testing.T, db *gorm.DB, creds SignupCreds, roleID uint32) model.User {
	t.Helper()
	salt, err := util.GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	hash, err := util.HashPasswordArgon2(creds.Password, salt)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := model.User{Name: creds.Name, Email: creds.Email, Password: hash, PasswordSalt: salt, RoleID: roleID}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", creds.Email, err)
	}
	return user
}

type loginData struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	UserID   uint   `json:"user_id"`
	ClientID uint   `json:"client_id"`
}

// Login signs in and returns the login payload. It fails the test on error.
func Login(t *testing.T, r http.Handler, email, password string) loginData {
	t.Helper()
	b, _ := json.Marshal(map[string]string{"email": email, "password": password})
	rr, err := doRequest(r, requestParams{method: "POST", path: "/login", body: b, headers: headers("")})
	if err != nil {
		t.Fatalf("login %s failed: %v", email, err)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s returned non-200: %d %s", email, rr.Code, rr.Body.String())
	}
	var data loginData
	if err := json.Unmarshal(ParseAPIResp(t, rr).Data, &data); err != nil {
		t.Fatalf("parse login data failed: %v", err)
	}
	if data.Token == "" {
		t.Fatalf("login %s returned empty token", email)
	}
	return data
}

// CreateAndLoginUser signs up a client and logs in, returning session token and user id.
func CreateAndLoginUser(t *testing.T, r http.Handler, creds SignupCreds) (string, uint) {
	t.Helper()
	SignupClient(t, r, creds)
	data := Login(t, r, creds.Email, creds.Password)
	return data.Token, data.UserID
}

// SetupServerWithAdmin initializes the server and returns a logged-in admin session.
func SetupServerWithAdmin(t *testing.T) (*gin.Engine, *gorm.DB, string) {
	t.Helper()
	r, db := SetupTestServer(t)
	SeedAccount(t, db, SignupCreds{Name: "Admin User", Email: "admin@example.com", Password: "adminpass"}, model.RoleAdmin)
	return r, db, Login(t, r, "admin@example.com", "adminpass").Token
}

// ParseAPIResp decodes a standard API response from a ResponseRecorder.
// It fails the test on decoding error.
func ParseAPIResp(t *testing.T, rr *httptest.ResponseRecorder) apiResp {
	t.Helper()
	var resp apiResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v; body: %s", err, rr.Body.String())
	}
	return resp
}

// ParseDataToMap unmarshals an API response Data field into a map[string]interface{}.
func ParseDataToMap(t *testing.T, raw json.RawMessage) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("parse data failed: %v", err)
	}
	return data
}

// ListUsersData performs a GET /user request with optional query string and
// returns the decoded response data.
func ListUsersData(t *testing.T, r http.Handler, adminToken string, query string) map[string]interface{} {
	t.Helper()
	path := "/user"
	if query != "" {
		path += "?" + query
	}
	rr, err := doRequest(r, requestParams{method: "GET", path: path, headers: headers(adminToken)})
	if err != nil {
		t.Fatalf("list users request failed: %v", err)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("list users returned non-200: %d %s", rr.Code, rr.Body.String())
	}
	return ParseDataToMap(t, ParseAPIResp(t, rr).Data)
}

func AssertTotal(t *testing.T, data map[string]interface{}, want int) {
	t.Helper()
	if got := int(data["total"].(float64)); got != want {
		t.Errorf("expected total %d, got %d", want, got)
	}
}

func AssertTotalFetched(t *testing.T, data map[string]interface{}, want int) {
	t.Helper()
	if got := int(data["total_fetched"].(float64)); got != want {
		t.Errorf("expected total_fetched %d, got %d", want, got)
	}
}

// EmailUpdateRequest groups parameters for email update requests.
type EmailUpdateRequest struct {
	Token string // Session token
	Path  string // Endpoint path (defaults to /user if empty)
	Email string // New email address
}

// PatchUserEmail sends a PATCH request to update a user's email.
func PatchUserEmail(t *testing.T, r http.Handler, req EmailUpdateRequest) *httptest.ResponseRecorder {
	t.Helper()
	path := req.Path
	if path == "" {
		path = "/user"
	}
	b, _ := json.Marshal(map[string]string{"email": req.Email})
	rr, err := doRequest(r, requestParams{method: "PATCH", path: path, body: b, headers: headers(req.Token)})
	if err != nil {
		t.Fatalf("email update failed: %v", err)
	}
	return rr
}

// AssertUserEmail verifies the user's email in the database.
func AssertUserEmail(t *testing.T, db *gorm.DB, userID uint, want string) {
	t.Helper()
	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("failed to query user: %v", err)
	}
	if user.Email != want {
		t.Fatalf("expected email to be %s; got %s", want, user.Email)
	}
}
