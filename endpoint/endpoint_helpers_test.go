package endpoint

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/notify"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Monday 2026-03-02 08:00 in the clinic time zone.
var testNow = func(loc *time.Location) time.Time {
	return time.Date(2026, time.March, 2, 8, 0, 0, 0, loc)
}

const (
	testToday    = "2026-03-02"
	testTomorrow = "2026-03-03"
)

// setupEndpointTestDB initializes a test database with every model migrated
// and the roles seeded. Tables are dropped when the test ends.
func setupEndpointTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	t.Setenv("APPENV", "test")
	t.Setenv("JWTSECRET", "test-secret-123")
	util.SetJWTSecret("test-secret-123")

	db, err := config.ConnectMySQL()
	require.NoError(t, err, "failed to connect test DB")

	models := model.All()
	require.NoError(t, db.AutoMigrate(models...), "auto migrate failed")
	for _, m := range models {
		db.Unscoped().Where("1 = 1").Delete(m)
	}
	require.NoError(t, model.SeedRoles(db))

	t.Cleanup(func() {
		for _, m := range models {
			_ = db.Migrator().DropTable(m)
		}
	})

	return db
}

// testClinic is the default clinic frozen at testNow.
func testClinic() *config.ClinicConfig {
	clinic := config.DefaultClinicConfig()
	clinic.Clock = func() time.Time { return testNow(clinic.Location()) }
	return clinic
}

// setupEndpointTest returns a Gin engine and database connection configured for endpoint tests.
// Requests see the frozen test clinic.
func setupEndpointTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupEndpointTestDB(t)
	r := gin.New()
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.ClinicMiddleware(testClinic()))
	return r, db
}

// asUser pretends the request was authenticated as userID with roleID.
func asUser(userID uint, roleID uint32) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.RoleIDKey, roleID)
		c.Next()
	}
}

// recordEvents swaps the package publisher for a recorder until the test ends.
func recordEvents(t *testing.T) *notify.Recorder {
	t.Helper()
	rec := &notify.Recorder{}
	notify.SetPublisher(rec)
	t.Cleanup(func() { notify.SetPublisher(nil) })
	return rec
}

// newTestRouter returns a new Gin engine configured for tests.
// Use this for tests that don't need a DB injected.
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// assertStatus asserts that the response HTTP status code matches the expected value
func assertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, w.Code, w.Body.String())
}

// assertSuccessResponse asserts that the response indicates success with HTTP 200
func assertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder, response map[string]interface{}) {
	t.Helper()
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	if response == nil {
		return
	}
	if success, ok := response["success"].(bool); ok {
		assert.True(t, success)
	}
}

func dataMap(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", response)
	return data
}

func seedCondition(t *testing.T, db *gorm.DB, codename, name string) model.MedicalCondition {
	t.Helper()
	mc := model.MedicalCondition{Codename: codename, Name: name}
	require.NoError(t, db.Create(&mc).Error)
	return mc
}

type clientSeed struct {
	Name       string
	Email      string
	Conditions string
	UserID     *uint
	Inactive   bool
}

func seedClient(t *testing.T, db *gorm.DB, s clientSeed) model.Client {
	t.Helper()
	if s.Name == "" {
		s.Name = "María López"
	}
	code, err := nextClientCode(db, s.Name)
	require.NoError(t, err)
	c := model.Client{
		UserID:            s.UserID,
		ClientCode:        code,
		FullName:          s.Name,
		Email:             s.Email,
		MedicalConditions: s.Conditions,
		IsActive:          true,
	}
	require.NoError(t, db.Create(&c).Error)
	if s.Inactive {
		require.NoError(t, db.Model(&c).Update("is_active", false).Error)
		c.IsActive = false
	}
	return c
}

func seedProfessional(t *testing.T, db *gorm.DB, name, treatmentIDs string) model.Professional {
	t.Helper()
	p := model.Professional{FullName: name, TreatmentIDs: treatmentIDs, IsActive: true}
	require.NoError(t, db.Create(&p).Error)
	return p
}

type treatmentSeed struct {
	Name         string
	Minutes      int
	Price        float64
	Restrictions string
	Category     string
	Inactive     bool
}

func seedTreatment(t *testing.T, db *gorm.DB, s treatmentSeed) model.Treatment {
	t.Helper()
	if s.Minutes == 0 {
		s.Minutes = 60
	}
	tr := model.Treatment{
		Name:            s.Name,
		DurationMinutes: s.Minutes,
		Price:           s.Price,
		Restrictions:    s.Restrictions,
		Category:        s.Category,
		IsActive:        true,
	}
	require.NoError(t, db.Create(&tr).Error)
	if s.Inactive {
		require.NoError(t, db.Model(&tr).Update("is_active", false).Error)
		tr.IsActive = false
	}
	return tr
}

func seedAppointment(t *testing.T, db *gorm.DB, a model.Appointment) model.Appointment {
	t.Helper()
	if a.Status == "" {
		a.Status = model.StatusScheduled
	}
	require.NoError(t, db.Create(&a).Error)
	return a
}

func seedUser(t *testing.T, db *gorm.DB, email string, roleID uint32) model.User {
	t.Helper()
	u := model.User{Name: "Test User", Email: email, Password: "hash", RoleID: roleID}
	require.NoError(t, db.Create(&u).Error)
	return u
}
