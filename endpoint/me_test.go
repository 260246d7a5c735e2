package endpoint

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/notify"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type meFixture struct {
	r      *gin.Engine
	db     *gorm.DB
	user   model.User
	client model.Client
	prof   model.Professional
	events *notify.Recorder
}

// newMeFixture signs in as a client user whose profile has the pregnancy condition.
func newMeFixture(t *testing.T) *meFixture {
	r, db := setupEndpointTest(t)
	seedCondition(t, db, "pregnancy", "Embarazo")
	user := seedUser(t, db, "maria@example.com", model.RoleClient)
	f := &meFixture{
		r:      r,
		db:     db,
		user:   user,
		client: seedClient(t, db, clientSeed{Name: "María López", Email: user.Email, Conditions: "pregnancy", UserID: &user.ID}),
		prof:   seedProfessional(t, db, "Ana Torres", ""),
		events: recordEvents(t),
	}

	me := r.Group("/me", asUser(user.ID, model.RoleClient))
	me.GET("/client", GetMyClient)
	me.PATCH("/client", UpdateMyClient)
	me.GET("/appointments", ListMyAppointments)
	me.GET("/dashboard", MyDashboard)
	me.POST("/appointment", BookMyAppointment)
	me.PATCH("/appointment/:id/cancel", CancelMyAppointment)
	me.POST("/review", CreateMyReview)
	return f
}

func (f *meFixture) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	w, response, err := performRequest(f.r, requestSpec{method: method, requestPath: path, body: body})
	require.NoError(t, err)
	return w.Code, response
}

func (f *meFixture) appointment(t *testing.T, treatmentID uint, date, start, end string, status model.AppointmentStatus) model.Appointment {
	return seedAppointment(t, f.db, model.Appointment{
		ClientID: f.client.ID, ProfessionalID: f.prof.ID, TreatmentID: treatmentID,
		Date: date, StartTime: start, EndTime: end, Status: status, Price: 20000,
	})
}

func TestMyClientProfile(t *testing.T) {
	f := newMeFixture(t)

	code, response := f.do(t, http.MethodGet, "/me/client", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "María López", dataMap(t, response)["full_name"])

	code, response = f.do(t, http.MethodPatch, "/me/client", map[string]interface{}{
		"phone_number":       " 3515551234 ",
		"medical_conditions": []string{},
		"allergies":          []string{"lidocaine"},
		"notes":              "VIP",
		"client_code":        "Z9",
		"is_active":          false,
	})
	require.Equal(t, http.StatusOK, code, response)
	data := dataMap(t, response)
	assert.Equal(t, "3515551234", data["phone_number"])
	assert.Equal(t, "", data["medical_conditions"])
	assert.Equal(t, "lidocaine", data["allergies"])
	assert.Equal(t, "", data["notes"], "notes are managed by the clinic")
	assert.Equal(t, true, data["is_active"])
	assert.NotEqual(t, "Z9", data["client_code"])

	code, _ = f.do(t, http.MethodPatch, "/me/client", map[string]interface{}{"medical_conditions": []string{"asthma"}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMyClientProfile_NotLinked(t *testing.T) {
	r, db := setupEndpointTest(t)
	user := seedUser(t, db, "nobody@example.com", model.RoleClient)
	r.GET("/me/client", asUser(user.ID, model.RoleClient), GetMyClient)

	w, response, err := performRequest(r, requestSpec{method: http.MethodGet, requestPath: "/me/client"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Client profile not found", response["msg"])
}

func TestBookMyAppointment(t *testing.T) {
	f := newMeFixture(t)
	facial := seedTreatment(t, f.db, treatmentSeed{Name: "Limpieza facial", Price: 25000})
	laser := seedTreatment(t, f.db, treatmentSeed{Name: "Láser", Restrictions: "pregnancy"})
	other := seedClient(t, f.db, clientSeed{Name: "Otra Clienta"})

	code, response := f.do(t, http.MethodPost, "/me/appointment", map[string]interface{}{
		"client_id":       other.ID,
		"professional_id": f.prof.ID,
		"treatment_id":    facial.ID,
		"date":            testTomorrow,
		"start_time":      "10:00",
	})
	require.Equal(t, http.StatusCreated, code, response)
	data := dataMap(t, response)
	assert.EqualValues(t, f.client.ID, data["client_id"], "bookings are always for the signed in client")
	assert.Equal(t, "11:00", data["end_time"])
	assert.EqualValues(t, 25000, data["price"])

	code, response = f.do(t, http.MethodPost, "/me/appointment", map[string]interface{}{
		"professional_id":       f.prof.ID,
		"treatment_id":          laser.ID,
		"date":                  testTomorrow,
		"start_time":            "14:00",
		"override_restrictions": true,
	})
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, []interface{}{"pregnancy"}, dataMap(t, response)["conditions"])

	code, _ = f.do(t, http.MethodPost, "/me/appointment", map[string]interface{}{
		"professional_id": f.prof.ID,
		"treatment_id":    facial.ID,
		"date":            testTomorrow,
		"start_time":      "10:30",
	})
	assert.Equal(t, http.StatusConflict, code, "client already busy")

	created := 0
	for _, e := range f.events.Events() {
		if e.Type == notify.EventCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestCancelMyAppointment(t *testing.T) {
	f := newMeFixture(t)
	tr := seedTreatment(t, f.db, treatmentSeed{Name: "Peeling"})
	tomorrow := f.appointment(t, tr.ID, testTomorrow, "10:00", "11:00", model.StatusConfirmed)
	later := f.appointment(t, tr.ID, testToday, "15:00", "16:00", model.StatusScheduled)
	done := f.appointment(t, tr.ID, "2026-02-20", "10:00", "11:00", model.StatusCompleted)
	foreign := seedAppointment(t, f.db, model.Appointment{
		ClientID: seedClient(t, f.db, clientSeed{Name: "Otra"}).ID, ProfessionalID: f.prof.ID, TreatmentID: tr.ID,
		Date: "2026-03-05", StartTime: "10:00", EndTime: "11:00",
	})

	code, response := f.do(t, http.MethodPatch, fmt.Sprintf("/me/appointment/%d/cancel", tomorrow.ID), map[string]string{"reason": "Viaje"})
	require.Equal(t, http.StatusOK, code, response)
	data := dataMap(t, response)
	assert.Equal(t, "cancelled", data["status"])
	assert.Equal(t, "Viaje", data["cancellation_reason"])

	events := f.events.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, notify.EventCancelled, events[len(events)-1].Type)

	tests := []struct {
		name string
		id   uint
		code int
	}{
		{"inside the notice period", later.ID, http.StatusConflict},
		{"already completed", done.ID, http.StatusConflict},
		{"already cancelled", tomorrow.ID, http.StatusConflict},
		{"another client's appointment", foreign.ID, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := f.do(t, http.MethodPatch, fmt.Sprintf("/me/appointment/%d/cancel", tt.id), nil)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestListMyAppointments(t *testing.T) {
	f := newMeFixture(t)
	tr := seedTreatment(t, f.db, treatmentSeed{Name: "Peeling"})
	f.appointment(t, tr.ID, testTomorrow, "10:00", "11:00", model.StatusScheduled)
	f.appointment(t, tr.ID, "2026-03-10", "10:00", "11:00", model.StatusCancelled)
	f.appointment(t, tr.ID, "2026-02-20", "10:00", "11:00", model.StatusCompleted)
	f.appointment(t, tr.ID, "2026-02-10", "10:00", "11:00", model.StatusNoShow)

	tests := []struct {
		query string
		total int
		first string
	}{
		{"", 4, "2026-03-10"},
		{"?scope=upcoming", 1, testTomorrow},
		{"?scope=past", 3, "2026-03-10"},
		{"?status=completed", 1, "2026-02-20"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			code, response := f.do(t, http.MethodGet, "/me/appointments"+tt.query, nil)
			require.Equal(t, http.StatusOK, code, response)
			data := dataMap(t, response)
			assert.EqualValues(t, tt.total, data["total"])
			rows := data["appointments"].([]interface{})
			require.NotEmpty(t, rows)
			assert.Equal(t, tt.first, rows[0].(map[string]interface{})["date"])
			assert.Equal(t, "Peeling", rows[0].(map[string]interface{})["treatment_name"])
		})
	}

	code, _ := f.do(t, http.MethodGet, "/me/appointments?scope=soon", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListMyAppointments_Today(t *testing.T) {
	f := newMeFixture(t)
	tr := seedTreatment(t, f.db, treatmentSeed{Name: "Peeling"})
	started := f.appointment(t, tr.ID, testToday, "07:00", "07:30", model.StatusScheduled)
	later := f.appointment(t, tr.ID, testToday, "10:00", "11:00", model.StatusConfirmed)
	completed := f.appointment(t, tr.ID, testToday, "11:00", "12:00", model.StatusCompleted)
	cancelled := f.appointment(t, tr.ID, testToday, "12:00", "13:00", model.StatusCancelled)
	noShow := f.appointment(t, tr.ID, testToday, "13:00", "14:00", model.StatusNoShow)

	ids := func(scope string) []uint {
		code, response := f.do(t, http.MethodGet, "/me/appointments?scope="+scope, nil)
		require.Equal(t, http.StatusOK, code, response)
		var out []uint
		for _, row := range dataMap(t, response)["appointments"].([]interface{}) {
			out = append(out, uint(row.(map[string]interface{})["ID"].(float64)))
		}
		return out
	}

	assert.Equal(t, []uint{later.ID}, ids("upcoming"))
	assert.ElementsMatch(t, []uint{started.ID, completed.ID, cancelled.ID, noShow.ID}, ids("past"))
}

func TestMyDashboard(t *testing.T) {
	f := newMeFixture(t)
	tr := seedTreatment(t, f.db, treatmentSeed{Name: "Peeling"})
	f.appointment(t, tr.ID, testToday, "07:00", "07:30", model.StatusScheduled)
	next := f.appointment(t, tr.ID, testTomorrow, "10:00", "11:00", model.StatusConfirmed)
	f.appointment(t, tr.ID, "2026-03-05", "10:00", "11:00", model.StatusScheduled)
	done := f.appointment(t, tr.ID, "2026-02-20", "10:00", "11:00", model.StatusCompleted)
	reviewed := f.appointment(t, tr.ID, "2026-02-10", "10:00", "11:00", model.StatusCompleted)
	require.NoError(t, f.db.Create(&model.Review{
		AppointmentID: reviewed.ID, ClientID: f.client.ID, ProfessionalID: f.prof.ID, Rating: 5, Status: model.ReviewApproved,
	}).Error)

	code, response := f.do(t, http.MethodGet, "/me/dashboard", nil)
	require.Equal(t, http.StatusOK, code, response)
	data := dataMap(t, response)

	nextAppt := data["next_appointment"].(map[string]interface{})
	assert.EqualValues(t, next.ID, nextAppt["ID"], "an appointment earlier today has already started")
	assert.Equal(t, "Ana Torres", nextAppt["professional_name"])

	stats := data["stats"].(map[string]interface{})
	assert.EqualValues(t, 5, stats["total"])
	assert.EqualValues(t, 2, stats["completed"])
	assert.EqualValues(t, 40000, stats["total_spent"])

	pending := data["pending_reviews"].([]interface{})
	require.Len(t, pending, 1)
	assert.EqualValues(t, done.ID, pending[0].(map[string]interface{})["ID"])
}
