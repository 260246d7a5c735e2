package endpoint

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCodeInitial(t *testing.T) {
	tests := map[string]string{
		"María López":   "M",
		"  ángela Ruiz": "A",
		"Óscar":         "O",
		"ñandú":         "N",
		"123 Clinic":    "X",
		"":              "X",
		"Ωmega":         "X",
	}
	for name, want := range tests {
		assert.Equal(t, want, codeInitial(name), name)
	}
}

func TestNextClientCode(t *testing.T) {
	db := setupEndpointTestDB(t)

	code, err := nextClientCode(db, "María López")
	require.NoError(t, err)
	assert.Equal(t, "M1", code)

	code, err = nextClientCode(db, "Marta Gómez")
	require.NoError(t, err)
	assert.Equal(t, "M2", code)

	// a manually assigned M3 is skipped
	require.NoError(t, db.Create(&model.Client{FullName: "Manual", ClientCode: "M3", IsActive: true}).Error)
	code, err = nextClientCode(db, "Mirta Sosa")
	require.NoError(t, err)
	assert.Equal(t, "M4", code)

	code, err = nextClientCode(db, "Ángela Ruiz")
	require.NoError(t, err)
	assert.Equal(t, "A1", code)

	// codes of deleted clients stay reserved
	deleted := model.Client{FullName: "Mónica Paz", ClientCode: "M5"}
	require.NoError(t, db.Create(&deleted).Error)
	require.NoError(t, db.Delete(&deleted).Error)
	code, err = nextClientCode(db, "Mónica Ríos")
	require.NoError(t, err)
	assert.Equal(t, "M6", code)

	var counters int64
	db.Model(&model.ClientCode{}).Count(&counters)
	assert.EqualValues(t, 2, counters)
}

func TestClientCodeIsUnique(t *testing.T) {
	db := setupEndpointTestDB(t)
	require.NoError(t, db.Create(&model.Client{FullName: "María López", ClientCode: "M1"}).Error)

	err := db.Create(&model.Client{FullName: "Marta Gómez", ClientCode: "M1"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// the counter row is created once per initial
	err = db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 3; i++ {
			if _, err := nextClientCode(tx, "Ana Gómez"); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	var counter model.ClientCode
	require.NoError(t, db.Where("alphabet = ?", "A").First(&counter).Error)
	assert.Equal(t, 3, counter.Number)
	assert.Equal(t, "A3", counter.Code)
}

func TestNormalizeCodenames(t *testing.T) {
	assert.Equal(t, []string{"pregnancy", "diabetes"}, normalizeCodenames([]string{" Pregnancy", "diabetes", "", "PREGNANCY"}))
	assert.Empty(t, normalizeCodenames(nil))
}

func TestApplyClientProfile(t *testing.T) {
	client := model.Client{FullName: "María López", MedicalConditions: "diabetes", Allergies: "latex"}

	applyClientProfile(&client, model.ClientRequest{PhoneNumber: " 3515551234 ", Allergies: []string{}})
	assert.Equal(t, "María López", client.FullName)
	assert.Equal(t, "3515551234", client.PhoneNumber)
	assert.Equal(t, "diabetes", client.MedicalConditions, "nil slice keeps the value")
	assert.Equal(t, "", client.Allergies, "empty slice clears the value")
}

func clientRouter(t *testing.T) (*gin.Engine, func(method, path string, body interface{}) (int, map[string]interface{})) {
	r, db := setupEndpointTest(t)
	seedCondition(t, db, "pregnancy", "Embarazo")
	seedCondition(t, db, "diabetes", "Diabetes")

	admin := asUser(1, model.RoleAdmin)
	r.GET("/client", admin, ListClients)
	r.POST("/client", admin, CreateClient)
	r.GET("/client/:id", admin, GetClient)
	r.PATCH("/client/:id", admin, UpdateClient)
	r.DELETE("/client/:id", admin, DeleteClient)
	r.GET("/client/:id/history", admin, GetClientHistory)

	do := func(method, path string, body interface{}) (int, map[string]interface{}) {
		w, response, err := performRequest(r, requestSpec{method: method, requestPath: path, body: body})
		require.NoError(t, err)
		return w.Code, response
	}
	return r, do
}

func TestCreateClient(t *testing.T) {
	_, do := clientRouter(t)

	code, response := do(http.MethodPost, "/client", map[string]interface{}{
		"full_name":          "  María   López ",
		"email":              "Maria@Example.com",
		"medical_conditions": []string{"Pregnancy", "diabetes"},
		"allergies":          []string{"lidocaine"},
	})
	require.Equal(t, http.StatusCreated, code, response)
	data := dataMap(t, response)
	assert.Equal(t, "María López", data["full_name"])
	assert.Equal(t, "maria@example.com", data["email"])
	assert.Equal(t, "M1", data["client_code"])
	assert.Equal(t, "pregnancy,diabetes", data["medical_conditions"])
	assert.Equal(t, true, data["is_active"])

	code, _ = do(http.MethodPost, "/client", map[string]interface{}{"full_name": "Otra María", "email": "maria@example.com"})
	assert.Equal(t, http.StatusConflict, code, "duplicate email")

	code, _ = do(http.MethodPost, "/client", map[string]interface{}{"full_name": "Manual", "client_code": "m1"})
	assert.Equal(t, http.StatusConflict, code, "duplicate code")

	code, response = do(http.MethodPost, "/client", map[string]interface{}{"full_name": "Lucía", "medical_conditions": []string{"asthma"}})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []interface{}{"asthma"}, dataMap(t, response)["unknown"])

	code, _ = do(http.MethodPost, "/client", map[string]interface{}{"full_name": "   "})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(http.MethodPost, "/client", map[string]interface{}{"full_name": "Lucía", "date_of_birth": "21/04/1990"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUpdateClient(t *testing.T) {
	_, do := clientRouter(t)
	_, created := do(http.MethodPost, "/client", map[string]interface{}{"full_name": "María López", "medical_conditions": []string{"diabetes"}})
	id := uint(dataMap(t, created)["ID"].(float64))
	_, _ = do(http.MethodPost, "/client", map[string]interface{}{"full_name": "Mirta Sosa"})
	path := fmt.Sprintf("/client/%d", id)

	code, response := do(http.MethodPatch, path, map[string]interface{}{"phone_number": "3515550000", "is_active": false})
	require.Equal(t, http.StatusOK, code, response)
	data := dataMap(t, response)
	assert.Equal(t, "3515550000", data["phone_number"])
	assert.Equal(t, "diabetes", data["medical_conditions"])
	assert.Equal(t, false, data["is_active"])

	code, response = do(http.MethodPatch, path, map[string]interface{}{"medical_conditions": []string{}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "", dataMap(t, response)["medical_conditions"])

	code, _ = do(http.MethodPatch, path, map[string]interface{}{"client_code": "M2"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(http.MethodPatch, "/client/999", map[string]interface{}{"phone_number": "1"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListClients(t *testing.T) {
	_, do := clientRouter(t)
	for _, name := range []string{"María López", "Lucía Pérez", "Ana Gómez"} {
		code, response := do(http.MethodPost, "/client", map[string]interface{}{"full_name": name})
		require.Equal(t, http.StatusCreated, code, response)
	}
	_, _ = do(http.MethodPost, "/client", map[string]interface{}{"full_name": "Inés Díaz", "is_active": false})

	tests := []struct {
		query string
		total int
		first string
	}{
		{"", 4, ""},
		{"keyword=G%C3%B3mez", 1, "Ana Gómez"},
		{"keyword=L1", 1, "Lucía Pérez"},
		{"active=false", 1, "Inés Díaz"},
		{"active=true&sort=full_name", 3, "Ana Gómez"},
		{"sort=client_code&sort_dir=desc", 4, "María López"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			code, response := do(http.MethodGet, "/client?"+tt.query, nil)
			require.Equal(t, http.StatusOK, code)
			data := dataMap(t, response)
			assert.EqualValues(t, tt.total, data["total"])
			if tt.first != "" {
				first := data["clients"].([]interface{})[0].(map[string]interface{})
				assert.Equal(t, tt.first, first["full_name"])
			}
		})
	}
}

func TestDeleteClient(t *testing.T) {
	r, db := setupEndpointTest(t)
	admin := asUser(1, model.RoleAdmin)
	r.DELETE("/client/:id", admin, DeleteClient)
	r.GET("/client/:id", admin, GetClient)

	busy := seedClient(t, db, clientSeed{Name: "Con Turno"})
	free := seedClient(t, db, clientSeed{Name: "Sin Turno"})
	prof := seedProfessional(t, db, "Ana Torres", "")
	tr := seedTreatment(t, db, treatmentSeed{Name: "Peeling"})
	seedAppointment(t, db, model.Appointment{ClientID: busy.ID, ProfessionalID: prof.ID, TreatmentID: tr.ID, Date: testTomorrow, StartTime: "10:00", EndTime: "11:00"})
	// past and cancelled appointments do not block
	seedAppointment(t, db, model.Appointment{ClientID: free.ID, ProfessionalID: prof.ID, TreatmentID: tr.ID, Date: "2026-02-10", StartTime: "10:00", EndTime: "11:00", Status: model.StatusCompleted})
	seedAppointment(t, db, model.Appointment{ClientID: free.ID, ProfessionalID: prof.ID, TreatmentID: tr.ID, Date: testTomorrow, StartTime: "12:00", EndTime: "13:00", Status: model.StatusCancelled})

	w, response, err := performRequest(r, requestSpec{method: http.MethodDelete, requestPath: fmt.Sprintf("/client/%d", busy.ID)})
	require.NoError(t, err)
	assertStatus(t, w, http.StatusConflict)
	assert.EqualValues(t, 1, dataMap(t, response)["upcoming"])

	w, _, err = performRequest(r, requestSpec{method: http.MethodDelete, requestPath: fmt.Sprintf("/client/%d", free.ID)})
	require.NoError(t, err)
	assertStatus(t, w, http.StatusOK)

	w, _, _ = performRequest(r, requestSpec{method: http.MethodGet, requestPath: fmt.Sprintf("/client/%d", free.ID)})
	assertStatus(t, w, http.StatusNotFound)
}

func TestGetClientHistory(t *testing.T) {
	r, db := setupEndpointTest(t)
	r.GET("/client/:id/history", asUser(1, model.RoleAdmin), GetClientHistory)

	client := seedClient(t, db, clientSeed{Name: "María López"})
	prof := seedProfessional(t, db, "Ana Torres", "")
	tr := seedTreatment(t, db, treatmentSeed{Name: "Peeling"})
	for _, a := range []model.Appointment{
		{Date: "2026-01-10", Status: model.StatusCompleted, Price: 20000},
		{Date: "2026-02-10", Status: model.StatusCompleted, Price: 22000},
		{Date: "2026-02-20", Status: model.StatusNoShow, Price: 22000},
		{Date: "2026-02-25", Status: model.StatusCancelled, Price: 22000},
		{Date: testTomorrow, Status: model.StatusConfirmed, Price: 25000},
	} {
		a.ClientID, a.ProfessionalID, a.TreatmentID = client.ID, prof.ID, tr.ID
		a.StartTime, a.EndTime = "10:00", "11:00"
		seedAppointment(t, db, a)
	}

	w, response, err := performRequest(r, requestSpec{method: http.MethodGet, requestPath: fmt.Sprintf("/client/%d/history", client.ID)})
	require.NoError(t, err)
	assertSuccessResponse(t, w, response)
	data := dataMap(t, response)
	assert.EqualValues(t, 5, data["total"])
	rows := data["appointments"].([]interface{})
	assert.Equal(t, testTomorrow, rows[0].(map[string]interface{})["date"], "newest first")

	stats := data["stats"].(map[string]interface{})
	assert.EqualValues(t, 5, stats["total"])
	assert.EqualValues(t, 2, stats["completed"])
	assert.EqualValues(t, 1, stats["cancelled"])
	assert.EqualValues(t, 1, stats["no_show"])
	assert.EqualValues(t, 1, stats["upcoming"])
	assert.EqualValues(t, 42000, stats["total_spent"])

	w, response, _ = performRequest(r, requestSpec{method: http.MethodGet, requestPath: fmt.Sprintf("/client/%d/history?status=completed", client.ID)})
	assertSuccessResponse(t, w, response)
	assert.EqualValues(t, 2, dataMap(t, response)["total"])

	w, _, _ = performRequest(r, requestSpec{method: http.MethodGet, requestPath: fmt.Sprintf("/client/%d/history?status=lost", client.ID)})
	assertStatus(t, w, http.StatusBadRequest)

	w, _, _ = performRequest(r, requestSpec{method: http.MethodGet, requestPath: "/client/999/history"})
	assertStatus(t, w, http.StatusNotFound)
}
