package endpoint

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedicalConditions(t *testing.T) {
	r, db := setupEndpointTest(t)
	admin := r.Group("/condition", asUser(1, model.RoleAdmin))
	admin.GET("", ListMedicalConditions)
	admin.POST("", CreateMedicalCondition)
	admin.PATCH("/:id", UpdateMedicalCondition)
	admin.DELETE("/:id", DeleteMedicalCondition)

	do := func(method, path string, body interface{}) (int, map[string]interface{}) {
		w, response, err := performRequest(r, requestSpec{method: method, requestPath: path, body: body})
		require.NoError(t, err)
		return w.Code, response
	}

	code, response := do(http.MethodPost, "/condition", map[string]string{"name": "Diabetes  tipo 2", "codename": " Diabetes "})
	require.Equal(t, http.StatusCreated, code, response)
	diabetes := dataMap(t, response)
	assert.Equal(t, "diabetes", diabetes["codename"])
	assert.Equal(t, "Diabetes tipo 2", diabetes["name"])
	diabetesID := uint(diabetes["ID"].(float64))

	tests := []struct {
		name string
		body map[string]string
		code int
	}{
		{"duplicate codename", map[string]string{"name": "Otra", "codename": "DIABETES"}, http.StatusConflict},
		{"missing name", map[string]string{"codename": "asthma"}, http.StatusBadRequest},
		{"comma in codename", map[string]string{"name": "Asma", "codename": "asthma,copd"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := do(http.MethodPost, "/condition", tt.body)
			assert.Equal(t, tt.code, code)
		})
	}

	seedCondition(t, db, "prediabetes", "Prediabetes")
	code, response = do(http.MethodGet, "/condition", nil)
	require.Equal(t, http.StatusOK, code)
	list := response["data"].([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, "Diabetes tipo 2", list[0].(map[string]interface{})["name"])

	path := fmt.Sprintf("/condition/%d", diabetesID)
	code, response = do(http.MethodPatch, path, map[string]string{"description": "Tipo 2"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Tipo 2", dataMap(t, response)["description"])
	code, _ = do(http.MethodPatch, path, map[string]string{"codename": "diabetes2"})
	assert.Equal(t, http.StatusBadRequest, code)

	client := seedClient(t, db, clientSeed{Conditions: "prediabetes"})
	code, _ = do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, code, "prediabetes does not count as a use of diabetes")

	seedCondition(t, db, "pregnancy", "Embarazo")
	var pregnancy model.MedicalCondition
	require.NoError(t, db.Where("codename = ?", "pregnancy").First(&pregnancy).Error)
	seedTreatment(t, db, treatmentSeed{Name: "Láser", Restrictions: "anticoagulants,pregnancy"})
	code, _ = do(http.MethodDelete, fmt.Sprintf("/condition/%d", pregnancy.ID), nil)
	assert.Equal(t, http.StatusConflict, code)

	var prediabetes model.MedicalCondition
	require.NoError(t, db.Where("codename = ?", "prediabetes").First(&prediabetes).Error)
	code, _ = do(http.MethodDelete, fmt.Sprintf("/condition/%d", prediabetes.ID), nil)
	assert.Equal(t, http.StatusConflict, code)

	require.NoError(t, db.Model(&client).Update("medical_conditions", "").Error)
	code, _ = do(http.MethodDelete, fmt.Sprintf("/condition/%d", prediabetes.ID), nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(http.MethodDelete, "/condition/999", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
