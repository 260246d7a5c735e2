package endpoint

import (
	"fmt"
	"strings"

	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MedicalConditionRequest struct {
	Name        string `json:"name" example:"Embarazo"`
	Codename    string `json:"codename" example:"pregnancy"`
	Description string `json:"description"`
}

func codenameTaken(db *gorm.DB, codename string, exceptID uint) (bool, error) {
	q := db.Unscoped().Model(&model.MedicalCondition{}).Where("codename = ?", codename)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

// ListMedicalConditions godoc
// @Summary      List medical conditions
// @Description  The catalog used by client medical profiles and treatment restrictions
// @Tags         MedicalCondition
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=[]model.MedicalCondition} "Conditions retrieved"
// @Router       /condition [get]
func ListMedicalConditions(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var conditions []model.MedicalCondition
	if err := db.Order("name ASC").Find(&conditions).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve medical conditions", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Medical conditions retrieved", Data: conditions})
}

// CreateMedicalCondition godoc
// @Summary      Create medical condition
// @Tags         MedicalCondition
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body MedicalConditionRequest true "Condition"
// @Success      201 {object} util.APIResponse{data=model.MedicalCondition} "Condition created"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Failure      409 {object} util.APIResponse "Codename already exists"
// @Router       /condition [post]
func CreateMedicalCondition(c *gin.Context) {
	var req MedicalConditionRequest
	if !bindJSONOrRespond(c, &req, "Invalid request body") {
		return
	}
	condition := model.MedicalCondition{
		Name:        util.NormalizeName(req.Name),
		Codename:    strings.ToLower(strings.TrimSpace(req.Codename)),
		Description: req.Description,
	}
	if condition.Name == "" || condition.Codename == "" || strings.Contains(condition.Codename, ",") {
		util.CallUserError(c, util.APIErrorParams{Msg: "name and codename are required; codename cannot contain commas", Err: fmt.Errorf("invalid payload")})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	taken, err := codenameTaken(db, condition.Codename, 0)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check codename", Err: err})
		return
	}
	if taken {
		util.CallConflict(c, util.APIErrorParams{Msg: "Codename already exists", Err: fmt.Errorf("codename %q taken", condition.Codename)})
		return
	}
	if err := db.Create(&condition).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create medical condition", Err: err})
		return
	}
	util.CallCreated(c, util.APISuccessParams{Msg: "Medical condition created", Data: condition})
}

// UpdateMedicalCondition godoc
// @Summary      Update medical condition
// @Description  The codename is fixed once created because client profiles and treatments refer to it.
// @Tags         MedicalCondition
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Condition ID"
// @Param        request body MedicalConditionRequest true "Fields to update"
// @Success      200 {object} util.APIResponse{data=model.MedicalCondition} "Condition updated"
// @Failure      404 {object} util.APIResponse "Condition not found"
// @Router       /condition/{id} [patch]
func UpdateMedicalCondition(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req MedicalConditionRequest
	if !bindJSONOrRespond(c, &req, "Invalid request body") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var condition model.MedicalCondition
	if !findByIDOrRespond(c, db, &condition, id, "Medical condition") {
		return
	}
	if code := strings.ToLower(strings.TrimSpace(req.Codename)); code != "" && code != condition.Codename {
		util.CallUserError(c, util.APIErrorParams{Msg: "Codename cannot be changed", Err: fmt.Errorf("codename is immutable")})
		return
	}
	if name := util.NormalizeName(req.Name); name != "" {
		condition.Name = name
	}
	if req.Description != "" {
		condition.Description = req.Description
	}
	if err := db.Save(&condition).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update medical condition", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Medical condition updated", Data: condition})
}

// conditionInUse reports whether any client or treatment references codename.
func conditionInUse(db *gorm.DB, codename string) (bool, error) {
	checks := []struct {
		dst    interface{}
		column string
	}{
		{&model.Client{}, "medical_conditions"},
		{&model.Treatment{}, "restrictions"},
	}
	for _, check := range checks {
		// LIKE narrows the rows; the CSV split rules out partial matches such as "diabetes" in "prediabetes"
		var values []string
		err := db.Model(check.dst).Where(check.column+" LIKE ?", "%"+codename+"%").Pluck(check.column, &values).Error
		if err != nil {
			return false, err
		}
		for _, v := range values {
			if util.Contains(codename, util.SplitCSV(v)) {
				return true, nil
			}
		}
	}
	return false, nil
}

// DeleteMedicalCondition godoc
// @Summary      Delete medical condition
// @Description  Refused while a client profile or a treatment restriction still uses the codename
// @Tags         MedicalCondition
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Condition ID"
// @Success      200 {object} util.APIResponse "Condition deleted"
// @Failure      404 {object} util.APIResponse "Condition not found"
// @Failure      409 {object} util.APIResponse "Condition in use"
// @Router       /condition/{id} [delete]
func DeleteMedicalCondition(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var condition model.MedicalCondition
	if !findByIDOrRespond(c, db, &condition, id, "Medical condition") {
		return
	}
	inUse, err := conditionInUse(db, condition.Codename)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check condition usage", Err: err})
		return
	}
	if inUse {
		util.CallConflict(c, util.APIErrorParams{Msg: "Medical condition is in use", Err: fmt.Errorf("codename %q referenced", condition.Codename)})
		return
	}
	if err := db.Unscoped().Delete(&condition).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete medical condition", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Medical condition deleted", Data: map[string]interface{}{"id": id}})
}
