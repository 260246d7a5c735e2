package endpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/schedule"
	"github.com/Marcosotoladev/DhermicaApp-sub000/storage"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type treatmentListQuery struct {
	Keyword  string
	Category string
	All      bool
}

func (q treatmentListQuery) apply(db *gorm.DB) *gorm.DB {
	if q.Keyword != "" {
		like := "%" + q.Keyword + "%"
		db = db.Where("name LIKE ? OR description LIKE ?", like, like)
	}
	if q.Category != "" {
		db = db.Where("category = ?", q.Category)
	}
	if !q.All {
		db = db.Where("is_active = ?", true)
	}
	return db
}

// ListTreatments godoc
// @Summary      List treatments
// @Description  Active treatments for everyone; admins also see inactive ones
// @Tags         Treatment
// @Produce      json
// @Param        keyword query string false "Name or description"
// @Param        category query string false "Category"
// @Param        page query int false "Page"
// @Param        limit query int false "Limit"
// @Success      200 {object} util.APIResponse{data=object} "Treatments retrieved"
// @Router       /treatment [get]
func ListTreatments(c *gin.Context) {
	query := treatmentListQuery{
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		Category: strings.TrimSpace(c.Query("category")),
		All:      middleware.IsAdmin(c),
	}
	page, limit, offset := util.Pagination(c)
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var treatments []model.Treatment
	if err := query.apply(db.Model(&model.Treatment{})).Order("category ASC, name ASC").Limit(limit).Offset(offset).Find(&treatments).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve treatments", Err: err})
		return
	}
	var total int64
	if err := query.apply(db.Model(&model.Treatment{})).Count(&total).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to count treatments", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Treatments retrieved",
		Data: listResponse("treatments", treatments, total, page, limit, len(treatments)),
	})
}

// GetTreatment godoc
// @Summary      Get treatment
// @Tags         Treatment
// @Produce      json
// @Param        id path int true "Treatment ID"
// @Success      200 {object} util.APIResponse{data=model.Treatment} "Treatment retrieved"
// @Failure      404 {object} util.APIResponse "Treatment not found"
// @Router       /treatment/{id} [get]
func GetTreatment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var treatment model.Treatment
	if !findByIDOrRespond(c, db, &treatment, id, "Treatment") {
		return
	}
	if !treatment.IsActive && !middleware.IsAdmin(c) {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Treatment not found", Err: fmt.Errorf("treatment %d inactive", id)})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Treatment retrieved", Data: treatment})
}

func applyTreatmentRequest(t *model.Treatment, req model.TreatmentRequest) {
	if name := util.NormalizeName(req.Name); name != "" {
		t.Name = name
	}
	if req.Description != "" {
		t.Description = req.Description
	}
	if req.Category != "" {
		t.Category = strings.TrimSpace(req.Category)
	}
	if req.Price != nil {
		t.Price = *req.Price
	}
	if req.DurationMinutes != 0 {
		t.DurationMinutes = req.DurationMinutes
	}
	if req.Restrictions != nil {
		t.Restrictions = util.JoinCSV(req.Restrictions)
	}
	t.IsActive = boolValue(req.IsActive, t.IsActive)
}

// CreateTreatment godoc
// @Summary      Create treatment
// @Tags         Treatment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body model.TreatmentRequest true "Treatment"
// @Success      201 {object} util.APIResponse{data=model.Treatment} "Treatment created"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Router       /treatment [post]
func CreateTreatment(c *gin.Context) {
	var req model.TreatmentRequest
	if !bindJSONOrRespond(c, &req, "Invalid request body") {
		return
	}
	if util.NormalizeName(req.Name) == "" || req.DurationMinutes == 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "name and duration_minutes are required", Err: fmt.Errorf("invalid payload")})
		return
	}
	req.Restrictions = normalizeCodenames(req.Restrictions)
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	if !conditionsKnownOrRespond(c, db, req.Restrictions) {
		return
	}

	treatment := model.Treatment{IsActive: true}
	applyTreatmentRequest(&treatment, req)
	if err := db.Create(&treatment).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create treatment", Err: err})
		return
	}
	util.CallCreated(c, util.APISuccessParams{Msg: "Treatment created", Data: treatment})
}

// UpdateTreatment godoc
// @Summary      Update treatment
// @Description  Price changes apply to new bookings only; existing appointments keep the price they were booked with.
// @Tags         Treatment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Treatment ID"
// @Param        request body model.TreatmentRequest true "Fields to update"
// @Success      200 {object} util.APIResponse{data=model.Treatment} "Treatment updated"
// @Failure      404 {object} util.APIResponse "Treatment not found"
// @Router       /treatment/{id} [patch]
func UpdateTreatment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req model.TreatmentRequest
	if !bindJSONOrRespond(c, &req, "Invalid request body") {
		return
	}
	if req.Restrictions != nil {
		req.Restrictions = normalizeCodenames(req.Restrictions)
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var treatment model.Treatment
	if !findByIDOrRespond(c, db, &treatment, id, "Treatment") {
		return
	}
	if !conditionsKnownOrRespond(c, db, req.Restrictions) {
		return
	}
	applyTreatmentRequest(&treatment, req)
	if err := db.Save(&treatment).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update treatment", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Treatment updated", Data: treatment})
}

// DeleteTreatment godoc
// @Summary      Delete treatment
// @Description  Soft delete. Refused while upcoming appointments use the treatment; deactivate it instead to stop new bookings.
// @Tags         Treatment
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Treatment ID"
// @Success      200 {object} util.APIResponse "Treatment deleted"
// @Failure      404 {object} util.APIResponse "Treatment not found"
// @Failure      409 {object} util.APIResponse "Treatment has upcoming appointments"
// @Router       /treatment/{id} [delete]
func DeleteTreatment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var treatment model.Treatment
	if !findByIDOrRespond(c, db, &treatment, id, "Treatment") {
		return
	}
	today := middleware.GetClinic(c).Now().Format(schedule.DateLayout)
	upcoming, err := countUpcoming(db, "treatment_id", treatment.ID, today)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check appointments", Err: err})
		return
	}
	if upcoming > 0 {
		util.CallConflict(c, util.APIErrorParams{
			Msg:  "Treatment has upcoming appointments",
			Err:  fmt.Errorf("%d upcoming appointments", upcoming),
			Data: map[string]interface{}{"upcoming": upcoming},
		})
		return
	}
	if err := db.Delete(&treatment).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete treatment", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Treatment deleted", Data: map[string]interface{}{"id": id}})
}

// UploadTreatmentImage godoc
// @Summary      Upload treatment image
// @Description  Stores a JPEG, PNG, WebP or GIF image (max 5 MB) in object storage and replaces the treatment's image_url
// @Tags         Treatment
// @Accept       multipart/form-data
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Treatment ID"
// @Param        image formData file true "Image"
// @Success      200 {object} util.APIResponse{data=model.Treatment} "Image uploaded"
// @Failure      400 {object} util.APIResponse "Missing or invalid image"
// @Failure      404 {object} util.APIResponse "Treatment not found"
// @Failure      503 {object} util.APIResponse "Object storage not configured"
// @Router       /treatment/{id}/image [post]
func UploadTreatmentImage(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	store := middleware.GetImageStore(c)
	if store == nil {
		util.CallServiceUnavailable(c, util.APIErrorParams{Msg: "Image uploads are disabled", Err: storage.ErrNotConfigured})
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "image file is required", Err: err})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var treatment model.Treatment
	if !findByIDOrRespond(c, db, &treatment, id, "Treatment") {
		return
	}

	f, err := file.Open()
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to read upload", Err: err})
		return
	}
	defer f.Close()

	obj, err := store.Upload(c.Request.Context(), storage.Image{
		Prefix:      fmt.Sprintf("treatments/%d", treatment.ID),
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Reader:      f,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrEmpty) {
			util.CallUserError(c, util.APIErrorParams{Msg: "Invalid image", Err: err})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to store image", Err: err})
		return
	}

	previous := treatment.ImageURL
	treatment.ImageURL = obj.URL
	if err := db.Model(&treatment).Update("image_url", obj.URL).Error; err != nil {
		// the new object is orphaned; remove it so storage matches the row
		_ = store.Delete(c.Request.Context(), obj.Key)
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to save image url", Err: err})
		return
	}
	if key, ok := store.KeyFromURL(previous); ok {
		if err := store.Delete(c.Request.Context(), key); err != nil {
			zap.L().Warn("failed to delete previous treatment image", zap.String("key", key), zap.Error(err))
		}
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Image uploaded", Data: treatment})
}
