package endpoint

import (
	"fmt"
	"strings"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/schedule"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// missingTreatments returns the ids that are not active treatments.
func missingTreatments(db *gorm.DB, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []uint
	if err := db.Model(&model.Treatment{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	var missing []uint
	for _, id := range ids {
		seen := false
		for _, f := range found {
			if f == id {
				seen = true
				break
			}
		}
		if !seen {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// validateProfessionalRequest checks referenced treatments and user account.
func validateProfessionalRequest(c *gin.Context, db *gorm.DB, req model.ProfessionalRequest) bool {
	missing, err := missingTreatments(db, req.TreatmentIDs)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check treatments", Err: err})
		return false
	}
	if len(missing) > 0 {
		util.CallUserError(c, util.APIErrorParams{
			Msg:  "Unknown treatments",
			Err:  fmt.Errorf("unknown treatment ids: %v", missing),
			Data: map[string]interface{}{"unknown": missing},
		})
		return false
	}
	if req.UserID != nil {
		var user model.User
		if !findByIDOrRespond(c, db, &user, *req.UserID, "User") {
			return false
		}
	}
	return true
}

func applyProfessionalRequest(p *model.Professional, req model.ProfessionalRequest) {
	if name := util.NormalizeName(req.FullName); name != "" {
		p.FullName = name
	}
	if req.Email != "" {
		p.Email = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.PhoneNumber != "" {
		p.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	}
	if req.Specialty != "" {
		p.Specialty = req.Specialty
	}
	if req.Bio != "" {
		p.Bio = req.Bio
	}
	if req.TreatmentIDs != nil {
		p.TreatmentIDs = util.JoinCSVUint(req.TreatmentIDs)
	}
	if req.UserID != nil {
		p.UserID = req.UserID
	}
	p.IsActive = boolValue(req.IsActive, p.IsActive)
}

// ListProfessionals godoc
// @Summary      List professionals
// @Description  Admins see every professional; everyone else only active ones
// @Tags         Professional
// @Produce      json
// @Param        keyword query string false "Name or specialty"
// @Param        treatment_id query int false "Only professionals performing this treatment"
// @Param        page query int false "Page"
// @Param        limit query int false "Limit"
// @Success      200 {object} util.APIResponse{data=object} "Professionals retrieved"
// @Router       /professional [get]
func ListProfessionals(c *gin.Context) {
	page, limit, offset := util.Pagination(c)
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	filter := func(q *gorm.DB) *gorm.DB {
		if kw := strings.TrimSpace(c.Query("keyword")); kw != "" {
			like := "%" + kw + "%"
			q = q.Where("full_name LIKE ? OR specialty LIKE ?", like, like)
		}
		if !middleware.IsAdmin(c) {
			q = q.Where("is_active = ?", true)
		}
		return q
	}

	var professionals []model.Professional
	if err := filter(db.Model(&model.Professional{})).Order("full_name ASC").Find(&professionals).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve professionals", Err: err})
		return
	}
	// treatment ids live in a CSV column, so this filter runs in memory
	if v := c.Query("treatment_id"); v != "" {
		treatmentID, ok := util.ParseUintParam(v)
		if !ok {
			util.CallUserError(c, util.APIErrorParams{Msg: "Invalid treatment_id", Err: fmt.Errorf("invalid treatment_id")})
			return
		}
		kept := professionals[:0]
		for _, p := range professionals {
			if canPerform(p, treatmentID) {
				kept = append(kept, p)
			}
		}
		professionals = kept
	}

	total := int64(len(professionals))
	end := offset + limit
	if offset > len(professionals) {
		offset = len(professionals)
	}
	if end > len(professionals) {
		end = len(professionals)
	}
	pageItems := professionals[offset:end]
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Professionals retrieved",
		Data: listResponse("professionals", pageItems, total, page, limit, len(pageItems)),
	})
}

// GetProfessional godoc
// @Summary      Get professional
// @Tags         Professional
// @Produce      json
// @Param        id path int true "Professional ID"
// @Success      200 {object} util.APIResponse{data=model.Professional} "Professional retrieved"
// @Failure      404 {object} util.APIResponse "Professional not found"
// @Router       /professional/{id} [get]
func GetProfessional(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var prof model.Professional
	if !findByIDOrRespond(c, db, &prof, id, "Professional") {
		return
	}
	if !prof.IsActive && !middleware.IsAdmin(c) {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Professional not found", Err: fmt.Errorf("professional %d inactive", id)})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Professional retrieved", Data: prof})
}

// CreateProfessional godoc
// @Summary      Create professional
// @Tags         Professional
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body model.ProfessionalRequest true "Professional"
// @Success      201 {object} util.APIResponse{data=model.Professional} "Professional created"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Failure      409 {object} util.APIResponse "Email already registered"
// @Router       /professional [post]
func CreateProfessional(c *gin.Context) {
	var req model.ProfessionalRequest
	if !bindJSONOrRespond(c, &req, "Invalid request body") {
		return
	}
	if util.NormalizeName(req.FullName) == "" {
		util.CallUserError(c, util.APIErrorParams{Msg: "full_name is required", Err: fmt.Errorf("invalid payload")})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	if !validateProfessionalRequest(c, db, req) {
		return
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		var n int64
		if err := db.Model(&model.Professional{}).Where("email = ?", email).Count(&n).Error; err != nil {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check existing professional", Err: err})
			return
		}
		if n > 0 {
			util.CallConflict(c, util.APIErrorParams{Msg: "A professional with this email already exists", Err: fmt.Errorf("professional duplicate detected")})
			return
		}
	}

	prof := model.Professional{IsActive: true}
	applyProfessionalRequest(&prof, req)
	if err := db.Create(&prof).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create professional", Err: err})
		return
	}
	util.CallCreated(c, util.APISuccessParams{Msg: "Professional created", Data: prof})
}

// UpdateProfessional godoc
// @Summary      Update professional
// @Tags         Professional
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Professional ID"
// @Param        request body model.ProfessionalRequest true "Fields to update"
// @Success      200 {object} util.APIResponse{data=model.Professional} "Professional updated"
// @Failure      404 {object} util.APIResponse "Professional not found"
// @Router       /professional/{id} [patch]
func UpdateProfessional(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req model.ProfessionalRequest
	if !bindJSONOrRespond(c, &req, "Invalid request body") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var prof model.Professional
	if !findByIDOrRespond(c, db, &prof, id, "Professional") {
		return
	}
	if !validateProfessionalRequest(c, db, req) {
		return
	}
	applyProfessionalRequest(&prof, req)
	if err := db.Save(&prof).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update professional", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Professional updated", Data: prof})
}

// DeleteProfessional godoc
// @Summary      Delete professional
// @Description  Soft delete together with working hours and exceptions. Refused while upcoming appointments exist.
// @Tags         Professional
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Professional ID"
// @Success      200 {object} util.APIResponse "Professional deleted"
// @Failure      404 {object} util.APIResponse "Professional not found"
// @Failure      409 {object} util.APIResponse "Professional has upcoming appointments"
// @Router       /professional/{id} [delete]
func DeleteProfessional(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var prof model.Professional
	if !findByIDOrRespond(c, db, &prof, id, "Professional") {
		return
	}
	today := middleware.GetClinic(c).Now().Format(schedule.DateLayout)
	upcoming, err := countUpcoming(db, "professional_id", prof.ID, today)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check appointments", Err: err})
		return
	}
	if upcoming > 0 {
		util.CallConflict(c, util.APIErrorParams{
			Msg:  "Professional has upcoming appointments",
			Err:  fmt.Errorf("%d upcoming appointments", upcoming),
			Data: map[string]interface{}{"upcoming": upcoming},
		})
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("professional_id = ?", prof.ID).Delete(&model.WorkingHour{}).Error; err != nil {
			return err
		}
		if err := tx.Where("professional_id = ?", prof.ID).Delete(&model.ScheduleException{}).Error; err != nil {
			return err
		}
		return tx.Delete(&prof).Error
	})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete professional", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Professional deleted", Data: map[string]interface{}{"id": id}})
}

type WorkingHourInput struct {
	Weekday   int    `json:"weekday" binding:"gte=0,lte=6" example:"1"`
	StartTime string `json:"start_time" binding:"required,clock" example:"09:00"`
	EndTime   string `json:"end_time" binding:"required,endclock" example:"13:00"`
}

type WorkingHoursRequest struct {
	Hours []WorkingHourInput `json:"hours" binding:"dive"`
}

type WorkingHoursResponse struct {
	ProfessionalID uint                `json:"professional_id"`
	UsesDefault    bool                `json:"uses_default"`
	Hours          []model.WorkingHour `json:"hours"`
}

// ReplaceWorkingHours godoc
// @Summary      Replace weekly working hours
// @Description  Replaces every working block of the professional. An empty list makes the professional follow the clinic opening hours.
// @Tags         Professional
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Professional ID"
// @Param        request body WorkingHoursRequest true "Weekly blocks"
// @Success      200 {object} util.APIResponse{data=WorkingHoursResponse} "Working hours saved"
// @Failure      400 {object} util.APIResponse "Invalid or overlapping blocks"
// @Failure      404 {object} util.APIResponse "Professional not found"
// @Router       /professional/{id}/hours [put]
func ReplaceWorkingHours(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req WorkingHoursRequest
	if !bindJSONOrRespond(c, &req, "Invalid working hours") {
		return
	}
	rows := make([]model.WorkingHour, 0, len(req.Hours))
	for _, h := range req.Hours {
		start, _ := schedule.ParseClock(h.StartTime)
		end, _ := schedule.ParseClock(h.EndTime)
		rows = append(rows, model.WorkingHour{
			ProfessionalID: id,
			Weekday:        h.Weekday,
			StartTime:      start.String(),
			EndTime:        end.String(),
		})
	}
	weekly, err := weeklyFromRows(rows)
	if err == nil {
		err = schedule.ValidateWeekly(weekly)
	}
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid working hours", Err: err})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var prof model.Professional
	if !findByIDOrRespond(c, db, &prof, id, "Professional") {
		return
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("professional_id = ?", prof.ID).Delete(&model.WorkingHour{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to save working hours", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Working hours saved",
		Data: WorkingHoursResponse{ProfessionalID: prof.ID, UsesDefault: len(rows) == 0, Hours: rows},
	})
}

// GetWorkingHours godoc
// @Summary      Weekly working hours
// @Description  When the professional has no hours of their own the clinic opening hours are returned with uses_default=true.
// @Tags         Professional
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Professional ID"
// @Success      200 {object} util.APIResponse{data=WorkingHoursResponse} "Working hours"
// @Failure      404 {object} util.APIResponse "Professional not found"
// @Router       /professional/{id}/hours [get]
func GetWorkingHours(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var prof model.Professional
	if !findByIDOrRespond(c, db, &prof, id, "Professional") {
		return
	}
	var rows []model.WorkingHour
	if err := db.Where("professional_id = ?", prof.ID).Order("weekday, start_time").Find(&rows).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load working hours", Err: err})
		return
	}
	resp := WorkingHoursResponse{ProfessionalID: prof.ID, Hours: rows}
	if len(rows) == 0 {
		resp.UsesDefault = true
		resp.Hours = defaultHourRows(prof.ID, middleware.GetClinic(c).DefaultWeekly())
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Working hours retrieved", Data: resp})
}

// defaultHourRows renders the clinic hours as unsaved working hour rows.
func defaultHourRows(professionalID uint, weekly schedule.Weekly) []model.WorkingHour {
	rows := []model.WorkingHour{}
	for day := time.Sunday; day <= time.Saturday; day++ {
		for _, b := range weekly[day] {
			rows = append(rows, model.WorkingHour{
				ProfessionalID: professionalID,
				Weekday:        int(day),
				StartTime:      b.Start.String(),
				EndTime:        b.End.String(),
			})
		}
	}
	return rows
}

type ScheduleExceptionRequest struct {
	Date      string `json:"date" binding:"required,date" example:"2026-12-24"`
	IsDayOff  bool   `json:"is_day_off"`
	StartTime string `json:"start_time" binding:"omitempty,clock" example:"10:00"`
	EndTime   string `json:"end_time" binding:"omitempty,endclock" example:"14:00"`
	Reason    string `json:"reason" example:"Holiday"`
}

// CreateScheduleException godoc
// @Summary      Add a schedule exception
// @Description  A day off closes the date. Otherwise start_time and end_time give a block that replaces the weekly hours on that date; several blocks may be added for one date.
// @Tags         Professional
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Professional ID"
// @Param        request body ScheduleExceptionRequest true "Exception"
// @Success      201 {object} util.APIResponse{data=model.ScheduleException} "Exception created"
// @Failure      400 {object} util.APIResponse "Invalid exception"
// @Failure      404 {object} util.APIResponse "Professional not found"
// @Router       /professional/{id}/exceptions [post]
func CreateScheduleException(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req ScheduleExceptionRequest
	if !bindJSONOrRespond(c, &req, "Invalid schedule exception") {
		return
	}
	row := model.ScheduleException{
		ProfessionalID: id,
		Date:           req.Date,
		IsDayOff:       req.IsDayOff,
		Reason:         strings.TrimSpace(req.Reason),
	}
	if !req.IsDayOff {
		b, err := schedule.NewBlock(req.StartTime, req.EndTime)
		if err != nil {
			util.CallUserError(c, util.APIErrorParams{Msg: "start_time and end_time are required unless is_day_off is set", Err: err})
			return
		}
		row.StartTime, row.EndTime = b.Start.String(), b.End.String()
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var prof model.Professional
	if !findByIDOrRespond(c, db, &prof, id, "Professional") {
		return
	}
	if err := db.Create(&row).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create schedule exception", Err: err})
		return
	}
	util.CallCreated(c, util.APISuccessParams{Msg: "Schedule exception created", Data: row})
}

// ListScheduleExceptions godoc
// @Summary      List schedule exceptions
// @Tags         Professional
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Professional ID"
// @Param        date_from query string false "From date (inclusive)"
// @Param        date_to query string false "To date (inclusive)"
// @Success      200 {object} util.APIResponse "Exceptions"
// @Router       /professional/{id}/exceptions [get]
func ListScheduleExceptions(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	q := db.Where("professional_id = ?", id)
	if from := c.Query("date_from"); from != "" {
		q = q.Where("date >= ?", from)
	}
	if to := c.Query("date_to"); to != "" {
		q = q.Where("date <= ?", to)
	}
	var rows []model.ScheduleException
	if err := q.Order("date, start_time").Find(&rows).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load schedule exceptions", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Schedule exceptions retrieved", Data: rows})
}

// DeleteScheduleException godoc
// @Summary      Remove a schedule exception
// @Tags         Professional
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Professional ID"
// @Param        exceptionId path int true "Exception ID"
// @Success      200 {object} util.APIResponse "Exception deleted"
// @Failure      404 {object} util.APIResponse "Exception not found"
// @Router       /professional/{id}/exceptions/{exceptionId} [delete]
func DeleteScheduleException(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	exceptionID, ok := idParamOrRespond(c, "exceptionId")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var row model.ScheduleException
	if err := db.Where("professional_id = ?", id).First(&row, exceptionID).Error; err != nil {
		respondLookupError(c, err, "Schedule exception")
		return
	}
	if err := db.Unscoped().Delete(&row).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete schedule exception", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Schedule exception deleted", Data: map[string]interface{}{"id": exceptionID}})
}

// GetProfessionalSchedule godoc
// @Summary      Day schedule of a professional
// @Description  Working blocks, busy blocks and free blocks for a date
// @Tags         Professional
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Professional ID"
// @Param        date query string true "Date (YYYY-MM-DD)"
// @Success      200 {object} util.APIResponse "Schedule"
// @Failure      400 {object} util.APIResponse "Invalid date"
// @Failure      404 {object} util.APIResponse "Professional not found"
// @Router       /professional/{id}/schedule [get]
func GetProfessionalSchedule(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	clinic := middleware.GetClinic(c)
	date, err := schedule.ParseDate(c.Query("date"), clinic.Location())
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "date must look like YYYY-MM-DD", Err: err})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var prof model.Professional
	if !findByIDOrRespond(c, db, &prof, id, "Professional") {
		return
	}
	day := date.Format(schedule.DateLayout)
	manager, err := loadScheduleManager(db, clinic, prof.ID, day)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load schedule", Err: err})
		return
	}
	busy, err := busyIntervals(db, "professional_id", prof.ID, day, 0)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load appointments", Err: err})
		return
	}
	appointments, _, err := fetchAppointments(db, appointmentFilter{ProfessionalID: prof.ID, Date: day}, "ASC", 0, 0)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load appointments", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Schedule retrieved",
		Data: map[string]interface{}{
			"professional": prof,
			"day":          manager.Describe(date, busy),
			"appointments": appointments,
		},
	})
}
