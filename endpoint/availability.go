package endpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/schedule"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// weeklyFromRows converts stored working hours into a weekly plan.
func weeklyFromRows(rows []model.WorkingHour) (schedule.Weekly, error) {
	weekly := schedule.Weekly{}
	for _, r := range rows {
		b, err := schedule.NewBlock(r.StartTime, r.EndTime)
		if err != nil {
			return nil, fmt.Errorf("working hour %d: %w", r.ID, err)
		}
		if r.Weekday < 0 || r.Weekday > 6 {
			return nil, fmt.Errorf("working hour %d: weekday %d out of range", r.ID, r.Weekday)
		}
		day := time.Weekday(r.Weekday)
		weekly[day] = append(weekly[day], b)
	}
	return weekly, nil
}

func exceptionFromRow(r model.ScheduleException) (schedule.Exception, error) {
	ex := schedule.Exception{Date: r.Date, DayOff: r.IsDayOff}
	if r.IsDayOff {
		return ex, nil
	}
	b, err := schedule.NewBlock(r.StartTime, r.EndTime)
	if err != nil {
		return schedule.Exception{}, fmt.Errorf("exception %d: %w", r.ID, err)
	}
	ex.Blocks = []schedule.Block{b}
	return ex, nil
}

// loadScheduleManager builds the availability manager of a professional.
// Professionals without working hours follow the clinic opening hours. When
// dates are given only the exceptions on those dates are loaded.
func loadScheduleManager(db *gorm.DB, clinic *config.ClinicConfig, professionalID uint, dates ...string) (*schedule.Manager, error) {
	var hours []model.WorkingHour
	if err := db.Where("professional_id = ?", professionalID).Order("weekday, start_time").Find(&hours).Error; err != nil {
		return nil, fmt.Errorf("failed to load working hours: %w", err)
	}
	weekly := clinic.DefaultWeekly()
	if len(hours) > 0 {
		var err error
		if weekly, err = weeklyFromRows(hours); err != nil {
			return nil, err
		}
	}

	q := db.Where("professional_id = ?", professionalID)
	if len(dates) > 0 {
		q = q.Where("date IN ?", dates)
	}
	var rows []model.ScheduleException
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load schedule exceptions: %w", err)
	}
	exceptions := make([]schedule.Exception, 0, len(rows))
	for _, r := range rows {
		ex, err := exceptionFromRow(r)
		if err != nil {
			return nil, err
		}
		exceptions = append(exceptions, ex)
	}

	return schedule.NewManager(weekly, exceptions, clinic.ScheduleOptions())
}

// busyIntervals returns the time taken by active appointments on date where
// column (professional_id or client_id) equals id. excludeID skips one
// appointment, used when rescheduling it.
func busyIntervals(db *gorm.DB, column string, id uint, date string, excludeID uint) ([]schedule.Interval, error) {
	q := db.Model(&model.Appointment{}).
		Where(column+" = ? AND date = ?", id, date).
		Where("status NOT IN ?", model.InactiveStatuses)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var appts []model.Appointment
	if err := q.Order("start_time").Find(&appts).Error; err != nil {
		return nil, err
	}
	out := make([]schedule.Interval, 0, len(appts))
	for _, a := range appts {
		b, err := schedule.NewBlock(a.StartTime, a.EndTime)
		if err != nil {
			return nil, fmt.Errorf("appointment %d: %w", a.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

type AvailabilityResponse struct {
	Date            string          `json:"date"`
	ProfessionalID  uint            `json:"professional_id"`
	TreatmentID     uint            `json:"treatment_id"`
	DurationMinutes int             `json:"duration_minutes"`
	Working         bool            `json:"working"`
	Slots           []schedule.Slot `json:"slots"`
}

// GetAvailability godoc
// @Summary      Bookable slots of a professional
// @Description  Lists appointment start times for a treatment on a date, taking working hours, exceptions, existing appointments and the booking window into account.
// @Tags         Appointment
// @Produce      json
// @Param        professional_id query int true "Professional ID"
// @Param        treatment_id query int true "Treatment ID"
// @Param        date query string true "Date (YYYY-MM-DD)"
// @Success      200 {object} util.APIResponse{data=AvailabilityResponse} "Slots"
// @Failure      400 {object} util.APIResponse "Invalid query"
// @Failure      404 {object} util.APIResponse "Professional or treatment not found"
// @Router       /availability [get]
func GetAvailability(c *gin.Context) {
	profID, ok := util.ParseUintParam(c.Query("professional_id"))
	if !ok {
		util.CallUserError(c, util.APIErrorParams{Msg: "professional_id is required", Err: fmt.Errorf("invalid professional_id")})
		return
	}
	treatmentID, ok := util.ParseUintParam(c.Query("treatment_id"))
	if !ok {
		util.CallUserError(c, util.APIErrorParams{Msg: "treatment_id is required", Err: fmt.Errorf("invalid treatment_id")})
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
	if err := db.Where("is_active = ?", true).First(&prof, profID).Error; err != nil {
		respondLookupError(c, err, "Professional")
		return
	}
	var treatment model.Treatment
	if err := db.Where("is_active = ?", true).First(&treatment, treatmentID).Error; err != nil {
		respondLookupError(c, err, "Treatment")
		return
	}

	resp := AvailabilityResponse{
		Date:            date.Format(schedule.DateLayout),
		ProfessionalID:  prof.ID,
		TreatmentID:     treatment.ID,
		DurationMinutes: treatment.DurationMinutes,
		Slots:           []schedule.Slot{},
	}
	if !canPerform(prof, treatment.ID) {
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "Professional does not perform this treatment", Data: resp})
		return
	}

	manager, err := loadScheduleManager(db, clinic, prof.ID, resp.Date)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load schedule", Err: err})
		return
	}
	busy, err := busyIntervals(db, "professional_id", prof.ID, resp.Date, 0)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load appointments", Err: err})
		return
	}

	resp.Working = manager.IsWorkingDay(date)
	if slots := manager.GenerateSlots(date, treatment.DurationMinutes, busy, clinic.Now()); slots != nil {
		resp.Slots = slots
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Availability retrieved", Data: resp})
}

// canPerform reports whether the professional offers the treatment. An empty
// list means every treatment.
func canPerform(p model.Professional, treatmentID uint) bool {
	ids := util.SplitCSVUint(p.TreatmentIDs)
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == treatmentID {
			return true
		}
	}
	return false
}

func respondLookupError(c *gin.Context, err error, what string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: what + " not found", Err: err})
		return
	}
	util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve " + what, Err: err})
}
