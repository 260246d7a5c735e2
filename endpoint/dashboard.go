package endpoint

import (
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/schedule"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const topTreatmentsLimit = 5

type TopTreatment struct {
	TreatmentID uint    `json:"treatment_id"`
	Name        string  `json:"name"`
	Count       int64   `json:"count"`
	Revenue     float64 `json:"revenue"`
}

type DashboardResponse struct {
	Date                string                          `json:"date"`
	Month               string                          `json:"month"`
	TodayCount          int64                           `json:"today_count"`
	Today               []model.ListAppointmentResponse `json:"today"`
	MonthByStatus       map[string]int64                `json:"month_by_status"`
	MonthRevenue        float64                         `json:"month_revenue"`
	ActiveClients       int64                           `json:"active_clients"`
	ActiveProfessionals int64                           `json:"active_professionals"`
	ActiveTreatments    int64                           `json:"active_treatments"`
	PendingReviews      int64                           `json:"pending_reviews"`
	TopTreatments       []TopTreatment                  `json:"top_treatments"`
}

// monthRange returns the first and last calendar dates of day's month.
func monthRange(day time.Time) (string, string) {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	last := first.AddDate(0, 1, -1)
	return first.Format(schedule.DateLayout), last.Format(schedule.DateLayout)
}

func monthStatusCounts(db *gorm.DB, from, to string) (map[string]int64, float64, error) {
	var rows []struct {
		Status model.AppointmentStatus
		N      int64
		Amount float64
	}
	err := db.Model(&model.Appointment{}).
		Select("status, COUNT(*) as n, COALESCE(SUM(price), 0) as amount").
		Where("date BETWEEN ? AND ?", from, to).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	counts := map[string]int64{}
	for _, s := range []model.AppointmentStatus{model.StatusScheduled, model.StatusConfirmed, model.StatusCompleted, model.StatusCancelled, model.StatusNoShow} {
		counts[string(s)] = 0
	}
	var revenue float64
	for _, r := range rows {
		counts[string(r.Status)] = r.N
		if r.Status == model.StatusCompleted {
			revenue = r.Amount
		}
	}
	return counts, revenue, nil
}

func topTreatments(db *gorm.DB, from, to string) ([]TopTreatment, error) {
	out := []TopTreatment{}
	err := db.Table("appointments").
		Select("appointments.treatment_id as treatment_id, treatments.name as name, COUNT(*) as count, COALESCE(SUM(CASE WHEN appointments.status = ? THEN appointments.price ELSE 0 END), 0) as revenue", model.StatusCompleted).
		Joins("LEFT JOIN treatments ON treatments.id = appointments.treatment_id").
		Where("appointments.deleted_at IS NULL AND appointments.date BETWEEN ? AND ?", from, to).
		Where("appointments.status NOT IN ?", model.InactiveStatuses).
		Group("appointments.treatment_id, treatments.name").
		Order("count DESC").
		Limit(topTreatmentsLimit).
		Scan(&out).Error
	return out, err
}

func countActive(db *gorm.DB, dst interface{}) (int64, error) {
	var n int64
	err := db.Model(dst).Where("is_active = ?", true).Count(&n).Error
	return n, err
}

// Dashboard godoc
// @Summary      Admin dashboard
// @Description  Appointments of the day, month totals by status, month revenue from completed appointments, catalog totals, pending reviews and most booked treatments
// @Tags         Dashboard
// @Produce      json
// @Security     SessionToken
// @Param        date query string false "Day to report (YYYY-MM-DD), defaults to today"
// @Success      200 {object} util.APIResponse{data=DashboardResponse} "Dashboard"
// @Failure      400 {object} util.APIResponse "Invalid date"
// @Router       /dashboard [get]
func Dashboard(c *gin.Context) {
	clinic := middleware.GetClinic(c)
	day := clinic.Now()
	if v := c.Query("date"); v != "" {
		parsed, err := schedule.ParseDate(v, clinic.Location())
		if err != nil {
			util.CallUserError(c, util.APIErrorParams{Msg: "date must look like YYYY-MM-DD", Err: err})
			return
		}
		day = parsed
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	date := day.Format(schedule.DateLayout)
	from, to := monthRange(day)
	resp := DashboardResponse{Date: date, Month: day.Format("2006-01")}

	var err error
	fail := func(msg string) bool {
		if err != nil {
			util.CallServerError(c, util.APIErrorParams{Msg: msg, Err: err})
			return true
		}
		return false
	}

	resp.Today, _, err = fetchAppointments(db, appointmentFilter{Date: date}, "ASC", 0, 0)
	if fail("Failed to load today's appointments") {
		return
	}
	for _, a := range resp.Today {
		if a.IsActive() {
			resp.TodayCount++
		}
	}
	resp.MonthByStatus, resp.MonthRevenue, err = monthStatusCounts(db, from, to)
	if fail("Failed to count appointments") {
		return
	}
	resp.ActiveClients, err = countActive(db, &model.Client{})
	if fail("Failed to count clients") {
		return
	}
	resp.ActiveProfessionals, err = countActive(db, &model.Professional{})
	if fail("Failed to count professionals") {
		return
	}
	resp.ActiveTreatments, err = countActive(db, &model.Treatment{})
	if fail("Failed to count treatments") {
		return
	}
	err = db.Model(&model.Review{}).Where("status = ?", model.ReviewPending).Count(&resp.PendingReviews).Error
	if fail("Failed to count reviews") {
		return
	}
	resp.TopTreatments, err = topTreatments(db, from, to)
	if fail("Failed to rank treatments") {
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Dashboard retrieved", Data: resp})
}
