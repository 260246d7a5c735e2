package endpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/schedule"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// currentClientOrRespond loads the client profile linked to the session user.
func currentClientOrRespond(c *gin.Context, db *gorm.DB) (model.Client, bool) {
	uid, ok := currentUserOrRespond(c)
	if !ok {
		return model.Client{}, false
	}
	var client model.Client
	if err := db.Where("user_id = ?", uid).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Client profile not found", Err: err})
			return model.Client{}, false
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve client profile", Err: err})
		return model.Client{}, false
	}
	return client, true
}

// GetMyClient godoc
// @Summary      Own client profile
// @Tags         Me
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=model.Client} "Profile retrieved"
// @Failure      404 {object} util.APIResponse "No client profile for this user"
// @Router       /me/client [get]
func GetMyClient(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	client, ok := currentClientOrRespond(c, db)
	if !ok {
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Profile retrieved", Data: client})
}

// UpdateMyClient godoc
// @Summary      Update own client profile
// @Description  Clients may edit contact details and their medical profile. Code, email, notes and status are managed by the clinic.
// @Tags         Me
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body model.ClientRequest true "Fields to update"
// @Success      200 {object} util.APIResponse{data=model.Client} "Profile updated"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Router       /me/client [patch]
func UpdateMyClient(c *gin.Context) {
	var req model.ClientRequest
	if !bindJSONOrRespond(c, &req, "Invalid request body") {
		return
	}
	if req.MedicalConditions != nil {
		req.MedicalConditions = normalizeCodenames(req.MedicalConditions)
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	client, ok := currentClientOrRespond(c, db)
	if !ok {
		return
	}
	if !conditionsKnownOrRespond(c, db, req.MedicalConditions) {
		return
	}

	applyClientProfile(&client, req)
	if err := db.Save(&client).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update profile", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Profile updated", Data: client})
}

// ListMyAppointments godoc
// @Summary      Own appointment history
// @Description  scope=upcoming lists scheduled or confirmed appointments that have not started, soonest first; scope=past lists every other appointment, newest first. Without scope every appointment is listed.
// @Tags         Me
// @Produce      json
// @Security     SessionToken
// @Param        scope query string false "upcoming|past"
// @Param        status query string false "Status"
// @Param        page query int false "Page"
// @Param        limit query int false "Limit"
// @Success      200 {object} util.APIResponse{data=object} "History retrieved"
// @Router       /me/appointments [get]
func ListMyAppointments(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	client, ok := currentClientOrRespond(c, db)
	if !ok {
		return
	}

	split := splitAt(middleware.GetClinic(c).Now())
	filter := appointmentFilter{ClientID: client.ID}
	switch c.Query("scope") {
	case "upcoming":
		split.Upcoming = true
		filter.DateFrom = split.Today
		filter.Split = &split
	case "past":
		filter.Split = &split
	case "":
	default:
		util.CallUserError(c, util.APIErrorParams{Msg: "scope must be upcoming or past", Err: fmt.Errorf("scope %q", c.Query("scope"))})
		return
	}
	respondClientHistory(c, db, client, filter)
}

func splitAt(now time.Time) historySplit {
	return historySplit{Today: now.Format(schedule.DateLayout), Clock: schedule.ClockOf(now).String()}
}

// nextAppointment returns the client's first open appointment that has not started yet.
func nextAppointment(db *gorm.DB, clientID uint, now time.Time) (*model.ListAppointmentResponse, error) {
	split := splitAt(now)
	split.Upcoming = true
	filter := appointmentFilter{ClientID: clientID, DateFrom: split.Today, Split: &split}
	var row model.ListAppointmentResponse
	err := filter.apply(appointmentListQuery(db)).
		Select("appointments.*, clients.full_name as client_name, professionals.full_name as professional_name, treatments.name as treatment_name").
		Order("appointments.date ASC").
		Order("appointments.start_time ASC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// reviewableAppointments lists completed appointments of the client that have no review yet.
func reviewableAppointments(db *gorm.DB, clientID uint) ([]model.ListAppointmentResponse, error) {
	filter := appointmentFilter{ClientID: clientID, Status: model.StatusCompleted}
	var rows []model.ListAppointmentResponse
	err := filter.apply(appointmentListQuery(db)).
		Select("appointments.*, clients.full_name as client_name, professionals.full_name as professional_name, treatments.name as treatment_name").
		Where("NOT EXISTS (SELECT 1 FROM reviews WHERE reviews.appointment_id = appointments.id AND reviews.deleted_at IS NULL)").
		Order("appointments.date DESC").
		Find(&rows).Error
	return rows, err
}

type MyDashboardResponse struct {
	Client          model.Client                    `json:"client"`
	NextAppointment *model.ListAppointmentResponse  `json:"next_appointment"`
	Stats           ClientStats                     `json:"stats"`
	PendingReviews  []model.ListAppointmentResponse `json:"pending_reviews"`
}

// MyDashboard godoc
// @Summary      Client dashboard
// @Description  Next appointment, appointment counts and completed appointments still waiting for a review
// @Tags         Me
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse{data=MyDashboardResponse} "Dashboard"
// @Router       /me/dashboard [get]
func MyDashboard(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	client, ok := currentClientOrRespond(c, db)
	if !ok {
		return
	}
	now := middleware.GetClinic(c).Now()

	next, err := nextAppointment(db, client.ID, now)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load next appointment", Err: err})
		return
	}
	stats, err := clientStats(db, client.ID, now.Format(schedule.DateLayout))
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to compute client stats", Err: err})
		return
	}
	pending, err := reviewableAppointments(db, client.ID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load pending reviews", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Dashboard retrieved",
		Data: MyDashboardResponse{
			Client:          client,
			NextAppointment: next,
			Stats:           stats,
			PendingReviews:  pending,
		},
	})
}

// BookMyAppointment godoc
// @Summary      Book an appointment for yourself
// @Description  Same checks as the admin booking. Medical restrictions cannot be overridden; client_id and override_restrictions are ignored.
// @Tags         Me
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        appointment body model.AppointmentRequest true "Appointment"
// @Success      201 {object} util.APIResponse{data=model.Appointment} "Appointment created"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Failure      409 {object} util.APIResponse "Slot taken or treatment restricted"
// @Router       /me/appointment [post]
func BookMyAppointment(c *gin.Context) {
	var req model.AppointmentRequest
	if !bindJSONOrRespond(c, &req, "Invalid appointment request") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	client, ok := currentClientOrRespond(c, db)
	if !ok {
		return
	}

	appt, err := bookAppointment(c, db, bookingRequest{
		ClientID:       client.ID,
		ProfessionalID: req.ProfessionalID,
		TreatmentID:    req.TreatmentID,
		Date:           req.Date,
		StartTime:      req.StartTime,
		Notes:          req.Notes,
	})
	if err != nil {
		respondBookingError(c, err)
		return
	}
	util.CallCreated(c, util.APISuccessParams{Msg: "Appointment created", Data: appt})
}

// startsAt is the appointment start as an instant in loc.
func startsAt(a model.Appointment, loc *time.Location) (time.Time, error) {
	day, err := schedule.ParseDate(a.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	start, err := schedule.ParseClock(a.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(start) * time.Minute), nil
}

// CancelMyAppointment godoc
// @Summary      Cancel own appointment
// @Description  Only scheduled or confirmed appointments, and no later than the clinic's cancellation notice before the start.
// @Tags         Me
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Param        body body CancelRequest false "Reason"
// @Success      200 {object} util.APIResponse{data=model.Appointment} "Appointment cancelled"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Failure      409 {object} util.APIResponse "Appointment can no longer be cancelled"
// @Router       /me/appointment/{id}/cancel [patch]
func CancelMyAppointment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	_ = c.ShouldBindJSON(&req)
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	client, ok := currentClientOrRespond(c, db)
	if !ok {
		return
	}

	var appt model.Appointment
	// another client's appointment is reported as missing
	if err := db.Where("client_id = ?", client.ID).First(&appt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrAppointmentNotFound
		}
		respondBookingError(c, err)
		return
	}
	if !appt.CanBeCancelled() {
		respondBookingError(c, ErrNotCancellable)
		return
	}
	clinic := middleware.GetClinic(c)
	start, err := startsAt(appt, clinic.Location())
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Stored appointment time is invalid", Err: err})
		return
	}
	now := clinic.Now()
	if start.Sub(now) < time.Duration(clinic.CancelNoticeHours)*time.Hour {
		respondBookingError(c, ErrCancelNoticeTooShort)
		return
	}

	appt, err = changeStatus(db, appt.ID, model.StatusCancelled, req.Reason, now)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	publishStatusChange(c, appt)
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment cancelled", Data: appt})
}
