package endpoint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/model"
	"github.com/Marcosotoladev/DhermicaApp-sub000/notify"
	"github.com/Marcosotoladev/DhermicaApp-sub000/schedule"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrClientNotFound       = errors.New("client not found")
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrTreatmentNotFound    = errors.New("treatment not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrInactive             = errors.New("not available for booking")
	ErrTreatmentNotOffered  = errors.New("professional does not perform this treatment")
	ErrOutsideBookingWindow = errors.New("date is outside the booking window")
	ErrOutsideWorkingHours  = errors.New("appointment does not fit in the professional's working hours")
	ErrSlotUnavailable      = errors.New("professional already has an appointment at that time")
	ErrClientBusy           = errors.New("client already has an appointment at that time")
	ErrRestrictedTreatment  = errors.New("treatment is restricted for the client's medical conditions")
	ErrInvalidTransition    = errors.New("status transition not allowed")
	ErrNotCancellable       = errors.New("appointment can no longer be cancelled")
	ErrCancelNoticeTooShort = errors.New("appointment starts too soon to be cancelled")
	ErrNotReschedulable     = errors.New("only scheduled or confirmed appointments can be rescheduled")
)

// RestrictionError carries the client conditions that clash with a treatment.
type RestrictionError struct {
	Conditions []string
}

func (e *RestrictionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRestrictedTreatment, strings.Join(e.Conditions, ", "))
}

func (e *RestrictionError) Is(target error) bool {
	return target == ErrRestrictedTreatment
}

type bookingRequest struct {
	ClientID             uint
	ProfessionalID       uint
	TreatmentID          uint
	Date                 string
	StartTime            string
	Notes                string
	OverrideRestrictions bool
	// ExcludeAppointmentID is the appointment being moved, ignored in overlap checks.
	ExcludeAppointmentID uint
}

// bookingPlan is a validated appointment ready to be stored.
type bookingPlan struct {
	Appointment model.Appointment
	// Overridden lists restricted conditions an admin chose to ignore.
	Overridden []string
}

func lockedFirst(tx *gorm.DB, dst interface{}, id uint, notFound error) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(dst, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

// planBooking checks every booking rule against the rows visible to tx. The
// client and professional rows are locked so concurrent bookings for either of
// them wait for this transaction.
func planBooking(tx *gorm.DB, clinic *config.ClinicConfig, req bookingRequest) (bookingPlan, error) {
	var client model.Client
	if err := lockedFirst(tx, &client, req.ClientID, ErrClientNotFound); err != nil {
		return bookingPlan{}, err
	}
	if !client.IsActive {
		return bookingPlan{}, fmt.Errorf("client %d: %w", client.ID, ErrInactive)
	}
	var prof model.Professional
	if err := lockedFirst(tx, &prof, req.ProfessionalID, ErrProfessionalNotFound); err != nil {
		return bookingPlan{}, err
	}
	if !prof.IsActive {
		return bookingPlan{}, fmt.Errorf("professional %d: %w", prof.ID, ErrInactive)
	}
	var treatment model.Treatment
	if err := tx.First(&treatment, req.TreatmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bookingPlan{}, ErrTreatmentNotFound
		}
		return bookingPlan{}, err
	}
	if !treatment.IsActive {
		return bookingPlan{}, fmt.Errorf("treatment %d: %w", treatment.ID, ErrInactive)
	}
	if !canPerform(prof, treatment.ID) {
		return bookingPlan{}, ErrTreatmentNotOffered
	}

	date, err := schedule.ParseDate(req.Date, clinic.Location())
	if err != nil {
		return bookingPlan{}, err
	}
	start, err := schedule.ParseClock(req.StartTime)
	if err != nil {
		return bookingPlan{}, err
	}
	dateKey := date.Format(schedule.DateLayout)

	manager, err := loadScheduleManager(tx, clinic, prof.ID, dateKey)
	if err != nil {
		return bookingPlan{}, err
	}
	earliest, ok := manager.Bookable(date, clinic.Now())
	if !ok || start < earliest {
		return bookingPlan{}, ErrOutsideBookingWindow
	}
	end, err := start.Add(treatment.DurationMinutes)
	if err != nil || !manager.Fits(date, start, treatment.DurationMinutes) {
		return bookingPlan{}, ErrOutsideWorkingHours
	}
	slot := schedule.Block{Start: start, End: end}

	busy, err := busyIntervals(tx, "professional_id", prof.ID, dateKey, req.ExcludeAppointmentID)
	if err != nil {
		return bookingPlan{}, err
	}
	if overlapsAny(slot, busy) {
		return bookingPlan{}, ErrSlotUnavailable
	}
	busy, err = busyIntervals(tx, "client_id", client.ID, dateKey, req.ExcludeAppointmentID)
	if err != nil {
		return bookingPlan{}, err
	}
	if overlapsAny(slot, busy) {
		return bookingPlan{}, ErrClientBusy
	}

	plan := bookingPlan{}
	conflicts := util.Intersect(util.SplitCSV(treatment.Restrictions), util.SplitCSV(client.MedicalConditions))
	if len(conflicts) > 0 {
		if !req.OverrideRestrictions {
			return bookingPlan{}, &RestrictionError{Conditions: conflicts}
		}
		plan.Overridden = conflicts
	}

	plan.Appointment = model.Appointment{
		ClientID:       client.ID,
		ProfessionalID: prof.ID,
		TreatmentID:    treatment.ID,
		Date:           dateKey,
		StartTime:      start.String(),
		EndTime:        end.String(),
		Status:         model.StatusScheduled,
		Price:          treatment.Price,
		Notes:          strings.TrimSpace(req.Notes),

		OverrideRestrictions: len(plan.Overridden) > 0,
	}
	return plan, nil
}

func overlapsAny(b schedule.Block, others []schedule.Interval) bool {
	for _, o := range others {
		if schedule.Overlaps(b, o) {
			return true
		}
	}
	return false
}

// respondBookingError maps booking and appointment errors to the envelope.
func respondBookingError(c *gin.Context, err error) {
	var restricted *RestrictionError
	switch {
	case errors.As(err, &restricted):
		util.CallConflict(c, util.APIErrorParams{
			Msg:  "Treatment is not allowed for this client",
			Err:  err,
			Data: map[string]interface{}{"conditions": restricted.Conditions},
		})
	case errors.Is(err, ErrClientNotFound), errors.Is(err, ErrProfessionalNotFound),
		errors.Is(err, ErrTreatmentNotFound), errors.Is(err, ErrAppointmentNotFound):
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: capitalize(err.Error()), Err: err})
	case errors.Is(err, schedule.ErrInvalidDate), errors.Is(err, schedule.ErrInvalidClock):
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid date or start time", Err: err})
	case errors.Is(err, ErrOutsideBookingWindow), errors.Is(err, ErrTreatmentNotOffered),
		errors.Is(err, ErrInactive):
		util.CallUserError(c, util.APIErrorParams{Msg: capitalize(err.Error()), Err: err})
	case errors.Is(err, ErrOutsideWorkingHours), errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrClientBusy), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNotCancellable), errors.Is(err, ErrCancelNoticeTooShort),
		errors.Is(err, ErrNotReschedulable):
		util.CallConflict(c, util.APIErrorParams{Msg: capitalize(err.Error()), Err: err})
	default:
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to save appointment", Err: err})
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// bookAppointment runs planBooking and stores the result in one transaction,
// then publishes the created event.
func bookAppointment(c *gin.Context, db *gorm.DB, req bookingRequest) (model.Appointment, error) {
	clinic := middleware.GetClinic(c)
	var plan bookingPlan
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if plan, err = planBooking(tx, clinic, req); err != nil {
			return err
		}
		return tx.Create(&plan.Appointment).Error
	})
	if err != nil {
		return model.Appointment{}, err
	}

	logOverride(c, plan)
	notify.Publish(c.Request.Context(), notify.NewEvent(notify.EventCreated, plan.Appointment))
	return plan.Appointment, nil
}

// logOverride writes the security event for a plan that bypassed restrictions.
func logOverride(c *gin.Context, plan bookingPlan) {
	if len(plan.Overridden) == 0 {
		return
	}
	adminID, _ := middleware.GetUserID(c)
	util.LogRestrictionOverride(util.RestrictionOverrideParams{
		AdminID:     adminID,
		IP:          c.ClientIP(),
		ClientID:    plan.Appointment.ClientID,
		TreatmentID: plan.Appointment.TreatmentID,
		Conditions:  plan.Overridden,
	})
}

// CreateAppointment godoc
// @Summary      Book an appointment for a client
// @Description  Admin booking. Checks working hours, overlaps and medical restrictions; override_restrictions lets an admin book despite conflicting conditions.
// @Tags         Appointment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        appointment body model.AppointmentRequest true "Appointment"
// @Success      201 {object} util.APIResponse{data=model.Appointment} "Appointment created"
// @Failure      400 {object} util.APIResponse "Invalid request"
// @Failure      404 {object} util.APIResponse "Client, professional or treatment not found"
// @Failure      409 {object} util.APIResponse "Slot taken or treatment restricted"
// @Router       /appointment [post]
func CreateAppointment(c *gin.Context) {
	var req model.AppointmentRequest
	if !bindJSONOrRespond(c, &req, "Invalid appointment request") {
		return
	}
	if req.ClientID == 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "client_id is required", Err: fmt.Errorf("missing client_id")})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	appt, err := bookAppointment(c, db, bookingRequest{
		ClientID:             req.ClientID,
		ProfessionalID:       req.ProfessionalID,
		TreatmentID:          req.TreatmentID,
		Date:                 req.Date,
		StartTime:            req.StartTime,
		Notes:                req.Notes,
		OverrideRestrictions: req.OverrideRestrictions,
	})
	if err != nil {
		respondBookingError(c, err)
		return
	}
	util.CallCreated(c, util.APISuccessParams{Msg: "Appointment created", Data: appt})
}

// appointmentFilter holds the list query of GET /appointment.
type appointmentFilter struct {
	Date           string
	DateFrom       string
	DateTo         string
	ProfessionalID uint
	ClientID       uint
	Status         model.AppointmentStatus
	Keyword        string
	// Split, when set, keeps one side of the history at that moment.
	Split          *historySplit
}

// historySplit divides a history at a clinic date and clock. Upcoming holds
// open appointments that have not started; the past side holds the rest.
type historySplit struct {
	Today    string
	Clock    string
	Upcoming bool
}

func (s historySplit) apply(q *gorm.DB) *gorm.DB {
	cond := "appointments.status IN ? AND (appointments.date > ? OR (appointments.date = ? AND appointments.start_time >= ?))"
	if !s.Upcoming {
		cond = "NOT (" + cond + ")"
	}
	return q.Where(cond, model.OpenStatuses, s.Today, s.Today, s.Clock)
}

func parseAppointmentFilter(c *gin.Context) (appointmentFilter, error) {
	f := appointmentFilter{
		Date:     strings.TrimSpace(c.Query("date")),
		DateFrom: strings.TrimSpace(c.Query("date_from")),
		DateTo:   strings.TrimSpace(c.Query("date_to")),
		Status:   model.AppointmentStatus(strings.TrimSpace(c.Query("status"))),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	}
	for _, d := range []string{f.Date, f.DateFrom, f.DateTo} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(schedule.DateLayout, d); err != nil {
			return f, fmt.Errorf("%w: %q", schedule.ErrInvalidDate, d)
		}
	}
	if f.Status != "" && !model.ValidStatus(f.Status) {
		return f, fmt.Errorf("unknown status %q", f.Status)
	}
	var ok bool
	if v := c.Query("professional_id"); v != "" {
		if f.ProfessionalID, ok = util.ParseUintParam(v); !ok {
			return f, fmt.Errorf("invalid professional_id")
		}
	}
	if v := c.Query("client_id"); v != "" {
		if f.ClientID, ok = util.ParseUintParam(v); !ok {
			return f, fmt.Errorf("invalid client_id")
		}
	}
	return f, nil
}

func (f appointmentFilter) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("appointments.deleted_at IS NULL")
	if f.Date != "" {
		q = q.Where("appointments.date = ?", f.Date)
	}
	if f.DateFrom != "" {
		q = q.Where("appointments.date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		q = q.Where("appointments.date <= ?", f.DateTo)
	}
	if f.ProfessionalID != 0 {
		q = q.Where("appointments.professional_id = ?", f.ProfessionalID)
	}
	if f.ClientID != 0 {
		q = q.Where("appointments.client_id = ?", f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("appointments.status = ?", f.Status)
	}
	if f.Split != nil {
		q = f.Split.apply(q)
	}
	if f.Keyword != "" {
		like := "%" + f.Keyword + "%"
		q = q.Where("clients.full_name LIKE ? OR clients.client_code = ? OR treatments.name LIKE ?", like, f.Keyword, like)
	}
	return q
}

func appointmentListQuery(db *gorm.DB) *gorm.DB {
	return db.Table("appointments").
		Joins("LEFT JOIN clients ON clients.id = appointments.client_id").
		Joins("LEFT JOIN professionals ON professionals.id = appointments.professional_id").
		Joins("LEFT JOIN treatments ON treatments.id = appointments.treatment_id")
}

// fetchAppointments returns one page of appointments matching f, ordered by
// date and start time, and the total count.
func fetchAppointments(db *gorm.DB, f appointmentFilter, order string, limit, offset int) ([]model.ListAppointmentResponse, int64, error) {
	var rows []model.ListAppointmentResponse
	query := f.apply(appointmentListQuery(db)).
		Select("appointments.*, clients.full_name as client_name, professionals.full_name as professional_name, treatments.name as treatment_name").
		Order("appointments.date " + order).
		Order("appointments.start_time " + order)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	var total int64
	if err := f.apply(appointmentListQuery(db)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListAppointments godoc
// @Summary      List appointments
// @Description  Filters by date, date range, professional, client, status and keyword (client name or code, treatment name).
// @Tags         Appointment
// @Produce      json
// @Security     SessionToken
// @Param        date query string false "Exact date (YYYY-MM-DD)"
// @Param        date_from query string false "From date (inclusive)"
// @Param        date_to query string false "To date (inclusive)"
// @Param        professional_id query int false "Professional ID"
// @Param        client_id query int false "Client ID"
// @Param        status query string false "Status"
// @Param        keyword query string false "Keyword"
// @Param        sort_dir query string false "asc or desc"
// @Param        page query int false "Page"
// @Param        limit query int false "Limit"
// @Success      200 {object} util.APIResponse "Appointments"
// @Failure      400 {object} util.APIResponse "Invalid filter"
// @Router       /appointment [get]
func ListAppointments(c *gin.Context) {
	filter, err := parseAppointmentFilter(c)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid appointment filter", Err: err})
		return
	}
	page, limit, offset := util.Pagination(c)
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	rows, total, err := fetchAppointments(db, filter, orderDirection(c.DefaultQuery("sort_dir", "asc")), limit, offset)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve appointments", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Appointments retrieved",
		Data: listResponse("appointments", rows, total, page, limit, len(rows)),
	})
}

func fetchAppointmentDetail(db *gorm.DB, id uint) (model.ListAppointmentResponse, error) {
	var row model.ListAppointmentResponse
	err := appointmentListQuery(db).
		Select("appointments.*, clients.full_name as client_name, professionals.full_name as professional_name, treatments.name as treatment_name").
		Where("appointments.id = ? AND appointments.deleted_at IS NULL", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, ErrAppointmentNotFound
	}
	return row, err
}

// GetAppointment godoc
// @Summary      Get appointment
// @Tags         Appointment
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Success      200 {object} util.APIResponse{data=model.ListAppointmentResponse} "Appointment"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Router       /appointment/{id} [get]
func GetAppointment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	row, err := fetchAppointmentDetail(db, id)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment retrieved", Data: row})
}

type UpdateStatusRequest struct {
	Status model.AppointmentStatus `json:"status" binding:"required" example:"confirmed"`
	Reason string                  `json:"reason" example:"Client called to cancel"`
}

// changeStatus moves the appointment to next if the transition is legal.
func changeStatus(db *gorm.DB, id uint, next model.AppointmentStatus, reason string, now time.Time) (model.Appointment, error) {
	var appt model.Appointment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := lockedFirst(tx, &appt, id, ErrAppointmentNotFound); err != nil {
			return err
		}
		if !appt.CanTransitionTo(next) {
			if next == model.StatusCancelled {
				return ErrNotCancellable
			}
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, appt.Status, next)
		}
		updates := map[string]interface{}{"status": next}
		if next == model.StatusCancelled {
			updates["cancelled_at"] = now
			updates["cancellation_reason"] = strings.TrimSpace(reason)
		}
		if err := tx.Model(&appt).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&appt, id).Error
	})
	return appt, err
}

func publishStatusChange(c *gin.Context, appt model.Appointment) {
	t := notify.EventStatusChanged
	if appt.Status == model.StatusCancelled {
		t = notify.EventCancelled
	}
	notify.Publish(c.Request.Context(), notify.NewEvent(t, appt))
}

// UpdateAppointmentStatus godoc
// @Summary      Change appointment status
// @Description  Allowed: scheduled to confirmed, completed, cancelled or no_show; confirmed to completed, cancelled or no_show.
// @Tags         Appointment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Param        status body UpdateStatusRequest true "New status"
// @Success      200 {object} util.APIResponse{data=model.Appointment} "Status updated"
// @Failure      400 {object} util.APIResponse "Unknown status"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Failure      409 {object} util.APIResponse "Transition not allowed"
// @Router       /appointment/{id}/status [patch]
func UpdateAppointmentStatus(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSONOrRespond(c, &req, "Invalid status request") {
		return
	}
	if !model.ValidStatus(req.Status) {
		util.CallUserError(c, util.APIErrorParams{Msg: "Unknown status", Err: fmt.Errorf("status %q", req.Status)})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	appt, err := changeStatus(db, id, req.Status, req.Reason, middleware.GetClinic(c).Now())
	if err != nil {
		respondBookingError(c, err)
		return
	}
	publishStatusChange(c, appt)
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment status updated", Data: appt})
}

type CancelRequest struct {
	Reason string `json:"reason" example:"Schedule conflict"`
}

// CancelAppointment godoc
// @Summary      Cancel appointment
// @Tags         Appointment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Param        body body CancelRequest false "Reason"
// @Success      200 {object} util.APIResponse{data=model.Appointment} "Appointment cancelled"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Failure      409 {object} util.APIResponse "Appointment can no longer be cancelled"
// @Router       /appointment/{id}/cancel [patch]
func CancelAppointment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	// body is optional
	_ = c.ShouldBindJSON(&req)
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	appt, err := changeStatus(db, id, model.StatusCancelled, req.Reason, middleware.GetClinic(c).Now())
	if err != nil {
		respondBookingError(c, err)
		return
	}
	publishStatusChange(c, appt)
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment cancelled", Data: appt})
}

type RescheduleRequest struct {
	ProfessionalID uint   `json:"professional_id" example:"2"`
	Date           string `json:"date" binding:"required,date" example:"2026-11-04"`
	StartTime      string `json:"start_time" binding:"required,clock" example:"15:00"`
	Notes          string `json:"notes"`

	// OverrideRestrictions bypasses restricted conditions for this move. An
	// appointment booked with an override keeps it.
	OverrideRestrictions bool `json:"override_restrictions"`
}

// RescheduleAppointment godoc
// @Summary      Move an appointment
// @Description  Re-runs every booking check for the new date and time, ignoring the appointment itself. The professional may change too. Medical restrictions are checked again unless the appointment was booked with an override or override_restrictions is set.
// @Tags         Appointment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Param        body body RescheduleRequest true "New date and time"
// @Success      200 {object} util.APIResponse{data=model.Appointment} "Appointment rescheduled"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Failure      409 {object} util.APIResponse "Slot taken or treatment restricted"
// @Router       /appointment/{id}/reschedule [patch]
func RescheduleAppointment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	var req RescheduleRequest
	if !bindJSONOrRespond(c, &req, "Invalid reschedule request") {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	clinic := middleware.GetClinic(c)

	var appt model.Appointment
	var plan bookingPlan
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := lockedFirst(tx, &appt, id, ErrAppointmentNotFound); err != nil {
			return err
		}
		if !appt.CanBeCancelled() {
			return ErrNotReschedulable
		}
		profID := appt.ProfessionalID
		if req.ProfessionalID != 0 {
			profID = req.ProfessionalID
		}
		notes := appt.Notes
		if strings.TrimSpace(req.Notes) != "" {
			notes = req.Notes
		}
		var err error
		plan, err = planBooking(tx, clinic, bookingRequest{
			ClientID:             appt.ClientID,
			ProfessionalID:       profID,
			TreatmentID:          appt.TreatmentID,
			Date:                 req.Date,
			StartTime:            req.StartTime,
			Notes:                notes,
			OverrideRestrictions: appt.OverrideRestrictions || req.OverrideRestrictions,
			ExcludeAppointmentID: appt.ID,
		})
		if err != nil {
			return err
		}
		err = tx.Model(&appt).Updates(map[string]interface{}{
			"professional_id":       plan.Appointment.ProfessionalID,
			"date":                  plan.Appointment.Date,
			"start_time":            plan.Appointment.StartTime,
			"end_time":              plan.Appointment.EndTime,
			"notes":                 plan.Appointment.Notes,
			"override_restrictions": plan.Appointment.OverrideRestrictions,
		}).Error
		if err != nil {
			return err
		}
		return tx.First(&appt, id).Error
	})
	if err != nil {
		respondBookingError(c, err)
		return
	}
	logOverride(c, plan)
	notify.Publish(c.Request.Context(), notify.NewEvent(notify.EventRescheduled, appt))
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment rescheduled", Data: appt})
}

// DeleteAppointment godoc
// @Summary      Delete appointment
// @Description  Soft-deletes an appointment entered by mistake. Use cancel for real cancellations.
// @Tags         Appointment
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Success      200 {object} util.APIResponse "Appointment deleted"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Router       /appointment/{id} [delete]
func DeleteAppointment(c *gin.Context) {
	id, ok := idParamOrRespond(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	var appt model.Appointment
	if !findByIDOrRespond(c, db, &appt, id, "Appointment") {
		return
	}
	if err := db.Delete(&appt).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete appointment", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment deleted", Data: map[string]interface{}{"id": id}})
}
