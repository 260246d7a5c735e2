package model

import (
	"time"

	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// InactiveStatuses are ignored when computing availability.
var InactiveStatuses = []AppointmentStatus{StatusCancelled, StatusNoShow}

// OpenStatuses are the statuses of an appointment that is still going to happen.
var OpenStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed}

var allowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// Appointment links a client, a professional and a treatment at a date and time
// @Description Appointment information
type Appointment struct {
	gorm.Model
	ClientID           uint              `json:"client_id" gorm:"not null;index"`
	ProfessionalID     uint              `json:"professional_id" gorm:"not null;index"`
	TreatmentID        uint              `json:"treatment_id" gorm:"not null;index"`
	Date               string            `json:"date" gorm:"type:varchar(10);not null;index" example:"2026-11-03"`
	StartTime          string            `json:"start_time" gorm:"type:varchar(5);not null" example:"10:30"`
	EndTime            string            `json:"end_time" gorm:"type:varchar(5);not null" example:"11:30"`
	Status             AppointmentStatus `json:"status" gorm:"type:varchar(32);not null;default:scheduled;index" example:"scheduled"`
	Price              float64           `json:"price" example:"25000"`
	Notes              string            `json:"notes" gorm:"type:text"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`

	// OverrideRestrictions is set when an admin booked despite restricted conditions.
	OverrideRestrictions bool `json:"override_restrictions" gorm:"not null;default:false"`
}

// IsActive reports whether the appointment still occupies its time slot.
func (a *Appointment) IsActive() bool {
	return a.Status != StatusCancelled && a.Status != StatusNoShow
}

func (a *Appointment) CanBeCancelled() bool {
	return a.Status == StatusScheduled || a.Status == StatusConfirmed
}

// CanTransitionTo reports whether next is a legal status after the current one.
func (a *Appointment) CanTransitionTo(next AppointmentStatus) bool {
	for _, s := range allowedTransitions[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// AppointmentRequest is the booking payload.
type AppointmentRequest struct {
	ClientID             uint   `json:"client_id" example:"1"`
	ProfessionalID       uint   `json:"professional_id" binding:"required" example:"1"`
	TreatmentID          uint   `json:"treatment_id" binding:"required" example:"1"`
	Date                 string `json:"date" binding:"required,date" example:"2026-11-03"`
	StartTime            string `json:"start_time" binding:"required,clock" example:"10:30"`
	Notes                string `json:"notes"`
	OverrideRestrictions bool   `json:"override_restrictions"`
}

// ListAppointmentResponse is an appointment row joined with display names.
type ListAppointmentResponse struct {
	Appointment
	ClientName       string `json:"client_name" gorm:"column:client_name"`
	ProfessionalName string `json:"professional_name" gorm:"column:professional_name"`
	TreatmentName    string `json:"treatment_name" gorm:"column:treatment_name"`
}
