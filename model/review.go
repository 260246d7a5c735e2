package model

import "gorm.io/gorm"

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Review is a client's feedback on a completed appointment. Only approved reviews are public.
type Review struct {
	gorm.Model
	AppointmentID  uint         `json:"appointment_id" gorm:"not null;uniqueIndex"`
	ClientID       uint         `json:"client_id" gorm:"not null;index"`
	ProfessionalID uint         `json:"professional_id" gorm:"not null;index"`
	TreatmentID    uint         `json:"treatment_id" gorm:"index"`
	Rating         int          `json:"rating" gorm:"not null" example:"5"`
	Comment        string       `json:"comment" gorm:"type:text"`
	Status         ReviewStatus `json:"status" gorm:"type:varchar(16);not null;default:pending;index"`
	ModerationNote string       `json:"moderation_note,omitempty"`
}
