package model

import "gorm.io/gorm"

// Professional represents a staff member performing treatments
// @Description Professional information
type Professional struct {
	gorm.Model
	UserID      *uint  `json:"user_id,omitempty" gorm:"index"`
	FullName    string `json:"full_name" gorm:"type:varchar(191);not null" example:"Lic. Ana Torres"`
	Email       string `json:"email" gorm:"type:varchar(191);index" example:"ana@dhermica.com"`
	PhoneNumber string `json:"phone_number" gorm:"type:varchar(64)" example:"3515550000"`
	Specialty   string `json:"specialty" gorm:"type:varchar(191)" example:"Cosmiatra"`
	Bio         string `json:"bio" gorm:"type:text"`
	// TreatmentIDs is a comma-separated list; empty means the professional can perform any treatment.
	TreatmentIDs string `json:"treatment_ids" example:"1,2,5"`
	IsActive     bool   `json:"is_active"`
}

// WorkingHour is one weekly working block of a professional.
type WorkingHour struct {
	gorm.Model
	ProfessionalID uint   `json:"professional_id" gorm:"not null;index"`
	Weekday        int    `json:"weekday" gorm:"not null" example:"1"`
	StartTime      string `json:"start_time" gorm:"type:varchar(5);not null" example:"09:00"`
	EndTime        string `json:"end_time" gorm:"type:varchar(5);not null" example:"13:00"`
}

// ScheduleException overrides a professional's weekly hours on a single date.
type ScheduleException struct {
	gorm.Model
	ProfessionalID uint   `json:"professional_id" gorm:"not null;index"`
	Date           string `json:"date" gorm:"type:varchar(10);not null;index" example:"2026-12-24"`
	IsDayOff       bool   `json:"is_day_off"`
	StartTime      string `json:"start_time,omitempty" gorm:"type:varchar(5)" example:"10:00"`
	EndTime        string `json:"end_time,omitempty" gorm:"type:varchar(5)" example:"14:00"`
	Reason         string `json:"reason" example:"Holiday"`
}

type ProfessionalRequest struct {
	FullName     string `json:"full_name" example:"Lic. Ana Torres"`
	Email        string `json:"email" binding:"omitempty,email" example:"ana@dhermica.com"`
	PhoneNumber  string `json:"phone_number" example:"3515550000"`
	Specialty    string `json:"specialty" example:"Cosmiatra"`
	Bio          string `json:"bio"`
	TreatmentIDs []uint `json:"treatment_ids"`
	IsActive     *bool  `json:"is_active,omitempty"`
	UserID       *uint  `json:"user_id,omitempty"`
}
