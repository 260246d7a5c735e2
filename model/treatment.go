package model

import "gorm.io/gorm"

// Treatment represents a bookable service
// @Description Treatment information
type Treatment struct {
	gorm.Model
	Name            string  `json:"name" gorm:"type:varchar(191);not null" example:"Limpieza facial profunda"`
	Description     string  `json:"description" gorm:"type:text"`
	Category        string  `json:"category" gorm:"type:varchar(64);index" example:"Facial"`
	Price           float64 `json:"price" example:"25000"`
	DurationMinutes int     `json:"duration_minutes" gorm:"not null" example:"60"`
	// Restrictions lists medical condition codenames that make the treatment unsafe.
	Restrictions string `json:"restrictions" example:"pregnancy,anticoagulants"`
	ImageURL     string `json:"image_url"`
	IsActive     bool   `json:"is_active"`
}

type TreatmentRequest struct {
	Name            string   `json:"name" example:"Limpieza facial profunda"`
	Description     string   `json:"description"`
	Category        string   `json:"category" example:"Facial"`
	Price           *float64 `json:"price,omitempty" binding:"omitempty,gte=0" example:"25000"`
	DurationMinutes int      `json:"duration_minutes" binding:"omitempty,gte=5,lte=480" example:"60"`
	Restrictions    []string `json:"restrictions"`
	IsActive        *bool    `json:"is_active,omitempty"`
}

// MedicalCondition is a catalog entry referenced by client profiles and treatment restrictions.
type MedicalCondition struct {
	gorm.Model
	Name        string `json:"name" gorm:"type:varchar(191);not null" example:"Embarazo"`
	Codename    string `json:"codename" gorm:"type:varchar(64);uniqueIndex;not null" example:"pregnancy"`
	Description string `json:"description" gorm:"type:text"`
}
