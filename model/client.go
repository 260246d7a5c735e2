package model

import "gorm.io/gorm"

// Client represents a clinic customer
// @Description Client information
type Client struct {
	gorm.Model
	UserID            *uint  `json:"user_id,omitempty" gorm:"index"`
	ClientCode        string `json:"client_code" gorm:"type:varchar(32);uniqueIndex" example:"M12"`
	FullName          string `json:"full_name" gorm:"type:varchar(191);not null" example:"María López"`
	Email             string `json:"email" gorm:"type:varchar(191);index" example:"maria@example.com"`
	PhoneNumber       string `json:"phone_number" gorm:"type:varchar(64)" example:"3515551234"`
	DateOfBirth       string `json:"date_of_birth" gorm:"type:varchar(10)" example:"1990-04-21"`
	Gender            string `json:"gender" gorm:"type:varchar(32)" example:"Female"`
	Address           string `json:"address" example:"Av. Colón 123"`
	MedicalConditions string `json:"medical_conditions" example:"pregnancy,diabetes"`
	Allergies         string `json:"allergies" example:"lidocaine"`
	Medications       string `json:"medications" example:"isotretinoin"`
	Notes             string `json:"notes" gorm:"type:text"`
	IsActive          bool   `json:"is_active"`
}

// ClientRequest is the payload used to create or update a client.
// Empty fields are ignored on update.
type ClientRequest struct {
	FullName          string   `json:"full_name" example:"María López"`
	Email             string   `json:"email" binding:"omitempty,email" example:"maria@example.com"`
	PhoneNumber       string   `json:"phone_number" example:"3515551234"`
	DateOfBirth       string   `json:"date_of_birth" binding:"omitempty,date" example:"1990-04-21"`
	Gender            string   `json:"gender" example:"Female"`
	Address           string   `json:"address" example:"Av. Colón 123"`
	MedicalConditions []string `json:"medical_conditions" example:"pregnancy,diabetes"`
	Allergies         []string `json:"allergies" example:"lidocaine"`
	Medications       []string `json:"medications" example:"isotretinoin"`
	Notes             string   `json:"notes"`
	ClientCode        string   `json:"client_code,omitempty" example:"M12"`
	IsActive          *bool    `json:"is_active,omitempty"`
}

// ClientCode holds the last sequence number handed out per initial letter.
type ClientCode struct {
	gorm.Model
	Alphabet string `json:"alphabet" gorm:"size:1;uniqueIndex"`
	Number   int    `json:"number"`
	Code     string `json:"code" gorm:"size:191"`
}
