package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Role IDs are fixed; users reference them directly.
const (
	RoleAdmin        uint32 = 1
	RoleProfessional uint32 = 2
	RoleClient       uint32 = 3
)

var roleNames = map[uint32]string{
	RoleAdmin:        "Admin",
	RoleProfessional: "Professional",
	RoleClient:       "Client",
}

type Role struct {
	gorm.Model
	ID   uint32 `gorm:"primary_key;auto_increment" json:"id"`
	Name string `gorm:"type:varchar(100);not null" json:"name"`
}

// IsKnownRole reports whether id is one of the seeded roles.
func IsKnownRole(id uint32) bool {
	_, ok := roleNames[id]
	return ok
}

// SeedRoles inserts any missing role row. Existing rows are left untouched.
func SeedRoles(db *gorm.DB) error {
	for _, id := range []uint32{RoleAdmin, RoleProfessional, RoleClient} {
		role := Role{ID: id, Name: roleNames[id]}
		if err := db.Where("id = ?", id).Attrs(role).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", roleNames[id], err)
		}
	}
	return nil
}
