package models

import "time"

// Provider extends a User with role provider. Deleted with its user.
type Provider struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"-" gorm:"uniqueIndex;not null"`
	User          User      `json:"user" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Specialty     string    `json:"specialty" gorm:"size:128"`
	LicenseNumber string    `json:"license_number" gorm:"size:128"`
	ContactNumber string    `json:"contact_number" gorm:"size:64"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
