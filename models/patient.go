package models

import "time"

// Patient extends a User with role patient. Deleted with its user.
type Patient struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"-" gorm:"uniqueIndex;not null"`
	User          User      `json:"user" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	DateOfBirth   *Date     `json:"date_of_birth"`
	ContactNumber string    `json:"contact_number" gorm:"size:64"`
	Address       string    `json:"address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
