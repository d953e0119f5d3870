package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RolePatient  Role = "patient"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Username     string     `json:"username" gorm:"size:150;uniqueIndex;not null"`
	Email        string     `json:"email" gorm:"size:254"`
	FirstName    string     `json:"first_name" gorm:"size:150"`
	LastName     string     `json:"last_name" gorm:"size:150"`
	Role         Role       `json:"role" gorm:"size:20;not null"`
	IsActive     bool       `json:"is_active" gorm:"not null"`
	IsStaff      bool       `json:"is_staff" gorm:"not null"`
	Password     string     `json:"-" gorm:"size:255"`
	OTPCode      string     `json:"-" gorm:"column:otp_code;size:6"`
	OTPExpiresAt *time.Time `json:"-" gorm:"column:otp_expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RolePatient
	}
	return nil
}

// FullName joins first and last name; empty when both are blank.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName is the full name, falling back to the username.
func (u *User) DisplayName() string {
	if n := u.FullName(); n != "" {
		return n
	}
	return u.Username
}

// IsElevated reports whether the user may perform staff-only writes.
func (u *User) IsElevated() bool {
	return u.IsStaff || u.Role == RoleAdmin
}

// OTPState is the pending one-time-password state of a user: either
// NoActiveCode or PendingCode.
type OTPState interface {
	otpState()
}

type NoActiveCode struct{}

type PendingCode struct {
	Code      string
	ExpiresAt time.Time
}

func (NoActiveCode) otpState() {}
func (PendingCode) otpState()  {}

// Expired reports whether the code is past its expiry at now.
func (p PendingCode) Expired(now time.Time) bool {
	return p.ExpiresAt.Before(now)
}

// OTP decodes the stored column pair. A half-set pair counts as no code.
func (u *User) OTP() OTPState {
	if u.OTPCode == "" || u.OTPExpiresAt == nil {
		return NoActiveCode{}
	}
	return PendingCode{Code: u.OTPCode, ExpiresAt: *u.OTPExpiresAt}
}

// SetOTP writes both columns together so they never disagree.
func (u *User) SetOTP(state OTPState) {
	switch s := state.(type) {
	case PendingCode:
		exp := s.ExpiresAt
		u.OTPCode = s.Code
		u.OTPExpiresAt = &exp
	default:
		u.OTPCode = ""
		u.OTPExpiresAt = nil
	}
}
