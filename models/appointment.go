package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type ConsultationType string

const (
	ConsultationVideo ConsultationType = "video"
	ConsultationAudio ConsultationType = "audio"
	ConsultationChat  ConsultationType = "chat"
)

func (c ConsultationType) Valid() bool {
	switch c {
	case ConsultationVideo, ConsultationAudio, ConsultationChat:
		return true
	}
	return false
}

const DefaultDurationMinutes = 20

type Appointment struct {
	ID                  uint              `json:"id" gorm:"primaryKey"`
	PatientID           uint              `json:"-" gorm:"index;not null"`
	Patient             Patient           `json:"patient" gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE"`
	ProviderID          uint              `json:"-" gorm:"index;not null"`
	Provider            Provider          `json:"provider" gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE"`
	AppointmentDatetime time.Time         `json:"appointment_datetime" gorm:"not null;index"`
	DurationMinutes     int               `json:"duration_minutes" gorm:"not null"`
	Status              AppointmentStatus `json:"status" gorm:"size:20;not null"`
	ConsultationType    ConsultationType  `json:"consultation_type" gorm:"size:20;not null"`
	Notes               string            `json:"notes"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// EndsAt is the scheduled end of the consultation.
func (a *Appointment) EndsAt() time.Time {
	return a.AppointmentDatetime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	a.ApplyDefaults()
	return a.Validate()
}

// ApplyDefaults fills status, consultation type and duration when unset.
func (a *Appointment) ApplyDefaults() {
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.ConsultationType == "" {
		a.ConsultationType = ConsultationVideo
	}
	if a.DurationMinutes == 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
}

// Validate checks the enum and duration fields.
func (a *Appointment) Validate() error {
	if a.AppointmentDatetime.IsZero() {
		return fmt.Errorf("appointment_datetime is required")
	}
	if a.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("%q is not a valid status", a.Status)
	}
	if !a.ConsultationType.Valid() {
		return fmt.Errorf("%q is not a valid consultation_type", a.ConsultationType)
	}
	return nil
}
