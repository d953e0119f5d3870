package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is an append-only record of a request touching a sensitive or
// API path. The actor link is nulled when the user is deleted.
type AuditLog struct {
	ID          uint              `json:"id" gorm:"primaryKey"`
	ActorID     *uint             `json:"actor_id" gorm:"index"`
	Actor       *User             `json:"actor,omitempty" gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL"`
	Action      string            `json:"action" gorm:"size:128;not null"`
	TargetModel string            `json:"target_model" gorm:"size:128"`
	TargetID    string            `json:"target_id" gorm:"size:128"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	IPAddress   string            `json:"ip_address" gorm:"size:45"`
	UserAgent   string            `json:"user_agent"`
	CreatedAt   time.Time         `json:"created_at" gorm:"index"`
}
