package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceToken registers an FCM token for ops alert pushes. UserID is the
// Supabase auth user id (UUID as string).
type DeviceToken struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);index;not null"`
	Token     string    `json:"token" gorm:"type:varchar(255);uniqueIndex;not null"`
	Platform  string    `json:"platform" gorm:"type:varchar(20);not null;default:'web'"` // "web", "ios", "android"
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for DeviceToken
func (DeviceToken) TableName() string {
	return "device_tokens"
}

// DeviceTokenRequest is the API input for device registration
type DeviceTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}
