package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountProvider string

const (
	ProviderGoogleBusiness AccountProvider = "google_my_business"
)

// ConnectedAccount tracks an OAuth connection held at the Pipedream proxy.
// AccountID is the proxy-assigned id ("apn_..."); the proxy keeps the
// tokens, we keep the health state.
type ConnectedAccount struct {
	ID             uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AccountID      string          `json:"account_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	Provider       AccountProvider `json:"provider" gorm:"type:varchar(50);not null;default:'google_my_business'"`
	ExternalUserID string          `json:"external_user_id" gorm:"type:varchar(100);index;not null"` // our key at the proxy
	Label          *string         `json:"label,omitempty" gorm:"type:varchar(255)"`                 // connected Google account email
	// Health
	Healthy       bool       `json:"healthy" gorm:"not null;default:true"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty" gorm:"type:text"`
	// Timestamps
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for ConnectedAccount
func (ConnectedAccount) TableName() string {
	return "connected_accounts"
}
