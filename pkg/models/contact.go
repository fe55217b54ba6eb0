package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Contact is the local mirror of a HubSpot CRM contact. HubSpot owns the
// record; rows here exist so dashboard reads never hit the vendor API.
type Contact struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	HubspotID string    `json:"hubspot_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	// Core CRM properties (flattened for querying)
	Email          string  `json:"email" gorm:"type:varchar(255);index"`
	FirstName      string  `json:"first_name" gorm:"type:varchar(100)"`
	LastName       string  `json:"last_name" gorm:"type:varchar(100)"`
	Phone          *string `json:"phone,omitempty" gorm:"type:varchar(50)"`
	CompanyName    *string `json:"company_name,omitempty" gorm:"type:varchar(255)"`
	LifecycleStage *string `json:"lifecycle_stage,omitempty" gorm:"type:varchar(50)"`
	// Full property payload as returned by HubSpot
	Properties datatypes.JSON `json:"properties,omitempty" gorm:"type:jsonb"`
	// HubSpot-side timestamps; HSUpdatedAt decides upsert staleness
	HSCreatedAt time.Time `json:"hs_created_at"`
	HSUpdatedAt time.Time `json:"hs_updated_at" gorm:"index"`
	// Local timestamps
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Contact
func (Contact) TableName() string {
	return "contacts"
}

// FullName joins first/last for display and email templates.
func (c *Contact) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

// ContactRequest is the API input for create and dual-write update
type ContactRequest struct {
	Email          string  `json:"email"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Phone          *string `json:"phone,omitempty"`
	CompanyName    *string `json:"company_name,omitempty"`
	LifecycleStage *string `json:"lifecycle_stage,omitempty"`
}

// HubspotProperties maps the request onto HubSpot internal property names.
func (r *ContactRequest) HubspotProperties() map[string]string {
	props := map[string]string{}
	if r.Email != "" {
		props["email"] = r.Email
	}
	if r.FirstName != "" {
		props["firstname"] = r.FirstName
	}
	if r.LastName != "" {
		props["lastname"] = r.LastName
	}
	if r.Phone != nil {
		props["phone"] = *r.Phone
	}
	if r.CompanyName != nil {
		props["company"] = *r.CompanyName
	}
	if r.LifecycleStage != nil {
		props["lifecyclestage"] = *r.LifecycleStage
	}
	return props
}
