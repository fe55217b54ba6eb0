package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Company mirrors a HubSpot CRM company record.
type Company struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	HubspotID string    `json:"hubspot_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(255);index"`
	Domain    *string   `json:"domain,omitempty" gorm:"type:varchar(255)"`
	Phone     *string   `json:"phone,omitempty" gorm:"type:varchar(50)"`
	City      *string   `json:"city,omitempty" gorm:"type:varchar(100)"`
	State     *string   `json:"state,omitempty" gorm:"type:varchar(100)"`
	Industry  *string   `json:"industry,omitempty" gorm:"type:varchar(100)"`
	// Full property payload as returned by HubSpot
	Properties  datatypes.JSON `json:"properties,omitempty" gorm:"type:jsonb"`
	HSCreatedAt time.Time      `json:"hs_created_at"`
	HSUpdatedAt time.Time      `json:"hs_updated_at" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Company
func (Company) TableName() string {
	return "companies"
}

// CompanyRequest is the API input for the dual-write company update
type CompanyRequest struct {
	Name     string  `json:"name"`
	Domain   *string `json:"domain,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	City     *string `json:"city,omitempty"`
	State    *string `json:"state,omitempty"`
	Industry *string `json:"industry,omitempty"`
}

// HubspotProperties maps the request onto HubSpot internal property names.
func (r *CompanyRequest) HubspotProperties() map[string]string {
	props := map[string]string{}
	if r.Name != "" {
		props["name"] = r.Name
	}
	if r.Domain != nil {
		props["domain"] = *r.Domain
	}
	if r.Phone != nil {
		props["phone"] = *r.Phone
	}
	if r.City != nil {
		props["city"] = *r.City
	}
	if r.State != nil {
		props["state"] = *r.State
	}
	if r.Industry != nil {
		props["industry"] = *r.Industry
	}
	return props
}
