package models

import (
	"time"

	"github.com/google/uuid"
)

// CitationSite is one directory in the citation catalog (Yelp, Foursquare,
// etc). Seeded at boot; campaign results reference sites by domain.
type CitationSite struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	Domain    string    `json:"domain" gorm:"type:varchar(255);uniqueIndex;not null"`
	Authority int       `json:"authority" gorm:"not null;default:0"` // 0-100 domain authority
	Tier      string    `json:"tier" gorm:"type:varchar(20);not null;default:'standard'"`
	Active    bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for CitationSite
func (CitationSite) TableName() string {
	return "citation_sites"
}
