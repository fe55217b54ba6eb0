// internal/listing/seed.go
package listing

import (
	"fmt"
	"log"

	"listings-service/pkg/models"

	"gorm.io/gorm"
)

// seedCitationSites populates the catalog of citation directories the
// dashboard tracks. Existing rows are left untouched.
func seedCitationSites(db *gorm.DB) error {
	sites := []models.CitationSite{
		{Name: "Google Business Profile", Domain: "google.com", Authority: 100, Tier: "core"},
		{Name: "Yelp", Domain: "yelp.com", Authority: 93, Tier: "core"},
		{Name: "Facebook", Domain: "facebook.com", Authority: 96, Tier: "core"},
		{Name: "Apple Maps", Domain: "maps.apple.com", Authority: 97, Tier: "core"},
		{Name: "Bing Places", Domain: "bing.com", Authority: 94, Tier: "core"},
		{Name: "Foursquare", Domain: "foursquare.com", Authority: 92, Tier: "standard"},
		{Name: "Yellow Pages", Domain: "yellowpages.com", Authority: 90, Tier: "standard"},
		{Name: "Better Business Bureau", Domain: "bbb.org", Authority: 91, Tier: "standard"},
		{Name: "Angi", Domain: "angi.com", Authority: 89, Tier: "standard"},
		{Name: "TripAdvisor", Domain: "tripadvisor.com", Authority: 93, Tier: "standard"},
		{Name: "Nextdoor", Domain: "nextdoor.com", Authority: 88, Tier: "standard"},
		{Name: "MapQuest", Domain: "mapquest.com", Authority: 86, Tier: "standard"},
		{Name: "Hotfrog", Domain: "hotfrog.com", Authority: 68, Tier: "extended"},
		{Name: "Brownbook", Domain: "brownbook.net", Authority: 62, Tier: "extended"},
		{Name: "Cylex", Domain: "cylex.us.com", Authority: 58, Tier: "extended"},
		{Name: "Chamber of Commerce", Domain: "chamberofcommerce.com", Authority: 73, Tier: "extended"},
	}

	for _, site := range sites {
		var count int64
		db.Model(&models.CitationSite{}).
			Where("domain = ?", site.Domain).
			Count(&count)

		if count == 0 {
			if err := db.Create(&site).Error; err != nil {
				return fmt.Errorf("failed to seed citation site %s: %w", site.Domain, err)
			}
			log.Printf("✅ Seeded citation site: %s", site.Domain)
		}
	}
	return nil
}
