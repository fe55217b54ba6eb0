// internal/listing/db.go
package listing

import (
	"fmt"
	"log"

	"listings-service/internal/config"
	"listings-service/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func InitDB(cfg *config.Config) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName, cfg.DBSSLMode,
	)

	var err error
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}

	// Auto-migrate (safe in dev; use migrations in prod)
	err = db.AutoMigrate(
		&models.SyncConfig{},
		&models.SyncRun{},
		&models.Contact{},
		&models.Company{},
		&models.ConnectedAccount{},
		&models.DeviceToken{},
		&models.CitationSite{},
	)
	if err != nil {
		log.Fatalf("❌ Failed to migrate: %v", err)
	}

	log.Println("✅ Listings DB connected & migrated")

	if err := seedCitationSites(db); err != nil {
		log.Printf("⚠️ Failed to seed citation site catalog: %v", err)
	} else {
		log.Println("✅ Citation site catalog seeded")
	}
}

func GetDB() *gorm.DB {
	return db
}
