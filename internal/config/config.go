// internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string

	// DB (Supabase Postgres)
	DBHost    string
	DBPort    string
	DBUser    string
	DBPass    string
	DBName    string
	DBSSLMode string

	// Supabase Auth
	SupabaseURL        string
	SupabaseServiceKey string

	// HubSpot
	HubspotAccessToken  string // private app token; empty when OAuth is used
	HubspotClientID     string
	HubspotClientSecret string
	HubspotRedirectURL  string
	HubspotRefreshToken string // seed for the OAuth refresh flow
	HubspotAPIBase      string

	// Pipedream Connect (Google Business Profile proxy)
	PipedreamProjectID      string
	PipedreamClientID       string
	PipedreamClientSecret   string
	PipedreamEnvironment    string // "development" | "production"
	PipedreamAPIBase        string
	PipedreamExternalUserID string // our key for the agency's accounts at the proxy

	// BrightLocal
	BrightLocalAPIKey  string
	BrightLocalAPIBase string

	// Sync
	SyncInterval     time.Duration // incremental sync cadence
	FullSyncHour     int           // local hour for the daily full sync
	SyncPageLimit    int
	SyncDisabled     bool

	// Service-to-service auth
	ServiceExpectedToken string

	// SMTP (ops alerts + reports)
	SMTPUser     string
	SMTPPass     string
	SMTPFrom     string
	SMTPHost     string
	SMTPPort     int
	SMTPFromName string
	AlertEmails  string // comma-separated recipients

	// R2 Storage (listing media)
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2BucketName      string
	R2PublicURL       string

	// CORS
	AllowedOrigins string

	// Dashboard base URL, used in alert email links
	DashboardURL string
}

func Load() *Config {
	if os.Getenv("ENV") != "production" {
		_ = godotenv.Load() // optional .env for local
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		log.Fatalf("❌ Invalid SMTP_PORT: %v", err)
	}

	syncInterval, err := time.ParseDuration(getEnv("SYNC_INTERVAL", "5m"))
	if err != nil {
		log.Fatalf("❌ Invalid SYNC_INTERVAL: %v", err)
	}

	fullSyncHour, err := strconv.Atoi(getEnv("FULL_SYNC_HOUR", "3"))
	if err != nil || fullSyncHour < 0 || fullSyncHour > 23 {
		log.Fatalf("❌ Invalid FULL_SYNC_HOUR: %v", err)
	}

	pageLimit, err := strconv.Atoi(getEnv("SYNC_PAGE_LIMIT", "100"))
	if err != nil {
		log.Fatalf("❌ Invalid SYNC_PAGE_LIMIT: %v", err)
	}

	return &Config{
		ServerPort: port,

		DBHost:    getEnv("DB_HOST", "localhost"),
		DBPort:    getEnv("DB_PORT", "5432"),
		DBUser:    getEnv("DB_USER", "postgres"),
		DBPass:    getEnv("DB_PASS", "postgres"),
		DBName:    getEnv("DB_NAME", "listings_db"),
		DBSSLMode: getEnv("DB_SSLMODE", "disable"),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),

		// HubSpot Configuration
		HubspotAccessToken:  os.Getenv("HUBSPOT_ACCESS_TOKEN"),
		HubspotClientID:     os.Getenv("HUBSPOT_CLIENT_ID"),
		HubspotClientSecret: os.Getenv("HUBSPOT_CLIENT_SECRET"),
		HubspotRedirectURL:  os.Getenv("HUBSPOT_REDIRECT_URL"),
		HubspotRefreshToken: os.Getenv("HUBSPOT_REFRESH_TOKEN"),
		HubspotAPIBase:      getEnv("HUBSPOT_API_BASE", "https://api.hubapi.com"),

		// Pipedream Connect Configuration
		PipedreamProjectID:      os.Getenv("PIPEDREAM_PROJECT_ID"),
		PipedreamClientID:       os.Getenv("PIPEDREAM_CLIENT_ID"),
		PipedreamClientSecret:   os.Getenv("PIPEDREAM_CLIENT_SECRET"),
		PipedreamEnvironment:    getEnv("PIPEDREAM_ENVIRONMENT", "development"),
		PipedreamAPIBase:        getEnv("PIPEDREAM_API_BASE", "https://api.pipedream.com"),
		PipedreamExternalUserID: getEnv("PIPEDREAM_EXTERNAL_USER_ID", "agency-dashboard"),

		// BrightLocal Configuration
		BrightLocalAPIKey:  os.Getenv("BRIGHTLOCAL_API_KEY"),
		BrightLocalAPIBase: getEnv("BRIGHTLOCAL_API_BASE", "https://tools.brightlocal.com/seo-tools/api"),

		// Sync Configuration
		SyncInterval:  syncInterval,
		FullSyncHour:  fullSyncHour,
		SyncPageLimit: pageLimit,
		SyncDisabled:  getEnv("SYNC_DISABLED", "false") == "true",

		ServiceExpectedToken: getEnv("SERVICE_TOKEN", "your-secret-service-token"),

		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPass:     os.Getenv("SMTP_PASS"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     smtpPort,
		SMTPFromName: "Listings Ops",
		AlertEmails:  os.Getenv("ALERT_EMAILS"),

		// R2 Configuration
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),

		// CORS Configuration
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),

		DashboardURL: getEnv("DASHBOARD_URL", "http://localhost:3000"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
