package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"listings-service/internal/alerts"
	"listings-service/internal/brightlocal"
	"listings-service/internal/config"
	"listings-service/internal/email"
	"listings-service/internal/fcm"
	"listings-service/internal/gbp"
	"listings-service/internal/hubspot"
	"listings-service/internal/listing"
	"listings-service/internal/middleware"
	"listings-service/internal/service"
	"listings-service/internal/sse"
	"listings-service/internal/sync"
	"listings-service/internal/transport/http"
	"listings-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

var startTime time.Time

func main() {
	startTime = time.Now()
	cfg := config.Load()
	log.Printf("🔧 Service expected token: %s******", cfg.ServiceExpectedToken[:6])

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		log.Fatal("❌ SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	listing.InitDB(cfg)

	authClient := service.NewSupabaseAuthClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)

	r2Config := utils.MediaR2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		AccessKeySecret: cfg.R2AccessKeySecret,
		BucketName:      cfg.R2BucketName,
		PublicURL:       cfg.R2PublicURL,
	}
	r2Client, err := utils.NewMediaR2Client(r2Config)
	if err != nil {
		log.Fatalf("❌ [R2] Failed to initialize client: %v", err)
	}
	log.Println("✅ [R2] Media R2 client initialized")

	// A private app token wins; otherwise the OAuth refresh flow, seeded from
	// env and re-seeded by the callback route.
	var (
		hubspotTokens hubspot.TokenSource
		oauthApp      *hubspot.OAuthApp
	)
	if cfg.HubspotAccessToken != "" {
		hubspotTokens = &hubspot.StaticTokenSource{AccessToken: cfg.HubspotAccessToken}
		log.Println("✅ [HUBSPOT] Using private app token")
	} else {
		oauthApp = hubspot.NewOAuthApp(cfg.HubspotClientID, cfg.HubspotClientSecret, cfg.HubspotRedirectURL)
		hubspotTokens = hubspot.NewRefreshTokenSource(oauthApp, cfg.HubspotRefreshToken)
		log.Println("🔄 [HUBSPOT] Using OAuth refresh flow")
	}
	hubspotClient := hubspot.NewClient(cfg.HubspotAPIBase, hubspotTokens)

	connectTokens := gbp.NewProjectTokenSource(cfg.PipedreamAPIBase, cfg.PipedreamClientID, cfg.PipedreamClientSecret)
	connectClient := gbp.NewConnectClient(cfg.PipedreamAPIBase, cfg.PipedreamProjectID, cfg.PipedreamEnvironment, connectTokens)
	gbpClient := gbp.NewClient(cfg.PipedreamAPIBase, cfg.PipedreamProjectID, cfg.PipedreamEnvironment, connectTokens)
	log.Printf("✅ [GBP] Pipedream proxy clients initialized (project: %s, env: %s)", cfg.PipedreamProjectID, cfg.PipedreamEnvironment)

	blClient := brightlocal.NewClient(cfg.BrightLocalAPIBase, cfg.BrightLocalAPIKey)

	broker := sse.NewBroker()
	emailSender := email.NewSender(cfg)

	// Initialize FCM client
	var fcmClient *fcm.FCMClient
	fcmCredsJSON := os.Getenv("FIREBASE_CREDENTIALS_JSON")
	if fcmCredsJSON != "" {
		client, err := fcm.NewFCMClient(context.Background(), []byte(fcmCredsJSON))
		if err != nil {
			log.Fatalf("❌ Failed to initialize FCM: %v", err)
		}
		fcmClient = client
		log.Println("✅ FCM client initialized")
	} else {
		log.Println("⚠️ FCM disabled (no FIREBASE_CREDENTIALS_JSON)")
	}

	notifier := alerts.NewNotifier(emailSender, fcmClient, cfg)

	syncService := sync.NewCRMSyncService(listing.GetDB(), hubspotClient, notifier, broker, cfg)
	if cfg.SyncDisabled {
		log.Println("⚠️ [SYNC] Scheduler disabled (SYNC_DISABLED=true)")
	} else {
		syncService.StartScheduler()
	}

	listingsService := service.NewListingsService(hubspotClient, gbpClient, connectClient, blClient, r2Client, broker, notifier)
	handler := http.NewHandler(listingsService, syncService, notifier, oauthApp, hubspotTokens, cfg)
	log.Println("✅ [SERVICE] ListingsService & Handler initialized")

	app := fiber.New(fiber.Config{
		AppName:      "listings-service",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())

	// CORS configuration:
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With,X-Service-Token,Cache-Control",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${ua}\n",
	}))

	// 1. Dashboard routes (Supabase JWT + agency role)
	v1 := app.Group("/v1", supabaseAuth(authClient), agencyRoleAuth())

	v1.Get("/contacts", handler.ListContacts)
	v1.Post("/contacts", handler.CreateContact)
	v1.Get("/contacts/:id", handler.GetContact)
	v1.Patch("/contacts/:id", handler.UpdateContact)
	v1.Get("/companies", handler.ListCompanies)
	v1.Patch("/companies/:id", handler.UpdateCompany)

	v1.Get("/gbp/accounts", handler.ListGBPAccounts)
	v1.Post("/gbp/connect", handler.StartConnectSession)
	v1.Delete("/gbp/accounts/:id", handler.DisconnectAccount)
	v1.Post("/gbp/accounts/:id/health-check", handler.CheckAccountHealth)
	v1.Get("/gbp/accounts/:id/locations", handler.AccountLocations)
	// Location names are multi-segment, so they ride the + wildcard. The
	// suffixed routes go first or the greedy wildcard swallows them.
	v1.Get("/gbp/locations/+/reviews", handler.LocationReviews)
	v1.Post("/gbp/locations/+/media", handler.UploadLocationMedia)
	v1.Get("/gbp/locations/+", handler.GetLocation)
	v1.Patch("/gbp/locations/+", handler.UpdateLocation)
	v1.Post("/gbp/reviews/+/reply", handler.ReplyToReview)

	v1.Get("/brightlocal/locations", handler.BrightLocalLocations)
	v1.Post("/brightlocal/locations", handler.CreateBrightLocalLocation)
	v1.Put("/brightlocal/locations/:id", handler.UpdateBrightLocalLocation)
	v1.Post("/brightlocal/campaigns", handler.CreateCitationCampaign)
	v1.Get("/brightlocal/campaigns/:id", handler.GetCitationCampaign)
	v1.Get("/brightlocal/campaigns/:id/citations", handler.CampaignCitations)
	v1.Post("/brightlocal/audits", handler.RunCitationAudit)
	v1.Get("/brightlocal/audits/:id", handler.CitationAuditReport)
	v1.Get("/citation-sites", handler.CitationSites)

	v1.Get("/sync/runs", handler.SyncRuns)
	v1.Get("/sync/status", handler.SyncStatus)

	v1.Post("/devices", handler.RegisterDevice)
	v1.Delete("/devices/:token", handler.UnregisterDevice)
	log.Println("✅ [ROUTES] Registered dashboard routes: /v1/*")

	// EventSource cannot set headers, so the stream authenticates via query
	// param and sits outside the bearer-auth group.
	app.Get("/v1/sync/events", middleware.SSEAuthMiddleware(authClient), handler.StreamSyncEvents)
	log.Println("✅ [ROUTES] Registered SSE route: /v1/sync/events")

	// 2. Service-to-service routes
	svc := app.Group("/svc/v1", serviceAuth(cfg))
	svc.Post("/sync/contacts", handler.TriggerContactSync)
	svc.Post("/sync/companies", handler.TriggerCompanySync)
	svc.Post("/reports/sync-summary", handler.SyncSummaryReport)
	log.Println("✅ [ROUTES] Registered service routes: /svc/v1/sync/*, /svc/v1/reports/*")

	// HubSpot redirects the operator's browser here, which cannot carry the
	// service token, so the callback stays outside the service group.
	app.Get("/svc/v1/hubspot/oauth/callback", handler.HubspotOAuthCallback)
	log.Println("✅ [ROUTES] Registered OAuth callback: /svc/v1/hubspot/oauth/callback")

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		uptime := time.Since(startTime).Round(time.Second)
		dbOK := false
		if sqlDB, err := listing.GetDB().DB(); err == nil {
			dbOK = sqlDB.Ping() == nil
		}
		payload := fiber.Map{
			"status":      "ok",
			"service":     "listings-service",
			"uptime":      uptime.String(),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"db":          dbOK,
			"fcm_enabled": fcmClient != nil,
			"sync":        !cfg.SyncDisabled,
			"sse_clients": broker.TotalClients(),
		}
		// deep=true also probes HubSpot; orchestrator checks stay cheap
		if c.Query("deep") == "true" {
			_, err := listingsService.HubspotAccount(c.Context())
			payload["hubspot"] = err == nil
		}
		return c.JSON(payload)
	})
	log.Println("✅ [ROUTES] Registered /health")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("🛑 [SHUTDOWN] Graceful shutdown initiated...")
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ [SHUTDOWN] Error: %v", err)
		}
	}()

	log.Printf("🚀 listings-service starting...")
	log.Printf("   🔗 Listening on port: %s", cfg.ServerPort)
	log.Printf("   🌐 CORS allowed origins: %s", cfg.AllowedOrigins)
	log.Printf("   🌐 CORS with credentials: ENABLED")
	log.Printf("   📦 R2 bucket: %s", cfg.R2BucketName)
	log.Printf("   🔄 Sync interval: %s (full sync at %02d:00)", cfg.SyncInterval, cfg.FullSyncHour)
	log.Printf("   🛡️  Service token prefix: %s******", cfg.ServiceExpectedToken[:6])
	log.Println("✅ Server ready.")

	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("❌ [STARTUP] Server failed to start: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var errMsg string
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		errMsg = e.Message
	} else {
		errMsg = err.Error()
	}
	log.Printf("🔥 [ERROR] [%d] %s %s → %v | IP=%s | UA=%s",
		code,
		c.Method(),
		c.Path(),
		errMsg,
		c.IP(),
		c.Get("User-Agent"),
	)
	return c.Status(code).JSON(fiber.Map{
		"success":    false,
		"error":      "something went wrong",
		"request_id": c.Get("X-Request-ID"),
	})
}

// supabaseAuth validates the dashboard bearer token against Supabase and
// stores the resolved user in locals for the role check and handlers.
func supabaseAuth(authClient *service.SupabaseAuthClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Printf("[AUTH] ❌ REJECTED (no bearer) | IP=%s | Path=%s", c.IP(), c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized: missing bearer token",
			})
		}
		accessToken := strings.TrimPrefix(authHeader, "Bearer ")

		user, err := authClient.GetUser(c.Context(), accessToken)
		if err != nil {
			log.Printf("[AUTH] ❌ REJECTED | IP=%s | Path=%s | %v", c.IP(), c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized: invalid token",
			})
		}

		c.Locals(middleware.UserIDContextKey, user.ID)
		c.Locals(middleware.UserContextKey, user)
		return c.Next()
	}
}

// agencyRoleAuth gates the dashboard on an agency role from app_metadata.
func agencyRoleAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			log.Printf("[ROLE-AUTH] ❌ REJECTED (no user) | Path=%s", c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "Forbidden: missing user context",
			})
		}
		if !user.HasRole("agency_admin") && !user.HasRole("agency_member") {
			log.Printf("[ROLE-AUTH] ❌ REJECTED (no agency role) | User=%s | Path=%s", user.ID, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "Forbidden: agency role required",
			})
		}
		return c.Next()
	}
}

func serviceAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("X-Service-Token")
		if token == "" {
			authHeader := c.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		maskedToken := "<empty>"
		if token != "" {
			if len(token) > 6 {
				maskedToken = token[:6] + "..."
			} else {
				maskedToken = token
			}
		}
		if token != cfg.ServiceExpectedToken {
			log.Printf("[SERVICE-AUTH] ❌ REJECTED | IP=%s | Path=%s | Token=%s",
				c.IP(), c.Path(), maskedToken)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized: invalid or missing service token",
			})
		}
		log.Printf("[SERVICE-AUTH] ✅ ACCEPTED | IP=%s | Path=%s", c.IP(), c.Path())
		return c.Next()
	}
}
