// internal/transport/http/handlers.go
package http

import (
	"strconv"

	"listings-service/internal/alerts"
	"listings-service/internal/config"
	"listings-service/internal/hubspot"
	"listings-service/internal/service"
	"listings-service/internal/sync"

	"github.com/gofiber/fiber/v2"
)

// Handler carries every dependency the route handlers need. Auth happens in
// middleware; handlers parse, delegate, and shape the JSON envelope.
type Handler struct {
	listings *service.ListingsService
	syncSvc  *sync.CRMSyncService
	notifier *alerts.Notifier
	oauthApp *hubspot.OAuthApp // nil when a private-app token is configured
	tokens   hubspot.TokenSource
	cfg      *config.Config
}

func NewHandler(
	listings *service.ListingsService,
	syncSvc *sync.CRMSyncService,
	notifier *alerts.Notifier,
	oauthApp *hubspot.OAuthApp,
	tokens hubspot.TokenSource,
	cfg *config.Config,
) *Handler {
	return &Handler{
		listings: listings,
		syncSvc:  syncSvc,
		notifier: notifier,
		oauthApp: oauthApp,
		tokens:   tokens,
		cfg:      cfg,
	}
}

// Helper
func getQueryInt(c *fiber.Ctx, key string, def, min, max int) int {
	s := c.Query(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
