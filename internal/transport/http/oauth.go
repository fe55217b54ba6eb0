// internal/transport/http/oauth.go
package http

import (
	"log"

	"listings-service/internal/hubspot"

	"github.com/gofiber/fiber/v2"
)

// HubspotOAuthCallback finishes the authorization-code flow. The exchanged
// pair seeds the running token source so API calls work immediately; the
// refresh token still has to be copied into the environment to survive a
// restart, which is why it gets logged masked for the operator.
func (h *Handler) HubspotOAuthCallback(c *fiber.Ctx) error {
	if denied := c.Query("error"); denied != "" {
		log.Printf("❌ [OAuth] HubSpot consent denied: %s", denied)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "consent denied: " + denied})
	}

	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "code query parameter is required"})
	}
	if h.oauthApp == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "hubspot oauth is not configured"})
	}

	tok, err := h.oauthApp.ExchangeCode(c.Context(), code)
	if err != nil {
		log.Printf("❌ [OAuth] Code exchange failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to exchange authorization code"})
	}

	if src, ok := h.tokens.(*hubspot.RefreshTokenSource); ok {
		src.Seed(tok)
		log.Printf("✅ [OAuth] HubSpot connected, access token expires in %ds", tok.ExpiresIn)
	} else {
		log.Printf("⚠️ [OAuth] A private-app token is configured; exchanged tokens were not installed")
	}

	return c.JSON(fiber.Map{"success": true, "message": "hubspot connected", "expires_in": tok.ExpiresIn})
}
