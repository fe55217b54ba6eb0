// internal/transport/http/brightlocal.go
package http

import (
	"log"

	"listings-service/internal/brightlocal"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) BrightLocalLocations(c *fiber.Ctx) error {
	page := getQueryInt(c, "page", 1, 1, 1000)

	locations, err := h.listings.BrightLocalLocations(c.Context(), page)
	if err != nil {
		log.Printf("❌ [BrightLocalLocations] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch locations"})
	}
	return c.JSON(fiber.Map{"success": true, "locations": locations})
}

func (h *Handler) CreateBrightLocalLocation(c *fiber.Ctx) error {
	var loc brightlocal.Location
	if err := c.BodyParser(&loc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	if loc.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "name is required"})
	}

	id, err := h.listings.CreateBrightLocalLocation(c.Context(), &loc)
	if err != nil {
		log.Printf("❌ [CreateBrightLocalLocation] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to create location"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "location_id": id})
}

func (h *Handler) UpdateBrightLocalLocation(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid location id"})
	}

	var loc brightlocal.Location
	if err := c.BodyParser(&loc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}

	if err := h.listings.UpdateBrightLocalLocation(c.Context(), id, &loc); err != nil {
		log.Printf("❌ [UpdateBrightLocalLocation] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to update location"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "location updated"})
}

// CreateCitationCampaign opens a Citation Builder campaign for a location.
func (h *Handler) CreateCitationCampaign(c *fiber.Ctx) error {
	var req struct {
		LocationID int    `json:"location_id"`
		Name       string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	if req.LocationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "location_id is required"})
	}

	id, err := h.listings.CreateCitationCampaign(c.Context(), req.LocationID, req.Name)
	if err != nil {
		log.Printf("❌ [CreateCitationCampaign] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to create campaign"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "campaign_id": id})
}

func (h *Handler) GetCitationCampaign(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid campaign id"})
	}

	campaign, err := h.listings.CitationCampaign(c.Context(), id)
	if err != nil {
		log.Printf("❌ [GetCitationCampaign] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch campaign"})
	}
	return c.JSON(fiber.Map{"success": true, "campaign": campaign})
}

func (h *Handler) CampaignCitations(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid campaign id"})
	}

	citations, err := h.listings.CampaignCitations(c.Context(), id)
	if err != nil {
		log.Printf("❌ [CampaignCitations] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch citations"})
	}
	return c.JSON(fiber.Map{"success": true, "citations": citations})
}

// RunCitationAudit queues a citation tracker report; BrightLocal builds it
// asynchronously, so the caller polls the report id.
func (h *Handler) RunCitationAudit(c *fiber.Ctx) error {
	var req struct {
		LocationID int `json:"location_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	if req.LocationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "location_id is required"})
	}

	reportID, err := h.listings.RunCitationAudit(c.Context(), req.LocationID)
	if err != nil {
		log.Printf("❌ [RunCitationAudit] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to start audit"})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "report_id": reportID})
}

func (h *Handler) CitationAuditReport(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid report id"})
	}

	report, err := h.listings.CitationAuditReport(c.Context(), id)
	if err != nil {
		log.Printf("❌ [CitationAuditReport] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch report"})
	}
	return c.JSON(fiber.Map{"success": true, "report": report})
}

// CitationSites lists the seeded directory catalog for the campaign UI.
func (h *Handler) CitationSites(c *fiber.Ctx) error {
	sites, err := h.listings.CitationSites(c.Context())
	if err != nil {
		log.Printf("❌ [CitationSites] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch citation sites"})
	}
	return c.JSON(fiber.Map{"success": true, "sites": sites})
}
