// internal/transport/http/crm.go
package http

import (
	"errors"
	"log"

	"listings-service/internal/hubspot"
	"listings-service/pkg/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ListContacts serves the cached mirror; reads never touch HubSpot.
func (h *Handler) ListContacts(c *fiber.Ctx) error {
	limit := getQueryInt(c, "limit", 50, 1, 200)
	offset := getQueryInt(c, "offset", 0, 0, 100000)
	search := c.Query("search")

	contacts, err := h.listings.ListContacts(c.Context(), limit, offset, search)
	if err != nil {
		log.Printf("❌ [ListContacts] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch contacts"})
	}
	return c.JSON(fiber.Map{"success": true, "contacts": contacts})
}

// GetContact accepts either the mirror UUID or the HubSpot record id.
func (h *Handler) GetContact(c *fiber.Ctx) error {
	contact, err := h.listings.GetContact(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "contact not found"})
		}
		log.Printf("❌ [GetContact] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch contact"})
	}
	return c.JSON(fiber.Map{"success": true, "contact": contact})
}

// CreateContact writes to HubSpot first, then mirrors locally. A mirror
// failure still returns 201; mirror_synced tells the dashboard the record
// will appear after the next sync instead.
func (h *Handler) CreateContact(c *fiber.Ctx) error {
	var req models.ContactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "email is required"})
	}

	contact, mirrored, err := h.listings.CreateContact(c.Context(), &req)
	if err != nil {
		return h.crmError(c, "CreateContact", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "contact": contact, "mirror_synced": mirrored})
}

// UpdateContact is the dual-write PATCH. HubSpot is the write target; the
// mirror row follows and mirror_synced reports whether it kept up.
func (h *Handler) UpdateContact(c *fiber.Ctx) error {
	var req models.ContactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}

	contact, mirrored, err := h.listings.UpdateContact(c.Context(), c.Params("id"), &req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "contact not found"})
		}
		return h.crmError(c, "UpdateContact", err)
	}
	return c.JSON(fiber.Map{"success": true, "contact": contact, "mirror_synced": mirrored})
}

func (h *Handler) ListCompanies(c *fiber.Ctx) error {
	limit := getQueryInt(c, "limit", 50, 1, 200)
	offset := getQueryInt(c, "offset", 0, 0, 100000)
	search := c.Query("search")

	companies, err := h.listings.ListCompanies(c.Context(), limit, offset, search)
	if err != nil {
		log.Printf("❌ [ListCompanies] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch companies"})
	}
	return c.JSON(fiber.Map{"success": true, "companies": companies})
}

// UpdateCompany mirrors the contact dual-write for company records.
func (h *Handler) UpdateCompany(c *fiber.Ctx) error {
	var req models.CompanyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}

	company, mirrored, err := h.listings.UpdateCompany(c.Context(), c.Params("id"), &req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "company not found"})
		}
		return h.crmError(c, "UpdateCompany", err)
	}
	return c.JSON(fiber.Map{"success": true, "company": company, "mirror_synced": mirrored})
}

// crmError surfaces HubSpot's own status for vendor rejections (bad property
// values, unknown records) and 500 for everything else.
func (h *Handler) crmError(c *fiber.Ctx, op string, err error) error {
	var apiErr *hubspot.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		log.Printf("⚠️ [%s] HubSpot rejected the write: %v", op, err)
		return c.Status(apiErr.StatusCode).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	log.Printf("❌ [%s] %v", op, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "crm write failed"})
}
