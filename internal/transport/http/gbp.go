// internal/transport/http/gbp.go
package http

import (
	"errors"
	"log"
	"path/filepath"
	"strings"

	"listings-service/internal/gbp"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ListGBPAccounts returns the cached connected accounts. ?refresh=true
// re-reads the proxy's list first so newly connected accounts show up.
func (h *Handler) ListGBPAccounts(c *fiber.Ctx) error {
	if c.Query("refresh") == "true" {
		accounts, err := h.listings.RefreshConnectedAccounts(c.Context(), h.cfg.PipedreamExternalUserID)
		if err != nil {
			log.Printf("❌ [ListGBPAccounts] Refresh failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to refresh connected accounts"})
		}
		return c.JSON(fiber.Map{"success": true, "accounts": accounts})
	}

	accounts, err := h.listings.ListConnectedAccounts(c.Context())
	if err != nil {
		log.Printf("❌ [ListGBPAccounts] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch connected accounts"})
	}
	return c.JSON(fiber.Map{"success": true, "accounts": accounts})
}

// StartConnectSession creates a short-lived Connect Link the dashboard opens
// so the user can grant Google Business Profile access.
func (h *Handler) StartConnectSession(c *fiber.Ctx) error {
	token, err := h.listings.CreateConnectSession(c.Context(), h.cfg.PipedreamExternalUserID)
	if err != nil {
		log.Printf("❌ [StartConnectSession] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to create connect session"})
	}
	return c.JSON(fiber.Map{"success": true, "connect": token})
}

func (h *Handler) DisconnectAccount(c *fiber.Ctx) error {
	if err := h.listings.DisconnectAccount(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "account not found"})
		}
		log.Printf("❌ [DisconnectAccount] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to disconnect account"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "account disconnected"})
}

// CheckAccountHealth probes the proxied credentials and persists the result.
func (h *Handler) CheckAccountHealth(c *fiber.Ctx) error {
	acct, err := h.listings.CheckAccountHealth(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "account not found"})
		}
		log.Printf("❌ [CheckAccountHealth] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "health check failed"})
	}
	return c.JSON(fiber.Map{"success": true, "account": acct})
}

func (h *Handler) AccountLocations(c *fiber.Ctx) error {
	locations, err := h.listings.AccountLocations(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "account not found"})
		}
		log.Printf("❌ [AccountLocations] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to list locations"})
	}
	return c.JSON(fiber.Map{"success": true, "locations": locations, "count": len(locations)})
}

// Location routes carry the GBP resource name ("locations/123") in a
// wildcard and the connected account id in ?account_id.

func (h *Handler) GetLocation(c *fiber.Ctx) error {
	accountID := c.Query("account_id")
	if accountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "account_id query parameter is required"})
	}

	location, err := h.listings.GetLocation(c.Context(), accountID, c.Params("+"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "account not found"})
		}
		log.Printf("❌ [GetLocation] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch location"})
	}
	return c.JSON(fiber.Map{"success": true, "location": location})
}

func (h *Handler) UpdateLocation(c *fiber.Ctx) error {
	accountID := c.Query("account_id")
	if accountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "account_id query parameter is required"})
	}
	mask := c.Query("update_mask")
	if mask == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "update_mask query parameter is required"})
	}

	var patch gbp.Location
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}

	location, err := h.listings.UpdateLocation(c.Context(), accountID, c.Params("+"), &patch, strings.Split(mask, ","))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "account not found"})
		}
		log.Printf("❌ [UpdateLocation] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to update location"})
	}
	return c.JSON(fiber.Map{"success": true, "location": location})
}

func (h *Handler) LocationReviews(c *fiber.Ctx) error {
	accountID := c.Query("account_id")
	if accountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "account_id query parameter is required"})
	}

	page, err := h.listings.LocationReviews(c.Context(), accountID, c.Params("+"), c.Query("page_token"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "account not found"})
		}
		log.Printf("❌ [LocationReviews] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to fetch reviews"})
	}
	return c.JSON(fiber.Map{"success": true, "reviews": page})
}

// ReplyToReview upserts the owner reply on a review. The wildcard carries
// the full review resource name.
func (h *Handler) ReplyToReview(c *fiber.Ctx) error {
	accountID := c.Query("account_id")
	if accountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "account_id query parameter is required"})
	}

	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	if strings.TrimSpace(req.Comment) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "comment is required"})
	}

	reply, err := h.listings.ReplyToReview(c.Context(), accountID, c.Params("+"), req.Comment)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "account not found"})
		}
		log.Printf("❌ [ReplyToReview] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to post reply"})
	}
	return c.JSON(fiber.Map{"success": true, "reply": reply})
}

// UploadLocationMedia takes a multipart photo, stages it in R2 and attaches
// its public URL to the location. Google fetches media by URL. The optional
// category field switches between a gallery photo and the listing logo.
func (h *Handler) UploadLocationMedia(c *fiber.Ctx) error {
	accountID := c.Query("account_id")
	if accountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "account_id query parameter is required"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "multipart field 'file' is required"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	allowedExts := map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	}
	if !allowedExts[ext] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "unsupported image extension: " + ext + " (allowed: .jpg, .png, .gif, .webp)"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("❌ [UploadLocationMedia] Failed to open %s: %v", fileHeader.Filename, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to read upload"})
	}
	defer file.Close()

	log.Printf("[UploadLocationMedia] Staging %s (%d bytes) for %s", fileHeader.Filename, fileHeader.Size, c.Params("+"))

	upload := h.listings.UploadLocationPhoto
	if strings.EqualFold(c.FormValue("category"), "logo") {
		upload = h.listings.UploadLocationLogo
	}

	item, publicURL, err := upload(c.Context(), accountID, c.Params("+"), file, fileHeader.Filename)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "account not found"})
		}
		log.Printf("❌ [UploadLocationMedia] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to upload media"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "media": item, "url": publicURL})
}
