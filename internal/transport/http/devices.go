// internal/transport/http/devices.go
package http

import (
	"errors"
	"log"

	"listings-service/internal/middleware"
	"listings-service/pkg/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RegisterDevice stores an FCM token for the signed-in dashboard user so
// operational alerts reach their devices.
func (h *Handler) RegisterDevice(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "user context missing"})
	}

	var req models.DeviceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	if req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "token is required"})
	}

	device, err := h.listings.RegisterDevice(c.Context(), userID, &req)
	if err != nil {
		log.Printf("❌ [RegisterDevice] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to register device"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "device": device})
}

func (h *Handler) UnregisterDevice(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "user context missing"})
	}

	if err := h.listings.UnregisterDevice(c.Context(), userID, c.Params("token")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "device not found"})
		}
		log.Printf("❌ [UnregisterDevice] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "failed to unregister device"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "device unregistered"})
}
