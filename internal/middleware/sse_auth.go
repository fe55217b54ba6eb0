// internal/middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"listings-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Context keys for user information (using string keys for Fiber Locals)
const (
	UserIDContextKey = "userID"
	UserContextKey   = "supabaseUser"
)

// SSEAuthMiddleware authenticates the event-stream route. EventSource cannot
// set headers, so the Supabase JWT rides a query param:
//
//	?token=eyJhbGciOi...
//
// On success it sets the same locals as the header auth middleware and
// continues; on failure it returns 401.
func SSEAuthMiddleware(authClient *service.SupabaseAuthClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		if accessToken == "" {
			log.Printf("[SSEAuth] ❌ Missing token query param | IP=%s | Path=%s", c.IP(), c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Missing token in query",
			})
		}

		user, err := authClient.GetUser(c.Context(), accessToken)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Validation failed for token (prefix: %s...): %v",
				accessToken[:min(10, len(accessToken))], err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized: invalid token",
			})
		}

		// Supabase returns the auth user id; broker subscriptions key on it
		parsedUserID, err := uuid.Parse(user.ID)
		if err != nil {
			log.Printf("[SSEAuth] ❌ Invalid user id from supabase: %s, error: %v", user.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Internal server error during authentication",
			})
		}

		c.Locals(UserIDContextKey, parsedUserID.String())
		c.Locals(UserContextKey, user)

		log.Printf("[SSEAuth] ✅ Authenticated user %s", parsedUserID.String())
		return c.Next()
	}
}

// GetUserIDFromContext retrieves the authenticated user id set by either
// auth middleware.
func GetUserIDFromContext(c *fiber.Ctx) (string, bool) {
	value := c.Locals(UserIDContextKey)
	userID, ok := value.(string)
	if !ok {
		log.Printf("[SSEAuth] GetUserIDFromContext: FAILED to retrieve userID from context, ok=%t, value=%v", ok, value)
	}
	return userID, ok
}

// GetUserFromContext retrieves the full Supabase user for role checks.
func GetUserFromContext(c *fiber.Ctx) (*service.SupabaseUser, bool) {
	value := c.Locals(UserContextKey)
	user, ok := value.(*service.SupabaseUser)
	return user, ok
}
