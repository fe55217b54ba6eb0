package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"listings-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodUserID = "3f6c1a52-77f5-4f8a-9b2e-6f1f6c1f9d10"

func newAuthedApp(tb testing.TB, supabaseUserID string) (*fiber.App, *httptest.Server) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    supabaseUserID,
			"email": "ops@agency.io",
		})
	}))
	tb.Cleanup(srv.Close)

	authClient := service.NewSupabaseAuthClient(srv.URL, "service-key")

	app := fiber.New()
	app.Get("/events", SSEAuthMiddleware(authClient), func(c *fiber.Ctx) error {
		userID, ok := GetUserIDFromContext(c)
		require.True(tb, ok)
		return c.JSON(fiber.Map{"user_id": userID})
	})
	return app, srv
}

func TestSSEAuthAcceptsQueryToken(t *testing.T) {
	app, _ := newAuthedApp(t, goodUserID)

	resp, err := app.Test(httptest.NewRequest("GET", "/events?token=good-token", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, goodUserID, payload["user_id"])
}

func TestSSEAuthRejectsMissingToken(t *testing.T) {
	app, _ := newAuthedApp(t, goodUserID)

	resp, err := app.Test(httptest.NewRequest("GET", "/events", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSSEAuthRejectsInvalidToken(t *testing.T) {
	app, _ := newAuthedApp(t, goodUserID)

	resp, err := app.Test(httptest.NewRequest("GET", "/events?token=stale", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSSEAuthRejectsNonUUIDUser(t *testing.T) {
	app, _ := newAuthedApp(t, "not-a-uuid")

	resp, err := app.Test(httptest.NewRequest("GET", "/events?token=good-token", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
