package hubspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationURL(t *testing.T) {
	app := NewOAuthApp("client-1", "secret-1", "https://dash.example.com/svc/v1/hubspot/callback")

	raw := app.AuthorizationURL("state-xyz")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "app.hubspot.com", parsed.Host)
	assert.Equal(t, "/oauth/authorize", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "https://dash.example.com/svc/v1/hubspot/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Contains(t, q.Get("scope"), "crm.objects.contacts.write")
}

func TestExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))

		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    1800,
		})
	}))
	defer server.Close()

	app := NewOAuthApp("client-1", "secret-1", "https://dash.example.com/cb")
	app.TokenURL = server.URL

	tok, err := app.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
}

func TestExchangeCodeRejectsMissingRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "access-only", ExpiresIn: 1800})
	}))
	defer server.Close()

	app := NewOAuthApp("client-1", "secret-1", "https://dash.example.com/cb")
	app.TokenURL = server.URL

	_, err := app.ExchangeCode(context.Background(), "the-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh token")
}

func TestRefreshTokenSourceCachesUntilInvalidated(t *testing.T) {
	refreshes := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))

		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: "access-n",
			ExpiresIn:   1800,
		})
	}))
	defer server.Close()

	app := NewOAuthApp("client-1", "secret-1", "https://dash.example.com/cb")
	app.TokenURL = server.URL

	source := NewRefreshTokenSource(app, "refresh-1")

	tok, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-n", tok)
	assert.Equal(t, 1, refreshes)

	// Cached while comfortably inside the expiry window
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, refreshes)

	source.Invalidate()
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, refreshes)
}

func TestRefreshTokenSourceKeepsRotatedRefreshToken(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())

		if calls == 1 {
			assert.Equal(t, "refresh-old", r.PostForm.Get("refresh_token"))
			json.NewEncoder(w).Encode(TokenResponse{
				AccessToken:  "access-1",
				RefreshToken: "refresh-new",
				ExpiresIn:    1800,
			})
			return
		}

		assert.Equal(t, "refresh-new", r.PostForm.Get("refresh_token"))
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "access-2", ExpiresIn: 1800})
	}))
	defer server.Close()

	app := NewOAuthApp("client-1", "secret-1", "https://dash.example.com/cb")
	app.TokenURL = server.URL

	source := NewRefreshTokenSource(app, "refresh-old")

	_, err := source.Token(context.Background())
	require.NoError(t, err)

	source.Invalidate()
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSeedSkipsInitialRefresh(t *testing.T) {
	app := NewOAuthApp("client-1", "secret-1", "https://dash.example.com/cb")
	app.TokenURL = "http://127.0.0.1:0" // any refresh attempt would fail

	source := NewRefreshTokenSource(app, "refresh-1")
	source.Seed(&TokenResponse{AccessToken: "seeded", ExpiresIn: 1800})

	tok, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "seeded", tok)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "...f81a2b", maskToken("pat-na1-00000000-aaaa-bbbb-cccc-ddddddf81a2b"))
	assert.Equal(t, "******", maskToken("short"))
}
