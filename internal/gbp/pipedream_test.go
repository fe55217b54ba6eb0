package gbp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectTokenSourceCaches(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/oauth/token", r.URL.Path)
		calls++

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client_credentials", body["grant_type"])
		assert.Equal(t, "cid", body["client_id"])
		assert.Equal(t, "csecret", body["client_secret"])

		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok-1", "expires_in": 3600})
	}))
	defer server.Close()

	source := NewProjectTokenSource(server.URL, "cid", "csecret")

	tok, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	source.Invalidate()
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestListConnectedAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth/token" {
			json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok-1", "expires_in": 3600})
			return
		}

		require.Equal(t, "/v1/connect/proj_123/accounts", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "production", r.Header.Get("x-pd-environment"))
		assert.Equal(t, "agency-42", r.URL.Query().Get("external_user_id"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []ProxyAccount{{
				ID:         "apn_abc",
				Name:       "owner@mainstreetdental.com",
				ExternalID: "agency-42",
				Healthy:    true,
				App:        ProxyApp{NameSlug: "google_my_business"},
			}},
		})
	}))
	defer server.Close()

	tokens := NewProjectTokenSource(server.URL, "cid", "csecret")
	client := NewConnectClient(server.URL, "proj_123", "production", tokens)

	accounts, err := client.ListConnectedAccounts(context.Background(), "agency-42")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "apn_abc", accounts[0].ID)
	assert.True(t, accounts[0].Healthy)
}

func TestCreateConnectToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth/token" {
			json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok-1", "expires_in": 3600})
			return
		}

		require.Equal(t, "/v1/connect/proj_123/tokens", r.URL.Path)
		require.Equal(t, "POST", r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "agency-42", body["external_user_id"])

		json.NewEncoder(w).Encode(ConnectToken{
			Token:          "ctok_xyz",
			ConnectLinkURL: "https://pipedream.com/_static/connect.html?token=ctok_xyz",
		})
	}))
	defer server.Close()

	tokens := NewProjectTokenSource(server.URL, "cid", "csecret")
	client := NewConnectClient(server.URL, "proj_123", "development", tokens)

	tok, err := client.CreateConnectToken(context.Background(), "agency-42")
	require.NoError(t, err)
	assert.Equal(t, "ctok_xyz", tok.Token)
	assert.Contains(t, tok.ConnectLinkURL, "connect.html")
}

func TestDeleteAccount(t *testing.T) {
	deleted := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth/token" {
			json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok-1", "expires_in": 3600})
			return
		}

		require.Equal(t, "/v1/connect/proj_123/accounts/apn_abc", r.URL.Path)
		require.Equal(t, "DELETE", r.Method)
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	tokens := NewProjectTokenSource(server.URL, "cid", "csecret")
	client := NewConnectClient(server.URL, "proj_123", "development", tokens)

	require.NoError(t, client.DeleteAccount(context.Background(), "apn_abc"))
	assert.True(t, deleted)
}
