package gbp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// proxyServer fakes the Pipedream token endpoint plus the Connect proxy,
// handing decoded target requests to handle.
func proxyServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, target string)) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth/token" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "project-token",
				"expires_in":   3600,
			})
			return
		}

		require.True(t, strings.HasPrefix(r.URL.Path, "/v1/connect/proj_123/proxy/"), "unexpected path %s", r.URL.Path)
		assert.Equal(t, "Bearer project-token", r.Header.Get("Authorization"))
		assert.Equal(t, "development", r.Header.Get("x-pd-environment"))
		assert.Equal(t, "agency-42", r.URL.Query().Get("external_user_id"))
		assert.Equal(t, "apn_abc", r.URL.Query().Get("account_id"))

		encoded := strings.TrimPrefix(r.URL.Path, "/v1/connect/proj_123/proxy/")
		raw, err := base64.RawURLEncoding.DecodeString(encoded)
		require.NoError(t, err)

		handle(w, r, string(raw))
	}))
	return server
}

func newTestClient(server *httptest.Server) *Client {
	tokens := NewProjectTokenSource(server.URL, "cid", "csecret")
	return NewClient(server.URL, "proj_123", "development", tokens)
}

func TestListAccountsThroughProxy(t *testing.T) {
	server := proxyServer(t, func(w http.ResponseWriter, r *http.Request, target string) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "https://mybusinessaccountmanagement.googleapis.com/v1/accounts", target)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"accounts": []Account{{Name: "accounts/118", AccountName: "Main Street Dental", Type: "LOCATION_GROUP"}},
		})
	})
	defer server.Close()

	client := newTestClient(server)

	accounts, err := client.ListAccounts(context.Background(), "agency-42", "apn_abc")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "accounts/118", accounts[0].Name)
}

func TestListLocationsFollowsPageTokens(t *testing.T) {
	server := proxyServer(t, func(w http.ResponseWriter, r *http.Request, target string) {
		require.Contains(t, target, "https://mybusinessbusinessinformation.googleapis.com/v1/accounts/118/locations")
		require.Contains(t, target, "readMask=")

		if strings.Contains(target, "pageToken=tok2") {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"locations": []Location{{Name: "locations/2", Title: "Branch Office"}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"locations":     []Location{{Name: "locations/1", Title: "Head Office"}},
			"nextPageToken": "tok2",
		})
	})
	defer server.Close()

	client := newTestClient(server)

	locations, err := client.ListLocations(context.Background(), "agency-42", "apn_abc", "accounts/118")
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "locations/1", locations[0].Name)
	assert.Equal(t, "locations/2", locations[1].Name)
}

func TestUpdateLocationSendsPatchWithMask(t *testing.T) {
	server := proxyServer(t, func(w http.ResponseWriter, r *http.Request, target string) {
		assert.Equal(t, "PATCH", r.Method)
		assert.Contains(t, target, "locations/55")
		assert.Contains(t, target, "updateMask=title%2CphoneNumbers.primaryPhone")

		var patch Location
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		assert.Equal(t, "New Name", patch.Title)

		json.NewEncoder(w).Encode(Location{Name: "locations/55", Title: "New Name"})
	})
	defer server.Close()

	client := newTestClient(server)

	updated, err := client.UpdateLocation(context.Background(), "agency-42", "apn_abc", "locations/55",
		&Location{Title: "New Name", PhoneNumbers: &PhoneNumbers{PrimaryPhone: "+1 555 0100"}},
		[]string{"title", "phoneNumbers.primaryPhone"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Title)
}

func TestUpdateLocationRequiresMask(t *testing.T) {
	client := NewClient("http://unused", "proj_123", "development", NewProjectTokenSource("http://unused", "cid", "cs"))

	_, err := client.UpdateLocation(context.Background(), "agency-42", "apn_abc", "locations/55", &Location{Title: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update mask")
}

func TestReplyReviewPutsComment(t *testing.T) {
	server := proxyServer(t, func(w http.ResponseWriter, r *http.Request, target string) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "https://mybusiness.googleapis.com/v4/accounts/118/locations/55/reviews/r9/reply", target)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Thanks for visiting!", payload["comment"])

		json.NewEncoder(w).Encode(ReviewReply{Comment: "Thanks for visiting!"})
	})
	defer server.Close()

	client := newTestClient(server)

	reply, err := client.ReplyReview(context.Background(), "agency-42", "apn_abc",
		"accounts/118/locations/55/reviews/r9", "Thanks for visiting!")
	require.NoError(t, err)
	assert.Equal(t, "Thanks for visiting!", reply.Comment)
}

func TestUploadMediaSendsPublicURL(t *testing.T) {
	server := proxyServer(t, func(w http.ResponseWriter, r *http.Request, target string) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "https://mybusiness.googleapis.com/v4/accounts/118/locations/55/media", target)

		var item MediaItem
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		assert.Equal(t, "PHOTO", item.MediaFormat)
		assert.Equal(t, "https://cdn.example.com/listing_photos/x.jpg", item.SourceURL)
		require.NotNil(t, item.LocationAssociation)
		assert.Equal(t, "ADDITIONAL", item.LocationAssociation.Category)

		item.Name = "accounts/118/locations/55/media/m1"
		json.NewEncoder(w).Encode(item)
	})
	defer server.Close()

	client := newTestClient(server)

	item, err := client.UploadMedia(context.Background(), "agency-42", "apn_abc",
		"accounts/118/locations/55", "https://cdn.example.com/listing_photos/x.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, "accounts/118/locations/55/media/m1", item.Name)
}

func TestUploadMediaLogoCategory(t *testing.T) {
	server := proxyServer(t, func(w http.ResponseWriter, r *http.Request, target string) {
		var item MediaItem
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		require.NotNil(t, item.LocationAssociation)
		assert.Equal(t, "LOGO", item.LocationAssociation.Category)
		json.NewEncoder(w).Encode(item)
	})
	defer server.Close()

	client := newTestClient(server)

	_, err := client.UploadMedia(context.Background(), "agency-42", "apn_abc",
		"accounts/118/locations/55", "https://cdn.example.com/listing_logos/l.png", "LOGO")
	require.NoError(t, err)
}

func TestProxyRetriesOnceWhenProjectTokenGoesStale(t *testing.T) {
	tokenCalls := 0
	proxyCalls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth/token" {
			tokenCalls++
			json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "project-token", "expires_in": 3600})
			return
		}

		proxyCalls++
		if proxyCalls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"accounts": []Account{}})
	}))
	defer server.Close()

	client := newTestClient(server)

	err := client.HealthCheck(context.Background(), "agency-42", "apn_abc")
	require.NoError(t, err)
	assert.Equal(t, 2, proxyCalls)
	assert.Equal(t, 2, tokenCalls) // cache dropped after the 401
}

func TestHealthCheckReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth/token" {
			json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "project-token", "expires_in": 3600})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream credentials revoked"}`))
	}))
	defer server.Close()

	client := newTestClient(server)

	err := client.HealthCheck(context.Background(), "agency-42", "apn_abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
