package brightlocal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLocationsSendsAPIKeyAsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/clients-and-locations/locations", r.URL.Path)
		assert.Equal(t, "key-123", r.URL.Query().Get("api-key"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"locations": []Location{
				{LocationID: 11, Name: "Main Street Dental", Town: "Springfield"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-123")

	locations, err := client.ListLocations(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, 11, locations[0].LocationID)
}

func TestCreateLocationSendsForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/v1/clients-and-locations/locations/add", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "key-123", r.PostForm.Get("api-key"))
		assert.Equal(t, "Main Street Dental", r.PostForm.Get("name"))
		assert.Equal(t, "Springfield", r.PostForm.Get("town"))
		assert.Equal(t, "USA", r.PostForm.Get("country"))
		assert.Empty(t, r.PostForm.Get("address2")) // empty fields stay out of the form

		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "location-id": 42})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-123")

	id, err := client.CreateLocation(context.Background(), &Location{
		Name:    "Main Street Dental",
		Town:    "Springfield",
		Country: "USA",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestEnvelopeFailureWithHTTP200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"errors":  map[string]string{"INVALID_PARAMS": "country must be ISO-3"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-123")

	_, err := client.CreateLocation(context.Background(), &Location{Name: "x", Country: "US"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_PARAMS")
}

func TestCreateCampaignAndListCitations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v4/cb/create":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.PostForm.Get("location-id"))
			assert.Equal(t, "Spring push", r.PostForm.Get("name"))
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "campaign-id": 7})

		case "/v4/cb/get":
			assert.Equal(t, "7", r.URL.Query().Get("campaign-id"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"campaign": Campaign{
					CampaignID: 7,
					Status:     "in_progress",
					Citations: []Citation{
						{Site: "yelp.com", Status: "Live", DomainAuthority: 93},
						{Site: "foursquare.com", Status: "Pending"},
					},
				},
			})

		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-123")

	id, err := client.CreateCampaign(context.Background(), 42, "Spring push")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	citations, err := client.ListCitations(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, citations, 2)
	assert.Equal(t, "yelp.com", citations[0].Site)
	assert.Equal(t, "Live", citations[0].Status)
}

func TestAuditLifecycle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v4/ct/run":
			require.Equal(t, "POST", r.Method)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.PostForm.Get("location-id"))
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "report-id": 99})

		case "/v4/ct/get":
			assert.Equal(t, "99", r.URL.Query().Get("report-id"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"report": AuditReport{
					ReportID:       99,
					Status:         "complete",
					CitationsFound: 17,
				},
			})

		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-123")

	reportID, err := client.RunAudit(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 99, reportID)

	report, err := client.GetAuditReport(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, "complete", report.Status)
	assert.Equal(t, 17, report.CitationsFound)
}

func TestHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success": false, "errors": {"AUTH": "api key not recognised"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-key")

	_, err := client.ListLocations(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "api key not recognised")
}
