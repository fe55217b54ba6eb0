package hubspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenSource struct {
	tokens      []string
	idx         int
	invalidated int
}

func (f *fakeTokenSource) Token(ctx context.Context) (string, error) {
	if f.idx >= len(f.tokens) {
		return f.tokens[len(f.tokens)-1], nil
	}
	return f.tokens[f.idx], nil
}

func (f *fakeTokenSource) Invalidate() {
	f.invalidated++
	f.idx++
}

func TestListContactsPagination(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crm/v3/objects/contacts", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Contains(t, r.URL.Query().Get("properties"), "lastmodifieddate")

		if r.URL.Query().Get("after") == "" {
			json.NewEncoder(w).Encode(ListResponse{
				Results: []Object{{ID: "1", Properties: map[string]string{"email": "a@b.co"}}},
				Paging:  &Paging{Next: &PagingNext{After: "p2"}},
			})
			return
		}
		assert.Equal(t, "p2", r.URL.Query().Get("after"))
		json.NewEncoder(w).Encode(ListResponse{
			Results: []Object{{ID: "2", Properties: map[string]string{"email": "c@d.co"}}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, &StaticTokenSource{AccessToken: "pat-test"})

	page, err := client.ListContacts(context.Background(), 100, "")
	require.NoError(t, err)
	assert.Equal(t, "Bearer pat-test", gotAuth)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "1", page.Results[0].ID)
	assert.Equal(t, "p2", page.NextAfter())

	page, err = client.ListContacts(context.Background(), 100, page.NextAfter())
	require.NoError(t, err)
	assert.Equal(t, "2", page.Results[0].ID)
	assert.Equal(t, "", page.NextAfter())
}

func TestSearchContactsModifiedSince(t *testing.T) {
	since := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/crm/v3/objects/contacts/search", r.URL.Path)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.FilterGroups, 1)
		require.Len(t, req.FilterGroups[0].Filters, 1)

		filter := req.FilterGroups[0].Filters[0]
		assert.Equal(t, "lastmodifieddate", filter.PropertyName)
		assert.Equal(t, "GTE", filter.Operator)
		assert.Equal(t, "1717243200000", filter.Value)

		require.Len(t, req.Sorts, 1)
		assert.Equal(t, "ASCENDING", req.Sorts[0].Direction)
		assert.Equal(t, 50, req.Limit)
		assert.Equal(t, "25", req.After)

		json.NewEncoder(w).Encode(ListResponse{
			Total:   120,
			Results: []Object{{ID: "77"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, &StaticTokenSource{AccessToken: "pat-test"})

	page, err := client.SearchContactsModifiedSince(context.Background(), since, 50, "25")
	require.NoError(t, err)
	assert.Equal(t, int64(120), page.Total)
	require.Len(t, page.Results, 1)
}

func TestCompanySearchUsesCompanyModifiedProperty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crm/v3/objects/companies/search", r.URL.Path)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hs_lastmodifieddate", req.FilterGroups[0].Filters[0].PropertyName)
		assert.Equal(t, "hs_lastmodifieddate", req.Sorts[0].PropertyName)

		json.NewEncoder(w).Encode(ListResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, &StaticTokenSource{AccessToken: "pat-test"})

	_, err := client.SearchCompaniesModifiedSince(context.Background(), time.Now(), 100, "")
	require.NoError(t, err)
}

func TestDoRetriesOnceOn401(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("Authorization") == "Bearer stale" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"category": "EXPIRED_AUTHENTICATION"})
			return
		}
		json.NewEncoder(w).Encode(Object{ID: "42", Properties: map[string]string{"email": "x@y.co"}})
	}))
	defer server.Close()

	tokens := &fakeTokenSource{tokens: []string{"stale", "fresh"}}
	client := NewClient(server.URL, tokens)

	obj, err := client.GetContact(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", obj.ID)
	assert.Equal(t, 2, requests)
	assert.Equal(t, 1, tokens.invalidated)
}

func TestDoGivesUpAfterSecond401(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"status":   "error",
			"message":  "token revoked",
			"category": "INVALID_AUTHENTICATION",
		})
	}))
	defer server.Close()

	tokens := &fakeTokenSource{tokens: []string{"bad", "still-bad"}}
	client := NewClient(server.URL, tokens)

	_, err := client.GetContact(context.Background(), "42")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "INVALID_AUTHENTICATION", apiErr.Category)
}

func TestUpdateContactSendsPatchWithProperties(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "PATCH", r.Method)
		require.Equal(t, "/crm/v3/objects/contacts/901", r.URL.Path)

		var payload propertiesPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Jane", payload.Properties["firstname"])

		json.NewEncoder(w).Encode(Object{
			ID:         "901",
			Properties: map[string]string{"firstname": "Jane"},
			UpdatedAt:  time.Now().UTC(),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, &StaticTokenSource{AccessToken: "pat-test"})

	obj, err := client.UpdateContact(context.Background(), "901", map[string]string{"firstname": "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "Jane", obj.Properties["firstname"])
}

func TestAPIErrorDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"status":        "error",
			"message":       "Property values were not valid",
			"category":      "VALIDATION_ERROR",
			"correlationId": "abc-123",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, &StaticTokenSource{AccessToken: "pat-test"})

	_, err := client.CreateContact(context.Background(), map[string]string{"email": "not-an-email"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Category)
	assert.Contains(t, apiErr.Message, "not valid")
}

func TestObjectModifiedAt(t *testing.T) {
	fallback := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	obj := Object{
		UpdatedAt:  fallback,
		Properties: map[string]string{"lastmodifieddate": "2024-06-01T10:30:00Z"},
	}
	assert.Equal(t, time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), obj.ModifiedAt(ContactModifiedProperty))

	obj.Properties["lastmodifieddate"] = "1717243200000"
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), obj.ModifiedAt(ContactModifiedProperty).UTC())

	obj.Properties = map[string]string{}
	assert.Equal(t, fallback, obj.ModifiedAt(ContactModifiedProperty))
}
