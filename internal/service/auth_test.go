package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserSendsSupabaseHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer user-jwt", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "7f7f3a3e-8f2a-4a38-9a5e-2f6f6d4e9b31",
			"aud":   "authenticated",
			"role":  "authenticated",
			"email": "ops@agency.io",
			"app_metadata": map[string]any{
				"roles": []string{"agency_admin"},
			},
		})
	}))
	defer srv.Close()

	client := NewSupabaseAuthClient(srv.URL+"/", "service-key")
	user, err := client.GetUser(context.Background(), "user-jwt")
	require.NoError(t, err)

	assert.Equal(t, "7f7f3a3e-8f2a-4a38-9a5e-2f6f6d4e9b31", user.ID)
	assert.Equal(t, "ops@agency.io", user.Email)
	assert.True(t, user.HasRole("agency_admin"))
	assert.False(t, user.HasRole("agency_member"))
}

func TestGetUserRejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewSupabaseAuthClient(srv.URL, "service-key")
	_, err := client.GetUser(context.Background(), "expired")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestGetUserRejectsMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewSupabaseAuthClient(srv.URL, "service-key")
	_, err := client.GetUser(context.Background(), "jwt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no user id")
}

func TestHasRole(t *testing.T) {
	single := &SupabaseUser{AppMetadata: map[string]any{"role": "agency_admin"}}
	assert.True(t, single.HasRole("agency_admin"))
	assert.False(t, single.HasRole("agency_member"))

	list := &SupabaseUser{AppMetadata: map[string]any{"roles": []any{"agency_member", "billing"}}}
	assert.True(t, list.HasRole("agency_member"))
	assert.True(t, list.HasRole("billing"))
	assert.False(t, list.HasRole("agency_admin"))

	none := &SupabaseUser{}
	assert.False(t, none.HasRole("agency_admin"))
}
