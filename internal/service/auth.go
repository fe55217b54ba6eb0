// internal/service/auth.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// SupabaseAuthClient validates dashboard JWTs against the Supabase auth API.
type SupabaseAuthClient struct {
	BaseURL    string // e.g. https://xyzcompany.supabase.co
	ServiceKey string // service_role key, sent as apikey header
	HTTPClient *http.Client
}

// SupabaseUser is the subset of GET /auth/v1/user we care about.
type SupabaseUser struct {
	ID           string         `json:"id"` // UUID string
	Aud          string         `json:"aud"`
	Role         string         `json:"role"`
	Email        string         `json:"email"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// HasRole reports whether app_metadata grants the given role, either as
// "role": "x" or "roles": ["x", ...].
func (u *SupabaseUser) HasRole(role string) bool {
	if u.AppMetadata == nil {
		return false
	}
	if v, ok := u.AppMetadata["role"].(string); ok && v == role {
		return true
	}
	if list, ok := u.AppMetadata["roles"].([]any); ok {
		for _, item := range list {
			if v, ok := item.(string); ok && v == role {
				return true
			}
		}
	}
	return false
}

func NewSupabaseAuthClient(baseURL, serviceKey string) *SupabaseAuthClient {
	return &SupabaseAuthClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		ServiceKey: serviceKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetUser resolves an access token to the user it belongs to. Any non-200
// from Supabase means the token is invalid or expired.
func (c *SupabaseAuthClient) GetUser(ctx context.Context, accessToken string) (*SupabaseUser, error) {
	url := fmt.Sprintf("%s/auth/v1/user", c.BaseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to supabase auth failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[SupabaseAuth] Token rejected: %d", resp.StatusCode)
		return nil, fmt.Errorf("supabase auth returned %d", resp.StatusCode)
	}

	var user SupabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode supabase auth response: %w", err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("supabase auth returned no user id")
	}

	return &user, nil
}
