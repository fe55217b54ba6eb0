// internal/gbp/pipedream.go
package gbp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// Project access tokens live ~1h; refresh a little early
	tokenLeeway = 5 * time.Minute
)

// ProjectTokenSource fetches and caches the Pipedream Connect project access
// token (client-credentials grant). Refresh is single-flight under the mutex.
type ProjectTokenSource struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewProjectTokenSource(baseURL, clientID, clientSecret string) *ProjectTokenSource {
	return &ProjectTokenSource{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *ProjectTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && time.Now().Before(s.expiresAt.Add(-tokenLeeway)) {
		return s.accessToken, nil
	}

	payload, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	endpoint := strings.TrimSuffix(s.BaseURL, "/") + "/v1/oauth/token"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pipedream token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("pipedream token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("pipedream returned an empty access token")
	}

	s.accessToken = tok.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	log.Printf("✅ Pipedream project token refreshed, expires in %ds", tok.ExpiresIn)
	return s.accessToken, nil
}

func (s *ProjectTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
}

// ProxyAccount is a connected account record held at the proxy. The proxy
// stores the Google OAuth credentials; we only see ids and health.
type ProxyAccount struct {
	ID         string    `json:"id"` // "apn_..."
	Name       string    `json:"name"`
	ExternalID string    `json:"external_id"`
	Healthy    bool      `json:"healthy"`
	Dead       bool      `json:"dead"`
	App        ProxyApp  `json:"app"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ProxyApp struct {
	ID       string `json:"id"`
	NameSlug string `json:"name_slug"`
	Name     string `json:"name"`
}

// ConnectToken starts a new connect flow in the dashboard.
type ConnectToken struct {
	Token          string    `json:"token"`
	ExpiresAt      time.Time `json:"expires_at"`
	ConnectLinkURL string    `json:"connect_link_url"`
}

// ConnectClient manages connected accounts at the Pipedream Connect API.
type ConnectClient struct {
	BaseURL     string
	ProjectID   string
	Environment string // "development" | "production"
	Tokens      *ProjectTokenSource
	HTTPClient  *http.Client
}

func NewConnectClient(baseURL, projectID, environment string, tokens *ProjectTokenSource) *ConnectClient {
	return &ConnectClient{
		BaseURL:     baseURL,
		ProjectID:   projectID,
		Environment: environment,
		Tokens:      tokens,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListConnectedAccounts returns the proxy accounts for one external user,
// or all project accounts when externalUserID is empty.
func (c *ConnectClient) ListConnectedAccounts(ctx context.Context, externalUserID string) ([]ProxyAccount, error) {
	query := url.Values{}
	if externalUserID != "" {
		query.Set("external_user_id", externalUserID)
	}

	var response struct {
		Data []ProxyAccount `json:"data"`
	}
	if err := c.do(ctx, "GET", "/accounts", query, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to list connected accounts: %w", err)
	}
	return response.Data, nil
}

// CreateConnectToken mints a short-lived token the dashboard uses to open
// the hosted connect flow for a user.
func (c *ConnectClient) CreateConnectToken(ctx context.Context, externalUserID string) (*ConnectToken, error) {
	payload := map[string]string{"external_user_id": externalUserID}

	var tok ConnectToken
	if err := c.do(ctx, "POST", "/tokens", nil, payload, &tok); err != nil {
		return nil, fmt.Errorf("failed to create connect token: %w", err)
	}
	return &tok, nil
}

// DeleteAccount disconnects an account at the proxy. The stored Google
// credentials are revoked by Pipedream.
func (c *ConnectClient) DeleteAccount(ctx context.Context, accountID string) error {
	if err := c.do(ctx, "DELETE", "/accounts/"+accountID, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete account %s: %w", accountID, err)
	}
	return nil
}

func (c *ConnectClient) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get project token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/connect/%s%s", strings.TrimSuffix(c.BaseURL, "/"), c.ProjectID, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-pd-environment", c.Environment)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("pipedream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pipedream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode pipedream response: %w", err)
	}
	return nil
}
