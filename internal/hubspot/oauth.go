// internal/hubspot/oauth.go
package hubspot

import (
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
	AuthorizeURL    = "https://app.hubspot.com/oauth/authorize"
	DefaultTokenURL = "https://api.hubapi.com/oauth/v1/token"

	// Access tokens are refreshed this long before they expire
	refreshLeeway = 5 * time.Minute
)

var oauthScopes = []string{
	"crm.objects.contacts.read",
	"crm.objects.contacts.write",
	"crm.objects.companies.read",
	"crm.objects.companies.write",
}

// TokenSource supplies the bearer token for API calls. Invalidate drops any
// cached token so the next call fetches a fresh one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// StaticTokenSource wraps a private-app access token. Those never expire,
// so Invalidate is a no-op.
type StaticTokenSource struct {
	AccessToken string
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s.AccessToken == "" {
		return "", fmt.Errorf("hubspot access token is not configured")
	}
	return s.AccessToken, nil
}

func (s *StaticTokenSource) Invalidate() {}

// OAuthApp holds the app credentials for the authorization-code flow.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenURL     string // DefaultTokenURL unless overridden for tests
	HTTPClient   *http.Client
}

func NewOAuthApp(clientID, clientSecret, redirectURL string) *OAuthApp {
	return &OAuthApp{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		TokenURL:     DefaultTokenURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TokenResponse is HubSpot's token-endpoint payload for both grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
	TokenType    string `json:"token_type"`
}

// AuthorizationURL builds the consent URL the dashboard redirects to.
func (a *OAuthApp) AuthorizationURL(state string) string {
	params := url.Values{}
	params.Set("client_id", a.ClientID)
	params.Set("redirect_uri", a.RedirectURL)
	params.Set("scope", strings.Join(oauthScopes, " "))
	if state != "" {
		params.Set("state", state)
	}
	return AuthorizeURL + "?" + params.Encode()
}

// ExchangeCode swaps the callback code for an access/refresh token pair.
func (a *OAuthApp) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", a.ClientID)
	form.Set("client_secret", a.ClientSecret)
	form.Set("redirect_uri", a.RedirectURL)
	form.Set("code", code)

	tok, err := a.requestToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("hubspot token response missing refresh token")
	}
	return tok, nil
}

// RefreshToken trades the long-lived refresh token for a new access token.
func (a *OAuthApp) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", a.ClientID)
	form.Set("client_secret", a.ClientSecret)
	form.Set("refresh_token", refreshToken)

	tok, err := a.requestToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	return tok, nil
}

func (a *OAuthApp) requestToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	tokenURL := a.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned an empty access token")
	}
	return &tok, nil
}

// RefreshTokenSource keeps an OAuth access token fresh. The mutex makes the
// refresh single-flight: concurrent callers wait for one refresh instead of
// racing the token endpoint.
type RefreshTokenSource struct {
	App          *OAuthApp
	RefreshToken string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewRefreshTokenSource(app *OAuthApp, refreshToken string) *RefreshTokenSource {
	return &RefreshTokenSource{
		App:          app,
		RefreshToken: refreshToken,
	}
}

// Seed installs a token pair obtained from the code exchange so the first
// API call does not need an extra refresh round-trip.
func (s *RefreshTokenSource) Seed(tok *TokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = tok.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.RefreshToken != "" {
		s.RefreshToken = tok.RefreshToken
	}
}

func (s *RefreshTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && time.Now().Before(s.expiresAt.Add(-refreshLeeway)) {
		return s.accessToken, nil
	}

	if s.RefreshToken == "" {
		return "", fmt.Errorf("no hubspot refresh token available")
	}

	tok, err := s.App.RefreshToken(ctx, s.RefreshToken)
	if err != nil {
		return "", err
	}

	s.accessToken = tok.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.RefreshToken != "" {
		s.RefreshToken = tok.RefreshToken
	}

	log.Printf("✅ HubSpot access token refreshed, expires in %ds (token: %s)", tok.ExpiresIn, maskToken(tok.AccessToken))
	return s.accessToken, nil
}

func (s *RefreshTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
}

// maskToken keeps logs safe; only the last few characters survive.
func maskToken(token string) string {
	if len(token) <= 6 {
		return "******"
	}
	return "..." + token[len(token)-6:]
}
