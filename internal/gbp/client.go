// internal/gbp/client.go
package gbp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Google Business Profile API roots. Reviews and media are still v4-only.
const (
	accountManagementAPI = "https://mybusinessaccountmanagement.googleapis.com/v1"
	businessInfoAPI      = "https://mybusinessbusinessinformation.googleapis.com/v1"
	legacyAPI            = "https://mybusiness.googleapis.com/v4"

	// Field mask required by the business information API on reads
	locationReadMask = "name,title,storefrontAddress,phoneNumbers,websiteUri,regularHours,categories,metadata"
)

// Account is a GBP account ("accounts/{id}").
type Account struct {
	Name              string `json:"name"`
	AccountName       string `json:"accountName"`
	Type              string `json:"type"`
	VerificationState string `json:"verificationState,omitempty"`
}

type PostalAddress struct {
	RegionCode         string   `json:"regionCode,omitempty"`
	PostalCode         string   `json:"postalCode,omitempty"`
	AdministrativeArea string   `json:"administrativeArea,omitempty"`
	Locality           string   `json:"locality,omitempty"`
	AddressLines       []string `json:"addressLines,omitempty"`
}

type PhoneNumbers struct {
	PrimaryPhone     string   `json:"primaryPhone,omitempty"`
	AdditionalPhones []string `json:"additionalPhones,omitempty"`
}

type Category struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type Categories struct {
	PrimaryCategory      *Category  `json:"primaryCategory,omitempty"`
	AdditionalCategories []Category `json:"additionalCategories,omitempty"`
}

type LocationMetadata struct {
	MapsURI      string `json:"mapsUri,omitempty"`
	NewReviewURI string `json:"newReviewUri,omitempty"`
}

// Location is a GBP listing ("locations/{id}").
type Location struct {
	Name              string            `json:"name,omitempty"`
	Title             string            `json:"title,omitempty"`
	StorefrontAddress *PostalAddress    `json:"storefrontAddress,omitempty"`
	PhoneNumbers      *PhoneNumbers     `json:"phoneNumbers,omitempty"`
	WebsiteURI        string            `json:"websiteUri,omitempty"`
	Categories        *Categories       `json:"categories,omitempty"`
	Metadata          *LocationMetadata `json:"metadata,omitempty"`
}

type Reviewer struct {
	ProfilePhotoURL string `json:"profilePhotoUrl,omitempty"`
	DisplayName     string `json:"displayName,omitempty"`
}

type ReviewReply struct {
	Comment    string     `json:"comment"`
	UpdateTime *time.Time `json:"updateTime,omitempty"`
}

// Review carries the v4 star rating as an enum string ("ONE".."FIVE").
type Review struct {
	Name        string       `json:"name"`
	ReviewID    string       `json:"reviewId"`
	Reviewer    Reviewer     `json:"reviewer"`
	StarRating  string       `json:"starRating"`
	Comment     string       `json:"comment,omitempty"`
	CreateTime  time.Time    `json:"createTime"`
	UpdateTime  time.Time    `json:"updateTime"`
	ReviewReply *ReviewReply `json:"reviewReply,omitempty"`
}

// ReviewsPage is the v4 reviews list envelope.
type ReviewsPage struct {
	Reviews          []Review `json:"reviews"`
	AverageRating    float64  `json:"averageRating"`
	TotalReviewCount int      `json:"totalReviewCount"`
	NextPageToken    string   `json:"nextPageToken,omitempty"`
}

type LocationAssociation struct {
	Category string `json:"category"`
}

type MediaItem struct {
	Name                string               `json:"name,omitempty"`
	MediaFormat         string               `json:"mediaFormat"`
	SourceURL           string               `json:"sourceUrl,omitempty"`
	GoogleURL           string               `json:"googleUrl,omitempty"`
	LocationAssociation *LocationAssociation `json:"locationAssociation,omitempty"`
}

// Client calls the Google Business Profile APIs through the Pipedream
// Connect proxy. The proxy injects the end user's Google OAuth credentials;
// we never hold them. Target URLs ride url-safe base64 in the proxy path.
type Client struct {
	BaseURL     string // Pipedream API base
	ProjectID   string
	Environment string
	Tokens      *ProjectTokenSource
	HTTPClient  *http.Client
}

func NewClient(baseURL, projectID, environment string, tokens *ProjectTokenSource) *Client {
	return &Client{
		BaseURL:     baseURL,
		ProjectID:   projectID,
		Environment: environment,
		Tokens:      tokens,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second, // Google can be slow behind the proxy
		},
	}
}

// ListAccounts returns the GBP accounts visible to the connected Google user.
func (c *Client) ListAccounts(ctx context.Context, externalUserID, accountID string) ([]Account, error) {
	var response struct {
		Accounts      []Account `json:"accounts"`
		NextPageToken string    `json:"nextPageToken"`
	}
	target := accountManagementAPI + "/accounts"
	if err := c.proxyDo(ctx, "GET", externalUserID, accountID, target, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to list gbp accounts: %w", err)
	}
	return response.Accounts, nil
}

// ListLocations pages through the listings under one account
// (accountName is "accounts/{id}").
func (c *Client) ListLocations(ctx context.Context, externalUserID, accountID, accountName string) ([]Location, error) {
	var all []Location
	pageToken := ""

	for {
		query := url.Values{}
		query.Set("readMask", locationReadMask)
		query.Set("pageSize", "100")
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var response struct {
			Locations     []Location `json:"locations"`
			NextPageToken string     `json:"nextPageToken"`
		}
		target := fmt.Sprintf("%s/%s/locations?%s", businessInfoAPI, accountName, query.Encode())
		if err := c.proxyDo(ctx, "GET", externalUserID, accountID, target, nil, &response); err != nil {
			return nil, fmt.Errorf("failed to list locations for %s: %w", accountName, err)
		}

		all = append(all, response.Locations...)
		if response.NextPageToken == "" {
			return all, nil
		}
		pageToken = response.NextPageToken
	}
}

// GetLocation fetches one listing (locationName is "locations/{id}").
func (c *Client) GetLocation(ctx context.Context, externalUserID, accountID, locationName string) (*Location, error) {
	query := url.Values{}
	query.Set("readMask", locationReadMask)

	var location Location
	target := fmt.Sprintf("%s/%s?%s", businessInfoAPI, locationName, query.Encode())
	if err := c.proxyDo(ctx, "GET", externalUserID, accountID, target, nil, &location); err != nil {
		return nil, fmt.Errorf("failed to get location %s: %w", locationName, err)
	}
	return &location, nil
}

// UpdateLocation patches the fields named in updateMask and returns the
// stored listing.
func (c *Client) UpdateLocation(ctx context.Context, externalUserID, accountID, locationName string, patch *Location, updateMask []string) (*Location, error) {
	if len(updateMask) == 0 {
		return nil, fmt.Errorf("update mask is required")
	}

	query := url.Values{}
	query.Set("updateMask", strings.Join(updateMask, ","))

	var updated Location
	target := fmt.Sprintf("%s/%s?%s", businessInfoAPI, locationName, query.Encode())
	if err := c.proxyDo(ctx, "PATCH", externalUserID, accountID, target, patch, &updated); err != nil {
		return nil, fmt.Errorf("failed to update location %s: %w", locationName, err)
	}
	return &updated, nil
}

// ListReviews fetches one page of reviews for a listing via the v4 API.
// locationPath is "accounts/{aid}/locations/{lid}".
func (c *Client) ListReviews(ctx context.Context, externalUserID, accountID, locationPath, pageToken string) (*ReviewsPage, error) {
	query := url.Values{}
	query.Set("pageSize", "50")
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	var page ReviewsPage
	target := fmt.Sprintf("%s/%s/reviews?%s", legacyAPI, locationPath, query.Encode())
	if err := c.proxyDo(ctx, "GET", externalUserID, accountID, target, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list reviews for %s: %w", locationPath, err)
	}
	return &page, nil
}

// ReplyReview upserts the owner reply on a review.
// reviewPath is "accounts/{aid}/locations/{lid}/reviews/{rid}".
func (c *Client) ReplyReview(ctx context.Context, externalUserID, accountID, reviewPath, comment string) (*ReviewReply, error) {
	payload := map[string]string{"comment": comment}

	var reply ReviewReply
	target := fmt.Sprintf("%s/%s/reply", legacyAPI, reviewPath)
	if err := c.proxyDo(ctx, "PUT", externalUserID, accountID, target, payload, &reply); err != nil {
		return nil, fmt.Errorf("failed to reply to review %s: %w", reviewPath, err)
	}
	return &reply, nil
}

// UploadMedia attaches a photo to a listing by public URL. Google fetches
// the bytes itself, so the URL must be reachable from outside (R2 public URL).
// category is a GBP association like "LOGO" or "COVER"; empty means a plain
// gallery photo.
func (c *Client) UploadMedia(ctx context.Context, externalUserID, accountID, locationPath, sourceURL, category string) (*MediaItem, error) {
	if category == "" {
		category = "ADDITIONAL"
	}
	payload := MediaItem{
		MediaFormat:         "PHOTO",
		SourceURL:           sourceURL,
		LocationAssociation: &LocationAssociation{Category: category},
	}

	var item MediaItem
	target := fmt.Sprintf("%s/%s/media", legacyAPI, locationPath)
	if err := c.proxyDo(ctx, "POST", externalUserID, accountID, target, payload, &item); err != nil {
		return nil, fmt.Errorf("failed to upload media to %s: %w", locationPath, err)
	}
	return &item, nil
}

// HealthCheck probes the connection by listing GBP accounts. An error means
// the stored Google credentials no longer work.
func (c *Client) HealthCheck(ctx context.Context, externalUserID, accountID string) error {
	if _, err := c.ListAccounts(ctx, externalUserID, accountID); err != nil {
		return err
	}
	return nil
}

// proxyDo sends one request through the Connect proxy. A 401 from the proxy
// itself means our project token went stale; invalidate and retry once.
func (c *Client) proxyDo(ctx context.Context, method, externalUserID, accountID, target string, payload, out interface{}) error {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	query := url.Values{}
	query.Set("external_user_id", externalUserID)
	query.Set("account_id", accountID)

	encoded := base64.RawURLEncoding.EncodeToString([]byte(target))
	endpoint := fmt.Sprintf("%s/v1/connect/%s/proxy/%s?%s",
		strings.TrimSuffix(c.BaseURL, "/"), c.ProjectID, encoded, query.Encode())

	for attempt := 0; ; attempt++ {
		token, err := c.Tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get project token: %w", err)
		}

		var reqBody io.Reader
		if bodyBytes != nil {
			reqBody = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("x-pd-environment", c.Environment)
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("proxy request failed: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			log.Printf("🔄 Pipedream proxy returned 401, refreshing project token and retrying")
			c.Tokens.Invalidate()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("proxy returned %d for %s %s: %s", resp.StatusCode, method, target, strings.TrimSpace(string(raw)))
		}

		if out == nil {
			resp.Body.Close()
			return nil
		}

		decodeErr := json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("failed to decode proxy response: %w", decodeErr)
		}
		return nil
	}
}
