// internal/brightlocal/client.go
package brightlocal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Location is a client location in the BrightLocal management API.
// BrightLocal keys are hyphenated.
type Location struct {
	LocationID        int    `json:"location-id,omitempty"`
	LocationReference string `json:"location-reference,omitempty"`
	Name              string `json:"name"`
	Address1          string `json:"address1,omitempty"`
	Address2          string `json:"address2,omitempty"`
	Town              string `json:"town,omitempty"`
	Region            string `json:"region,omitempty"`
	Postcode          string `json:"postcode,omitempty"`
	Country           string `json:"country,omitempty"` // ISO-3 ("USA")
	Telephone         string `json:"telephone,omitempty"`
	Website           string `json:"website,omitempty"`
}

// Citation is one directory listing inside a campaign or audit report.
type Citation struct {
	Site            string `json:"site"`
	Status          string `json:"status,omitempty"` // "Pending" | "Submitted" | "Live"
	URL             string `json:"url,omitempty"`
	DomainAuthority int    `json:"domain-authority,omitempty"`
}

// Campaign is a citation builder campaign.
type Campaign struct {
	CampaignID int        `json:"campaign-id"`
	LocationID int        `json:"location-id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Status     string     `json:"status,omitempty"`
	Citations  []Citation `json:"citations,omitempty"`
}

// AuditReport is a citation tracker report.
type AuditReport struct {
	ReportID       int        `json:"report-id"`
	LocationID     int        `json:"location-id,omitempty"`
	Status         string     `json:"status"` // "pending" | "running" | "complete"
	CitationsFound int        `json:"citations-found,omitempty"`
	Citations      []Citation `json:"citations,omitempty"`
}

// Envelope is BrightLocal's response wrapper. Failures can arrive with
// HTTP 200 and success=false, so both get checked.
type Envelope struct {
	Success bool            `json:"success"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// ErrorText flattens whatever shape the errors field took.
func (e *Envelope) ErrorText() string {
	if len(e.Errors) == 0 {
		return "unknown error"
	}
	return strings.TrimSpace(string(e.Errors))
}

// Client talks to the BrightLocal API. Auth is a static api-key parameter
// on every request: query for reads, form field for writes.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListLocations fetches one page of managed locations (1-based page).
func (c *Client) ListLocations(ctx context.Context, page int) ([]Location, error) {
	params := url.Values{}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}

	var response struct {
		Envelope
		Locations []Location `json:"locations"`
	}
	if err := c.do(ctx, "GET", "/v1/clients-and-locations/locations", params, &response); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return response.Locations, nil
}

// CreateLocation registers a location and returns the BrightLocal id.
func (c *Client) CreateLocation(ctx context.Context, loc *Location) (int, error) {
	var response struct {
		Envelope
		LocationID int `json:"location-id"`
	}
	if err := c.do(ctx, "POST", "/v1/clients-and-locations/locations/add", locationForm(loc), &response); err != nil {
		return 0, fmt.Errorf("failed to create location: %w", err)
	}
	return response.LocationID, nil
}

// UpdateLocation pushes changed fields for an existing location.
func (c *Client) UpdateLocation(ctx context.Context, locationID int, loc *Location) error {
	path := "/v1/clients-and-locations/locations/update/" + strconv.Itoa(locationID)
	var response Envelope
	if err := c.do(ctx, "PUT", path, locationForm(loc), &response); err != nil {
		return fmt.Errorf("failed to update location %d: %w", locationID, err)
	}
	return nil
}

// CreateCampaign starts a citation builder campaign for a location.
func (c *Client) CreateCampaign(ctx context.Context, locationID int, name string) (int, error) {
	form := url.Values{}
	form.Set("location-id", strconv.Itoa(locationID))
	form.Set("name", name)

	var response struct {
		Envelope
		CampaignID int `json:"campaign-id"`
	}
	if err := c.do(ctx, "POST", "/v4/cb/create", form, &response); err != nil {
		return 0, fmt.Errorf("failed to create campaign: %w", err)
	}
	return response.CampaignID, nil
}

// GetCampaign fetches a campaign with its citation list.
func (c *Client) GetCampaign(ctx context.Context, campaignID int) (*Campaign, error) {
	params := url.Values{}
	params.Set("campaign-id", strconv.Itoa(campaignID))

	var response struct {
		Envelope
		Campaign Campaign `json:"campaign"`
	}
	if err := c.do(ctx, "GET", "/v4/cb/get", params, &response); err != nil {
		return nil, fmt.Errorf("failed to get campaign %d: %w", campaignID, err)
	}
	return &response.Campaign, nil
}

// ListCitations returns the citations built so far for a campaign.
func (c *Client) ListCitations(ctx context.Context, campaignID int) ([]Citation, error) {
	campaign, err := c.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return campaign.Citations, nil
}

// RunAudit kicks off a citation tracker run and returns the report id.
func (c *Client) RunAudit(ctx context.Context, locationID int) (int, error) {
	form := url.Values{}
	form.Set("location-id", strconv.Itoa(locationID))

	var response struct {
		Envelope
		ReportID int `json:"report-id"`
	}
	if err := c.do(ctx, "POST", "/v4/ct/run", form, &response); err != nil {
		return 0, fmt.Errorf("failed to run audit: %w", err)
	}
	return response.ReportID, nil
}

// GetAuditReport fetches an audit; status stays "pending" until BrightLocal
// finishes crawling.
func (c *Client) GetAuditReport(ctx context.Context, reportID int) (*AuditReport, error) {
	params := url.Values{}
	params.Set("report-id", strconv.Itoa(reportID))

	var response struct {
		Envelope
		Report AuditReport `json:"report"`
	}
	if err := c.do(ctx, "GET", "/v4/ct/get", params, &response); err != nil {
		return nil, fmt.Errorf("failed to get audit report %d: %w", reportID, err)
	}
	return &response.Report, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api-key", c.APIKey)

	endpoint := strings.TrimSuffix(c.BaseURL, "/") + path
	var body io.Reader
	if method == "GET" || method == "DELETE" {
		endpoint += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("brightlocal request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("brightlocal returned %d with unparseable body: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode >= 400 || !env.Success {
		return fmt.Errorf("brightlocal returned %d: %s", resp.StatusCode, env.ErrorText())
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode brightlocal response: %w", err)
		}
	}
	return nil
}

func locationForm(loc *Location) url.Values {
	form := url.Values{}
	form.Set("name", loc.Name)
	setIfPresent(form, "location-reference", loc.LocationReference)
	setIfPresent(form, "address1", loc.Address1)
	setIfPresent(form, "address2", loc.Address2)
	setIfPresent(form, "town", loc.Town)
	setIfPresent(form, "region", loc.Region)
	setIfPresent(form, "postcode", loc.Postcode)
	setIfPresent(form, "country", loc.Country)
	setIfPresent(form, "telephone", loc.Telephone)
	setIfPresent(form, "website", loc.Website)
	return form
}

func setIfPresent(form url.Values, key, value string) {
	if value != "" {
		form.Set(key, value)
	}
}
