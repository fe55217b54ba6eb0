// internal/hubspot/client.go
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	ObjectTypeContacts  = "contacts"
	ObjectTypeCompanies = "companies"

	// Property that carries the record's last-modified time, per object type
	ContactModifiedProperty = "lastmodifieddate"
	CompanyModifiedProperty = "hs_lastmodifieddate"

	// The search API stops paging past this many results; callers must
	// restart with a newer watermark to go further.
	SearchResultCap = 10000
)

// Properties requested on every contact/company fetch
var (
	ContactProperties = []string{
		"email", "firstname", "lastname", "phone", "company",
		"lifecyclestage", "createdate", "lastmodifieddate",
	}
	CompanyProperties = []string{
		"name", "domain", "phone", "city", "state", "industry",
		"createdate", "hs_lastmodifieddate",
	}
)

// Object is a CRM record as returned by the v3 objects API.
type Object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Archived   bool              `json:"archived"`
}

// ModifiedAt reads the object's last-modified property, falling back to the
// envelope timestamp.
func (o *Object) ModifiedAt(property string) time.Time {
	if t, ok := ParsePropertyTime(o.Properties[property]); ok {
		return t
	}
	return o.UpdatedAt
}

// ParsePropertyTime parses a datetime property value. HubSpot returns
// RFC3339; older portals return epoch millis.
func ParsePropertyTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

type PagingNext struct {
	After string `json:"after"`
	Link  string `json:"link,omitempty"`
}

type Paging struct {
	Next *PagingNext `json:"next,omitempty"`
}

// ListResponse is the page envelope for both list and search calls.
// Total is only populated by search.
type ListResponse struct {
	Total   int64    `json:"total,omitempty"`
	Results []Object `json:"results"`
	Paging  *Paging  `json:"paging,omitempty"`
}

// NextAfter returns the cursor for the next page, or "" on the last page.
func (r *ListResponse) NextAfter() string {
	if r.Paging == nil || r.Paging.Next == nil {
		return ""
	}
	return r.Paging.Next.After
}

// AccountDetails identifies the connected portal.
type AccountDetails struct {
	PortalID int64  `json:"portalId"`
	TimeZone string `json:"timeZone"`
	Currency string `json:"currency"`
}

// APIError is HubSpot's error envelope plus the HTTP status it came with.
type APIError struct {
	StatusCode    int    `json:"-"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	Category      string `json:"category"`
	CorrelationID string `json:"correlationId"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("hubspot returned %d (%s): %s", e.StatusCode, e.Category, e.Message)
	}
	return fmt.Sprintf("hubspot returned %d", e.StatusCode)
}

type searchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchFilterGroup struct {
	Filters []searchFilter `json:"filters"`
}

type searchSort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

type searchRequest struct {
	FilterGroups []searchFilterGroup `json:"filterGroups"`
	Sorts        []searchSort        `json:"sorts"`
	Properties   []string            `json:"properties"`
	Limit        int                 `json:"limit"`
	After        string              `json:"after,omitempty"`
}

type propertiesPayload struct {
	Properties map[string]string `json:"properties"`
}

// Client talks to the HubSpot CRM v3 API. Tokens come from a TokenSource
// so private-app and OAuth portals share the same client.
type Client struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
}

func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		BaseURL: baseURL,
		Tokens:  tokens,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListContacts fetches one page of contacts. Pass after="" for the first page.
func (c *Client) ListContacts(ctx context.Context, limit int, after string) (*ListResponse, error) {
	return c.listObjects(ctx, ObjectTypeContacts, ContactProperties, limit, after)
}

// ListCompanies fetches one page of companies.
func (c *Client) ListCompanies(ctx context.Context, limit int, after string) (*ListResponse, error) {
	return c.listObjects(ctx, ObjectTypeCompanies, CompanyProperties, limit, after)
}

func (c *Client) listObjects(ctx context.Context, objectType string, properties []string, limit int, after string) (*ListResponse, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("properties", strings.Join(properties, ","))
	if after != "" {
		query.Set("after", after)
	}

	var page ListResponse
	if err := c.do(ctx, "GET", "/crm/v3/objects/"+objectType, query, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", objectType, err)
	}
	return &page, nil
}

// SearchContactsModifiedSince fetches one page of contacts modified at or
// after since, oldest first.
func (c *Client) SearchContactsModifiedSince(ctx context.Context, since time.Time, limit int, after string) (*ListResponse, error) {
	return c.searchModifiedSince(ctx, ObjectTypeContacts, ContactModifiedProperty, ContactProperties, since, limit, after)
}

// SearchCompaniesModifiedSince fetches one page of companies modified at or
// after since, oldest first.
func (c *Client) SearchCompaniesModifiedSince(ctx context.Context, since time.Time, limit int, after string) (*ListResponse, error) {
	return c.searchModifiedSince(ctx, ObjectTypeCompanies, CompanyModifiedProperty, CompanyProperties, since, limit, after)
}

func (c *Client) searchModifiedSince(ctx context.Context, objectType, modifiedProperty string, properties []string, since time.Time, limit int, after string) (*ListResponse, error) {
	// Search filter values take epoch millis
	payload := searchRequest{
		FilterGroups: []searchFilterGroup{{
			Filters: []searchFilter{{
				PropertyName: modifiedProperty,
				Operator:     "GTE",
				Value:        strconv.FormatInt(since.UnixMilli(), 10),
			}},
		}},
		Sorts: []searchSort{{
			PropertyName: modifiedProperty,
			Direction:    "ASCENDING",
		}},
		Properties: properties,
		Limit:      limit,
		After:      after,
	}

	var page ListResponse
	if err := c.do(ctx, "POST", "/crm/v3/objects/"+objectType+"/search", nil, payload, &page); err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", objectType, err)
	}
	return &page, nil
}

// GetContact fetches a single contact by HubSpot id.
func (c *Client) GetContact(ctx context.Context, contactID string) (*Object, error) {
	query := url.Values{}
	query.Set("properties", strings.Join(ContactProperties, ","))

	var obj Object
	if err := c.do(ctx, "GET", "/crm/v3/objects/contacts/"+contactID, query, nil, &obj); err != nil {
		return nil, fmt.Errorf("failed to get contact %s: %w", contactID, err)
	}
	return &obj, nil
}

// CreateContact creates a contact and returns the record HubSpot stored.
func (c *Client) CreateContact(ctx context.Context, properties map[string]string) (*Object, error) {
	var obj Object
	if err := c.do(ctx, "POST", "/crm/v3/objects/contacts", nil, propertiesPayload{Properties: properties}, &obj); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return &obj, nil
}

// UpdateContact patches contact properties and returns the updated record.
func (c *Client) UpdateContact(ctx context.Context, contactID string, properties map[string]string) (*Object, error) {
	var obj Object
	if err := c.do(ctx, "PATCH", "/crm/v3/objects/contacts/"+contactID, nil, propertiesPayload{Properties: properties}, &obj); err != nil {
		return nil, fmt.Errorf("failed to update contact %s: %w", contactID, err)
	}
	return &obj, nil
}

// UpdateCompany patches company properties and returns the updated record.
func (c *Client) UpdateCompany(ctx context.Context, companyID string, properties map[string]string) (*Object, error) {
	var obj Object
	if err := c.do(ctx, "PATCH", "/crm/v3/objects/companies/"+companyID, nil, propertiesPayload{Properties: properties}, &obj); err != nil {
		return nil, fmt.Errorf("failed to update company %s: %w", companyID, err)
	}
	return &obj, nil
}

// GetAccountDetails probes the connected portal. Used by the health check
// and the OAuth callback.
func (c *Client) GetAccountDetails(ctx context.Context) (*AccountDetails, error) {
	var details AccountDetails
	if err := c.do(ctx, "GET", "/integrations/v1/me", nil, nil, &details); err != nil {
		return nil, fmt.Errorf("failed to get account details: %w", err)
	}
	return &details, nil
}

// do runs one API call. On a 401 the token is invalidated and the call is
// retried once with a fresh token.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	endpoint := strings.TrimSuffix(c.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		token, err := c.Tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get hubspot token: %w", err)
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
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("hubspot request failed: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			log.Printf("🔄 HubSpot returned 401, refreshing token and retrying %s %s", method, path)
			c.Tokens.Invalidate()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := decodeAPIError(resp)
			resp.Body.Close()
			return apiErr
		}

		if out == nil {
			resp.Body.Close()
			return nil
		}

		decodeErr := json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("failed to decode hubspot response: %w", decodeErr)
		}
		return nil
	}
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
