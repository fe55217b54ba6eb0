// internal/service/listings.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"listings-service/internal/brightlocal"
	"listings-service/internal/gbp"
	"listings-service/internal/hubspot"
	"listings-service/internal/listing"
	"listings-service/internal/sse"
	"listings-service/internal/sync"
	"listings-service/pkg/models"
	"listings-service/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AccountAlertSink receives connected-account health transitions.
type AccountAlertSink interface {
	AccountUnhealthy(acct *models.ConnectedAccount)
}

// ListingsService is the application core behind the HTTP layer: mirror
// reads, the dual-write contact path, and connected-account management.
type ListingsService struct {
	db          *gorm.DB
	hubspot     *hubspot.Client
	gbp         *gbp.Client
	connect     *gbp.ConnectClient
	brightlocal *brightlocal.Client
	r2          *utils.MediaR2Client
	events      *sse.Broker
	alerts      AccountAlertSink
}

func NewListingsService(
	hs *hubspot.Client,
	gbpClient *gbp.Client,
	connectClient *gbp.ConnectClient,
	bl *brightlocal.Client,
	r2 *utils.MediaR2Client,
	events *sse.Broker,
	alerts AccountAlertSink,
) *ListingsService {
	return &ListingsService{
		db:          listing.GetDB(),
		hubspot:     hs,
		gbp:         gbpClient,
		connect:     connectClient,
		brightlocal: bl,
		r2:          r2,
		events:      events,
		alerts:      alerts,
	}
}

func (s *ListingsService) GetDB() *gorm.DB {
	return s.db
}

// GetSSEBroker exposes the event broker to the SSE transport.
func (s *ListingsService) GetSSEBroker() *sse.Broker {
	return s.events
}

// --- Mirror reads ---

func (s *ListingsService) ListContacts(ctx context.Context, limit, offset int, search string) ([]*models.Contact, error) {
	query := s.db.WithContext(ctx).
		Order("hs_updated_at DESC").
		Limit(limit).
		Offset(offset)
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?", like, like, like)
	}
	var contacts []*models.Contact
	err := query.Find(&contacts).Error
	return contacts, err
}

func (s *ListingsService) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	var contact models.Contact
	if err := s.contactQuery(ctx, id).First(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

// contactQuery matches either the mirror row id or the CRM id, so dashboard
// links work with both.
func (s *ListingsService) contactQuery(ctx context.Context, id string) *gorm.DB {
	if _, err := uuid.Parse(id); err == nil {
		return s.db.WithContext(ctx).Where("id = ?", id)
	}
	return s.db.WithContext(ctx).Where("hubspot_id = ?", id)
}

func (s *ListingsService) ListCompanies(ctx context.Context, limit, offset int, search string) ([]*models.Company, error) {
	query := s.db.WithContext(ctx).
		Order("hs_updated_at DESC").
		Limit(limit).
		Offset(offset)
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("name ILIKE ? OR domain ILIKE ?", like, like)
	}
	var companies []*models.Company
	err := query.Find(&companies).Error
	return companies, err
}

// --- Dual-write contact path ---
//
// HubSpot is the system of record: the CRM write goes first, and a mirror
// failure never rolls it back. The response carries mirror_synced=false and
// the scheduler converges the mirror on its next pass.

func (s *ListingsService) CreateContact(ctx context.Context, req *models.ContactRequest) (*models.Contact, bool, error) {
	obj, err := s.hubspot.CreateContact(ctx, req.HubspotProperties())
	if err != nil {
		return nil, false, fmt.Errorf("hubspot create failed: %w", err)
	}

	contact, err := sync.MapContact(obj)
	if err != nil {
		log.Printf("⚠️ Mirror mapping failed for new contact %s: %v", obj.ID, err)
		return &models.Contact{
			HubspotID: obj.ID,
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}, false, nil
	}

	if err := s.db.WithContext(ctx).Create(contact).Error; err != nil {
		log.Printf("⚠️ Mirror insert failed for contact %s: %v", obj.ID, err)
		return contact, false, nil
	}

	log.Printf("✅ Contact %s created in HubSpot and mirrored", obj.ID)
	return contact, true, nil
}

func (s *ListingsService) UpdateContact(ctx context.Context, id string, req *models.ContactRequest) (*models.Contact, bool, error) {
	var existing models.Contact
	found := true
	if err := s.contactQuery(ctx, id).First(&existing).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, false, err
		}
		found = false
	}

	hubspotID := id
	if found {
		hubspotID = existing.HubspotID
	} else if _, err := uuid.Parse(id); err == nil {
		// A mirror UUID with no row cannot be resolved to a CRM record
		return nil, false, gorm.ErrRecordNotFound
	}

	obj, err := s.hubspot.UpdateContact(ctx, hubspotID, req.HubspotProperties())
	if err != nil {
		return nil, false, fmt.Errorf("hubspot update failed: %w", err)
	}

	// The CRM write has landed; everything below is mirror bookkeeping.
	incoming, err := sync.MapContact(obj)
	if err != nil {
		log.Printf("⚠️ Mirror mapping failed for contact %s: %v", hubspotID, err)
		return &existing, false, nil
	}

	if !found {
		if err := s.db.WithContext(ctx).Create(incoming).Error; err != nil {
			log.Printf("⚠️ Mirror insert failed for contact %s: %v", hubspotID, err)
			return incoming, false, nil
		}
		return incoming, true, nil
	}

	mergeContact(&existing, incoming)
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		log.Printf("⚠️ Mirror update failed for contact %s: %v", hubspotID, err)
		return &existing, false, nil
	}

	log.Printf("✅ Contact %s updated in HubSpot and mirrored", hubspotID)
	return &existing, true, nil
}

// mergeContact overlays a PATCH response onto the mirror row. HubSpot echoes
// only the properties it was sent plus its defaults, so absent fields keep
// their mirrored values.
func mergeContact(existing, incoming *models.Contact) {
	if incoming.Email != "" {
		existing.Email = incoming.Email
	}
	if incoming.FirstName != "" {
		existing.FirstName = incoming.FirstName
	}
	if incoming.LastName != "" {
		existing.LastName = incoming.LastName
	}
	if incoming.Phone != nil {
		existing.Phone = incoming.Phone
	}
	if incoming.CompanyName != nil {
		existing.CompanyName = incoming.CompanyName
	}
	if incoming.LifecycleStage != nil {
		existing.LifecycleStage = incoming.LifecycleStage
	}
	if incoming.HSUpdatedAt.After(existing.HSUpdatedAt) {
		existing.HSUpdatedAt = incoming.HSUpdatedAt
	}
	existing.Properties = mergeProperties(existing.Properties, incoming.Properties)
}

func mergeProperties(stored, patch datatypes.JSON) datatypes.JSON {
	if len(patch) == 0 {
		return stored
	}
	if len(stored) == 0 {
		return patch
	}
	var base, overlay map[string]string
	if err := json.Unmarshal(stored, &base); err != nil {
		return patch
	}
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return stored
	}
	for k, v := range overlay {
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return stored
	}
	return datatypes.JSON(merged)
}

func (s *ListingsService) companyQuery(ctx context.Context, id string) *gorm.DB {
	if _, err := uuid.Parse(id); err == nil {
		return s.db.WithContext(ctx).Where("id = ?", id)
	}
	return s.db.WithContext(ctx).Where("hubspot_id = ?", id)
}

// UpdateCompany follows the same dual-write order as contacts: CRM first,
// mirror second, no rollback.
func (s *ListingsService) UpdateCompany(ctx context.Context, id string, req *models.CompanyRequest) (*models.Company, bool, error) {
	var existing models.Company
	found := true
	if err := s.companyQuery(ctx, id).First(&existing).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, false, err
		}
		found = false
	}

	hubspotID := id
	if found {
		hubspotID = existing.HubspotID
	} else if _, err := uuid.Parse(id); err == nil {
		// A mirror UUID with no row cannot be resolved to a CRM record
		return nil, false, gorm.ErrRecordNotFound
	}

	obj, err := s.hubspot.UpdateCompany(ctx, hubspotID, req.HubspotProperties())
	if err != nil {
		return nil, false, fmt.Errorf("hubspot update failed: %w", err)
	}

	incoming, err := sync.MapCompany(obj)
	if err != nil {
		log.Printf("⚠️ Mirror mapping failed for company %s: %v", hubspotID, err)
		return &existing, false, nil
	}

	if !found {
		if err := s.db.WithContext(ctx).Create(incoming).Error; err != nil {
			log.Printf("⚠️ Mirror insert failed for company %s: %v", hubspotID, err)
			return incoming, false, nil
		}
		return incoming, true, nil
	}

	mergeCompany(&existing, incoming)
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		log.Printf("⚠️ Mirror update failed for company %s: %v", hubspotID, err)
		return &existing, false, nil
	}

	log.Printf("✅ Company %s updated in HubSpot and mirrored", hubspotID)
	return &existing, true, nil
}

func mergeCompany(existing, incoming *models.Company) {
	if incoming.Name != "" {
		existing.Name = incoming.Name
	}
	if incoming.Domain != nil {
		existing.Domain = incoming.Domain
	}
	if incoming.Phone != nil {
		existing.Phone = incoming.Phone
	}
	if incoming.City != nil {
		existing.City = incoming.City
	}
	if incoming.State != nil {
		existing.State = incoming.State
	}
	if incoming.Industry != nil {
		existing.Industry = incoming.Industry
	}
	if incoming.HSUpdatedAt.After(existing.HSUpdatedAt) {
		existing.HSUpdatedAt = incoming.HSUpdatedAt
	}
	existing.Properties = mergeProperties(existing.Properties, incoming.Properties)
}

// --- Connected accounts (GBP via the Connect proxy) ---

func (s *ListingsService) ListConnectedAccounts(ctx context.Context) ([]*models.ConnectedAccount, error) {
	var accounts []*models.ConnectedAccount
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

// RefreshConnectedAccounts pulls the proxy's account list for the calling
// dashboard user, upserts the local rows, and returns the full agency set.
func (s *ListingsService) RefreshConnectedAccounts(ctx context.Context, externalUserID string) ([]*models.ConnectedAccount, error) {
	proxied, err := s.connect.ListConnectedAccounts(ctx, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list proxy accounts: %w", err)
	}

	for _, pa := range proxied {
		healthy := pa.Healthy && !pa.Dead

		var acct models.ConnectedAccount
		result := s.db.WithContext(ctx).Where("account_id = ?", pa.ID).First(&acct)
		if result.Error != nil {
			if result.Error != gorm.ErrRecordNotFound {
				return nil, result.Error
			}
			acct = models.ConnectedAccount{
				AccountID:      pa.ID,
				Provider:       models.ProviderGoogleBusiness,
				ExternalUserID: externalUserID,
				Healthy:        healthy,
			}
			if pa.Name != "" {
				label := pa.Name
				acct.Label = &label
			}
			if err := s.db.WithContext(ctx).Create(&acct).Error; err != nil {
				return nil, fmt.Errorf("failed to register account %s: %w", pa.ID, err)
			}
			log.Printf("✅ Connected account %s registered", pa.ID)
			continue
		}

		updates := map[string]interface{}{"healthy": healthy}
		if pa.Name != "" {
			updates["label"] = pa.Name
		}
		if err := s.db.WithContext(ctx).Model(&acct).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.ListConnectedAccounts(ctx)
}

// CreateConnectSession starts a new Connect link flow for the dashboard.
func (s *ListingsService) CreateConnectSession(ctx context.Context, externalUserID string) (*gbp.ConnectToken, error) {
	tok, err := s.connect.CreateConnectToken(ctx, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to create connect token: %w", err)
	}
	return tok, nil
}

// CheckAccountHealth probes the account's Google credentials through the
// proxy and persists the outcome. A healthy-to-unhealthy transition raises
// an ops alert and an SSE event.
func (s *ListingsService) CheckAccountHealth(ctx context.Context, accountID string) (*models.ConnectedAccount, error) {
	acct, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	wasHealthy := acct.Healthy
	now := time.Now().UTC()
	checkErr := s.gbp.HealthCheck(ctx, acct.ExternalUserID, acct.AccountID)

	acct.LastCheckedAt = &now
	if checkErr != nil {
		msg := checkErr.Error()
		acct.Healthy = false
		acct.LastError = &msg
	} else {
		acct.Healthy = true
		acct.LastError = nil
	}

	if err := s.db.WithContext(ctx).Save(acct).Error; err != nil {
		return nil, err
	}

	if s.events != nil {
		payload := sse.AccountHealth{AccountID: acct.AccountID, Healthy: acct.Healthy}
		if acct.LastError != nil {
			payload.Error = *acct.LastError
		}
		s.events.BroadcastToAll(sse.Event{Type: sse.EventAccountHealth, Data: payload})
	}

	if wasHealthy && !acct.Healthy {
		log.Printf("❌ Connected account %s failed its health check: %v", acct.AccountID, checkErr)
		if s.alerts != nil {
			s.alerts.AccountUnhealthy(acct)
		}
	}

	return acct, nil
}

// DisconnectAccount revokes the account at the proxy first; the local row
// is only removed once the proxy delete succeeds.
func (s *ListingsService) DisconnectAccount(ctx context.Context, accountID string) error {
	acct, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.connect.DeleteAccount(ctx, acct.AccountID); err != nil {
		return fmt.Errorf("failed to delete proxy account: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(acct).Error; err != nil {
		return err
	}
	log.Printf("🔄 Connected account %s disconnected", accountID)
	return nil
}

func (s *ListingsService) getAccount(ctx context.Context, accountID string) (*models.ConnectedAccount, error) {
	var acct models.ConnectedAccount
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

// --- GBP passthrough ---
//
// Routes address accounts by the proxy account id; the stored row supplies
// the external_user_id the proxy call needs.

// AccountLocations lists every location visible to the connected account,
// across all of its Google Business accounts.
func (s *ListingsService) AccountLocations(ctx context.Context, accountID string) ([]gbp.Location, error) {
	acct, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	googleAccounts, err := s.gbp.ListAccounts(ctx, acct.ExternalUserID, acct.AccountID)
	if err != nil {
		return nil, err
	}

	var all []gbp.Location
	for _, ga := range googleAccounts {
		locations, err := s.gbp.ListLocations(ctx, acct.ExternalUserID, acct.AccountID, ga.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to list locations for %s: %w", ga.Name, err)
		}
		all = append(all, locations...)
	}
	return all, nil
}

func (s *ListingsService) GetLocation(ctx context.Context, accountID, locationPath string) (*gbp.Location, error) {
	acct, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.gbp.GetLocation(ctx, acct.ExternalUserID, acct.AccountID, locationPath)
}

func (s *ListingsService) UpdateLocation(ctx context.Context, accountID, locationPath string, patch *gbp.Location, updateMask []string) (*gbp.Location, error) {
	acct, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.gbp.UpdateLocation(ctx, acct.ExternalUserID, acct.AccountID, locationPath, patch, updateMask)
}

func (s *ListingsService) LocationReviews(ctx context.Context, accountID, locationPath, pageToken string) (*gbp.ReviewsPage, error) {
	acct, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.gbp.ListReviews(ctx, acct.ExternalUserID, acct.AccountID, locationPath, pageToken)
}

func (s *ListingsService) ReplyToReview(ctx context.Context, accountID, reviewPath, comment string) (*gbp.ReviewReply, error) {
	acct, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.gbp.ReplyReview(ctx, acct.ExternalUserID, acct.AccountID, reviewPath, comment)
}

// UploadLocationPhoto stages the photo in R2 and attaches its public URL to
// the location. Google fetches media by URL, never by direct upload here.
func (s *ListingsService) UploadLocationPhoto(ctx context.Context, accountID, locationPath string, file io.Reader, filename string) (*gbp.MediaItem, string, error) {
	return s.uploadLocationMedia(ctx, accountID, locationPath, file, filename, false)
}

// UploadLocationLogo attaches the image with the LOGO category, so Google
// replaces the listing's logo instead of adding a gallery photo.
func (s *ListingsService) UploadLocationLogo(ctx context.Context, accountID, locationPath string, file io.Reader, filename string) (*gbp.MediaItem, string, error) {
	return s.uploadLocationMedia(ctx, accountID, locationPath, file, filename, true)
}

func (s *ListingsService) uploadLocationMedia(ctx context.Context, accountID, locationPath string, file io.Reader, filename string, logo bool) (*gbp.MediaItem, string, error) {
	acct, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, "", err
	}

	var publicURL string
	if logo {
		publicURL, err = s.r2.UploadListingLogo(ctx, file, filename, acct.AccountID)
	} else {
		publicURL, err = s.r2.UploadListingPhoto(ctx, file, filename, acct.AccountID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to stage photo: %w", err)
	}

	category := ""
	if logo {
		category = "LOGO"
	}
	item, err := s.gbp.UploadMedia(ctx, acct.ExternalUserID, acct.AccountID, locationPath, publicURL, category)
	if err != nil {
		if delErr := s.r2.DeleteMediaFile(ctx, publicURL); delErr != nil {
			log.Printf("⚠️ Failed to clean staged photo %s: %v", publicURL, delErr)
		}
		return nil, "", fmt.Errorf("failed to attach media: %w", err)
	}

	log.Printf("✅ Photo attached to %s (%s)", locationPath, publicURL)
	return item, publicURL, nil
}

// --- BrightLocal passthrough ---

func (s *ListingsService) BrightLocalLocations(ctx context.Context, page int) ([]brightlocal.Location, error) {
	return s.brightlocal.ListLocations(ctx, page)
}

func (s *ListingsService) CreateBrightLocalLocation(ctx context.Context, loc *brightlocal.Location) (int, error) {
	return s.brightlocal.CreateLocation(ctx, loc)
}

func (s *ListingsService) UpdateBrightLocalLocation(ctx context.Context, locationID int, loc *brightlocal.Location) error {
	return s.brightlocal.UpdateLocation(ctx, locationID, loc)
}

func (s *ListingsService) CreateCitationCampaign(ctx context.Context, locationID int, name string) (int, error) {
	return s.brightlocal.CreateCampaign(ctx, locationID, name)
}

func (s *ListingsService) CitationCampaign(ctx context.Context, campaignID int) (*brightlocal.Campaign, error) {
	return s.brightlocal.GetCampaign(ctx, campaignID)
}

func (s *ListingsService) CampaignCitations(ctx context.Context, campaignID int) ([]brightlocal.Citation, error) {
	return s.brightlocal.ListCitations(ctx, campaignID)
}

func (s *ListingsService) RunCitationAudit(ctx context.Context, locationID int) (int, error) {
	return s.brightlocal.RunAudit(ctx, locationID)
}

func (s *ListingsService) CitationAuditReport(ctx context.Context, reportID int) (*brightlocal.AuditReport, error) {
	return s.brightlocal.GetAuditReport(ctx, reportID)
}

// CitationSites returns the seeded directory catalog, strongest first.
func (s *ListingsService) CitationSites(ctx context.Context) ([]*models.CitationSite, error) {
	var sites []*models.CitationSite
	err := s.db.WithContext(ctx).
		Where("active = true").
		Order("authority DESC").
		Find(&sites).Error
	return sites, err
}

// --- Alert device registration ---

func (s *ListingsService) RegisterDevice(ctx context.Context, userID string, req *models.DeviceTokenRequest) (*models.DeviceToken, error) {
	now := time.Now()

	var existing models.DeviceToken
	result := s.db.WithContext(ctx).Where("token = ?", req.Token).First(&existing)
	if result.Error == nil {
		updates := map[string]interface{}{"user_id": userID, "last_seen": now}
		if req.Platform != "" {
			updates["platform"] = req.Platform
		}
		if err := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if result.Error != gorm.ErrRecordNotFound {
		return nil, result.Error
	}

	device := &models.DeviceToken{
		UserID:   userID,
		Token:    req.Token,
		Platform: req.Platform,
		LastSeen: now,
	}
	if err := s.db.WithContext(ctx).Create(device).Error; err != nil {
		return nil, err
	}
	log.Printf("✅ Device registered for user %s", userID)
	return device, nil
}

func (s *ListingsService) UnregisterDevice(ctx context.Context, userID, token string) error {
	result := s.db.WithContext(ctx).Where("token = ? AND user_id = ?", token, userID).Delete(&models.DeviceToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// HubspotAccount probes the CRM token; /health surfaces the result.
func (s *ListingsService) HubspotAccount(ctx context.Context) (*hubspot.AccountDetails, error) {
	return s.hubspot.GetAccountDetails(ctx)
}
