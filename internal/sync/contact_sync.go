// internal/sync/contact_sync.go
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"listings-service/internal/config"
	"listings-service/internal/hubspot"
	"listings-service/internal/sse"
	"listings-service/pkg/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Watermark keys in the sync_configs table
const (
	lastContactSyncKey = "last_contact_sync_time"
	lastCompanySyncKey = "last_company_sync_time"
)

const (
	outcomeCreated = "created"
	outcomeUpdated = "updated"
	outcomeSkipped = "skipped"
)

// ErrSyncInFlight means a run for the same object type is already active.
var ErrSyncInFlight = errors.New("a sync run for this object type is already in flight")

// AlertSink is told about runs that finished badly.
type AlertSink interface {
	SyncFailed(run *models.SyncRun)
}

// CRMSyncService mirrors HubSpot contacts and companies into the local DB.
// One run per object type at a time; partial failures never abort a run.
type CRMSyncService struct {
	db      *gorm.DB
	hubspot *hubspot.Client
	alerts  AlertSink
	events  *sse.Broker

	pageLimit    int
	interval     time.Duration
	fullSyncHour int

	contactsRunning  atomic.Bool
	companiesRunning atomic.Bool
}

func NewCRMSyncService(db *gorm.DB, hs *hubspot.Client, alerts AlertSink, events *sse.Broker, cfg *config.Config) *CRMSyncService {
	return &CRMSyncService{
		db:           db,
		hubspot:      hs,
		alerts:       alerts,
		events:       events,
		pageLimit:    cfg.SyncPageLimit,
		interval:     cfg.SyncInterval,
		fullSyncHour: cfg.FullSyncHour,
	}
}

// fetchPage returns one vendor page for the current mode and cursor.
type fetchPage func(ctx context.Context, mode models.SyncMode, since time.Time, after string) (*hubspot.ListResponse, error)

// upsertRecord stores one vendor record, reporting created/updated/skipped.
type upsertRecord func(ctx context.Context, obj hubspot.Object) (string, error)

// SyncContactsSince syncs contacts modified at or after since. A zero since
// means a full sync through the list endpoint.
func (s *CRMSyncService) SyncContactsSince(ctx context.Context, since time.Time, trigger models.SyncTrigger) (*models.SyncRun, error) {
	return s.runSync(ctx, hubspot.ObjectTypeContacts, since, trigger,
		&s.contactsRunning, lastContactSyncKey, hubspot.ContactModifiedProperty,
		s.fetchContactPage, s.upsertContact)
}

func (s *CRMSyncService) fetchContactPage(ctx context.Context, mode models.SyncMode, since time.Time, after string) (*hubspot.ListResponse, error) {
	if mode == models.SyncModeFull {
		return s.hubspot.ListContacts(ctx, s.pageLimit, after)
	}
	return s.hubspot.SearchContactsModifiedSince(ctx, since, s.pageLimit, after)
}

// runSync is the shared page/upsert/log loop behind both object types.
func (s *CRMSyncService) runSync(ctx context.Context, objectType string, since time.Time, trigger models.SyncTrigger,
	guard *atomic.Bool, watermarkKey, modifiedProperty string, fetch fetchPage, upsert upsertRecord) (*models.SyncRun, error) {

	if !guard.CompareAndSwap(false, true) {
		return nil, ErrSyncInFlight
	}
	defer guard.Store(false)

	mode := models.SyncModeIncremental
	if since.IsZero() {
		mode = models.SyncModeFull
	}

	run := &models.SyncRun{
		ObjectType: objectType,
		Mode:       mode,
		Trigger:    trigger,
		Status:     models.SyncStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	if mode == models.SyncModeFull {
		log.Printf("🔄 Starting full %s sync (run %s)", objectType, run.ID)
	} else {
		log.Printf("🔄 Starting incremental %s sync from %s (run %s)", objectType, since.UTC().Format(time.RFC3339), run.ID)
	}
	s.publish(sse.EventSyncStarted, run)

	searchSince := since
	fetchedSinceRestart := 0
	after := ""

	for {
		page, err := fetch(ctx, mode, searchSince, after)
		if err != nil {
			return s.finalizeRun(ctx, run, fmt.Errorf("failed to fetch %s page: %w", objectType, err))
		}

		for i := range page.Results {
			outcome, err := upsert(ctx, page.Results[i])
			if err != nil {
				run.RecordsFailed++
				log.Printf("⚠️ Failed to sync %s %s: %v", objectType, page.Results[i].ID, err)
				continue
			}
			if outcome == outcomeSkipped {
				run.RecordsSkipped++
			} else {
				run.RecordsSynced++
			}
		}
		fetchedSinceRestart += len(page.Results)
		s.publish(sse.EventSyncProgress, run)

		after = page.NextAfter()
		if after == "" {
			break
		}

		// The search API refuses to page past its result cap; restart the
		// search at the newest timestamp seen so far.
		if mode == models.SyncModeIncremental && fetchedSinceRestart >= hubspot.SearchResultCap && len(page.Results) > 0 {
			last := page.Results[len(page.Results)-1]
			searchSince = last.ModifiedAt(modifiedProperty)
			after = ""
			fetchedSinceRestart = 0
			log.Printf("🔁 Search cap reached for %s, restarting from %s", objectType, searchSince.UTC().Format(time.RFC3339))
		}
	}

	// Watermark is the run's start time so records modified mid-run are
	// picked up again next pass.
	if err := s.updateLastSyncTime(watermarkKey, run.StartedAt); err != nil {
		log.Printf("⚠️ Failed to update last sync time for %s: %v", objectType, err)
	}

	return s.finalizeRun(ctx, run, nil)
}

func (s *CRMSyncService) finalizeRun(ctx context.Context, run *models.SyncRun, runErr error) (*models.SyncRun, error) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.DurationMS = now.Sub(run.StartedAt).Milliseconds()

	if runErr != nil {
		run.Status = models.SyncStatusFailed
		msg := runErr.Error()
		run.ErrorMessage = &msg
	} else {
		run.Status = models.SyncStatusCompleted
	}

	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		log.Printf("❌ Failed to finalize sync run %s: %v", run.ID, err)
	}

	s.publish(sse.EventSyncFinished, run)

	if s.alerts != nil && (run.Status == models.SyncStatusFailed || run.RecordsFailed > 0) {
		s.alerts.SyncFailed(run)
	}

	if runErr != nil {
		log.Printf("❌ %s sync failed after %d synced, %d skipped, %d failed: %v",
			run.ObjectType, run.RecordsSynced, run.RecordsSkipped, run.RecordsFailed, runErr)
		return run, runErr
	}

	log.Printf("✅ %s sync completed: %d synced, %d skipped, %d failed (%dms)",
		run.ObjectType, run.RecordsSynced, run.RecordsSkipped, run.RecordsFailed, run.DurationMS)
	return run, nil
}

func (s *CRMSyncService) publish(eventType string, run *models.SyncRun) {
	if s.events == nil {
		return
	}
	s.events.BroadcastToAll(sse.Event{
		Type: eventType,
		Data: sse.SyncProgress{
			RunID:      run.ID.String(),
			ObjectType: run.ObjectType,
			Mode:       string(run.Mode),
			Status:     string(run.Status),
			Synced:     run.RecordsSynced,
			Skipped:    run.RecordsSkipped,
			Failed:     run.RecordsFailed,
		},
	})
}

// upsertContact saves/updates a contact mirror row, skipping stale payloads.
func (s *CRMSyncService) upsertContact(ctx context.Context, obj hubspot.Object) (string, error) {
	incoming, err := MapContact(&obj)
	if err != nil {
		return "", err
	}

	var existing models.Contact
	result := s.db.WithContext(ctx).Where("hubspot_id = ?", incoming.HubspotID).First(&existing)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			if err := s.db.WithContext(ctx).Create(incoming).Error; err != nil {
				return "", err
			}
			return outcomeCreated, nil
		}
		return "", result.Error
	}

	// Last write wins; only newer vendor payloads overwrite the mirror
	if !incoming.HSUpdatedAt.After(existing.HSUpdatedAt) {
		return outcomeSkipped, nil
	}

	existing.Email = incoming.Email
	existing.FirstName = incoming.FirstName
	existing.LastName = incoming.LastName
	existing.Phone = incoming.Phone
	existing.CompanyName = incoming.CompanyName
	existing.LifecycleStage = incoming.LifecycleStage
	existing.Properties = incoming.Properties
	existing.HSCreatedAt = incoming.HSCreatedAt
	existing.HSUpdatedAt = incoming.HSUpdatedAt

	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return "", err
	}
	return outcomeUpdated, nil
}

// MapContact flattens a HubSpot contact into the mirror model.
func MapContact(obj *hubspot.Object) (*models.Contact, error) {
	if obj.ID == "" {
		return nil, fmt.Errorf("contact record has no id")
	}

	props := obj.Properties
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contact properties: %w", err)
	}

	createdAt := obj.CreatedAt
	if t, ok := hubspot.ParsePropertyTime(props["createdate"]); ok {
		createdAt = t
	}

	contact := &models.Contact{
		HubspotID:   obj.ID,
		Email:       props["email"],
		FirstName:   props["firstname"],
		LastName:    props["lastname"],
		Properties:  datatypes.JSON(raw),
		HSCreatedAt: createdAt,
		HSUpdatedAt: obj.ModifiedAt(hubspot.ContactModifiedProperty),
	}
	if v := props["phone"]; v != "" {
		contact.Phone = &v
	}
	if v := props["company"]; v != "" {
		contact.CompanyName = &v
	}
	if v := props["lifecyclestage"]; v != "" {
		contact.LifecycleStage = &v
	}
	return contact, nil
}

// getLastSyncTime reads a watermark; zero time means never synced.
func (s *CRMSyncService) getLastSyncTime(key string) (time.Time, error) {
	var cfg models.SyncConfig
	result := s.db.Where("key = ?", key).First(&cfg)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return time.Time{}, nil
		}
		return time.Time{}, result.Error
	}

	parsed, err := time.Parse(time.RFC3339, cfg.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse sync time: %w", err)
	}
	return parsed, nil
}

func (s *CRMSyncService) updateLastSyncTime(key string, syncTime time.Time) error {
	value := syncTime.UTC().Format(time.RFC3339)

	var existing models.SyncConfig
	result := s.db.Where("key = ?", key).First(&existing)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return s.db.Create(&models.SyncConfig{Key: key, Value: value}).Error
		}
		return result.Error
	}

	return s.db.Model(&existing).Update("value", value).Error
}
