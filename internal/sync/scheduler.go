// internal/sync/scheduler.go
package sync

import (
	"context"
	"errors"
	"log"
	"time"

	"listings-service/pkg/models"
)

// StartScheduler launches the background sync loops: an incremental pass on
// the configured interval and a daily full pass in the quiet hours.
func (s *CRMSyncService) StartScheduler() {
	go s.scheduleIncrementalSync()
	go s.scheduleDailyFullSync()
}

func (s *CRMSyncService) scheduleIncrementalSync() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for range ticker.C {
		s.runScheduledIncremental(context.Background())
	}
}

func (s *CRMSyncService) runScheduledIncremental(ctx context.Context) {
	type pass struct {
		objectType string
		key        string
		sync       func(context.Context, time.Time, models.SyncTrigger) (*models.SyncRun, error)
	}

	passes := []pass{
		{"contacts", lastContactSyncKey, s.SyncContactsSince},
		{"companies", lastCompanySyncKey, s.SyncCompaniesSince},
	}

	for _, p := range passes {
		since, err := s.getLastSyncTime(p.key)
		if err != nil {
			log.Printf("⚠️ Could not read last sync time for %s, falling back to full sync: %v", p.objectType, err)
			since = time.Time{}
		}

		_, err = p.sync(ctx, since, models.SyncTriggerScheduled)
		if errors.Is(err, ErrSyncInFlight) {
			log.Printf("⏭️ Skipping scheduled %s sync, previous run still in flight", p.objectType)
			continue
		}
		if err != nil {
			log.Printf("❌ Scheduled %s sync failed: %v", p.objectType, err)
		}
	}
}

// scheduleDailyFullSync runs a full sync of both object types once a day at
// the configured hour, then sleeps until the next one.
func (s *CRMSyncService) scheduleDailyFullSync() {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), s.fullSyncHour, 0, 0, 0, now.Location())
		if now.After(next) {
			next = next.AddDate(0, 0, 1)
		}

		wait := next.Sub(now)
		log.Printf("⏰ Daily full sync scheduled for %s (in %v)", next.Format(time.RFC3339), wait)
		time.Sleep(wait)

		ctx := context.Background()
		log.Println("🌙 Starting daily full CRM sync...")

		if _, err := s.SyncContactsSince(ctx, time.Time{}, models.SyncTriggerScheduled); err != nil && !errors.Is(err, ErrSyncInFlight) {
			log.Printf("❌ Daily full contact sync failed: %v", err)
		}
		if _, err := s.SyncCompaniesSince(ctx, time.Time{}, models.SyncTriggerScheduled); err != nil && !errors.Is(err, ErrSyncInFlight) {
			log.Printf("❌ Daily full company sync failed: %v", err)
		}

		// Small delay to prevent multiple triggers
		time.Sleep(1 * time.Minute)
	}
}
