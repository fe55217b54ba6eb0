// internal/sync/status.go
package sync

import (
	"context"
	"time"

	"listings-service/internal/hubspot"
	"listings-service/pkg/models"

	"gorm.io/gorm"
)

// ObjectStatus is the dashboard view of one object type's sync state.
type ObjectStatus struct {
	LastSyncTime *time.Time      `json:"last_sync_time,omitempty"`
	LatestRun    *models.SyncRun `json:"latest_run,omitempty"`
	InFlight     bool            `json:"in_flight"`
}

type StatusView struct {
	Contacts  ObjectStatus `json:"contacts"`
	Companies ObjectStatus `json:"companies"`
}

// Status reports watermarks, the latest run and the in-flight flag per type.
func (s *CRMSyncService) Status(ctx context.Context) (*StatusView, error) {
	view := &StatusView{}

	contacts, err := s.objectStatus(ctx, hubspot.ObjectTypeContacts, lastContactSyncKey, s.contactsRunning.Load())
	if err != nil {
		return nil, err
	}
	view.Contacts = *contacts

	companies, err := s.objectStatus(ctx, hubspot.ObjectTypeCompanies, lastCompanySyncKey, s.companiesRunning.Load())
	if err != nil {
		return nil, err
	}
	view.Companies = *companies

	return view, nil
}

func (s *CRMSyncService) objectStatus(ctx context.Context, objectType, watermarkKey string, inFlight bool) (*ObjectStatus, error) {
	status := &ObjectStatus{InFlight: inFlight}

	last, err := s.getLastSyncTime(watermarkKey)
	if err != nil {
		return nil, err
	}
	if !last.IsZero() {
		status.LastSyncTime = &last
	}

	var run models.SyncRun
	result := s.db.WithContext(ctx).
		Where("object_type = ?", objectType).
		Order("started_at DESC").
		First(&run)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return status, nil
		}
		return nil, result.Error
	}
	status.LatestRun = &run

	return status, nil
}

// Runs lists recent sync runs, newest first. objectType "" means all.
func (s *CRMSyncService) Runs(ctx context.Context, objectType string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if objectType != "" {
		query = query.Where("object_type = ?", objectType)
	}

	var runs []models.SyncRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Summary aggregates run counts over a reporting window. Feeds the
// sync-summary email.
type Summary struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	TotalRuns      int             `json:"total_runs"`
	FailedRuns     int             `json:"failed_runs"`
	RecordsSynced  int             `json:"records_synced"`
	RecordsSkipped int             `json:"records_skipped"`
	RecordsFailed  int             `json:"records_failed"`
	Objects        []ObjectSummary `json:"objects"`
}

type ObjectSummary struct {
	ObjectType     string `json:"object_type"`
	Runs           int    `json:"runs"`
	FailedRuns     int    `json:"failed_runs"`
	RecordsSynced  int    `json:"records_synced"`
	RecordsSkipped int    `json:"records_skipped"`
	RecordsFailed  int    `json:"records_failed"`
}

// Summarize folds the runs that started inside [from, to).
func (s *CRMSyncService) Summarize(ctx context.Context, from, to time.Time) (*Summary, error) {
	var runs []models.SyncRun
	err := s.db.WithContext(ctx).
		Where("started_at >= ? AND started_at < ?", from, to).
		Order("started_at ASC").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}

	summary := &Summary{From: from, To: to}
	byType := map[string]*ObjectSummary{}

	for _, run := range runs {
		summary.TotalRuns++
		summary.RecordsSynced += run.RecordsSynced
		summary.RecordsSkipped += run.RecordsSkipped
		summary.RecordsFailed += run.RecordsFailed
		if run.Status == models.SyncStatusFailed {
			summary.FailedRuns++
		}

		obj, ok := byType[run.ObjectType]
		if !ok {
			obj = &ObjectSummary{ObjectType: run.ObjectType}
			byType[run.ObjectType] = obj
		}
		obj.Runs++
		obj.RecordsSynced += run.RecordsSynced
		obj.RecordsSkipped += run.RecordsSkipped
		obj.RecordsFailed += run.RecordsFailed
		if run.Status == models.SyncStatusFailed {
			obj.FailedRuns++
		}
	}

	for _, objectType := range []string{hubspot.ObjectTypeContacts, hubspot.ObjectTypeCompanies} {
		if obj, ok := byType[objectType]; ok {
			summary.Objects = append(summary.Objects, *obj)
		}
	}

	return summary, nil
}
