// internal/sync/company_sync.go
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"listings-service/internal/hubspot"
	"listings-service/pkg/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncCompaniesSince syncs companies modified at or after since. A zero
// since means a full sync through the list endpoint.
func (s *CRMSyncService) SyncCompaniesSince(ctx context.Context, since time.Time, trigger models.SyncTrigger) (*models.SyncRun, error) {
	return s.runSync(ctx, hubspot.ObjectTypeCompanies, since, trigger,
		&s.companiesRunning, lastCompanySyncKey, hubspot.CompanyModifiedProperty,
		s.fetchCompanyPage, s.upsertCompany)
}

func (s *CRMSyncService) fetchCompanyPage(ctx context.Context, mode models.SyncMode, since time.Time, after string) (*hubspot.ListResponse, error) {
	if mode == models.SyncModeFull {
		return s.hubspot.ListCompanies(ctx, s.pageLimit, after)
	}
	return s.hubspot.SearchCompaniesModifiedSince(ctx, since, s.pageLimit, after)
}

func (s *CRMSyncService) upsertCompany(ctx context.Context, obj hubspot.Object) (string, error) {
	incoming, err := MapCompany(&obj)
	if err != nil {
		return "", err
	}

	var existing models.Company
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

	if !incoming.HSUpdatedAt.After(existing.HSUpdatedAt) {
		return outcomeSkipped, nil
	}

	existing.Name = incoming.Name
	existing.Domain = incoming.Domain
	existing.Phone = incoming.Phone
	existing.City = incoming.City
	existing.State = incoming.State
	existing.Industry = incoming.Industry
	existing.Properties = incoming.Properties
	existing.HSCreatedAt = incoming.HSCreatedAt
	existing.HSUpdatedAt = incoming.HSUpdatedAt

	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return "", err
	}
	return outcomeUpdated, nil
}

func MapCompany(obj *hubspot.Object) (*models.Company, error) {
	if obj.ID == "" {
		return nil, fmt.Errorf("company record has no id")
	}

	props := obj.Properties
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal company properties: %w", err)
	}

	createdAt := obj.CreatedAt
	if t, ok := hubspot.ParsePropertyTime(props["createdate"]); ok {
		createdAt = t
	}

	company := &models.Company{
		HubspotID:   obj.ID,
		Name:        props["name"],
		Properties:  datatypes.JSON(raw),
		HSCreatedAt: createdAt,
		HSUpdatedAt: obj.ModifiedAt(hubspot.CompanyModifiedProperty),
	}
	if v := props["domain"]; v != "" {
		company.Domain = &v
	}
	if v := props["phone"]; v != "" {
		company.Phone = &v
	}
	if v := props["city"]; v != "" {
		company.City = &v
	}
	if v := props["state"]; v != "" {
		company.State = &v
	}
	if v := props["industry"]; v != "" {
		company.Industry = &v
	}
	return company, nil
}
