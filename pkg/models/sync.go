// pkg/models/sync.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

type SyncTrigger string

const (
	SyncTriggerScheduled SyncTrigger = "scheduled"
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerService   SyncTrigger = "service"
)

type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

// SyncRun is one row per sync execution. Rows are append-only; a run is
// created as "running" and finalized exactly once.
type SyncRun struct {
	ID         uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ObjectType string      `json:"object_type" gorm:"type:varchar(30);not null;index"` // "contacts" | "companies"
	Mode       SyncMode    `json:"mode" gorm:"type:varchar(20);not null"`
	Trigger    SyncTrigger `json:"trigger" gorm:"type:varchar(20);not null"`
	Status     SyncStatus  `json:"status" gorm:"type:varchar(20);not null;default:'running';index"`
	// Counts
	RecordsSynced  int `json:"records_synced" gorm:"not null;default:0"`
	RecordsSkipped int `json:"records_skipped" gorm:"not null;default:0"`
	RecordsFailed  int `json:"records_failed" gorm:"not null;default:0"`
	// Outcome
	ErrorMessage *string    `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt    time.Time  `json:"started_at" gorm:"not null;index"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	DurationMS   int64      `json:"duration_ms" gorm:"not null;default:0"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName specifies the table name for SyncRun
func (SyncRun) TableName() string {
	return "sync_runs"
}

// SyncConfig stores synchronization metadata as key/value rows
// (last sync watermarks and similar).
type SyncConfig struct {
	Key   string `json:"key" gorm:"primaryKey;type:varchar(255)"`
	Value string `json:"value" gorm:"type:text"`
}

// TableName specifies the table name for SyncConfig
func (SyncConfig) TableName() string {
	return "sync_configs"
}
