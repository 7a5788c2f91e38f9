// internal/models/sync_run.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SyncRun is one ledger row per sync attempt. Provider is AllProviders for
// the aggregate row; provider rows point at it through ParentID.
type SyncRun struct {
	BaseModel
	Provider        string         `json:"provider" gorm:"size:100;not null;index"`
	Status          SyncStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	StartedAt       time.Time      `json:"started_at" gorm:"not null;index"`
	FinishedAt      *time.Time     `json:"finished_at"`
	ErrorMessage    string         `json:"error_message,omitempty" gorm:"type:text"`
	ProductsFetched int            `json:"products_fetched" gorm:"default:0"`
	OrdersFetched   int            `json:"orders_fetched" gorm:"default:0"`
	Attempt         int            `json:"attempt" gorm:"default:1"`
	ParentID        *uuid.UUID     `json:"parent_id,omitempty" gorm:"type:uuid;index"`
	Details         datatypes.JSON `json:"details,omitempty"`
}

func (r *SyncRun) IsFinished() bool {
	return r.Status != SyncStatusRunning
}

// Duration is zero while the run is still in flight.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
