package models

import (
	"time"

	"gorm.io/datatypes"
)

// Run kinds recorded in sync_history.
const (
	RunKindFullSync   = "full_sync"
	RunKindRefresh    = "refresh"
	RunKindReport     = "report"
	RunKindDuplicates = "duplicates"
)

// Run statuses recorded in sync_history.
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial" // some records failed to persist
	RunStatusAborted = "aborted"
	RunStatusError   = "error"
)

// SyncRun records each reconciliation run and its counts so an operator can
// judge partial success without reading logs.
type SyncRun struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID       string     `gorm:"column:run_id;type:varchar(36);uniqueIndex" json:"runId"`
	Kind        string     `gorm:"column:kind;not null;index" json:"kind"`
	Status      string     `gorm:"column:status;not null;index" json:"status"`
	StartedAt   time.Time  `gorm:"column:started_at;not null" json:"startedAt"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completedAt"`
	Duration    int64      `gorm:"column:duration;default:0" json:"duration"` // milliseconds

	Fetched     int `gorm:"column:fetched;default:0" json:"fetched"`
	Unique      int `gorm:"column:unique_skus;default:0" json:"unique"`
	Duplicates  int `gorm:"column:duplicates;default:0" json:"duplicates"`
	Saved       int `gorm:"column:saved;default:0" json:"saved"`
	Failed      int `gorm:"column:failed;default:0" json:"failed"`
	Skipped     int `gorm:"column:skipped;default:0" json:"skipped"`
	PagesFailed int `gorm:"column:pages_failed;default:0" json:"pagesFailed"`

	ErrorDetail string         `gorm:"column:error_detail;type:text" json:"errorDetail"`
	DebugInfo   datatypes.JSON `gorm:"column:debug_info" json:"debugInfo"` // collisions and failed SKUs
	CreatedAt   time.Time      `gorm:"column:created_at" json:"-"`
}

func (SyncRun) TableName() string {
	return "sync_history"
}
