package types

import (
	"time"

	"github.com/google/uuid"
)

// CacheMetadata is the per-cluster freshness summary. It is written on every
// refresh attempt, success or failure; the derived status is computed at read
// time and never stored. LastRefreshSessionID points at the current snapshot
// session: a session with zero cache rows is a valid empty membership, so
// "current" is this pointer, never an aggregate over the cache rows.
type CacheMetadata struct {
	ClusterID             string     `gorm:"column:cluster_id;primaryKey" json:"cluster_id"`
	LastRefreshSessionID  uuid.UUID  `gorm:"column:last_refresh_session_id;type:uuid" json:"last_refresh_session_id"`
	LastSuccessfulRefresh *time.Time `gorm:"column:last_successful_refresh" json:"last_successful_refresh,omitempty"`
	LastAttemptedRefresh  *time.Time `gorm:"column:last_attempted_refresh" json:"last_attempted_refresh,omitempty"`
	LastRefreshedBy       string     `gorm:"column:last_refreshed_by" json:"last_refreshed_by"`
	LastAttemptedBy       string     `gorm:"column:last_attempted_by" json:"last_attempted_by"`
	RecordCount           int64      `gorm:"column:record_count;not null;default:0" json:"record_count"`
	LastErrorMessage      string     `gorm:"column:last_error_message" json:"last_error_message"`
}

func (CacheMetadata) TableName() string { return "cluster_cache_metadata" }

type CacheStatus string

const (
	StatusNeverRefreshed CacheStatus = "Never refreshed"
	StatusStale          CacheStatus = "Stale"
	StatusFresh          CacheStatus = "Fresh"
)

// StaleLabel is the display label used wherever a stale cache is surfaced.
const StaleLabel = "Stale (>28 days)"

// Label returns the display label for a status.
func (s CacheStatus) Label() string {
	if s == StatusStale {
		return StaleLabel
	}
	return string(s)
}
