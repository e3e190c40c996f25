package types

import (
	"time"

	"github.com/google/uuid"
)

// ClusterCacheEntry is one materialized code row of a refresh session. Rows are
// append-only: a refresh writes a whole new session and the previous one is
// superseded, never mutated. Current membership for a cluster is the set of
// rows carrying the session id recorded in its cache metadata.
type ClusterCacheEntry struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClusterID        string    `gorm:"column:cluster_id;not null;index" json:"cluster_id"`
	RefreshSessionID uuid.UUID `gorm:"column:refresh_session_id;type:uuid;not null;index" json:"refresh_session_id"`
	Code             string    `gorm:"column:code;not null" json:"code"`
	Display          string    `gorm:"column:display" json:"display"`
	System           string    `gorm:"column:system" json:"system"`
	LastRefreshed    time.Time `gorm:"column:last_refreshed;not null;index" json:"last_refreshed"`
}

func (ClusterCacheEntry) TableName() string { return "cluster_cache" }

// CodeRef is a resolved code as returned by the ECL evaluator.
type CodeRef struct {
	Code    string `json:"code"`
	Display string `json:"display"`
	System  string `json:"system"`
}
