package types

import (
	"time"

	"github.com/google/uuid"
)

type ChangeType string

const (
	ChangeTypeAdded   ChangeType = "ADDED"
	ChangeTypeRemoved ChangeType = "REMOVED"
)

// ChangeRecord is one code-level delta within a refresh session. The ADDED and
// REMOVED records of a session, applied to the previous snapshot, reproduce
// the new snapshot exactly.
type ChangeRecord struct {
	ChangeID         uuid.UUID  `gorm:"column:change_id;type:uuid;primaryKey" json:"change_id"`
	ClusterID        string     `gorm:"column:cluster_id;not null;index" json:"cluster_id"`
	RefreshSessionID uuid.UUID  `gorm:"column:refresh_session_id;type:uuid;not null;index" json:"refresh_session_id"`
	ChangeType       ChangeType `gorm:"column:change_type;not null" json:"change_type"`
	Code             string     `gorm:"column:code;not null" json:"code"`
	Display          string     `gorm:"column:display" json:"display"`
	System           string     `gorm:"column:system" json:"system"`
	ChangeTimestamp  time.Time  `gorm:"column:change_timestamp;not null;index" json:"change_timestamp"`
	ChangedBy        string     `gorm:"column:changed_by" json:"changed_by"`
}

func (ChangeRecord) TableName() string { return "cluster_change_ledger" }
