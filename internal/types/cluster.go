package types

import (
	"time"
)

type ClusterType string

const (
	ClusterTypeObservation ClusterType = "OBSERVATION"
	ClusterTypeMedication  ClusterType = "MEDICATION"
)

// ValidClusterType reports whether t is one of the known cluster types.
func ValidClusterType(t ClusterType) bool {
	return t == ClusterTypeObservation || t == ClusterTypeMedication
}

// Cluster is a named set of SNOMED codes described by an ECL expression.
// The cluster id is canonicalized to uppercase and globally unique.
type Cluster struct {
	ClusterID     string      `gorm:"column:cluster_id;primaryKey" json:"cluster_id"`
	ECLExpression string      `gorm:"column:ecl_expression;not null" json:"ecl_expression"`
	Description   string      `gorm:"column:description" json:"description"`
	ClusterType   ClusterType `gorm:"column:cluster_type;not null;default:OBSERVATION" json:"cluster_type"`
	CreatedAt     time.Time   `gorm:"column:created_at;not null" json:"created_at"`
	CreatedBy     string      `gorm:"column:created_by" json:"created_by"`
	UpdatedAt     time.Time   `gorm:"column:updated_at;not null" json:"updated_at"`
	UpdatedBy     string      `gorm:"column:updated_by" json:"updated_by"`
}

func (Cluster) TableName() string { return "cluster" }
