package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

type ClusterCacheRepo interface {
  CreateEntries(ctx context.Context, tx *gorm.DB, entries []*types.ClusterCacheEntry) ([]*types.ClusterCacheEntry, error)
  GetBySession(ctx context.Context, tx *gorm.DB, clusterID string, sessionID uuid.UUID) ([]*types.ClusterCacheEntry, error)
  DeleteByClusterIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) error
}

type clusterCacheRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewClusterCacheRepo(db *gorm.DB, baseLog *logger.Logger) ClusterCacheRepo {
  repoLog := baseLog.With("repo", "ClusterCacheRepo")
  return &clusterCacheRepo{db: db, log: repoLog}
}

func (ccr *clusterCacheRepo) CreateEntries(ctx context.Context, tx *gorm.DB, entries []*types.ClusterCacheEntry) ([]*types.ClusterCacheEntry, error) {
  transaction := tx
  if transaction == nil {
    transaction = ccr.db
  }

  if len(entries) == 0 {
    return []*types.ClusterCacheEntry{}, nil
  }

  if err := transaction.WithContext(ctx).CreateInBatches(&entries, 500).Error; err != nil {
    return nil, err
  }

  return entries, nil
}

// GetBySession returns one refresh session's rows ordered by code. Older
// sessions stay in the table for history but are never part of current
// membership; which session is current is the metadata's business.
func (ccr *clusterCacheRepo) GetBySession(ctx context.Context, tx *gorm.DB, clusterID string, sessionID uuid.UUID) ([]*types.ClusterCacheEntry, error) {
  transaction := tx
  if transaction == nil {
    transaction = ccr.db
  }

  results := []*types.ClusterCacheEntry{}

  if sessionID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("cluster_id = ? AND refresh_session_id = ?", clusterID, sessionID).
    Order("code").
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (ccr *clusterCacheRepo) DeleteByClusterIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) error {
  transaction := tx
  if transaction == nil {
    transaction = ccr.db
  }

  if len(clusterIDs) == 0 {
    return nil
  }

  if err := transaction.WithContext(ctx).
    Where("cluster_id IN ?", clusterIDs).
    Delete(&types.ClusterCacheEntry{}).Error; err != nil {
    return err
  }

  return nil
}
