package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

type CacheMetadataRepo interface {
  GetByIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) ([]*types.CacheMetadata, error)
  List(ctx context.Context, tx *gorm.DB) ([]*types.CacheMetadata, error)
  RecordAttempt(ctx context.Context, tx *gorm.DB, clusterID string, at time.Time, actor string) error
  RecordSuccess(ctx context.Context, tx *gorm.DB, clusterID string, sessionID uuid.UUID, at time.Time, actor string, recordCount int64) error
  RecordFailure(ctx context.Context, tx *gorm.DB, clusterID string, errMsg string) error
  DeleteByClusterIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) error
}

type cacheMetadataRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCacheMetadataRepo(db *gorm.DB, baseLog *logger.Logger) CacheMetadataRepo {
  repoLog := baseLog.With("repo", "CacheMetadataRepo")
  return &cacheMetadataRepo{db: db, log: repoLog}
}

func (cmr *cacheMetadataRepo) GetByIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) ([]*types.CacheMetadata, error) {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }

  var results []*types.CacheMetadata

  if len(clusterIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("cluster_id IN ?", clusterIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (cmr *cacheMetadataRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.CacheMetadata, error) {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }

  var results []*types.CacheMetadata

  if err := transaction.WithContext(ctx).
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

// RecordAttempt stamps the attempt fields before evaluation begins, so a
// crash mid-refresh is visible as attempted-but-not-succeeded.
func (cmr *cacheMetadataRepo) RecordAttempt(ctx context.Context, tx *gorm.DB, clusterID string, at time.Time, actor string) error {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }

  meta := &types.CacheMetadata{
    ClusterID:            clusterID,
    LastAttemptedRefresh: &at,
    LastAttemptedBy:      actor,
  }

  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "cluster_id"}},
      DoUpdates: clause.AssignmentColumns([]string{"last_attempted_refresh", "last_attempted_by"}),
    }).
    Create(meta).Error
}

// RecordSuccess advances the current-session pointer alongside the freshness
// fields; readers resolve "current membership" through it.
func (cmr *cacheMetadataRepo) RecordSuccess(ctx context.Context, tx *gorm.DB, clusterID string, sessionID uuid.UUID, at time.Time, actor string, recordCount int64) error {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }

  return transaction.WithContext(ctx).
    Model(&types.CacheMetadata{}).
    Where("cluster_id = ?", clusterID).
    Updates(map[string]interface{}{
      "last_refresh_session_id": sessionID,
      "last_successful_refresh": at,
      "last_refreshed_by":       actor,
      "record_count":            recordCount,
      "last_error_message":      "",
    }).Error
}

func (cmr *cacheMetadataRepo) RecordFailure(ctx context.Context, tx *gorm.DB, clusterID string, errMsg string) error {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }

  return transaction.WithContext(ctx).
    Model(&types.CacheMetadata{}).
    Where("cluster_id = ?", clusterID).
    Update("last_error_message", errMsg).Error
}

func (cmr *cacheMetadataRepo) DeleteByClusterIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) error {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }

  if len(clusterIDs) == 0 {
    return nil
  }

  if err := transaction.WithContext(ctx).
    Where("cluster_id IN ?", clusterIDs).
    Delete(&types.CacheMetadata{}).Error; err != nil {
    return err
  }

  return nil
}
