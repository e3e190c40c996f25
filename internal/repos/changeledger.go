package repos

import (
  "context"
  "time"
  "gorm.io/gorm"
  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

type ChangeLedgerRepo interface {
  CreateRecords(ctx context.Context, tx *gorm.DB, records []*types.ChangeRecord) ([]*types.ChangeRecord, error)
  GetByClusterID(ctx context.Context, tx *gorm.DB, clusterID string, limit int) ([]*types.ChangeRecord, error)
  GetRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ChangeRecord, error)
  GetSince(ctx context.Context, tx *gorm.DB, clusterID string, since time.Time) ([]*types.ChangeRecord, error)
  DeleteByClusterIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) error
}

type changeLedgerRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChangeLedgerRepo(db *gorm.DB, baseLog *logger.Logger) ChangeLedgerRepo {
  repoLog := baseLog.With("repo", "ChangeLedgerRepo")
  return &changeLedgerRepo{db: db, log: repoLog}
}

func (clr *changeLedgerRepo) CreateRecords(ctx context.Context, tx *gorm.DB, records []*types.ChangeRecord) ([]*types.ChangeRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  if len(records) == 0 {
    return []*types.ChangeRecord{}, nil
  }

  if err := transaction.WithContext(ctx).CreateInBatches(&records, 500).Error; err != nil {
    return nil, err
  }

  return records, nil
}

func (clr *changeLedgerRepo) GetByClusterID(ctx context.Context, tx *gorm.DB, clusterID string, limit int) ([]*types.ChangeRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  var results []*types.ChangeRecord

  query := transaction.WithContext(ctx).
    Where("cluster_id = ?", clusterID).
    Order("change_timestamp DESC")
  if limit > 0 {
    query = query.Limit(limit)
  }

  if err := query.Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (clr *changeLedgerRepo) GetRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ChangeRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  var results []*types.ChangeRecord

  query := transaction.WithContext(ctx).
    Order("change_timestamp DESC")
  if limit > 0 {
    query = query.Limit(limit)
  }

  if err := query.Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (clr *changeLedgerRepo) GetSince(ctx context.Context, tx *gorm.DB, clusterID string, since time.Time) ([]*types.ChangeRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  var results []*types.ChangeRecord

  if err := transaction.WithContext(ctx).
    Where("cluster_id = ? AND change_timestamp >= ?", clusterID, since).
    Order("change_timestamp DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (clr *changeLedgerRepo) DeleteByClusterIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) error {
  transaction := tx
  if transaction == nil {
    transaction = clr.db
  }

  if len(clusterIDs) == 0 {
    return nil
  }

  if err := transaction.WithContext(ctx).
    Where("cluster_id IN ?", clusterIDs).
    Delete(&types.ChangeRecord{}).Error; err != nil {
    return err
  }

  return nil
}
