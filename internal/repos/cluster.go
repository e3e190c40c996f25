package repos

import (
  "context"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

type ClusterRepo interface {
  Create(ctx context.Context, tx *gorm.DB, clusters []*types.Cluster) ([]*types.Cluster, error)
  Upsert(ctx context.Context, tx *gorm.DB, cluster *types.Cluster) error
  GetByIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) ([]*types.Cluster, error)
  List(ctx context.Context, tx *gorm.DB) ([]*types.Cluster, error)
  Exists(ctx context.Context, tx *gorm.DB, clusterID string) (bool, error)
  DeleteByIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) error
}

type clusterRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewClusterRepo(db *gorm.DB, baseLog *logger.Logger) ClusterRepo {
  repoLog := baseLog.With("repo", "ClusterRepo")
  return &clusterRepo{db: db, log: repoLog}
}

func (cr *clusterRepo) Create(ctx context.Context, tx *gorm.DB, clusters []*types.Cluster) ([]*types.Cluster, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  if len(clusters) == 0 {
    return []*types.Cluster{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&clusters).Error; err != nil {
    return nil, err
  }

  return clusters, nil
}

// Upsert is the direct insert-or-update path keyed by cluster id. It backs
// the mutation guard's degraded update fallback when the procedure channel
// itself cannot be invoked.
func (cr *clusterRepo) Upsert(ctx context.Context, tx *gorm.DB, cluster *types.Cluster) error {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  if cluster == nil {
    return nil
  }

  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "cluster_id"}},
      DoUpdates: clause.AssignmentColumns([]string{
        "ecl_expression", "description", "cluster_type", "updated_at", "updated_by",
      }),
    }).
    Create(cluster).Error
}

func (cr *clusterRepo) GetByIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) ([]*types.Cluster, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  var results []*types.Cluster

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

func (cr *clusterRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Cluster, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  var results []*types.Cluster

  if err := transaction.WithContext(ctx).
    Order("cluster_id").
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (cr *clusterRepo) Exists(ctx context.Context, tx *gorm.DB, clusterID string) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  var count int64

  if err := transaction.WithContext(ctx).
    Model(&types.Cluster{}).
    Where("cluster_id = ?", clusterID).
    Count(&count).Error; err != nil {
    return false, err
  }

  return count > 0, nil
}

func (cr *clusterRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, clusterIDs []string) error {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }

  if len(clusterIDs) == 0 {
    return nil
  }

  if err := transaction.WithContext(ctx).
    Where("cluster_id IN ?", clusterIDs).
    Delete(&types.Cluster{}).Error; err != nil {
    return err
  }

  return nil
}
