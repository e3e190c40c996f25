package services

import (
  "context"
  "path/filepath"
  "testing"
  "time"

  "go.uber.org/zap"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/registryproc"
  "github.com/nclhealth/cluster-cache-backend/internal/repos"
  "github.com/nclhealth/cluster-cache-backend/internal/requestdata"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

func testLogger() *logger.Logger {
  return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func testDB(t *testing.T) *gorm.DB {
  t.Helper()
  path := filepath.Join(t.TempDir(), "test.db")
  db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("open test db: %v", err)
  }
  if err := db.AutoMigrate(
    &types.Cluster{},
    &types.ClusterCacheEntry{},
    &types.ChangeRecord{},
    &types.CacheMetadata{},
  ); err != nil {
    t.Fatalf("migrate test db: %v", err)
  }
  return db
}

type testRepos struct {
  cluster  repos.ClusterRepo
  cache    repos.ClusterCacheRepo
  metadata repos.CacheMetadataRepo
  ledger   repos.ChangeLedgerRepo
}

func newTestRepos(db *gorm.DB) testRepos {
  log := testLogger()
  return testRepos{
    cluster:  repos.NewClusterRepo(db, log),
    cache:    repos.NewClusterCacheRepo(db, log),
    metadata: repos.NewCacheMetadataRepo(db, log),
    ledger:   repos.NewChangeLedgerRepo(db, log),
  }
}

func actorContext(actor string) context.Context {
  return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{Actor: actor})
}

func mustCreateCluster(t *testing.T, db *gorm.DB, clusterID, expression string) *types.Cluster {
  t.Helper()
  now := time.Now().UTC()
  cluster := &types.Cluster{
    ClusterID:     clusterID,
    ECLExpression: expression,
    Description:   "test cluster",
    ClusterType:   types.ClusterTypeObservation,
    CreatedAt:     now,
    UpdatedAt:     now,
  }
  if err := db.Create(cluster).Error; err != nil {
    t.Fatalf("seed cluster %s: %v", clusterID, err)
  }
  return cluster
}

// fakeChannel is a scriptable registry procedure channel. With applies=true it
// performs the mutation against the test store before returning whatever
// result and error it was configured with, which is how the ambiguous
// applied-but-reported-failure outcomes are produced.
type fakeChannel struct {
  db      *gorm.DB
  applies bool
  result  registryproc.Result
  err     error

  upsertCalls int
  renameCalls int
  deleteCalls int
}

func (fc *fakeChannel) UpsertCluster(ctx context.Context, clusterID, eclExpression, description, actor, clusterType string) (registryproc.Result, error) {
  fc.upsertCalls++
  if fc.applies {
    now := time.Now().UTC()
    record := &types.Cluster{
      ClusterID:     clusterID,
      ECLExpression: eclExpression,
      Description:   description,
      ClusterType:   types.ClusterType(clusterType),
      CreatedAt:     now,
      CreatedBy:     actor,
      UpdatedAt:     now,
      UpdatedBy:     actor,
    }
    if err := repos.NewClusterRepo(fc.db, testLogger()).Upsert(ctx, nil, record); err != nil {
      return registryproc.Result{}, err
    }
  }
  return fc.result, fc.err
}

// RenameCluster mirrors the server-side function when applying: the
// definition moves to the new id and every dependent cache, ledger and
// metadata row moves with it.
func (fc *fakeChannel) RenameCluster(ctx context.Context, oldID, newID, eclExpression, description, actor, clusterType string) (registryproc.Result, error) {
  fc.renameCalls++
  if fc.applies {
    if err := fc.db.WithContext(ctx).Where("cluster_id = ?", oldID).Delete(&types.Cluster{}).Error; err != nil {
      return registryproc.Result{}, err
    }
    now := time.Now().UTC()
    record := &types.Cluster{
      ClusterID:     newID,
      ECLExpression: eclExpression,
      Description:   description,
      ClusterType:   types.ClusterType(clusterType),
      CreatedAt:     now,
      CreatedBy:     actor,
      UpdatedAt:     now,
      UpdatedBy:     actor,
    }
    if err := fc.db.WithContext(ctx).Create(record).Error; err != nil {
      return registryproc.Result{}, err
    }
    for _, model := range []interface{}{
      &types.ClusterCacheEntry{},
      &types.ChangeRecord{},
      &types.CacheMetadata{},
    } {
      if err := fc.db.WithContext(ctx).Model(model).
        Where("cluster_id = ?", oldID).
        Update("cluster_id", newID).Error; err != nil {
        return registryproc.Result{}, err
      }
    }
  }
  return fc.result, fc.err
}

func (fc *fakeChannel) DeleteCluster(ctx context.Context, clusterID string) (registryproc.Result, error) {
  fc.deleteCalls++
  if fc.applies {
    if err := fc.db.WithContext(ctx).Where("cluster_id = ?", clusterID).Delete(&types.Cluster{}).Error; err != nil {
      return registryproc.Result{}, err
    }
  }
  return fc.result, fc.err
}

type fakeRefresher struct {
  calls []string
  err   error
}

func (fr *fakeRefresher) ForceRefresh(ctx context.Context, clusterID string) error {
  fr.calls = append(fr.calls, clusterID)
  return fr.err
}

// fakeECL returns a fixed code set or error, counting invocations.
type fakeECL struct {
  codes []types.CodeRef
  err   error
  calls int
}

func (fe *fakeECL) Evaluate(ctx context.Context, expression string) ([]types.CodeRef, error) {
  fe.calls++
  if fe.err != nil {
    return nil, fe.err
  }
  return fe.codes, nil
}

func successResult() registryproc.Result {
  return registryproc.Result{Message: "SUCCESS: operation completed"}
}

func errorResult(msg string) registryproc.Result {
  return registryproc.Result{Message: "ERROR: " + msg}
}
