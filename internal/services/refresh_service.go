package services

import (
  "context"
  "fmt"
  "sync"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"
  "gorm.io/gorm"

  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/repos"
  "github.com/nclhealth/cluster-cache-backend/internal/requestdata"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
  "github.com/nclhealth/cluster-cache-backend/internal/utils"
)

// RefreshResult summarizes one refresh attempt that reached a terminal state.
type RefreshResult struct {
  ClusterID        string    `json:"cluster_id"`
  Skipped          bool      `json:"skipped"`
  RefreshSessionID uuid.UUID `json:"refresh_session_id,omitempty"`
  RecordCount      int       `json:"record_count"`
  Added            int       `json:"added"`
  Removed          int       `json:"removed"`
  LastRefreshed    time.Time `json:"last_refreshed,omitempty"`
}

// BulkRefreshResult summarizes a refresh-all-stale run.
type BulkRefreshResult struct {
  Attempted int               `json:"attempted"`
  Refreshed []string          `json:"refreshed"`
  Failed    map[string]string `json:"failed,omitempty"`
}

type RefreshService interface {
  RefreshCluster(ctx context.Context, clusterID string, force bool) (*RefreshResult, error)
  ForceRefresh(ctx context.Context, clusterID string) error
  RefreshAllStale(ctx context.Context) (*BulkRefreshResult, error)
  GetCurrentCache(ctx context.Context, clusterID string) ([]*types.ClusterCacheEntry, error)
}

type refreshService struct {
  db           *gorm.DB
  log          *logger.Logger
  clusterRepo  repos.ClusterRepo
  cacheRepo    repos.ClusterCacheRepo
  metadataRepo repos.CacheMetadataRepo
  ledgerRepo   repos.ChangeLedgerRepo
  ecl          ECLService
  locker       RefreshLocker
}

func NewRefreshService(
  db *gorm.DB,
  baseLog *logger.Logger,
  clusterRepo repos.ClusterRepo,
  cacheRepo repos.ClusterCacheRepo,
  metadataRepo repos.CacheMetadataRepo,
  ledgerRepo repos.ChangeLedgerRepo,
  ecl ECLService,
  locker RefreshLocker,
) RefreshService {
  serviceLog := baseLog.With("service", "RefreshService")
  if locker == nil {
    locker = NewNoopLocker()
  }
  return &refreshService{
    db:           db,
    log:          serviceLog,
    clusterRepo:  clusterRepo,
    cacheRepo:    cacheRepo,
    metadataRepo: metadataRepo,
    ledgerRepo:   ledgerRepo,
    ecl:          ecl,
    locker:       locker,
  }
}

// RefreshCluster re-materializes a cluster's cache. With force=false the call
// is a no-op while the cache is still Fresh; force=true always re-evaluates.
// The freshness gate lives here, on the exposed operation — the internal run
// has none.
func (rs *refreshService) RefreshCluster(ctx context.Context, clusterID string, force bool) (*RefreshResult, error) {
  normalized := utils.NormalizeClusterID(clusterID)

  clusters, err := rs.clusterRepo.GetByIDs(ctx, nil, []string{normalized})
  if err != nil {
    return nil, fmt.Errorf("load cluster: %w", err)
  }
  if len(clusters) == 0 {
    return nil, &types.NotFoundError{ClusterID: normalized}
  }
  cluster := clusters[0]

  if !force {
    metas, err := rs.metadataRepo.GetByIDs(ctx, nil, []string{normalized})
    if err != nil {
      return nil, fmt.Errorf("load cache metadata: %w", err)
    }
    if len(metas) > 0 && ComputeStatus(metas[0].LastSuccessfulRefresh, time.Now().UTC()) == types.StatusFresh {
      rs.log.Debug("Cache still fresh, skipping refresh", "cluster_id", normalized)
      return &RefreshResult{ClusterID: normalized, Skipped: true}, nil
    }
  }

  return rs.run(ctx, cluster)
}

func (rs *refreshService) ForceRefresh(ctx context.Context, clusterID string) error {
  _, err := rs.RefreshCluster(ctx, clusterID, true)
  return err
}

// run is one refresh attempt: record the attempt, evaluate, diff, commit the
// new session atomically. Terminal states are Succeeded (all four steps) or
// Failed (evaluator or commit error); the previous snapshot stays current on
// failure.
func (rs *refreshService) run(ctx context.Context, cluster *types.Cluster) (*RefreshResult, error) {
  clusterID := cluster.ClusterID
  actor := requestdata.Actor(ctx, "SYSTEM")

  release, err := rs.locker.Acquire(ctx, clusterID)
  if err != nil {
    return nil, err
  }
  defer release()

  attemptedAt := time.Now().UTC()
  if err := rs.metadataRepo.RecordAttempt(ctx, nil, clusterID, attemptedAt, actor); err != nil {
    return nil, fmt.Errorf("record refresh attempt: %w", err)
  }

  codes, err := rs.ecl.Evaluate(ctx, cluster.ECLExpression)
  if err != nil {
    rs.recordFailure(ctx, clusterID, err)
    return nil, err
  }

  previousEntries, err := rs.currentEntries(ctx, clusterID)
  if err != nil {
    rs.recordFailure(ctx, clusterID, err)
    return nil, fmt.Errorf("load current snapshot: %w", err)
  }
  previous := make([]types.CodeRef, 0, len(previousEntries))
  for _, e := range previousEntries {
    previous = append(previous, types.CodeRef{Code: e.Code, Display: e.Display, System: e.System})
  }

  added, removed := DiffCodeSets(previous, codes)

  sessionID := uuid.New()
  refreshedAt := time.Now().UTC()

  entries := make([]*types.ClusterCacheEntry, 0, len(codes))
  for _, c := range codes {
    entries = append(entries, &types.ClusterCacheEntry{
      ID:               uuid.New(),
      ClusterID:        clusterID,
      RefreshSessionID: sessionID,
      Code:             c.Code,
      Display:          c.Display,
      System:           c.System,
      LastRefreshed:    refreshedAt,
    })
  }

  records := make([]*types.ChangeRecord, 0, len(added)+len(removed))
  for _, c := range added {
    records = append(records, rs.changeRecord(clusterID, sessionID, types.ChangeTypeAdded, c, refreshedAt, actor))
  }
  for _, c := range removed {
    records = append(records, rs.changeRecord(clusterID, sessionID, types.ChangeTypeRemoved, c, refreshedAt, actor))
  }

  // Snapshot, ledger and freshness metadata commit as one unit: a refresh
  // never reports success with a snapshot but no matching audit trail.
  err = rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := rs.cacheRepo.CreateEntries(ctx, tx, entries); err != nil {
      return fmt.Errorf("write snapshot: %w", err)
    }
    if _, err := rs.ledgerRepo.CreateRecords(ctx, tx, records); err != nil {
      return fmt.Errorf("write change ledger: %w", err)
    }
    if err := rs.metadataRepo.RecordSuccess(ctx, tx, clusterID, sessionID, refreshedAt, actor, int64(len(codes))); err != nil {
      return fmt.Errorf("update cache metadata: %w", err)
    }
    return nil
  })
  if err != nil {
    rs.recordFailure(ctx, clusterID, err)
    return nil, fmt.Errorf("commit refresh session: %w", err)
  }

  rs.log.Info("Refresh session committed",
    "cluster_id", clusterID,
    "refresh_session_id", sessionID,
    "record_count", len(codes),
    "added", len(added),
    "removed", len(removed),
  )

  return &RefreshResult{
    ClusterID:        clusterID,
    RefreshSessionID: sessionID,
    RecordCount:      len(codes),
    Added:            len(added),
    Removed:          len(removed),
    LastRefreshed:    refreshedAt,
  }, nil
}

// RefreshAllStale force-refreshes every cluster whose cache is not Fresh.
func (rs *refreshService) RefreshAllStale(ctx context.Context) (*BulkRefreshResult, error) {
  overviewsNeeded, err := rs.staleClusterIDs(ctx)
  if err != nil {
    return nil, err
  }

  result := &BulkRefreshResult{
    Attempted: len(overviewsNeeded),
    Failed:    map[string]string{},
  }
  var mu sync.Mutex

  group, groupCtx := errgroup.WithContext(ctx)
  group.SetLimit(4)
  for _, id := range overviewsNeeded {
    clusterID := id
    group.Go(func() error {
      refreshErr := rs.ForceRefresh(groupCtx, clusterID)
      mu.Lock()
      defer mu.Unlock()
      if refreshErr != nil {
        result.Failed[clusterID] = refreshErr.Error()
        return nil
      }
      result.Refreshed = append(result.Refreshed, clusterID)
      return nil
    })
  }
  if err := group.Wait(); err != nil {
    return nil, err
  }
  return result, nil
}

func (rs *refreshService) staleClusterIDs(ctx context.Context) ([]string, error) {
  clusters, err := rs.clusterRepo.List(ctx, nil)
  if err != nil {
    return nil, fmt.Errorf("list clusters: %w", err)
  }
  metas, err := rs.metadataRepo.List(ctx, nil)
  if err != nil {
    return nil, fmt.Errorf("list cache metadata: %w", err)
  }
  metaByID := make(map[string]*types.CacheMetadata, len(metas))
  for _, m := range metas {
    metaByID[m.ClusterID] = m
  }

  now := time.Now().UTC()
  var stale []string
  for _, c := range clusters {
    var last *time.Time
    if meta, ok := metaByID[c.ClusterID]; ok {
      last = meta.LastSuccessfulRefresh
    }
    if ComputeStatus(last, now) != types.StatusFresh {
      stale = append(stale, c.ClusterID)
    }
  }
  return stale, nil
}

// GetCurrentCache returns the current snapshot's rows. A missing or never
// refreshed cluster yields an empty result, not an error.
func (rs *refreshService) GetCurrentCache(ctx context.Context, clusterID string) ([]*types.ClusterCacheEntry, error) {
  normalized := utils.NormalizeClusterID(clusterID)
  entries, err := rs.currentEntries(ctx, normalized)
  if err != nil {
    return nil, fmt.Errorf("load current snapshot: %w", err)
  }
  return entries, nil
}

// currentEntries resolves current membership through the metadata's session
// pointer. A session with no cache rows is a legitimate empty membership, so
// the pointer is authoritative; no aggregate over the cache rows could tell
// an empty session apart from no session at all.
func (rs *refreshService) currentEntries(ctx context.Context, clusterID string) ([]*types.ClusterCacheEntry, error) {
  metas, err := rs.metadataRepo.GetByIDs(ctx, nil, []string{clusterID})
  if err != nil {
    return nil, err
  }
  if len(metas) == 0 || metas[0].LastRefreshSessionID == uuid.Nil {
    return []*types.ClusterCacheEntry{}, nil
  }
  return rs.cacheRepo.GetBySession(ctx, nil, clusterID, metas[0].LastRefreshSessionID)
}

func (rs *refreshService) changeRecord(clusterID string, sessionID uuid.UUID, changeType types.ChangeType, code types.CodeRef, at time.Time, actor string) *types.ChangeRecord {
  return &types.ChangeRecord{
    ChangeID:         uuid.New(),
    ClusterID:        clusterID,
    RefreshSessionID: sessionID,
    ChangeType:       changeType,
    Code:             code.Code,
    Display:          code.Display,
    System:           code.System,
    ChangeTimestamp:  at,
    ChangedBy:        actor,
  }
}

func (rs *refreshService) recordFailure(ctx context.Context, clusterID string, cause error) {
  if err := rs.metadataRepo.RecordFailure(ctx, nil, clusterID, cause.Error()); err != nil {
    rs.log.Warn("Failed to record refresh error message", "cluster_id", clusterID, "error", err)
  }
}
