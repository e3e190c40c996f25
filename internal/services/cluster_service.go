package services

import (
  "context"
  "fmt"
  "time"

  "gorm.io/gorm"

  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/registryproc"
  "github.com/nclhealth/cluster-cache-backend/internal/repos"
  "github.com/nclhealth/cluster-cache-backend/internal/requestdata"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
  "github.com/nclhealth/cluster-cache-backend/internal/utils"
)

// ClusterIntent is the post-mutation state a guard operation is trying to
// reach. Reconciliation compares the persisted row against it field by field
// after whitespace normalization.
type ClusterIntent struct {
  ClusterID     string
  ECLExpression string
  Description   string
  ClusterType   types.ClusterType
}

// IntentMatches reports whether a persisted cluster row already holds the
// intended state. The whitespace-normalized comparison is what lets the guard
// treat a failed-but-actually-applied mutation as a success, and what keeps a
// sequential retry from corrupting state.
func IntentMatches(cluster *types.Cluster, intent ClusterIntent) bool {
  if cluster == nil {
    return false
  }
  if utils.NormalizeClusterID(cluster.ClusterID) != utils.NormalizeClusterID(intent.ClusterID) {
    return false
  }
  if utils.NormalizeWhitespace(cluster.ECLExpression) != utils.NormalizeWhitespace(intent.ECLExpression) {
    return false
  }
  if utils.NormalizeWhitespace(cluster.Description) != utils.NormalizeWhitespace(intent.Description) {
    return false
  }
  if intent.ClusterType != "" && cluster.ClusterType != intent.ClusterType {
    return false
  }
  return true
}

// Refresher triggers a forced cache refresh. The guard needs it only for the
// degraded update fallback.
type Refresher interface {
  ForceRefresh(ctx context.Context, clusterID string) error
}

// ClusterStatusInfo is the derived freshness view of one cluster. The *Display
// fields are preformatted for the UI ("2 hours ago", comma-grouped counts).
type ClusterStatusInfo struct {
  ClusterID             string            `json:"cluster_id"`
  Status                types.CacheStatus `json:"status"`
  StatusLabel           string            `json:"status_label"`
  LastSuccessfulRefresh *time.Time        `json:"last_successful_refresh,omitempty"`
  LastRefreshedDisplay  string            `json:"last_refreshed_display"`
  LastAttemptedRefresh  *time.Time        `json:"last_attempted_refresh,omitempty"`
  LastRefreshedBy       string            `json:"last_refreshed_by,omitempty"`
  LastAttemptedBy       string            `json:"last_attempted_by,omitempty"`
  RecordCount           int64             `json:"record_count"`
  RecordCountDisplay    string            `json:"record_count_display"`
  LastErrorMessage      string            `json:"last_error_message,omitempty"`
}

// ClusterOverview is a definition joined with its freshness summary, the
// shape the cluster list renders from.
type ClusterOverview struct {
  Cluster  *types.Cluster       `json:"cluster"`
  Metadata *types.CacheMetadata `json:"metadata,omitempty"`
  Status   types.CacheStatus    `json:"status"`
  StatusLabel string            `json:"status_label"`
}

type ClusterService interface {
  CreateCluster(ctx context.Context, clusterID, eclExpression, description string, clusterType types.ClusterType) (*types.Cluster, error)
  UpdateCluster(ctx context.Context, clusterID, eclExpression, description string, clusterType types.ClusterType) (*types.Cluster, error)
  RenameCluster(ctx context.Context, oldID, newID, eclExpression, description string, clusterType types.ClusterType) (*types.Cluster, error)
  DeleteCluster(ctx context.Context, clusterID string) error
  GetCluster(ctx context.Context, clusterID string) (*types.Cluster, error)
  GetClusterStatus(ctx context.Context, clusterID string) (*ClusterStatusInfo, error)
  ListClusters(ctx context.Context) ([]*ClusterOverview, error)
}

type clusterService struct {
  db           *gorm.DB
  log          *logger.Logger
  clusterRepo  repos.ClusterRepo
  metadataRepo repos.CacheMetadataRepo
  channel      registryproc.Channel
  refresher    Refresher
}

func NewClusterService(
  db *gorm.DB,
  baseLog *logger.Logger,
  clusterRepo repos.ClusterRepo,
  metadataRepo repos.CacheMetadataRepo,
  channel registryproc.Channel,
  refresher Refresher,
) ClusterService {
  serviceLog := baseLog.With("service", "ClusterService")
  return &clusterService{
    db:           db,
    log:          serviceLog,
    clusterRepo:  clusterRepo,
    metadataRepo: metadataRepo,
    channel:      channel,
    refresher:    refresher,
  }
}

func (cs *clusterService) CreateCluster(ctx context.Context, clusterID, eclExpression, description string, clusterType types.ClusterType) (*types.Cluster, error) {
  intent, err := cs.buildIntent(clusterID, eclExpression, description, clusterType)
  if err != nil {
    return nil, err
  }

  existing, err := cs.readCluster(ctx, intent.ClusterID)
  if err != nil {
    return nil, fmt.Errorf("read existing cluster: %w", err)
  }
  if existing != nil {
    if IntentMatches(existing, intent) {
      return existing, nil
    }
    return nil, &types.ConflictError{Op: "create", ClusterID: intent.ClusterID, Message: "cluster already exists with a different definition"}
  }

  actor := requestdata.Actor(ctx, "")
  result, callErr := cs.channel.UpsertCluster(ctx, intent.ClusterID, intent.ECLExpression, intent.Description, actor, string(intent.ClusterType))
  if callErr == nil && result.Success() {
    return cs.mustRead(ctx, intent.ClusterID)
  }

  return cs.reconcileWrite(ctx, "create", intent, result, callErr)
}

func (cs *clusterService) UpdateCluster(ctx context.Context, clusterID, eclExpression, description string, clusterType types.ClusterType) (*types.Cluster, error) {
  intent, err := cs.buildIntent(clusterID, eclExpression, description, clusterType)
  if err != nil {
    return nil, err
  }

  existing, err := cs.readCluster(ctx, intent.ClusterID)
  if err != nil {
    return nil, fmt.Errorf("read existing cluster: %w", err)
  }
  if existing == nil {
    return nil, &types.NotFoundError{ClusterID: intent.ClusterID}
  }

  actor := requestdata.Actor(ctx, "")
  result, callErr := cs.channel.UpsertCluster(ctx, intent.ClusterID, intent.ECLExpression, intent.Description, actor, string(intent.ClusterType))
  if callErr == nil && result.Success() {
    return cs.mustRead(ctx, intent.ClusterID)
  }

  if callErr != nil {
    // Channel invocation itself failed. Reconcile first; if the write did
    // not land, fall back to a direct upsert plus a forced refresh.
    if cluster := cs.confirmIntent(ctx, "update", intent, callErr); cluster != nil {
      return cluster, nil
    }
    return cs.updateFallback(ctx, intent, actor, callErr)
  }

  return cs.reconcileWrite(ctx, "update", intent, result, nil)
}

// updateFallback is the degraded-but-consistent path: a direct record upsert
// keyed by cluster id followed by an explicit refresh trigger.
func (cs *clusterService) updateFallback(ctx context.Context, intent ClusterIntent, actor string, cause error) (*types.Cluster, error) {
  cs.log.Warn("Procedure channel unavailable for update, applying direct upsert fallback", "cluster_id", intent.ClusterID, "error", cause)

  now := time.Now().UTC()
  record := &types.Cluster{
    ClusterID:     intent.ClusterID,
    ECLExpression: intent.ECLExpression,
    Description:   intent.Description,
    ClusterType:   intent.ClusterType,
    CreatedAt:     now,
    CreatedBy:     actor,
    UpdatedAt:     now,
    UpdatedBy:     actor,
  }
  if err := cs.clusterRepo.Upsert(ctx, nil, record); err != nil {
    if cluster := cs.confirmIntent(ctx, "update", intent, err); cluster != nil {
      return cluster, nil
    }
    return nil, &types.ConflictError{Op: "update", ClusterID: intent.ClusterID, Message: "direct upsert fallback failed", Err: err}
  }

  if cs.refresher != nil {
    if err := cs.refresher.ForceRefresh(ctx, intent.ClusterID); err != nil {
      cs.log.Warn("Fallback refresh trigger failed", "cluster_id", intent.ClusterID, "error", err)
    }
  }

  return cs.mustRead(ctx, intent.ClusterID)
}

func (cs *clusterService) RenameCluster(ctx context.Context, oldID, newID, eclExpression, description string, clusterType types.ClusterType) (*types.Cluster, error) {
  oldNorm := utils.NormalizeClusterID(oldID)
  intent, err := cs.buildIntent(newID, eclExpression, description, clusterType)
  if err != nil {
    return nil, err
  }
  if oldNorm == "" {
    return nil, &types.ValidationError{Message: "cluster id is required"}
  }

  existing, err := cs.readCluster(ctx, oldNorm)
  if err != nil {
    return nil, fmt.Errorf("read existing cluster: %w", err)
  }
  if existing == nil {
    return nil, &types.NotFoundError{ClusterID: oldNorm}
  }
  if intent.ClusterID != oldNorm {
    taken, err := cs.clusterRepo.Exists(ctx, nil, intent.ClusterID)
    if err != nil {
      return nil, fmt.Errorf("check new cluster id: %w", err)
    }
    if taken {
      return nil, &types.ConflictError{Op: "rename", ClusterID: intent.ClusterID, Message: "target cluster id already exists"}
    }
  }

  actor := requestdata.Actor(ctx, "")
  result, callErr := cs.channel.RenameCluster(ctx, oldNorm, intent.ClusterID, intent.ECLExpression, intent.Description, actor, string(intent.ClusterType))
  if callErr == nil && result.Success() {
    return cs.mustRead(ctx, intent.ClusterID)
  }

  // Rename reconciliation requires both halves: the new id holds the
  // intended state and the old id is gone. A half-applied rename is a
  // consistency violation, never reported as success.
  if cluster := cs.confirmIntent(ctx, "rename", intent, callErr); cluster != nil {
    oldGone, err := cs.clusterRepo.Exists(ctx, nil, oldNorm)
    if err == nil && !oldGone {
      return cluster, nil
    }
  }

  underlying := callErr
  message := "rename did not apply"
  if callErr == nil {
    message = fmt.Sprintf("rename did not apply: %s", result.Message)
  }
  return nil, &types.ConflictError{Op: "rename", ClusterID: oldNorm, Message: message, Err: underlying}
}

func (cs *clusterService) DeleteCluster(ctx context.Context, clusterID string) error {
  normalized := utils.NormalizeClusterID(clusterID)
  if normalized == "" {
    return &types.ValidationError{Message: "cluster id is required"}
  }

  result, callErr := cs.channel.DeleteCluster(ctx, normalized)
  if callErr == nil && result.Success() {
    return nil
  }

  // Delete reconciliation: the row being gone means the delete landed,
  // whatever the channel reported. Deleting an absent cluster is not an
  // error either.
  exists, err := cs.clusterRepo.Exists(ctx, nil, normalized)
  if err == nil && !exists {
    return nil
  }

  message := "delete did not apply"
  if callErr == nil {
    message = fmt.Sprintf("delete did not apply: %s", result.Message)
  }
  return &types.ConflictError{Op: "delete", ClusterID: normalized, Message: message, Err: callErr}
}

func (cs *clusterService) GetCluster(ctx context.Context, clusterID string) (*types.Cluster, error) {
  normalized := utils.NormalizeClusterID(clusterID)
  cluster, err := cs.readCluster(ctx, normalized)
  if err != nil {
    return nil, fmt.Errorf("get cluster: %w", err)
  }
  if cluster == nil {
    return nil, &types.NotFoundError{ClusterID: normalized}
  }
  return cluster, nil
}

func (cs *clusterService) GetClusterStatus(ctx context.Context, clusterID string) (*ClusterStatusInfo, error) {
  normalized := utils.NormalizeClusterID(clusterID)
  cluster, err := cs.readCluster(ctx, normalized)
  if err != nil {
    return nil, fmt.Errorf("get cluster: %w", err)
  }
  if cluster == nil {
    return nil, &types.NotFoundError{ClusterID: normalized}
  }

  metas, err := cs.metadataRepo.GetByIDs(ctx, nil, []string{normalized})
  if err != nil {
    return nil, fmt.Errorf("get cache metadata: %w", err)
  }

  now := time.Now().UTC()
  info := &ClusterStatusInfo{ClusterID: normalized}
  if len(metas) > 0 {
    meta := metas[0]
    info.LastSuccessfulRefresh = meta.LastSuccessfulRefresh
    info.LastAttemptedRefresh = meta.LastAttemptedRefresh
    info.LastRefreshedBy = meta.LastRefreshedBy
    info.LastAttemptedBy = meta.LastAttemptedBy
    info.RecordCount = meta.RecordCount
    info.LastErrorMessage = meta.LastErrorMessage
    info.Status = ComputeStatus(meta.LastSuccessfulRefresh, now)
  } else {
    info.Status = types.StatusNeverRefreshed
  }
  info.StatusLabel = info.Status.Label()
  info.LastRefreshedDisplay = utils.FormatTimeAgo(info.LastSuccessfulRefresh, now)
  info.RecordCountDisplay = utils.FormatNumber(info.RecordCount)
  return info, nil
}

func (cs *clusterService) ListClusters(ctx context.Context) ([]*ClusterOverview, error) {
  clusters, err := cs.clusterRepo.List(ctx, nil)
  if err != nil {
    return nil, fmt.Errorf("list clusters: %w", err)
  }

  metas, err := cs.metadataRepo.List(ctx, nil)
  if err != nil {
    return nil, fmt.Errorf("list cache metadata: %w", err)
  }
  metaByID := make(map[string]*types.CacheMetadata, len(metas))
  for _, m := range metas {
    metaByID[m.ClusterID] = m
  }

  now := time.Now().UTC()
  overviews := make([]*ClusterOverview, 0, len(clusters))
  for _, c := range clusters {
    overview := &ClusterOverview{Cluster: c, Status: types.StatusNeverRefreshed}
    if meta, ok := metaByID[c.ClusterID]; ok {
      overview.Metadata = meta
      overview.Status = ComputeStatus(meta.LastSuccessfulRefresh, now)
    }
    overview.StatusLabel = overview.Status.Label()
    overviews = append(overviews, overview)
  }
  return overviews, nil
}

func (cs *clusterService) buildIntent(clusterID, eclExpression, description string, clusterType types.ClusterType) (ClusterIntent, error) {
  normalized := utils.NormalizeClusterID(clusterID)
  if normalized == "" {
    return ClusterIntent{}, &types.ValidationError{Message: "cluster id is required"}
  }
  if utils.NormalizeWhitespace(eclExpression) == "" {
    return ClusterIntent{}, &types.ValidationError{Message: "ecl expression is required"}
  }
  if clusterType == "" {
    clusterType = types.ClusterTypeObservation
  }
  if !types.ValidClusterType(clusterType) {
    return ClusterIntent{}, &types.ValidationError{Message: fmt.Sprintf("unknown cluster type %q", clusterType)}
  }
  return ClusterIntent{
    ClusterID:     normalized,
    ECLExpression: eclExpression,
    Description:   description,
    ClusterType:   clusterType,
  }, nil
}

// reconcileWrite resolves an ambiguous upsert outcome: the persisted row
// matching the intent means the write landed and the operation succeeded
// despite what the channel reported.
func (cs *clusterService) reconcileWrite(ctx context.Context, op string, intent ClusterIntent, result registryproc.Result, callErr error) (*types.Cluster, error) {
  if cluster := cs.confirmIntent(ctx, op, intent, callErr); cluster != nil {
    return cluster, nil
  }

  message := fmt.Sprintf("%s did not apply", op)
  if callErr == nil {
    if result.Empty() {
      message = fmt.Sprintf("%s did not apply: procedure returned no result", op)
    } else {
      message = fmt.Sprintf("%s did not apply: %s", op, result.Message)
    }
  }
  return nil, &types.ConflictError{Op: op, ClusterID: intent.ClusterID, Message: message, Err: callErr}
}

// confirmIntent re-reads the target row and returns it when it matches the
// intended post-mutation state; nil otherwise. Every read goes to the store,
// never a local cache, so the comparison is always against durable truth.
func (cs *clusterService) confirmIntent(ctx context.Context, op string, intent ClusterIntent, cause error) *types.Cluster {
  cluster, err := cs.readCluster(ctx, intent.ClusterID)
  if err != nil {
    cs.log.Warn("Reconciliation read failed", "op", op, "cluster_id", intent.ClusterID, "error", err)
    return nil
  }
  if IntentMatches(cluster, intent) {
    if cause != nil {
      ambiguous := &types.AmbiguousWriteError{Op: op, ClusterID: intent.ClusterID, Err: cause}
      cs.log.Info("Write landed despite channel failure, reporting success", "op", op, "cluster_id", intent.ClusterID, "resolved", ambiguous.Error())
    }
    return cluster
  }
  return nil
}

func (cs *clusterService) readCluster(ctx context.Context, clusterID string) (*types.Cluster, error) {
  clusters, err := cs.clusterRepo.GetByIDs(ctx, nil, []string{clusterID})
  if err != nil {
    return nil, err
  }
  if len(clusters) == 0 {
    return nil, nil
  }
  return clusters[0], nil
}

func (cs *clusterService) mustRead(ctx context.Context, clusterID string) (*types.Cluster, error) {
  cluster, err := cs.readCluster(ctx, clusterID)
  if err != nil {
    return nil, fmt.Errorf("read cluster after write: %w", err)
  }
  if cluster == nil {
    return nil, &types.ConflictError{Op: "read-after-write", ClusterID: clusterID, Message: "cluster missing after reported success"}
  }
  return cluster, nil
}
