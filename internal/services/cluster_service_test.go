package services

import (
  "context"
  "errors"
  "testing"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

func newGuard(t *testing.T, db *gorm.DB, channel *fakeChannel, refresher Refresher) ClusterService {
  t.Helper()
  r := newTestRepos(db)
  return NewClusterService(db, testLogger(), r.cluster, r.metadata, channel, refresher)
}

func TestCreateCluster_Success(t *testing.T) {
  db := testDB(t)
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  cluster, err := guard.CreateCluster(actorContext("ALICE@NHS.NET"), "ast_cod", "<< 195967001", "Asthma codes", "")
  if err != nil {
    t.Fatalf("create failed: %v", err)
  }
  if cluster.ClusterID != "AST_COD" {
    t.Fatalf("expected canonical id AST_COD, got %q", cluster.ClusterID)
  }
  if cluster.ClusterType != types.ClusterTypeObservation {
    t.Fatalf("expected default OBSERVATION type, got %q", cluster.ClusterType)
  }
  if channel.upsertCalls != 1 {
    t.Fatalf("expected one channel call, got %d", channel.upsertCalls)
  }
}

func TestCreateCluster_RetryWithIdenticalDefinitionIsIdempotent(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001 |Asthma|")
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  // Same definition modulo whitespace: succeeds without touching the channel.
  cluster, err := guard.CreateCluster(context.Background(), "ast_cod", "<<   195967001\n|Asthma|", "test cluster", types.ClusterTypeObservation)
  if err != nil {
    t.Fatalf("idempotent retry failed: %v", err)
  }
  if cluster.ClusterID != "AST_COD" {
    t.Fatalf("unexpected cluster id %q", cluster.ClusterID)
  }
  if channel.upsertCalls != 0 {
    t.Fatalf("idempotent retry must not call the channel, got %d calls", channel.upsertCalls)
  }
}

func TestCreateCluster_ExistingDifferentDefinitionConflicts(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  _, err := guard.CreateCluster(context.Background(), "AST_COD", "<< 999999999", "test cluster", "")
  if !types.IsConflict(err) {
    t.Fatalf("expected conflict error, got %v", err)
  }
  if channel.upsertCalls != 0 {
    t.Fatalf("conflicting create must not call the channel, got %d calls", channel.upsertCalls)
  }
}

func TestCreateCluster_AppliedDespiteChannelErrorReconcilesToSuccess(t *testing.T) {
  db := testDB(t)
  channel := &fakeChannel{db: db, applies: true, err: errors.New("connection reset mid-call")}
  guard := newGuard(t, db, channel, nil)

  cluster, err := guard.CreateCluster(context.Background(), "DM_COD", "<< 73211009", "Diabetes codes", types.ClusterTypeObservation)
  if err != nil {
    t.Fatalf("expected reconciled success, got %v", err)
  }
  if cluster.ClusterID != "DM_COD" {
    t.Fatalf("unexpected cluster id %q", cluster.ClusterID)
  }
}

func TestCreateCluster_NotAppliedChannelErrorConflicts(t *testing.T) {
  db := testDB(t)
  channel := &fakeChannel{db: db, applies: false, err: errors.New("connection refused")}
  guard := newGuard(t, db, channel, nil)

  _, err := guard.CreateCluster(context.Background(), "DM_COD", "<< 73211009", "", "")
  if !types.IsConflict(err) {
    t.Fatalf("expected conflict error, got %v", err)
  }

  // The failed create must not have left a row behind.
  var count int64
  if err := db.Model(&types.Cluster{}).Count(&count).Error; err != nil {
    t.Fatalf("count clusters: %v", err)
  }
  if count != 0 {
    t.Fatalf("expected no clusters after failed create, got %d", count)
  }
}

func TestCreateCluster_Validation(t *testing.T) {
  db := testDB(t)
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  if _, err := guard.CreateCluster(context.Background(), "   ", "<< 1", "", ""); !types.IsValidation(err) {
    t.Fatalf("blank id: expected validation error, got %v", err)
  }
  if _, err := guard.CreateCluster(context.Background(), "X_COD", "  \n ", "", ""); !types.IsValidation(err) {
    t.Fatalf("blank expression: expected validation error, got %v", err)
  }
  if _, err := guard.CreateCluster(context.Background(), "X_COD", "<< 1", "", "PROCEDURE"); !types.IsValidation(err) {
    t.Fatalf("unknown type: expected validation error, got %v", err)
  }
  if channel.upsertCalls != 0 {
    t.Fatalf("validation failures must not call the channel, got %d calls", channel.upsertCalls)
  }
}

func TestUpdateCluster_MissingClusterNotFound(t *testing.T) {
  db := testDB(t)
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  _, err := guard.UpdateCluster(context.Background(), "GHOST_COD", "<< 1", "", "")
  if !types.IsNotFound(err) {
    t.Fatalf("expected not found, got %v", err)
  }
}

func TestUpdateCluster_ChannelDownFallsBackToDirectUpsertAndRefresh(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: false, err: errors.New("channel unavailable")}
  refresher := &fakeRefresher{}
  guard := newGuard(t, db, channel, refresher)

  cluster, err := guard.UpdateCluster(actorContext("BOB@NHS.NET"), "AST_COD", "<< 195967001 OR << 233683003", "widened", "")
  if err != nil {
    t.Fatalf("fallback update failed: %v", err)
  }
  if cluster.ECLExpression != "<< 195967001 OR << 233683003" {
    t.Fatalf("expression not updated: %q", cluster.ECLExpression)
  }
  if len(refresher.calls) != 1 || refresher.calls[0] != "AST_COD" {
    t.Fatalf("expected one forced refresh for AST_COD, got %v", refresher.calls)
  }
}

func TestUpdateCluster_AppliedDespiteChannelErrorSkipsFallback(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: true, err: errors.New("timeout after commit")}
  refresher := &fakeRefresher{}
  guard := newGuard(t, db, channel, refresher)

  cluster, err := guard.UpdateCluster(context.Background(), "AST_COD", "<< 195967001 OR << 233683003", "widened", "")
  if err != nil {
    t.Fatalf("expected reconciled success, got %v", err)
  }
  if cluster.ECLExpression != "<< 195967001 OR << 233683003" {
    t.Fatalf("expression not updated: %q", cluster.ECLExpression)
  }
  if len(refresher.calls) != 0 {
    t.Fatalf("reconciled update must not trigger the fallback refresh, got %v", refresher.calls)
  }
}

func TestRenameCluster_Success(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  cluster, err := guard.RenameCluster(context.Background(), "AST_COD", "ASTHMA_COD", "<< 195967001", "renamed", "")
  if err != nil {
    t.Fatalf("rename failed: %v", err)
  }
  if cluster.ClusterID != "ASTHMA_COD" {
    t.Fatalf("expected new id ASTHMA_COD, got %q", cluster.ClusterID)
  }

  var count int64
  if err := db.Model(&types.Cluster{}).Where("cluster_id = ?", "AST_COD").Count(&count).Error; err != nil {
    t.Fatalf("count old id: %v", err)
  }
  if count != 0 {
    t.Fatalf("old cluster id still present after rename")
  }
}

func TestRenameCluster_CarriesHistoryAndCache(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")

  session := uuid.New()
  refreshedAt := time.Now().UTC().Add(-time.Hour)
  for _, code := range []string{"100", "200"} {
    entry := &types.ClusterCacheEntry{
      ID:               uuid.New(),
      ClusterID:        "AST_COD",
      RefreshSessionID: session,
      Code:             code,
      Display:          "display " + code,
      System:           "http://snomed.info/sct",
      LastRefreshed:    refreshedAt,
    }
    if err := db.Create(entry).Error; err != nil {
      t.Fatalf("seed cache entry: %v", err)
    }
    seedChange(t, db, "AST_COD", session, types.ChangeTypeAdded, code, refreshedAt, "ALICE@NHS.NET")
  }
  meta := &types.CacheMetadata{
    ClusterID:             "AST_COD",
    LastRefreshSessionID:  session,
    LastSuccessfulRefresh: &refreshedAt,
    RecordCount:           2,
  }
  if err := db.Create(meta).Error; err != nil {
    t.Fatalf("seed metadata: %v", err)
  }

  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)
  if _, err := guard.RenameCluster(context.Background(), "AST_COD", "ASTHMA_COD", "<< 195967001", "test cluster", ""); err != nil {
    t.Fatalf("rename failed: %v", err)
  }

  // The history previously recorded under the old id now answers to the new
  // one, and only the new one.
  history := newHistorySvc(t, db)
  moved, err := history.GetChangeHistory(context.Background(), "ASTHMA_COD", 0)
  if err != nil {
    t.Fatalf("history under new id: %v", err)
  }
  if len(moved) != 2 {
    t.Fatalf("expected 2 history records under new id, got %d", len(moved))
  }
  leftBehind, err := history.GetChangeHistory(context.Background(), "AST_COD", 0)
  if err != nil {
    t.Fatalf("history under old id: %v", err)
  }
  if len(leftBehind) != 0 {
    t.Fatalf("old id must have no history after rename, got %d records", len(leftBehind))
  }

  // The current snapshot follows the id too.
  refreshSvc := newRefreshSvc(t, db, &fakeECL{}, nil)
  entries, err := refreshSvc.GetCurrentCache(context.Background(), "ASTHMA_COD")
  if err != nil {
    t.Fatalf("cache under new id: %v", err)
  }
  if len(entries) != 2 {
    t.Fatalf("expected 2 cache entries under new id, got %d", len(entries))
  }
  oldEntries, err := refreshSvc.GetCurrentCache(context.Background(), "AST_COD")
  if err != nil {
    t.Fatalf("cache under old id: %v", err)
  }
  if len(oldEntries) != 0 {
    t.Fatalf("old id must have no current cache after rename, got %d entries", len(oldEntries))
  }
}

func TestRenameCluster_TargetTakenConflicts(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  mustCreateCluster(t, db, "ASTHMA_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  _, err := guard.RenameCluster(context.Background(), "AST_COD", "ASTHMA_COD", "<< 195967001", "", "")
  if !types.IsConflict(err) {
    t.Fatalf("expected conflict, got %v", err)
  }
  if channel.renameCalls != 0 {
    t.Fatalf("taken target must not call the channel, got %d calls", channel.renameCalls)
  }
}

func TestRenameCluster_MissingSourceNotFound(t *testing.T) {
  db := testDB(t)
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  _, err := guard.RenameCluster(context.Background(), "GHOST_COD", "NEW_COD", "<< 1", "", "")
  if !types.IsNotFound(err) {
    t.Fatalf("expected not found, got %v", err)
  }
}

func TestRenameCluster_NotAppliedConflicts(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: false, result: errorResult("rename rejected")}
  guard := newGuard(t, db, channel, nil)

  _, err := guard.RenameCluster(context.Background(), "AST_COD", "ASTHMA_COD", "<< 195967001", "", "")
  if !types.IsConflict(err) {
    t.Fatalf("expected conflict, got %v", err)
  }

  // Source row untouched.
  var count int64
  if err := db.Model(&types.Cluster{}).Where("cluster_id = ?", "AST_COD").Count(&count).Error; err != nil {
    t.Fatalf("count source: %v", err)
  }
  if count != 1 {
    t.Fatalf("source cluster missing after failed rename")
  }
}

func TestDeleteCluster_Success(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  if err := guard.DeleteCluster(context.Background(), "ast_cod"); err != nil {
    t.Fatalf("delete failed: %v", err)
  }
}

func TestDeleteCluster_AbsentClusterIsIdempotent(t *testing.T) {
  db := testDB(t)
  channel := &fakeChannel{db: db, applies: false, result: errorResult("cluster not found")}
  guard := newGuard(t, db, channel, nil)

  if err := guard.DeleteCluster(context.Background(), "GHOST_COD"); err != nil {
    t.Fatalf("deleting an absent cluster must succeed, got %v", err)
  }
}

func TestDeleteCluster_AppliedDespiteChannelErrorSucceeds(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: true, err: errors.New("timeout after commit")}
  guard := newGuard(t, db, channel, nil)

  if err := guard.DeleteCluster(context.Background(), "AST_COD"); err != nil {
    t.Fatalf("expected reconciled success, got %v", err)
  }
}

func TestDeleteCluster_RowRemainingConflicts(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: false, err: errors.New("connection refused")}
  guard := newGuard(t, db, channel, nil)

  err := guard.DeleteCluster(context.Background(), "AST_COD")
  if !types.IsConflict(err) {
    t.Fatalf("expected conflict, got %v", err)
  }
}

func TestGetClusterStatus_NeverRefreshedWithoutMetadata(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  info, err := guard.GetClusterStatus(context.Background(), "AST_COD")
  if err != nil {
    t.Fatalf("get status failed: %v", err)
  }
  if info.Status != types.StatusNeverRefreshed {
    t.Fatalf("expected never refreshed, got %q", info.Status)
  }
  if info.StatusLabel != "Never refreshed" {
    t.Fatalf("unexpected label %q", info.StatusLabel)
  }
  if info.LastRefreshedDisplay != "Unknown" {
    t.Fatalf("expected Unknown display, got %q", info.LastRefreshedDisplay)
  }
  if info.RecordCountDisplay != "0" {
    t.Fatalf("expected 0 display, got %q", info.RecordCountDisplay)
  }
}

func TestGetClusterStatus_FormatsDisplayFields(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  lastRefresh := time.Now().UTC().Add(-2 * time.Hour)
  meta := &types.CacheMetadata{
    ClusterID:             "AST_COD",
    LastSuccessfulRefresh: &lastRefresh,
    RecordCount:           50000,
  }
  if err := db.Create(meta).Error; err != nil {
    t.Fatalf("seed metadata: %v", err)
  }
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  info, err := guard.GetClusterStatus(context.Background(), "AST_COD")
  if err != nil {
    t.Fatalf("get status failed: %v", err)
  }
  if info.LastRefreshedDisplay != "2 hours ago" {
    t.Fatalf("unexpected refreshed display %q", info.LastRefreshedDisplay)
  }
  if info.RecordCountDisplay != "50,000" {
    t.Fatalf("unexpected record count display %q", info.RecordCountDisplay)
  }
}

func TestListClusters_JoinsMetadataAndOrdersByID(t *testing.T) {
  db := testDB(t)
  mustCreateCluster(t, db, "DM_COD", "<< 73211009")
  mustCreateCluster(t, db, "AST_COD", "<< 195967001")
  channel := &fakeChannel{db: db, applies: true, result: successResult()}
  guard := newGuard(t, db, channel, nil)

  overviews, err := guard.ListClusters(context.Background())
  if err != nil {
    t.Fatalf("list failed: %v", err)
  }
  if len(overviews) != 2 {
    t.Fatalf("expected 2 overviews, got %d", len(overviews))
  }
  if overviews[0].Cluster.ClusterID != "AST_COD" || overviews[1].Cluster.ClusterID != "DM_COD" {
    t.Fatalf("unexpected order: %s, %s", overviews[0].Cluster.ClusterID, overviews[1].Cluster.ClusterID)
  }
  if overviews[0].Status != types.StatusNeverRefreshed {
    t.Fatalf("expected never refreshed without metadata, got %q", overviews[0].Status)
  }
}

func TestIntentMatches_WhitespaceInsensitive(t *testing.T) {
  cluster := &types.Cluster{
    ClusterID:     "AST_COD",
    ECLExpression: "<< 195967001 |Asthma|",
    Description:   "Asthma codes",
    ClusterType:   types.ClusterTypeObservation,
  }
  intent := ClusterIntent{
    ClusterID:     "ast_cod",
    ECLExpression: "<<\n  195967001   |Asthma|",
    Description:   "  Asthma   codes ",
    ClusterType:   types.ClusterTypeObservation,
  }
  if !IntentMatches(cluster, intent) {
    t.Fatalf("expected whitespace-normalized match")
  }

  intent.ECLExpression = "<< 999999999"
  if IntentMatches(cluster, intent) {
    t.Fatalf("different expression must not match")
  }
  if IntentMatches(nil, intent) {
    t.Fatalf("nil cluster must not match")
  }
}
