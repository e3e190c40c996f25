package services

import (
  "time"

  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

// StaleWindow is the age beyond which a cluster's cache is classified Stale.
const StaleWindow = 28 * 24 * time.Hour

// ComputeStatus classifies a cluster's cache freshness. Pure function of the
// last successful refresh and the current time: never refreshed when there is
// no successful refresh, Stale when the age has reached the window, Fresh
// otherwise.
func ComputeStatus(lastSuccessfulRefresh *time.Time, now time.Time) types.CacheStatus {
  if lastSuccessfulRefresh == nil || lastSuccessfulRefresh.IsZero() {
    return types.StatusNeverRefreshed
  }
  if now.Sub(*lastSuccessfulRefresh) >= StaleWindow {
    return types.StatusStale
  }
  return types.StatusFresh
}
