package handlers

import (
  "strconv"
  "github.com/gin-gonic/gin"
  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/services"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

type RefreshHandler struct {
  log            *logger.Logger
  refreshService services.RefreshService
}

func NewRefreshHandler(log *logger.Logger, refreshService services.RefreshService) *RefreshHandler {
  return &RefreshHandler{
    log:            log.With("handler", "RefreshHandler"),
    refreshService: refreshService,
  }
}

func (h *RefreshHandler) RefreshCluster(c *gin.Context) {
  clusterID := c.Param("id")
  force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

  result, err := h.refreshService.RefreshCluster(c.Request.Context(), clusterID, force)
  if err != nil {
    if !types.IsNotFound(err) && !types.IsValidation(err) {
      h.log.Error("RefreshCluster failed", "error", err, "cluster_id", clusterID, "force", force)
    }
    RespondServiceError(c, "refresh_cluster_failed", err)
    return
  }
  RespondOK(c, result)
}

func (h *RefreshHandler) RefreshAllStale(c *gin.Context) {
  result, err := h.refreshService.RefreshAllStale(c.Request.Context())
  if err != nil {
    h.log.Error("RefreshAllStale failed", "error", err)
    RespondServiceError(c, "refresh_stale_failed", err)
    return
  }
  RespondOK(c, result)
}

func (h *RefreshHandler) GetCurrentCache(c *gin.Context) {
  clusterID := c.Param("id")
  entries, err := h.refreshService.GetCurrentCache(c.Request.Context(), clusterID)
  if err != nil {
    h.log.Error("GetCurrentCache failed", "error", err, "cluster_id", clusterID)
    RespondServiceError(c, "get_cache_failed", err)
    return
  }
  RespondOK(c, gin.H{"codes": entries, "count": len(entries)})
}
