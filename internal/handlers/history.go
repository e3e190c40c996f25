package handlers

import (
  "strconv"
  "github.com/gin-gonic/gin"
  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/services"
)

type HistoryHandler struct {
  log            *logger.Logger
  historyService services.HistoryService
}

func NewHistoryHandler(log *logger.Logger, historyService services.HistoryService) *HistoryHandler {
  return &HistoryHandler{
    log:            log.With("handler", "HistoryHandler"),
    historyService: historyService,
  }
}

func (h *HistoryHandler) GetChangeHistory(c *gin.Context) {
  clusterID := c.Param("id")
  limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

  sessions, err := h.historyService.GetChangeSessions(c.Request.Context(), clusterID, limit)
  if err != nil {
    h.log.Error("GetChangeHistory failed", "error", err, "cluster_id", clusterID)
    RespondServiceError(c, "get_history_failed", err)
    return
  }
  RespondOK(c, gin.H{"sessions": sessions})
}

func (h *HistoryHandler) GetChangeSummary(c *gin.Context) {
  clusterID := c.Param("id")
  days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

  rows, err := h.historyService.GetChangeSummary(c.Request.Context(), clusterID, days)
  if err != nil {
    h.log.Error("GetChangeSummary failed", "error", err, "cluster_id", clusterID)
    RespondServiceError(c, "get_summary_failed", err)
    return
  }
  RespondOK(c, gin.H{"summary": rows})
}

func (h *HistoryHandler) GetRecentChanges(c *gin.Context) {
  limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

  records, err := h.historyService.GetRecentChanges(c.Request.Context(), limit)
  if err != nil {
    h.log.Error("GetRecentChanges failed", "error", err)
    RespondServiceError(c, "get_recent_changes_failed", err)
    return
  }
  RespondOK(c, gin.H{"changes": records})
}
