package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/services"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

type ClusterHandler struct {
  log            *logger.Logger
  clusterService services.ClusterService
  eclService     services.ECLService
}

func NewClusterHandler(log *logger.Logger, clusterService services.ClusterService, eclService services.ECLService) *ClusterHandler {
  return &ClusterHandler{
    log:            log.With("handler", "ClusterHandler"),
    clusterService: clusterService,
    eclService:     eclService,
  }
}

type clusterPayload struct {
  ClusterID     string            `json:"cluster_id"`
  ECLExpression string            `json:"ecl_expression"`
  Description   string            `json:"description"`
  ClusterType   types.ClusterType `json:"cluster_type"`
}

type renamePayload struct {
  NewClusterID  string            `json:"new_cluster_id"`
  ECLExpression string            `json:"ecl_expression"`
  Description   string            `json:"description"`
  ClusterType   types.ClusterType `json:"cluster_type"`
}

func (h *ClusterHandler) ListClusters(c *gin.Context) {
  overviews, err := h.clusterService.ListClusters(c.Request.Context())
  if err != nil {
    h.log.Error("ListClusters failed", "error", err)
    RespondServiceError(c, "list_clusters_failed", err)
    return
  }
  RespondOK(c, gin.H{"clusters": overviews})
}

func (h *ClusterHandler) GetCluster(c *gin.Context) {
  clusterID := c.Param("id")
  cluster, err := h.clusterService.GetCluster(c.Request.Context(), clusterID)
  if err != nil {
    if !types.IsNotFound(err) {
      h.log.Error("GetCluster failed", "error", err, "cluster_id", clusterID)
    }
    RespondServiceError(c, "get_cluster_failed", err)
    return
  }

  status, err := h.clusterService.GetClusterStatus(c.Request.Context(), clusterID)
  if err != nil {
    h.log.Error("GetClusterStatus failed", "error", err, "cluster_id", clusterID)
    RespondServiceError(c, "get_cluster_failed", err)
    return
  }
  RespondOK(c, gin.H{"cluster": cluster, "status": status})
}

func (h *ClusterHandler) GetClusterStatus(c *gin.Context) {
  clusterID := c.Param("id")
  status, err := h.clusterService.GetClusterStatus(c.Request.Context(), clusterID)
  if err != nil {
    if !types.IsNotFound(err) {
      h.log.Error("GetClusterStatus failed", "error", err, "cluster_id", clusterID)
    }
    RespondServiceError(c, "get_status_failed", err)
    return
  }
  RespondOK(c, status)
}

func (h *ClusterHandler) CreateCluster(c *gin.Context) {
  var payload clusterPayload
  if err := c.ShouldBindJSON(&payload); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_payload", err)
    return
  }

  if !h.precheckExpression(c, payload.ECLExpression) {
    return
  }

  cluster, err := h.clusterService.CreateCluster(c.Request.Context(), payload.ClusterID, payload.ECLExpression, payload.Description, payload.ClusterType)
  if err != nil {
    h.log.Error("CreateCluster failed", "error", err, "cluster_id", payload.ClusterID)
    RespondServiceError(c, "create_cluster_failed", err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"cluster": cluster})
}

func (h *ClusterHandler) UpdateCluster(c *gin.Context) {
  clusterID := c.Param("id")
  var payload clusterPayload
  if err := c.ShouldBindJSON(&payload); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_payload", err)
    return
  }

  if !h.precheckExpression(c, payload.ECLExpression) {
    return
  }

  cluster, err := h.clusterService.UpdateCluster(c.Request.Context(), clusterID, payload.ECLExpression, payload.Description, payload.ClusterType)
  if err != nil {
    if !types.IsNotFound(err) {
      h.log.Error("UpdateCluster failed", "error", err, "cluster_id", clusterID)
    }
    RespondServiceError(c, "update_cluster_failed", err)
    return
  }
  RespondOK(c, gin.H{"cluster": cluster})
}

func (h *ClusterHandler) RenameCluster(c *gin.Context) {
  clusterID := c.Param("id")
  var payload renamePayload
  if err := c.ShouldBindJSON(&payload); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_payload", err)
    return
  }

  cluster, err := h.clusterService.RenameCluster(c.Request.Context(), clusterID, payload.NewClusterID, payload.ECLExpression, payload.Description, payload.ClusterType)
  if err != nil {
    if !types.IsNotFound(err) {
      h.log.Error("RenameCluster failed", "error", err, "cluster_id", clusterID, "new_cluster_id", payload.NewClusterID)
    }
    RespondServiceError(c, "rename_cluster_failed", err)
    return
  }
  RespondOK(c, gin.H{"cluster": cluster})
}

func (h *ClusterHandler) DeleteCluster(c *gin.Context) {
  clusterID := c.Param("id")
  if err := h.clusterService.DeleteCluster(c.Request.Context(), clusterID); err != nil {
    h.log.Error("DeleteCluster failed", "error", err, "cluster_id", clusterID)
    RespondServiceError(c, "delete_cluster_failed", err)
    return
  }
  RespondOK(c, gin.H{"deleted": true})
}

// precheckExpression rejects a definition whose expression fails to evaluate
// or resolves to zero codes, before anything is saved. A refresh later may
// still legitimately produce an empty membership; only the save path has this
// gate.
func (h *ClusterHandler) precheckExpression(c *gin.Context, expression string) bool {
  codes, err := h.eclService.Evaluate(c.Request.Context(), expression)
  if err != nil {
    RespondServiceError(c, "ecl_validation_failed", err)
    return false
  }
  if len(codes) == 0 {
    RespondError(c, http.StatusUnprocessableEntity, "ecl_empty_result", &types.ValidationError{Message: "expression returned no codes"})
    return false
  }
  return true
}
