package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/services"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
)

// ECLHandler backs the playground: evaluate an expression without touching
// any cluster.
type ECLHandler struct {
  log        *logger.Logger
  eclService services.ECLService
}

func NewECLHandler(log *logger.Logger, eclService services.ECLService) *ECLHandler {
  return &ECLHandler{
    log:        log.With("handler", "ECLHandler"),
    eclService: eclService,
  }
}

type eclTestPayload struct {
  Expression string `json:"expression"`
}

func (h *ECLHandler) TestExpression(c *gin.Context) {
  var payload eclTestPayload
  if err := c.ShouldBindJSON(&payload); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_payload", err)
    return
  }

  codes, err := h.eclService.Evaluate(c.Request.Context(), payload.Expression)
  if err != nil {
    if !types.IsValidation(err) {
      h.log.Error("TestExpression failed", "error", err)
    }
    RespondServiceError(c, "ecl_test_failed", err)
    return
  }
  RespondOK(c, gin.H{"codes": codes, "count": len(codes)})
}
