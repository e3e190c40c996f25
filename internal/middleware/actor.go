package middleware

import (
  "github.com/gin-gonic/gin"
  "github.com/nclhealth/cluster-cache-backend/internal/logger"
  "github.com/nclhealth/cluster-cache-backend/internal/requestdata"
  "github.com/nclhealth/cluster-cache-backend/internal/utils"
)

// ActorMiddleware copies the acting user's email from the X-Actor-Email
// header into the request context for attribution. It does not authenticate;
// the service sits behind the trust boundary and only records who acted.
type ActorMiddleware struct {
  log *logger.Logger
}

func NewActorMiddleware(log *logger.Logger) *ActorMiddleware {
  middlewareLog := log.With("middleware", "ActorMiddleware")
  return &ActorMiddleware{log: middlewareLog}
}

func (am *ActorMiddleware) WithActor() gin.HandlerFunc {
  return func(c *gin.Context) {
    actor := utils.NormalizeActor(c.GetHeader("X-Actor-Email"))
    rd := &requestdata.RequestData{Actor: actor}
    ctx := requestdata.WithRequestData(c.Request.Context(), rd)
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}
