package app

import (
	"github.com/gin-gonic/gin"
	"github.com/nclhealth/cluster-cache-backend/internal/logger"
	"github.com/nclhealth/cluster-cache-backend/internal/middleware"
	"github.com/nclhealth/cluster-cache-backend/internal/server"
)

func wireRouter(log *logger.Logger, handlerset Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ClusterHandler:  handlerset.Cluster,
		RefreshHandler:  handlerset.Refresh,
		HistoryHandler:  handlerset.History,
		ECLHandler:      handlerset.ECL,
		ActorMiddleware: middleware.NewActorMiddleware(log),
	})
}
