package app

import (
	"github.com/nclhealth/cluster-cache-backend/internal/handlers"
	"github.com/nclhealth/cluster-cache-backend/internal/logger"
)

type Handlers struct {
	Cluster *handlers.ClusterHandler
	Refresh *handlers.RefreshHandler
	History *handlers.HistoryHandler
	ECL     *handlers.ECLHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Cluster: handlers.NewClusterHandler(log, serviceset.Cluster, serviceset.ECL),
		Refresh: handlers.NewRefreshHandler(log, serviceset.Refresh),
		History: handlers.NewHistoryHandler(log, serviceset.History),
		ECL:     handlers.NewECLHandler(log, serviceset.ECL),
	}
}
