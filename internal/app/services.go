package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nclhealth/cluster-cache-backend/internal/logger"
	"github.com/nclhealth/cluster-cache-backend/internal/registryproc"
	"github.com/nclhealth/cluster-cache-backend/internal/services"
)

type Services struct {
	ECL     services.ECLService
	Cluster services.ClusterService
	Refresh services.RefreshService
	History services.HistoryService
}

func wireServices(ctx context.Context, db *gorm.DB, dsn string, log *logger.Logger, cfg Config, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	eclService, err := services.NewECLClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init ecl client: %w", err)
	}

	channel, err := registryproc.NewPgxChannel(ctx, dsn, log)
	if err != nil {
		return Services{}, fmt.Errorf("init registry channel: %w", err)
	}

	locker := services.NewNoopLocker()
	if cfg.RedisAddr != "" {
		locker = services.NewRedisLocker(cfg.RedisAddr, log)
	}

	refreshService := services.NewRefreshService(db, log, reposet.Cluster, reposet.ClusterCache, reposet.CacheMetadata, reposet.ChangeLedger, eclService, locker)
	clusterService := services.NewClusterService(db, log, reposet.Cluster, reposet.CacheMetadata, channel, refreshService)
	historyService := services.NewHistoryService(db, log, reposet.ChangeLedger)

	return Services{
		ECL:     eclService,
		Cluster: clusterService,
		Refresh: refreshService,
		History: historyService,
	}, nil
}
