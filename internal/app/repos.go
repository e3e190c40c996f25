package app

import (
	"gorm.io/gorm"
	"github.com/nclhealth/cluster-cache-backend/internal/logger"
	"github.com/nclhealth/cluster-cache-backend/internal/repos"
)

type Repos struct {
	Cluster       repos.ClusterRepo
	ClusterCache  repos.ClusterCacheRepo
	CacheMetadata repos.CacheMetadataRepo
	ChangeLedger  repos.ChangeLedgerRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Cluster:       repos.NewClusterRepo(db, log),
		ClusterCache:  repos.NewClusterCacheRepo(db, log),
		CacheMetadata: repos.NewCacheMetadataRepo(db, log),
		ChangeLedger:  repos.NewChangeLedgerRepo(db, log),
	}
}
