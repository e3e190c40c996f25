package app

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nclhealth/cluster-cache-backend/internal/logger"
	"github.com/nclhealth/cluster-cache-backend/internal/requestdata"
	"github.com/nclhealth/cluster-cache-backend/internal/services"
	"github.com/nclhealth/cluster-cache-backend/internal/types"
)

type seedFile struct {
	Clusters []seedCluster `yaml:"clusters"`
}

type seedCluster struct {
	ClusterID     string `yaml:"cluster_id"`
	ECLExpression string `yaml:"ecl_expression"`
	Description   string `yaml:"description"`
	ClusterType   string `yaml:"cluster_type"`
}

// applySeedFile creates any clusters listed in the seed file that do not
// exist yet. Creation goes through the mutation guard, so re-running against
// an already seeded registry is a no-op for identical definitions and a
// logged conflict for drifted ones.
func applySeedFile(ctx context.Context, log *logger.Logger, path string, clusterService services.ClusterService) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	seedCtx := requestdata.WithRequestData(ctx, &requestdata.RequestData{Actor: "SYSTEM"})
	for _, sc := range seed.Clusters {
		_, err := clusterService.CreateCluster(seedCtx, sc.ClusterID, sc.ECLExpression, sc.Description, types.ClusterType(sc.ClusterType))
		if err != nil {
			if types.IsConflict(err) {
				log.Warn("Seed cluster differs from existing definition, leaving as is", "cluster_id", sc.ClusterID, "error", err)
				continue
			}
			return fmt.Errorf("seed cluster %s: %w", sc.ClusterID, err)
		}
		log.Info("Seed cluster ensured", "cluster_id", sc.ClusterID)
	}
	return nil
}
