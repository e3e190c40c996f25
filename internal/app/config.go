package app

import (
	"github.com/nclhealth/cluster-cache-backend/internal/logger"
	"github.com/nclhealth/cluster-cache-backend/internal/utils"
)

type Config struct {
	HTTPAddr    string
	RedisAddr   string
	SeedFile    string
	Environment string
	Version     string
}

func LoadConfig(log *logger.Logger) Config {
	httpAddr := utils.GetEnv("HTTP_ADDR", ":8080", log)
	redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
	seedFile := utils.GetEnv("CLUSTER_SEED_FILE", "", log)
	environment := utils.GetEnv("ENVIRONMENT", "development", log)
	version := utils.GetEnv("SERVICE_VERSION", "dev", log)
	return Config{
		HTTPAddr:    httpAddr,
		RedisAddr:   redisAddr,
		SeedFile:    seedFile,
		Environment: environment,
		Version:     version,
	}
}
