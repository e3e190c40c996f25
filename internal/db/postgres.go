package db

import (
  "fmt"
  "gorm.io/driver/postgres"
  "gorm.io/gorm"
  "github.com/nclhealth/cluster-cache-backend/internal/types"
  "github.com/nclhealth/cluster-cache-backend/internal/utils"
  "github.com/nclhealth/cluster-cache-backend/internal/logger"
)

type PostgresService struct {
  db  *gorm.DB
  dsn string
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  log.Info("Loading environment variables...")
  postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := utils.GetEnv("POSTGRES_NAME", "terminology", log)
  log.Debug("Environment variables loaded")

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

  log.Info("Connecting to Postgres...")
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    log.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  return &PostgresService{db: db, dsn: dsn, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.Cluster{},
    &types.ClusterCacheEntry{},
    &types.CacheMetadata{},
    &types.ChangeRecord{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }

  s.log.Info("Creating supporting indexes for cache lookups...")
  if err := s.db.Exec(`
    CREATE INDEX IF NOT EXISTS idx_cluster_cache_cluster_session
    ON "cluster_cache" ("cluster_id", "refresh_session_id")
  `).Error; err != nil {
    return fmt.Errorf("Failed to create idx_cluster_cache_cluster_session: %w", err)
  }
  if err := s.db.Exec(`
    CREATE INDEX IF NOT EXISTS idx_change_ledger_cluster_timestamp
    ON "cluster_change_ledger" ("cluster_id", "change_timestamp" DESC)
  `).Error; err != nil {
    return fmt.Errorf("Failed to create idx_change_ledger_cluster_timestamp: %w", err)
  }
  return nil
}

// EnsureRegistryProcs installs the server-side mutation functions that the
// registry procedure channel calls. Each returns a single status message row
// prefixed SUCCESS or ERROR; the rename function moves the definition and
// every dependent cache, ledger and metadata row in one transaction.
func (s *PostgresService) EnsureRegistryProcs() error {
  s.log.Info("Installing registry mutation functions...")

  stmts := []string{
    `CREATE OR REPLACE FUNCTION upsert_cluster(
       p_cluster_id TEXT, p_ecl TEXT, p_description TEXT, p_actor TEXT, p_type TEXT
     ) RETURNS TEXT AS $$
     BEGIN
       INSERT INTO "cluster" (cluster_id, ecl_expression, description, cluster_type, created_at, created_by, updated_at, updated_by)
       VALUES (UPPER(TRIM(p_cluster_id)), p_ecl, p_description, COALESCE(NULLIF(p_type, ''), 'OBSERVATION'), NOW(), p_actor, NOW(), p_actor)
       ON CONFLICT (cluster_id) DO UPDATE SET
         ecl_expression = EXCLUDED.ecl_expression,
         description    = EXCLUDED.description,
         cluster_type   = EXCLUDED.cluster_type,
         updated_at     = NOW(),
         updated_by     = EXCLUDED.updated_by;
       RETURN 'SUCCESS: cluster ' || UPPER(TRIM(p_cluster_id)) || ' upserted';
     EXCEPTION WHEN OTHERS THEN
       RETURN 'ERROR: ' || SQLERRM;
     END;
     $$ LANGUAGE plpgsql`,

    `CREATE OR REPLACE FUNCTION rename_cluster(
       p_old_id TEXT, p_new_id TEXT, p_ecl TEXT, p_description TEXT, p_actor TEXT, p_type TEXT
     ) RETURNS TEXT AS $$
     DECLARE
       v_old TEXT := UPPER(TRIM(p_old_id));
       v_new TEXT := UPPER(TRIM(p_new_id));
     BEGIN
       IF NOT EXISTS (SELECT 1 FROM "cluster" WHERE cluster_id = v_old) THEN
         RETURN 'ERROR: cluster ' || v_old || ' not found';
       END IF;
       IF v_new <> v_old AND EXISTS (SELECT 1 FROM "cluster" WHERE cluster_id = v_new) THEN
         RETURN 'ERROR: cluster ' || v_new || ' already exists';
       END IF;
       UPDATE "cluster" SET
         cluster_id     = v_new,
         ecl_expression = p_ecl,
         description    = p_description,
         cluster_type   = COALESCE(NULLIF(p_type, ''), cluster_type),
         updated_at     = NOW(),
         updated_by     = p_actor
       WHERE cluster_id = v_old;
       UPDATE "cluster_cache" SET cluster_id = v_new WHERE cluster_id = v_old;
       UPDATE "cluster_change_ledger" SET cluster_id = v_new WHERE cluster_id = v_old;
       UPDATE "cluster_cache_metadata" SET cluster_id = v_new WHERE cluster_id = v_old;
       RETURN 'SUCCESS: cluster ' || v_old || ' renamed to ' || v_new;
     EXCEPTION WHEN OTHERS THEN
       RETURN 'ERROR: ' || SQLERRM;
     END;
     $$ LANGUAGE plpgsql`,

    `CREATE OR REPLACE FUNCTION delete_cluster(p_cluster_id TEXT) RETURNS TEXT AS $$
     DECLARE
       v_id TEXT := UPPER(TRIM(p_cluster_id));
     BEGIN
       DELETE FROM "cluster_change_ledger" WHERE cluster_id = v_id;
       DELETE FROM "cluster_cache" WHERE cluster_id = v_id;
       DELETE FROM "cluster_cache_metadata" WHERE cluster_id = v_id;
       DELETE FROM "cluster" WHERE cluster_id = v_id;
       RETURN 'SUCCESS: cluster ' || v_id || ' deleted';
     EXCEPTION WHEN OTHERS THEN
       RETURN 'ERROR: ' || SQLERRM;
     END;
     $$ LANGUAGE plpgsql`,
  }

  for _, stmt := range stmts {
    if err := s.db.Exec(stmt).Error; err != nil {
      s.log.Error("Failed to install registry function", "error", err)
      return fmt.Errorf("Failed to install registry function: %w", err)
    }
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}

func (s *PostgresService) DSN() string {
  return s.dsn
}
