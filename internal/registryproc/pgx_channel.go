package registryproc

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nclhealth/cluster-cache-backend/internal/logger"
)

type pgxChannel struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPgxChannel opens a dedicated pgx pool for the registry mutation
// functions. The pool is separate from the ORM connection on purpose: the
// procedure channel is the "remote" side of the system and its failures must
// not poison ordinary table reads.
func NewPgxChannel(ctx context.Context, dsn string, baseLog *logger.Logger) (Channel, error) {
	channelLog := baseLog.With("channel", "RegistryProcChannel")

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse registry channel dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open registry channel pool: %w", err)
	}

	return &pgxChannel{pool: pool, log: channelLog}, nil
}

func (pc *pgxChannel) UpsertCluster(ctx context.Context, clusterID, eclExpression, description, actor, clusterType string) (Result, error) {
	return pc.callText(ctx,
		`SELECT upsert_cluster($1, $2, $3, $4, $5)`,
		clusterID, eclExpression, description, actor, clusterType)
}

func (pc *pgxChannel) RenameCluster(ctx context.Context, oldID, newID, eclExpression, description, actor, clusterType string) (Result, error) {
	return pc.callText(ctx,
		`SELECT rename_cluster($1, $2, $3, $4, $5, $6)`,
		oldID, newID, eclExpression, description, actor, clusterType)
}

func (pc *pgxChannel) DeleteCluster(ctx context.Context, clusterID string) (Result, error) {
	return pc.callText(ctx, `SELECT delete_cluster($1)`, clusterID)
}

func (pc *pgxChannel) callText(ctx context.Context, sql string, args ...any) (Result, error) {
	var msg string
	if err := pc.pool.QueryRow(ctx, sql, args...).Scan(&msg); err != nil {
		pc.log.Warn("Registry function call failed", "sql", sql, "error", err)
		return Result{}, err
	}
	return Result{Message: msg}, nil
}
