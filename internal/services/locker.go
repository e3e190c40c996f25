package services

import (
  "context"
  "errors"
  "time"

  "github.com/redis/go-redis/v9"

  "github.com/nclhealth/cluster-cache-backend/internal/logger"
)

// ErrRefreshLocked is returned when another process holds a cluster's
// refresh lock.
var ErrRefreshLocked = errors.New("refresh already in progress for this cluster")

// RefreshLocker is an optional per-cluster advisory lock around refresh. The
// core contracts do not depend on it: without Redis the no-op locker is used
// and concurrent refreshes race last-writer-wins as documented.
type RefreshLocker interface {
  Acquire(ctx context.Context, clusterID string) (release func(), err error)
}

type noopLocker struct{}

func NewNoopLocker() RefreshLocker {
  return &noopLocker{}
}

func (nl *noopLocker) Acquire(ctx context.Context, clusterID string) (func(), error) {
  return func() {}, nil
}

type redisLocker struct {
  client *redis.Client
  log    *logger.Logger
  ttl    time.Duration
}

func NewRedisLocker(addr string, baseLog *logger.Logger) RefreshLocker {
  client := redis.NewClient(&redis.Options{Addr: addr})
  return &redisLocker{
    client: client,
    log:    baseLog.With("service", "RedisLocker"),
    ttl:    5 * time.Minute,
  }
}

func (rl *redisLocker) Acquire(ctx context.Context, clusterID string) (func(), error) {
  key := "cluster:refresh-lock:" + clusterID
  ok, err := rl.client.SetNX(ctx, key, "1", rl.ttl).Result()
  if err != nil {
    // A broken lock backend must not block refresh; fall through unlocked.
    rl.log.Warn("Refresh lock backend unavailable, continuing without lock", "cluster_id", clusterID, "error", err)
    return func() {}, nil
  }
  if !ok {
    return nil, ErrRefreshLocked
  }
  release := func() {
    if delErr := rl.client.Del(context.Background(), key).Err(); delErr != nil {
      rl.log.Warn("Failed to release refresh lock", "cluster_id", clusterID, "error", delErr)
    }
  }
  return release, nil
}
