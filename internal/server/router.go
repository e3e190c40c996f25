package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
  "github.com/nclhealth/cluster-cache-backend/internal/handlers"
  "github.com/nclhealth/cluster-cache-backend/internal/middleware"
)

type RouterConfig struct {
  ClusterHandler  *handlers.ClusterHandler
  RefreshHandler  *handlers.RefreshHandler
  HistoryHandler  *handlers.HistoryHandler
  ECLHandler      *handlers.ECLHandler
  ActorMiddleware *middleware.ActorMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  router.Use(otelgin.Middleware("cluster-cache-backend"))

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:8501",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Actor-Email"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  api.Use(cfg.ActorMiddleware.WithActor())
  {
    // Clusters
    api.GET("/clusters", cfg.ClusterHandler.ListClusters)
    api.POST("/clusters", cfg.ClusterHandler.CreateCluster)
    api.POST("/clusters/refresh-stale", cfg.RefreshHandler.RefreshAllStale)
    api.GET("/clusters/:id", cfg.ClusterHandler.GetCluster)
    api.PUT("/clusters/:id", cfg.ClusterHandler.UpdateCluster)
    api.POST("/clusters/:id/rename", cfg.ClusterHandler.RenameCluster)
    api.DELETE("/clusters/:id", cfg.ClusterHandler.DeleteCluster)
    api.GET("/clusters/:id/status", cfg.ClusterHandler.GetClusterStatus)
    // Cache
    api.POST("/clusters/:id/refresh", cfg.RefreshHandler.RefreshCluster)
    api.GET("/clusters/:id/cache", cfg.RefreshHandler.GetCurrentCache)
    // Change ledger
    api.GET("/clusters/:id/changes", cfg.HistoryHandler.GetChangeHistory)
    api.GET("/clusters/:id/changes/summary", cfg.HistoryHandler.GetChangeSummary)
    api.GET("/changes/recent", cfg.HistoryHandler.GetRecentChanges)
    // Playground
    api.POST("/ecl/test", cfg.ECLHandler.TestExpression)
  }

  return router
}
