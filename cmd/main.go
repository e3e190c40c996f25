package main

import (
  "context"
  "fmt"
  "os"

  "github.com/nclhealth/cluster-cache-backend/internal/app"
)

func main() {
  ctx := context.Background()

  application, err := app.New(ctx)
  if err != nil {
    fmt.Printf("Failed to init app: %v\n", err)
    os.Exit(1)
  }
  defer application.Close()

  application.Log.Info("Starting cluster cache backend", "addr", application.Cfg.HTTPAddr)
  if err := application.Run(); err != nil {
    application.Log.Error("Server exited", "error", err)
    os.Exit(1)
  }
}
