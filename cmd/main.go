package main

import (
  "fmt"
  "os"
  "os/signal"
  "syscall"
  "github.com/careerlens/careerlens-backend/internal/app"
)

func main() {
  application, err := app.New()
  if err != nil {
    fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
    os.Exit(1)
  }
  defer application.Close()

  application.Start()
  application.Log.Info("Ingestion worker started, waiting for jobs...")

  stop := make(chan os.Signal, 1)
  signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
  sig := <-stop
  application.Log.Info("Shutting down", "signal", sig.String())
}
