package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/portfolio-site/backend/internal/api"
	"github.com/portfolio-site/backend/internal/config"
	"github.com/portfolio-site/backend/internal/engine"
)

func main() {
	// Setup Logging
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logger.WithField("service", "portfolio-api")

	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		entry.Fatalf("Failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		entry.Warnf("Unknown log level %q, using info", cfg.Server.LogLevel)
	}
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	entry.WithField("env", cfg.Server.Env).Info("Starting Portfolio API Service")

	// 2. Engine (catalog, bookmark store, delivery log)
	eng, err := engine.Bootstrap(cfg, entry)
	if err != nil {
		entry.Fatalf("Failed to initialize engine: %v", err)
	}
	defer eng.Close()

	// 3. API Server
	server := api.NewServer(eng, entry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		entry.Fatal(err)
	}
	entry.Info("Server stopped")
}
