package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"carrefour/harvester/internal/config"
	"carrefour/harvester/internal/container"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.Info("Starting Carrefour catalog harvester...")

	// Load configuration using viper
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	configureLogging(cfg.Log)
	log.Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize container with all dependencies
	app, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	err = app.Run(ctx)
	app.Close()
	if err != nil {
		log.Fatalf("Harvest failed: %v", err)
	}

	log.Info("Harvest finished successfully")
}

func configureLogging(cfg config.LogConfig) {
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("⚠️ Unknown log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
