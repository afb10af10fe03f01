// Package main provides the API server entry point for the LP portfolio tracker.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lp-portfolio/internal/api"
	"github.com/lp-portfolio/internal/app"
	"github.com/lp-portfolio/internal/config"
	"github.com/lp-portfolio/internal/logging"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	defer func() { _ = logger.Sync() }()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
		"chains": cfg.Pipeline.EnabledChains,
	}).Info("LP portfolio server starting")

	application, err := app.New(cfg, logger, app.Options{Migrate: true, Background: true})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start background workers")
	}

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    120 * time.Second, // a cold portfolio load walks every chain
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimitRPS:    cfg.Server.RateLimitRPS,
		RateBurst:       cfg.Server.RateBurst,
	}

	server := api.NewServer(serverConfig, api.Dependencies{
		Loader:   application.Loader,
		Prices:   application.Prices,
		Session:  application.Session,
		Gatherer: application.Registry,
		Logger:   logger,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host":     cfg.Server.Host,
		"port":     cfg.Server.Port,
		"redis":    application.Redis != nil,
		"postgres": application.Postgres != nil,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	application.Stop(shutdownCtx)
	cancel()

	logger.Info("Server exited")
}
