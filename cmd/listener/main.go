// Package main is the entry point for the energy queue listener.
// It consumes readings from the durable queue one at a time and appends
// their estimated cost to the log.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"energy-queue/internal/api"
	"energy-queue/internal/banner"
	"energy-queue/internal/bootstrap"
	"energy-queue/internal/config"
	"energy-queue/internal/listener"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	banner.Print("listener")

	// Bootstrap logger until the configured one is available
	logger := bootstrap.NewLogger(&config.LoggerConfig{Level: "info", Format: "json"})

	path := resolveConfigPath(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("failed to load configuration", "error", err, "path", path)
		return 1
	}
	logger = bootstrap.NewLogger(&cfg.Logger)

	if err := bootstrap.CheckStandalone(cfg); err != nil {
		logger.Error("invalid broker configuration", "broker", cfg.Broker.Kind, "error", err)
		return 1
	}

	logger.Info("configuration loaded",
		"path", path,
		"broker", cfg.Broker.Kind,
		"queue", cfg.Queue.Name,
		"log_path", cfg.Listener.LogPath,
		"dedup", cfg.Dedup.Mode,
	)

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := initService(ctx, cfg, logger)
	if err != nil {
		return 1
	}
	defer func() {
		if err := svc.Stop(); err != nil {
			logger.Error("failed to stop listener", "error", err)
		}
		logger.Info("closing connection, goodbye")
	}()

	if cfg.HTTP.Enabled {
		server := api.NewServer(api.ServerDeps{
			Config:       &cfg.HTTP,
			Port:         cfg.HTTP.ListenerPort,
			Logger:       logger,
			StatsHandler: api.NewStatsHandler("listener", func() interface{} { return svc.Stats() }),
		})
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("server error", "error", err)
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", "error", err)
			}
		}()
	}

	if err := svc.Run(ctx); err != nil {
		return 1
	}
	return 0
}

// initService opens the sink, connects to the broker and creates the dedup
// store. Anything opened before a failure is closed again.
func initService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*listener.Service, error) {
	w, err := bootstrap.NewSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open log sink", "path", cfg.Listener.LogPath, "error", err)
		return nil, err
	}

	consumer, err := bootstrap.NewConsumer(cfg, logger)
	if err != nil {
		logger.Error("connection to broker failed, verify the server is running",
			"broker", cfg.Broker.Kind,
			"host", cfg.RabbitMQ.Host,
			"error", err,
		)
		_ = w.Close()
		return nil, err
	}

	dedup, err := bootstrap.NewDedupStore(cfg)
	if err != nil {
		logger.Error("failed to create dedup store", "mode", cfg.Dedup.Mode, "error", err)
		_ = consumer.Close()
		_ = w.Close()
		return nil, err
	}

	return listener.NewService(consumer, w, dedup, cfg.Queue.Name, logger), nil
}

// resolveConfigPath drops the default path when no such file exists so that
// defaults and environment are used on their own.
func resolveConfigPath(path string) string {
	if path != defaultConfigPath {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return path
}
