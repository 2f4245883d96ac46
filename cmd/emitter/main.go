// Package main is the entry point for the energy queue emitter.
// It reads the consumption data source and publishes one timestamped
// reading per pacing interval to the durable queue.
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
	"energy-queue/internal/emitter"
	"energy-queue/internal/monitor"
	"energy-queue/internal/pacing"
	"energy-queue/internal/source"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	offerMonitor := flag.Bool("monitor", false, "offer to open the RabbitMQ management page")
	flag.Parse()

	banner.Print("emitter")

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
		"source", cfg.Producer.SourcePath,
		"interval", cfg.Producer.PaceInterval().String(),
	)

	if *offerMonitor && cfg.Broker.Kind == config.BrokerRabbitMQ {
		if _, err := monitor.Offer(os.Stdin, os.Stdout, cfg.RabbitMQ.ManagementURL(), monitor.OpenBrowser); err != nil {
			logger.Warn("failed to open management page", "error", err)
		}
	}

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, err := source.Open(cfg.Producer.SourcePath, cfg.Producer.Column())
	if err != nil {
		logger.Error("failed to open source", "path", cfg.Producer.SourcePath, "error", err)
		return 1
	}
	defer src.Close()

	producer, err := bootstrap.NewProducer(cfg, logger)
	if err != nil {
		logger.Error("connection to broker failed", "broker", cfg.Broker.Kind, "host", cfg.RabbitMQ.Host, "error", err)
		return 1
	}

	pacer := pacing.New(cfg.Producer.PaceInterval(), cfg.Producer.Burst)
	svc := emitter.NewService(producer, pacer, cfg.Queue.Name, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("failed to close producer", "error", err)
		}
	}()

	if cfg.HTTP.Enabled {
		server := startServer(cfg, cfg.HTTP.EmitterPort, "emitter", func() interface{} { return svc.Summary() }, logger, cancel)
		defer shutdownServer(server, cfg, logger)
	}

	// PublishAll logs its own failures.
	summary, err := svc.PublishAll(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("emitter interrupted", "published", summary.Published)
			return 0
		}
		return 1
	}
	return 0
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

func startServer(cfg *config.Config, port int, service string, stats api.StatsFunc, logger *slog.Logger, cancel context.CancelFunc) *api.Server {
	server := api.NewServer(api.ServerDeps{
		Config:       &cfg.HTTP,
		Port:         port,
		Logger:       logger,
		StatsHandler: api.NewStatsHandler(service, stats),
	})
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()
	return server
}

func shutdownServer(server *api.Server, cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
