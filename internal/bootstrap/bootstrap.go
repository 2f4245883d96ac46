// Package bootstrap builds the runtime components of the emitter and
// listener processes from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"energy-queue/internal/config"
	"energy-queue/internal/queue"
	kafkaqueue "energy-queue/internal/queue/kafka"
	memoryqueue "energy-queue/internal/queue/memory"
	rabbitqueue "energy-queue/internal/queue/rabbitmq"
	"energy-queue/internal/sink"
	"energy-queue/internal/sink/csvfile"
	postgressink "energy-queue/internal/sink/postgres"
	"energy-queue/internal/store"
	memorystore "energy-queue/internal/store/memory"
	redisstore "energy-queue/internal/store/redis"
)

// NewLogger creates the application logger and makes it the slog default.
func NewLogger(cfg *config.LoggerConfig) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *config.LoggerConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// memory queues are shared by name within one process.
var (
	memoryMu     sync.Mutex
	memoryQueues = make(map[string]*memoryqueue.Queue)
)

func memoryQueue(name string) *memoryqueue.Queue {
	memoryMu.Lock()
	defer memoryMu.Unlock()

	q, ok := memoryQueues[name]
	if !ok {
		q = memoryqueue.NewQueue(name)
		memoryQueues[name] = q
	}
	return q
}

// ErrMemoryBrokerStandalone is returned by CheckStandalone for the memory
// broker, whose queue is visible only inside the process that created it.
var ErrMemoryBrokerStandalone = errors.New("broker.kind 'memory' only works within one process; use 'rabbitmq' or 'kafka'")

// CheckStandalone rejects broker settings that cannot connect an emitter
// and a listener running as separate processes.
func CheckStandalone(cfg *config.Config) error {
	if cfg.Broker.Kind == config.BrokerMemory {
		return ErrMemoryBrokerStandalone
	}
	return nil
}

// NewProducer connects the configured broker for publishing.
func NewProducer(cfg *config.Config, logger *slog.Logger) (queue.Producer, error) {
	switch cfg.Broker.Kind {
	case config.BrokerRabbitMQ:
		p, err := rabbitqueue.NewProducer(&cfg.RabbitMQ, cfg.Queue.Name, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BrokerKafka:
		return kafkaqueue.NewProducer(&cfg.Kafka, cfg.Queue.Name), nil
	case config.BrokerMemory:
		return memoryQueue(cfg.Queue.Name), nil
	default:
		return nil, config.ErrInvalidBrokerKind
	}
}

// NewConsumer connects the configured broker for consuming.
func NewConsumer(cfg *config.Config, logger *slog.Logger) (queue.Consumer, error) {
	switch cfg.Broker.Kind {
	case config.BrokerRabbitMQ:
		c, err := rabbitqueue.NewConsumer(&cfg.RabbitMQ, cfg.Queue.Name, cfg.Queue.Prefetch, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BrokerKafka:
		return kafkaqueue.NewConsumer(&cfg.Kafka, cfg.Queue.Name, logger), nil
	case config.BrokerMemory:
		return memoryQueue(cfg.Queue.Name), nil
	default:
		return nil, config.ErrInvalidBrokerKind
	}
}

// NewSink opens the log file and, when configured, the PostgreSQL mirror.
func NewSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sink.Writer, error) {
	file, err := csvfile.Open(cfg.Listener.LogPath)
	if err != nil {
		return nil, err
	}
	logger.Info("log file opened", "path", file.Path())

	if !cfg.Listener.MirrorToPostgres {
		return file, nil
	}

	db, err := postgressink.NewDB(ctx, &cfg.Postgres)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		_ = file.Close()
		return nil, err
	}
	logger.Info("database migrations completed")

	return sink.NewMulti(file, postgressink.NewWriter(db)), nil
}

// NewDedupStore creates the configured dedup store.
func NewDedupStore(cfg *config.Config) (store.DedupStore, error) {
	switch cfg.Dedup.Mode {
	case config.DedupNone:
		return store.Nop{}, nil
	case config.DedupMemory:
		return memorystore.NewDedupStore(cfg.Dedup.TTL), nil
	case config.DedupRedis:
		s, err := redisstore.NewDedupStore(&cfg.Redis, cfg.Dedup.TTL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidDedupMode, cfg.Dedup.Mode)
	}
}
