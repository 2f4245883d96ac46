// Package config provides configuration loading and management for the
// energy queue emitter and listener. Both processes read the same file so
// that the queue name and broker settings can never drift apart.
// Values come from a YAML file, then from the environment (and an optional
// .env file), then from defaults for anything still unset.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BrokerKind selects the message broker implementation.
type BrokerKind string

const (
	// BrokerRabbitMQ uses a RabbitMQ server over AMQP 0-9-1.
	BrokerRabbitMQ BrokerKind = "rabbitmq"
	// BrokerKafka uses a Kafka topic as the durable queue.
	BrokerKafka BrokerKind = "kafka"
	// BrokerMemory uses an in-process queue. Only useful for tests and demos
	// where emitter and listener share a process.
	BrokerMemory BrokerKind = "memory"
)

// IsValid returns true if the broker kind is known.
func (k BrokerKind) IsValid() bool {
	switch k {
	case BrokerRabbitMQ, BrokerKafka, BrokerMemory:
		return true
	default:
		return false
	}
}

// DedupMode selects how the listener remembers processed message ids.
type DedupMode string

const (
	DedupNone   DedupMode = "none"
	DedupMemory DedupMode = "memory"
	DedupRedis  DedupMode = "redis"
)

// DefaultQueueName is the queue shared by the emitter and the listener.
const DefaultQueueName = "dayton_queue1"

// DefaultValueColumn is the zero-based position of the consumption column.
const DefaultValueColumn = 1

// DefaultInterval is the pause between two published rows.
const DefaultInterval = 60 * time.Second

// Config represents the complete application configuration.
type Config struct {
	Broker   BrokerConfig   `yaml:"broker"`
	Queue    QueueConfig    `yaml:"queue"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Producer ProducerConfig `yaml:"producer"`
	Listener ListenerConfig `yaml:"listener"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// BrokerConfig holds the broker selection.
type BrokerConfig struct {
	Kind BrokerKind `yaml:"kind"`
}

// QueueConfig holds settings shared by both ends of the queue.
type QueueConfig struct {
	Name string `yaml:"name"`
	// Prefetch is the number of unacknowledged messages a listener may hold.
	// Only 1 is accepted: a listener handles one message at a time.
	Prefetch int `yaml:"prefetch"`
}

// RabbitMQConfig holds RabbitMQ connection settings.
type RabbitMQConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	VHost          string `yaml:"vhost"`
	ManagementPort int    `yaml:"management_port"`
}

// KafkaConfig holds Kafka connection settings. The topic is the queue name.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	ConsumerGroup     string   `yaml:"consumer_group"`
	Partitions        int      `yaml:"partitions"`
	ReplicationFactor int      `yaml:"replication_factor"`
}

// ProducerConfig holds emitter settings.
type ProducerConfig struct {
	SourcePath string `yaml:"source_path"`
	// ValueColumn is zero-based. Nil means DefaultValueColumn.
	ValueColumn *int `yaml:"value_column"`
	// Interval between rows. Nil means DefaultInterval, zero disables pacing.
	Interval *time.Duration `yaml:"interval"`
	Burst    int            `yaml:"burst"`
}

// Column returns the configured value column.
func (c *ProducerConfig) Column() int {
	if c.ValueColumn == nil {
		return DefaultValueColumn
	}
	return *c.ValueColumn
}

// PaceInterval returns the configured pause between rows.
func (c *ProducerConfig) PaceInterval() time.Duration {
	if c.Interval == nil {
		return DefaultInterval
	}
	return *c.Interval
}

// ListenerConfig holds listener settings.
type ListenerConfig struct {
	LogPath string `yaml:"log_path"`
	// MirrorToPostgres additionally writes every log record to PostgreSQL.
	MirrorToPostgres bool `yaml:"mirror_to_postgres"`
}

// DedupConfig controls redelivery deduplication in the listener.
type DedupConfig struct {
	Mode DedupMode     `yaml:"mode"`
	TTL  time.Duration `yaml:"ttl"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int32  `yaml:"max_open_conns"`
	MaxIdleConns int32  `yaml:"max_idle_conns"`
}

// HTTPConfig holds the optional status server settings.
type HTTPConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host"`
	ListenerPort int           `yaml:"listener_port"`
	EmitterPort  int           `yaml:"emitter_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Validation errors.
var (
	ErrInvalidBrokerKind = errors.New("broker.kind must be 'rabbitmq', 'kafka' or 'memory'")
	ErrEmptyQueueName    = errors.New("queue.name is required")
	ErrInvalidPrefetch   = errors.New("queue.prefetch must be 1")
	ErrInvalidColumn     = errors.New("producer.value_column must not be negative")
	ErrInvalidInterval   = errors.New("producer.interval must not be negative")
	ErrInvalidDedupMode  = errors.New("dedup.mode must be 'none', 'memory' or 'redis'")
)

// Load reads configuration from the specified YAML file path, applies
// environment overrides and defaults, and validates the result.
// An empty path skips the file and uses environment and defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		// Clean the path to prevent path traversal attacks
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// A missing .env file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables when they are set.
func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	if v, ok := os.LookupEnv("BROKER_KIND"); ok && v != "" {
		cfg.Broker.Kind = BrokerKind(v)
	}
	setString("QUEUE_NAME", &cfg.Queue.Name)
	setString("RABBITMQ_HOST", &cfg.RabbitMQ.Host)
	setString("RABBITMQ_USER", &cfg.RabbitMQ.User)
	setString("RABBITMQ_PASS", &cfg.RabbitMQ.Password)
	setString("RABBITMQ_VHOST", &cfg.RabbitMQ.VHost)
	if err := setInt("RABBITMQ_PORT", &cfg.RabbitMQ.Port); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("SOURCE_PATH", &cfg.Producer.SourcePath)
	if v, ok := os.LookupEnv("PRODUCER_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PRODUCER_INTERVAL must be a valid duration: %w", err)
		}
		cfg.Producer.Interval = &d
	}
	setString("LOG_PATH", &cfg.Listener.LogPath)
	setString("REDIS_HOST", &cfg.Redis.Host)
	if err := setInt("REDIS_PORT", &cfg.Redis.Port); err != nil {
		return err
	}
	setString("POSTGRES_HOST", &cfg.Postgres.Host)
	setString("POSTGRES_USER", &cfg.Postgres.User)
	setString("POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("LOG_LEVEL", &cfg.Logger.Level)
	return nil
}

// applyDefaults sets default values for configuration fields
// that are not explicitly set.
func applyDefaults(cfg *Config) {
	if cfg.Broker.Kind == "" {
		cfg.Broker.Kind = BrokerRabbitMQ
	}

	// Queue defaults
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = DefaultQueueName
	}
	if cfg.Queue.Prefetch == 0 {
		cfg.Queue.Prefetch = 1
	}

	// RabbitMQ defaults
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}
	if cfg.RabbitMQ.User == "" {
		cfg.RabbitMQ.User = "guest"
	}
	if cfg.RabbitMQ.Password == "" {
		cfg.RabbitMQ.Password = "guest"
	}
	if cfg.RabbitMQ.VHost == "" {
		cfg.RabbitMQ.VHost = "/"
	}
	if cfg.RabbitMQ.ManagementPort == 0 {
		cfg.RabbitMQ.ManagementPort = 15672
	}

	// Kafka defaults
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "energy-listener"
	}
	if cfg.Kafka.Partitions == 0 {
		cfg.Kafka.Partitions = 1
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}

	// Producer defaults
	if cfg.Producer.SourcePath == "" {
		cfg.Producer.SourcePath = "dayton_energy_consumption.csv"
	}
	if cfg.Producer.Burst == 0 {
		cfg.Producer.Burst = 1
	}

	// Listener defaults
	if cfg.Listener.LogPath == "" {
		cfg.Listener.LogPath = "energy_consumption_log.csv"
	}

	// Dedup defaults
	if cfg.Dedup.Mode == "" {
		cfg.Dedup.Mode = DedupNone
	}
	if cfg.Dedup.TTL == 0 {
		cfg.Dedup.TTL = 24 * time.Hour
	}

	// Redis defaults
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// Postgres defaults
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 4
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 1
	}

	// HTTP defaults
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.ListenerPort == 0 {
		cfg.HTTP.ListenerPort = 8080
	}
	if cfg.HTTP.EmitterPort == 0 {
		cfg.HTTP.EmitterPort = 8081
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 120 * time.Second
	}

	// Logger defaults
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
}

// Validate checks the configuration for values that can never work.
func (c *Config) Validate() error {
	if !c.Broker.Kind.IsValid() {
		return ErrInvalidBrokerKind
	}
	if c.Queue.Name == "" {
		return ErrEmptyQueueName
	}
	if c.Queue.Prefetch != 1 {
		return ErrInvalidPrefetch
	}
	if c.Producer.Column() < 0 {
		return ErrInvalidColumn
	}
	if c.Producer.PaceInterval() < 0 {
		return ErrInvalidInterval
	}
	switch c.Dedup.Mode {
	case DedupNone, DedupMemory, DedupRedis:
	default:
		return ErrInvalidDedupMode
	}
	return nil
}

// Address returns host:port for the given port.
func (c *HTTPConfig) Address(port int) string {
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// ManagementURL returns the RabbitMQ management UI queue page.
func (c *RabbitMQConfig) ManagementURL() string {
	return fmt.Sprintf("http://%s:%d/#/queues", c.Host, c.ManagementPort)
}

// RedisAddr returns the Redis address in host:port format.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode, c.MaxOpenConns,
	)
}
