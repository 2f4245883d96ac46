package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"energy-queue/internal/config"
	"energy-queue/internal/queue"
)

// Consumer implements queue.Consumer using a Kafka consumer group.
type Consumer struct {
	cfg    *config.KafkaConfig
	topic  string
	reader *kafka.Reader
	logger *slog.Logger
}

// NewConsumer creates a new Kafka consumer. Listeners sharing the consumer
// group split the topic partitions between them.
func NewConsumer(cfg *config.KafkaConfig, topic string, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		// Offsets are committed explicitly after the handler succeeds.
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{
		cfg:    cfg,
		topic:  topic,
		reader: reader,
		logger: logger,
	}
}

// DeclareQueue creates the topic when it is missing.
func (c *Consumer) DeclareQueue(ctx context.Context) error {
	return declareTopic(ctx, c.cfg, c.topic)
}

// Start begins consuming messages and calls the handler for each one.
// Kafka has no per-message requeue, so a handler error stops the consumer
// without committing; the message is delivered again after restart.
func (c *Consumer) Start(ctx context.Context, handler queue.MessageHandler) error {
	c.logger.Info("starting kafka consumer",
		"topic", c.reader.Config().Topic,
		"group", c.reader.Config().GroupID,
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka consumer stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to fetch message", "error", err)
			if isConnectionError(err) {
				return fmt.Errorf("failed to fetch message: %w: %v", queue.ErrConnectionLost, err)
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		// Convert Kafka message to queue.Message
		queueMsg := &queue.Message{
			ID:        string(msg.Key),
			Body:      msg.Value,
			Headers:   make(map[string]string),
			Timestamp: msg.Time,
		}

		for _, h := range msg.Headers {
			queueMsg.Headers[h.Key] = string(h.Value)
		}
		if id := queueMsg.Headers["message_id"]; id != "" {
			queueMsg.ID = id
		}

		if err := handler(ctx, queueMsg); err != nil {
			c.logger.Error("failed to process message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			return fmt.Errorf("failed to process message at offset %d: %w", msg.Offset, err)
		}

		// Commit the message after successful processing
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			return fmt.Errorf("failed to commit message: %w", err)
		}
	}
}

// Close closes the Kafka reader.
func (c *Consumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
