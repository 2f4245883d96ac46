package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"energy-queue/internal/config"
	"energy-queue/internal/queue"
)

// Producer implements queue.Producer using Kafka.
type Producer struct {
	cfg    *config.KafkaConfig
	topic  string
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer for the given topic.
func NewProducer(cfg *config.KafkaConfig, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // Use key-based partitioning
		BatchTimeout: 10 * time.Millisecond,
		// Every in-sync replica must have the message before it counts as sent.
		RequiredAcks: kafka.RequireAll,
	}

	return &Producer{
		cfg:    cfg,
		topic:  topic,
		writer: writer,
	}
}

// DeclareQueue creates the topic when it is missing.
func (p *Producer) DeclareQueue(ctx context.Context) error {
	return declareTopic(ctx, p.cfg, p.topic)
}

// Publish sends a message to Kafka and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, msg *queue.Message) error {
	kafkaMsg := kafka.Message{
		Key:   []byte(msg.ID),
		Value: msg.Body,
		Time:  msg.Timestamp,
	}

	// Convert headers
	kafkaMsg.Headers = make([]kafka.Header, 0, len(msg.Headers)+1)
	kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{Key: "message_id", Value: []byte(msg.ID)})
	for k, v := range msg.Headers {
		if k == "message_id" {
			continue
		}
		kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{
			Key:   k,
			Value: []byte(v),
		})
	}

	if err := p.writer.WriteMessages(ctx, kafkaMsg); err != nil {
		if isConnectionError(err) {
			return fmt.Errorf("failed to write message to kafka: %w: %v", queue.ErrConnectionLost, err)
		}
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
