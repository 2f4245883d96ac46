// Package kafka provides Kafka-based implementations of the queue interfaces.
// The queue name is used as the topic name. Creating the topic plays the role
// of declaring the queue, and committing an offset plays the role of an ack.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"energy-queue/internal/config"
	"energy-queue/internal/queue"
)

// declareTopic creates the topic if it does not exist yet.
func declareTopic(ctx context.Context, cfg *config.KafkaConfig, topic string) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("failed to declare topic %s: no brokers configured", topic)
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w: %v", queue.ErrConnectionLost, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find kafka controller: %w", err)
	}

	ctrl, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w: %v", queue.ErrConnectionLost, err)
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: cfg.ReplicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	return nil
}

// isConnectionError reports whether err came from the network rather than the broker.
func isConnectionError(err error) bool {
	var netErr net.Error
	var opErr *net.OpError
	return errors.As(err, &opErr) || errors.As(err, &netErr)
}
