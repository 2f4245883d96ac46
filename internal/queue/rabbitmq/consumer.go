package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"energy-queue/internal/config"
	"energy-queue/internal/queue"
)

// Consumer implements queue.Consumer using RabbitMQ with manual acknowledgement.
type Consumer struct {
	*session
	prefetch int
}

// NewConsumer connects to RabbitMQ. Prefetch bounds the number of
// unacknowledged messages the broker hands this consumer.
func NewConsumer(cfg *config.RabbitMQConfig, queueName string, prefetch int, logger *slog.Logger) (*Consumer, error) {
	s, err := dial(cfg, queueName, logger)
	if err != nil {
		return nil, err
	}
	return &Consumer{session: s, prefetch: prefetch}, nil
}

// Start subscribes to the queue and calls the handler for each delivery.
// A delivery is acked only after the handler returns nil. A handler error
// nacks it with requeue so another attempt follows.
func (c *Consumer) Start(ctx context.Context, handler queue.MessageHandler) error {
	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return c.wrap("failed to set qos", err)
	}

	deliveries, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // autoAck
		false,       // exclusive
		false,       // noLocal
		false,       // noWait
		nil,         // args
	)
	if err != nil {
		return c.wrap("failed to consume", err)
	}

	c.logger.Info("starting rabbitmq consumer",
		"queue", c.queueName,
		"prefetch", c.prefetch,
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("rabbitmq consumer stopping due to context cancellation")
			return ctx.Err()

		case amqpErr := <-c.closed:
			if c.isClosing() {
				return nil
			}
			c.logger.Error("rabbitmq connection closed", "error", amqpErr)
			return queue.ErrConnectionLost

		case d, ok := <-deliveries:
			if !ok {
				if c.isClosing() || ctx.Err() != nil {
					return ctx.Err()
				}
				return queue.ErrConnectionLost
			}
			if err := c.deliver(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery, handler queue.MessageHandler) error {
	msg := toMessage(d)

	if err := handler(ctx, msg); err != nil {
		c.logger.Error("failed to process message",
			"error", err,
			"message_id", msg.ID,
			"delivery_tag", d.DeliveryTag,
		)
		if nackErr := d.Nack(false, true); nackErr != nil {
			return c.wrap("failed to nack message", nackErr)
		}
		return nil
	}

	if err := d.Ack(false); err != nil {
		return c.wrap("failed to ack message", err)
	}
	return nil
}

func toMessage(d amqp.Delivery) *queue.Message {
	msg := &queue.Message{
		ID:          d.MessageId,
		Body:        d.Body,
		Headers:     make(map[string]string, len(d.Headers)),
		Timestamp:   d.Timestamp,
		Redelivered: d.Redelivered,
	}
	for k, v := range d.Headers {
		msg.Headers[k] = fmt.Sprint(v)
	}
	if msg.ID == "" {
		msg.ID = msg.Headers["message_id"]
	}
	return msg
}
